package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maintflow/api"
	"maintflow/auth"
	"maintflow/config"
	"maintflow/contractor"
	"maintflow/db"
	"maintflow/logger"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/property"
	"maintflow/quote"
)

const serviceName = "maintflow-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis only backs rate limiting and live push; both degrade.
		log.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	app := wire(cfg, pool, rdb, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return app.worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type application struct {
	router http.Handler
	worker *notify.Worker
}

// wire builds every service on top of the shared pool and redis client.
func wire(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *zap.Logger) application {
	outbox := notify.NewOutbox(pool)
	stream := notify.NewStreamPublisher(rdb, cfg.Notify.Stream)

	gateway := notify.NewGateway(
		notify.NewInbox(pool),
		notify.NewOutboxMailer(outbox),
		stream,
		cfg.Notify.AppBaseURL,
		log.Named("notify"),
	)

	var delivery notify.Mailer
	if cfg.Email.ResendAPIKey != "" {
		delivery = notify.NewResendMailer(cfg.Email.ResendBaseURL, cfg.Email.ResendAPIKey, cfg.Email.From, log.Named("resend"))
	} else {
		log.Warn("RESEND_API_KEY not set; outbound email is logged only")
		delivery = notify.NewLogMailer(log.Named("mail"))
	}

	worker := notify.NewWorker(pool, notify.WorkerOptions{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}, log.Named("outbox"))
	worker.Handle(notify.TopicEmailSend, notify.EmailHandler(delivery))
	for _, topic := range []string{
		maintenance.TopicRequestCreated,
		maintenance.TopicRequestCancelled,
		maintenance.TopicRequestCompleted,
	} {
		worker.Handle(topic, stream.PublishEvent(topic))
	}

	requests := maintenance.NewService(pool, maintenance.NewRepository(pool), outbox, log.Named("maintenance"))
	contractors := contractor.NewService(contractor.NewRepository(pool))

	deps := quote.Deps{
		Quotes:      quote.NewRepository(pool),
		Requests:    maintenance.WorkflowStore{Service: requests},
		Contractors: contractors,
		Properties:  property.NewRepository(pool),
		Notifier:    gateway,
		Logger:      log.Named("quote"),
	}

	router := api.NewRouter(api.Services{
		Auth:          auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret),
		Requests:      requests,
		QuoteRequests: quote.NewRequestService(deps),
		Submissions:   quote.NewSubmissionService(deps),
		Approvals:     quote.NewApprovalService(deps),
		Quotes:        quote.NewQueries(deps),
		Contractors:   contractors,
		Inbox:         gateway,
		Limiter:       api.NewRateLimiter(rdb, cfg.HTTP.RateLimitPerMinute, time.Minute, log.Named("ratelimit")),
		Health:        pool.Ping,
		Logger:        log.Named("http"),
	})

	return application{router: router, worker: worker}
}
