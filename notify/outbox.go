package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"maintflow/logger"
)

// TopicEmailSend carries an Email payload for the outbox worker.
const TopicEmailSend = "email.send"

// Outbox writes rows into the transactional outbox table.
type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Enqueue inserts a message inside tx, or directly on the pool when tx is nil.
func (o *Outbox) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal outbox payload: %w", err)
	}
	return o.insert(ctx, tx, topic, body)
}

func (o *Outbox) insert(ctx context.Context, tx pgx.Tx, topic string, body []byte) error {
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, q, topic, body)
	} else {
		_, err = o.pool.Exec(ctx, q, topic, body)
	}
	if err != nil {
		return fmt.Errorf("notify: enqueue outbox: %w", err)
	}
	return nil
}

// OutboxMailer satisfies Mailer by queueing the email for the Worker.
type OutboxMailer struct {
	outbox *Outbox
}

func NewOutboxMailer(outbox *Outbox) *OutboxMailer {
	return &OutboxMailer{outbox: outbox}
}

func (m *OutboxMailer) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrMissingAddress
	}
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("notify: marshal email: %w", err)
	}
	return m.outbox.insert(ctx, nil, TopicEmailSend, body)
}

// Handler processes one outbox payload. A returned error schedules a retry.
type Handler func(ctx context.Context, payload []byte) error

// EmailHandler adapts a Mailer into an outbox Handler.
func EmailHandler(m Mailer) Handler {
	return func(ctx context.Context, payload []byte) error {
		var email Email
		if err := json.Unmarshal(payload, &email); err != nil {
			return fmt.Errorf("notify: decode email payload: %w", err)
		}
		return m.Send(ctx, email)
	}
}

type WorkerOptions struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Worker drains pending outbox rows. Rows are claimed with FOR UPDATE SKIP
// LOCKED so several workers can run against the same table.
type Worker struct {
	pool     *pgxpool.Pool
	handlers map[string]Handler
	opts     WorkerOptions
	log      *zap.Logger
}

func NewWorker(pool *pgxpool.Pool, opts WorkerOptions, log *zap.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Worker{
		pool:     pool,
		handlers: make(map[string]Handler),
		opts:     opts,
		log:      logger.OrNop(log),
	}
}

// Handle registers h for topic. Messages on topics without a handler are
// marked processed untouched.
func (w *Worker) Handle(topic string, h Handler) {
	w.handlers[topic] = h
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		n, err := w.ProcessBatch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.log.Warn("outbox batch failed", zap.Error(err))
		}
		if n == w.opts.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type outboxRow struct {
	id       string
	topic    string
	payload  []byte
	attempts int
}

// ProcessBatch claims up to BatchSize pending rows, dispatches them, and
// records the outcome. It returns the number of rows claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: begin outbox tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $1`, w.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("notify: claim outbox: %w", err)
	}
	batch := make([]outboxRow, 0, w.opts.BatchSize)
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.topic, &r.payload, &r.attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("notify: scan outbox: %w", err)
		}
		batch = append(batch, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("notify: iterate outbox: %w", err)
	}

	for _, r := range batch {
		if err := w.dispatch(ctx, tx, r); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("notify: commit outbox: %w", err)
	}
	return len(batch), nil
}

func (w *Worker) dispatch(ctx context.Context, tx pgx.Tx, r outboxRow) error {
	h, ok := w.handlers[r.topic]
	if !ok {
		_, err := tx.Exec(ctx, `UPDATE outbox SET status = 'processed', last_attempt = now() WHERE id = $1`, r.id)
		if err != nil {
			return fmt.Errorf("notify: mark outbox processed: %w", err)
		}
		return nil
	}

	herr := h(ctx, r.payload)
	if herr == nil {
		if _, err := tx.Exec(ctx, `UPDATE outbox SET status = 'processed', attempts = attempts + 1, last_attempt = now(), last_error = NULL WHERE id = $1`, r.id); err != nil {
			return fmt.Errorf("notify: mark outbox processed: %w", err)
		}
		return nil
	}

	status := "pending"
	if r.attempts+1 >= w.opts.MaxAttempts {
		status = "dead"
	}
	w.log.Warn("outbox delivery failed",
		zap.String("outbox_id", r.id),
		zap.String("topic", r.topic),
		zap.Int("attempt", r.attempts+1),
		zap.String("next_status", status),
		zap.Error(herr),
	)
	if _, err := tx.Exec(ctx, `UPDATE outbox SET status = $2, attempts = attempts + 1, last_attempt = now(), last_error = $3 WHERE id = $1`, r.id, status, herr.Error()); err != nil {
		return fmt.Errorf("notify: record outbox failure: %w", err)
	}
	return nil
}
