package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/property"
	"maintflow/quote"
)

// Seed names the rows the actors work against.
type Seed struct {
	OrganizationID string
	ManagerUserID  string
	PropertyID     string
	Contractors    []Contractor
}

type Contractor struct {
	ID     string
	UserID string
}

// Stats counts outcomes across all actors. Expected losses under contention
// are tallied separately from other failures.
type Stats struct {
	Requested  atomic.Int64
	Submitted  atomic.Int64
	Approved   atomic.Int64
	Rejected   atomic.Int64
	Created    atomic.Int64
	Contention atomic.Int64
	Failures   atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("requested=%d submitted=%d approved=%d rejected=%d created=%d contention=%d failures=%d",
		s.Requested.Load(), s.Submitted.Load(), s.Approved.Load(), s.Rejected.Load(),
		s.Created.Load(), s.Contention.Load(), s.Failures.Load())
}

// Env is the real service stack running on the stress database.
type Env struct {
	Pool        *pgxpool.Pool
	Seed        Seed
	Requests    *maintenance.Service
	Quoting     *quote.RequestService
	Submissions *quote.SubmissionService
	Approvals   *quote.ApprovalService
	Stats       *Stats
}

func NewEnv(pool *pgxpool.Pool, seed Seed) *Env {
	outbox := notify.NewOutbox(pool)
	gateway := notify.NewGateway(notify.NewInbox(pool), notify.NewOutboxMailer(outbox), nil, "", nil)
	requests := maintenance.NewService(pool, maintenance.NewRepository(pool), outbox, nil)

	deps := quote.Deps{
		Quotes:      quote.NewRepository(pool),
		Requests:    maintenance.WorkflowStore{Service: requests},
		Contractors: contractor.NewRepository(pool),
		Properties:  property.NewRepository(pool),
		Notifier:    gateway,
	}
	return &Env{
		Pool:        pool,
		Seed:        seed,
		Requests:    requests,
		Quoting:     quote.NewRequestService(deps),
		Submissions: quote.NewSubmissionService(deps),
		Approvals:   quote.NewApprovalService(deps),
		Stats:       &Stats{},
	}
}

func (e *Env) record(counter *atomic.Int64, err error) {
	switch {
	case err == nil:
		counter.Add(1)
	case isContention(err):
		e.Stats.Contention.Add(1)
	default:
		e.Stats.Failures.Add(1)
	}
}

func isContention(err error) bool {
	return errors.Is(err, quote.ErrConflict) ||
		errors.Is(err, quote.ErrAlreadyAwarded) ||
		errors.Is(err, quote.ErrInvalidTransition) ||
		errors.Is(err, quote.ErrRequestClosed) ||
		errors.Is(err, quote.ErrDuplicate) ||
		errors.Is(err, quote.ErrNotFound)
}

func (e *Env) randomContractor() Contractor {
	return e.Seed.Contractors[rand.Intn(len(e.Seed.Contractors))]
}

// openRequest picks a request that can still take quotes.
func (e *Env) openRequest(ctx context.Context) (string, bool) {
	var id string
	err := e.Pool.QueryRow(ctx, `
		SELECT id FROM maintenance_requests
		WHERE organization_id = $1 AND status IN ('pending', 'open')
		ORDER BY random() LIMIT 1`, e.Seed.OrganizationID).Scan(&id)
	return id, err == nil
}

func (e *Env) pendingQuote(ctx context.Context) (string, bool) {
	var id string
	err := e.Pool.QueryRow(ctx, `
		SELECT id FROM quotes
		WHERE organization_id = $1 AND status = 'pending'
		ORDER BY random() LIMIT 1`, e.Seed.OrganizationID).Scan(&id)
	return id, err == nil
}

func loop(ctx context.Context, stop <-chan struct{}, minSleep, jitter int, step func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		step()
		time.Sleep(time.Duration(minSleep+rand.Intn(jitter)) * time.Millisecond)
	}
}

// Creator keeps a supply of open requests as approvals close them.
func Creator(ctx context.Context, e *Env, stop <-chan struct{}) error {
	priorities := []maintenance.Priority{maintenance.PriorityLow, maintenance.PriorityMedium, maintenance.PriorityHigh}
	return loop(ctx, stop, 150, 150, func() {
		_, err := e.Requests.Create(ctx, maintenance.CreateParams{
			OrganizationID:  e.Seed.OrganizationID,
			PropertyID:      e.Seed.PropertyID,
			CreatedByUserID: e.Seed.ManagerUserID,
			Title:           fmt.Sprintf("Stress job %d", rand.Int63()),
			Priority:        priorities[rand.Intn(len(priorities))],
		})
		e.record(&e.Stats.Created, err)
	})
}

// Requester asks random contractors to quote on open requests, repeating
// pairs on purpose so upserts collide.
func Requester(ctx context.Context, e *Env, stop <-chan struct{}) error {
	return loop(ctx, stop, 10, 30, func() {
		requestID, ok := e.openRequest(ctx)
		if !ok {
			return
		}
		c := e.randomContractor()
		_, err := e.Quoting.RequestQuote(ctx, quote.RequestQuoteParams{
			RequestID:      requestID,
			ContractorID:   c.ID,
			OrganizationID: e.Seed.OrganizationID,
			ActorUserID:    e.Seed.ManagerUserID,
			Include:        quote.IncludeInfo{PropertyAddress: true, Priority: true},
		})
		e.record(&e.Stats.Requested, err)
	})
}

// Bidder submits and resubmits prices as a random contractor.
func Bidder(ctx context.Context, e *Env, stop <-chan struct{}) error {
	return loop(ctx, stop, 10, 30, func() {
		requestID, ok := e.openRequest(ctx)
		if !ok {
			return
		}
		c := e.randomContractor()
		_, err := e.Submissions.SubmitQuote(ctx, quote.SubmitQuoteParams{
			RequestID:    requestID,
			CallerUserID: c.UserID,
			Amount:       float64(50+rand.Intn(2000)) + 0.25,
			Description:  "stress bid",
		})
		e.record(&e.Stats.Submitted, err)
	})
}

// Approver races to award pending quotes.
func Approver(ctx context.Context, e *Env, stop <-chan struct{}) error {
	return loop(ctx, stop, 20, 40, func() {
		quoteID, ok := e.pendingQuote(ctx)
		if !ok {
			return
		}
		_, err := e.Approvals.Approve(ctx, quote.ApproveParams{
			QuoteID:        quoteID,
			ActorUserID:    e.Seed.ManagerUserID,
			OrganizationID: e.Seed.OrganizationID,
		})
		e.record(&e.Stats.Approved, err)
	})
}

// Rejecter turns down pending quotes, competing with Approver for the same rows.
func Rejecter(ctx context.Context, e *Env, stop <-chan struct{}) error {
	return loop(ctx, stop, 40, 60, func() {
		quoteID, ok := e.pendingQuote(ctx)
		if !ok {
			return
		}
		_, err := e.Approvals.Reject(ctx, quote.RejectParams{
			QuoteID:        quoteID,
			ActorUserID:    e.Seed.ManagerUserID,
			OrganizationID: e.Seed.OrganizationID,
			Reason:         "stress rejection",
		})
		e.record(&e.Stats.Rejected, err)
	})
}

// OutboxWorker drains the outbox with the production worker. One delivery in
// ten fails so retries and dead-lettering are exercised.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	w := notify.NewWorker(pool, notify.WorkerOptions{BatchSize: 10, MaxAttempts: 3}, nil)
	flaky := func(context.Context, []byte) error {
		if rand.Intn(10) == 0 {
			return errors.New("simulated delivery failure")
		}
		return nil
	}
	w.Handle(notify.TopicEmailSend, flaky)
	w.Handle(maintenance.TopicRequestCreated, flaky)

	return loop(ctx, stop, 100, 50, func() {
		_, _ = w.ProcessBatch(ctx)
	})
}
