package quote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maintflow/contractor"
	"maintflow/logger"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/property"
)

// RequestStore is the slice of the maintenance repository the workflow uses.
type RequestStore interface {
	Get(ctx context.Context, id string) (maintenance.Request, error)
	MarkQuoteRequested(ctx context.Context, id string) error
	Assign(ctx context.Context, a maintenance.Assignment) (maintenance.Request, error)
}

type ContractorDirectory interface {
	GetByID(ctx context.Context, id string) (contractor.Profile, error)
	GetByUserID(ctx context.Context, userID string) (contractor.Profile, error)
}

type PropertyDirectory interface {
	GetByID(ctx context.Context, id string) (property.Profile, error)
}

// Notifier delivers in-app notifications and email. Callers treat every
// failure as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
	SendEmail(ctx context.Context, email notify.Email) error
}

// Deps wires the collaborators shared by the quote services. Logger, Now and
// NewID may be left nil.
type Deps struct {
	Quotes      Repository
	Requests    RequestStore
	Contractors ContractorDirectory
	Properties  PropertyDirectory
	Notifier    Notifier
	Logger      *zap.Logger
	Now         func() time.Time
	NewID       func() string
}

// maxWriteAttempts bounds the re-read loop when an upsert loses a race.
const maxWriteAttempts = 3

var errNoRecipient = errors.New("quote: contractor has neither a user account nor an email address")

type core struct {
	quotes      Repository
	requests    RequestStore
	contractors ContractorDirectory
	properties  PropertyDirectory
	notifier    Notifier
	log         *zap.Logger
	now         func() time.Time
	newID       func() string
}

func newCore(d Deps) core {
	c := core{
		quotes:      d.Quotes,
		requests:    d.Requests,
		contractors: d.Contractors,
		properties:  d.Properties,
		notifier:    d.Notifier,
		log:         logger.OrNop(d.Logger),
		now:         d.Now,
		newID:       d.NewID,
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// loadRequest fetches a request and hides it when it belongs to another
// organization. An empty organizationID skips the check.
func (c *core) loadRequest(ctx context.Context, id, organizationID string) (maintenance.Request, error) {
	req, err := c.requests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, maintenance.ErrNotFound) {
			return maintenance.Request{}, ErrRequestNotFound
		}
		return maintenance.Request{}, err
	}
	if organizationID != "" && req.OrganizationID != organizationID {
		return maintenance.Request{}, ErrRequestNotFound
	}
	return req, nil
}

func (c *core) loadContractor(ctx context.Context, id string) (contractor.Profile, error) {
	profile, err := c.contractors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, contractor.ErrNotFound) {
			return contractor.Profile{}, ErrContractorNotFound
		}
		return contractor.Profile{}, err
	}
	return profile, nil
}

// loadQuote fetches a quote scoped to organizationID when it is non-empty.
func (c *core) loadQuote(ctx context.Context, id, organizationID string) (Quote, error) {
	if id == "" {
		return Quote{}, ErrMissingID
	}
	q, err := c.quotes.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if organizationID != "" && q.OrganizationID != organizationID {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

// warn records a failed best-effort step on ws and logs it.
func (c *core) warn(ws *[]Warning, q Quote, step string, err error) {
	*ws = append(*ws, Warning{Step: step, Err: err})
	c.logFailure(q, step, err)
}

func (c *core) logFailure(q Quote, step string, err error) {
	c.log.Warn("quote side effect failed",
		zap.String("quote_id", q.ID),
		zap.String("request_id", q.RequestID),
		zap.String("contractor_id", q.ContractorID),
		zap.String("step", step),
		zap.Error(err),
	)
}

func (c *core) appendLog(ctx context.Context, q Quote, action Action, actorUserID string, before, after *Quote) error {
	entry := LogEntry{
		ID:             c.newID(),
		QuoteID:        q.ID,
		RequestID:      q.RequestID,
		ContractorID:   q.ContractorID,
		OrganizationID: q.OrganizationID,
		Action:         action,
	}
	if before != nil {
		if before.HasBid() {
			amount := before.Amount
			entry.OldAmount = &amount
		}
		desc := before.Description
		entry.OldDescription = &desc
	}
	if after != nil {
		if after.HasBid() {
			amount := after.Amount
			entry.NewAmount = &amount
		}
		desc := after.Description
		entry.NewDescription = &desc
	}
	if actorUserID != "" {
		entry.ActorUserID = &actorUserID
	}
	return c.quotes.AppendLog(ctx, entry)
}

// reachContractor notifies the contractor's user account, falling back to
// email when the contractor has no login.
func (c *core) reachContractor(ctx context.Context, profile contractor.Profile, n notify.Notification, email notify.Email) error {
	if c.notifier == nil {
		return nil
	}
	if profile.UserID != nil && *profile.UserID != "" {
		n.UserID = *profile.UserID
		n.OrganizationID = profile.OrganizationID
		return c.notifier.Notify(ctx, n)
	}
	if profile.Email == "" {
		return errNoRecipient
	}
	email.To = profile.Email
	return c.notifier.SendEmail(ctx, email)
}

func closed(req maintenance.Request) bool {
	return req.Status == maintenance.StatusCompleted || req.Status == maintenance.StatusCancelled
}
