package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"maintflow/logger"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

const (
	TopicRequestCreated   = "request.created"
	TopicRequestCancelled = "request.cancelled"
	TopicRequestCompleted = "request.completed"
)

var (
	ErrCancelInvalidState   = errors.New("maintenance: request cannot be cancelled in its current state")
	ErrCompleteInvalidState = errors.New("maintenance: only in-progress requests can be completed")
	ErrWrongOrganization    = errors.New("maintenance: request belongs to another organization")
	ErrInvalidPriority      = errors.New("maintenance: invalid priority")
)

type Service struct {
	pool        TxBeginner
	repo        Repository
	outbox      OutboxWriter
	log         *zap.Logger
	idGenerator func() string
	now         func() time.Time
}

type CreateParams struct {
	OrganizationID  string
	PropertyID      string
	CreatedByUserID string
	Title           string
	Description     string
	Location        string
	Priority        Priority
}

type ListResult struct {
	Items []Request
	Total int
}

func NewService(pool TxBeginner, repo Repository, outbox OutboxWriter, log *zap.Logger) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		outbox:      outbox,
		log:         logger.OrNop(log),
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if params.OrganizationID == "" {
		return Request{}, fmt.Errorf("maintenance: missing organization id")
	}
	if params.PropertyID == "" {
		return Request{}, fmt.Errorf("maintenance: missing property id")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return Request{}, fmt.Errorf("maintenance: title required")
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}
	if !params.Priority.Valid() {
		return Request{}, ErrInvalidPriority
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("maintenance: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req := Request{
		ID:             s.idGenerator(),
		OrganizationID: params.OrganizationID,
		PropertyID:     params.PropertyID,
		Title:          title,
		Description:    strings.TrimSpace(params.Description),
		Location:       strings.TrimSpace(params.Location),
		Priority:       params.Priority,
		Status:         StatusOpen,
	}
	if params.CreatedByUserID != "" {
		creator := params.CreatedByUserID
		req.CreatedByUserID = &creator
	}

	created, err := s.repo.Create(ctx, tx, req)
	if err != nil {
		return Request{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"request_id":      created.ID,
			"organization_id": created.OrganizationID,
			"property_id":     created.PropertyID,
			"priority":        created.Priority,
			"status":          created.Status,
		}
		if err := s.outbox.Enqueue(ctx, tx, TopicRequestCreated, payload); err != nil {
			return Request{}, fmt.Errorf("maintenance: enqueue outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("maintenance: commit tx: %w", err)
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// Get loads a request, scoped to organizationID when it is non-empty.
func (s *Service) Get(ctx context.Context, id, organizationID string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if organizationID != "" && req.OrganizationID != organizationID {
		return Request{}, ErrNotFound
	}
	return req, nil
}

type CancelParams struct {
	RequestID      string
	OrganizationID string
	ActorID        string
	Reason         *string
}

func (s *Service) Cancel(ctx context.Context, params CancelParams) (Request, error) {
	if params.RequestID == "" {
		return Request{}, fmt.Errorf("maintenance: cancel missing request id")
	}

	var reason *string
	if params.Reason != nil {
		if trimmed := strings.TrimSpace(*params.Reason); trimmed != "" {
			reason = &trimmed
		}
	}

	return s.transition(ctx, params.RequestID, params.OrganizationID, TopicRequestCancelled, func(req Request) (Status, *string, error) {
		if req.Status == StatusCompleted || req.Status == StatusCancelled {
			return "", nil, ErrCancelInvalidState
		}
		return StatusCancelled, reason, nil
	})
}

type CompleteParams struct {
	RequestID      string
	OrganizationID string
	ActorID        string
}

func (s *Service) Complete(ctx context.Context, params CompleteParams) (Request, error) {
	if params.RequestID == "" {
		return Request{}, fmt.Errorf("maintenance: complete missing request id")
	}
	return s.transition(ctx, params.RequestID, params.OrganizationID, TopicRequestCompleted, func(req Request) (Status, *string, error) {
		if req.Status != StatusInProgress {
			return "", nil, ErrCompleteInvalidState
		}
		return StatusCompleted, nil, nil
	})
}

func (s *Service) transition(ctx context.Context, id, organizationID, topic string, next func(Request) (Status, *string, error)) (Request, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("maintenance: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Request{}, err
	}
	if organizationID != "" && req.OrganizationID != organizationID {
		return Request{}, ErrWrongOrganization
	}

	status, reason, err := next(req)
	if err != nil {
		return Request{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, tx, id, status, reason)
	if err != nil {
		return Request{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"request_id":      updated.ID,
			"organization_id": updated.OrganizationID,
			"previous":        req.Status,
			"status":          updated.Status,
		}
		if updated.CancelReason != nil {
			payload["reason"] = *updated.CancelReason
		}
		if err := s.outbox.Enqueue(ctx, tx, topic, payload); err != nil {
			return Request{}, fmt.Errorf("maintenance: enqueue outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("maintenance: commit tx: %w", err)
	}

	s.log.Info("maintenance request transitioned",
		zap.String("request_id", updated.ID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) MarkQuoteRequested(ctx context.Context, id string) error {
	return s.repo.MarkQuoteRequested(ctx, id)
}

func (s *Service) Assign(ctx context.Context, a Assignment) (Request, error) {
	if a.RequestID == "" || a.ContractorID == "" {
		return Request{}, fmt.Errorf("maintenance: assignment requires request and contractor")
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = s.now()
	}
	return s.repo.Assign(ctx, a)
}

// WorkflowStore exposes the service to the quote workflow, which scopes
// requests by organization itself.
type WorkflowStore struct {
	*Service
}

func (w WorkflowStore) Get(ctx context.Context, id string) (Request, error) {
	return w.Service.Get(ctx, id, "")
}
