package quote

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"maintflow/contractor"
	"maintflow/maintenance"
)

// SubmissionService records contractor bids.
type SubmissionService struct {
	core
}

func NewSubmissionService(d Deps) *SubmissionService {
	return &SubmissionService{core: newCore(d)}
}

type SubmitQuoteParams struct {
	RequestID string
	// CallerUserID is the authenticated user; it must map to a contractor.
	CallerUserID string
	Amount       float64
	Description  string
}

type SubmitQuoteResult struct {
	Quote    Quote
	Action   Action
	Warnings []Warning
}

// SubmitQuote prices the caller's quote for a request and moves it to
// pending. A bid after rejection is recorded as a resubmission.
func (s *SubmissionService) SubmitQuote(ctx context.Context, p SubmitQuoteParams) (SubmitQuoteResult, error) {
	if p.RequestID == "" || p.CallerUserID == "" {
		return SubmitQuoteResult{}, ErrMissingID
	}
	amount, ok := normalizeAmount(p.Amount)
	if !ok {
		return SubmitQuoteResult{}, ErrInvalidAmount
	}

	profile, err := s.contractors.GetByUserID(ctx, p.CallerUserID)
	if err != nil {
		if errors.Is(err, contractor.ErrNotFound) {
			return SubmitQuoteResult{}, ErrContractorNotFound
		}
		return SubmitQuoteResult{}, err
	}

	req, err := s.loadRequest(ctx, p.RequestID, profile.OrganizationID)
	if err != nil {
		return SubmitQuoteResult{}, err
	}
	if closed(req) {
		return SubmitQuoteResult{}, ErrRequestClosed
	}

	description := strings.TrimSpace(p.Description)
	q, prior, action, err := s.upsertPending(ctx, req, profile.ID, amount, description, s.now())
	if err != nil {
		return SubmitQuoteResult{}, err
	}
	res := SubmitQuoteResult{Quote: q, Action: action}

	if err := s.appendLog(ctx, q, action, p.CallerUserID, prior, &q); err != nil {
		s.warn(&res.Warnings, q, "log", err)
	}

	if s.notifier != nil && req.CreatedByUserID != nil {
		if err := s.notifier.Notify(ctx, quoteSubmittedMessage(req, profile, q)); err != nil {
			s.warn(&res.Warnings, q, "notify_manager", err)
		}
	}

	s.log.Info("quote submitted",
		zap.String("quote_id", q.ID),
		zap.String("request_id", q.RequestID),
		zap.String("contractor_id", q.ContractorID),
		zap.String("action", string(action)),
	)
	return res, nil
}

func (s *SubmissionService) upsertPending(ctx context.Context, req maintenance.Request, contractorID string, amount float64, description string, now time.Time) (Quote, *Quote, Action, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := s.quotes.FindForContractor(ctx, req.ID, contractorID)
		if errors.Is(err, ErrNotFound) {
			created, err := s.quotes.Insert(ctx, Quote{
				ID:             s.newID(),
				OrganizationID: req.OrganizationID,
				RequestID:      req.ID,
				ContractorID:   contractorID,
				Amount:         amount,
				Description:    description,
				Status:         StatusPending,
				SubmittedAt:    now,
			})
			if errors.Is(err, ErrDuplicate) {
				continue
			}
			if err != nil {
				return Quote{}, nil, "", err
			}
			return created, nil, ActionCreated, nil
		}
		if err != nil {
			return Quote{}, nil, "", err
		}

		if !CanTransition(existing.Status, StatusPending) {
			return Quote{}, nil, "", ErrInvalidTransition
		}
		next := existing
		next.Status = StatusPending
		next.Amount = amount
		next.Description = description
		next.SubmittedAt = now
		updated, err := s.quotes.Update(ctx, next, existing.Status)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return Quote{}, nil, "", err
		}
		return updated, &existing, SubmissionAction(existing.Status), nil
	}
	return Quote{}, nil, "", ErrConflict
}

// normalizeAmount rounds to cents and reports whether the result fits the
// stored column: at least one cent and below MaxAmount.
func normalizeAmount(amount float64) (float64, bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	cents := math.Round(amount*100) / 100
	if cents < 0.01 || cents >= MaxAmount {
		return 0, false
	}
	return cents, true
}
