package quote

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"maintflow/maintenance"
	"maintflow/property"
)

// RequestService asks contractors to bid on maintenance requests.
type RequestService struct {
	core
}

func NewRequestService(d Deps) *RequestService {
	return &RequestService{core: newCore(d)}
}

type RequestQuoteParams struct {
	RequestID    string
	ContractorID string
	// OrganizationID scopes the request lookup; empty skips the check.
	OrganizationID string
	ActorUserID    string
	Include        IncludeInfo
	Notes          string
}

type RequestQuoteResult struct {
	Quote    Quote
	Created  bool
	Warnings []Warning
}

// RequestQuote puts the (request, contractor) quote into the requested state,
// inserting it on first use. Calling it again for the same pair overwrites
// the description rather than adding a row. Only the quote write is fatal.
func (s *RequestService) RequestQuote(ctx context.Context, p RequestQuoteParams) (RequestQuoteResult, error) {
	if p.RequestID == "" || p.ContractorID == "" {
		return RequestQuoteResult{}, ErrMissingID
	}

	req, err := s.loadRequest(ctx, p.RequestID, p.OrganizationID)
	if err != nil {
		return RequestQuoteResult{}, err
	}
	if closed(req) {
		return RequestQuoteResult{}, ErrRequestClosed
	}
	profile, err := s.loadContractor(ctx, p.ContractorID)
	if err != nil {
		return RequestQuoteResult{}, err
	}
	if profile.OrganizationID != req.OrganizationID {
		return RequestQuoteResult{}, ErrCrossTenant
	}

	note := strings.TrimSpace(p.Notes)
	if note == "" {
		note = DefaultRequestNote
	}

	q, prior, err := s.upsertRequested(ctx, req, profile.ID, note, s.now())
	if err != nil {
		return RequestQuoteResult{}, err
	}
	res := RequestQuoteResult{Quote: q, Created: prior == nil}

	if err := s.appendLog(ctx, q, ActionQuoteRequested, p.ActorUserID, prior, &q); err != nil {
		s.warn(&res.Warnings, q, "log", err)
	}
	if err := s.requests.MarkQuoteRequested(ctx, req.ID); err != nil {
		s.warn(&res.Warnings, q, "mark_quote_requested", err)
	}

	var prop *property.Profile
	if s.properties != nil {
		found, err := s.properties.GetByID(ctx, req.PropertyID)
		if err != nil {
			s.warn(&res.Warnings, q, "property_lookup", err)
		} else {
			prop = &found
		}
	}

	n, email := quoteRequestedMessage(req, prop, p.Include, note)
	if err := s.reachContractor(ctx, profile, n, email); err != nil {
		s.warn(&res.Warnings, q, "notify_contractor", err)
	}

	s.log.Info("quote requested",
		zap.String("quote_id", q.ID),
		zap.String("request_id", q.RequestID),
		zap.String("contractor_id", q.ContractorID),
		zap.Bool("created", res.Created),
	)
	return res, nil
}

// upsertRequested returns the written quote and the row it replaced, or nil
// when it inserted.
func (s *RequestService) upsertRequested(ctx context.Context, req maintenance.Request, contractorID, note string, now time.Time) (Quote, *Quote, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := s.quotes.FindForContractor(ctx, req.ID, contractorID)
		if errors.Is(err, ErrNotFound) {
			created, err := s.quotes.Insert(ctx, Quote{
				ID:             s.newID(),
				OrganizationID: req.OrganizationID,
				RequestID:      req.ID,
				ContractorID:   contractorID,
				Amount:         PlaceholderAmount,
				Description:    note,
				Status:         StatusRequested,
				SubmittedAt:    now,
			})
			if errors.Is(err, ErrDuplicate) {
				continue
			}
			if err != nil {
				return Quote{}, nil, err
			}
			return created, nil, nil
		}
		if err != nil {
			return Quote{}, nil, err
		}

		if !CanTransition(existing.Status, StatusRequested) {
			return Quote{}, nil, ErrInvalidTransition
		}
		next := existing
		next.Status = StatusRequested
		next.Amount = PlaceholderAmount
		next.Description = note
		next.SubmittedAt = now
		updated, err := s.quotes.Update(ctx, next, existing.Status)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return Quote{}, nil, err
		}
		return updated, &existing, nil
	}
	return Quote{}, nil, ErrConflict
}
