package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/property"
)

// ApprovalService awards a request to one quote and settles the others.
type ApprovalService struct {
	core
}

func NewApprovalService(d Deps) *ApprovalService {
	return &ApprovalService{core: newCore(d)}
}

type ApproveParams struct {
	QuoteID        string
	ActorUserID    string
	OrganizationID string
}

// SiblingOutcome reports what happened to one competing quote after the
// batch rejection.
type SiblingOutcome struct {
	QuoteID      string
	ContractorID string
	Logged       bool
	Notified     bool
	Err          error
}

type ApprovalResult struct {
	Quote   Quote
	Request maintenance.Request
	// FirstApproval is false when the quote was already approved.
	FirstApproval bool
	Rejected      []SiblingOutcome
	Warnings      []Warning
}

// approvalContext holds the best-effort lookups used for message content.
type approvalContext struct {
	request    *maintenance.Request
	property   *property.Profile
	contractor *contractor.Profile
}

// Approve marks the quote approved, rejects the other pending quotes on the
// same request and assigns the request to the winning contractor.
//
// Completed and cancelled requests are refused before anything is written.
// The approval write and the assignment are fatal. Sibling rejection and all
// notifications are best-effort. When the assignment fails the returned
// result still describes the steps that already took effect.
func (s *ApprovalService) Approve(ctx context.Context, p ApproveParams) (ApprovalResult, error) {
	target, err := s.loadQuote(ctx, p.QuoteID, p.OrganizationID)
	if err != nil {
		return ApprovalResult{}, err
	}
	if !CanTransition(target.Status, StatusApproved) {
		return ApprovalResult{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, target.Status, StatusApproved)
	}

	var res ApprovalResult
	actx := s.lookupContext(ctx, target, &res.Warnings)
	// A failed lookup degrades; a request known to be closed refuses the award.
	if actx.request != nil && closed(*actx.request) {
		return ApprovalResult{}, ErrRequestClosed
	}

	siblings, err := s.quotes.ListForRequest(ctx, target.RequestID, StatusPending)
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("quote: list competing quotes: %w", err)
	}
	ids := make([]string, 0, len(siblings))
	for _, sib := range siblings {
		if sib.ID != target.ID {
			ids = append(ids, sib.ID)
		}
	}

	now := s.now()
	approved, first, err := s.markApproved(ctx, target, now)
	if err != nil {
		return ApprovalResult{}, err
	}
	res.Quote = approved
	res.FirstApproval = first
	if first {
		if err := s.appendLog(ctx, approved, ActionApproved, p.ActorUserID, &target, &approved); err != nil {
			s.warn(&res.Warnings, approved, "log", err)
		}
	}

	res.Rejected = s.rejectSiblings(ctx, approved, ids, actx.request, p.ActorUserID, &res.Warnings)

	req, err := s.requests.Assign(ctx, maintenance.Assignment{
		RequestID:    approved.RequestID,
		ContractorID: approved.ContractorID,
		QuotedAmount: approved.Amount,
		AssignedAt:   now,
	})
	if err != nil {
		if errors.Is(err, maintenance.ErrNotFound) {
			return res, ErrRequestNotFound
		}
		return res, fmt.Errorf("quote: assign request: %w", err)
	}
	res.Request = req
	if actx.request == nil {
		actx.request = &req
	}

	s.confirmAssignment(ctx, approved, actx, &res.Warnings)

	s.log.Info("quote approved",
		zap.String("quote_id", approved.ID),
		zap.String("request_id", approved.RequestID),
		zap.String("contractor_id", approved.ContractorID),
		zap.Bool("first_approval", first),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// markApproved is the authoritative write. A quote that is already approved
// is returned unchanged so a repeated call can finish the remaining steps.
func (s *ApprovalService) markApproved(ctx context.Context, q Quote, now time.Time) (Quote, bool, error) {
	if q.Status == StatusApproved {
		return q, false, nil
	}
	next := q
	next.Status = StatusApproved
	next.ApprovedAt = &now

	updated, err := s.quotes.Update(ctx, next, q.Status)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, ErrConflict) {
		return Quote{}, false, err
	}

	current, gerr := s.quotes.Get(ctx, q.ID)
	if gerr != nil {
		return Quote{}, false, gerr
	}
	if current.Status == StatusApproved {
		return current, false, nil
	}
	return Quote{}, false, err
}

func (s *ApprovalService) lookupContext(ctx context.Context, q Quote, ws *[]Warning) approvalContext {
	var actx approvalContext

	req, err := s.requests.Get(ctx, q.RequestID)
	if err != nil {
		s.warn(ws, q, "request_lookup", err)
	} else {
		actx.request = &req
	}

	if actx.request != nil && s.properties != nil {
		prop, err := s.properties.GetByID(ctx, actx.request.PropertyID)
		if err != nil {
			s.warn(ws, q, "property_lookup", err)
		} else {
			actx.property = &prop
		}
	}

	profile, err := s.contractors.GetByID(ctx, q.ContractorID)
	if err != nil {
		s.warn(ws, q, "contractor_lookup", err)
	} else {
		actx.contractor = &profile
	}
	return actx
}

// rejectSiblings rejects ids in one batch, then logs and notifies each
// rejected quote independently.
func (s *ApprovalService) rejectSiblings(ctx context.Context, winner Quote, ids []string, req *maintenance.Request, actorUserID string, ws *[]Warning) []SiblingOutcome {
	if len(ids) == 0 {
		return nil
	}
	rejected, err := s.quotes.RejectPending(ctx, ids)
	if err != nil {
		s.warn(ws, winner, "reject_siblings", err)
		return nil
	}

	outcomes := make([]SiblingOutcome, 0, len(rejected))
	for _, sib := range rejected {
		outcomes = append(outcomes, s.settleSibling(ctx, sib, req, actorUserID))
	}
	return outcomes
}

func (s *ApprovalService) settleSibling(ctx context.Context, sib Quote, req *maintenance.Request, actorUserID string) SiblingOutcome {
	out := SiblingOutcome{QuoteID: sib.ID, ContractorID: sib.ContractorID}

	before := sib
	before.Status = StatusPending
	if err := s.appendLog(ctx, sib, ActionRejected, actorUserID, &before, &sib); err != nil {
		out.Err = err
		s.logFailure(sib, "log_rejection", err)
	} else {
		out.Logged = true
	}

	profile, err := s.loadContractor(ctx, sib.ContractorID)
	if err == nil {
		n, email := quoteRejectedMessage(req, sib, "")
		err = s.reachContractor(ctx, profile, n, email)
	}
	if err != nil {
		out.Err = errors.Join(out.Err, err)
		s.logFailure(sib, "notify_rejected", err)
	} else {
		out.Notified = true
	}
	return out
}

func (s *ApprovalService) confirmAssignment(ctx context.Context, q Quote, actx approvalContext, ws *[]Warning) {
	if actx.contractor != nil {
		n, email := assignmentMessage(actx.request, actx.property, q)
		if err := s.reachContractor(ctx, *actx.contractor, n, email); err != nil {
			s.warn(ws, q, "notify_assignment", err)
		}
	}

	if s.notifier == nil || actx.property == nil || actx.property.LandlordEmail == nil || strings.TrimSpace(*actx.property.LandlordEmail) == "" {
		return
	}
	if err := s.notifier.SendEmail(ctx, landlordEmail(actx.request, *actx.property, actx.contractor, q)); err != nil {
		s.warn(ws, q, "notify_landlord", err)
	}
}

type RejectParams struct {
	QuoteID        string
	ActorUserID    string
	OrganizationID string
	Reason         string
}

type RejectResult struct {
	Quote    Quote
	Warnings []Warning
}

// Reject turns down a single pending quote. Rejecting an already rejected
// quote returns it unchanged.
func (s *ApprovalService) Reject(ctx context.Context, p RejectParams) (RejectResult, error) {
	q, err := s.loadQuote(ctx, p.QuoteID, p.OrganizationID)
	if err != nil {
		return RejectResult{}, err
	}
	if q.Status == StatusRejected {
		return RejectResult{Quote: q}, nil
	}
	if q.Status != StatusPending {
		return RejectResult{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, q.Status, StatusRejected)
	}

	next := q
	next.Status = StatusRejected
	updated, err := s.quotes.Update(ctx, next, StatusPending)
	if err != nil {
		return RejectResult{}, err
	}
	res := RejectResult{Quote: updated}

	if err := s.appendLog(ctx, updated, ActionRejected, p.ActorUserID, &q, &updated); err != nil {
		s.warn(&res.Warnings, updated, "log", err)
	}

	var req *maintenance.Request
	if found, err := s.requests.Get(ctx, updated.RequestID); err == nil {
		req = &found
	}
	profile, err := s.loadContractor(ctx, updated.ContractorID)
	if err == nil {
		n, email := quoteRejectedMessage(req, updated, strings.TrimSpace(p.Reason))
		err = s.reachContractor(ctx, profile, n, email)
	}
	if err != nil {
		s.warn(&res.Warnings, updated, "notify_rejected", err)
	}
	return res, nil
}
