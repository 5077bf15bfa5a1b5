package quote

import (
	"context"
	"errors"

	"maintflow/contractor"
)

// Queries serves the read side: quotes per request or contractor, and the
// audit trail.
type Queries struct {
	core
}

func NewQueries(d Deps) *Queries {
	return &Queries{core: newCore(d)}
}

// ListForRequest returns every quote on a request in submission order.
func (q *Queries) ListForRequest(ctx context.Context, requestID, organizationID string) ([]Quote, error) {
	if requestID == "" {
		return nil, ErrMissingID
	}
	if _, err := q.loadRequest(ctx, requestID, organizationID); err != nil {
		return nil, err
	}
	return q.quotes.ListForRequest(ctx, requestID)
}

// ListMine returns the quotes of the contractor linked to userID.
func (q *Queries) ListMine(ctx context.Context, userID string) ([]Quote, error) {
	profile, err := q.contractors.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, contractor.ErrNotFound) {
			return nil, ErrContractorNotFound
		}
		return nil, err
	}
	return q.quotes.ListForContractor(ctx, profile.ID)
}

// Logs returns the audit trail of a quote, oldest first.
func (q *Queries) Logs(ctx context.Context, quoteID, organizationID string) ([]LogEntry, error) {
	if _, err := q.loadQuote(ctx, quoteID, organizationID); err != nil {
		return nil, err
	}
	return q.quotes.ListLogs(ctx, quoteID)
}
