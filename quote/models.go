package quote

import "time"

type Status string

const (
	StatusRequested Status = "requested"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

type Action string

const (
	ActionCreated        Action = "created"
	ActionUpdated        Action = "updated"
	ActionResubmitted    Action = "resubmitted"
	ActionQuoteRequested Action = "quote_requested"
	ActionRejected       Action = "rejected"
	ActionApproved       Action = "approved"
)

const (
	// PlaceholderAmount is stored while a quote is requested and no bid exists yet.
	PlaceholderAmount = 1.0
	// MaxAmount is the exclusive upper bound of a numeric(12,2) amount.
	MaxAmount = 1e10
	// DefaultRequestNote is used when a quote request carries no notes.
	DefaultRequestNote = "Quote requested"
)

// Quote is one contractor's bid against one maintenance request.
type Quote struct {
	ID             string
	OrganizationID string
	RequestID      string
	ContractorID   string
	Amount         float64
	Description    string
	Status         Status
	SubmittedAt    time.Time
	ApprovedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasBid reports whether Amount is a real price rather than the placeholder.
func (q Quote) HasBid() bool {
	return q.Status != StatusRequested
}

// LogEntry is an append-only audit record of a quote transition.
type LogEntry struct {
	ID             string
	QuoteID        string
	RequestID      string
	ContractorID   string
	OrganizationID string
	Action         Action
	OldAmount      *float64
	NewAmount      *float64
	OldDescription *string
	NewDescription *string
	ActorUserID    *string
	CreatedAt      time.Time
}

// IncludeInfo selects which site details are embedded in a quote request
// notification.
type IncludeInfo struct {
	PropertyAddress       bool
	Location              bool
	Priority              bool
	PracticeLeaderName    bool
	PracticeLeaderContact bool
}

// Warning records a best-effort step that failed without failing the operation.
type Warning struct {
	Step string
	Err  error
}

func (w Warning) Error() string {
	return w.Step + ": " + w.Err.Error()
}

func (w Warning) Unwrap() error {
	return w.Err
}
