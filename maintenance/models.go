package maintenance

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Request is a reported issue at a property. ContractorID is set only once an
// approved quote assigns the work.
type Request struct {
	ID              string
	OrganizationID  string
	PropertyID      string
	CreatedByUserID *string
	Title           string
	Description     string
	Location        string
	Priority        Priority
	Status          Status
	ContractorID    *string
	QuoteRequested  bool
	QuotedAmount    *float64
	AssignedAt      *time.Time
	CompletedAt     *time.Time
	CancelReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Assigned reports whether the request has progressed past assignment.
func (r Request) Assigned() bool {
	return r.Status == StatusInProgress || r.Status == StatusCompleted
}

// Assignment binds a request to the contractor whose quote was approved.
type Assignment struct {
	RequestID    string
	ContractorID string
	QuotedAmount float64
	AssignedAt   time.Time
}

type Filters struct {
	OrganizationID string
	Status         Status
	Priority       Priority
	PropertyID     string
	ContractorID   string
	Page           int
	PageSize       int
	SortKey        string
	SortOrder      string
}
