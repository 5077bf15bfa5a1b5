package api

import (
	"time"

	"maintflow/auth"
	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/quote"
)

type registerPayload struct {
	Email            string `json:"email" binding:"required"`
	Password         string `json:"password" binding:"required"`
	FullName         string `json:"full_name" binding:"required"`
	Role             string `json:"role"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
}

type loginPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createRequestPayload struct {
	PropertyID  string `json:"property_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Priority    string `json:"priority"`
}

type cancelPayload struct {
	Reason *string `json:"reason"`
}

type includePayload struct {
	PropertyAddress       bool `json:"property_address"`
	Location              bool `json:"location"`
	Priority              bool `json:"priority"`
	PracticeLeaderName    bool `json:"practice_leader_name"`
	PracticeLeaderContact bool `json:"practice_leader_contact"`
}

type quoteRequestPayload struct {
	ContractorID string         `json:"contractor_id" binding:"required"`
	Notes        string         `json:"notes"`
	Include      includePayload `json:"include"`
}

type submitQuotePayload struct {
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
}

type rejectPayload struct {
	Reason string `json:"reason"`
}

type userResponse struct {
	ID             string    `json:"id"`
	OrganizationID *string   `json:"organization_id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Phone          *string   `json:"phone,omitempty"`
	Role           auth.Role `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

func fromUser(u auth.User) userResponse {
	return userResponse{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		Email:          u.Email,
		FullName:       u.FullName,
		Phone:          u.Phone,
		Role:           u.Role,
		CreatedAt:      u.CreatedAt,
	}
}

type requestResponse struct {
	ID             string               `json:"id"`
	OrganizationID string               `json:"organization_id"`
	PropertyID     string               `json:"property_id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Location       string               `json:"location"`
	Priority       maintenance.Priority `json:"priority"`
	Status         maintenance.Status   `json:"status"`
	ContractorID   *string              `json:"contractor_id"`
	QuoteRequested bool                 `json:"quote_requested"`
	QuotedAmount   *float64             `json:"quoted_amount"`
	AssignedAt     *time.Time           `json:"assigned_at"`
	CompletedAt    *time.Time           `json:"completed_at"`
	CancelReason   *string              `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func fromRequest(r maintenance.Request) requestResponse {
	return requestResponse{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		PropertyID:     r.PropertyID,
		Title:          r.Title,
		Description:    r.Description,
		Location:       r.Location,
		Priority:       r.Priority,
		Status:         r.Status,
		ContractorID:   r.ContractorID,
		QuoteRequested: r.QuoteRequested,
		QuotedAmount:   r.QuotedAmount,
		AssignedAt:     r.AssignedAt,
		CompletedAt:    r.CompletedAt,
		CancelReason:   r.CancelReason,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// quoteResponse hides the placeholder amount of a requested quote.
type quoteResponse struct {
	ID           string       `json:"id"`
	RequestID    string       `json:"request_id"`
	ContractorID string       `json:"contractor_id"`
	Amount       *float64     `json:"amount"`
	Description  string       `json:"description"`
	Status       quote.Status `json:"status"`
	SubmittedAt  time.Time    `json:"submitted_at"`
	ApprovedAt   *time.Time   `json:"approved_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func fromQuote(q quote.Quote) quoteResponse {
	resp := quoteResponse{
		ID:           q.ID,
		RequestID:    q.RequestID,
		ContractorID: q.ContractorID,
		Description:  q.Description,
		Status:       q.Status,
		SubmittedAt:  q.SubmittedAt,
		ApprovedAt:   q.ApprovedAt,
		UpdatedAt:    q.UpdatedAt,
	}
	if q.HasBid() {
		amount := q.Amount
		resp.Amount = &amount
	}
	return resp
}

func fromQuotes(qs []quote.Quote) []quoteResponse {
	out := make([]quoteResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, fromQuote(q))
	}
	return out
}

type warningResponse struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

func fromWarnings(ws []quote.Warning) []warningResponse {
	out := make([]warningResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, warningResponse{Step: w.Step, Error: w.Err.Error()})
	}
	return out
}

type siblingResponse struct {
	QuoteID      string `json:"quote_id"`
	ContractorID string `json:"contractor_id"`
	Logged       bool   `json:"logged"`
	Notified     bool   `json:"notified"`
}

type approvalResponse struct {
	Quote         quoteResponse     `json:"quote"`
	Request       requestResponse   `json:"request"`
	FirstApproval bool              `json:"first_approval"`
	Rejected      []siblingResponse `json:"rejected"`
	Warnings      []warningResponse `json:"warnings"`
}

func fromApproval(res quote.ApprovalResult) approvalResponse {
	rejected := make([]siblingResponse, 0, len(res.Rejected))
	for _, s := range res.Rejected {
		rejected = append(rejected, siblingResponse{
			QuoteID:      s.QuoteID,
			ContractorID: s.ContractorID,
			Logged:       s.Logged,
			Notified:     s.Notified,
		})
	}
	return approvalResponse{
		Quote:         fromQuote(res.Quote),
		Request:       fromRequest(res.Request),
		FirstApproval: res.FirstApproval,
		Rejected:      rejected,
		Warnings:      fromWarnings(res.Warnings),
	}
}

type logResponse struct {
	ID             string       `json:"id"`
	QuoteID        string       `json:"quote_id"`
	Action         quote.Action `json:"action"`
	OldAmount      *float64     `json:"old_amount"`
	NewAmount      *float64     `json:"new_amount"`
	OldDescription *string      `json:"old_description"`
	NewDescription *string      `json:"new_description"`
	ActorUserID    *string      `json:"actor_user_id"`
	CreatedAt      time.Time    `json:"created_at"`
}

func fromLogs(entries []quote.LogEntry) []logResponse {
	out := make([]logResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, logResponse{
			ID:             e.ID,
			QuoteID:        e.QuoteID,
			Action:         e.Action,
			OldAmount:      e.OldAmount,
			NewAmount:      e.NewAmount,
			OldDescription: e.OldDescription,
			NewDescription: e.NewDescription,
			ActorUserID:    e.ActorUserID,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}

type notificationResponse struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Type      notify.Type `json:"type"`
	Link      string      `json:"link"`
	ReadAt    *time.Time  `json:"read_at"`
	CreatedAt time.Time   `json:"created_at"`
}

func fromNotifications(ns []notify.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Link:      n.Link,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type contractorResponse struct {
	ID          string  `json:"id"`
	CompanyName string  `json:"company_name"`
	ContactName string  `json:"contact_name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Trade       string  `json:"trade"`
	HasAccount  bool    `json:"has_account"`
	UserID      *string `json:"user_id,omitempty"`
}

func fromContractors(ps []contractor.Profile) []contractorResponse {
	out := make([]contractorResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, contractorResponse{
			ID:          p.ID,
			CompanyName: p.CompanyName,
			ContactName: p.ContactName,
			Email:       p.Email,
			Phone:       p.Phone,
			Trade:       p.Trade,
			HasAccount:  p.UserID != nil,
			UserID:      p.UserID,
		})
	}
	return out
}
