// Package notify delivers in-app notifications and outbound email. Every
// delivery path is best-effort: callers log failures and carry on.
package notify

import (
	"errors"
	"time"
)

type Type string

const (
	TypeInfo           Type = "info"
	TypeQuoteRequested Type = "quote_requested"
	TypeQuoteSubmitted Type = "quote_submitted"
	TypeQuoteRejected  Type = "quote_rejected"
	TypeAssignment     Type = "assignment"
)

// Notification is a per-user inbox row.
type Notification struct {
	ID             string
	UserID         string
	OrganizationID string
	Title          string
	Message        string
	Type           Type
	Link           string
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Email is one outbound message.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

var (
	ErrNotFound       = errors.New("notify: notification not found")
	ErrMissingUser    = errors.New("notify: user id required")
	ErrMissingAddress = errors.New("notify: recipient address required")
)
