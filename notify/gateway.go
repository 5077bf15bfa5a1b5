package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"maintflow/logger"
)

// Inbox persists in-app notifications.
type Inbox interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Publisher fans stored notifications out to live clients.
type Publisher interface {
	Publish(ctx context.Context, n Notification) (string, error)
}

// Gateway is the single entry point the workflow uses to reach users.
type Gateway struct {
	inbox     Inbox
	mailer    Mailer
	publisher Publisher
	baseURL   string
	log       *zap.Logger
}

// NewGateway wires a gateway. publisher may be nil.
func NewGateway(inbox Inbox, mailer Mailer, publisher Publisher, baseURL string, log *zap.Logger) *Gateway {
	return &Gateway{
		inbox:     inbox,
		mailer:    mailer,
		publisher: publisher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       logger.OrNop(log),
	}
}

// Notify stores an inbox row for n.UserID and pushes it to live clients.
// Only the inbox write can fail the call; a failed push is logged.
func (g *Gateway) Notify(ctx context.Context, n Notification) error {
	if n.UserID == "" {
		return ErrMissingUser
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	n.Link = g.absolute(n.Link)

	stored, err := g.inbox.Insert(ctx, n)
	if err != nil {
		return fmt.Errorf("notify: store notification: %w", err)
	}

	if g.publisher != nil {
		if _, err := g.publisher.Publish(ctx, stored); err != nil {
			g.log.Warn("notification push failed",
				zap.String("notification_id", stored.ID),
				zap.String("user_id", stored.UserID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// SendEmail hands email to the configured mailer.
func (g *Gateway) SendEmail(ctx context.Context, email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return ErrMissingAddress
	}
	if g.mailer == nil {
		return fmt.Errorf("notify: no mailer configured")
	}
	return g.mailer.Send(ctx, email)
}

func (g *Gateway) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return g.inbox.ListForUser(ctx, userID, limit)
}

func (g *Gateway) MarkRead(ctx context.Context, id, userID string) error {
	return g.inbox.MarkRead(ctx, id, userID)
}

func (g *Gateway) absolute(link string) string {
	if link == "" || g.baseURL == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return g.baseURL + link
}
