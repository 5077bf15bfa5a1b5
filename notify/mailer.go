package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"maintflow/logger"
)

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// ResendMailer delivers email through the Resend HTTP API.
type ResendMailer struct {
	http *resty.Client
	from string
	log  *zap.Logger
}

func NewResendMailer(baseURL, apiKey, from string, log *zap.Logger) *ResendMailer {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
	})

	return &ResendMailer{http: client, from: from, log: logger.OrNop(log)}
}

func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return ErrMissingAddress
	}

	var (
		result  resendResponse
		failure resendError
	)
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(resendRequest{From: m.from, To: []string{email.To}, Subject: email.Subject, HTML: email.HTML}).
		SetResult(&result).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("notify: resend request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: resend rejected email (status %d): %s", resp.StatusCode(), failure.Message)
	}

	m.log.Debug("email sent",
		zap.String("provider_id", result.ID),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}

// LogMailer only logs emails. Used when no provider key is configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: logger.OrNop(log)}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	if strings.TrimSpace(email.To) == "" {
		return ErrMissingAddress
	}
	m.log.Info("email delivery disabled; dropping message",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}
