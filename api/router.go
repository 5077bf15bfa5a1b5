// Package api exposes the maintenance and quote workflow over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintflow/auth"
	"maintflow/contractor"
	"maintflow/logger"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/quote"
)

type Authenticator interface {
	TokenVerifier
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

type RequestManager interface {
	Create(ctx context.Context, params maintenance.CreateParams) (maintenance.Request, error)
	List(ctx context.Context, filters maintenance.Filters) (maintenance.ListResult, error)
	Get(ctx context.Context, id, organizationID string) (maintenance.Request, error)
	Cancel(ctx context.Context, params maintenance.CancelParams) (maintenance.Request, error)
	Complete(ctx context.Context, params maintenance.CompleteParams) (maintenance.Request, error)
}

type QuoteRequester interface {
	RequestQuote(ctx context.Context, p quote.RequestQuoteParams) (quote.RequestQuoteResult, error)
}

type QuoteSubmitter interface {
	SubmitQuote(ctx context.Context, p quote.SubmitQuoteParams) (quote.SubmitQuoteResult, error)
}

type QuoteApprover interface {
	Approve(ctx context.Context, p quote.ApproveParams) (quote.ApprovalResult, error)
	Reject(ctx context.Context, p quote.RejectParams) (quote.RejectResult, error)
}

type QuoteReader interface {
	ListForRequest(ctx context.Context, requestID, organizationID string) ([]quote.Quote, error)
	ListMine(ctx context.Context, userID string) ([]quote.Quote, error)
	Logs(ctx context.Context, quoteID, organizationID string) ([]quote.LogEntry, error)
}

type ContractorLister interface {
	List(ctx context.Context, organizationID string, limit int) ([]contractor.Profile, error)
}

type Inbox interface {
	List(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Services is everything the router dispatches to. Limiter and Health may be
// nil.
type Services struct {
	Auth          Authenticator
	Requests      RequestManager
	QuoteRequests QuoteRequester
	Submissions   QuoteSubmitter
	Approvals     QuoteApprover
	Quotes        QuoteReader
	Contractors   ContractorLister
	Inbox         Inbox
	Limiter       *RateLimiter
	Health        func(ctx context.Context) error
	Logger        *zap.Logger
}

type handler struct {
	Services
	log *zap.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(s Services) *gin.Engine {
	h := &handler{Services: s, log: logger.OrNop(s.Logger)}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.log))

	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.POST("/auth/register", h.Limiter.Middleware(), h.register)
	v1.POST("/auth/login", h.Limiter.Middleware(), h.login)

	authed := v1.Group("", Authenticate(s.Auth), h.Limiter.Middleware())
	authed.GET("/me", h.me)
	authed.GET("/notifications", h.listNotifications)
	authed.POST("/notifications/:id/read", h.markNotificationRead)

	manager := authed.Group("", RequireRole(auth.RoleManager), RequireOrganization())
	manager.POST("/requests", h.createRequest)
	manager.GET("/requests", h.listRequests)
	manager.GET("/requests/:id", h.getRequest)
	manager.POST("/requests/:id/cancel", h.cancelRequest)
	manager.POST("/requests/:id/complete", h.completeRequest)
	manager.POST("/requests/:id/quote-requests", h.requestQuote)
	manager.GET("/requests/:id/quotes", h.listQuotes)
	manager.POST("/quotes/:id/approve", h.approveQuote)
	manager.POST("/quotes/:id/reject", h.rejectQuote)
	manager.GET("/quotes/:id/logs", h.quoteLogs)
	manager.GET("/contractors", h.listContractors)

	contractors := authed.Group("", RequireRole(auth.RoleContractor))
	contractors.POST("/requests/:id/quotes", h.submitQuote)
	contractors.GET("/quotes/mine", h.myQuotes)

	return r
}

func (h *handler) health(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health(c.Request.Context()); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
