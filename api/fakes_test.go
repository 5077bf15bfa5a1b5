package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"maintflow/auth"
	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/quote"
)

const (
	managerToken    = "manager-token"
	contractorToken = "contractor-token"
	orphanToken     = "orphan-token"
)

type fakeAuth struct {
	tokens map[string]auth.Claims
	users  map[string]auth.User
}

func newFakeAuth() *fakeAuth {
	org := "org-1"
	return &fakeAuth{
		tokens: map[string]auth.Claims{
			managerToken:    {UserID: "user-manager", Role: auth.RoleManager, OrganizationID: "org-1"},
			contractorToken: {UserID: "user-a", Role: auth.RoleContractor, OrganizationID: "org-1"},
			orphanToken:     {UserID: "user-orphan", Role: auth.RoleManager},
		},
		users: map[string]auth.User{
			"user-manager": {ID: "user-manager", OrganizationID: &org, Email: "manager@example.com", FullName: "Mia Manager", Role: auth.RoleManager},
		},
	}
}

func (f *fakeAuth) VerifyToken(token string) (auth.Claims, error) {
	claims, ok := f.tokens[token]
	if !ok {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return claims, nil
}

func (f *fakeAuth) Register(_ context.Context, req auth.RegisterRequest) (*auth.User, error) {
	if len(req.Password) < 8 {
		return nil, auth.ErrWeakPassword
	}
	return &auth.User{ID: "user-new", Email: req.Email, FullName: req.FullName, Role: auth.RoleManager}, nil
}

func (f *fakeAuth) Login(_ context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	if req.Email != "manager@example.com" || req.Password != "correct-horse" {
		return auth.LoginResult{}, auth.ErrInvalidCredentials
	}
	return auth.LoginResult{Token: managerToken, User: f.users["user-manager"]}, nil
}

func (f *fakeAuth) GetUserByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &u, nil
}

type fakeRequests struct {
	items      map[string]maintenance.Request
	lastFilter maintenance.Filters
	created    []maintenance.CreateParams
}

func (f *fakeRequests) Create(_ context.Context, p maintenance.CreateParams) (maintenance.Request, error) {
	if !p.Priority.Valid() {
		return maintenance.Request{}, maintenance.ErrInvalidPriority
	}
	f.created = append(f.created, p)
	return maintenance.Request{ID: "req-new", OrganizationID: p.OrganizationID, PropertyID: p.PropertyID, Title: p.Title, Priority: p.Priority, Status: maintenance.StatusOpen}, nil
}

func (f *fakeRequests) List(_ context.Context, filters maintenance.Filters) (maintenance.ListResult, error) {
	f.lastFilter = filters
	var out []maintenance.Request
	for _, r := range f.items {
		if r.OrganizationID == filters.OrganizationID {
			out = append(out, r)
		}
	}
	return maintenance.ListResult{Items: out, Total: len(out)}, nil
}

func (f *fakeRequests) Get(_ context.Context, id, org string) (maintenance.Request, error) {
	r, ok := f.items[id]
	if !ok || r.OrganizationID != org {
		return maintenance.Request{}, maintenance.ErrNotFound
	}
	return r, nil
}

func (f *fakeRequests) Cancel(_ context.Context, p maintenance.CancelParams) (maintenance.Request, error) {
	r, err := f.Get(context.Background(), p.RequestID, p.OrganizationID)
	if err != nil {
		return r, err
	}
	if r.Status == maintenance.StatusCompleted || r.Status == maintenance.StatusCancelled {
		return maintenance.Request{}, maintenance.ErrCancelInvalidState
	}
	r.Status = maintenance.StatusCancelled
	r.CancelReason = p.Reason
	f.items[r.ID] = r
	return r, nil
}

func (f *fakeRequests) Complete(_ context.Context, p maintenance.CompleteParams) (maintenance.Request, error) {
	r, err := f.Get(context.Background(), p.RequestID, p.OrganizationID)
	if err != nil {
		return r, err
	}
	if r.Status != maintenance.StatusInProgress {
		return maintenance.Request{}, maintenance.ErrCompleteInvalidState
	}
	r.Status = maintenance.StatusCompleted
	f.items[r.ID] = r
	return r, nil
}

// fakeWorkflow stands in for every quote service; each hook is optional.
type fakeWorkflow struct {
	requestQuote func(quote.RequestQuoteParams) (quote.RequestQuoteResult, error)
	submit       func(quote.SubmitQuoteParams) (quote.SubmitQuoteResult, error)
	approve      func(quote.ApproveParams) (quote.ApprovalResult, error)
	reject       func(quote.RejectParams) (quote.RejectResult, error)
	quotes       []quote.Quote
	logs         []quote.LogEntry
}

func (f *fakeWorkflow) RequestQuote(_ context.Context, p quote.RequestQuoteParams) (quote.RequestQuoteResult, error) {
	return f.requestQuote(p)
}

func (f *fakeWorkflow) SubmitQuote(_ context.Context, p quote.SubmitQuoteParams) (quote.SubmitQuoteResult, error) {
	return f.submit(p)
}

func (f *fakeWorkflow) Approve(_ context.Context, p quote.ApproveParams) (quote.ApprovalResult, error) {
	return f.approve(p)
}

func (f *fakeWorkflow) Reject(_ context.Context, p quote.RejectParams) (quote.RejectResult, error) {
	return f.reject(p)
}

func (f *fakeWorkflow) ListForRequest(_ context.Context, requestID, org string) ([]quote.Quote, error) {
	if org != "org-1" {
		return nil, quote.ErrRequestNotFound
	}
	var out []quote.Quote
	for _, q := range f.quotes {
		if q.RequestID == requestID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeWorkflow) ListMine(_ context.Context, userID string) ([]quote.Quote, error) {
	if userID != "user-a" {
		return nil, quote.ErrContractorNotFound
	}
	return f.quotes, nil
}

func (f *fakeWorkflow) Logs(_ context.Context, quoteID, _ string) ([]quote.LogEntry, error) {
	if len(f.logs) == 0 {
		return nil, quote.ErrNotFound
	}
	return f.logs, nil
}

type fakeContractors []contractor.Profile

func (f fakeContractors) List(_ context.Context, org string, limit int) ([]contractor.Profile, error) {
	var out []contractor.Profile
	for _, p := range f {
		if p.OrganizationID == org && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeInbox struct {
	items map[string][]notify.Notification
	read  []string
}

func (f *fakeInbox) List(_ context.Context, userID string, limit int) ([]notify.Notification, error) {
	items := f.items[userID]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id, userID string) error {
	for _, n := range f.items[userID] {
		if n.ID == id {
			f.read = append(f.read, id)
			return nil
		}
	}
	return notify.ErrNotFound
}

var userA = "user-a"

var contractorsFixture = fakeContractors{
	{ID: "con-a", OrganizationID: "org-1", UserID: &userA, CompanyName: "Acme Plumbing", Email: "acme@example.com"},
	{ID: "con-b", OrganizationID: "org-1", CompanyName: "Best Pipes", Email: "best@example.com"},
	{ID: "con-x", OrganizationID: "org-2", CompanyName: "Elsewhere"},
}

type testServer struct {
	router   *gin.Engine
	auth     *fakeAuth
	requests *fakeRequests
	workflow *fakeWorkflow
	inbox    *fakeInbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		auth: newFakeAuth(),
		requests: &fakeRequests{items: map[string]maintenance.Request{
			"req-1": {ID: "req-1", OrganizationID: "org-1", Title: "Leaking tap", Status: maintenance.StatusOpen, Priority: maintenance.PriorityHigh},
			"req-2": {ID: "req-2", OrganizationID: "org-1", Title: "Broken boiler", Status: maintenance.StatusInProgress, Priority: maintenance.PriorityMedium},
			"req-x": {ID: "req-x", OrganizationID: "org-2", Title: "Elsewhere", Status: maintenance.StatusOpen},
		}},
		workflow: &fakeWorkflow{},
		inbox: &fakeInbox{items: map[string][]notify.Notification{
			"user-a": {{ID: "n-1", UserID: "user-a", Title: "Quote requested", Type: notify.TypeQuoteRequested}},
		}},
	}
	s.router = NewRouter(Services{
		Auth:          s.auth,
		Requests:      s.requests,
		QuoteRequests: s.workflow,
		Submissions:   s.workflow,
		Approvals:     s.workflow,
		Quotes:        s.workflow,
		Contractors:   contractorsFixture,
		Inbox:         s.inbox,
	})
	return s
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, w)["code"].(string)
	return code
}
