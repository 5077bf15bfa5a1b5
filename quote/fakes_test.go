package quote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/property"
)

var errInjected = errors.New("injected failure")

// memQuotes mirrors the Postgres constraints that matter to the workflow:
// one row per (request, contractor) and one approved quote per request.
type memQuotes struct {
	mu     sync.Mutex
	quotes map[string]Quote
	logs   []LogEntry
	fail   map[string]error
}

func newMemQuotes() *memQuotes {
	return &memQuotes{quotes: map[string]Quote{}, fail: map[string]error{}}
}

func (m *memQuotes) failWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *memQuotes) seed(q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.ID] = q
}

func (m *memQuotes) snapshot(id string) Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotes[id]
}

func (m *memQuotes) logsFor(quoteID string) []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for _, e := range m.logs {
		if e.QuoteID == quoteID {
			out = append(out, e)
		}
	}
	return out
}

func (m *memQuotes) count(requestID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.quotes {
		if q.RequestID == requestID {
			n++
		}
	}
	return n
}

func (m *memQuotes) Get(_ context.Context, id string) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Get"]; err != nil {
		return Quote{}, err
	}
	q, ok := m.quotes[id]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

func (m *memQuotes) FindForContractor(_ context.Context, requestID, contractorID string) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["FindForContractor"]; err != nil {
		return Quote{}, err
	}
	for _, q := range m.quotes {
		if q.RequestID == requestID && q.ContractorID == contractorID {
			return q, nil
		}
	}
	return Quote{}, ErrNotFound
}

func (m *memQuotes) ListForRequest(_ context.Context, requestID string, statuses ...Status) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["ListForRequest"]; err != nil {
		return nil, err
	}
	out := []Quote{}
	for _, q := range m.quotes {
		if q.RequestID != requestID || !statusIn(q.Status, statuses) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memQuotes) ListForContractor(_ context.Context, contractorID string) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Quote{}
	for _, q := range m.quotes {
		if q.ContractorID == contractorID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memQuotes) Insert(_ context.Context, q Quote) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Insert"]; err != nil {
		return Quote{}, err
	}
	for _, existing := range m.quotes {
		if existing.RequestID == q.RequestID && existing.ContractorID == q.ContractorID {
			return Quote{}, ErrDuplicate
		}
	}
	q.CreatedAt = q.SubmittedAt
	q.UpdatedAt = q.SubmittedAt
	m.quotes[q.ID] = q
	return q, nil
}

func (m *memQuotes) Update(_ context.Context, q Quote, from Status) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Update"]; err != nil {
		return Quote{}, err
	}
	current, ok := m.quotes[q.ID]
	if !ok {
		return Quote{}, ErrNotFound
	}
	if current.Status != from {
		return Quote{}, ErrConflict
	}
	if q.Status == StatusApproved {
		for _, other := range m.quotes {
			if other.ID != q.ID && other.RequestID == q.RequestID && other.Status == StatusApproved {
				return Quote{}, ErrAlreadyAwarded
			}
		}
	}
	m.quotes[q.ID] = q
	return q, nil
}

func (m *memQuotes) RejectPending(_ context.Context, ids []string) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["RejectPending"]; err != nil {
		return nil, err
	}
	out := []Quote{}
	for _, id := range ids {
		q, ok := m.quotes[id]
		if !ok || q.Status != StatusPending {
			continue
		}
		q.Status = StatusRejected
		m.quotes[id] = q
		out = append(out, q)
	}
	return out, nil
}

func (m *memQuotes) AppendLog(_ context.Context, e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["AppendLog"]; err != nil {
		return err
	}
	e.CreatedAt = time.Unix(int64(len(m.logs)), 0)
	m.logs = append(m.logs, e)
	return nil
}

func (m *memQuotes) ListLogs(_ context.Context, quoteID string) ([]LogEntry, error) {
	return m.logsFor(quoteID), nil
}

func statusIn(s Status, list []Status) bool {
	if len(list) == 0 {
		return true
	}
	for _, candidate := range list {
		if s == candidate {
			return true
		}
	}
	return false
}

type memRequests struct {
	mu    sync.Mutex
	items map[string]maintenance.Request
	fail  map[string]error
}

func (m *memRequests) get(id string) maintenance.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memRequests) Get(_ context.Context, id string) (maintenance.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Get"]; err != nil {
		return maintenance.Request{}, err
	}
	r, ok := m.items[id]
	if !ok {
		return maintenance.Request{}, maintenance.ErrNotFound
	}
	return r, nil
}

func (m *memRequests) MarkQuoteRequested(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["MarkQuoteRequested"]; err != nil {
		return err
	}
	r, ok := m.items[id]
	if !ok {
		return maintenance.ErrNotFound
	}
	r.QuoteRequested = true
	m.items[id] = r
	return nil
}

func (m *memRequests) Assign(_ context.Context, a maintenance.Assignment) (maintenance.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Assign"]; err != nil {
		return maintenance.Request{}, err
	}
	r, ok := m.items[a.RequestID]
	if !ok {
		return maintenance.Request{}, maintenance.ErrNotFound
	}
	if r.Status == maintenance.StatusCompleted || r.Status == maintenance.StatusCancelled {
		return maintenance.Request{}, maintenance.ErrNotAssignable
	}
	contractorID, amount, at := a.ContractorID, a.QuotedAmount, a.AssignedAt
	r.ContractorID = &contractorID
	r.QuotedAmount = &amount
	r.AssignedAt = &at
	r.Status = maintenance.StatusInProgress
	m.items[a.RequestID] = r
	return r, nil
}

type memContractors map[string]contractor.Profile

func (m memContractors) GetByID(_ context.Context, id string) (contractor.Profile, error) {
	p, ok := m[id]
	if !ok {
		return contractor.Profile{}, contractor.ErrNotFound
	}
	return p, nil
}

func (m memContractors) GetByUserID(_ context.Context, userID string) (contractor.Profile, error) {
	for _, p := range m {
		if p.UserID != nil && *p.UserID == userID {
			return p, nil
		}
	}
	return contractor.Profile{}, contractor.ErrNotFound
}

type memProperties struct {
	items map[string]property.Profile
	err   error
}

func (m *memProperties) GetByID(_ context.Context, id string) (property.Profile, error) {
	if m.err != nil {
		return property.Profile{}, m.err
	}
	p, ok := m.items[id]
	if !ok {
		return property.Profile{}, property.ErrNotFound
	}
	return p, nil
}

// recordingNotifier keeps every delivery and fails for the configured users.
type recordingNotifier struct {
	mu        sync.Mutex
	notes     []notify.Notification
	emails    []notify.Email
	failUsers map[string]bool
	emailErr  error
	notifyErr error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notifyErr != nil || r.failUsers[n.UserID] {
		return errInjected
	}
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) SendEmail(_ context.Context, e notify.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailErr != nil {
		return r.emailErr
	}
	r.emails = append(r.emails, e)
	return nil
}

func (r *recordingNotifier) forUser(userID string) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	quotes      *memQuotes
	requests    *memRequests
	contractors memContractors
	properties  *memProperties
	notifier    *recordingNotifier
	now         time.Time
	deps        Deps
}

const (
	orgID       = "org-1"
	otherOrgID  = "org-2"
	requestID   = "req-1"
	managerUser = "user-manager"
)

func strPtr(s string) *string { return &s }

// newFixture seeds one open request at a property with a landlord, and
// contractors A, B and D in org-1 plus X in org-2.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		quotes: newMemQuotes(),
		requests: &memRequests{
			items: map[string]maintenance.Request{
				requestID: {
					ID:              requestID,
					OrganizationID:  orgID,
					PropertyID:      "prop-1",
					CreatedByUserID: strPtr(managerUser),
					Title:           "Leaking tap",
					Location:        "Kitchen",
					Priority:        maintenance.PriorityHigh,
					Status:          maintenance.StatusOpen,
				},
			},
			fail: map[string]error{},
		},
		contractors: memContractors{
			"con-a": {ID: "con-a", OrganizationID: orgID, UserID: strPtr("user-a"), CompanyName: "Acme Plumbing", Email: "a@example.com"},
			"con-b": {ID: "con-b", OrganizationID: orgID, UserID: strPtr("user-b"), CompanyName: "Best Pipes", Email: "b@example.com"},
			"con-d": {ID: "con-d", OrganizationID: orgID, UserID: strPtr("user-d"), CompanyName: "Drip Fix", Email: "d@example.com"},
			"con-x": {ID: "con-x", OrganizationID: otherOrgID, UserID: strPtr("user-x"), CompanyName: "Elsewhere Ltd"},
		},
		properties: &memProperties{items: map[string]property.Profile{
			"prop-1": {
				ID:                  "prop-1",
				OrganizationID:      orgID,
				AddressLine1:        "1 High Street",
				City:                "Leeds",
				Postcode:            "LS1 1AA",
				PracticeLeaderName:  strPtr("Pat Leader"),
				PracticeLeaderPhone: strPtr("0113 000 0000"),
				LandlordName:        strPtr("Lee Landlord"),
				LandlordEmail:       strPtr("landlord@example.com"),
			},
		}},
		notifier: &recordingNotifier{failUsers: map[string]bool{}},
		now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	var seq atomic.Int64
	f.deps = Deps{
		Quotes:      f.quotes,
		Requests:    f.requests,
		Contractors: f.contractors,
		Properties:  f.properties,
		Notifier:    f.notifier,
		Now:         func() time.Time { return f.now },
		NewID:       func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
	}
	return f
}

func (f *fixture) seedQuote(id, contractorID string, status Status, amount float64) Quote {
	q := Quote{
		ID:             id,
		OrganizationID: orgID,
		RequestID:      requestID,
		ContractorID:   contractorID,
		Amount:         amount,
		Description:    "seeded",
		Status:         status,
		SubmittedAt:    f.now.Add(-time.Hour),
	}
	if status == StatusApproved {
		at := f.now.Add(-time.Minute)
		q.ApprovedAt = &at
	}
	f.quotes.seed(q)
	return q
}

func stepsOf(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Step)
	}
	return out
}
