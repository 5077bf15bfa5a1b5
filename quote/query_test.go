package quote

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintflow/contractor"
	"maintflow/maintenance"
	"maintflow/property"
)

func TestQueries_LogsFollowTheLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requested, err := NewRequestService(f.deps).RequestQuote(ctx, RequestQuoteParams{RequestID: requestID, ContractorID: "con-a"})
	require.NoError(t, err)
	_, err = NewSubmissionService(f.deps).SubmitQuote(ctx, SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: 200})
	require.NoError(t, err)
	_, err = NewApprovalService(f.deps).Approve(ctx, ApproveParams{QuoteID: requested.Quote.ID})
	require.NoError(t, err)

	q := NewQueries(f.deps)
	logs, err := q.Logs(ctx, requested.Quote.ID, orgID)
	require.NoError(t, err)

	actions := make([]Action, 0, len(logs))
	for _, e := range logs {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []Action{ActionQuoteRequested, ActionUpdated, ActionApproved}, actions)

	_, err = q.Logs(ctx, requested.Quote.ID, otherOrgID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueries_Lists(t *testing.T) {
	f := newFixture(t)
	f.seedQuote("q1", "con-a", StatusPending, 500)
	f.seedQuote("q2", "con-b", StatusRejected, 700)
	q := NewQueries(f.deps)
	ctx := context.Background()

	all, err := q.ListForRequest(ctx, requestID, orgID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = q.ListForRequest(ctx, requestID, otherOrgID)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	mine, err := q.ListMine(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "q2", mine[0].ID)

	_, err = q.ListMine(ctx, managerUser)
	assert.ErrorIs(t, err, ErrContractorNotFound)
}

func TestLandlordEmail_EscapesMarkup(t *testing.T) {
	req := &maintenance.Request{Title: "<b>Boiler</b>"}
	prop := property.Profile{
		AddressLine1:  "2 Low Road",
		LandlordName:  strPtr("O'Neil & Sons"),
		LandlordEmail: strPtr("owner@example.com"),
	}
	c := &contractor.Profile{CompanyName: "Heat <Co>"}

	email := landlordEmail(req, prop, c, Quote{Amount: 99.5})
	assert.Equal(t, "owner@example.com", email.To)
	assert.Equal(t, "Contractor assigned: <b>Boiler</b>", email.Subject)
	assert.Contains(t, email.HTML, "&lt;b&gt;Boiler&lt;/b&gt;")
	assert.Contains(t, email.HTML, "Heat &lt;Co&gt;")
	assert.Contains(t, email.HTML, "O&#39;Neil &amp; Sons")
	assert.Contains(t, email.HTML, "99.50")
	assert.False(t, strings.Contains(email.HTML, "<b>Boiler"))
}
