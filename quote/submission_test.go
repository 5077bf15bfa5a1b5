package quote

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSubmitQuote_UpdatesRequestedQuote(t *testing.T) {
	f := newFixture(t)
	f.seedQuote("q-a", "con-a", StatusRequested, PlaceholderAmount)

	res, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
		RequestID:    requestID,
		CallerUserID: "user-a",
		Amount:       450,
		Description:  "parts+labor",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, "q-a", res.Quote.ID)
	assert.Equal(t, StatusPending, res.Quote.Status)
	assert.Equal(t, 450.0, res.Quote.Amount)
	assert.Equal(t, "parts+labor", res.Quote.Description)
	assert.True(t, res.Quote.SubmittedAt.Equal(f.now))
	assert.Equal(t, 1, f.quotes.count(requestID))

	logs := f.quotes.logsFor("q-a")
	require.Len(t, logs, 1)
	assert.Equal(t, ActionUpdated, logs[0].Action)
	assert.Nil(t, logs[0].OldAmount, "placeholder amount is not a bid")
	require.NotNil(t, logs[0].NewAmount)
	assert.Equal(t, 450.0, *logs[0].NewAmount)
	assert.Equal(t, "seeded", *logs[0].OldDescription)
}

func TestSubmitQuote_InsertsFreshQuote(t *testing.T) {
	f := newFixture(t)

	res, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
		RequestID:    requestID,
		CallerUserID: "user-b",
		Amount:       700,
		Description:  "full replacement",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "con-b", res.Quote.ContractorID)
	assert.Equal(t, orgID, res.Quote.OrganizationID)
	assert.Equal(t, StatusPending, res.Quote.Status)

	logs := f.quotes.logsFor(res.Quote.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, ActionCreated, logs[0].Action)
	assert.Nil(t, logs[0].OldDescription)
}

func TestSubmitQuote_ResubmissionActions(t *testing.T) {
	cases := []struct {
		prior Status
		want  Action
	}{
		{StatusRejected, ActionResubmitted},
		{StatusPending, ActionResubmitted},
		{StatusRequested, ActionUpdated},
	}
	for _, tc := range cases {
		t.Run(string(tc.prior), func(t *testing.T) {
			f := newFixture(t)
			f.seedQuote("q-a", "con-a", tc.prior, 300)

			res, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
				RequestID:    requestID,
				CallerUserID: "user-a",
				Amount:       320,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Action)
			assert.Equal(t, StatusPending, f.quotes.snapshot("q-a").Status)

			logs := f.quotes.logsFor("q-a")
			require.Len(t, logs, 1)
			assert.Equal(t, tc.want, logs[0].Action)
		})
	}
}

func TestSubmitQuote_ApprovedQuoteIsFinal(t *testing.T) {
	f := newFixture(t)
	f.seedQuote("q-a", "con-a", StatusApproved, 300)

	_, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
		RequestID:    requestID,
		CallerUserID: "user-a",
		Amount:       999,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	q := f.quotes.snapshot("q-a")
	assert.Equal(t, StatusApproved, q.Status)
	assert.Equal(t, 300.0, q.Amount)
}

func TestSubmitQuote_NotifiesRequestCreator(t *testing.T) {
	f := newFixture(t)

	_, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
		RequestID:    requestID,
		CallerUserID: "user-a",
		Amount:       125.5,
	})
	require.NoError(t, err)

	notes := f.notifier.forUser(managerUser)
	require.Len(t, notes, 1)
	assert.Equal(t, "New quote received", notes[0].Title)
	assert.Contains(t, notes[0].Message, "Acme Plumbing")
	assert.Contains(t, notes[0].Message, "125.50")
}

func TestSubmitQuote_BestEffortFailures(t *testing.T) {
	f := newFixture(t)
	f.quotes.failWith("AppendLog", errInjected)
	f.notifier.notifyErr = errInjected

	res, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
		RequestID:    requestID,
		CallerUserID: "user-a",
		Amount:       80,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Quote.Status)
	assert.ElementsMatch(t, []string{"log", "notify_manager"}, stepsOf(res.Warnings))
}

func TestSubmitQuote_Errors(t *testing.T) {
	f := newFixture(t)
	svc := NewSubmissionService(f.deps)
	ctx := context.Background()

	cases := []struct {
		name   string
		params SubmitQuoteParams
		want   error
	}{
		{"zero amount", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: 0}, ErrInvalidAmount},
		{"negative amount", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: -5}, ErrInvalidAmount},
		{"nan amount", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: math.NaN()}, ErrInvalidAmount},
		{"amount rounds to zero cents", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: 0.004}, ErrInvalidAmount},
		{"amount overflows column", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: 1e10}, ErrInvalidAmount},
		{"infinite amount", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-a", Amount: math.Inf(1)}, ErrInvalidAmount},
		{"caller without contractor", SubmitQuoteParams{RequestID: requestID, CallerUserID: managerUser, Amount: 10}, ErrContractorNotFound},
		{"unknown request", SubmitQuoteParams{RequestID: "nope", CallerUserID: "user-a", Amount: 10}, ErrRequestNotFound},
		{"request in another organization", SubmitQuoteParams{RequestID: requestID, CallerUserID: "user-x", Amount: 10}, ErrRequestNotFound},
		{"missing request id", SubmitQuoteParams{CallerUserID: "user-a", Amount: 10}, ErrMissingID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitQuote(ctx, tc.params)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	assert.Equal(t, 0, f.quotes.count(requestID))
}

func TestSubmitQuote_StoreFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.seedQuote("q-a", "con-a", StatusRequested, PlaceholderAmount)
	f.quotes.failWith("Update", errInjected)

	_, err := NewSubmissionService(f.deps).SubmitQuote(context.Background(), SubmitQuoteParams{
		RequestID:    requestID,
		CallerUserID: "user-a",
		Amount:       50,
	})
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, StatusRequested, f.quotes.snapshot("q-a").Status)
	assert.Empty(t, f.quotes.logsFor("q-a"))
	assert.Empty(t, f.notifier.forUser(managerUser))
}

func TestSubmitQuote_ConcurrentSubmissionsKeepOneRow(t *testing.T) {
	f := newFixture(t)
	svc := NewSubmissionService(f.deps)

	var g errgroup.Group
	for i := 1; i <= 8; i++ {
		amount := float64(100 * i)
		g.Go(func() error {
			_, err := svc.SubmitQuote(context.Background(), SubmitQuoteParams{
				RequestID:    requestID,
				CallerUserID: "user-a",
				Amount:       amount,
			})
			if errors.Is(err, ErrConflict) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, f.quotes.count(requestID))
	quotes, err := f.quotes.ListForRequest(context.Background(), requestID)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, StatusPending, quotes[0].Status)
}
