package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/spendbot/internal/clock"
	"github.com/NgigiN/spendbot/internal/ledger"
	"github.com/NgigiN/spendbot/internal/session"
)

var testNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, clock.Zone)

// mockGateway records replies and plays back scripted AwaitReply answers.
type mockGateway struct {
	replies []string
	awaits  []awaitResult
}

type awaitResult struct {
	text string
	err  error
}

func (g *mockGateway) Reply(text string) error {
	g.replies = append(g.replies, text)
	return nil
}

func (g *mockGateway) AwaitReply(_ context.Context, filter func(string) bool, _ time.Duration) (string, error) {
	if len(g.awaits) == 0 {
		return "", ErrAwaitTimeout
	}
	next := g.awaits[0]
	g.awaits = g.awaits[1:]
	if next.err != nil {
		return "", next.err
	}
	if !filter(next.text) {
		return "", ErrAwaitTimeout
	}
	return next.text, nil
}

func (g *mockGateway) lastReply(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, g.replies)
	return g.replies[len(g.replies)-1]
}

// mockLedger is an in-memory ledger with injectable failures.
type mockLedger struct {
	rows      []ledger.Row
	appends   []ledger.Record
	updates   map[ledger.Ref]ledger.Record
	deletes   []ledger.Ref
	listErr   error
	appendErr error
	updateErr error
	deleteErr error
}

func (m *mockLedger) Append(_ context.Context, rec ledger.Record) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appends = append(m.appends, rec)
	return nil
}

func (m *mockLedger) ListSince(_ context.Context, _ int) ([]ledger.Row, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rows, nil
}

func (m *mockLedger) UpdateAt(_ context.Context, ref ledger.Ref, rec ledger.Record) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.updates == nil {
		m.updates = make(map[ledger.Ref]ledger.Record)
	}
	m.updates[ref] = rec
	return nil
}

func (m *mockLedger) DeleteAt(_ context.Context, ref ledger.Ref) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, ref)
	return nil
}

// mockInsight returns a fixed category.
type mockInsight struct {
	category     string
	categorizeErr error
	narrative    string
	narrativeErr error
}

func (m *mockInsight) Categorize(_ context.Context, _ string) (string, error) {
	return m.category, m.categorizeErr
}

func (m *mockInsight) Narrative(_ context.Context, _ string) (string, error) {
	return m.narrative, m.narrativeErr
}

func newTestOrchestrator(store ledger.Store, ai *mockInsight) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(store, ai, nil, session.NewStore(0), logger)
	o.now = func() time.Time { return testNow }
	return o
}

func storedRow(ref ledger.Ref, category string, amount float64, date string, age time.Duration) ledger.Row {
	return ledger.Row{
		Ref: ref,
		Record: ledger.Record{
			Date:      date,
			Category:  category,
			Amount:    amount,
			Timestamp: clock.Timestamp(testNow.Add(-age)),
		},
	}
}

func TestNewExpensePersisted(t *testing.T) {
	store := &mockLedger{}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	require.Len(t, store.appends, 1)
	rec := store.appends[0]
	assert.Equal(t, "Groceries", rec.Category)
	assert.InDelta(t, 25.50, rec.Amount, 0.005)
	assert.Equal(t, "10/06/2025", rec.Date)
	assert.Equal(t, clock.Timestamp(testNow), rec.Timestamp)
	assert.Contains(t, gw.lastReply(t), "Tracked Groceries")
}

func TestUnparseableInput(t *testing.T) {
	store := &mockLedger{}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "hello there")

	assert.Empty(t, store.appends)
	assert.Equal(t, msgNotUnderstood, gw.lastReply(t))
}

func TestAmountOnlyGetsCategorized(t *testing.T) {
	store := &mockLedger{}
	o := newTestOrchestrator(store, &mockInsight{category: "Food"})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "$45")

	require.Len(t, store.appends, 1)
	assert.Equal(t, "Food", store.appends[0].Category)
	assert.Equal(t, "$45", store.appends[0].Description)
}

func TestCategorizationFailureFallsBack(t *testing.T) {
	store := &mockLedger{}
	o := newTestOrchestrator(store, &mockInsight{categorizeErr: assert.AnError})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "$45")

	require.Len(t, store.appends, 1)
	assert.Equal(t, "Other", store.appends[0].Category)
}

func TestDuplicateConfirmedYes(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Groceries", 25.00, "10/06/2025", 10*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{awaits: []awaitResult{{text: "yes"}}}

	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	require.Len(t, store.appends, 1)
	assert.Contains(t, gw.replies[0], "duplicate")
	assert.Nil(t, o.sessions.Get("u1"))
}

func TestDuplicateDeclined(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Groceries", 25.00, "10/06/2025", 10*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{awaits: []awaitResult{{text: "no"}}}

	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	assert.Empty(t, store.appends, "declining must cancel the persist entirely")
	assert.Contains(t, gw.lastReply(t), "not saved")
	assert.Nil(t, o.sessions.Get("u1"))
}

func TestDuplicateTimeoutCancels(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Groceries", 25.00, "10/06/2025", 10*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{awaits: []awaitResult{{err: ErrAwaitTimeout}}}

	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	assert.Empty(t, store.appends)
	assert.Contains(t, gw.lastReply(t), "didn't save")
	assert.Nil(t, o.sessions.Get("u1"))
}

func TestFarAmountIsNotDuplicate(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Groceries", 23.50, "10/06/2025", 10*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	// Amounts differ by 2.0, outside the duplicate tolerance.
	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	require.Len(t, store.appends, 1)
	assert.Contains(t, gw.lastReply(t), "Tracked")
}

func TestOldRecordIsNotDuplicate(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Groceries", 25.50, "03/06/2025", 72*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	require.Len(t, store.appends, 1)
}

func TestDuplicateCategoryIsCaseSensitive(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "groceries", 25.50, "10/06/2025", 10*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "Groceries 25.50")

	require.Len(t, store.appends, 1, "case difference must not trigger the duplicate check")
}

func TestEditSingleMatchFlow(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(4, "Groceries", 25.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "edit Groceries 25.50")
	assert.Contains(t, gw.lastReply(t), "Which field")

	o.HandleMessage(ctx, gw, "u1", "amount")
	assert.Contains(t, gw.lastReply(t), "new amount")

	o.HandleMessage(ctx, gw, "u1", "30")
	require.Contains(t, store.updates, ledger.Ref(4))
	assert.InDelta(t, 30.0, store.updates[4].Amount, 0.005)
	assert.Equal(t, "Groceries", store.updates[4].Category)
	assert.Nil(t, o.sessions.Get("u1"), "pending state must be cleared after the update")
}

func TestEditInvalidFieldReprompts(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(4, "Groceries", 25.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "edit Groceries 25.50")
	o.HandleMessage(ctx, gw, "u1", "color")

	assert.Equal(t, msgFieldNames, gw.lastReply(t))
	p := o.sessions.Get("u1")
	require.NotNil(t, p)
	assert.Equal(t, session.EditFieldSelect, p.Kind)
}

func TestEditBadAmountReprompts(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(4, "Groceries", 25.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "edit Groceries 25.50")
	o.HandleMessage(ctx, gw, "u1", "amount")
	o.HandleMessage(ctx, gw, "u1", "lots")

	assert.Contains(t, gw.lastReply(t), "doesn't look like an amount")
	assert.Empty(t, store.updates)
	p := o.sessions.Get("u1")
	require.NotNil(t, p)
	assert.Equal(t, session.EditValueCapture, p.Kind)
}

func TestEditNotFound(t *testing.T) {
	store := &mockLedger{}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "edit Groceries 25.50")

	assert.Contains(t, gw.lastReply(t), "No expense matching")
	assert.Nil(t, o.sessions.Get("u1"))
}

func TestDeleteTwoCandidates(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "08/06/2025", 40*time.Hour),
		storedRow(5, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "delete Coffee 3.50")
	listing := gw.lastReply(t)
	assert.Contains(t, listing, "1. Coffee")
	assert.Contains(t, listing, "2. Coffee")

	// Out-of-range index re-prompts without advancing.
	o.HandleMessage(ctx, gw, "u1", "3")
	assert.Contains(t, gw.lastReply(t), "between 1 and 2")
	p := o.sessions.Get("u1")
	require.NotNil(t, p)
	assert.Equal(t, session.DeleteSelect, p.Kind)

	o.HandleMessage(ctx, gw, "u1", "2")
	assert.Contains(t, gw.lastReply(t), "Delete Coffee")

	o.HandleMessage(ctx, gw, "u1", "yes")
	require.Len(t, store.deletes, 1)
	assert.Equal(t, ledger.Ref(5), store.deletes[0], "the second candidate must be the one deleted")
	assert.Nil(t, o.sessions.Get("u1"))
}

func TestDeleteConfirmNo(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "delete Coffee 3.50")
	o.HandleMessage(ctx, gw, "u1", "no")

	assert.Empty(t, store.deletes)
	assert.Contains(t, gw.lastReply(t), "nothing deleted")
	assert.Nil(t, o.sessions.Get("u1"))
}

func TestDeleteConfirmGarbageReprompts(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "delete Coffee 3.50")
	o.HandleMessage(ctx, gw, "u1", "maybe")

	assert.Equal(t, msgYesNo, gw.lastReply(t))
	p := o.sessions.Get("u1")
	require.NotNil(t, p)
	assert.Equal(t, session.DeleteConfirm, p.Kind)
}

func TestDeleteMatchesByDate(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "08/06/2025", 40*time.Hour),
		storedRow(5, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	// The date argument narrows two candidates down to one.
	o.HandleMessage(context.Background(), gw, "u1", "delete Coffee 3.50 9/6/2025")

	assert.Contains(t, gw.lastReply(t), "Delete Coffee")
	p := o.sessions.Get("u1")
	require.NotNil(t, p)
	assert.Equal(t, session.DeleteConfirm, p.Kind)
	assert.Equal(t, ledger.Ref(5), p.Target.Ref)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "delete coffee 3.50")

	assert.Contains(t, gw.lastReply(t), "Delete Coffee")
}

func TestLedgerFailureClearsPending(t *testing.T) {
	store := &mockLedger{
		rows: []ledger.Row{
			storedRow(4, "Groceries", 25.50, "09/06/2025", 20*time.Hour),
		},
		updateErr: assert.AnError,
	}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "edit Groceries 25.50")
	o.HandleMessage(ctx, gw, "u1", "amount")
	o.HandleMessage(ctx, gw, "u1", "30")

	assert.Equal(t, msgLedgerTrouble, gw.lastReply(t))
	assert.Nil(t, o.sessions.Get("u1"), "ledger failure must fail closed")
}

func TestSummaryTotals(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "08/06/2025", 40*time.Hour),
		storedRow(3, "Coffee", 4.00, "09/06/2025", 20*time.Hour),
		storedRow(4, "Rent", 800, "01/06/2025", 200*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "summary")

	reply := gw.lastReply(t)
	assert.Contains(t, reply, "Coffee**: $7.50")
	assert.Contains(t, reply, "Rent**: $800.00")
	assert.Contains(t, reply, "Total**: $807.50")
}

func TestReportIncludesNarrative(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{narrative: "Mostly coffee this month."})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "report")

	assert.Contains(t, gw.lastReply(t), "Mostly coffee this month.")
}

func TestReportNarrativeFailureDegrades(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{narrativeErr: assert.AnError})
	gw := &mockGateway{}

	o.HandleMessage(context.Background(), gw, "u1", "report")

	assert.Contains(t, gw.lastReply(t), "Coffee**: $3.50")
}

func TestNewCommandReplacesStalePending(t *testing.T) {
	store := &mockLedger{rows: []ledger.Row{
		storedRow(2, "Coffee", 3.50, "09/06/2025", 20*time.Hour),
		storedRow(3, "Rent", 800, "09/06/2025", 20*time.Hour),
	}}
	o := newTestOrchestrator(store, &mockInsight{})
	gw := &mockGateway{}
	ctx := context.Background()

	o.HandleMessage(ctx, gw, "u1", "edit Coffee 3.50")
	p := o.sessions.Get("u1")
	require.NotNil(t, p)
	require.Equal(t, session.EditFieldSelect, p.Kind)

	// Abandoning the edit by clearing and issuing a delete starts fresh.
	o.sessions.Clear("u1")
	o.HandleMessage(ctx, gw, "u1", "delete Rent 800")
	p = o.sessions.Get("u1")
	require.NotNil(t, p)
	assert.Equal(t, session.DeleteConfirm, p.Kind)
	assert.Equal(t, ledger.Ref(3), p.Target.Ref)
}
