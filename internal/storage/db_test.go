package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/spendbot/internal/clock"
	"github.com/NgigiN/spendbot/internal/ledger"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func TestLedgerRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	now := clock.Now()
	rec := ledger.Record{
		Date:        clock.FormatDate(now),
		Category:    "Coffee",
		Amount:      3.50,
		Description: "Coffee",
		Timestamp:   clock.Timestamp(now),
	}
	require.NoError(t, db.Append(ctx, rec))

	rows, err := db.ListSince(ctx, 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec, rows[0].Record)

	updated := rec
	updated.Amount = 4.25
	require.NoError(t, db.UpdateAt(ctx, rows[0].Ref, updated))

	rows, err = db.ListSince(ctx, 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 4.25, rows[0].Amount, 0.005)

	require.NoError(t, db.DeleteAt(ctx, rows[0].Ref))
	rows, err = db.ListSince(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListSinceWindow(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	old := clock.Now().AddDate(0, 0, -45)
	require.NoError(t, db.Append(ctx, ledger.Record{
		Date:      clock.FormatDate(old),
		Category:  "Rent",
		Amount:    800,
		Timestamp: clock.Timestamp(old),
	}))
	require.NoError(t, db.Append(ctx, ledger.Record{
		Date:      clock.FormatDate(clock.Now()),
		Category:  "Coffee",
		Amount:    3.50,
		Timestamp: clock.Timestamp(clock.Now()),
	}))

	rows, err := db.ListSince(ctx, 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Coffee", rows[0].Category)
}

func TestUpdateMissingRow(t *testing.T) {
	db := newTestDatabase(t)
	err := db.UpdateAt(context.Background(), ledger.Ref(99), ledger.Record{Category: "X"})
	assert.ErrorIs(t, err, ledger.ErrRowVanished)
}

func TestBudgets(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	budgets, err := db.Budgets(ctx)
	require.NoError(t, err)
	assert.Empty(t, budgets)

	require.NoError(t, db.SetBudget(ctx, "Food", 300))
	// Same category in a different case replaces, not duplicates.
	require.NoError(t, db.SetBudget(ctx, "food", 350))

	budgets, err = db.Budgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.InDelta(t, 350, budgets["food"], 0.005)
}
