// Package ledger defines the persistent expense store and its backends.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/NgigiN/spendbot/internal/clock"
)

// ErrRowVanished reports that a row handle no longer points at a live row.
var ErrRowVanished = errors.New("ledger row no longer exists")

// Record is one expense as stored in the ledger.
type Record struct {
	// Date is the canonical DD/MM/YYYY string.
	Date        string
	Category    string
	Amount      float64
	Description string
	// Timestamp is the canonical DD/MM/YYYY HH:MM:SS creation instant, set
	// when the record is persisted. May be empty on rows written by hand.
	Timestamp string
}

// Time resolves the record's instant: the creation timestamp when present,
// otherwise the expense date at midnight. The zero time means neither parsed.
func (r Record) Time() time.Time {
	if r.Timestamp != "" {
		if t, err := clock.ParseTimestamp(r.Timestamp); err == nil {
			return t
		}
	}
	if t, err := clock.ParseDate(r.Date); err == nil {
		return t
	}
	return time.Time{}
}

// Ref locates a stored row. It is opaque to callers and stable across calls
// within a session.
type Ref int64

// Row pairs a record with its location in the store.
type Row struct {
	Record
	Ref Ref
}

// Store is the ledger backend contract.
type Store interface {
	// Append adds a record at the end of the ledger.
	Append(ctx context.Context, rec Record) error
	// ListSince returns the rows dated or stamped within the trailing number
	// of days, oldest first.
	ListSince(ctx context.Context, days int) ([]Row, error)
	// UpdateAt replaces the record at ref.
	UpdateAt(ctx context.Context, ref Ref, rec Record) error
	// DeleteAt removes the row at ref.
	DeleteAt(ctx context.Context, ref Ref) error
}
