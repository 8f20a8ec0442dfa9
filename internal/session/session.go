// Package session tracks the in-flight multi-step operation, if any, for
// each user. State is in-memory only; a restart discards pending operations.
package session

import (
	"sync"
	"time"

	"github.com/NgigiN/spendbot/internal/ledger"
)

// Kind identifies which step of a multi-turn operation a user is on.
type Kind int

const (
	// DuplicateConfirm awaits a yes/no before persisting a suspected duplicate.
	DuplicateConfirm Kind = iota
	// DeleteSelect awaits a 1-based candidate index to delete.
	DeleteSelect
	// DeleteConfirm awaits a yes/no before deleting the target row.
	DeleteConfirm
	// EditSelect awaits a 1-based candidate index to edit.
	EditSelect
	// EditFieldSelect awaits the name of the field to change.
	EditFieldSelect
	// EditValueCapture awaits the new value for the chosen field.
	EditValueCapture
)

// DefaultTTL is how long a pending operation stays valid without a reply.
const DefaultTTL = 5 * time.Minute

// Pending describes one user's in-flight operation.
type Pending struct {
	Kind Kind
	// Candidates holds matched rows while disambiguation is pending.
	Candidates []ledger.Row
	// Target is the resolved row once disambiguation is complete.
	Target ledger.Row
	// Field is the attribute being edited, one of category, amount, date,
	// description.
	Field string
	// Record is the unpersisted candidate awaiting duplicate confirmation.
	Record    ledger.Record
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store maps user IDs to their pending operation. At most one operation per
// user; Set overwrites any prior entry.
type Store struct {
	mu      sync.Mutex
	pending map[string]*Pending
	ttl     time.Duration
	now     func() time.Time
}

// NewStore returns an empty store with the given TTL (DefaultTTL if zero).
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		pending: make(map[string]*Pending),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the user's pending operation, or nil. Expired entries are
// dropped and treated as absent.
func (s *Store) Get(userID string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[userID]
	if !ok {
		return nil
	}
	if s.now().After(p.ExpiresAt) {
		delete(s.pending, userID)
		return nil
	}
	return p
}

// Set stores a pending operation for the user, replacing any prior one and
// stamping creation and expiry times.
func (s *Store) Set(userID string, p *Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p.CreatedAt = now
	p.ExpiresAt = now.Add(s.ttl)
	s.pending[userID] = p
}

// Clear drops the user's pending operation, if any.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}
