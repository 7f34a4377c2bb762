// Package mutate is the only write path for local domain mutations.
// Every operation couples the entity write with a mutation-queue
// enqueue in one SQLite transaction: the queue never holds an entry
// whose entity write didn't commit, and no local mutation escapes the
// queue. Reconciler writes intentionally bypass this package.
package mutate

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tmachado/splitsync/internal/bus"
	"github.com/tmachado/splitsync/internal/store"
	"go.uber.org/zap"
)

// ValidationError rejects malformed input before any store interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Mutator applies domain mutations transactionally and announces them
// on the bus after commit.
type Mutator struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	now    func() int64
}

// New creates a mutator.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Mutator {
	return &Mutator{
		db:     db,
		bus:    b,
		logger: logger,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the mutation clock, for tests.
func (m *Mutator) SetClock(fn func() int64) { m.now = fn }

// step is one entity write plus its queue entry inside an apply.
type step struct {
	et       store.EntityType
	entityID string
	op       store.OperationType
	metadata string
	write    func(tx *sql.Tx) error
}

// apply runs every step's write and enqueue in a single transaction.
// Any failure rolls the whole batch back; events are published only
// after a durable commit.
func (m *Mutator) apply(ownerID string, steps ...step) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin mutation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := m.now()
	for _, s := range steps {
		if err := s.write(tx); err != nil {
			return fmt.Errorf("write %s %s: %w", s.et, s.entityID, err)
		}
		if err := m.db.EnqueueTx(tx, ownerID, s.et, s.entityID, s.op, s.metadata, now); err != nil {
			return fmt.Errorf("enqueue %s %s: %w", s.et, s.entityID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mutation: %w", err)
	}

	for _, s := range steps {
		m.bus.Publish(bus.EntityMutated{
			OwnerID:    ownerID,
			EntityType: s.et,
			EntityID:   s.entityID,
			Operation:  s.op,
		})
	}
	return nil
}

// SaveProfile creates or updates the owner's user row.
func (m *Mutator) SaveProfile(ownerID string, profile *store.User) error {
	if profile.ID == "" {
		return &ValidationError{Field: "user.id", Reason: "must not be empty"}
	}

	existing, err := m.db.GetUser(profile.ID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	now := m.now()
	op := store.OpUpdate
	u := *profile
	u.UpdatedAt = now
	if existing == nil {
		op = store.OpCreate
		u.CreatedAt = now
	} else {
		u.CreatedAt = existing.CreatedAt
	}

	return m.apply(ownerID, step{
		et:       store.EntityUser,
		entityID: u.ID,
		op:       op,
		write:    func(tx *sql.Tx) error { return m.db.UpsertUserTx(tx, &u) },
	})
}
