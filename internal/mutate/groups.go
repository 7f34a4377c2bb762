package mutate

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmachado/splitsync/internal/store"
)

// CreateGroup creates a group and its owner membership in one
// transaction, both queued for upload.
func (m *Mutator) CreateGroup(ownerID, name, currency string) (*store.Group, error) {
	if name == "" {
		return nil, &ValidationError{Field: "group.name", Reason: "must not be empty"}
	}
	if currency == "" {
		currency = "USD"
	}

	now := m.now()
	g := &store.Group{
		ID:             uuid.NewString(),
		Name:           name,
		Currency:       currency,
		CreatedBy:      ownerID,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
	member := &store.GroupMember{
		GroupID:   g.ID,
		UserID:    ownerID,
		Role:      "owner",
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := m.apply(ownerID,
		step{
			et:       store.EntityGroup,
			entityID: g.ID,
			op:       store.OpCreate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertGroupTx(tx, g) },
		},
		step{
			et:       store.EntityGroupMember,
			entityID: member.EntityID(),
			op:       store.OpCreate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertMemberTx(tx, member) },
		},
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateGroup updates the group's editable fields.
func (m *Mutator) UpdateGroup(ownerID, groupID, name, currency string) error {
	if name == "" {
		return &ValidationError{Field: "group.name", Reason: "must not be empty"}
	}

	g, err := m.db.GetGroup(groupID, false)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}

	now := m.now()
	g.Name = name
	if currency != "" {
		g.Currency = currency
	}
	g.UpdatedAt = now
	g.LastActivityAt = now

	return m.apply(ownerID, step{
		et:       store.EntityGroup,
		entityID: g.ID,
		op:       store.OpUpdate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertGroupTx(tx, g) },
	})
}

// SoftDeleteGroup tombstones the group and cascades to every child it
// owns: members, expenses, shares and balances each get their own
// delete entry, so their remote docs are removed and their local rows
// purged one by one as the drain confirms. Without the cascade the
// surviving member docs would resurrect the group on the next pull.
func (m *Mutator) SoftDeleteGroup(ownerID, groupID string) error {
	g, err := m.db.GetGroup(groupID, false)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	members, err := m.db.ListMembers(groupID, false)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	expenses, err := m.db.ListExpensesByGroup(groupID, false)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	shares, err := m.db.ListSharesByGroup(groupID, false)
	if err != nil {
		return fmt.Errorf("load shares: %w", err)
	}
	balances, err := m.db.ListBalances(groupID)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}

	now := m.now()
	g.DeletedAt = now
	g.UpdatedAt = now

	steps := []step{{
		et:       store.EntityGroup,
		entityID: g.ID,
		op:       store.OpDelete,
		write:    func(tx *sql.Tx) error { return m.db.UpsertGroupTx(tx, g) },
	}}
	for i := range members {
		mem := members[i]
		mem.DeletedAt = now
		mem.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityGroupMember,
			entityID: mem.EntityID(),
			op:       store.OpDelete,
			write:    func(tx *sql.Tx) error { return m.db.UpsertMemberTx(tx, &mem) },
		})
	}
	for i := range expenses {
		e := expenses[i]
		e.DeletedAt = now
		e.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityExpense,
			entityID: e.ID,
			op:       store.OpDelete,
			metadata: e.GroupID,
			write:    func(tx *sql.Tx) error { return m.db.UpsertExpenseTx(tx, &e) },
		})
	}
	for i := range shares {
		s := shares[i]
		s.DeletedAt = now
		s.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityExpenseShare,
			entityID: s.EntityID(),
			op:       store.OpDelete,
			metadata: s.GroupID,
			write:    func(tx *sql.Tx) error { return m.db.UpsertShareTx(tx, &s) },
		})
	}
	// Balances are derived and have no tombstone: drop the rows now,
	// the queued deletes clean up the remote copies.
	for i := range balances {
		b := balances[i]
		steps = append(steps, step{
			et:       store.EntityGroupBalance,
			entityID: b.EntityID(),
			op:       store.OpDelete,
			write:    func(tx *sql.Tx) error { return m.db.HardDeleteBalanceTx(tx, b.GroupID, b.UserID) },
		})
	}

	return m.apply(ownerID, steps...)
}

// RestoreGroup clears a group's tombstone before its delete uploaded,
// or resurrects it as a fresh upsert after. Children tombstoned by the
// same cascade (matching deleted_at) come back with it; balances are
// rebuilt by the aggregator off the restore events.
func (m *Mutator) RestoreGroup(ownerID, groupID string) error {
	g, err := m.db.GetGroup(groupID, true)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	if g.DeletedAt == 0 {
		return &ValidationError{Field: "group", Reason: "not deleted"}
	}
	members, err := m.db.ListMembers(groupID, true)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	expenses, err := m.db.ListExpensesByGroup(groupID, true)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	shares, err := m.db.ListSharesByGroup(groupID, true)
	if err != nil {
		return fmt.Errorf("load shares: %w", err)
	}

	cascadeAt := g.DeletedAt
	now := m.now()
	g.DeletedAt = 0
	g.UpdatedAt = now
	g.LastActivityAt = now

	steps := []step{{
		et:       store.EntityGroup,
		entityID: g.ID,
		op:       store.OpUpdate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertGroupTx(tx, g) },
	}}
	for i := range members {
		if members[i].DeletedAt != cascadeAt {
			continue
		}
		mem := members[i]
		mem.DeletedAt = 0
		mem.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityGroupMember,
			entityID: mem.EntityID(),
			op:       store.OpUpdate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertMemberTx(tx, &mem) },
		})
	}
	for i := range expenses {
		if expenses[i].DeletedAt != cascadeAt {
			continue
		}
		e := expenses[i]
		e.DeletedAt = 0
		e.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityExpense,
			entityID: e.ID,
			op:       store.OpUpdate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertExpenseTx(tx, &e) },
		})
	}
	for i := range shares {
		if shares[i].DeletedAt != cascadeAt {
			continue
		}
		s := shares[i]
		s.DeletedAt = 0
		s.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityExpenseShare,
			entityID: s.EntityID(),
			op:       store.OpUpdate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertShareTx(tx, &s) },
		})
	}

	return m.apply(ownerID, steps...)
}

// AddMember adds a user to a group.
func (m *Mutator) AddMember(ownerID, groupID, userID, role string) (*store.GroupMember, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "member.user_id", Reason: "must not be empty"}
	}
	if role == "" {
		role = "member"
	}

	g, err := m.db.GetGroup(groupID, false)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}

	now := m.now()
	member := &store.GroupMember{
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = m.apply(ownerID, step{
		et:       store.EntityGroupMember,
		entityID: member.EntityID(),
		op:       store.OpCreate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertMemberTx(tx, member) },
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember tombstones a membership.
func (m *Mutator) RemoveMember(ownerID, groupID, userID string) error {
	member, err := m.db.GetMember(groupID, userID, false)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if member == nil {
		return fmt.Errorf("member %s/%s: %w", groupID, userID, store.ErrNotFound)
	}

	now := m.now()
	member.DeletedAt = now
	member.UpdatedAt = now

	return m.apply(ownerID, step{
		et:       store.EntityGroupMember,
		entityID: member.EntityID(),
		op:       store.OpDelete,
		write:    func(tx *sql.Tx) error { return m.db.UpsertMemberTx(tx, member) },
	})
}

// SetGroupBalances replaces the derived balances for a group. Called by
// the balance aggregator; the balances are queued like any other
// mutation so the remote copy converges too. Rows for users absent from
// the new set (left the group, expenses since deleted) are removed and
// their remote docs queued for deletion.
func (m *Mutator) SetGroupBalances(ownerID, groupID string, balances []store.GroupBalance) error {
	current, err := m.db.ListBalances(groupID)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}

	now := m.now()
	keep := make(map[string]bool, len(balances))
	steps := make([]step, 0, len(balances))
	for i := range balances {
		b := balances[i]
		b.GroupID = groupID
		b.UpdatedAt = now
		keep[b.UserID] = true
		steps = append(steps, step{
			et:       store.EntityGroupBalance,
			entityID: b.EntityID(),
			op:       store.OpUpdate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertBalanceTx(tx, &b) },
		})
	}
	for i := range current {
		if keep[current[i].UserID] {
			continue
		}
		b := current[i]
		steps = append(steps, step{
			et:       store.EntityGroupBalance,
			entityID: b.EntityID(),
			op:       store.OpDelete,
			write:    func(tx *sql.Tx) error { return m.db.HardDeleteBalanceTx(tx, b.GroupID, b.UserID) },
		})
	}
	if len(steps) == 0 {
		return nil
	}
	return m.apply(ownerID, steps...)
}
