package mutate

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmachado/splitsync/internal/store"
)

func (m *Mutator) validateShares(amountCents int64, shares []store.ExpenseShare) error {
	if amountCents <= 0 {
		return &ValidationError{Field: "expense.amount_cents", Reason: "must be positive"}
	}
	if len(shares) == 0 {
		return &ValidationError{Field: "expense.shares", Reason: "must not be empty"}
	}
	var sum int64
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if s.UserID == "" {
			return &ValidationError{Field: "share.user_id", Reason: "must not be empty"}
		}
		if seen[s.UserID] {
			return &ValidationError{Field: "share.user_id", Reason: "duplicate user " + s.UserID}
		}
		seen[s.UserID] = true
		if s.AmountCents < 0 {
			return &ValidationError{Field: "share.amount_cents", Reason: "must not be negative"}
		}
		sum += s.AmountCents
	}
	if sum != amountCents {
		return &ValidationError{Field: "expense.shares", Reason: "share amounts must sum to the expense amount"}
	}
	return nil
}

// touchGroup bumps the group's activity clock alongside an expense
// mutation, in the same transaction and queue batch.
func (m *Mutator) touchGroup(g *store.Group, now int64) step {
	g.UpdatedAt = now
	g.LastActivityAt = now
	return step{
		et:       store.EntityGroup,
		entityID: g.ID,
		op:       store.OpUpdate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertGroupTx(tx, g) },
	}
}

// CreateExpense creates an expense with its shares, all in one
// transaction. The owning group's activity clock is bumped with it.
func (m *Mutator) CreateExpense(ownerID string, e *store.Expense, shares []store.ExpenseShare) (*store.Expense, error) {
	if e.GroupID == "" {
		return nil, &ValidationError{Field: "expense.group_id", Reason: "must not be empty"}
	}
	if e.PaidBy == "" {
		return nil, &ValidationError{Field: "expense.paid_by", Reason: "must not be empty"}
	}
	if err := m.validateShares(e.AmountCents, shares); err != nil {
		return nil, err
	}

	g, err := m.db.GetGroup(e.GroupID, false)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("group %s: %w", e.GroupID, store.ErrNotFound)
	}

	now := m.now()
	exp := *e
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.Currency == "" {
		exp.Currency = g.Currency
	}
	if exp.ExpenseDate == 0 {
		exp.ExpenseDate = now
	}
	exp.CreatedAt = now
	exp.UpdatedAt = now

	steps := []step{{
		et:       store.EntityExpense,
		entityID: exp.ID,
		op:       store.OpCreate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertExpenseTx(tx, &exp) },
	}}
	for i := range shares {
		s := shares[i]
		s.ExpenseID = exp.ID
		s.GroupID = exp.GroupID
		s.CreatedAt = now
		s.UpdatedAt = now
		steps = append(steps, step{
			et:       store.EntityExpenseShare,
			entityID: s.EntityID(),
			op:       store.OpCreate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertShareTx(tx, &s) },
		})
	}
	steps = append(steps, m.touchGroup(g, now))

	if err := m.apply(ownerID, steps...); err != nil {
		return nil, err
	}
	return &exp, nil
}

// UpdateExpense rewrites an expense and replaces its share set. Shares
// missing from the new set are tombstoned with delete entries.
func (m *Mutator) UpdateExpense(ownerID string, e *store.Expense, shares []store.ExpenseShare) error {
	if e.ID == "" {
		return &ValidationError{Field: "expense.id", Reason: "must not be empty"}
	}
	if err := m.validateShares(e.AmountCents, shares); err != nil {
		return err
	}

	existing, err := m.db.GetExpense(e.ID, false)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("expense %s: %w", e.ID, store.ErrNotFound)
	}
	g, err := m.db.GetGroup(existing.GroupID, false)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return fmt.Errorf("group %s: %w", existing.GroupID, store.ErrNotFound)
	}
	current, err := m.db.ListSharesByExpense(e.ID, false)
	if err != nil {
		return fmt.Errorf("load shares: %w", err)
	}

	now := m.now()
	exp := *e
	exp.GroupID = existing.GroupID
	exp.CreatedAt = existing.CreatedAt
	if exp.Currency == "" {
		exp.Currency = existing.Currency
	}
	if exp.ExpenseDate == 0 {
		exp.ExpenseDate = existing.ExpenseDate
	}
	exp.UpdatedAt = now

	steps := []step{{
		et:       store.EntityExpense,
		entityID: exp.ID,
		op:       store.OpUpdate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertExpenseTx(tx, &exp) },
	}}

	wanted := make(map[string]bool, len(shares))
	for i := range shares {
		s := shares[i]
		s.ExpenseID = exp.ID
		s.GroupID = exp.GroupID
		s.UpdatedAt = now
		if s.CreatedAt == 0 {
			s.CreatedAt = now
		}
		wanted[s.UserID] = true
		steps = append(steps, step{
			et:       store.EntityExpenseShare,
			entityID: s.EntityID(),
			op:       store.OpUpdate,
			write:    func(tx *sql.Tx) error { return m.db.UpsertShareTx(tx, &s) },
		})
	}
	// Tombstone shares dropped by the edit.
	for i := range current {
		if wanted[current[i].UserID] {
			continue
		}
		s := current[i]
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
	steps = append(steps, m.touchGroup(g, now))

	return m.apply(ownerID, steps...)
}

// SoftDeleteExpense tombstones an expense and its shares. The queue
// metadata carries the group id so the uploader can resolve the parent
// path even once the tombstones are purged.
func (m *Mutator) SoftDeleteExpense(ownerID, expenseID string) error {
	e, err := m.db.GetExpense(expenseID, false)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}
	if e == nil {
		return fmt.Errorf("expense %s: %w", expenseID, store.ErrNotFound)
	}
	shares, err := m.db.ListSharesByExpense(expenseID, false)
	if err != nil {
		return fmt.Errorf("load shares: %w", err)
	}

	now := m.now()
	e.DeletedAt = now
	e.UpdatedAt = now

	steps := []step{{
		et:       store.EntityExpense,
		entityID: e.ID,
		op:       store.OpDelete,
		metadata: e.GroupID,
		write:    func(tx *sql.Tx) error { return m.db.UpsertExpenseTx(tx, e) },
	}}
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

	return m.apply(ownerID, steps...)
}

// RestoreExpense clears the tombstone on an expense and its shares.
func (m *Mutator) RestoreExpense(ownerID, expenseID string) error {
	e, err := m.db.GetExpense(expenseID, true)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}
	if e == nil {
		return fmt.Errorf("expense %s: %w", expenseID, store.ErrNotFound)
	}
	if e.DeletedAt == 0 {
		return &ValidationError{Field: "expense", Reason: "not deleted"}
	}
	shares, err := m.db.ListSharesByExpense(expenseID, true)
	if err != nil {
		return fmt.Errorf("load shares: %w", err)
	}

	now := m.now()
	e.DeletedAt = 0
	e.UpdatedAt = now

	steps := []step{{
		et:       store.EntityExpense,
		entityID: e.ID,
		op:       store.OpUpdate,
		write:    func(tx *sql.Tx) error { return m.db.UpsertExpenseTx(tx, e) },
	}}
	for i := range shares {
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
