package store

import "database/sql"

const upsertExpenseSQL = `
	INSERT INTO expenses (id, group_id, paid_by, description, category, currency, amount_cents, expense_date, created_at, updated_at, deleted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		paid_by = excluded.paid_by,
		description = excluded.description,
		category = excluded.category,
		currency = excluded.currency,
		amount_cents = excluded.amount_cents,
		expense_date = excluded.expense_date,
		updated_at = excluded.updated_at,
		deleted_at = excluded.deleted_at`

func upsertExpense(ex execer, e *Expense) error {
	_, err := ex.Exec(upsertExpenseSQL,
		e.ID, e.GroupID, e.PaidBy, e.Description, e.Category, e.Currency,
		e.AmountCents, e.ExpenseDate, e.CreatedAt, e.UpdatedAt, nullMillis(e.DeletedAt))
	return err
}

// UpsertExpense inserts or updates an expense (idempotent on id).
func (db *DB) UpsertExpense(e *Expense) error { return upsertExpense(db, e) }

// UpsertExpenseTx is UpsertExpense inside an open transaction.
func (db *DB) UpsertExpenseTx(tx *sql.Tx, e *Expense) error { return upsertExpense(tx, e) }

// GetExpense returns the expense or nil when absent.
func (db *DB) GetExpense(id string, includeDeleted bool) (*Expense, error) {
	q := `
		SELECT id, group_id, paid_by, description, category, currency, amount_cents, expense_date, created_at, updated_at, COALESCE(deleted_at, 0)
		FROM expenses WHERE id = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	var e Expense
	err := db.QueryRow(q, id).
		Scan(&e.ID, &e.GroupID, &e.PaidBy, &e.Description, &e.Category, &e.Currency,
			&e.AmountCents, &e.ExpenseDate, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExpensesByGroup returns a group's expenses, newest expense date first.
func (db *DB) ListExpensesByGroup(groupID string, includeDeleted bool) ([]Expense, error) {
	q := `
		SELECT id, group_id, paid_by, description, category, currency, amount_cents, expense_date, created_at, updated_at, COALESCE(deleted_at, 0)
		FROM expenses WHERE group_id = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY expense_date DESC, id ASC`
	rows, err := db.Query(q, groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.GroupID, &e.PaidBy, &e.Description, &e.Category, &e.Currency,
			&e.AmountCents, &e.ExpenseDate, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// ApplyRemoteExpense merges a downloaded expense with last-write-wins
// on updated_at. The mutation queue is never touched.
func (db *DB) ApplyRemoteExpense(e *Expense) error {
	_, err := db.Exec(`
		INSERT INTO expenses (id, group_id, paid_by, description, category, currency, amount_cents, expense_date, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			paid_by = excluded.paid_by,
			description = excluded.description,
			category = excluded.category,
			currency = excluded.currency,
			amount_cents = excluded.amount_cents,
			expense_date = excluded.expense_date,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
		WHERE excluded.updated_at > expenses.updated_at`,
		e.ID, e.GroupID, e.PaidBy, e.Description, e.Category, e.Currency,
		e.AmountCents, e.ExpenseDate, e.CreatedAt, e.UpdatedAt, nullMillis(e.DeletedAt))
	return err
}

// HardDeleteExpense physically removes the row.
func (db *DB) HardDeleteExpense(id string) error {
	_, err := db.Exec(`DELETE FROM expenses WHERE id = ?`, id)
	return err
}
