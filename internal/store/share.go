package store

import "database/sql"

const upsertShareSQL = `
	INSERT INTO expense_shares (expense_id, user_id, group_id, amount_cents, created_at, updated_at, deleted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(expense_id, user_id) DO UPDATE SET
		group_id = excluded.group_id,
		amount_cents = excluded.amount_cents,
		updated_at = excluded.updated_at,
		deleted_at = excluded.deleted_at`

func upsertShare(ex execer, s *ExpenseShare) error {
	_, err := ex.Exec(upsertShareSQL,
		s.ExpenseID, s.UserID, s.GroupID, s.AmountCents, s.CreatedAt, s.UpdatedAt, nullMillis(s.DeletedAt))
	return err
}

// UpsertShare inserts or updates a share (idempotent on expense_id + user_id).
func (db *DB) UpsertShare(s *ExpenseShare) error { return upsertShare(db, s) }

// UpsertShareTx is UpsertShare inside an open transaction.
func (db *DB) UpsertShareTx(tx *sql.Tx, s *ExpenseShare) error { return upsertShare(tx, s) }

// GetShare returns the share or nil when absent.
func (db *DB) GetShare(expenseID, userID string, includeDeleted bool) (*ExpenseShare, error) {
	q := `
		SELECT expense_id, user_id, group_id, amount_cents, created_at, updated_at, COALESCE(deleted_at, 0)
		FROM expense_shares WHERE expense_id = ? AND user_id = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	var s ExpenseShare
	err := db.QueryRow(q, expenseID, userID).
		Scan(&s.ExpenseID, &s.UserID, &s.GroupID, &s.AmountCents, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) listShares(where string, arg string, includeDeleted bool) ([]ExpenseShare, error) {
	q := `
		SELECT expense_id, user_id, group_id, amount_cents, created_at, updated_at, COALESCE(deleted_at, 0)
		FROM expense_shares WHERE ` + where + ` = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY expense_id ASC, user_id ASC`
	rows, err := db.Query(q, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var shares []ExpenseShare
	for rows.Next() {
		var s ExpenseShare
		if err := rows.Scan(&s.ExpenseID, &s.UserID, &s.GroupID, &s.AmountCents, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt); err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// ListSharesByExpense returns the shares of one expense.
func (db *DB) ListSharesByExpense(expenseID string, includeDeleted bool) ([]ExpenseShare, error) {
	return db.listShares("expense_id", expenseID, includeDeleted)
}

// ListSharesByGroup returns every share in a group, used by the balance
// aggregator.
func (db *DB) ListSharesByGroup(groupID string, includeDeleted bool) ([]ExpenseShare, error) {
	return db.listShares("group_id", groupID, includeDeleted)
}

// ApplyRemoteShare merges a downloaded share with last-write-wins on
// updated_at. The mutation queue is never touched.
func (db *DB) ApplyRemoteShare(s *ExpenseShare) error {
	_, err := db.Exec(`
		INSERT INTO expense_shares (expense_id, user_id, group_id, amount_cents, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(expense_id, user_id) DO UPDATE SET
			group_id = excluded.group_id,
			amount_cents = excluded.amount_cents,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
		WHERE excluded.updated_at > expense_shares.updated_at`,
		s.ExpenseID, s.UserID, s.GroupID, s.AmountCents, s.CreatedAt, s.UpdatedAt, nullMillis(s.DeletedAt))
	return err
}

// HardDeleteShare physically removes the row.
func (db *DB) HardDeleteShare(expenseID, userID string) error {
	_, err := db.Exec(`DELETE FROM expense_shares WHERE expense_id = ? AND user_id = ?`, expenseID, userID)
	return err
}
