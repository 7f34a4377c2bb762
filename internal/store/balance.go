package store

import "database/sql"

const upsertBalanceSQL = `
	INSERT INTO group_balances (group_id, user_id, amount_cents, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(group_id, user_id) DO UPDATE SET
		amount_cents = excluded.amount_cents,
		updated_at = excluded.updated_at`

func upsertBalance(ex execer, b *GroupBalance) error {
	_, err := ex.Exec(upsertBalanceSQL, b.GroupID, b.UserID, b.AmountCents, b.UpdatedAt)
	return err
}

// UpsertBalance inserts or updates a derived balance (idempotent on
// group_id + user_id).
func (db *DB) UpsertBalance(b *GroupBalance) error { return upsertBalance(db, b) }

// UpsertBalanceTx is UpsertBalance inside an open transaction.
func (db *DB) UpsertBalanceTx(tx *sql.Tx, b *GroupBalance) error { return upsertBalance(tx, b) }

// ListBalances returns a group's member balances.
func (db *DB) ListBalances(groupID string) ([]GroupBalance, error) {
	rows, err := db.Query(`
		SELECT group_id, user_id, amount_cents, updated_at
		FROM group_balances WHERE group_id = ?
		ORDER BY user_id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var balances []GroupBalance
	for rows.Next() {
		var b GroupBalance
		if err := rows.Scan(&b.GroupID, &b.UserID, &b.AmountCents, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// ApplyRemoteBalance merges a downloaded balance with last-write-wins
// on updated_at. The mutation queue is never touched.
func (db *DB) ApplyRemoteBalance(b *GroupBalance) error {
	_, err := db.Exec(`
		INSERT INTO group_balances (group_id, user_id, amount_cents, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id, user_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at > group_balances.updated_at`,
		b.GroupID, b.UserID, b.AmountCents, b.UpdatedAt)
	return err
}

func deleteBalance(ex execer, groupID, userID string) error {
	_, err := ex.Exec(`DELETE FROM group_balances WHERE group_id = ? AND user_id = ?`, groupID, userID)
	return err
}

// HardDeleteBalance physically removes the row.
func (db *DB) HardDeleteBalance(groupID, userID string) error {
	return deleteBalance(db, groupID, userID)
}

// HardDeleteBalanceTx is HardDeleteBalance inside an open transaction.
// Balances are derived rows with no tombstone, so the mutator removes
// them directly while their delete entry rides the queue.
func (db *DB) HardDeleteBalanceTx(tx *sql.Tx, groupID, userID string) error {
	return deleteBalance(tx, groupID, userID)
}
