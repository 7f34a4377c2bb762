package store

import "database/sql"

const upsertMemberSQL = `
	INSERT INTO group_members (group_id, user_id, role, created_at, updated_at, deleted_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(group_id, user_id) DO UPDATE SET
		role = excluded.role,
		updated_at = excluded.updated_at,
		deleted_at = excluded.deleted_at`

func upsertMember(ex execer, m *GroupMember) error {
	_, err := ex.Exec(upsertMemberSQL,
		m.GroupID, m.UserID, m.Role, m.CreatedAt, m.UpdatedAt, nullMillis(m.DeletedAt))
	return err
}

// UpsertMember inserts or updates a group membership (idempotent on
// group_id + user_id).
func (db *DB) UpsertMember(m *GroupMember) error { return upsertMember(db, m) }

// UpsertMemberTx is UpsertMember inside an open transaction.
func (db *DB) UpsertMemberTx(tx *sql.Tx, m *GroupMember) error { return upsertMember(tx, m) }

// GetMember returns the membership or nil when absent.
func (db *DB) GetMember(groupID, userID string, includeDeleted bool) (*GroupMember, error) {
	q := `
		SELECT group_id, user_id, role, created_at, updated_at, COALESCE(deleted_at, 0)
		FROM group_members WHERE group_id = ? AND user_id = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	var m GroupMember
	err := db.QueryRow(q, groupID, userID).
		Scan(&m.GroupID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns a group's memberships.
func (db *DB) ListMembers(groupID string, includeDeleted bool) ([]GroupMember, error) {
	q := `
		SELECT group_id, user_id, role, created_at, updated_at, COALESCE(deleted_at, 0)
		FROM group_members WHERE group_id = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY created_at ASC, user_id ASC`
	rows, err := db.Query(q, groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []GroupMember
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ApplyRemoteMember merges a downloaded membership with last-write-wins
// on updated_at. The mutation queue is never touched.
func (db *DB) ApplyRemoteMember(m *GroupMember) error {
	_, err := db.Exec(`
		INSERT INTO group_members (group_id, user_id, role, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_id, user_id) DO UPDATE SET
			role = excluded.role,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
		WHERE excluded.updated_at > group_members.updated_at`,
		m.GroupID, m.UserID, m.Role, m.CreatedAt, m.UpdatedAt, nullMillis(m.DeletedAt))
	return err
}

// HardDeleteMember physically removes the row.
func (db *DB) HardDeleteMember(groupID, userID string) error {
	_, err := db.Exec(`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	return err
}
