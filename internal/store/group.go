package store

import "database/sql"

const upsertGroupSQL = `
	INSERT INTO groups (id, name, currency, created_by, created_at, updated_at, last_activity_at, deleted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		currency = excluded.currency,
		updated_at = excluded.updated_at,
		last_activity_at = excluded.last_activity_at,
		deleted_at = excluded.deleted_at`

func upsertGroup(ex execer, g *Group) error {
	_, err := ex.Exec(upsertGroupSQL,
		g.ID, g.Name, g.Currency, g.CreatedBy, g.CreatedAt, g.UpdatedAt, g.LastActivityAt, nullMillis(g.DeletedAt))
	return err
}

// UpsertGroup inserts or updates a group (idempotent on id).
func (db *DB) UpsertGroup(g *Group) error { return upsertGroup(db, g) }

// UpsertGroupTx is UpsertGroup inside an open transaction.
func (db *DB) UpsertGroupTx(tx *sql.Tx, g *Group) error { return upsertGroup(tx, g) }

// GetGroup returns the group or nil when absent. Soft-deleted rows are
// only returned when includeDeleted is set.
func (db *DB) GetGroup(id string, includeDeleted bool) (*Group, error) {
	q := `
		SELECT id, name, currency, created_by, created_at, updated_at, last_activity_at, COALESCE(deleted_at, 0)
		FROM groups WHERE id = ?`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	var g Group
	err := db.QueryRow(q, id).
		Scan(&g.ID, &g.Name, &g.Currency, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt, &g.LastActivityAt, &g.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns groups ordered by most recent activity.
func (db *DB) ListGroups(includeDeleted bool) ([]Group, error) {
	q := `
		SELECT id, name, currency, created_by, created_at, updated_at, last_activity_at, COALESCE(deleted_at, 0)
		FROM groups`
	if !includeDeleted {
		q += ` WHERE deleted_at IS NULL`
	}
	q += ` ORDER BY last_activity_at DESC, id ASC`
	rows, err := db.Query(q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Currency, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt, &g.LastActivityAt, &g.DeletedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ApplyRemoteGroup merges a downloaded group with last-write-wins on
// updated_at. The mutation queue is never touched.
func (db *DB) ApplyRemoteGroup(g *Group) error {
	_, err := db.Exec(`
		INSERT INTO groups (id, name, currency, created_by, created_at, updated_at, last_activity_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			updated_at = excluded.updated_at,
			last_activity_at = excluded.last_activity_at,
			deleted_at = excluded.deleted_at
		WHERE excluded.updated_at > groups.updated_at`,
		g.ID, g.Name, g.Currency, g.CreatedBy, g.CreatedAt, g.UpdatedAt, g.LastActivityAt, nullMillis(g.DeletedAt))
	return err
}

// HardDeleteGroup physically removes the row. Only the uploader (after
// a confirmed remote delete) and the sign-out wipe call this.
func (db *DB) HardDeleteGroup(id string) error {
	_, err := db.Exec(`DELETE FROM groups WHERE id = ?`, id)
	return err
}
