package store

import "database/sql"

const upsertUserSQL = `
	INSERT INTO users (id, display_name, email, photo_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		display_name = excluded.display_name,
		email = excluded.email,
		photo_url = excluded.photo_url,
		updated_at = excluded.updated_at`

func upsertUser(ex execer, u *User) error {
	_, err := ex.Exec(upsertUserSQL, u.ID, u.DisplayName, u.Email, u.PhotoURL, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpsertUser inserts or updates a user (idempotent on id).
func (db *DB) UpsertUser(u *User) error { return upsertUser(db, u) }

// UpsertUserTx is UpsertUser inside an open transaction.
func (db *DB) UpsertUserTx(tx *sql.Tx, u *User) error { return upsertUser(tx, u) }

// GetUser returns the user or nil when absent.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT id, display_name, email, photo_url, created_at, updated_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.Email, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ApplyRemoteUser merges a downloaded user with last-write-wins on
// updated_at: an existing row is overwritten only when the incoming
// record is strictly newer. The mutation queue is never touched.
func (db *DB) ApplyRemoteUser(u *User) error {
	_, err := db.Exec(`
		INSERT INTO users (id, display_name, email, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			photo_url = excluded.photo_url,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at > users.updated_at`,
		u.ID, u.DisplayName, u.Email, u.PhotoURL, u.CreatedAt, u.UpdatedAt)
	return err
}
