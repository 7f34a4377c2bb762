package store

import (
	"database/sql"
	"fmt"
)

// The collapse upsert: a later enqueue for the same (owner, type, id)
// replaces the earlier entry in place. operation_type takes the latest
// value, so create-then-delete before any drain becomes a bare delete,
// and the failure accounting starts over.
const enqueueSQL = `
	INSERT INTO mutation_queue (owner_id, entity_type, entity_id, operation_type, metadata, created_at, retry_count, last_error)
	VALUES (?, ?, ?, ?, ?, ?, 0, NULL)
	ON CONFLICT(owner_id, entity_type, entity_id) DO UPDATE SET
		operation_type = excluded.operation_type,
		metadata = excluded.metadata,
		created_at = excluded.created_at,
		retry_count = 0,
		last_error = NULL`

func enqueue(ex execer, ownerID string, et EntityType, entityID string, op OperationType, metadata string, now int64) error {
	if !et.Valid() {
		return fmt.Errorf("enqueue: unknown entity type %q", et)
	}
	if !op.Valid() {
		return fmt.Errorf("enqueue: unknown operation type %q", op)
	}
	_, err := ex.Exec(enqueueSQL, ownerID, string(et), entityID, string(op), nullString(metadata), now)
	return err
}

// Enqueue adds (or collapses into) a pending mutation for the owner.
// Most callers should go through the mutator so the entity write and
// the enqueue share one transaction; this standalone form exists for
// re-queueing repairs and tests.
func (db *DB) Enqueue(ownerID string, et EntityType, entityID string, op OperationType, metadata string, now int64) error {
	return enqueue(db, ownerID, et, entityID, op, metadata, now)
}

// EnqueueTx is Enqueue inside an open transaction.
func (db *DB) EnqueueTx(tx *sql.Tx, ownerID string, et EntityType, entityID string, op OperationType, metadata string, now int64) error {
	return enqueue(tx, ownerID, et, entityID, op, metadata, now)
}

// ListPendingQueue returns the owner's pending entries oldest first
// (FIFO by created_at, id as tiebreak). limit <= 0 means no limit.
func (db *DB) ListPendingQueue(ownerID string, limit int) ([]QueueEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT id, owner_id, entity_type, entity_id, operation_type, metadata, created_at, retry_count, last_error
		FROM mutation_queue
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		var metadata, lastError sql.NullString
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.EntityType, &e.EntityID, &e.OperationType, &metadata, &e.CreatedAt, &e.RetryCount, &lastError); err != nil {
			return nil, err
		}
		e.Metadata = metadata.String
		e.LastError = lastError.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountPendingQueue returns the number of pending entries for the
// owner, used for sign-out risk assessment.
func (db *DB) CountPendingQueue(ownerID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM mutation_queue WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

// DequeueOnSuccess removes an entry after its remote operation was
// confirmed. This is the only success path out of the queue.
func (db *DB) DequeueOnSuccess(id int64) error {
	res, err := db.Exec(`DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("queue entry %d: %w", id, ErrNotFound)
	}
	return nil
}

// MarkQueueFailed records a failed upload attempt without removing the
// entry; it stays pending for the next drain.
func (db *DB) MarkQueueFailed(id int64, errMsg string) error {
	_, err := db.Exec(`
		UPDATE mutation_queue
		SET retry_count = retry_count + 1, last_error = ?
		WHERE id = ?`, errMsg, id)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
