package store

import "fmt"

// wipeTables in child-before-parent order.
var wipeTables = []string{
	"mutation_queue",
	"sync_state",
	"expense_shares",
	"expenses",
	"group_balances",
	"group_members",
	"groups",
	"users",
}

// Wipe removes every row from every table in one transaction. This is
// the sign-out path; callers are expected to surface CountPendingQueue
// to the user first, since unsynced changes are lost here.
func (db *DB) Wipe() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin wipe: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range wipeTables {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}
	return nil
}
