package store

import (
	"errors"
	"testing"
)

func TestEnqueueCollapsesToSingleEntry(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityExpense, "e1", OpCreate, "g1", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("u1", EntityExpense, "e1", OpUpdate, "g1", 2000); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (collapse)", len(entries))
	}
	e := entries[0]
	if e.OperationType != OpUpdate {
		t.Errorf("operation = %q, want update (latest wins)", e.OperationType)
	}
	if e.CreatedAt != 2000 {
		t.Errorf("created_at = %d, want 2000 (reset on collapse)", e.CreatedAt)
	}
}

func TestEnqueueCreateThenDeleteBecomesDelete(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityExpense, "e1", OpCreate, "g1", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("u1", EntityExpense, "e1", OpDelete, "g1", 2000); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].OperationType != OpDelete {
		t.Fatalf("got %+v, want single delete entry", entries)
	}
}

func TestEnqueueCollapseResetsFailureState(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityGroup, "g1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}
	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.MarkQueueFailed(entries[0].ID, "network unreachable"); err != nil {
		t.Fatal(err)
	}

	// A new local edit of the same entity replaces the entry and starts
	// the failure accounting over.
	if err := db.Enqueue("u1", EntityGroup, "g1", OpUpdate, "", 2000); err != nil {
		t.Fatal(err)
	}
	entries, err = db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0 after collapse", entries[0].RetryCount)
	}
	if entries[0].LastError != "" {
		t.Errorf("last_error = %q, want cleared", entries[0].LastError)
	}
}

func TestListPendingQueueFIFO(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityExpense, "e2", OpCreate, "", 3000); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("u1", EntityGroup, "g1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("u1", EntityExpense, "e1", OpCreate, "", 2000); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	wantOrder := []string{"g1", "e1", "e2"}
	for i, want := range wantOrder {
		if entries[i].EntityID != want {
			t.Errorf("position %d: got %s, want %s", i, entries[i].EntityID, want)
		}
	}
}

func TestListPendingQueueSameTimestampOrdersByID(t *testing.T) {
	db := testDB(t)

	// Distinct entities enqueued at the same instant keep insertion order.
	if err := db.Enqueue("u1", EntityExpense, "e1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("u1", EntityExpenseShare, "e1:u1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].EntityType != EntityExpense || entries[1].EntityType != EntityExpenseShare {
		t.Errorf("order = [%s %s], want [expense expense_share]", entries[0].EntityType, entries[1].EntityType)
	}
}

func TestQueueOwnerIsolation(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityGroup, "g1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.Enqueue("u2", EntityGroup, "g2", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}

	for owner, wantEntity := range map[string]string{"u1": "g1", "u2": "g2"} {
		entries, err := db.ListPendingQueue(owner, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].EntityID != wantEntity {
			t.Errorf("owner %s: got %+v, want single %s entry", owner, entries, wantEntity)
		}
		n, err := db.CountPendingQueue(owner)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("owner %s: count = %d, want 1", owner, n)
		}
	}
}

func TestDequeueOnSuccess(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityGroup, "g1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}
	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.DequeueOnSuccess(entries[0].ID); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountPendingQueue("u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count = %d after dequeue, want 0", n)
	}

	// Dequeueing a gone entry reports not-found, the uploader relies on
	// this to detect races.
	err = db.DequeueOnSuccess(entries[0].ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second dequeue err = %v, want ErrNotFound", err)
	}
}

func TestMarkQueueFailedIncrementsRetry(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityGroup, "g1", OpCreate, "", 1000); err != nil {
		t.Fatal(err)
	}
	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	id := entries[0].ID

	for i := 1; i <= 3; i++ {
		if err := db.MarkQueueFailed(id, "timeout"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err = db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", entries[0].RetryCount)
	}
	if entries[0].LastError != "timeout" {
		t.Errorf("last_error = %q, want timeout", entries[0].LastError)
	}
}

func TestEnqueueRejectsUnknownTypes(t *testing.T) {
	db := testDB(t)

	if err := db.Enqueue("u1", EntityType("widget"), "w1", OpCreate, "", 1); err == nil {
		t.Error("expected error for unknown entity type")
	}
	if err := db.Enqueue("u1", EntityGroup, "g1", OperationType("upsert"), "", 1); err == nil {
		t.Error("expected error for unknown operation type")
	}
}
