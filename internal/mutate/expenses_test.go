package mutate

import (
	"errors"
	"testing"

	"github.com/tmachado/splitsync/internal/store"
)

func TestCreateExpenseQueuesExpenseSharesAndGroupTouch(t *testing.T) {
	m, db, _ := testSetup(t)
	g := seedGroup(t, m, "u1")

	before := pendingCount(t, db, "u1")

	e, err := m.CreateExpense("u1", &store.Expense{
		GroupID:     g.ID,
		PaidBy:      "u1",
		Description: "dinner",
		AmountCents: 3000,
	}, []store.ExpenseShare{
		{UserID: "u1", AmountCents: 1500},
		{UserID: "u2", AmountCents: 1500},
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == "" {
		t.Fatal("expense id should be generated")
	}
	if e.Currency != "USD" {
		t.Errorf("currency = %q, want group default USD", e.Currency)
	}

	shares, err := db.ListSharesByExpense(e.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(shares))
	}
	for _, s := range shares {
		if s.GroupID != g.ID {
			t.Errorf("share group_id = %q, want %q (denormalized)", s.GroupID, g.ID)
		}
	}

	// Expense + 2 shares add three entries; the group touch collapses
	// into the existing group entry.
	after := pendingCount(t, db, "u1")
	if after-before != 3 {
		t.Errorf("queue grew by %d, want 3", after-before)
	}

	touched, err := db.GetGroup(g.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if touched.LastActivityAt < g.LastActivityAt {
		t.Error("group last_activity_at should be bumped")
	}
}

func TestCreateExpenseShareValidation(t *testing.T) {
	m, db, _ := testSetup(t)
	g := seedGroup(t, m, "u1")
	before := pendingCount(t, db, "u1")

	cases := []struct {
		desc   string
		amount int64
		shares []store.ExpenseShare
	}{
		{"non-positive amount", 0, []store.ExpenseShare{{UserID: "u1", AmountCents: 0}}},
		{"empty shares", 1000, nil},
		{"blank user", 1000, []store.ExpenseShare{{UserID: "", AmountCents: 1000}}},
		{"duplicate user", 1000, []store.ExpenseShare{{UserID: "u1", AmountCents: 500}, {UserID: "u1", AmountCents: 500}}},
		{"negative share", 1000, []store.ExpenseShare{{UserID: "u1", AmountCents: 1200}, {UserID: "u2", AmountCents: -200}}},
		{"sum mismatch", 1000, []store.ExpenseShare{{UserID: "u1", AmountCents: 400}, {UserID: "u2", AmountCents: 400}}},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := m.CreateExpense("u1", &store.Expense{GroupID: g.ID, PaidBy: "u1", AmountCents: tc.amount}, tc.shares)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}

	if n := pendingCount(t, db, "u1"); n != before {
		t.Errorf("queue grew to %d on rejected input, want %d", n, before)
	}
}

func TestCreateExpenseGroupNotFound(t *testing.T) {
	m, _, _ := testSetup(t)

	_, err := m.CreateExpense("u1", &store.Expense{GroupID: "missing", PaidBy: "u1", AmountCents: 100},
		[]store.ExpenseShare{{UserID: "u1", AmountCents: 100}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateExpenseReplacesShareSet(t *testing.T) {
	m, db, _ := testSetup(t)
	g := seedGroup(t, m, "u1")

	e, err := m.CreateExpense("u1", &store.Expense{GroupID: g.ID, PaidBy: "u1", AmountCents: 3000},
		[]store.ExpenseShare{
			{UserID: "u1", AmountCents: 1000},
			{UserID: "u2", AmountCents: 1000},
			{UserID: "u3", AmountCents: 1000},
		})
	if err != nil {
		t.Fatal(err)
	}

	// Drop u3, rebalance between u1 and u2.
	e.AmountCents = 3000
	err = m.UpdateExpense("u1", e, []store.ExpenseShare{
		{UserID: "u1", AmountCents: 2000},
		{UserID: "u2", AmountCents: 1000},
	})
	if err != nil {
		t.Fatal(err)
	}

	live, err := db.ListSharesByExpense(e.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 2 {
		t.Fatalf("got %d live shares, want 2", len(live))
	}

	dropped, err := db.GetShare(e.ID, "u3", true)
	if err != nil {
		t.Fatal(err)
	}
	if dropped == nil || dropped.DeletedAt == 0 {
		t.Fatalf("dropped share = %+v, want tombstoned", dropped)
	}

	// The dropped share's queue entry collapsed from create to delete
	// and carries the group id for path resolution.
	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, entry := range entries {
		if entry.EntityType == store.EntityExpenseShare && entry.EntityID == e.ID+":u3" {
			found = true
			if entry.OperationType != store.OpDelete {
				t.Errorf("dropped share op = %s, want delete", entry.OperationType)
			}
			if entry.Metadata != g.ID {
				t.Errorf("dropped share metadata = %q, want group id", entry.Metadata)
			}
		}
	}
	if !found {
		t.Fatal("no queue entry for the dropped share")
	}
}

func TestSoftDeleteExpenseTombstonesSharesWithGroupMetadata(t *testing.T) {
	m, db, _ := testSetup(t)
	g := seedGroup(t, m, "u1")

	e, err := m.CreateExpense("u1", &store.Expense{GroupID: g.ID, PaidBy: "u1", AmountCents: 2000},
		[]store.ExpenseShare{
			{UserID: "u1", AmountCents: 1000},
			{UserID: "u2", AmountCents: 1000},
		})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SoftDeleteExpense("u1", e.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetExpense(e.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.DeletedAt == 0 {
		t.Fatalf("expense = %+v, want tombstoned", got)
	}
	shares, err := db.ListSharesByExpense(e.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range shares {
		if s.DeletedAt == 0 {
			t.Errorf("share %s still live, want tombstoned", s.UserID)
		}
	}

	entries, err := db.ListPendingQueue("u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		switch entry.EntityType {
		case store.EntityExpense, store.EntityExpenseShare:
			if entry.OperationType != store.OpDelete {
				t.Errorf("%s %s op = %s, want delete (collapsed)", entry.EntityType, entry.EntityID, entry.OperationType)
			}
			if entry.Metadata != g.ID {
				t.Errorf("%s %s metadata = %q, want group id", entry.EntityType, entry.EntityID, entry.Metadata)
			}
		}
	}
}

func TestRestoreExpenseClearsTombstones(t *testing.T) {
	m, db, _ := testSetup(t)
	g := seedGroup(t, m, "u1")

	e, err := m.CreateExpense("u1", &store.Expense{GroupID: g.ID, PaidBy: "u1", AmountCents: 1000},
		[]store.ExpenseShare{{UserID: "u1", AmountCents: 1000}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SoftDeleteExpense("u1", e.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.RestoreExpense("u1", e.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetExpense(e.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expense should be visible again after restore")
	}
	shares, err := db.ListSharesByExpense(e.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(shares) != 1 {
		t.Errorf("got %d live shares after restore, want 1", len(shares))
	}
}
