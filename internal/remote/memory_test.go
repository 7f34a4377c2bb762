package remote

import (
	"context"
	"errors"
	"testing"
)

func TestSetMergesAndStampsServerTime(t *testing.T) {
	m := NewMemory()
	m.SetClock(func() int64 { return 1000 })
	ctx := context.Background()

	serverTime, err := m.Set(ctx, "users/u1", Doc{"display_name": "Ana", "email": "ana@x.io"})
	if err != nil {
		t.Fatal(err)
	}
	if serverTime != 1000 {
		t.Errorf("server time = %d, want 1000", serverTime)
	}

	// A partial write merges into the existing doc.
	m.SetClock(func() int64 { return 2000 })
	if _, err := m.Set(ctx, "users/u1", Doc{"display_name": "Ana M."}); err != nil {
		t.Fatal(err)
	}

	doc, err := m.Get(ctx, "users/u1")
	if err != nil {
		t.Fatal(err)
	}
	if doc["display_name"] != "Ana M." {
		t.Errorf("display_name = %v, want Ana M.", doc["display_name"])
	}
	if doc["email"] != "ana@x.io" {
		t.Errorf("email = %v, want preserved from first write", doc["email"])
	}
	if doc["updated_at"] != int64(2000) {
		t.Errorf("updated_at = %v, want server-stamped 2000", doc["updated_at"])
	}
}

func TestGetMissingDoc(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "users/ghost"); !errors.Is(err, ErrDocNotFound) {
		t.Errorf("err = %v, want ErrDocNotFound", err)
	}
}

func TestDeleteAbsentDocIsNoop(t *testing.T) {
	m := NewMemory()
	if err := m.Delete(context.Background(), "users/ghost"); err != nil {
		t.Errorf("delete of absent doc = %v, want nil", err)
	}
}

func TestListReturnsOnlyDirectChildren(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, p := range []string{
		"groups/g1",
		"groups/g1/expenses/e1",
		"groups/g1/expenses/e2",
		"groups/g1/shares/e1:u1",
		"groups/g2/expenses/e3",
	} {
		if _, err := m.Set(ctx, p, Doc{"k": "v"}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := m.List(ctx, "groups/g1/expenses")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	for _, d := range docs {
		if id := DocID(d.Path); id != "e1" && id != "e2" {
			t.Errorf("unexpected doc %s", d.Path)
		}
	}
}

func TestQueryCollectionGroupSpansParents(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	seed := map[string]Doc{
		"groups/g1/members/u1": {"user_id": "u1"},
		"groups/g2/members/u1": {"user_id": "u1"},
		"groups/g2/members/u2": {"user_id": "u2"},
		"groups/g1/shares/s1":  {"user_id": "u1"},
	}
	for p, d := range seed {
		if _, err := m.Set(ctx, p, d); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := m.QueryCollectionGroup(ctx, "members", "user_id", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 (u1's memberships across groups)", len(docs))
	}
	for _, d := range docs {
		if DocID(d.Path) != "u1" {
			t.Errorf("unexpected doc %s", d.Path)
		}
	}
}

func TestSetErrSimulatesOutage(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	outage := errors.New("network unreachable")

	m.SetErr(outage)
	if _, err := m.Set(ctx, "users/u1", Doc{}); !errors.Is(err, outage) {
		t.Errorf("Set err = %v, want outage", err)
	}
	if _, err := m.Get(ctx, "users/u1"); !errors.Is(err, outage) {
		t.Errorf("Get err = %v, want outage", err)
	}
	if err := m.Delete(ctx, "users/u1"); !errors.Is(err, outage) {
		t.Errorf("Delete err = %v, want outage", err)
	}

	m.SetErr(nil)
	if _, err := m.Set(ctx, "users/u1", Doc{}); err != nil {
		t.Errorf("Set after recovery = %v, want nil", err)
	}
}

func TestGetReturnsACopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Set(ctx, "users/u1", Doc{"display_name": "Ana"}); err != nil {
		t.Fatal(err)
	}
	doc, err := m.Get(ctx, "users/u1")
	if err != nil {
		t.Fatal(err)
	}
	doc["display_name"] = "mutated"

	again, err := m.Get(ctx, "users/u1")
	if err != nil {
		t.Fatal(err)
	}
	if again["display_name"] != "Ana" {
		t.Error("caller mutation leaked into the store")
	}
}
