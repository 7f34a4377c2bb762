// Package watch serves live snapshots of common queries. A watch
// re-reads its query whenever a relevant event lands on the bus and
// emits the fresh result. Latest-value semantics: a slow consumer
// skips intermediate snapshots but never reads stale data.
package watch

import (
	"context"

	"github.com/tmachado/splitsync/internal/bus"
	"github.com/tmachado/splitsync/internal/store"
	"go.uber.org/zap"
)

// Watcher builds per-query snapshot streams off the store and bus.
type Watcher struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a watcher.
func New(db *store.DB, b *bus.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{db: db, bus: b, logger: logger}
}

// Groups streams the live group list, current snapshot first.
func (w *Watcher) Groups(ctx context.Context) (<-chan []store.Group, error) {
	return stream(ctx, w, entityEvents(store.EntityGroup), func() ([]store.Group, error) {
		return w.db.ListGroups(false)
	})
}

// Members streams a group's live membership.
func (w *Watcher) Members(ctx context.Context, groupID string) (<-chan []store.GroupMember, error) {
	return stream(ctx, w, entityEvents(store.EntityGroupMember), func() ([]store.GroupMember, error) {
		return w.db.ListMembers(groupID, false)
	})
}

// Expenses streams a group's live expenses, newest date first.
func (w *Watcher) Expenses(ctx context.Context, groupID string) (<-chan []store.Expense, error) {
	return stream(ctx, w, entityEvents(store.EntityExpense), func() ([]store.Expense, error) {
		return w.db.ListExpensesByGroup(groupID, false)
	})
}

// Balances streams a group's derived balances.
func (w *Watcher) Balances(ctx context.Context, groupID string) (<-chan []store.GroupBalance, error) {
	balanceRows := entityEvents(store.EntityGroupBalance)
	filter := func(evt bus.Event) bool {
		if p, ok := evt.Payload.(bus.BalancesUpdated); ok {
			return p.GroupID == groupID
		}
		return balanceRows(evt)
	}
	return stream(ctx, w, filter, func() ([]store.GroupBalance, error) {
		return w.db.ListBalances(groupID)
	})
}

// entityEvents matches the moments rows of the given types change:
// committed mutations, confirmed-delete purges, and reconcile pulls.
func entityEvents(types ...store.EntityType) bus.Filter {
	set := make(map[store.EntityType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(evt bus.Event) bool {
		switch p := evt.Payload.(type) {
		case bus.EntityMutated:
			return set[p.EntityType]
		case bus.UploadSucceeded:
			return p.Operation == store.OpDelete && set[p.EntityType]
		case bus.ReconcilePulled:
			return true
		}
		return false
	}
}

// stream reads the initial snapshot, then re-reads on every matching
// event. The out channel holds at most one pending snapshot: a new one
// replaces an unconsumed predecessor. Closed on ctx cancel or bus close.
func stream[T any](ctx context.Context, w *Watcher, filter bus.Filter, read func() (T, error)) (<-chan T, error) {
	first, err := read()
	if err != nil {
		return nil, err
	}
	events, unsub := w.bus.Subscribe(filter, 64)
	out := make(chan T, 1)
	out <- first

	go func() {
		defer unsub()
		defer close(out)
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
				snap, err := read()
				if err != nil {
					w.logger.Error("watch re-read failed", zap.Error(err))
					continue
				}
				select {
				case <-out:
				default:
				}
				out <- snap
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
