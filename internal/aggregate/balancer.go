// Package aggregate maintains derived read-models off the event
// stream. Balances are recomputed from committed expense data rather
// than patched incrementally, so a missed event at worst delays an
// update until the next relevant one.
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/tmachado/splitsync/internal/bus"
	"github.com/tmachado/splitsync/internal/mutate"
	"github.com/tmachado/splitsync/internal/store"
	"go.uber.org/zap"
)

// Balancer recomputes per-member group balances whenever expenses,
// shares or memberships change.
type Balancer struct {
	db      *store.DB
	mutator *mutate.Mutator
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewBalancer creates a balancer.
func NewBalancer(db *store.DB, m *mutate.Mutator, b *bus.Bus, logger *zap.Logger) *Balancer {
	return &Balancer{db: db, mutator: m, bus: b, logger: logger}
}

// Start subscribes to mutation and reconcile events on the bus.
func (a *Balancer) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	ch, unsub := a.bus.Subscribe(bus.KindIn(bus.KindEntityMutated, bus.KindReconcilePulled), 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				a.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the balancer.
func (a *Balancer) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Balancer) handleEvent(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case bus.EntityMutated:
		// Balance writes announce themselves too; ignore them or the
		// recompute would feed itself.
		if p.EntityType == store.EntityGroupBalance {
			return
		}
		groupID, relevant, err := a.resolveGroup(p)
		if err != nil {
			a.logger.Error("failed to resolve group for event", zap.Error(err), zap.String("entity_id", p.EntityID))
			return
		}
		if !relevant {
			return
		}
		if err := a.Recompute(p.OwnerID, groupID); err != nil {
			a.logger.Error("failed to recompute balances", zap.Error(err), zap.String("group_id", groupID))
		}

	case bus.ReconcilePulled:
		groups, err := a.db.ListGroups(false)
		if err != nil {
			a.logger.Error("failed to list groups after pull", zap.Error(err))
			return
		}
		for _, g := range groups {
			if err := a.Recompute(p.OwnerID, g.ID); err != nil {
				a.logger.Error("failed to recompute balances", zap.Error(err), zap.String("group_id", g.ID))
			}
		}
	}
}

func (a *Balancer) resolveGroup(p bus.EntityMutated) (string, bool, error) {
	switch p.EntityType {
	case store.EntityExpense:
		e, err := a.db.GetExpense(p.EntityID, true)
		if err != nil {
			return "", false, err
		}
		if e == nil {
			return "", false, nil
		}
		return e.GroupID, true, nil

	case store.EntityExpenseShare:
		parts := store.SplitCompositeID(p.EntityID)
		if len(parts) != 2 {
			return "", false, fmt.Errorf("malformed share id %q", p.EntityID)
		}
		s, err := a.db.GetShare(parts[0], parts[1], true)
		if err != nil {
			return "", false, err
		}
		if s == nil {
			return "", false, nil
		}
		return s.GroupID, true, nil

	case store.EntityGroupMember:
		parts := store.SplitCompositeID(p.EntityID)
		if len(parts) != 2 {
			return "", false, fmt.Errorf("malformed member id %q", p.EntityID)
		}
		return parts[0], true, nil
	}
	return "", false, nil
}

// Recompute rebuilds a group's balances from its live expenses and
// shares: each member's net is what they paid minus what they owe.
func (a *Balancer) Recompute(ownerID, groupID string) error {
	members, err := a.db.ListMembers(groupID, false)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	expenses, err := a.db.ListExpensesByGroup(groupID, false)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	shares, err := a.db.ListSharesByGroup(groupID, false)
	if err != nil {
		return fmt.Errorf("list shares: %w", err)
	}

	net := make(map[string]int64, len(members))
	for _, m := range members {
		net[m.UserID] = 0
	}
	for _, e := range expenses {
		net[e.PaidBy] += e.AmountCents
	}
	for _, s := range shares {
		net[s.UserID] -= s.AmountCents
	}

	userIDs := make([]string, 0, len(net))
	for uid := range net {
		userIDs = append(userIDs, uid)
	}
	sort.Strings(userIDs)

	balances := make([]store.GroupBalance, 0, len(userIDs))
	for _, uid := range userIDs {
		balances = append(balances, store.GroupBalance{
			GroupID:     groupID,
			UserID:      uid,
			AmountCents: net[uid],
		})
	}

	if err := a.mutator.SetGroupBalances(ownerID, groupID, balances); err != nil {
		return fmt.Errorf("set balances: %w", err)
	}
	a.bus.Publish(bus.BalancesUpdated{GroupID: groupID, Members: len(balances)})
	return nil
}
