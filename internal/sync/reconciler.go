// Package sync merges remote state into the local store on reconnect
// or sign-in. All writes here go through the store's ApplyRemote
// upserts, which bypass the mutation queue: data that originated
// remotely must never be queued for re-upload.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tmachado/splitsync/internal/bus"
	"github.com/tmachado/splitsync/internal/remote"
	"github.com/tmachado/splitsync/internal/store"
	"go.uber.org/zap"
)

// Reconciler downloads a user's remote entity set and merges it with
// last-write-wins on the server-assigned updated_at.
type Reconciler struct {
	db     *store.DB
	client remote.Client
	bus    *bus.Bus
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, client: client, bus: b, logger: logger}
}

// Pull fetches the user's profile, group memberships and every entity
// under those groups, merging each into the local store. A local row is
// overwritten only when the downloaded updated_at is strictly newer.
func (r *Reconciler) Pull(ctx context.Context, userID string) error {
	records := 0

	doc, err := r.client.Get(ctx, remote.UserPath(userID))
	if err != nil && !errors.Is(err, remote.ErrDocNotFound) {
		return fmt.Errorf("fetch user: %w", err)
	}
	if err == nil {
		if err := r.db.ApplyRemoteUser(remote.DecodeUser(userID, doc)); err != nil {
			return fmt.Errorf("merge user: %w", err)
		}
		records++
	}

	memberships, err := r.client.QueryCollectionGroup(ctx, "members", "user_id", userID)
	if err != nil {
		return fmt.Errorf("fetch memberships: %w", err)
	}

	groupIDs := make([]string, 0, len(memberships))
	seen := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		// Membership docs live at groups/{gid}/members/{uid}.
		segs := strings.Split(m.Path, "/")
		if len(segs) != 4 || segs[0] != "groups" {
			r.logger.Warn("skipping membership with unexpected path", zap.String("path", m.Path))
			continue
		}
		if gid := segs[1]; !seen[gid] {
			seen[gid] = true
			groupIDs = append(groupIDs, gid)
		}
	}

	for _, gid := range groupIDs {
		n, err := r.pullGroup(ctx, gid)
		if err != nil {
			return fmt.Errorf("pull group %s: %w", gid, err)
		}
		records += n
	}

	if err := r.UpdateCheckpoint("last_pull:"+userID, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		r.logger.Warn("failed to update pull checkpoint", zap.Error(err))
	}

	r.logger.Info("reconcile pull complete",
		zap.String("user_id", userID),
		zap.Int("groups", len(groupIDs)),
		zap.Int("records", records))
	r.bus.Publish(bus.ReconcilePulled{
		OwnerID: userID,
		Groups:  len(groupIDs),
		Records: records,
	})
	return nil
}

func (r *Reconciler) pullGroup(ctx context.Context, groupID string) (int, error) {
	records := 0

	doc, err := r.client.Get(ctx, remote.GroupPath(groupID))
	if err != nil && !errors.Is(err, remote.ErrDocNotFound) {
		return records, fmt.Errorf("fetch group: %w", err)
	}
	if err == nil {
		if err := r.db.ApplyRemoteGroup(remote.DecodeGroup(groupID, doc)); err != nil {
			return records, fmt.Errorf("merge group: %w", err)
		}
		records++
	}

	members, err := r.client.List(ctx, remote.MembersCollection(groupID))
	if err != nil {
		return records, fmt.Errorf("list members: %w", err)
	}
	for _, d := range members {
		uid := remote.DocID(d.Path)
		if err := r.db.ApplyRemoteMember(remote.DecodeMember(groupID, uid, d.Data)); err != nil {
			return records, fmt.Errorf("merge member %s: %w", uid, err)
		}
		records++

		// Cache the co-member's profile too, so names render offline.
		udoc, err := r.client.Get(ctx, remote.UserPath(uid))
		if errors.Is(err, remote.ErrDocNotFound) {
			continue
		}
		if err != nil {
			return records, fmt.Errorf("fetch member user %s: %w", uid, err)
		}
		if err := r.db.ApplyRemoteUser(remote.DecodeUser(uid, udoc)); err != nil {
			return records, fmt.Errorf("merge member user %s: %w", uid, err)
		}
		records++
	}

	expenses, err := r.client.List(ctx, remote.ExpensesCollection(groupID))
	if err != nil {
		return records, fmt.Errorf("list expenses: %w", err)
	}
	for _, d := range expenses {
		e := remote.DecodeExpense(remote.DocID(d.Path), d.Data)
		e.GroupID = groupID
		if err := r.db.ApplyRemoteExpense(e); err != nil {
			return records, fmt.Errorf("merge expense %s: %w", e.ID, err)
		}
		records++
	}

	shares, err := r.client.List(ctx, remote.SharesCollection(groupID))
	if err != nil {
		return records, fmt.Errorf("list shares: %w", err)
	}
	for _, d := range shares {
		s := remote.DecodeShare(d.Data)
		s.GroupID = groupID
		if err := r.db.ApplyRemoteShare(s); err != nil {
			return records, fmt.Errorf("merge share %s: %w", remote.DocID(d.Path), err)
		}
		records++
	}

	balances, err := r.client.List(ctx, remote.BalancesCollection(groupID))
	if err != nil {
		return records, fmt.Errorf("list balances: %w", err)
	}
	for _, d := range balances {
		b := remote.DecodeBalance(groupID, remote.DocID(d.Path), d.Data)
		if err := r.db.ApplyRemoteBalance(b); err != nil {
			return records, fmt.Errorf("merge balance %s: %w", b.UserID, err)
		}
		records++
	}

	return records, nil
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}
