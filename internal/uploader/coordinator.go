// Package uploader drains the mutation queue against the remote store.
// It is the only component that removes queue entries, and it removes
// them solely on confirmed remote success. Remote failures never
// propagate to callers; they are recorded on the entry and retried on
// a later drain.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmachado/splitsync/internal/bus"
	"github.com/tmachado/splitsync/internal/remote"
	"github.com/tmachado/splitsync/internal/status"
	"github.com/tmachado/splitsync/internal/store"
	"go.uber.org/zap"
)

// errStaleEntry marks a create/update entry whose local row no longer
// exists; the entry is dequeued with a warning instead of retried forever.
var errStaleEntry = errors.New("stale queue entry")

// Options tune the drain loop. Zero values take defaults.
type Options struct {
	OwnerID                string
	Interval               time.Duration // time between drain passes
	Timeout                time.Duration // per remote operation
	BatchSize              int           // max entries per pass
	MaxConsecutiveFailures int           // abort the pass after this many failures in a row
}

// Coordinator drains pending mutations FIFO for one owner. Uploads are
// idempotent at the remote store (set-with-merge), so a crash mid-pass
// only means an entry is uploaded again on the next one.
type Coordinator struct {
	db      *store.DB
	client  remote.Client
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	opts    Options
	cancel  context.CancelFunc
}

// New creates a coordinator.
func New(db *store.DB, client remote.Client, b *bus.Bus, machine *status.Machine, logger *zap.Logger, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 5
	}
	return &Coordinator{
		db:      db,
		client:  client,
		bus:     b,
		machine: machine,
		logger:  logger,
		opts:    opts,
	}
}

// Start begins the background drain loop.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.loop(ctx)
}

// Stop stops the drain loop.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) transition(to status.State) {
	if c.machine == nil {
		return
	}
	if err := c.machine.Transition(to); err != nil {
		c.logger.Debug("status transition skipped", zap.Error(err))
	}
}

// Drain runs one pass over the owner's pending entries in strict
// created_at order. Each entry is attempted at most once per pass; a
// run of consecutive failures aborts the pass early, since the network
// is likely down.
func (c *Coordinator) Drain(ctx context.Context) error {
	entries, err := c.db.ListPendingQueue(c.opts.OwnerID, c.opts.BatchSize)
	if err != nil {
		c.logger.Error("failed to read mutation queue", zap.Error(err))
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	c.transition(status.Draining)
	consecutive := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.processEntry(ctx, entry)
		if errors.Is(err, errStaleEntry) {
			c.logger.Warn("dequeueing stale entry",
				zap.Int64("id", entry.ID),
				zap.String("entity_type", string(entry.EntityType)),
				zap.String("entity_id", entry.EntityID))
			_ = c.db.DequeueOnSuccess(entry.ID)
			consecutive = 0
			continue
		}
		if err != nil {
			consecutive++
			c.logger.Error("upload failed",
				zap.Error(err),
				zap.Int64("id", entry.ID),
				zap.String("entity_type", string(entry.EntityType)),
				zap.String("entity_id", entry.EntityID))
			if markErr := c.db.MarkQueueFailed(entry.ID, err.Error()); markErr != nil {
				c.logger.Error("failed to mark entry failed", zap.Error(markErr), zap.Int64("id", entry.ID))
			}
			c.bus.Publish(bus.UploadFailed{
				OwnerID:    entry.OwnerID,
				EntityType: entry.EntityType,
				EntityID:   entry.EntityID,
				Err:        err.Error(),
				RetryCount: entry.RetryCount + 1,
			})
			if consecutive >= c.opts.MaxConsecutiveFailures {
				c.logger.Warn("aborting drain pass", zap.Int("consecutive_failures", consecutive))
				c.transition(status.Offline)
				return err
			}
			continue
		}

		consecutive = 0
		if err := c.db.DequeueOnSuccess(entry.ID); err != nil {
			c.logger.Error("failed to dequeue entry", zap.Error(err), zap.Int64("id", entry.ID))
			continue
		}
		if entry.OperationType == store.OpDelete {
			// Purge is gated strictly on the confirmed dequeue.
			if err := c.purge(entry); err != nil {
				c.logger.Error("failed to purge tombstone", zap.Error(err), zap.Int64("id", entry.ID))
			}
		}
		c.bus.Publish(bus.UploadSucceeded{
			OwnerID:    entry.OwnerID,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Operation:  entry.OperationType,
		})
	}

	c.transition(status.Idle)
	return nil
}

func (c *Coordinator) processEntry(ctx context.Context, entry store.QueueEntry) error {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if entry.OperationType == store.OpDelete {
		docPath, err := c.deletePath(entry)
		if err != nil {
			return err
		}
		// Deleting a doc that was never uploaded (create collapsed into
		// delete) is a no-op success by contract.
		if err := c.client.Delete(opCtx, docPath); err != nil && !errors.Is(err, remote.ErrDocNotFound) {
			return err
		}
		return nil
	}

	docPath, doc, err := c.outboundDoc(entry)
	if err != nil {
		return err
	}
	if _, err := c.client.Set(opCtx, docPath, doc); err != nil {
		return err
	}
	return nil
}

// outboundDoc resolves a create/update entry to its document path and
// payload from the current local row.
func (c *Coordinator) outboundDoc(entry store.QueueEntry) (string, remote.Doc, error) {
	switch entry.EntityType {
	case store.EntityUser:
		u, err := c.db.GetUser(entry.EntityID)
		if err != nil {
			return "", nil, err
		}
		if u == nil {
			return "", nil, errStaleEntry
		}
		return remote.UserPath(u.ID), remote.EncodeUser(u), nil

	case store.EntityGroup:
		g, err := c.db.GetGroup(entry.EntityID, true)
		if err != nil {
			return "", nil, err
		}
		if g == nil {
			return "", nil, errStaleEntry
		}
		return remote.GroupPath(g.ID), remote.EncodeGroup(g), nil

	case store.EntityGroupMember:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("malformed member id %q", entry.EntityID)
		}
		m, err := c.db.GetMember(parts[0], parts[1], true)
		if err != nil {
			return "", nil, err
		}
		if m == nil {
			return "", nil, errStaleEntry
		}
		return remote.MemberPath(m.GroupID, m.UserID), remote.EncodeMember(m), nil

	case store.EntityGroupBalance:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("malformed balance id %q", entry.EntityID)
		}
		balances, err := c.db.ListBalances(parts[0])
		if err != nil {
			return "", nil, err
		}
		for i := range balances {
			if balances[i].UserID == parts[1] {
				return remote.BalancePath(parts[0], parts[1]), remote.EncodeBalance(&balances[i]), nil
			}
		}
		return "", nil, errStaleEntry

	case store.EntityExpense:
		e, err := c.db.GetExpense(entry.EntityID, true)
		if err != nil {
			return "", nil, err
		}
		if e == nil {
			return "", nil, errStaleEntry
		}
		return remote.ExpensePath(e.GroupID, e.ID), remote.EncodeExpense(e), nil

	case store.EntityExpenseShare:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("malformed share id %q", entry.EntityID)
		}
		s, err := c.db.GetShare(parts[0], parts[1], true)
		if err != nil {
			return "", nil, err
		}
		if s == nil {
			return "", nil, errStaleEntry
		}
		return remote.SharePath(s.GroupID, s.EntityID()), remote.EncodeShare(s), nil
	}
	return "", nil, fmt.Errorf("unknown entity type %q", entry.EntityType)
}

// deletePath resolves a delete entry to its document path. The parent
// group id comes from the entry metadata when the composite id alone
// can't supply it.
func (c *Coordinator) deletePath(entry store.QueueEntry) (string, error) {
	switch entry.EntityType {
	case store.EntityUser:
		return remote.UserPath(entry.EntityID), nil

	case store.EntityGroup:
		return remote.GroupPath(entry.EntityID), nil

	case store.EntityGroupMember:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return "", fmt.Errorf("malformed member id %q", entry.EntityID)
		}
		return remote.MemberPath(parts[0], parts[1]), nil

	case store.EntityGroupBalance:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return "", fmt.Errorf("malformed balance id %q", entry.EntityID)
		}
		return remote.BalancePath(parts[0], parts[1]), nil

	case store.EntityExpense:
		groupID := entry.Metadata
		if groupID == "" {
			e, err := c.db.GetExpense(entry.EntityID, true)
			if err != nil {
				return "", err
			}
			if e == nil {
				return "", fmt.Errorf("expense %s: no metadata and no local row", entry.EntityID)
			}
			groupID = e.GroupID
		}
		return remote.ExpensePath(groupID, entry.EntityID), nil

	case store.EntityExpenseShare:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return "", fmt.Errorf("malformed share id %q", entry.EntityID)
		}
		groupID := entry.Metadata
		if groupID == "" {
			s, err := c.db.GetShare(parts[0], parts[1], true)
			if err != nil {
				return "", err
			}
			if s == nil {
				return "", fmt.Errorf("share %s: no metadata and no local row", entry.EntityID)
			}
			groupID = s.GroupID
		}
		return remote.SharePath(groupID, entry.EntityID), nil
	}
	return "", fmt.Errorf("unknown entity type %q", entry.EntityType)
}

// purge hard-deletes the local tombstone after its remote delete was
// confirmed and the entry dequeued.
func (c *Coordinator) purge(entry store.QueueEntry) error {
	switch entry.EntityType {
	case store.EntityGroup:
		return c.db.HardDeleteGroup(entry.EntityID)
	case store.EntityGroupMember:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return fmt.Errorf("malformed member id %q", entry.EntityID)
		}
		return c.db.HardDeleteMember(parts[0], parts[1])
	case store.EntityGroupBalance:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return fmt.Errorf("malformed balance id %q", entry.EntityID)
		}
		return c.db.HardDeleteBalance(parts[0], parts[1])
	case store.EntityExpense:
		return c.db.HardDeleteExpense(entry.EntityID)
	case store.EntityExpenseShare:
		parts := store.SplitCompositeID(entry.EntityID)
		if len(parts) != 2 {
			return fmt.Errorf("malformed share id %q", entry.EntityID)
		}
		return c.db.HardDeleteShare(parts[0], parts[1])
	}
	return nil
}
