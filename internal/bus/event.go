package bus

import (
	"time"

	"github.com/tmachado/splitsync/internal/store"
)

// Kind identifies an event variant. The set is closed: payload types
// below are the only implementations of Payload, so consumers can
// switch exhaustively.
type Kind string

const (
	KindEntityMutated   Kind = "entity.mutated"
	KindUploadSucceeded Kind = "upload.succeeded"
	KindUploadFailed    Kind = "upload.failed"
	KindReconcilePulled Kind = "reconcile.pulled"
	KindBalancesUpdated Kind = "balances.updated"
	KindStatusChanged   Kind = "status.changed"
)

// Payload is the closed union of event payloads.
type Payload interface {
	Kind() Kind
}

// Event is one published occurrence. There is no buffering or replay:
// subscribers attached after Publish never see the event.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   Payload
}

// EntityMutated announces a committed local mutation (entity write plus
// queue enqueue, already durable).
type EntityMutated struct {
	OwnerID    string
	EntityType store.EntityType
	EntityID   string
	Operation  store.OperationType
}

func (EntityMutated) Kind() Kind { return KindEntityMutated }

// UploadSucceeded announces a confirmed remote write and the matching
// queue dequeue.
type UploadSucceeded struct {
	OwnerID    string
	EntityType store.EntityType
	EntityID   string
	Operation  store.OperationType
}

func (UploadSucceeded) Kind() Kind { return KindUploadSucceeded }

// UploadFailed announces a failed upload attempt; the entry stays
// pending with its retry count incremented.
type UploadFailed struct {
	OwnerID    string
	EntityType store.EntityType
	EntityID   string
	Err        string
	RetryCount int
}

func (UploadFailed) Kind() Kind { return KindUploadFailed }

// ReconcilePulled announces a completed remote pull for an owner.
type ReconcilePulled struct {
	OwnerID string
	Groups  int
	Records int
}

func (ReconcilePulled) Kind() Kind { return KindReconcilePulled }

// BalancesUpdated announces a recomputed balance read-model for a group.
type BalancesUpdated struct {
	GroupID string
	Members int
}

func (BalancesUpdated) Kind() Kind { return KindBalancesUpdated }

// StatusChanged announces a sync runtime state transition.
type StatusChanged struct {
	From string
	To   string
}

func (StatusChanged) Kind() Kind { return KindStatusChanged }
