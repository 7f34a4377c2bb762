package store

import "strings"

// EntityType identifies which local table a mutation targets.
type EntityType string

const (
	EntityUser         EntityType = "user"
	EntityGroup        EntityType = "group"
	EntityGroupMember  EntityType = "group_member"
	EntityGroupBalance EntityType = "group_balance"
	EntityExpense      EntityType = "expense"
	EntityExpenseShare EntityType = "expense_share"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityUser, EntityGroup, EntityGroupMember, EntityGroupBalance, EntityExpense, EntityExpenseShare:
		return true
	}
	return false
}

// OperationType identifies the kind of pending remote operation.
type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// Valid reports whether o is one of the known operation types.
func (o OperationType) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

const compositeSep = ":"

// CompositeID joins the parts of a multi-column primary key. The ":"
// separator never appears in document paths, so composite ids stay
// unambiguous when embedded in them.
func CompositeID(parts ...string) string {
	return strings.Join(parts, compositeSep)
}

// SplitCompositeID is the inverse of CompositeID.
func SplitCompositeID(id string) []string {
	return strings.Split(id, compositeSep)
}

// QueueEntry is one pending outbound mutation. At most one live entry
// exists per (owner_id, entity_type, entity_id); a later enqueue
// replaces an earlier one in place.
type QueueEntry struct {
	ID            int64
	OwnerID       string
	EntityType    EntityType
	EntityID      string
	OperationType OperationType
	Metadata      string // optional uploader hints, e.g. group id of a soft-deleted expense
	CreatedAt     int64
	RetryCount    int
	LastError     string // empty when the entry never failed
}

// User is a known app user (the device owner or a group co-member).
type User struct {
	ID          string
	DisplayName string
	Email       string
	PhotoURL    string
	CreatedAt   int64
	UpdatedAt   int64
}

// Group is a shared-expense group.
type Group struct {
	ID             string
	Name           string
	Currency       string
	CreatedBy      string
	CreatedAt      int64
	UpdatedAt      int64
	LastActivityAt int64
	DeletedAt      int64 // 0 = active
}

// GroupMember links a user into a group.
type GroupMember struct {
	GroupID   string
	UserID    string
	Role      string
	CreatedAt int64
	UpdatedAt int64
	DeletedAt int64
}

// EntityID returns the composite queue/document key for the membership.
func (m *GroupMember) EntityID() string {
	return CompositeID(m.GroupID, m.UserID)
}

// Expense is one shared expense inside a group.
type Expense struct {
	ID          string
	GroupID     string
	PaidBy      string
	Description string
	Category    string
	Currency    string
	AmountCents int64
	ExpenseDate int64
	CreatedAt   int64
	UpdatedAt   int64
	DeletedAt   int64
}

// ExpenseShare is one member's portion of an expense. GroupID is
// denormalized so the uploader can resolve the parent path even after
// the owning expense is tombstoned.
type ExpenseShare struct {
	ExpenseID   string
	UserID      string
	GroupID     string
	AmountCents int64
	CreatedAt   int64
	UpdatedAt   int64
	DeletedAt   int64
}

// EntityID returns the composite queue/document key for the share.
func (s *ExpenseShare) EntityID() string {
	return CompositeID(s.ExpenseID, s.UserID)
}

// GroupBalance is the derived net position of one member in a group.
// Positive means the group owes the member.
type GroupBalance struct {
	GroupID     string
	UserID      string
	AmountCents int64
	UpdatedAt   int64
}

// EntityID returns the composite queue/document key for the balance.
func (b *GroupBalance) EntityID() string {
	return CompositeID(b.GroupID, b.UserID)
}
