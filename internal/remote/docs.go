package remote

import "github.com/tmachado/splitsync/internal/store"

// Codecs between local rows and remote documents. Field names are the
// wire contract; updated_at on written docs is overwritten by the
// server clock in Set.

func EncodeUser(u *store.User) Doc {
	return Doc{
		"display_name": u.DisplayName,
		"email":        u.Email,
		"photo_url":    u.PhotoURL,
		"created_at":   u.CreatedAt,
	}
}

func DecodeUser(id string, d Doc) *store.User {
	return &store.User{
		ID:          id,
		DisplayName: docString(d, "display_name"),
		Email:       docString(d, "email"),
		PhotoURL:    docString(d, "photo_url"),
		CreatedAt:   docInt64(d, "created_at"),
		UpdatedAt:   docInt64(d, "updated_at"),
	}
}

func EncodeGroup(g *store.Group) Doc {
	return Doc{
		"name":             g.Name,
		"currency":         g.Currency,
		"created_by":       g.CreatedBy,
		"created_at":       g.CreatedAt,
		"last_activity_at": g.LastActivityAt,
	}
}

func DecodeGroup(id string, d Doc) *store.Group {
	return &store.Group{
		ID:             id,
		Name:           docString(d, "name"),
		Currency:       docString(d, "currency"),
		CreatedBy:      docString(d, "created_by"),
		CreatedAt:      docInt64(d, "created_at"),
		UpdatedAt:      docInt64(d, "updated_at"),
		LastActivityAt: docInt64(d, "last_activity_at"),
	}
}

func EncodeMember(m *store.GroupMember) Doc {
	return Doc{
		"group_id":   m.GroupID,
		"user_id":    m.UserID,
		"role":       m.Role,
		"created_at": m.CreatedAt,
	}
}

func DecodeMember(groupID, userID string, d Doc) *store.GroupMember {
	return &store.GroupMember{
		GroupID:   groupID,
		UserID:    userID,
		Role:      docString(d, "role"),
		CreatedAt: docInt64(d, "created_at"),
		UpdatedAt: docInt64(d, "updated_at"),
	}
}

func EncodeExpense(e *store.Expense) Doc {
	return Doc{
		"group_id":     e.GroupID,
		"paid_by":      e.PaidBy,
		"description":  e.Description,
		"category":     e.Category,
		"currency":     e.Currency,
		"amount_cents": e.AmountCents,
		"expense_date": e.ExpenseDate,
		"created_at":   e.CreatedAt,
	}
}

func DecodeExpense(id string, d Doc) *store.Expense {
	return &store.Expense{
		ID:          id,
		GroupID:     docString(d, "group_id"),
		PaidBy:      docString(d, "paid_by"),
		Description: docString(d, "description"),
		Category:    docString(d, "category"),
		Currency:    docString(d, "currency"),
		AmountCents: docInt64(d, "amount_cents"),
		ExpenseDate: docInt64(d, "expense_date"),
		CreatedAt:   docInt64(d, "created_at"),
		UpdatedAt:   docInt64(d, "updated_at"),
	}
}

func EncodeShare(s *store.ExpenseShare) Doc {
	return Doc{
		"expense_id":   s.ExpenseID,
		"user_id":      s.UserID,
		"group_id":     s.GroupID,
		"amount_cents": s.AmountCents,
		"created_at":   s.CreatedAt,
	}
}

func DecodeShare(d Doc) *store.ExpenseShare {
	return &store.ExpenseShare{
		ExpenseID:   docString(d, "expense_id"),
		UserID:      docString(d, "user_id"),
		GroupID:     docString(d, "group_id"),
		AmountCents: docInt64(d, "amount_cents"),
		CreatedAt:   docInt64(d, "created_at"),
		UpdatedAt:   docInt64(d, "updated_at"),
	}
}

func EncodeBalance(b *store.GroupBalance) Doc {
	return Doc{
		"group_id":     b.GroupID,
		"user_id":      b.UserID,
		"amount_cents": b.AmountCents,
	}
}

func DecodeBalance(groupID, userID string, d Doc) *store.GroupBalance {
	return &store.GroupBalance{
		GroupID:     groupID,
		UserID:      userID,
		AmountCents: docInt64(d, "amount_cents"),
		UpdatedAt:   docInt64(d, "updated_at"),
	}
}

func docString(d Doc, key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func docInt64(d Doc, key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
