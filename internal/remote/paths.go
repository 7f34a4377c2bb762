package remote

import "path"

// Document layout: users and groups are top-level collections; members,
// expenses, shares and balances nest under their owning group.

func UserPath(userID string) string { return path.Join("users", userID) }

func GroupPath(groupID string) string { return path.Join("groups", groupID) }

func MembersCollection(groupID string) string { return path.Join("groups", groupID, "members") }

func MemberPath(groupID, userID string) string { return path.Join(MembersCollection(groupID), userID) }

func ExpensesCollection(groupID string) string { return path.Join("groups", groupID, "expenses") }

func ExpensePath(groupID, expenseID string) string {
	return path.Join(ExpensesCollection(groupID), expenseID)
}

func SharesCollection(groupID string) string { return path.Join("groups", groupID, "shares") }

// SharePath addresses a share by its composite id (expenseID:userID).
func SharePath(groupID, shareID string) string { return path.Join(SharesCollection(groupID), shareID) }

func BalancesCollection(groupID string) string { return path.Join("groups", groupID, "balances") }

func BalancePath(groupID, userID string) string {
	return path.Join(BalancesCollection(groupID), userID)
}

// DocID returns the last path segment, the document id.
func DocID(docPath string) string { return path.Base(docPath) }
