package expiry

import (
	"pantrynotify/internal/types"
)

// buildRecipients joins the directory result against the locally fetched
// ingredients. Users with no local rows are dropped, as are users other than
// onlyUser when it is set. Directory order is preserved and duplicate user
// rows are collapsed.
func buildRecipients(window types.NotificationWindow, ingredients []types.StoredIngredient, users []types.UserContact, onlyUser string) []types.NotificationRecipient {
	byOwner := make(map[string][]types.StoredIngredient)
	for _, ing := range ingredients {
		if !window.Contains(ing.ExpiryDate) {
			continue
		}
		byOwner[ing.OwnerID] = append(byOwner[ing.OwnerID], ing)
	}

	seen := make(map[string]bool, len(users))
	var out []types.NotificationRecipient
	for _, u := range users {
		if seen[u.UserID] || (onlyUser != "" && u.UserID != onlyUser) {
			continue
		}
		seen[u.UserID] = true
		rows := byOwner[u.UserID]
		if len(rows) == 0 {
			continue
		}
		out = append(out, types.NotificationRecipient{
			UserID:      u.UserID,
			Email:       u.Email,
			Ingredients: rows,
		})
	}
	return out
}

// inWindow drops rows the store should not have returned.
func inWindow(window types.NotificationWindow, ingredients []types.StoredIngredient) []types.StoredIngredient {
	out := ingredients[:0:0]
	for _, ing := range ingredients {
		if window.Contains(ing.ExpiryDate) {
			out = append(out, ing)
		}
	}
	return out
}
