package expiry

import (
	"slices"
	"strings"
	"time"

	"pantrynotify/internal/notifications/email"
	"pantrynotify/internal/types"
)

// Classify returns the tier for an ingredient relative to today. Callers
// only pass ingredients with a non-nil expiry.
func Classify(today time.Time, ing types.StoredIngredient) types.UrgencyTier {
	return types.ClassifyDays(types.DaysUntil(today, *ing.ExpiryDate))
}

// sortIngredients orders by expiry ascending, then name, then id.
func sortIngredients(items []types.StoredIngredient) {
	slices.SortStableFunc(items, func(a, b types.StoredIngredient) int {
		if c := types.DateOf(*a.ExpiryDate).Compare(types.DateOf(*b.ExpiryDate)); c != 0 {
			return c
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Bucket groups ingredients into digest sections, most urgent tier first.
// Empty tiers are omitted.
func Bucket(today time.Time, ingredients []types.StoredIngredient) []email.Section {
	sorted := slices.Clone(ingredients)
	sortIngredients(sorted)

	byTier := make(map[types.UrgencyTier][]email.Item, len(types.TiersByUrgency))
	for _, ing := range sorted {
		days := types.DaysUntil(today, *ing.ExpiryDate)
		tier := types.ClassifyDays(days)
		byTier[tier] = append(byTier[tier], email.Item{
			Name:     ing.Name,
			Expiry:   types.DateOf(*ing.ExpiryDate),
			DaysLeft: days,
		})
	}

	sections := make([]email.Section, 0, len(byTier))
	for _, tier := range types.TiersByUrgency {
		if items := byTier[tier]; len(items) > 0 {
			sections = append(sections, email.Section{Tier: tier, Items: items})
		}
	}
	return sections
}
