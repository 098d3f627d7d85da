package expiry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pantrynotify/internal/config"
	"pantrynotify/internal/types"
)

// dedupKey identifies a prior successful notification. Tier is empty under
// the day policy, where any tier counts.
type dedupKey struct {
	userID       string
	ingredientID string
	notifType    string
}

// dedupIndex answers "was this already sent" for the active policy.
type dedupIndex struct {
	policy string
	seen   map[dedupKey]bool
}

// dedupSince returns the earliest sent_at that can suppress a send. Under the
// tier policy that is the first day any current ingredient could have
// entered the window.
func dedupSince(policy string, window types.NotificationWindow) time.Time {
	if policy == config.DedupDay {
		return window.Today
	}
	return window.Today.AddDate(0, 0, -window.DaysAhead)
}

// loadDedupIndex reads prior successful sends for the recipients. Test sends
// never suppress real ones.
func loadDedupIndex(ctx context.Context, log NotificationLog, policy string, window types.NotificationWindow, recipients []types.NotificationRecipient) (*dedupIndex, error) {
	idx := &dedupIndex{policy: policy, seen: map[dedupKey]bool{}}
	if policy == config.DedupNone || len(recipients) == 0 {
		return idx, nil
	}

	userIDs := make([]string, len(recipients))
	for i, r := range recipients {
		userIDs[i] = r.UserID
	}
	entries, err := log.SentSince(ctx, userIDs, dedupSince(policy, window))
	if err != nil {
		return nil, fmt.Errorf("load notification history: %w", err)
	}

	for _, e := range entries {
		if !e.EmailSent || e.NotificationType == types.NotificationTypeTest ||
			!strings.HasPrefix(e.NotificationType, types.NotificationTypePrefix) {
			continue
		}
		key := dedupKey{userID: e.UserID, ingredientID: e.IngredientID}
		if policy == config.DedupTier {
			key.notifType = e.NotificationType
		}
		idx.seen[key] = true
	}
	return idx, nil
}

// filter removes already-notified ingredients and reports how many it removed.
func (d *dedupIndex) filter(today time.Time, r types.NotificationRecipient) (types.NotificationRecipient, int) {
	if len(d.seen) == 0 {
		return r, 0
	}
	kept := make([]types.StoredIngredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		key := dedupKey{userID: r.UserID, ingredientID: ing.ID}
		if d.policy == config.DedupTier {
			key.notifType = types.NotificationTypeFor(Classify(today, ing))
		}
		if !d.seen[key] {
			kept = append(kept, ing)
		}
	}
	skipped := len(r.Ingredients) - len(kept)
	r.Ingredients = kept
	return r, skipped
}
