package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrynotify/internal/types"
)

func TestClassifyThresholds(t *testing.T) {
	today := testNow
	tests := []struct {
		expiry string
		want   types.UrgencyTier
	}{
		{"2025-06-01", types.TierUrgent},
		{"2025-06-02", types.TierUrgent},
		{"2025-06-03", types.TierSoon},
		{"2025-06-04", types.TierSoon},
		{"2025-06-05", types.TierMedium},
		{"2025-06-08", types.TierMedium},
		{"2025-06-09", types.TierLater},
		{"2025-07-01", types.TierLater},
	}
	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			i := ing("x", "U1", "x", tt.expiry)
			assert.Equal(t, tt.want, Classify(today, i))
			assert.Equal(t, tt.want, Classify(today, i), "classification is idempotent")
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	prev := types.TierUrgent
	for days := 0; days <= 30; days++ {
		tier := types.ClassifyDays(days)
		assert.GreaterOrEqual(t, tier.Rank(), prev.Rank(), "days=%d", days)
		prev = tier
	}
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	i := ing("x", "U1", "x", "2025-06-03")
	early := time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC)
	late := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, Classify(early, i), Classify(late, i))
}

func TestBucketOrdering(t *testing.T) {
	rows := []types.StoredIngredient{
		ing("5", "U1", "Rice", "2025-06-20"),
		ing("4", "U1", "bread", "2025-06-03"),
		ing("3", "U1", "Apples", "2025-06-03"),
		ing("2", "U1", "Cheese", "2025-06-06"),
		ing("1", "U1", "Eggs", "2025-06-01"),
	}
	sections := Bucket(testNow, rows)

	require.Len(t, sections, 4)
	names := func(i int) []string {
		var out []string
		for _, it := range sections[i].Items {
			out = append(out, it.Name)
		}
		return out
	}
	assert.Equal(t, types.TierUrgent, sections[0].Tier)
	assert.Equal(t, []string{"Eggs"}, names(0))
	assert.Equal(t, types.TierSoon, sections[1].Tier)
	assert.Equal(t, []string{"Apples", "bread"}, names(1))
	assert.Equal(t, types.TierMedium, sections[2].Tier)
	assert.Equal(t, types.TierLater, sections[3].Tier)
	assert.Equal(t, 19, sections[3].Items[0].DaysLeft)

	assert.Equal(t, "5", rows[0].ID, "input is not reordered")
}

func TestBucketOmitsEmptyTiers(t *testing.T) {
	sections := Bucket(testNow, []types.StoredIngredient{ing("1", "U1", "Milk", "2025-06-04")})
	require.Len(t, sections, 1)
	assert.Equal(t, types.TierSoon, sections[0].Tier)
}

func TestBuildRecipientsExcludesOutOfWindow(t *testing.T) {
	window := types.NewNotificationWindow(testNow, 3)
	rows := []types.StoredIngredient{
		ing("a", "U1", "Milk", "2025-06-02"),
		ing("b", "U1", "Old", "2025-05-31"),
		ing("c", "U1", "Far", "2025-06-05"),
		ing("d", "U1", "None", ""),
	}
	got := buildRecipients(window, rows, []types.UserContact{{UserID: "U1", Email: "u1@x.y"}}, "")
	require.Len(t, got, 1)
	require.Len(t, got[0].Ingredients, 1)
	assert.Equal(t, "a", got[0].Ingredients[0].ID)

	assert.Len(t, inWindow(window, rows), 1)
}
