package email

import (
	"fmt"
	"time"

	"pantrynotify/internal/types"
)

// Item is one ingredient line in a digest.
type Item struct {
	Name     string
	Expiry   time.Time
	DaysLeft int
}

// Section groups the items of one urgency tier.
type Section struct {
	Tier  types.UrgencyTier
	Items []Item
}

// Label is the sub-heading shown above the section.
func (s Section) Label() string {
	return TierLabel(s.Tier)
}

// Digest is everything needed to render one recipient's email. Sections must
// be non-empty and ordered most urgent first.
type Digest struct {
	Sections  []Section
	DaysAhead int
	TestMode  bool
}

// ItemCount returns the number of ingredients across all sections.
func (d Digest) ItemCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Items)
	}
	return n
}

// LeadTier returns the most urgent tier that has at least one item.
func (d Digest) LeadTier() (types.UrgencyTier, bool) {
	best, found := types.TierLater, false
	for _, s := range d.Sections {
		if len(s.Items) == 0 {
			continue
		}
		if !found || s.Tier.Rank() < best.Rank() {
			best, found = s.Tier, true
		}
	}
	return best, found
}

// Header is the opening line of the email, chosen by LeadTier.
func (d Digest) Header() string {
	tier, _ := d.LeadTier()
	return TierHeader(tier)
}

// Subject builds the subject line.
func (d Digest) Subject() string {
	n := d.ItemCount()
	noun := "ingredients"
	if n == 1 {
		noun = "ingredient"
	}
	tier, _ := d.LeadTier()
	var subject string
	switch tier {
	case types.TierUrgent:
		subject = fmt.Sprintf("Use it or lose it: %d %s expiring now", n, noun)
	case types.TierSoon:
		subject = fmt.Sprintf("%d %s expiring in the next few days", n, noun)
	default:
		subject = fmt.Sprintf("Pantry reminder: %d %s expiring soon", n, noun)
	}
	if d.TestMode {
		subject = "[TEST] " + subject
	}
	return subject
}

// TierLabel is the section heading for a tier.
func TierLabel(t types.UrgencyTier) string {
	switch t {
	case types.TierUrgent:
		return "Expiring today or tomorrow"
	case types.TierSoon:
		return "Expiring in 2-3 days"
	case types.TierMedium:
		return "Expiring this week"
	default:
		return "Expiring later"
	}
}

// TierHeader is the digest header used when t is the most urgent tier present.
func TierHeader(t types.UrgencyTier) string {
	switch t {
	case types.TierUrgent:
		return "Some of your ingredients are about to expire!"
	case types.TierSoon:
		return "Heads up: a few ingredients expire in the next couple of days."
	case types.TierMedium:
		return "Plan your meals: these ingredients expire this week."
	default:
		return "Here is what is coming up in your pantry."
	}
}

// When renders DaysLeft as "today", "tomorrow" or "in N days".
func (i Item) When() string {
	switch {
	case i.DaysLeft <= 0:
		return "today"
	case i.DaysLeft == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", i.DaysLeft)
	}
}
