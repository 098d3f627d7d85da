package expiry

import (
	"fmt"

	"pantrynotify/internal/types"
)

// Summary is the human-readable message returned alongside a RunResult.
// Qualifying ingredients with zero emails sent is called out so the caller
// checks preferences and provider configuration.
func Summary(r *types.RunResult) string {
	switch {
	case r == nil:
		return ""
	case r.ExpiringIngredients == 0:
		return fmt.Sprintf("No ingredients expiring between %s and %s", r.DateRange.From, r.DateRange.To)
	case r.UsersToNotify == 0 && r.AlreadyNotified > 0:
		return fmt.Sprintf("Found %d expiring ingredients; all %d were already notified", r.ExpiringIngredients, r.AlreadyNotified)
	case r.EmailsSent == 0:
		return fmt.Sprintf("Found %d expiring ingredients but no emails were sent; check users' notification preferences and the email provider configuration", r.ExpiringIngredients)
	}

	verb := "Sent"
	if r.Mode == types.ModeSimulation {
		verb = "Simulated"
	}
	msg := fmt.Sprintf("%s %d of %d expiry digests for %d ingredients", verb, r.EmailsSent, r.UsersToNotify, r.ExpiringIngredients)
	if r.EmailErrors > 0 {
		msg += fmt.Sprintf(" (%d failed)", r.EmailErrors)
	}
	if r.LogErrors > 0 {
		msg += fmt.Sprintf("; %d notification log writes failed", r.LogErrors)
	}
	return msg
}
