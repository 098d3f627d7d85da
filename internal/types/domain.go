package types

import (
	"math"
	"time"
)

// StoredIngredient is a pantry item as read from the ingredients table. The
// job never mutates these rows.
type StoredIngredient struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NotificationWindow bounds a run: an ingredient is expiring iff
// Today <= expiry <= End, both compared as calendar dates in UTC.
type NotificationWindow struct {
	Today     time.Time `json:"today"`
	End       time.Time `json:"end"`
	DaysAhead int       `json:"days_ahead"`
}

// NewNotificationWindow truncates now to a UTC calendar date and extends it
// by daysAhead days.
func NewNotificationWindow(now time.Time, daysAhead int) NotificationWindow {
	today := DateOf(now)
	return NotificationWindow{
		Today:     today,
		End:       today.AddDate(0, 0, daysAhead),
		DaysAhead: daysAhead,
	}
}

// Contains reports whether the expiry date falls inside the window. A nil
// expiry is never contained.
func (w NotificationWindow) Contains(expiry *time.Time) bool {
	if expiry == nil {
		return false
	}
	d := DateOf(*expiry)
	return !d.Before(w.Today) && !d.After(w.End)
}

// DateRange returns the window as the wire-level from/to pair.
func (w NotificationWindow) DateRange() DateRange {
	return DateRange{
		From: w.Today.Format(DateLayout),
		To:   w.End.Format(DateLayout),
	}
}

// ExpiringQuery bounds an ingredient scan. OwnerID narrows the scan to one
// user when set.
type ExpiringQuery struct {
	From    time.Time
	To      time.Time
	OwnerID string
}

// DateLayout is the calendar-date format used for expiry dates on the wire.
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// UrgencyTier classifies an ingredient by how soon it expires.
type UrgencyTier string

const (
	TierUrgent UrgencyTier = "urgent"
	TierSoon   UrgencyTier = "soon"
	TierMedium UrgencyTier = "medium"
	TierLater  UrgencyTier = "later"
)

// TiersByUrgency lists tiers from most to least urgent.
var TiersByUrgency = []UrgencyTier{TierUrgent, TierSoon, TierMedium, TierLater}

// Rank orders tiers so that a lower value is more urgent.
func (t UrgencyTier) Rank() int {
	switch t {
	case TierUrgent:
		return 0
	case TierSoon:
		return 1
	case TierMedium:
		return 2
	default:
		return 3
	}
}

// DaysUntil returns the ceiling of the fractional day difference between
// today and expiry. Both are normalized to calendar dates first, so the
// result is an exact integer for date-only values.
func DaysUntil(today, expiry time.Time) int {
	diff := DateOf(expiry).Sub(DateOf(today))
	return int(math.Ceil(diff.Hours() / 24))
}

// ClassifyDays maps a day count to its tier: <=1 urgent, 2-3 soon,
// 4-7 medium, otherwise later.
func ClassifyDays(days int) UrgencyTier {
	switch {
	case days <= 1:
		return TierUrgent
	case days <= 3:
		return TierSoon
	case days <= 7:
		return TierMedium
	default:
		return TierLater
	}
}

// NotificationRecipient groups one user's qualifying ingredients for a run.
type NotificationRecipient struct {
	UserID      string             `json:"user_id"`
	Email       string             `json:"email"`
	Ingredients []StoredIngredient `json:"ingredients"`
}

// NotificationLogEntry is one audit row per (user, ingredient) per attempt.
type NotificationLogEntry struct {
	UserID           string    `json:"user_id"`
	IngredientID     string    `json:"ingredient_id"`
	NotificationType string    `json:"notification_type"`
	SentAt           time.Time `json:"sent_at"`
	EmailSent        bool      `json:"email_sent"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
}

// Notification type values written to the log.
const (
	NotificationTypePrefix = "expiry_"
	NotificationTypeTest   = "expiry_test"
)

// NotificationTypeFor returns the log type for a tier, e.g. "expiry_urgent".
func NotificationTypeFor(t UrgencyTier) string {
	return NotificationTypePrefix + string(t)
}

// RunMode describes how emails were (or would have been) delivered.
type RunMode string

const (
	ModeLive       RunMode = "live"
	ModeTest       RunMode = "test"
	ModeSimulation RunMode = "simulation"
)

// DateRange is the from/to pair reported in a RunResult.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RunResult summarises a single notification run.
type RunResult struct {
	Timestamp           time.Time `json:"timestamp"`
	ExpiringIngredients int       `json:"expiringIngredients"`
	UsersToNotify       int       `json:"usersToNotify"`
	EmailsSent          int       `json:"emailsSent"`
	EmailErrors         int       `json:"emailErrors"`
	DateRange           DateRange `json:"dateRange"`
	Mode                RunMode   `json:"mode"`
	LogErrors           int       `json:"logErrors"`
	AlreadyNotified     int       `json:"alreadyNotified"`
	DaysAhead           int       `json:"daysAhead"`
}

// SenderIdentity is the From address and display name of outbound mail.
type SenderIdentity struct {
	Address string
	Name    string
}

// SendInput is the provider-agnostic request handed to an email provider.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// UserContact is a row from the user directory lookup.
type UserContact struct {
	UserID string `json:"user_id"`
	Email  string `json:"user_email"`
}
