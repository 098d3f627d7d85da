// Package email turns a recipient's expiring ingredients into a digest email
// and hands it to an external.EmailProvider. Rendering uses html/template and
// text/template over embedded files so the provider only ever sees final
// content.
package email

import (
	"errors"

	"pantrynotify/internal/types"
)

// ErrRecipientBlocked indicates the provider refused the address outright
// (suppression list, prior hard bounce).
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError reports whether err means the recipient is blocked, either
// via the sentinel or an email_blocked AppError from a provider client.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeEmailBlocked
	}
	return false
}

// Retryable reports whether a failed send is worth redriving. Blocked
// recipients and render failures will fail again; provider outages, rate
// limits and timeouts may not.
func Retryable(err error) bool {
	if err == nil || IsBlocklistError(err) {
		return false
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeRenderFailure, types.ErrCodeValidationInvalidEmail:
			return false
		}
	}
	return true
}
