package external

import (
	"context"

	"pantrynotify/internal/types"
)

// EmailProvider transmits one pre-rendered email and returns the provider's
// message id. Errors are *types.AppError with a delivery code.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// Named is implemented by providers that report a stable name for metrics.
type Named interface {
	Name() string
}

// ProviderName returns p's name, or "unknown".
func ProviderName(p EmailProvider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
