package external

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"pantrynotify/internal/types"
)

// SimulatedEmailProvider stands in for a real provider when no credentials
// are configured. It logs the would-be email and never touches the network.
type SimulatedEmailProvider struct {
	logger *slog.Logger
	sent   atomic.Int64
}

func NewSimulatedEmailProvider(logger *slog.Logger) *SimulatedEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedEmailProvider{logger: logger}
}

func (s *SimulatedEmailProvider) Name() string { return "simulation" }

func (s *SimulatedEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.sent.Add(1)
	s.logger.InfoContext(ctx, "simulation: email not sent",
		"to", maskAddress(input.To),
		"subject", input.Subject,
		"reference_id", input.ReferenceID,
		"text_bytes", len(input.BodyText),
		"html_bytes", len(input.BodyHTML),
	)
	return fmt.Sprintf("sim_%s", input.ReferenceID), nil
}

// Sent returns how many emails were simulated.
func (s *SimulatedEmailProvider) Sent() int64 {
	return s.sent.Load()
}

// maskAddress keeps the first character of the local part and the domain.
func maskAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

var _ EmailProvider = (*SimulatedEmailProvider)(nil)
