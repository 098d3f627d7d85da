package email

import (
	"context"
	"log/slog"

	"pantrynotify/internal/external"
	"pantrynotify/internal/types"
)

// DigestSender renders a Digest and delivers it through an EmailProvider.
type DigestSender struct {
	provider external.EmailProvider
	renderer *Renderer
	logger   *slog.Logger
}

// DigestSenderConfig holds the dependencies of a DigestSender.
type DigestSenderConfig struct {
	Provider external.EmailProvider
	Renderer *Renderer
	Logger   *slog.Logger
}

func NewDigestSender(cfg DigestSenderConfig) *DigestSender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestSender{
		provider: cfg.Provider,
		renderer: cfg.Renderer,
		logger:   logger,
	}
}

// ProviderName reports the underlying provider for metrics dimensions.
func (s *DigestSender) ProviderName() string {
	return external.ProviderName(s.provider)
}

// Send renders d and makes exactly one provider call. referenceID is passed
// through as the provider idempotency key.
func (s *DigestSender) Send(ctx context.Context, to string, d Digest, referenceID string) (string, error) {
	rendered, sender, err := s.renderer.Render(d)
	if err != nil {
		s.logger.ErrorContext(ctx, "digest rendering failed",
			"dest", RedactEmail(to),
			"reference_id", referenceID,
			"error", err,
		)
		return "", err
	}

	msgID, err := s.provider.Send(ctx, types.SendInput{
		To:          to,
		From:        sender,
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: referenceID,
	})
	if err != nil {
		if IsBlocklistError(err) {
			s.logger.WarnContext(ctx, "recipient blocked by provider",
				"dest", RedactEmail(to),
				"reference_id", referenceID,
			)
		}
		return "", err
	}

	s.logger.InfoContext(ctx, "digest sent",
		"dest", RedactEmail(to),
		"provider", s.ProviderName(),
		"provider_message_id", msgID,
		"items", d.ItemCount(),
	)
	return msgID, nil
}
