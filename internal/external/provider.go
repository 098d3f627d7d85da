package external

import (
	"context"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"pantrynotify/internal/config"
	"pantrynotify/internal/types"
)

// ProviderSelection is the outcome of NewEmailProvider.
type ProviderSelection struct {
	Provider  EmailProvider
	Simulated bool
}

// NewEmailProvider picks the provider named by cfg.Provider. When that
// provider has no credentials it returns a SimulatedEmailProvider instead.
func NewEmailProvider(ctx context.Context, cfg config.EmailConfig, region string, httpClient *http.Client, logger *slog.Logger) (ProviderSelection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Simulated() {
		logger.WarnContext(ctx, "email provider has no credentials; running in simulation mode", "provider", cfg.Provider)
		return ProviderSelection{Provider: NewSimulatedEmailProvider(logger), Simulated: true}, nil
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	switch cfg.Provider {
	case config.ProviderSendGrid:
		return ProviderSelection{Provider: NewSendGridClient(httpClient, SendGridClientConfig{
			APIKey:  cfg.SendGridAPIKey.Unmask(),
			BaseURL: cfg.SendGridBaseURL,
			Logger:  logger,
		})}, nil
	case config.ProviderSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return ProviderSelection{}, types.NewAppError(types.ErrCodeConfigInvalid, "failed to load AWS config for SES", err)
		}
		return ProviderSelection{Provider: NewSESClient(awsCfg, SESClientConfig{Logger: logger})}, nil
	default:
		return ProviderSelection{Provider: NewResendClient(httpClient, ResendClientConfig{
			APIKey:  cfg.ResendAPIKey.Unmask(),
			BaseURL: cfg.ResendBaseURL,
			Logger:  logger,
		})}, nil
	}
}
