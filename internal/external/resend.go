package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"pantrynotify/internal/types"
)

const resendAPIBase = "https://api.resend.com"

// ResendClientConfig configures a ResendClient.
type ResendClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// ResendClient implements EmailProvider against the Resend REST API.
type ResendClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewResendClient creates a client with the default retry policy.
func NewResendClient(httpClient *http.Client, cfg ResendClientConfig) *ResendClient {
	base := NewBaseClient(httpClient, "resend", DefaultRetryPolicy(), "pantrynotify/1.0")
	return NewResendClientWithBase(base, cfg)
}

// NewResendClientWithBase creates a client around a pre-built BaseClient.
func NewResendClientWithBase(base *BaseClient, cfg ResendClientConfig) *ResendClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = resendAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResendClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

func (c *ResendClient) Name() string { return "resend" }

type resendEmailRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	Text    string      `json:"text,omitempty"`
	HTML    string      `json:"html,omitempty"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendEmailResponse struct {
	ID string `json:"id"`
}

type resendErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send posts to /emails. ReferenceID doubles as the Idempotency-Key so a
// transport retry cannot produce a duplicate email.
func (c *ResendClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	payload := resendEmailRequest{
		From:    formatSender(input.From),
		To:      []string{input.To},
		Subject: input.Subject,
		Text:    input.BodyText,
		HTML:    input.BodyHTML,
	}
	if input.ReferenceID != "" {
		payload.Tags = []resendTag{{Name: "reference_id", Value: input.ReferenceID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal Resend payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Resend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if input.ReferenceID != "" {
		req.Header.Set("Idempotency-Key", input.ReferenceID)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", wrapTransportError("Resend", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out resendEmailResponse
		if readErr != nil || json.Unmarshal(raw, &out) != nil {
			c.logger.WarnContext(ctx, "resend accepted email but response was unreadable", "status", resp.StatusCode)
		}
		return out.ID, nil
	}

	msg := strings.TrimSpace(string(raw))
	var re resendErrorResponse
	if json.Unmarshal(raw, &re) == nil && re.Message != "" {
		msg = re.Name + ": " + re.Message
	}
	return "", mapResendError(resp.StatusCode, msg)
}

func mapResendError(status int, message string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "Resend rate limit exceeded", nil)
	case status >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("Resend server error: %s", message), nil)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("Resend error (%d): %s", status, message), nil,
			map[string]any{"status": status})
	}
}

// formatSender renders "Name <address>" or the bare address.
func formatSender(id types.SenderIdentity) string {
	if id.Name == "" {
		return id.Address
	}
	return fmt.Sprintf("%s <%s>", id.Name, id.Address)
}

// wrapTransportError keeps BaseClient's AppErrors and classifies anything
// else as a provider failure.
func wrapTransportError(provider string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("%s request failed: %v", provider, err), err)
}

var _ EmailProvider = (*ResendClient)(nil)
