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

const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClientConfig configures a SendGridClient.
type SendGridClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// SendGridClient implements EmailProvider with the v3 Mail Send API, sending
// inline text and HTML content.
type SendGridClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

func NewSendGridClient(httpClient *http.Client, cfg SendGridClientConfig) *SendGridClient {
	base := NewBaseClient(httpClient, "sendgrid", DefaultRetryPolicy(), "pantrynotify/1.0")
	return NewSendGridClientWithBase(base, cfg)
}

func NewSendGridClientWithBase(base *BaseClient, cfg SendGridClientConfig) *SendGridClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

func (s *SendGridClient) Name() string { return "sendgrid" }

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendGrid requires text/plain to precede text/html.
type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// Send posts to /v3/mail/send. SendGrid answers 202 with the id in
// X-Message-Id.
func (s *SendGridClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	body, err := json.Marshal(buildSendGridPayload(input))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal SendGrid payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create SendGrid request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		return "", wrapTransportError("SendGrid", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}

	raw, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(raw))
	var sgErr sendGridErrorResponse
	if json.Unmarshal(raw, &sgErr) == nil && len(sgErr.Errors) > 0 {
		msg = sgErr.Errors[0].Message
	}
	return "", mapSendGridError(resp.StatusCode, msg)
}

func buildSendGridPayload(input types.SendInput) sendGridMailPayload {
	p := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: input.To}}}},
		From:             sendGridAddress{Email: input.From.Address, Name: input.From.Name},
		Subject:          input.Subject,
	}
	if input.BodyText != "" {
		p.Content = append(p.Content, sendGridContent{Type: "text/plain", Value: input.BodyText})
	}
	if input.BodyHTML != "" {
		p.Content = append(p.Content, sendGridContent{Type: "text/html", Value: input.BodyHTML})
	}
	if input.ReferenceID != "" {
		p.CustomArgs = map[string]string{"reference_id": input.ReferenceID}
	}
	return p
}

// mapSendGridError maps 403 (suppression list) to email_blocked.
func mapSendGridError(status int, message string) error {
	switch {
	case status == http.StatusForbidden:
		return types.NewAppError(types.ErrCodeEmailBlocked, fmt.Sprintf("SendGrid blocked delivery: %s", message), nil)
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SendGrid rate limit exceeded", nil)
	case status >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SendGrid server error: %s", message), nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("SendGrid error (%d): %s", status, message), nil)
	}
}

var _ EmailProvider = (*SendGridClient)(nil)
