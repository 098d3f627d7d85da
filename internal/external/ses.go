package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"pantrynotify/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESClient.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig configures an SESClient.
type SESClientConfig struct {
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient implements EmailProvider with AWS SES v2 simple content.
// Credentials come from the IAM role; the SDK retries on its own so there is
// no BaseClient here.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{api: api, configSetName: cfg.ConfigSetName, logger: logger}
}

func (s *SESClient) Name() string { return "ses" }

func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	body := &sestypes.Body{}
	if input.BodyHTML != "" {
		body.Html = utf8Content(input.BodyHTML)
	}
	if input.BodyText != "" {
		body.Text = utf8Content(input.BodyText)
	}

	req := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(formatSender(input.From)),
		Destination:      &sestypes.Destination{ToAddresses: []string{input.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: utf8Content(input.Subject),
				Body:    body,
			},
		},
	}
	if s.configSetName != "" {
		req.ConfigurationSetName = aws.String(s.configSetName)
	}
	if input.ReferenceID != "" {
		req.EmailTags = []sestypes.MessageTag{{
			Name:  aws.String("ReferenceID"),
			Value: aws.String(input.ReferenceID),
		}}
	}

	out, err := s.api.SendEmail(ctx, req)
	if err != nil {
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func utf8Content(s string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func mapSESError(err error) error {
	var (
		rejected *sestypes.MessageRejected
		throttle *sestypes.TooManyRequestsException
		paused   *sestypes.SendingPausedException
	)
	switch {
	case errors.As(err, &rejected):
		return types.NewAppError(types.ErrCodeEmailBlocked, fmt.Sprintf("SES rejected message: %v", err), err)
	case errors.As(err, &throttle):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, fmt.Sprintf("SES rate limit exceeded: %v", err), err)
	case errors.As(err, &paused):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SES sending paused: %v", err), err)
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "SES request timed out", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("SES error: %v", err), err)
	}
}

var _ EmailProvider = (*SESClient)(nil)
