package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"pantrynotify/internal/types"
)

// SQSSender abstracts SendMessage for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// FailurePublisher sends DeliveryFailureMessages to the failed-delivery
// queue so an operator can inspect and redrive them. Nothing consumes the
// queue automatically.
type FailurePublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

func NewFailurePublisher(client SQSSender, queueURL string, logger types.Logger) *FailurePublisher {
	return &FailurePublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishFailure serializes msg and sends it with run and error-code
// attributes for filtering in the console.
func (p *FailurePublisher) PublishFailure(ctx context.Context, msg types.DeliveryFailureMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failure publisher: failed to marshal message: %w", err)
	}

	// SQS rejects empty attribute values.
	attrs := map[string]sqstypes.MessageAttributeValue{}
	for name, value := range map[string]string{"run_id": msg.RunID, "error_code": string(msg.ErrorCode)} {
		if value != "" {
			attrs[name] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failure publisher: failed to send message to %s: %w", p.queueURL, err)
	}

	p.logger.Info("delivery failure published",
		"run_id", msg.RunID,
		"user_id", msg.UserID,
		"ingredients", len(msg.IngredientIDs),
		"error_code", string(msg.ErrorCode),
	)
	return nil
}
