// Package queue provides the SQS message producer that dispatches
// re-evaluation requests to the ingest worker pipeline.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"riskwatch/internal/config"
	"riskwatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EvalTrigger implements types.EvaluationTrigger by serializing an
// EvalMessage and sending it to the evaluation queue. The API uses it to
// request asynchronous re-evaluation after an ingest run; the ingest worker
// consumes the messages.
type EvalTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEvalTrigger creates an EvalTrigger reading the queue URL from the
// AWS configuration.
func NewEvalTrigger(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *EvalTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvalTrigger{
		client:   client,
		queueURL: awsCfg.EvalQueueURL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TriggerEvaluation enqueues a re-evaluation request. An empty neighborhoodIDs
// slice requests a full-table evaluation.
func (t *EvalTrigger) TriggerEvaluation(ctx context.Context, neighborhoodIDs []string, reason string) error {
	msg := types.EvalMessage{
		MessageID:       uuid.NewString(),
		NeighborhoodIDs: neighborhoodIDs,
		Reason:          reason,
		TriggeredAt:     t.now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal EvalMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send EvalMessage to %s: %w", t.queueURL, err)
	}

	t.logger.InfoContext(ctx, "evaluation message sent",
		"queue_url", t.queueURL,
		"message_id", msg.MessageID,
		"neighborhood_ids", neighborhoodIDs,
		"reason", reason,
	)

	return nil
}

var _ types.EvaluationTrigger = (*EvalTrigger)(nil)
