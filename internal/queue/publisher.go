// Package queue provides the SQS producer that fans detected zone transitions
// out to downstream consumers.
package queue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"zonewatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// TransitionPublisher sends one TransitionMessage per detected transition to
// the configured SQS queue for downstream consumers (analytics, municipal
// dashboards). Publishing is best effort: failures are logged and dropped so
// a queue outage never delays or aborts an alert.
type TransitionPublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewTransitionPublisher creates a publisher bound to the given queue URL.
func NewTransitionPublisher(client SQSSender, queueURL string, logger types.Logger) *TransitionPublisher {
	return &TransitionPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishTransition serializes the event and sends it to the queue. Message
// attributes carry direction and severity so consumers can filter without
// decoding the body.
func (p *TransitionPublisher) PublishTransition(ctx context.Context, event types.TransitionEvent, trigger types.ReconcileTrigger) {
	msg := types.TransitionMessage{
		EventID:    event.ID,
		ZoneID:     event.ZoneID,
		Direction:  event.Direction,
		Category:   event.Category,
		Severity:   event.Severity,
		OccurredAt: event.Timestamp,
		Trigger:    trigger,
		Point:      event.Point,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to marshal transition message",
			"error", err.Error(),
			"event_id", event.ID,
		)
		return
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"direction": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Direction)),
			},
			"severity": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Severity)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		p.logger.Warn("failed to publish transition message",
			"error", err.Error(),
			"queue_url", p.queueURL,
			"event_id", event.ID,
			"zone_id", event.ZoneID,
		)
		return
	}

	p.logger.Info("transition message published",
		"queue_url", p.queueURL,
		"event_id", event.ID,
		"zone_id", event.ZoneID,
		"direction", string(event.Direction),
		"trigger", string(trigger),
	)
}
