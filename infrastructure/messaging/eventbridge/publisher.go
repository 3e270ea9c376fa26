package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"devconsole/domain/events"
	pkgerrors "devconsole/pkg/errors"
)

// Source is the EventBridge source attached to every event from this service.
const Source = "devconsole.social"

// maxBatch is the PutEvents entry limit.
const maxBatch = 10

// PutEventsAPI is the slice of the EventBridge client the publisher uses.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends domain events to an EventBridge bus.
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client PutEventsAPI, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, eventBusName: eventBusName, logger: logger}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += maxBatch {
		end := i + maxBatch
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishBatch(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		entry, err := p.entryFor(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return pkgerrors.NewExternalError("eventbridge", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(domainEvents) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", domainEvents[i].GetEventType()),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return pkgerrors.NewExternalError("eventbridge",
			fmt.Errorf("%d events failed to publish", result.FailedEntryCount)).
			WithDetails(map[string]interface{}{"failed": result.FailedEntryCount})
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

func (p *Publisher) entryFor(event events.DomainEvent) (types.PutEventsRequestEntry, error) {
	detail, err := json.Marshal(event)
	if err != nil {
		return types.PutEventsRequestEntry{}, err
	}
	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBusName),
		Source:       aws.String(Source),
		DetailType:   aws.String(event.GetEventType()),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(event.GetTimestamp()),
	}, nil
}
