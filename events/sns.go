package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AmanCH3/hamro-grocery-backend/models"
	awspkg "github.com/AmanCH3/hamro-grocery-backend/pkg/aws"
)

// SNSPublisher publishes order events to an SNS topic with the event type
// as a message attribute.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, data, map[string]string{"event_type": evt.Type})
}

func (p *SNSPublisher) Close() error { return nil }
