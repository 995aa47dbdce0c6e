package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AmanCH3/hamro-grocery-backend/models"
	awspkg "github.com/AmanCH3/hamro-grocery-backend/pkg/aws"
)

// SQSPublisher sends order events straight to a queue, for deployments where
// a single consumer owns order side effects and no fan-out topic exists.
type SQSPublisher struct {
	client   awspkg.SQSSender
	queueURL string
}

func NewSQSPublisher(client awspkg.SQSSender, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.client.SendMessage(ctx, p.queueURL, string(data), map[string]string{
		"event_type": evt.Type,
		"order_id":   evt.OrderID,
	})
}

func (p *SQSPublisher) Close() error { return nil }
