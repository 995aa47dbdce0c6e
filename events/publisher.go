package events

import (
	"context"

	"github.com/AmanCH3/hamro-grocery-backend/models"
)

// Publisher fans order lifecycle events out to other systems. Publishing
// is best-effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, evt models.OrderEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.OrderEvent) error { return nil }
func (NoopPublisher) Close() error                                     { return nil }
