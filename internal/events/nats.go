package events

import (
	"context"
	"encoding/json"
	"fmt"

	"timelock-backend/internal/services"

	"github.com/nats-io/nats.go"
)

// NatsPublisher publishes domain events on NATS subjects named
// "<prefix>.<event type>", e.g. "timelock.message.created"
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNatsPublisher creates a new NATS publisher
func NewNatsPublisher(nc *nats.Conn, prefix string) *NatsPublisher {
	return &NatsPublisher{
		nc:     nc,
		prefix: prefix,
	}
}

// Publish sends event as JSON. Delivery is fire and forget.
func (p *NatsPublisher) Publish(ctx context.Context, event services.Event) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	return nil
}

func (p *NatsPublisher) message(event services.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	msg := nats.NewMsg(Subject(p.prefix, event.Type))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if event.PartnershipID != "" {
		msg.Header.Set("Partnership-Id", event.PartnershipID)
	}
	return msg, nil
}

// Subject returns the subject an event type is published on
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
