package messaging

import (
	"context"
)

// BrokerPublisher publishes events to a single broker channel.
type BrokerPublisher struct {
	broker  Broker
	channel string
}

func NewBrokerPublisher(broker Broker, channel string) *BrokerPublisher {
	return &BrokerPublisher{broker: broker, channel: channel}
}

func (p *BrokerPublisher) Publish(ctx context.Context, event Event) error {
	return p.broker.Publish(ctx, p.channel, event)
}

func (p *BrokerPublisher) Close() error {
	return p.broker.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
