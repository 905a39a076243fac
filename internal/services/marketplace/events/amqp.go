package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange marketplace events are published to.
const DefaultExchange = "shoppal.marketplace"

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange, routed by event type.
type AMQPPublisher struct {
	channel  Channel
	exchange string
	conn     *amqp.Connection
}

// NewAMQPPublisher declares exchange on channel and returns a publisher over it.
func NewAMQPPublisher(channel Channel, exchange string) (*AMQPPublisher, error) {
	if channel == nil {
		return nil, errors.New("amqp channel is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{channel: channel, exchange: exchange}, nil
}

// DialAMQP connects to url and returns a publisher owning the connection.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	publisher, err := NewAMQPPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	publisher.conn = conn
	return publisher, nil
}

// Publish validates event and publishes it as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.channel == nil {
		return errors.New("amqp publisher is not configured")
	}
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         payload,
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close releases the channel and, when dialed, the connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

var _ Publisher = (*AMQPPublisher)(nil)
