// Package events publishes domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/logger"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "coursecore.events"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes events as persistent JSON messages. A Publisher
// created without a broker URL is disabled and discards events.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	enabled  bool
	log      logger.Logger
}

// NewPublisher dials url and declares a durable topic exchange.
func NewPublisher(url, exchange string, log logger.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if url == "" {
		log.Warn(context.Background(), "amqp url is empty, event publishing is disabled")
		return &Publisher{exchange: exchange, log: log}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := newPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log logger.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, enabled: true, log: log}
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool { return p.enabled }

// Publish sends e with its routing key.
func (p *Publisher) Publish(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: Event passed by value
	if !p.enabled {
		p.log.Debug(ctx, "event publishing disabled, skipping", logger.String("routing_key", e.RoutingKey))
		return nil
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.EventID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, e.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.EventID,
		Timestamp:    e.TS,
		Type:         e.RoutingKey,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.RoutingKey, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.log.Warn(context.Background(), "error closing rabbitmq channel", logger.Error(err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
