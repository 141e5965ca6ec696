package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/config"
)

// Type names a record lifecycle event.
type Type string

// Event types.
const (
	RecordCreated Type = "record.created"
	RecordUpdated Type = "record.updated"
	RecordDeleted Type = "record.deleted"
	RecordSynced  Type = "record.synced"
)

// Event describes a change to a bookkeeping record.
type Event struct {
	Type       Type           `json:"type"`
	Kind       string         `json:"kind"`
	RecordID   string         `json:"record_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// AMQPPublisher sends events as persistent JSON messages to a durable queue.
type AMQPPublisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewAMQPPublisher dials the broker and declares the queue.
func NewAMQPPublisher(cfg config.AMQPConfig, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, queue: cfg.Queue, logger: logger}, nil
}

// Publish implements Publisher. Publishes are serialised on the shared channel.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Debug("event published", zap.String("type", string(event.Type)), zap.String("kind", event.Kind))
	return nil
}

// Close shuts the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return fmt.Errorf("close amqp channel: %w", err)
	}
	return p.conn.Close()
}
