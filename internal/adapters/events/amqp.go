package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// DefaultQueue receives deployment events when no queue is configured
const DefaultQueue = "treb-relay.deployments"

// AMQPPublisher publishes deployment events as persistent JSON messages
// to a durable queue.
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPPublisher dials the broker and declares the queue
func NewAMQPPublisher(cfg config.EventsConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("AMQP URL is not configured")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends event to the queue. Channels are not safe for concurrent
// publishing, so calls are serialized.
func (p *AMQPPublisher) Publish(ctx context.Context, event models.DeploymentEvent) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("AMQP publisher is closed")
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s/%s/%d", event.DeploymentID, event.Status, event.At.UnixNano()),
		Timestamp:    event.At,
		Type:         "deployment." + string(event.Status),
		Body:         body,
	})
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// Encode serializes an event as it is published
func Encode(event models.DeploymentEvent) ([]byte, error) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployment event: %w", err)
	}
	return data, nil
}

// NewPublisherFromConfig returns an AMQP publisher when a broker URL is
// configured and a no-op publisher otherwise.
func NewPublisherFromConfig(cfg *config.RuntimeConfig) (usecase.EventPublisher, func(), error) {
	if cfg.Events.URL == "" {
		return usecase.NopEvents{}, func() {}, nil
	}
	p, err := NewAMQPPublisher(cfg.Events)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

var _ usecase.EventPublisher = (*AMQPPublisher)(nil)
