package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/utils"
)

const (
	exchangeName   = "mailvault-events"
	publishTimeout = 5 * time.Second

	RoutingKeyAccountExpired = "account.expired"
	RoutingKeySyncCompleted  = "sync.completed"
)

type accountExpiredEvent struct {
	Email      string    `json:"email"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

type syncCompletedEvent struct {
	Direction     string    `json:"direction"`
	Added         int       `json:"added"`
	Updated       int       `json:"updated"`
	Removed       int       `json:"removed"`
	Skipped       int       `json:"skipped"`
	MarkedDeleted int       `json:"markedDeleted"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// rabbitPublisher emits lifecycle events on a topic exchange. The connection
// is lazily re-established when a publish finds the channel gone.
type rabbitPublisher struct {
	url string
	log logger.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitPublisher(url string, log logger.Logger) (interfaces.EventPublisher, error) {
	p := &rabbitPublisher{url: url, log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect must be called with the mutex held or before the publisher escapes
// the constructor.
func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	err = channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	p.conn = conn
	p.channel = channel
	return nil
}

func (p *rabbitPublisher) PublishAccountExpired(ctx context.Context, email, reason string) error {
	return p.publish(ctx, RoutingKeyAccountExpired, accountExpiredEvent{
		Email:      email,
		Reason:     reason,
		OccurredAt: utils.Now(),
	})
}

func (p *rabbitPublisher) PublishSyncCompleted(ctx context.Context, direction string, added, updated, removed, skipped, markedDeleted int) error {
	return p.publish(ctx, RoutingKeySyncCompleted, syncCompletedEvent{
		Direction:     direction,
		Added:         added,
		Updated:       updated,
		Removed:       removed,
		Skipped:       skipped,
		MarkedDeleted: markedDeleted,
		OccurredAt:    utils.Now(),
	})
}

func (p *rabbitPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		p.log.Warnf("event channel closed, reconnecting before publish of %s", routingKey)
		if err := p.connect(); err != nil {
			return err
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(pubCtx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    utils.GenerateNanoIDWithPrefix("evt", 16),
		Timestamp:    utils.Now(),
		Body:         body,
	})
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
