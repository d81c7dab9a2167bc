package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClickEvent is the message published for every successful redirect.
// The analytics side consumes these off the queue; delivery is
// best-effort and never blocks the redirect path on failures.
type ClickEvent struct {
	ShortCode  string    `json:"shortCode"`
	ClickCount int64     `json:"clickCount"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher publishes click events to a durable RabbitMQ queue.
type Publisher struct {
	ch    *amqp.Channel
	queue string
}

// NewPublisher opens a channel on the given connection and declares the
// click queue.
func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue}, nil
}

// PublishClick sends a click event for the given code.
func (p *Publisher) PublishClick(ctx context.Context, code string, count int64) error {
	body, err := json.Marshal(ClickEvent{
		ShortCode:  code,
		ClickCount: count,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Close releases the channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}
