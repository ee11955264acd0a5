// Package service publishes domain events to RabbitMQ.  Publishing never
// fails a request: errors are logged and the write that triggered the event
// stands.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/queue"
)

const (
	dialTimeout    = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher sends product events to the product.changed queue.  Each event
// gets its own connection, which keeps the publisher stateless at the cost
// of a dial per write; product writes are rare.
type Publisher struct {
	URL string
	Log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{URL: url, Log: log}
}

// ProductChanged publishes ev in the background and returns immediately.
func (p *Publisher) ProductChanged(ev queue.ProductChangedEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			p.Log.Warn("rabbitmq: publish product event failed",
				zap.String("action", ev.Action), zap.Int64("product_id", ev.ProductID), zap.Error(err))
		}
	}()
}

// Publish delivers ev as a persistent JSON message, declaring the durable
// queue first.
func (p *Publisher) Publish(ctx context.Context, ev queue.ProductChangedEvent) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.ProductChangedQueue, // name
		true,                      // durable
		false,                     // autoDelete
		false,                     // exclusive
		false,                     // noWait
		nil,                       // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",                        // default exchange
		queue.ProductChangedQueue, // routing key = queue name
		false,                     // mandatory
		false,                     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// Discard drops events; it stands in when no broker is configured.
type Discard struct{}

func (Discard) ProductChanged(queue.ProductChangedEvent) {}
