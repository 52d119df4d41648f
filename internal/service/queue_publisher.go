package service

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/library-management/internal/queue"
)

// AMQPPublisher sends borrow events to a durable RabbitMQ queue, opening a
// connection per publish.
type AMQPPublisher struct {
	url     string
	queue   string
	timeout time.Duration
}

func NewAMQPPublisher(url, queueName string) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queueName, timeout: 5 * time.Second}
}

// Publish delivers ev as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.BorrowEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.timeout)})
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
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
}
