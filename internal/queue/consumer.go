package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/library-management/internal/logging"
)

// StartBorrowConsumer connects to RabbitMQ, declares the durable queue and
// appends every borrow event to auditPath.  It reconnects with exponential
// backoff until ctx is cancelled, then returns ctx.Err().  Messages that
// cannot be handled are rejected without requeue so a poison message cannot
// spin the loop.
func StartBorrowConsumer(ctx context.Context, url, queueName, auditPath string, log logging.Logger) error {
	log = log.With("component", "borrow-consumer", "queue", queueName)
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn(ctx, "dial broker failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queueName, auditPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn(ctx, "consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName, auditPath string, log logging.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn(ctx, "set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleMessage(d.Body, auditPath); err != nil {
			log.Error(ctx, "handle message failed", "error", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one event and appends a line to the audit file.
func HandleMessage(body []byte, auditPath string) error {
	ev, err := DecodeBorrowEvent(body)
	if err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type != EventBorrowCreated && ev.Type != EventBorrowReturned {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err := os.MkdirAll(filepath.Dir(auditPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAuditLine renders an event as a single human readable line.
func FormatAuditLine(ev BorrowEvent) string {
	returned := "-"
	if ev.ReturnDate != nil {
		returned = ev.ReturnDate.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | borrow_id=%d | book_id=%d | reader_id=%d | borrowed=%s | returned=%s\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ID, ev.BorrowID, ev.BookID, ev.ReaderID,
		ev.BorrowDate.UTC().Format(time.RFC3339), returned)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
