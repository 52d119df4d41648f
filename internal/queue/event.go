// Package queue defines the borrow events exchanged over RabbitMQ and the
// background consumer that writes them to an audit log.
package queue

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Event types.
const (
	EventBorrowCreated  = "borrow.created"
	EventBorrowReturned = "borrow.returned"
)

// json is the codec shared by the publisher and the consumer.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BorrowEvent is published after a borrow transaction commits.  It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type BorrowEvent struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	BorrowID   uint64     `json:"borrow_id"`
	BookID     uint64     `json:"book_id"`
	ReaderID   uint64     `json:"reader_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Encode serializes the event.
func (e BorrowEvent) Encode() ([]byte, error) { return json.Marshal(e) }

// DecodeBorrowEvent parses a message body.
func DecodeBorrowEvent(body []byte) (BorrowEvent, error) {
	var ev BorrowEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
