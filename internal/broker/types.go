package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one record read from or written to the event stream.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	HighWaterMark int64
	Key           []byte
	Value         []byte
	Headers       []kafka.Header
	Time          time.Time
}

// Header returns the value of the first header named key.
func (m Message) Header(key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type Producer interface {
	// Publish JSON-encodes payload and appends it to topic.
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

// CommitFunc advances the committed position past msg.
type CommitFunc func(ctx context.Context, msg Message) error

// BatchHandler receives the messages of one partition in arrival order. It
// commits each message once its outcome is final. Returning an error stops
// the batch; every message after the last commit is redelivered.
type BatchHandler func(ctx context.Context, batch []Message, commit CommitFunc) error

type Consumer interface {
	Consume(ctx context.Context, topic string, handler BatchHandler) error
	Close() error
	SetServiceName(name string)
}
