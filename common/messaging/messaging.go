// Package messaging provides broker-neutral publish/subscribe abstractions used to
// relay lead delivery outcomes to downstream consumers.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message was published to.
	Subject string

	// Key partitions messages on brokers that support it (Kafka). Ignored by NATS.
	Key string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published or received.
	Timestamp time.Time
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with headers and an optional partition key.
	PublishMsg(ctx context.Context, msg *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// Subscribe creates a fan-out subscription to the specified subject.
	Subscribe(subject string, handler MessageHandler) (Subscription, error)

	// Close releases any resources and unsubscribes all active subscriptions.
	Close() error
}

// PublishOption configures message publishing behavior.
type PublishOption func(*Message)

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(m *Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata[key] = value
	}
}

// WithKey sets the partition key.
func WithKey(key string) PublishOption {
	return func(m *Message) {
		m.Key = key
	}
}

// NewMessage builds a Message stamped with the current time.
func NewMessage(subject string, data []byte, opts ...PublishOption) *Message {
	m := &Message{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
