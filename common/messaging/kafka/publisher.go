// Package kafka provides a Kafka implementation of messaging.Publisher.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/leadgate/leadgate/common/messaging"
)

// HeaderSubject carries the logical subject, since every message shares one topic.
const HeaderSubject = "subject"

// Config holds Kafka writer configuration.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	RequireAll   bool
}

// writer is the subset of *kafka.Writer the publisher needs.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes messages to a single topic. Messages with the same key
// land on the same partition, keeping per-lead ordering.
type Publisher struct {
	w writer
}

// NewPublisher builds a synchronous, hash-balanced writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	acks := kafka.RequireOne
	if cfg.RequireAll {
		acks = kafka.RequireAll
	}

	return &Publisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		Compression:            kafka.Snappy,
		RequiredAcks:           acks,
		AllowAutoTopicCreation: true,
	}}, nil
}

func newPublisherWithWriter(w writer) *Publisher {
	return &Publisher{w: w}
}

// Publish writes data without a key.
func (p *Publisher) Publish(ctx context.Context, subject string, data []byte) error {
	return p.PublishMsg(ctx, messaging.NewMessage(subject, data))
}

// PublishMsg writes msg, mapping Metadata to Kafka headers.
func (p *Publisher) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	km := kafka.Message{
		Value:   msg.Data,
		Time:    msg.Timestamp,
		Headers: []kafka.Header{{Key: HeaderSubject, Value: []byte(msg.Subject)}},
	}
	if msg.Key != "" {
		km.Key = []byte(msg.Key)
	}
	for k, v := range msg.Metadata {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("kafka write %s: %w", msg.Subject, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
