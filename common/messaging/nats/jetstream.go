package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/leadgate/leadgate/common/messaging"
)

// JetStreamClient publishes into a persistent stream and waits for the ack.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
}

// LeadOutcomesStream captures every relayed delivery outcome. Interest
// retention drops messages once all consumers have acked them.
var LeadOutcomesStream = StreamConfig{
	Name:      "LEAD_OUTCOMES",
	Subjects:  []string{messaging.SubjectLeadOutcomesAll},
	MaxAge:    72 * time.Hour,
	MaxBytes:  256 * 1024 * 1024,
	MaxMsgs:   1_000_000,
	Retention: jetstream.InterestPolicy,
	Storage:   jetstream.FileStorage,
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// Publish stores data in the stream and waits for the server ack.
// It shadows Client.Publish so that a JetStreamClient used as a
// messaging.Publisher always persists.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := c.js.Publish(ctx, subject, data)
	return err
}

// PublishMsg stores msg with its headers and waits for the server ack.
func (c *JetStreamClient) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	_, err := c.js.PublishMsg(ctx, toNATS(msg))
	return err
}
