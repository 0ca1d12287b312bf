// Package relay forwards delivery outcomes to a message broker so processes
// outside the gateway (re-dispatchers, dashboards) can react to them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/common/messaging"
	"github.com/leadgate/leadgate/common/messaging/kafka"
	"github.com/leadgate/leadgate/common/messaging/nats"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	"github.com/leadgate/leadgate/gateway/internal/status"
)

// SubscriberName identifies the relay on the bus.
const SubscriberName = "outcome-relay"

// Supported backends.
const (
	BackendNone      = "none"
	BackendNATS      = "nats"
	BackendJetStream = "jetstream"
	BackendKafka     = "kafka"
)

// Config selects and configures the broker.
type Config struct {
	Backend string `mapstructure:"backend"`

	NATSURL  string `mapstructure:"nats_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	// PublishTimeout bounds each publish; the relay never blocks dispatch for longer.
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// NewPublisher connects to the configured backend. It returns nil for
// BackendNone.
func NewPublisher(ctx context.Context, cfg Config, logger *slog.Logger) (messaging.Publisher, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return nil, nil
	case BackendNATS, BackendJetStream:
		ncfg := nats.DefaultConfig()
		if cfg.NATSURL != "" {
			ncfg.URL = cfg.NATSURL
		}
		ncfg.Name = "leadgate-relay"
		ncfg.Username = cfg.Username
		ncfg.Password = cfg.Password
		ncfg.Token = cfg.Token
		ncfg.Logger = logger

		if strings.EqualFold(cfg.Backend, BackendNATS) {
			client, err := nats.NewClient(ncfg)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
		js, err := nats.NewJetStreamClient(ncfg)
		if err != nil {
			return nil, err
		}
		if _, err := js.CreateOrUpdateStream(ctx, nats.LeadOutcomesStream); err != nil {
			_ = js.Close()
			return nil, err
		}
		return js, nil
	case BackendKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown relay backend %q", cfg.Backend)
	}
}

// Relay publishes each RequestResponse as an Outcome on
// leads.responses.<status>, keyed by lead id.
type Relay struct {
	pub     messaging.Publisher
	timeout time.Duration
	logger  *slog.Logger
}

func New(pub messaging.Publisher, timeout time.Duration, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Relay{pub: pub, timeout: timeout, logger: logger.With(slog.String("component", SubscriberName))}
}

// Register subscribes the relay. Subscribe it after the status store.
func (r *Relay) Register(bus *events.Bus) {
	bus.Subscribe(events.TypeRequestResponse, SubscriberName, events.On(r.HandleResponse))
}

// HandleResponse publishes the outcome. Broker failures are logged and
// counted; they never fail the bus delivery.
func (r *Relay) HandleResponse(ctx context.Context, ev events.RequestResponse) error {
	out := status.Outcome(ev)
	data, err := json.Marshal(out)
	if err != nil {
		metrics.RelayPublishErrors.Inc()
		r.logger.ErrorContext(ctx, "failed to encode outcome", logging.LeadID(ev.ID), logging.Error(err))
		return nil
	}

	msg := messaging.NewMessage(messaging.OutcomeSubject(string(out.Status)), data,
		messaging.WithKey(out.LeadID),
		messaging.WithHeader(messaging.HeaderLeadID, out.LeadID),
		messaging.WithHeader(messaging.HeaderSystem, out.System),
		messaging.WithHeader(messaging.HeaderStatus, string(out.Status)),
	)

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.pub.PublishMsg(pctx, msg); err != nil {
		metrics.RelayPublishErrors.Inc()
		r.logger.WarnContext(ctx, "failed to relay outcome",
			logging.LeadID(out.LeadID),
			logging.Driver(out.System),
			logging.Error(err),
		)
	}
	return nil
}
