// Package kafka is the push channel between the refresh dispatcher and the
// display surfaces. Each update kind has its own topic so subscribers can
// pick what they listen to.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/monsoonwatch/flood-risk-service/internal/config"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

// Topics carried by the bus.
const (
	TopicWardUpdate  = "ward-update"
	TopicDataRefresh = "data-refresh"
	TopicIncidentNew = "incident-new"
	TopicAlertNew    = "alert-new"
)

// Bus publishes update events to Kafka.
type Bus struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewBus creates a producer that can write to all bus topics.
func NewBus(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Bus {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		// The bus creates its topics on first publish in dev setups.
		AllowAutoTopicCreation: true,
	}
	return &Bus{writer: w, metrics: metrics, logger: logger}
}

// Publish serializes payload and writes it to topic, keyed so updates for
// the same entity stay ordered within a partition.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload any) error {
	msg, err := buildMessage(topic, key, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	b.metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// PublishBatch writes one batch of messages to a single topic.
func (b *Bus) PublishBatch(ctx context.Context, topic string, keys []string, payloads []any) error {
	if len(keys) != len(payloads) {
		return errors.New("publish batch: keys and payloads differ in length")
	}
	if len(payloads) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(payloads))
	now := time.Now().UTC()
	for i, payload := range payloads {
		msg, err := buildMessage(topic, keys[i], payload, now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := b.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish batch to %s: %w", topic, err)
	}
	b.metrics.EventsPublished.WithLabelValues(topic).Add(float64(len(msgs)))
	return nil
}

func (b *Bus) Close() error {
	return b.writer.Close()
}

// buildMessage marshals a payload into a keyed, headed Kafka message.
func buildMessage(topic, key string, payload any, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s event: %w", topic, err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "topic", Value: []byte(topic)},
			{Key: "published_at", Value: []byte(now.Format(time.RFC3339))},
		},
	}, nil
}

// Handler consumes one decoded bus message.
type Handler func(ctx context.Context, msg kafkago.Message) error

// Subscriber consumes bus topics with a consumer group, reconnecting with
// backoff when the brokers drop.
type Subscriber struct {
	brokers []string
	groupID string
	topics  []string

	handlers map[string]Handler

	// OnReconnect fires after the read loop recovers from an error, so the
	// owner can force a full refresh for anything missed while disconnected.
	OnReconnect func()

	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewSubscriber creates a consumer for the given topics. Handlers are
// registered per topic before Run is called.
func NewSubscriber(cfg *config.Config, topics []string, metrics *observability.Metrics, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		brokers:  cfg.KafkaBrokers,
		groupID:  cfg.KafkaGroupID,
		topics:   topics,
		handlers: make(map[string]Handler),
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle registers the handler for one topic.
func (s *Subscriber) Handle(topic string, h Handler) {
	s.handlers[topic] = h
}

// Run consumes messages until ctx is cancelled. Read errors trigger an
// exponential backoff and a fresh reader rather than terminating the loop.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     s.brokers,
			GroupID:     s.groupID,
			GroupTopics: s.topics,
			MinBytes:    1,
			MaxBytes:    10e6,
		})

		err := s.consume(ctx, reader)
		reader.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.metrics.BusReconnects.Inc()
		s.logger.Warn("bus consumer disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		if s.OnReconnect != nil {
			s.OnReconnect()
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, reader *kafkago.Reader) error {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		s.dispatch(ctx, msg)
	}
}

func (s *Subscriber) dispatch(ctx context.Context, msg kafkago.Message) {
	handler, ok := s.handlers[msg.Topic]
	if !ok {
		s.logger.Debug("no handler for topic", "topic", msg.Topic)
		return
	}
	if err := handler(ctx, msg); err != nil {
		// Handler failures are logged and skipped; one bad message must not
		// wedge the whole subscription.
		s.logger.Error("bus handler failed", "topic", msg.Topic, "error", err)
	}
}
