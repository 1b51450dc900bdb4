package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monsoonwatch/flood-risk-service/internal/config"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

func testSubscriber(topics ...string) *Subscriber {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaGroupID: "test-group"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSubscriber(cfg, topics, observability.NewMetricsForTesting(), logger)
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 7, 14, 10, 30, 0, 0, time.UTC)
	payload := map[string]any{"id": "W042", "risk_level": "critical"}

	msg, err := buildMessage(TopicWardUpdate, "W042", payload, now)
	require.NoError(t, err)

	assert.Equal(t, TopicWardUpdate, msg.Topic)
	assert.Equal(t, []byte("W042"), msg.Key)
	assert.JSONEq(t, `{"id":"W042","risk_level":"critical"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "topic", msg.Headers[0].Key)
	assert.Equal(t, []byte(TopicWardUpdate), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-07-14T10:30:00Z"), msg.Headers[1].Value)
}

func TestBuildMessage_UnserializablePayload(t *testing.T) {
	_, err := buildMessage(TopicDataRefresh, "refresh", make(chan int), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialize data-refresh event")
}

func TestSubscriber_DispatchRoutesByTopic(t *testing.T) {
	sub := testSubscriber(TopicWardUpdate, TopicIncidentNew)

	var wardCalls, incidentCalls int
	sub.Handle(TopicWardUpdate, func(_ context.Context, msg kafkago.Message) error {
		wardCalls++
		assert.Equal(t, []byte("W001"), msg.Key)
		return nil
	})
	sub.Handle(TopicIncidentNew, func(_ context.Context, _ kafkago.Message) error {
		incidentCalls++
		return nil
	})

	sub.dispatch(context.Background(), kafkago.Message{Topic: TopicWardUpdate, Key: []byte("W001")})
	sub.dispatch(context.Background(), kafkago.Message{Topic: TopicIncidentNew})

	assert.Equal(t, 1, wardCalls)
	assert.Equal(t, 1, incidentCalls)
}

func TestSubscriber_DispatchIgnoresUnhandledTopic(t *testing.T) {
	sub := testSubscriber(TopicWardUpdate)
	assert.NotPanics(t, func() {
		sub.dispatch(context.Background(), kafkago.Message{Topic: TopicAlertNew})
	})
}

func TestSubscriber_DispatchSwallowsHandlerError(t *testing.T) {
	sub := testSubscriber(TopicDataRefresh)
	sub.Handle(TopicDataRefresh, func(_ context.Context, _ kafkago.Message) error {
		return errors.New("bad payload")
	})

	assert.NotPanics(t, func() {
		sub.dispatch(context.Background(), kafkago.Message{Topic: TopicDataRefresh})
	})
}
