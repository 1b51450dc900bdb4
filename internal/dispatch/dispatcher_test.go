package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/kafka"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/predictor"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/weather"
	"github.com/monsoonwatch/flood-risk-service/internal/aggregate"
	"github.com/monsoonwatch/flood-risk-service/internal/config"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

type recordingBus struct {
	mu       sync.Mutex
	messages []string // "topic/key"
}

func (b *recordingBus) Publish(_ context.Context, topic, key string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, topic+"/"+key)
	return nil
}

func (b *recordingBus) PublishBatch(_ context.Context, topic string, keys []string, _ []any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		b.messages = append(b.messages, topic+"/"+key)
	}
	return nil
}

func (b *recordingBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.messages {
		if len(m) > len(topic) && m[:len(topic)] == topic {
			n++
		}
	}
	return n
}

// blockingPredictor serves a fixed prediction set, optionally holding each
// call until released.
type blockingPredictor struct {
	set     predictor.PredictionSet
	release chan struct{}
}

func (p *blockingPredictor) PredictAll(ctx context.Context, _ predictor.RainfallInput) (predictor.PredictionSet, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return predictor.PredictionSet{}, ctx.Err()
		}
	}
	return p.set, nil
}

func (p *blockingPredictor) WardDetails(context.Context, []string) map[string]predictor.WardDetail {
	return map[string]predictor.WardDetail{}
}

type staticWeather struct{}

func (staticWeather) CityOverview(context.Context) (weather.Snapshot, error) {
	return weather.Snapshot{RainfallMM: 10, Forecast3hMM: 12}, nil
}

func (staticWeather) ForCell(context.Context, float64, float64) (weather.Snapshot, error) {
	return weather.Snapshot{RainfallMM: 10, Forecast3hMM: 12}, nil
}

func predictions(probs map[string]float64) predictor.PredictionSet {
	var set predictor.PredictionSet
	for id, p := range probs {
		set.Wards = append(set.Wards, predictor.WardPrediction{WardID: id, Probability: p})
	}
	return set
}

func testDispatcher(pred aggregate.PredictionSource) (*Dispatcher, *recordingBus, *observability.Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	agg := aggregate.New(staticWeather{}, pred, nil, domain.DefaultThresholds(), metrics, logger)
	bus := &recordingBus{}
	cfg := &config.Config{WardRefreshInterval: 30 * time.Second, IncidentRefreshInterval: 2 * time.Minute}
	return New(cfg, agg, bus, nil, nil, domain.DefaultAlertPolicy(), metrics, logger), bus, metrics
}

func TestRefresh_UpdatesSnapshotAndPublishes(t *testing.T) {
	pred := &blockingPredictor{set: predictions(map[string]float64{"W001": 0.9, "W002": 0.1})}
	d, bus, _ := testDispatcher(pred)

	d.Refresh(context.Background())

	wards := d.Wards()
	require.Len(t, wards, 2)
	source, lastRefresh := d.Status()
	assert.Equal(t, "predictor", source)
	assert.False(t, lastRefresh.IsZero())

	assert.Equal(t, 2, bus.count(kafka.TopicWardUpdate))
	assert.Equal(t, 1, bus.count(kafka.TopicDataRefresh))
	// W001 at probability 0.9 is critical and newly alerting.
	assert.Equal(t, 1, bus.count(kafka.TopicAlertNew))
}

func TestRefresh_AlertNewOnlyForNewlyAlertingWards(t *testing.T) {
	pred := &blockingPredictor{set: predictions(map[string]float64{"W001": 0.9})}
	d, bus, _ := testDispatcher(pred)

	d.Refresh(context.Background())
	assert.Equal(t, 1, bus.count(kafka.TopicAlertNew))

	// Same ward still alerting: no repeat alert-new.
	d.Refresh(context.Background())
	assert.Equal(t, 1, bus.count(kafka.TopicAlertNew))
}

func TestRefresh_SkipsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	pred := &blockingPredictor{set: predictions(map[string]float64{"W001": 0.2}), release: release}
	d, _, metrics := testDispatcher(pred)

	done := make(chan struct{})
	go func() {
		d.Refresh(context.Background())
		close(done)
	}()

	// Wait for the first cycle to enter the slow fetch.
	require.Eventually(t, func() bool { return d.inFlight.Load() }, time.Second, time.Millisecond)

	d.Refresh(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshSkipped))

	close(release)
	<-done
	assert.Len(t, d.Wards(), 1)
}

func TestForceRefresh_CollapsesPendingRequests(t *testing.T) {
	pred := &blockingPredictor{set: predictions(map[string]float64{"W001": 0.2})}
	d, _, _ := testDispatcher(pred)

	d.ForceRefresh()
	d.ForceRefresh()
	d.ForceRefresh()

	assert.Len(t, d.refreshCh, 1)
}

func TestRun_RefreshesOnTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	SetClock(fc)
	defer SetClock(clockwork.NewRealClock())

	pred := &blockingPredictor{set: predictions(map[string]float64{"W001": 0.2})}
	d, bus, _ := testDispatcher(pred)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	// Initial refresh, then both tickers waiting on the fake clock.
	fc.BlockUntil(2)
	before := bus.count(kafka.TopicWardUpdate)
	assert.Equal(t, 1, before)

	fc.Advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return bus.count(kafka.TopicWardUpdate) == 2
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestSnapshotAccessors(t *testing.T) {
	pred := &blockingPredictor{set: predictions(map[string]float64{"W001": 0.9, "W002": 0.5, "W003": 0.1})}
	d, _, _ := testDispatcher(pred)
	d.Refresh(context.Background())

	ward, ok := d.Ward("W002")
	require.True(t, ok)
	assert.Equal(t, domain.RiskAlert, ward.RiskLevel)

	_, ok = d.Ward("missing")
	assert.False(t, ok)

	high := d.HighRisk()
	require.Len(t, high, 2)
	for _, w := range high {
		assert.NotEqual(t, domain.RiskSafe, w.RiskLevel)
	}

	stats := d.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByRiskLevel[string(domain.RiskCritical)])

	alerts := d.AlertsForWard("W001")
	require.NotEmpty(t, alerts)
	assert.Equal(t, "W001", alerts[0].WardID)
}
