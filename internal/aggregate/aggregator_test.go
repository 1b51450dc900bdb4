package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/predictor"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/weather"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/geo"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

type fakeWeather struct {
	city    weather.Snapshot
	cityErr error
	cell    weather.Snapshot
	cellErr error
}

func (f *fakeWeather) CityOverview(context.Context) (weather.Snapshot, error) {
	return f.city, f.cityErr
}

func (f *fakeWeather) ForCell(context.Context, float64, float64) (weather.Snapshot, error) {
	return f.cell, f.cellErr
}

type fakePredictor struct {
	set     predictor.PredictionSet
	err     error
	details map[string]predictor.WardDetail
}

func (f *fakePredictor) PredictAll(context.Context, predictor.RainfallInput) (predictor.PredictionSet, error) {
	return f.set, f.err
}

func (f *fakePredictor) WardDetails(context.Context, []string) map[string]predictor.WardDetail {
	if f.details == nil {
		return map[string]predictor.WardDetail{}
	}
	return f.details
}

type fakeStore struct {
	wards []domain.Ward
	err   error
}

func (f *fakeStore) ListWards(context.Context) ([]domain.Ward, error) {
	return f.wards, f.err
}

func testAggregator(w weather.Source, p PredictionSource, s StoredSource) *Aggregator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(w, p, s, domain.DefaultThresholds(), observability.NewMetricsForTesting(), logger)
}

func storedRoster() []domain.Ward {
	return []domain.Ward{
		{ID: "W001", Name: "Karol Bagh", Zone: "Central Delhi", FailureThreshold: 55},
		{ID: "W002", Name: "Hauz Khas", Zone: "South Delhi", FailureThreshold: 65},
	}
}

func TestRefresh_PredictorDrivesSnapshot(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC))
	SetClock(fakeClock)
	defer SetClock(clockwork.NewRealClock())

	pred := &fakePredictor{
		set: predictor.PredictionSet{Wards: []predictor.WardPrediction{
			{WardID: "W001", Probability: 0.82, RiskLevel: "critical", Rain1h: 24.0, Explanation: "drainage overwhelmed"},
			{WardID: "W002", Probability: 0.10, RiskLevel: "low", Rain1h: 4.0},
		}},
		details: map[string]predictor.WardDetail{
			"W001": {
				StaticFeatures:     map[string]float64{"drain_density": 1.4},
				HistoricalFeatures: map[string]float64{"flood_frequency": 4},
			},
		},
	}
	w := &fakeWeather{city: weather.Snapshot{RainfallMM: 18, Forecast3hMM: 32}}

	result := testAggregator(w, pred, &fakeStore{wards: storedRoster()}).Refresh(context.Background())

	assert.Equal(t, "predictor", result.Source)
	require.Len(t, result.Wards, 2)

	first := result.Wards[0]
	assert.Equal(t, "W001", first.ID)
	assert.Equal(t, "Karol Bagh", first.Name)
	assert.Equal(t, domain.RiskCritical, first.RiskLevel)
	assert.Equal(t, 18, first.PreparednessScore)
	assert.Equal(t, 24.0, first.CurrentRainfall)
	assert.Equal(t, 32.0, first.ForecastRainfall3h)
	assert.Equal(t, "drainage overwhelmed", first.Explanation)
	assert.Equal(t, 1.4, first.DrainDensity)
	assert.Equal(t, 4.0, first.HistoricalFloodFrequency)
	assert.Equal(t, "predictor", first.DataSource)
	assert.Equal(t, fakeClock.Now().UTC(), first.LastUpdated)

	second := result.Wards[1]
	assert.Equal(t, domain.RiskSafe, second.RiskLevel)
	assert.Equal(t, 90, second.PreparednessScore)
}

func TestRefresh_TierAndScoreMoveTogether(t *testing.T) {
	pred := &fakePredictor{
		set: predictor.PredictionSet{Wards: []predictor.WardPrediction{
			{WardID: "W001", Probability: 0.95},
			{WardID: "W002", Probability: 0.5},
			{WardID: "W003", Probability: 0.05},
		}},
	}
	w := &fakeWeather{city: weather.Snapshot{RainfallMM: 10}}

	result := testAggregator(w, pred, &fakeStore{wards: storedRoster()}).Refresh(context.Background())

	for _, ward := range result.Wards {
		assert.Equal(t, domain.ClassifyByScore(ward.PreparednessScore, domain.DefaultThresholds()), ward.RiskLevel,
			"ward %s tier must match its score band", ward.ID)
	}
}

func TestRefresh_FallsBackToWeather(t *testing.T) {
	pred := &fakePredictor{err: errors.New("predictor sleeping")}
	w := &fakeWeather{
		city: weather.Snapshot{RainfallMM: 22, Forecast3hMM: 45.9},
		cell: weather.Snapshot{RainfallMM: 22, Forecast3hMM: 45.9},
	}

	result := testAggregator(w, pred, &fakeStore{wards: storedRoster()}).Refresh(context.Background())

	assert.Equal(t, "weather", result.Source)
	require.Len(t, result.Wards, 2)

	// 45.9/55 ≈ 0.835 puts Karol Bagh over the critical cutoff.
	first := result.Wards[0]
	assert.Equal(t, "W001", first.ID)
	assert.Equal(t, domain.RiskCritical, first.RiskLevel)
	assert.Equal(t, "weather", first.DataSource)
	assert.NotEmpty(t, first.Explanation)
}

func TestRefresh_FallsBackToStored(t *testing.T) {
	roster := storedRoster()
	roster[0].CurrentRainfall = 40 // 40/55 ≈ 0.73, critical
	pred := &fakePredictor{err: errors.New("down")}
	w := &fakeWeather{cityErr: errors.New("down")}

	result := testAggregator(w, pred, &fakeStore{wards: roster}).Refresh(context.Background())

	assert.Equal(t, "stored", result.Source)
	require.Len(t, result.Wards, 2)
	assert.Equal(t, domain.RiskCritical, result.Wards[0].RiskLevel)
	assert.Equal(t, domain.RiskSafe, result.Wards[1].RiskLevel)
}

func TestRefresh_AllSourcesDownServesDemo(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)))
	defer SetClock(clockwork.NewRealClock())

	pred := &fakePredictor{err: errors.New("down")}
	w := &fakeWeather{cityErr: errors.New("down")}
	store := &fakeStore{err: errors.New("down")}

	agg := testAggregator(w, pred, store)
	result := agg.Refresh(context.Background())

	assert.Equal(t, "demo", result.Source)
	require.Len(t, result.Wards, 8)
	for _, ward := range result.Wards {
		assert.NotEmpty(t, ward.ID)
		assert.NotEmpty(t, ward.Name)
		assert.Contains(t, []domain.RiskLevel{domain.RiskSafe, domain.RiskAlert, domain.RiskCritical}, ward.RiskLevel)
		assert.True(t, geo.InBounds(geo.Coordinate{Lat: ward.Latitude, Lon: ward.Longitude}),
			"ward %s placed outside Delhi", ward.ID)
	}

	// Demo data is deterministic across cycles.
	again := agg.Refresh(context.Background())
	assert.Equal(t, result.Wards, again.Wards)
}

func TestRefresh_FillsInfrastructureContext(t *testing.T) {
	pred := &fakePredictor{err: errors.New("down")}
	w := &fakeWeather{city: weather.Snapshot{RainfallMM: 5}, cell: weather.Snapshot{RainfallMM: 5}}

	result := testAggregator(w, pred, &fakeStore{wards: storedRoster()}).Refresh(context.Background())

	for _, ward := range result.Wards {
		assert.Greater(t, ward.DrainageStressIndex, 0.0)
		assert.Greater(t, ward.DrainDensity, 0.0)
		assert.NotZero(t, ward.Latitude)
		assert.NotZero(t, ward.Longitude)
	}
}

func TestRefresh_RosterNameSurvivesPrediction(t *testing.T) {
	pred := &fakePredictor{
		set: predictor.PredictionSet{Wards: []predictor.WardPrediction{
			{WardID: "W999", Probability: 0.2},
		}},
	}
	w := &fakeWeather{city: weather.Snapshot{}}

	result := testAggregator(w, pred, &fakeStore{}).Refresh(context.Background())

	// Unknown ward IDs still produce a usable record.
	require.Len(t, result.Wards, 1)
	assert.Equal(t, "W999", result.Wards[0].Name)
}
