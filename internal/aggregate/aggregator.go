// Package aggregate merges ward records from the prediction service, the
// weather source, and the persistent store into one canonical ward snapshot.
// The merge never comes back empty: when every source is down it falls back
// to a hardcoded demo set so the dashboard always has something to show.
package aggregate

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/predictor"
	"github.com/monsoonwatch/flood-risk-service/internal/adapter/weather"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/geo"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

var clock = clockwork.NewRealClock()

// SetClock replaces the package clock. Tests install a fake clock here.
func SetClock(c clockwork.Clock) {
	clock = c
}

// PredictionSource is the external flood-prediction service.
type PredictionSource interface {
	PredictAll(ctx context.Context, rainfall predictor.RainfallInput) (predictor.PredictionSet, error)
	WardDetails(ctx context.Context, wardIDs []string) map[string]predictor.WardDetail
}

// StoredSource supplies the last persisted ward set, used both as the ward
// roster and as the penultimate fallback.
type StoredSource interface {
	ListWards(ctx context.Context) ([]domain.Ward, error)
}

// Aggregator builds one normalized ward snapshot per refresh cycle.
// Any source may be nil; the priority chain skips it.
type Aggregator struct {
	weather    weather.Source
	predictor  PredictionSource
	stored     StoredSource
	thresholds domain.Thresholds
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func New(w weather.Source, p PredictionSource, s StoredSource, th domain.Thresholds, metrics *observability.Metrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		weather:    w,
		predictor:  p,
		stored:     s,
		thresholds: th,
		metrics:    metrics,
		logger:     logger,
	}
}

// Result is one refresh cycle's output.
type Result struct {
	Wards    []domain.Ward
	Source   string // predictor, weather, stored or demo
	Rainfall weather.Snapshot
}

// Refresh builds a fresh ward snapshot, walking the source priority chain
// predictor -> weather -> stored -> demo. It never returns an empty ward set.
func (a *Aggregator) Refresh(ctx context.Context) Result {
	roster, rosterStored := a.roster(ctx)

	city, cityErr := a.cityWeather(ctx)

	if a.predictor != nil {
		if wards, ok := a.fromPredictor(ctx, roster, city); ok {
			return Result{Wards: wards, Source: "predictor", Rainfall: city}
		}
		a.metrics.SourceFallbacks.WithLabelValues("predictor", "weather").Inc()
	}

	if a.weather != nil && cityErr == nil {
		return Result{Wards: a.fromWeather(ctx, roster, city), Source: "weather", Rainfall: city}
	}
	a.metrics.SourceFallbacks.WithLabelValues("weather", "stored").Inc()

	if rosterStored {
		return Result{Wards: a.reclassify(roster, "stored"), Source: "stored"}
	}
	a.metrics.SourceFallbacks.WithLabelValues("stored", "demo").Inc()

	return Result{Wards: a.fromDemo(), Source: "demo"}
}

// roster returns the ward list the cycle works from: the persisted set when
// available, the demo set otherwise.
func (a *Aggregator) roster(ctx context.Context) ([]domain.Ward, bool) {
	if a.stored != nil {
		wards, err := a.stored.ListWards(ctx)
		if err != nil {
			a.logger.Warn("ward store unavailable, using demo roster", "error", err)
		} else if len(wards) > 0 {
			return wards, true
		}
	}
	return DemoWards(), false
}

func (a *Aggregator) cityWeather(ctx context.Context) (weather.Snapshot, error) {
	if a.weather == nil {
		return weather.Snapshot{}, fmt.Errorf("no weather source configured")
	}
	city, err := a.weather.CityOverview(ctx)
	if err != nil {
		a.logger.Warn("city weather unavailable", "error", err)
		return weather.Snapshot{}, err
	}
	return city, nil
}

// fromPredictor builds the snapshot from the prediction service's per-ward
// output, enriched with static and historical features where the detail
// fetches succeed.
func (a *Aggregator) fromPredictor(ctx context.Context, roster []domain.Ward, city weather.Snapshot) ([]domain.Ward, bool) {
	set, err := a.predictor.PredictAll(ctx, predictor.RainfallInput{
		Rain1h:         city.RainfallMM,
		Rain3h:         city.RainfallMM * 3,
		Rain6h:         city.RainfallMM * 6,
		Rain24h:        city.RainfallMM * 24,
		RainForecast3h: city.Forecast3hMM,
	})
	if err != nil {
		a.logger.Warn("prediction source unavailable", "error", err)
		return nil, false
	}

	byID := make(map[string]domain.Ward, len(roster))
	for _, w := range roster {
		byID[w.ID] = w
	}

	ids := make([]string, 0, len(set.Wards))
	for _, p := range set.Wards {
		ids = append(ids, p.WardID)
	}
	details := a.predictor.WardDetails(ctx, ids)

	wards := make([]domain.Ward, 0, len(set.Wards))
	for _, p := range set.Wards {
		ward := byID[p.WardID]
		ward.ID = p.WardID
		if ward.Name == "" {
			ward.Name = p.WardID
		}

		ward.CurrentRainfall = p.Rain1h
		if ward.CurrentRainfall == 0 {
			ward.CurrentRainfall = city.RainfallMM
		}
		ward.ForecastRainfall3h = city.Forecast3hMM
		if ward.ForecastRainfall3h == 0 {
			ward.ForecastRainfall3h = p.Rain3h
		}

		prob := p.Probability
		if p.MPIScore != nil {
			prob = *p.MPIScore
		}
		ext := &domain.ExternalPrediction{
			Probability:    prob,
			HasProbability: true,
			RiskLabel:      p.RiskLevel,
		}
		a.applyClassification(&ward, ext)

		ward.Explanation = p.Explanation
		if detail, ok := details[p.WardID]; ok {
			applyDetail(&ward, detail)
		}
		a.finish(&ward, "predictor")
		wards = append(wards, ward)
	}

	sortWards(wards)
	return wards, true
}

// fromWeather classifies every roster ward from grid-cell weather lookups.
// Per-ward lookup failures degrade to the city-wide figures.
func (a *Aggregator) fromWeather(ctx context.Context, roster []domain.Ward, city weather.Snapshot) []domain.Ward {
	wards := make([]domain.Ward, 0, len(roster))
	for _, ward := range roster {
		a.resolveCoordinates(&ward)

		snap := city
		if cell, err := a.weather.ForCell(ctx, ward.Latitude, ward.Longitude); err == nil {
			snap = cell
			if snap.Forecast3hMM < city.Forecast3hMM {
				snap.Forecast3hMM = city.Forecast3hMM
			}
		}

		ward.CurrentRainfall = snap.RainfallMM
		ward.ForecastRainfall3h = snap.Forecast3hMM
		a.applyClassification(&ward, nil)
		a.finish(&ward, "weather")
		wards = append(wards, ward)
	}
	sortWards(wards)
	return wards
}

// reclassify re-derives risk from the rainfall figures already on the wards.
func (a *Aggregator) reclassify(roster []domain.Ward, source string) []domain.Ward {
	wards := make([]domain.Ward, 0, len(roster))
	for _, ward := range roster {
		a.applyClassification(&ward, nil)
		a.finish(&ward, source)
		wards = append(wards, ward)
	}
	sortWards(wards)
	return wards
}

// fromDemo seeds the demo wards with deterministic synthetic rainfall so the
// dashboard shows a plausible spread of tiers instead of a wall of green.
func (a *Aggregator) fromDemo() []domain.Ward {
	wards := DemoWards()
	for i := range wards {
		h := wardHash(wards[i].ID)
		wards[i].CurrentRainfall = float64(h % 50)
		wards[i].ForecastRainfall3h = float64((h >> 8) % 70)
		a.applyClassification(&wards[i], nil)
		a.finish(&wards[i], "demo")
	}
	sortWards(wards)
	return wards
}

// applyClassification recomputes the risk tier and preparedness score
// together from one driving signal.
func (a *Aggregator) applyClassification(w *domain.Ward, ext *domain.ExternalPrediction) {
	c := domain.Classify(domain.RainfallReading{
		Current:          w.CurrentRainfall,
		Forecast3h:       w.ForecastRainfall3h,
		FailureThreshold: w.FailureThreshold,
	}, ext, a.thresholds)

	w.RiskLevel = c.Level
	w.PreparednessScore = c.Score
	if w.Explanation == "" && c.Driver == "ratio" {
		threshold := w.FailureThreshold
		if threshold <= 0 {
			threshold = a.thresholds.DefaultFailureThreshold
		}
		w.Explanation = fmt.Sprintf("Rainfall %.1f mm against %.0f mm drainage capacity",
			max(w.CurrentRainfall, w.ForecastRainfall3h), threshold)
	}
}

// finish fills coordinates, synthetic infrastructure context, provenance and
// the update timestamp.
func (a *Aggregator) finish(w *domain.Ward, source string) {
	a.resolveCoordinates(w)
	fillInfrastructure(w)
	w.DataSource = source
	w.LastUpdated = clock.Now().UTC()
}

func (a *Aggregator) resolveCoordinates(w *domain.Ward) {
	if w.Latitude != 0 || w.Longitude != 0 {
		return
	}
	c, method, err := geo.Resolve(w.Name, w.Zone)
	if err != nil {
		a.metrics.CoordinateResolutions.WithLabelValues("rejected").Inc()
		a.logger.Warn("coordinate resolution failed, pinning to city center", "ward", w.Name, "error", err)
		w.Latitude, w.Longitude = 28.6139, 77.2090
		return
	}
	a.metrics.CoordinateResolutions.WithLabelValues(string(method)).Inc()
	w.Latitude, w.Longitude = c.Lat, c.Lon
}

// applyDetail copies known model features onto the ward.
func applyDetail(w *domain.Ward, d predictor.WardDetail) {
	if v, ok := d.StaticFeatures["drain_density"]; ok {
		w.DrainDensity = v
	}
	if v, ok := d.StaticFeatures["pothole_density"]; ok {
		w.PotholeDensity = v
	}
	if v, ok := d.StaticFeatures["drainage_stress_index"]; ok {
		w.DrainageStressIndex = v
	}
	if v, ok := d.HistoricalFeatures["flood_frequency"]; ok {
		w.HistoricalFloodFrequency = v
	}
}

// fillInfrastructure substitutes deterministic synthetic values for missing
// infrastructure fields so consumers never see zeroed context. Values are
// derived from the ward ID, stable across refreshes.
func fillInfrastructure(w *domain.Ward) {
	h := wardHash(w.ID)
	if w.DrainageStressIndex == 0 {
		w.DrainageStressIndex = 0.2 + float64(h%60)/100
	}
	if w.PotholeDensity == 0 {
		w.PotholeDensity = float64((h>>8)%50) / 10
	}
	if w.DrainDensity == 0 {
		w.DrainDensity = 0.5 + float64((h>>16)%40)/20
	}
	if w.HistoricalFloodFrequency == 0 {
		w.HistoricalFloodFrequency = float64((h >> 24) % 6)
	}
}

func wardHash(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}

func sortWards(wards []domain.Ward) {
	sort.Slice(wards, func(i, j int) bool {
		return wards[i].ID < wards[j].ID
	})
}
