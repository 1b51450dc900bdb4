// Package dispatch runs the refresh loop. On every cycle it rebuilds the
// ward snapshot through the aggregator, recomputes the alert feed, persists
// the result and pushes updates onto the bus. The dispatcher owns the live
// in-memory state the HTTP API serves from.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/kafka"
	"github.com/monsoonwatch/flood-risk-service/internal/aggregate"
	"github.com/monsoonwatch/flood-risk-service/internal/config"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

var clock = clockwork.NewRealClock()

// SetClock replaces the package clock. Tests install a fake clock here.
func SetClock(c clockwork.Clock) {
	clock = c
}

// Publisher pushes update events to the display surfaces.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	PublishBatch(ctx context.Context, topic string, keys []string, payloads []any) error
}

// WardWriter persists a refreshed ward snapshot. May be nil when the store
// is not configured.
type WardWriter interface {
	UpsertAll(ctx context.Context, wards []domain.Ward) error
}

// IncidentFeed supplies the recent incident list for the slower incident
// broadcast tick. May be nil.
type IncidentFeed interface {
	Recent() []domain.Incident
}

// RefreshEvent is the payload published on the data-refresh topic after a
// completed cycle.
type RefreshEvent struct {
	Kind        string    `json:"kind"` // wards or incidents
	Source      string    `json:"source,omitempty"`
	WardCount   int       `json:"ward_count,omitempty"`
	AlertCount  int       `json:"alert_count,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Dispatcher periodically refreshes the ward snapshot and fans updates out.
type Dispatcher struct {
	agg       *aggregate.Aggregator
	bus       Publisher
	store     WardWriter
	incidents IncidentFeed
	policy    domain.AlertPolicy

	wardInterval     time.Duration
	incidentInterval time.Duration

	metrics *observability.Metrics
	logger  *slog.Logger

	inFlight  atomic.Bool
	refreshCh chan struct{}

	mu          sync.RWMutex
	wards       []domain.Ward
	alerts      []domain.Alert
	source      string
	lastRefresh time.Time
}

func New(cfg *config.Config, agg *aggregate.Aggregator, bus Publisher, store WardWriter, incidents IncidentFeed, policy domain.AlertPolicy, metrics *observability.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		agg:              agg,
		bus:              bus,
		store:            store,
		incidents:        incidents,
		policy:           policy,
		wardInterval:     cfg.WardRefreshInterval,
		incidentInterval: cfg.IncidentRefreshInterval,
		metrics:          metrics,
		logger:           logger,
		refreshCh:        make(chan struct{}, 1),
	}
}

// SetIncidentFeed attaches the incident feed after construction. The feed
// needs the dispatcher's ward index first, so the two are wired in stages.
func (d *Dispatcher) SetIncidentFeed(feed IncidentFeed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.incidents = feed
}

// Run refreshes immediately, then on every ward tick, incident tick or
// forced refresh, until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.metrics.DispatcherUp.Set(1)
	defer d.metrics.DispatcherUp.Set(0)

	d.Refresh(ctx)

	wardTicker := clock.NewTicker(d.wardInterval)
	defer wardTicker.Stop()
	incidentTicker := clock.NewTicker(d.incidentInterval)
	defer incidentTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wardTicker.Chan():
			d.Refresh(ctx)
		case <-incidentTicker.Chan():
			d.broadcastIncidents(ctx)
		case <-d.refreshCh:
			d.Refresh(ctx)
		}
	}
}

// ForceRefresh schedules an immediate refresh, used when a subscriber
// reconnects and may have missed updates. Collapses into any refresh
// already pending.
func (d *Dispatcher) ForceRefresh() {
	select {
	case d.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh runs one cycle. A cycle still in flight makes this a no-op so
// slow sources cannot stack concurrent fetch storms; the snapshot then
// reflects the cycle that finishes last.
func (d *Dispatcher) Refresh(ctx context.Context) {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.metrics.RefreshSkipped.Inc()
		d.logger.Debug("refresh already in flight, skipping")
		return
	}
	defer d.inFlight.Store(false)

	start := clock.Now()
	result := d.agg.Refresh(ctx)
	alerts := domain.SelectAlerts(result.Wards, d.policy)

	d.mu.Lock()
	previous := d.alertedWardIDs()
	d.wards = result.Wards
	d.alerts = alerts
	d.source = result.Source
	d.lastRefresh = clock.Now().UTC()
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.UpsertAll(ctx, result.Wards); err != nil {
			d.logger.Warn("persisting ward snapshot failed", "error", err)
		}
	}

	d.publish(ctx, result, alerts, previous)

	d.metrics.RefreshCycles.Inc()
	d.metrics.RefreshDuration.Observe(clock.Since(start).Seconds())
	d.metrics.WardsUpdated.Add(float64(len(result.Wards)))
	d.metrics.ActiveAlerts.Set(float64(len(alerts)))

	d.logger.Info("refresh cycle complete",
		"source", result.Source,
		"wards", len(result.Wards),
		"alerts", len(alerts),
		"duration", clock.Since(start))
}

func (d *Dispatcher) publish(ctx context.Context, result aggregate.Result, alerts []domain.Alert, previouslyAlerted map[string]bool) {
	keys := make([]string, len(result.Wards))
	payloads := make([]any, len(result.Wards))
	for i, ward := range result.Wards {
		keys[i] = ward.ID
		payloads[i] = ward
	}
	if err := d.bus.PublishBatch(ctx, kafka.TopicWardUpdate, keys, payloads); err != nil {
		d.logger.Warn("publishing ward updates failed", "error", err)
	}

	event := RefreshEvent{
		Kind:        "wards",
		Source:      result.Source,
		WardCount:   len(result.Wards),
		AlertCount:  len(alerts),
		RefreshedAt: clock.Now().UTC(),
	}
	if err := d.bus.Publish(ctx, kafka.TopicDataRefresh, "wards", event); err != nil {
		d.logger.Warn("publishing refresh event failed", "error", err)
	}

	// Only alerts for wards that were not already alerting go out as new.
	for _, alert := range alerts {
		if previouslyAlerted[alert.WardID] {
			continue
		}
		if err := d.bus.Publish(ctx, kafka.TopicAlertNew, alert.WardID, alert); err != nil {
			d.logger.Warn("publishing alert failed", "ward", alert.WardID, "error", err)
		}
	}
}

func (d *Dispatcher) broadcastIncidents(ctx context.Context) {
	if d.incidents == nil {
		return
	}
	recent := d.incidents.Recent()
	event := RefreshEvent{
		Kind:        "incidents",
		WardCount:   len(recent),
		RefreshedAt: clock.Now().UTC(),
	}
	if err := d.bus.Publish(ctx, kafka.TopicDataRefresh, "incidents", event); err != nil {
		d.logger.Warn("publishing incident refresh failed", "error", err)
	}
}

// alertedWardIDs must be called with d.mu held.
func (d *Dispatcher) alertedWardIDs() map[string]bool {
	ids := make(map[string]bool, len(d.alerts))
	for _, a := range d.alerts {
		ids[a.WardID] = true
	}
	return ids
}

// Wards returns the live snapshot.
func (d *Dispatcher) Wards() []domain.Ward {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Ward, len(d.wards))
	copy(out, d.wards)
	return out
}

// Ward returns one ward by ID from the live snapshot.
func (d *Dispatcher) Ward(id string) (domain.Ward, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, w := range d.wards {
		if w.ID == id {
			return w, true
		}
	}
	return domain.Ward{}, false
}

// HighRisk returns the wards at alert or critical tier, worst first.
func (d *Dispatcher) HighRisk() []domain.Ward {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Ward
	for _, w := range d.wards {
		if w.RiskLevel == domain.RiskCritical || w.RiskLevel == domain.RiskAlert {
			out = append(out, w)
		}
	}
	return out
}

// Alerts returns the current alert feed.
func (d *Dispatcher) Alerts() []domain.Alert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Alert, len(d.alerts))
	copy(out, d.alerts)
	return out
}

// AlertsForWard returns the current alerts for one ward.
func (d *Dispatcher) AlertsForWard(id string) []domain.Alert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Alert
	for _, a := range d.alerts {
		if a.WardID == id {
			out = append(out, a)
		}
	}
	return out
}

// Statistics aggregates the live snapshot.
func (d *Dispatcher) Statistics() domain.WardStatistics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return domain.ComputeStatistics(d.wards)
}

// Status describes the dispatcher's data provenance for health reporting.
func (d *Dispatcher) Status() (source string, lastRefresh time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source, d.lastRefresh
}
