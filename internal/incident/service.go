// Package incident handles citizen waterlogging, pothole and drainage
// reports. Reports land in a capped in-memory feed served newest-first,
// are persisted best-effort, and go out on the push channel.
package incident

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/kafka"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

var clock = clockwork.NewRealClock()

// SetClock replaces the package clock. Tests install a fake clock here.
func SetClock(c clockwork.Clock) {
	clock = c
}

// Publisher pushes incident events to the display surfaces.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Store persists incidents. May be nil when the database is not configured.
type Store interface {
	Insert(ctx context.Context, incident domain.Incident) error
	Prune(ctx context.Context, keep int) error
}

// WardIndex locates wards so reports can inherit the ward's coordinates.
type WardIndex interface {
	Ward(id string) (domain.Ward, bool)
}

// Report is the intake shape for a new incident.
type Report struct {
	Type        domain.IncidentType `json:"type"`
	WardID      string              `json:"ward_id"`
	Description string              `json:"description"`
	Severity    int                 `json:"severity"`
	Latitude    float64             `json:"latitude"`
	Longitude   float64             `json:"longitude"`

	Accuracy        float64 `json:"accuracy"`
	ValidationScore float64 `json:"validation_score"`
	ImageRef        string  `json:"image_ref"`
}

// Service owns the incident feed.
type Service struct {
	wards   WardIndex
	store   Store
	bus     Publisher
	cap     int
	metrics *observability.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	feed []domain.Incident // newest first
}

func NewService(wards WardIndex, store Store, bus Publisher, feedCap int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		wards:   wards,
		store:   store,
		bus:     bus,
		cap:     feedCap,
		metrics: metrics,
		logger:  logger,
	}
}

// File validates and records a report, returning the stored incident.
func (s *Service) File(ctx context.Context, report Report) (domain.Incident, error) {
	return s.file(ctx, report, false)
}

func (s *Service) file(ctx context.Context, report Report, simulated bool) (domain.Incident, error) {
	incident := domain.Incident{
		ID:              uuid.NewString(),
		Type:            report.Type,
		WardID:          report.WardID,
		Description:     report.Description,
		Severity:        report.Severity,
		Status:          domain.IncidentPending,
		Latitude:        report.Latitude,
		Longitude:       report.Longitude,
		Accuracy:        report.Accuracy,
		ValidationScore: report.ValidationScore,
		ImageRef:        report.ImageRef,
		Simulated:       simulated,
		OccurredAt:      clock.Now().UTC(),
	}
	if incident.Severity == 0 {
		incident.Severity = 1
	}

	if ward, ok := s.wards.Ward(report.WardID); ok {
		incident.WardName = ward.Name
		if incident.Latitude == 0 && incident.Longitude == 0 {
			incident.Latitude = ward.Latitude
			incident.Longitude = ward.Longitude
		}
	}

	if err := incident.Validate(); err != nil {
		return domain.Incident{}, fmt.Errorf("file incident: %w", err)
	}

	s.mu.Lock()
	s.feed = append([]domain.Incident{incident}, s.feed...)
	if len(s.feed) > s.cap {
		s.feed = s.feed[:s.cap]
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Insert(ctx, incident); err != nil {
			s.logger.Warn("persisting incident failed", "incident", incident.ID, "error", err)
		} else if err := s.store.Prune(ctx, s.cap); err != nil {
			s.logger.Warn("pruning incidents failed", "error", err)
		}
	}

	if err := s.bus.Publish(ctx, kafka.TopicIncidentNew, incident.WardID, incident); err != nil {
		s.logger.Warn("publishing incident failed", "incident", incident.ID, "error", err)
	}

	origin := "citizen"
	if simulated {
		origin = "simulated"
	}
	s.metrics.IncidentsFiled.WithLabelValues(origin).Inc()
	return incident, nil
}

// Recent returns the feed newest-first.
func (s *Service) Recent() []domain.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Incident, len(s.feed))
	copy(out, s.feed)
	return out
}
