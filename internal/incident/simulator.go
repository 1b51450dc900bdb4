package incident

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/robfig/cron/v3"

	"github.com/monsoonwatch/flood-risk-service/internal/domain"
)

// HighRiskIndex supplies the wards where simulated incidents plausibly occur.
type HighRiskIndex interface {
	HighRisk() []domain.Ward
}

var simulatedIncidents = []struct {
	typ      domain.IncidentType
	severity int
	template string
}{
	{domain.IncidentWaterlogging, 3, "Severe waterlogging reported near %s market"},
	{domain.IncidentWaterlogging, 2, "Knee-deep water on main road in %s"},
	{domain.IncidentDrainage, 2, "Drain overflow on residential street in %s"},
	{domain.IncidentPothole, 1, "Large pothole submerged in %s"},
}

// Simulator periodically files synthetic incidents in high-risk wards while
// no real reporting volume exists. Runs on a cron schedule.
type Simulator struct {
	service  *Service
	highRisk HighRiskIndex
	cron     *cron.Cron
	rng      *rand.Rand
	logger   *slog.Logger
}

// NewSimulator creates a simulator firing every other minute.
func NewSimulator(service *Service, highRisk HighRiskIndex, logger *slog.Logger) *Simulator {
	return &Simulator{
		service:  service,
		highRisk: highRisk,
		cron:     cron.New(),
		rng:      rand.New(rand.NewSource(rand.Int63())),
		logger:   logger,
	}
}

// Start schedules the simulator. Call Stop to halt it.
func (s *Simulator) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("*/2 * * * *", func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("schedule incident simulator: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for a running tick to finish.
func (s *Simulator) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Simulator) tick(ctx context.Context) {
	wards := s.highRisk.HighRisk()
	if len(wards) == 0 {
		return
	}

	ward := wards[s.rng.Intn(len(wards))]
	kind := simulatedIncidents[s.rng.Intn(len(simulatedIncidents))]

	_, err := s.service.file(ctx, Report{
		Type:        kind.typ,
		WardID:      ward.ID,
		Description: fmt.Sprintf(kind.template, ward.Name),
		Severity:    kind.severity,
	}, true)
	if err != nil {
		s.logger.Warn("simulated incident rejected", "ward", ward.ID, "error", err)
		return
	}
	s.logger.Debug("simulated incident filed", "ward", ward.ID, "type", kind.typ)
}
