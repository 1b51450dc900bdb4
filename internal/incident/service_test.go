package incident

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/kafka"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

type fakeWardIndex map[string]domain.Ward

func (f fakeWardIndex) Ward(id string) (domain.Ward, bool) {
	w, ok := f[id]
	return w, ok
}

type capturingBus struct {
	mu     sync.Mutex
	topics []string
	keys   []string
}

func (b *capturingBus) Publish(_ context.Context, topic, key string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.keys = append(b.keys, key)
	return nil
}

func testService(wards fakeWardIndex, bus *capturingBus, feedCap int) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(wards, nil, bus, feedCap, observability.NewMetricsForTesting(), logger)
}

func karolBagh() fakeWardIndex {
	return fakeWardIndex{
		"W001": {ID: "W001", Name: "Karol Bagh", Latitude: 28.6514, Longitude: 77.1907},
	}
}

func TestFile_PopulatesFromWard(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2026, 7, 14, 11, 0, 0, 0, time.UTC))
	SetClock(fc)
	defer SetClock(clockwork.NewRealClock())

	bus := &capturingBus{}
	svc := testService(karolBagh(), bus, 50)

	incident, err := svc.File(context.Background(), Report{
		Type:        domain.IncidentWaterlogging,
		WardID:      "W001",
		Description: "Water entering shops",
		Severity:    2,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, incident.ID)
	assert.Equal(t, "Karol Bagh", incident.WardName)
	assert.Equal(t, 28.6514, incident.Latitude)
	assert.Equal(t, 77.1907, incident.Longitude)
	assert.Equal(t, domain.IncidentPending, incident.Status)
	assert.False(t, incident.Simulated)
	assert.Equal(t, fc.Now().UTC(), incident.OccurredAt)

	require.Len(t, bus.topics, 1)
	assert.Equal(t, kafka.TopicIncidentNew, bus.topics[0])
	assert.Equal(t, "W001", bus.keys[0])
}

func TestFile_ReporterCoordinatesWin(t *testing.T) {
	svc := testService(karolBagh(), &capturingBus{}, 50)

	incident, err := svc.File(context.Background(), Report{
		Type:      domain.IncidentPothole,
		WardID:    "W001",
		Severity:  1,
		Latitude:  28.66,
		Longitude: 77.19,
	})
	require.NoError(t, err)
	assert.Equal(t, 28.66, incident.Latitude)
	assert.Equal(t, 77.19, incident.Longitude)
}

func TestFile_RejectsInvalidReports(t *testing.T) {
	svc := testService(karolBagh(), &capturingBus{}, 50)

	_, err := svc.File(context.Background(), Report{Type: "earthquake", WardID: "W001", Severity: 1})
	assert.Error(t, err)

	_, err = svc.File(context.Background(), Report{Type: domain.IncidentDrainage, Severity: 1})
	assert.Error(t, err)

	_, err = svc.File(context.Background(), Report{Type: domain.IncidentDrainage, WardID: "W001", Severity: 7})
	assert.Error(t, err)

	assert.Empty(t, svc.Recent())
}

func TestFile_DefaultsSeverity(t *testing.T) {
	svc := testService(karolBagh(), &capturingBus{}, 50)

	incident, err := svc.File(context.Background(), Report{Type: domain.IncidentDrainage, WardID: "W001"})
	require.NoError(t, err)
	assert.Equal(t, 1, incident.Severity)
}

func TestRecent_NewestFirstAndCapped(t *testing.T) {
	svc := testService(karolBagh(), &capturingBus{}, 5)

	for i := 0; i < 8; i++ {
		_, err := svc.File(context.Background(), Report{
			Type:        domain.IncidentWaterlogging,
			WardID:      "W001",
			Description: fmt.Sprintf("report %d", i),
			Severity:    1,
		})
		require.NoError(t, err)
	}

	recent := svc.Recent()
	require.Len(t, recent, 5)
	assert.Equal(t, "report 7", recent[0].Description)
	assert.Equal(t, "report 3", recent[4].Description)
}

func TestSimulator_FilesInHighRiskWard(t *testing.T) {
	bus := &capturingBus{}
	svc := testService(karolBagh(), bus, 50)

	sim := NewSimulator(svc, highRiskStub{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sim.tick(context.Background())

	recent := svc.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "W001", recent[0].WardID)
	assert.True(t, recent[0].Simulated)
	assert.Contains(t, recent[0].Description, "Karol Bagh")
}

func TestSimulator_NoHighRiskWardsNoIncident(t *testing.T) {
	svc := testService(karolBagh(), &capturingBus{}, 50)
	sim := NewSimulator(svc, emptyHighRisk{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sim.tick(context.Background())
	assert.Empty(t, svc.Recent())
}

type highRiskStub struct{}

func (highRiskStub) HighRisk() []domain.Ward {
	return []domain.Ward{{ID: "W001", Name: "Karol Bagh", RiskLevel: domain.RiskCritical}}
}

type emptyHighRisk struct{}

func (emptyHighRisk) HighRisk() []domain.Ward { return nil }
