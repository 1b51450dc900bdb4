package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWard(id string, level RiskLevel, score int) Ward {
	return Ward{
		ID:                id,
		Name:              "Ward " + id,
		Zone:              "Central Delhi",
		FailureThreshold:  60,
		RiskLevel:         level,
		PreparednessScore: score,
	}
}

func TestSelectAlerts_FiltersAndRanks(t *testing.T) {
	wards := []Ward{
		testWard("w1", RiskSafe, 90),      // not selected
		testWard("w2", RiskAlert, 60),     // selected, medium
		testWard("w3", RiskCritical, 20),  // selected, critical
		testWard("w4", RiskCritical, 45),  // selected, critical
		testWard("w5", RiskSafe, 45),      // selected via score clause
	}

	alerts := SelectAlerts(wards, DefaultAlertPolicy())
	require.Len(t, alerts, 4)

	// Critical first, worst score first within a tier.
	assert.Equal(t, "w3", alerts[0].WardID)
	assert.Equal(t, "w4", alerts[1].WardID)
	assert.Equal(t, "w2", alerts[2].WardID)
	assert.Equal(t, "w5", alerts[3].WardID)
}

func TestSelectAlerts_OrderingInvariant(t *testing.T) {
	wards := []Ward{
		testWard("a", RiskAlert, 40),
		testWard("b", RiskCritical, 70),
		testWard("c", RiskSafe, 10),
		testWard("d", RiskAlert, 35),
		testWard("e", RiskCritical, 12),
		testWard("f", RiskAlert, 35),
	}

	alerts := SelectAlerts(wards, DefaultAlertPolicy())
	for i := 0; i < len(alerts)-1; i++ {
		wi, wj := alerts[i].RiskLevel.Weight(), alerts[i+1].RiskLevel.Weight()
		assert.GreaterOrEqual(t, wi, wj)
		if wi == wj {
			assert.LessOrEqual(t, alerts[i].PreparednessScore, alerts[i+1].PreparednessScore)
		}
	}
}

func TestSelectAlerts_SafeWardQualifiesOnLowScore(t *testing.T) {
	// riskLevel=safe with score 45 still enters the feed via the score clause.
	wards := []Ward{testWard("w1", RiskSafe, 45)}

	alerts := SelectAlerts(wards, DefaultAlertPolicy())
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
}

func TestSelectAlerts_ForecastRatioClause(t *testing.T) {
	w := testWard("w1", RiskSafe, 80)
	w.ForecastRainfall3h = 25 // 25/60 > 0.30

	alerts := SelectAlerts([]Ward{w}, DefaultAlertPolicy())
	require.Len(t, alerts, 1)
}

func TestSelectAlerts_CurrentRainfallClause(t *testing.T) {
	w := testWard("w1", RiskSafe, 80)
	w.CurrentRainfall = 31 // above half the 60mm threshold

	alerts := SelectAlerts([]Ward{w}, DefaultAlertPolicy())
	require.Len(t, alerts, 1)
}

func TestSelectAlerts_CapTruncates(t *testing.T) {
	wards := make([]Ward, 0, 30)
	for i := 0; i < 30; i++ {
		wards = append(wards, testWard(string(rune('a'+i)), RiskCritical, i))
	}

	p := DefaultAlertPolicy()
	alerts := SelectAlerts(wards, p)
	assert.Len(t, alerts, p.Cap)
}

func TestSelectAlerts_SeverityLabels(t *testing.T) {
	crit := testWard("w1", RiskCritical, 80)

	overCapacity := testWard("w2", RiskSafe, 80)
	overCapacity.CurrentRainfall = 65 // ratio >= 1.0

	lowScore := testWard("w3", RiskSafe, 25) // score < 30

	medium := testWard("w4", RiskAlert, 60)

	alerts := SelectAlerts([]Ward{crit, overCapacity, lowScore, medium}, DefaultAlertPolicy())
	bySeverity := map[string]AlertSeverity{}
	for _, a := range alerts {
		bySeverity[a.WardID] = a.Severity
	}

	assert.Equal(t, SeverityCritical, bySeverity["w1"])
	assert.Equal(t, SeverityCritical, bySeverity["w2"])
	assert.Equal(t, SeverityCritical, bySeverity["w3"])
	assert.Equal(t, SeverityMedium, bySeverity["w4"])
}

func TestSelectAlerts_UsesInjectedClock(t *testing.T) {
	frozen := time.Date(2026, 7, 14, 9, 30, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(frozen)
	SetClock(fake)
	defer SetClock(nil)

	alerts := SelectAlerts([]Ward{testWard("w1", RiskCritical, 10)}, DefaultAlertPolicy())
	require.Len(t, alerts, 1)
	assert.Equal(t, frozen, alerts[0].IssuedAt)
}

func TestSelectAlerts_ThresholdPercentage(t *testing.T) {
	w := testWard("w1", RiskCritical, 10)
	w.CurrentRainfall = 22
	w.ForecastRainfall3h = 68
	w.FailureThreshold = 45

	alerts := SelectAlerts([]Ward{w}, DefaultAlertPolicy())
	require.Len(t, alerts, 1)
	assert.Equal(t, 151, alerts[0].ThresholdPercentage)
	assert.Contains(t, alerts[0].Message, "151%")
}
