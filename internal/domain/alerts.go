package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// AlertSeverity labels how urgent an individual alert is.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
)

// Alert is a derived, non-persistent view of a ward needing attention.
// Recomputed on every refresh from its source ward, never stored on its own.
type Alert struct {
	WardID              string        `json:"ward_id"`
	WardName            string        `json:"ward_name"`
	Zone                string        `json:"zone"`
	RiskLevel           RiskLevel     `json:"risk_level"`
	Severity            AlertSeverity `json:"severity"`
	PreparednessScore   int           `json:"preparedness_score"`
	ThresholdPercentage int           `json:"threshold_percentage"`
	Message             string        `json:"message"`
	IssuedAt            time.Time     `json:"issued_at"`
}

// AlertPolicy holds the tunable selection and severity cutoffs.
type AlertPolicy struct {
	RatioCutoff      float64 // forecast/threshold above this qualifies
	ScoreCutoff      int     // preparedness below this qualifies
	CurrentFraction  float64 // current rainfall above threshold*fraction qualifies
	SevereRatio      float64 // ratio at or above this is critical severity
	MediumRatio      float64 // ratio at or above this is medium severity
	CriticalScore    int     // score below this is critical severity
	MediumScore      int     // score below this is medium severity
	Cap              int     // display cap on the ranked feed
	DefaultThreshold float64 // mm, for wards with no recorded threshold
}

// DefaultAlertPolicy returns the operational alerting cutoffs.
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		RatioCutoff:      0.30,
		ScoreCutoff:      50,
		CurrentFraction:  0.5,
		SevereRatio:      1.0,
		MediumRatio:      0.70,
		CriticalScore:    30,
		MediumScore:      50,
		Cap:              12,
		DefaultThreshold: 60,
	}
}

// SelectAlerts filters the ward set down to the alert-worthy subset, ranks
// it worst-first, and truncates to the display cap. Ordering is risk weight
// descending, then preparedness score ascending, then ward ID so the feed is
// stable across refreshes.
func SelectAlerts(wards []Ward, p AlertPolicy) []Alert {
	now := clock.Now()

	selected := make([]Alert, 0, len(wards))
	for _, w := range wards {
		if !qualifies(w, p) {
			continue
		}
		selected = append(selected, buildAlert(w, p, now))
	}

	sort.SliceStable(selected, func(i, j int) bool {
		wi, wj := selected[i].RiskLevel.Weight(), selected[j].RiskLevel.Weight()
		if wi != wj {
			return wi > wj
		}
		if selected[i].PreparednessScore != selected[j].PreparednessScore {
			return selected[i].PreparednessScore < selected[j].PreparednessScore
		}
		return selected[i].WardID < selected[j].WardID
	})

	if p.Cap > 0 && len(selected) > p.Cap {
		selected = selected[:p.Cap]
	}
	return selected
}

// qualifies applies the selection predicate: any single clause is enough.
func qualifies(w Ward, p AlertPolicy) bool {
	if w.RiskLevel == RiskAlert || w.RiskLevel == RiskCritical {
		return true
	}
	threshold := w.FailureThreshold
	if threshold <= 0 {
		threshold = p.DefaultThreshold
	}
	if clampRainfall(w.ForecastRainfall3h)/threshold > p.RatioCutoff {
		return true
	}
	if w.PreparednessScore < p.ScoreCutoff {
		return true
	}
	return clampRainfall(w.CurrentRainfall) > threshold*p.CurrentFraction
}

func buildAlert(w Ward, p AlertPolicy, now time.Time) Alert {
	ratio := w.Ratio(p.DefaultThreshold)
	severity := deriveAlertSeverity(w, ratio, p)

	return Alert{
		WardID:              w.ID,
		WardName:            w.Name,
		Zone:                w.Zone,
		RiskLevel:           w.RiskLevel,
		Severity:            severity,
		PreparednessScore:   w.PreparednessScore,
		ThresholdPercentage: int(math.Round(ratio * 100)),
		Message:             alertMessage(w, ratio, severity),
		IssuedAt:            now,
	}
}

// deriveAlertSeverity labels an alert within the feed. A ward can reach
// critical severity on ratio or score alone even when its tier lags behind.
func deriveAlertSeverity(w Ward, ratio float64, p AlertPolicy) AlertSeverity {
	switch {
	case w.RiskLevel == RiskCritical || ratio >= p.SevereRatio || w.PreparednessScore < p.CriticalScore:
		return SeverityCritical
	case w.RiskLevel == RiskAlert || ratio >= p.MediumRatio || w.PreparednessScore < p.MediumScore:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func alertMessage(w Ward, ratio float64, severity AlertSeverity) string {
	pct := int(math.Round(ratio * 100))
	switch severity {
	case SeverityCritical:
		return fmt.Sprintf("Immediate action needed in %s: rainfall at %d%% of drainage failure capacity, %.1fmm expected in 3h", w.Name, pct, w.ForecastRainfall3h)
	case SeverityMedium:
		return fmt.Sprintf("Monitor %s closely: rainfall at %d%% of drainage failure capacity", w.Name, pct)
	default:
		return fmt.Sprintf("Advisory for %s: preparedness score %d, rainfall at %d%% of capacity", w.Name, w.PreparednessScore, pct)
	}
}
