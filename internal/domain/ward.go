package domain

import (
	"strings"
	"time"
)

// RiskLevel is the three-tier flood risk classification of a ward.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskAlert    RiskLevel = "alert"
	RiskCritical RiskLevel = "critical"
)

// Weight returns the ordering weight of a risk level: critical 3, alert 2,
// safe 1. Unknown levels weigh 0 and sort last.
func (r RiskLevel) Weight() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskAlert:
		return 2
	case RiskSafe:
		return 1
	default:
		return 0
	}
}

// ParseRiskLabel maps an external classifier's label onto a RiskLevel.
// The predictor and older data sources use "high"/"moderate"/"medium"
// interchangeably with the canonical names.
func ParseRiskLabel(label string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "critical", "high":
		return RiskCritical, true
	case "alert", "moderate", "medium":
		return RiskAlert, true
	case "low", "safe":
		return RiskSafe, true
	default:
		return "", false
	}
}

// Ward is the unit of risk assessment: one MCD administrative sub-area.
// All fields are populated by the aggregator; consumers never need
// field-level fallbacks or null checks.
type Ward struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Zone string `db:"zone" json:"zone"`

	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`

	CurrentRainfall    float64 `db:"current_rainfall" json:"current_rainfall"`
	ForecastRainfall3h float64 `db:"forecast_rainfall_3h" json:"forecast_rainfall_3h"`
	FailureThreshold   float64 `db:"failure_threshold" json:"failure_threshold"`

	RiskLevel         RiskLevel `db:"risk_level" json:"risk_level"`
	PreparednessScore int       `db:"preparedness_score" json:"preparedness_score"`

	// Infrastructure context. Synthetic-filled by the aggregator when a
	// source omits them; approximations, not ground truth.
	DrainageStressIndex      float64 `db:"drainage_stress_index" json:"drainage_stress_index"`
	PotholeDensity           float64 `db:"pothole_density" json:"pothole_density"`
	DrainDensity             float64 `db:"drain_density" json:"drain_density"`
	HistoricalFloodFrequency float64 `db:"historical_flood_frequency" json:"historical_flood_frequency"`

	Explanation string    `db:"explanation" json:"explanation,omitempty"`
	DataSource  string    `db:"data_source" json:"data_source"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// Ratio returns the driving rainfall-to-threshold ratio for the ward,
// substituting the default threshold when none is recorded.
func (w Ward) Ratio(defaultThreshold float64) float64 {
	threshold := w.FailureThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if threshold <= 0 {
		return 0
	}
	return max(clampRainfall(w.CurrentRainfall), clampRainfall(w.ForecastRainfall3h)) / threshold
}

// WardStatistics aggregates tier counts and score spread across all wards.
type WardStatistics struct {
	Total        int            `json:"total"`
	ByRiskLevel  map[string]int `json:"by_risk_level"`
	AverageScore int            `json:"average_score"`
	MinScore     int            `json:"min_score"`
	MaxScore     int            `json:"max_score"`
}

// ComputeStatistics derives WardStatistics from a ward snapshot.
func ComputeStatistics(wards []Ward) WardStatistics {
	stats := WardStatistics{
		Total: len(wards),
		ByRiskLevel: map[string]int{
			string(RiskCritical): 0,
			string(RiskAlert):    0,
			string(RiskSafe):     0,
		},
	}
	if len(wards) == 0 {
		return stats
	}

	sum := 0
	stats.MinScore = wards[0].PreparednessScore
	stats.MaxScore = wards[0].PreparednessScore
	for _, w := range wards {
		stats.ByRiskLevel[string(w.RiskLevel)]++
		sum += w.PreparednessScore
		if w.PreparednessScore < stats.MinScore {
			stats.MinScore = w.PreparednessScore
		}
		if w.PreparednessScore > stats.MaxScore {
			stats.MaxScore = w.PreparednessScore
		}
	}
	stats.AverageScore = int(float64(sum)/float64(len(wards)) + 0.5)
	return stats
}
