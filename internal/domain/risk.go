package domain

import "math"

// Thresholds holds the tunable cutoffs for risk classification.
type Thresholds struct {
	CriticalRatio           float64 // driving ratio above which a ward is critical
	AlertRatio              float64 // driving ratio above which a ward is on alert
	MPICritical             int     // preparedness score below which a ward is critical
	MPIAlert                int     // preparedness score below which a ward is on alert
	DefaultFailureThreshold float64 // mm, substituted when a ward has none
}

// DefaultThresholds returns the operational cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalRatio:           0.70,
		AlertRatio:              0.30,
		MPICritical:             40,
		MPIAlert:                70,
		DefaultFailureThreshold: 60,
	}
}

// RainfallReading is the hydrological input to classification, all in mm.
type RainfallReading struct {
	Current          float64
	Forecast3h       float64
	FailureThreshold float64
}

// ExternalPrediction carries the external model's output for one ward.
// Probability is the probability of flooding (risk, not safety).
type ExternalPrediction struct {
	Probability    float64
	HasProbability bool
	RiskLabel      string
}

// Classification is the joint result of one ward update. Level and Score are
// always produced together from a single driving signal.
type Classification struct {
	Level  RiskLevel
	Score  int
	Ratio  float64
	Driver string // "external" or "ratio"
}

// Classify derives the risk tier and preparedness score for one ward update.
// When a usable external prediction is supplied it drives both outputs;
// otherwise the rainfall-to-threshold ratio does. The two signals are never
// mixed within one call.
func Classify(r RainfallReading, ext *ExternalPrediction, th Thresholds) Classification {
	current := clampRainfall(r.Current)
	forecast := clampRainfall(r.Forecast3h)

	threshold := r.FailureThreshold
	if threshold <= 0 {
		threshold = th.DefaultFailureThreshold
	}
	ratio := max(current, forecast) / threshold

	if ext != nil {
		if c, ok := classifyExternal(*ext, ratio, th); ok {
			return c
		}
	}

	return classifyByRatio(current, forecast, ratio, th)
}

// classifyExternal applies the external model's probability and label.
// Returns ok=false when the prediction carries nothing usable, in which case
// the caller falls back to the ratio path.
func classifyExternal(ext ExternalPrediction, ratio float64, th Thresholds) (Classification, bool) {
	label, hasLabel := ParseRiskLabel(ext.RiskLabel)
	if !hasLabel && !ext.HasProbability {
		return Classification{}, false
	}

	score := 0
	if ext.HasProbability {
		p := ext.Probability
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		score = clampScore(int(math.Round((1 - p) * 100)))
	}

	level := label
	if !hasLabel {
		level = ClassifyByScore(score, th)
	}
	if !ext.HasProbability {
		// Label without probability: derive the score from the label's band
		// midpoint so the two fields stay consistent.
		switch level {
		case RiskCritical:
			score = th.MPICritical / 2
		case RiskAlert:
			score = (th.MPICritical + th.MPIAlert) / 2
		default:
			score = (th.MPIAlert + 100) / 2
		}
	}

	return Classification{Level: level, Score: score, Ratio: ratio, Driver: "external"}, true
}

// classifyByRatio is the local heuristic path. Score formulas follow the
// dashboard's historical behavior: deeper into a band means a lower score,
// floored so bands do not overlap.
func classifyByRatio(current, forecast, ratio float64, th Thresholds) Classification {
	c := Classification{Ratio: ratio, Driver: "ratio"}

	switch {
	case ratio > th.CriticalRatio:
		c.Level = RiskCritical
		c.Score = max(10, 30-int(math.Round(ratio*20)))
	case ratio > th.AlertRatio:
		c.Level = RiskAlert
		c.Score = max(30, 70-int(math.Round(ratio*30)))
	default:
		c.Level = RiskSafe
		if current > 0.1 || forecast > 0.1 {
			c.Score = max(70, 100-int(math.Round(ratio*30)))
		} else {
			c.Score = 100
		}
	}

	c.Score = clampScore(c.Score)
	return c
}

// ClassifyByScore maps a 0-100 preparedness score onto a tier using the MPI
// bands. Used when the score is the driving signal.
func ClassifyByScore(score int, th Thresholds) RiskLevel {
	switch {
	case score < th.MPICritical:
		return RiskCritical
	case score < th.MPIAlert:
		return RiskAlert
	default:
		return RiskSafe
	}
}

func clampRainfall(mm float64) float64 {
	if mm < 0 || math.IsNaN(mm) {
		return 0
	}
	return mm
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

