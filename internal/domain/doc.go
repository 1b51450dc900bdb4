// Package domain models Delhi municipal wards and their monsoon flood risk.
//
// # Data Sources
//
// Ward risk fields are assembled from up to three sources in priority order:
// an external flood-prediction service (per-ward probability and risk label),
// the OpenWeather-backed rainfall feed (aggregated per grid cell), and a
// fixed demo dataset used when every remote source is unavailable. The
// aggregator in internal/aggregate owns the merge; downstream code only ever
// sees the canonical Ward shape defined here.
//
// # Risk Classification
//
// Each ward carries a failure threshold: the rainfall in millimetres beyond
// which its drainage is assumed to fail. The driving ratio is
//
//	ratio = max(currentRainfall, forecastRainfall3h) / failureThreshold
//
// and maps to a tier: ratio > 0.70 critical, > 0.30 alert, otherwise safe.
// Wards with no recorded threshold use a 60mm default. Negative rainfall
// readings are clamped to zero before classification.
//
// # Preparedness Score Convention
//
// The preparedness score is 0-100 with higher meaning safer. The external
// predictor reports probability-of-flooding, so its output converts as
//
//	score = round((1 - probability) * 100)
//
// Probability is always risk, never safety; older dashboard builds disagreed
// on this and the risk convention won. When the predictor supplies a usable
// probability the score drives the tier for that ward update (score < 40
// critical, < 70 alert); otherwise the rainfall ratio drives it. The two
// signals are never mixed within a single update, which keeps riskLevel and
// preparednessScore two views of the same underlying number.
//
// # Alert Feed
//
// A ward enters the alert feed when any of: its tier is alert or critical,
// its forecast exceeds 30% of threshold, its score is below 50, or current
// rainfall exceeds half its threshold. The feed orders by tier weight
// (critical 3, alert 2, safe 1) descending, then score ascending, then ward
// ID, and truncates to a display cap. The cap is presentational; the full
// ward set stays queryable through the ward API.
package domain
