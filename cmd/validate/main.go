// Command validate performs integrity checks across the flood-risk data
// chain: the baseline ward roster, coordinate resolution, and the risk
// classification rules. With -api-url it also verifies that a running
// service's ward snapshot is internally consistent.
//
// Usage:
//
//	go run ./cmd/validate
//	go run ./cmd/validate -api-url http://localhost:8080
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/monsoonwatch/flood-risk-service/internal/aggregate"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
	"github.com/monsoonwatch/flood-risk-service/internal/geo"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	apiURL := flag.String("api-url", "", "base URL of a running service to check (optional)")
	flag.Parse()

	os.Exit(run(*apiURL))
}

func run(apiURL string) int {
	fmt.Println("=== Flood Risk Data Integrity Validation ===")
	fmt.Println()

	th := domain.DefaultThresholds()
	roster := aggregate.DemoWards()

	phases := []*phase{
		validateRoster(roster),
		validateGeocoding(roster),
		validateClassification(roster, th),
	}

	if apiURL != "" {
		phases = append(phases, validateLiveSnapshot(apiURL, th))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Roster ──
// The baseline ward set must have unique IDs and sane thresholds, since it is
// the last-resort data source and everything downstream assumes it is clean.

func validateRoster(roster []domain.Ward) *phase {
	p := &phase{name: "Phase 1: Ward Roster"}

	if len(roster) == 0 {
		p.errorf("roster is empty")
		return p
	}

	seen := map[string]bool{}
	for _, w := range roster {
		if w.ID == "" {
			p.errorf("ward %q: missing ID", w.Name)
		} else if seen[w.ID] {
			p.errorf("ward %s: duplicate ID", w.ID)
		}
		seen[w.ID] = true

		if w.Name == "" {
			p.errorf("ward %s: missing name", w.ID)
		}
		if w.Zone == "" {
			p.errorf("ward %s: missing zone", w.ID)
		}
		if w.FailureThreshold <= 0 {
			p.errorf("ward %s: failure threshold %.1f is not positive", w.ID, w.FailureThreshold)
		}
	}
	return p
}

// ── Phase 2: Geocoding ──
// Every roster ward must resolve to a stable coordinate inside the Delhi
// bounding box.

func validateGeocoding(roster []domain.Ward) *phase {
	p := &phase{name: "Phase 2: Coordinate Resolution"}

	for _, w := range roster {
		first, method, err := geo.Resolve(w.Name, w.Zone)
		if err != nil {
			p.errorf("ward %s (%s): resolve failed: %v", w.ID, w.Name, err)
			continue
		}
		if !geo.InBounds(first) {
			p.errorf("ward %s (%s): resolved (%.4f, %.4f) outside Delhi bounds via %s",
				w.ID, w.Name, first.Lat, first.Lon, method)
		}

		second, _, err := geo.Resolve(w.Name, w.Zone)
		if err != nil || first != second {
			p.errorf("ward %s (%s): resolution is not deterministic", w.ID, w.Name)
		}
	}
	return p
}

// ── Phase 3: Classification ──
// Sweeps rainfall from dry to well past each ward's threshold and checks that
// the tier and score always land in the same band, that scores stay in range,
// and that more rain never improves the score.

func validateClassification(roster []domain.Ward, th domain.Thresholds) *phase {
	p := &phase{name: "Phase 3: Classification Consistency"}

	for _, w := range roster {
		prevScore := 101
		for step := 0; step <= 30; step++ {
			rain := w.FailureThreshold * 1.5 * float64(step) / 30

			c := domain.Classify(domain.RainfallReading{
				Current:          rain,
				FailureThreshold: w.FailureThreshold,
			}, nil, th)

			if c.Score < 0 || c.Score > 100 {
				p.errorf("ward %s at %.1fmm: score %d out of range", w.ID, rain, c.Score)
			}
			if band := domain.ClassifyByScore(c.Score, th); band != c.Level {
				p.errorf("ward %s at %.1fmm: tier %s disagrees with score band %s (score %d)",
					w.ID, rain, c.Level, band, c.Score)
			}
			if c.Score > prevScore {
				p.errorf("ward %s at %.1fmm: score rose from %d to %d as rainfall increased",
					w.ID, rain, prevScore, c.Score)
			}
			prevScore = c.Score
		}
	}
	return p
}

// ── Phase 4: Live Snapshot ──
// Fetches /api/wards from a running service and applies the same consistency
// rules to what it is actually serving.

type wardListResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Data    []domain.Ward `json:"data"`
}

func validateLiveSnapshot(apiURL string, th domain.Thresholds) *phase {
	p := &phase{name: "Phase 4: Live Snapshot"}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(apiURL + "/api/wards")
	if err != nil {
		p.errorf("fetch wards: %v", err)
		return p
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.errorf("read response: %v", err)
		return p
	}
	if resp.StatusCode != http.StatusOK {
		p.errorf("unexpected status %d", resp.StatusCode)
		return p
	}

	var list wardListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		p.errorf("decode response: %v", err)
		return p
	}
	if !list.Success {
		p.errorf("service reported success=false")
		return p
	}
	if list.Count != len(list.Data) {
		p.errorf("count %d does not match %d returned wards", list.Count, len(list.Data))
	}

	for _, w := range list.Data {
		if band := domain.ClassifyByScore(w.PreparednessScore, th); band != w.RiskLevel {
			p.errorf("ward %s: served tier %s disagrees with score band %s (score %d)",
				w.ID, w.RiskLevel, band, w.PreparednessScore)
		}
		if !geo.InBounds(geo.Coordinate{Lat: w.Latitude, Lon: w.Longitude}) {
			p.errorf("ward %s: served coordinates (%.4f, %.4f) outside Delhi bounds",
				w.ID, w.Latitude, w.Longitude)
		}
		if w.LastUpdated.IsZero() {
			p.errorf("ward %s: last_updated is zero", w.ID)
		}
		if w.DataSource == "" {
			p.errorf("ward %s: data_source is empty", w.ID)
		}
	}
	fmt.Printf("  Checked %d served wards from %s\n", len(list.Data), apiURL)
	return p
}
