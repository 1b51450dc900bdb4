package httpapi

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/monsoonwatch/flood-risk-service/internal/adapter/postgres"
	"github.com/monsoonwatch/flood-risk-service/internal/domain"
)

func parseWardFilter(c *gin.Context) (postgres.WardFilter, error) {
	filter := postgres.WardFilter{
		Zone:      c.Query("zone"),
		RiskLevel: c.Query("risk_level"),
	}
	if filter.RiskLevel != "" {
		level, ok := domain.ParseRiskLabel(filter.RiskLevel)
		if !ok {
			return filter, fmt.Errorf("unknown risk_level %q", filter.RiskLevel)
		}
		filter.RiskLevel = string(level)
	}

	var err error
	if filter.MinScore, err = scoreParam(c, "min_score"); err != nil {
		return filter, err
	}
	if filter.MaxScore, err = scoreParam(c, "max_score"); err != nil {
		return filter, err
	}
	return filter, nil
}

func scoreParam(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > 100 {
		return nil, fmt.Errorf("%s must be an integer between 0 and 100", name)
	}
	return &v, nil
}

// filterLive applies a ward filter to the in-memory snapshot.
func filterLive(wards []domain.Ward, filter postgres.WardFilter) []domain.Ward {
	out := make([]domain.Ward, 0, len(wards))
	for _, w := range wards {
		if filter.Zone != "" && w.Zone != filter.Zone {
			continue
		}
		if filter.RiskLevel != "" && string(w.RiskLevel) != filter.RiskLevel {
			continue
		}
		if filter.MinScore != nil && w.PreparednessScore < *filter.MinScore {
			continue
		}
		if filter.MaxScore != nil && w.PreparednessScore > *filter.MaxScore {
			continue
		}
		out = append(out, w)
	}
	return out
}
