package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/monsoonwatch/flood-risk-service/internal/domain"
)

// ErrWardNotFound is returned for lookups and mutations on unknown ward IDs.
var ErrWardNotFound = errors.New("ward not found")

// WardFilter narrows List results. Zero values mean "no constraint".
type WardFilter struct {
	Zone      string
	RiskLevel string
	MinScore  *int
	MaxScore  *int
}

// WardRepository stores ward records in Postgres.
type WardRepository struct {
	db *sqlx.DB
}

func NewWardRepository(db *sqlx.DB) *WardRepository {
	return &WardRepository{db: db}
}

const wardColumns = `id, name, zone, latitude, longitude, current_rainfall,
	forecast_rainfall_3h, failure_threshold, risk_level, preparedness_score,
	drainage_stress_index, pothole_density, drain_density,
	historical_flood_frequency, explanation, data_source, last_updated`

// List returns wards matching the filter, ordered by preparedness score
// ascending so the most exposed wards come first.
func (r *WardRepository) List(ctx context.Context, filter WardFilter) ([]domain.Ward, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Zone != "" {
		add("zone = $%d", filter.Zone)
	}
	if filter.RiskLevel != "" {
		add("risk_level = $%d", filter.RiskLevel)
	}
	if filter.MinScore != nil {
		add("preparedness_score >= $%d", *filter.MinScore)
	}
	if filter.MaxScore != nil {
		add("preparedness_score <= $%d", *filter.MaxScore)
	}

	query := "SELECT " + wardColumns + " FROM wards"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY preparedness_score ASC, id ASC"

	wards := []domain.Ward{}
	if err := r.db.SelectContext(ctx, &wards, query, args...); err != nil {
		return nil, fmt.Errorf("list wards: %w", err)
	}
	return wards, nil
}

// GetByID fetches a single ward.
func (r *WardRepository) GetByID(ctx context.Context, id string) (domain.Ward, error) {
	var ward domain.Ward
	err := r.db.GetContext(ctx, &ward, "SELECT "+wardColumns+" FROM wards WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ward{}, ErrWardNotFound
	}
	if err != nil {
		return domain.Ward{}, fmt.Errorf("get ward %s: %w", id, err)
	}
	return ward, nil
}

// HighRisk returns wards at alert or critical tier, worst first.
func (r *WardRepository) HighRisk(ctx context.Context) ([]domain.Ward, error) {
	wards := []domain.Ward{}
	query := "SELECT " + wardColumns + ` FROM wards
		WHERE risk_level IN ('critical', 'alert')
		ORDER BY preparedness_score ASC, id ASC`
	if err := r.db.SelectContext(ctx, &wards, query); err != nil {
		return nil, fmt.Errorf("list high-risk wards: %w", err)
	}
	return wards, nil
}

// UpsertAll writes a refresh cycle's ward set in one transaction.
func (r *WardRepository) UpsertAll(ctx context.Context, wards []domain.Ward) error {
	if len(wards) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO wards (` + wardColumns + `)
		VALUES (:id, :name, :zone, :latitude, :longitude, :current_rainfall,
			:forecast_rainfall_3h, :failure_threshold, :risk_level,
			:preparedness_score, :drainage_stress_index, :pothole_density,
			:drain_density, :historical_flood_frequency, :explanation,
			:data_source, :last_updated)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			zone = EXCLUDED.zone,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			current_rainfall = EXCLUDED.current_rainfall,
			forecast_rainfall_3h = EXCLUDED.forecast_rainfall_3h,
			failure_threshold = EXCLUDED.failure_threshold,
			risk_level = EXCLUDED.risk_level,
			preparedness_score = EXCLUDED.preparedness_score,
			drainage_stress_index = EXCLUDED.drainage_stress_index,
			pothole_density = EXCLUDED.pothole_density,
			drain_density = EXCLUDED.drain_density,
			historical_flood_frequency = EXCLUDED.historical_flood_frequency,
			explanation = EXCLUDED.explanation,
			data_source = EXCLUDED.data_source,
			last_updated = EXCLUDED.last_updated`

	for _, ward := range wards {
		if _, err := tx.NamedExecContext(ctx, query, ward); err != nil {
			return fmt.Errorf("upsert ward %s: %w", ward.ID, err)
		}
	}
	return tx.Commit()
}

// Create inserts a ward and fails if the ID is already taken.
func (r *WardRepository) Create(ctx context.Context, ward domain.Ward) error {
	const query = `
		INSERT INTO wards (` + wardColumns + `)
		VALUES (:id, :name, :zone, :latitude, :longitude, :current_rainfall,
			:forecast_rainfall_3h, :failure_threshold, :risk_level,
			:preparedness_score, :drainage_stress_index, :pothole_density,
			:drain_density, :historical_flood_frequency, :explanation,
			:data_source, :last_updated)`
	if _, err := r.db.NamedExecContext(ctx, query, ward); err != nil {
		return fmt.Errorf("create ward %s: %w", ward.ID, err)
	}
	return nil
}

// Update replaces a ward record.
func (r *WardRepository) Update(ctx context.Context, ward domain.Ward) error {
	const query = `
		UPDATE wards SET
			name = :name,
			zone = :zone,
			latitude = :latitude,
			longitude = :longitude,
			current_rainfall = :current_rainfall,
			forecast_rainfall_3h = :forecast_rainfall_3h,
			failure_threshold = :failure_threshold,
			risk_level = :risk_level,
			preparedness_score = :preparedness_score,
			drainage_stress_index = :drainage_stress_index,
			pothole_density = :pothole_density,
			drain_density = :drain_density,
			historical_flood_frequency = :historical_flood_frequency,
			explanation = :explanation,
			data_source = :data_source,
			last_updated = :last_updated
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, ward)
	if err != nil {
		return fmt.Errorf("update ward %s: %w", ward.ID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrWardNotFound
	}
	return nil
}

// Delete removes a ward.
func (r *WardRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM wards WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete ward %s: %w", id, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrWardNotFound
	}
	return nil
}

// Statistics aggregates the stored ward set in one query.
func (r *WardRepository) Statistics(ctx context.Context) (domain.WardStatistics, error) {
	var row struct {
		Total    int `db:"total"`
		Critical int `db:"critical"`
		Alert    int `db:"alert"`
		Safe     int `db:"safe"`
		Average  int `db:"average_score"`
		Min      int `db:"min_score"`
		Max      int `db:"max_score"`
	}
	const query = `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE risk_level = 'critical') AS critical,
			COUNT(*) FILTER (WHERE risk_level = 'alert') AS alert,
			COUNT(*) FILTER (WHERE risk_level = 'safe') AS safe,
			COALESCE(ROUND(AVG(preparedness_score)), 0) AS average_score,
			COALESCE(MIN(preparedness_score), 0) AS min_score,
			COALESCE(MAX(preparedness_score), 0) AS max_score
		FROM wards`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return domain.WardStatistics{}, fmt.Errorf("ward statistics: %w", err)
	}
	return domain.WardStatistics{
		Total: row.Total,
		ByRiskLevel: map[string]int{
			string(domain.RiskCritical): row.Critical,
			string(domain.RiskAlert):    row.Alert,
			string(domain.RiskSafe):     row.Safe,
		},
		AverageScore: row.Average,
		MinScore:     row.Min,
		MaxScore:     row.Max,
	}, nil
}
