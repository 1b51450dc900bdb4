package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/monsoonwatch/flood-risk-service/internal/domain"
)

// IncidentRepository stores citizen and simulated incident reports.
type IncidentRepository struct {
	db *sqlx.DB
}

func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

const incidentColumns = `id, type, status, severity, ward_id, ward_name,
	description, latitude, longitude, accuracy, validation_score, image_ref,
	simulated, occurred_at`

// Insert stores a new incident report.
func (r *IncidentRepository) Insert(ctx context.Context, incident domain.Incident) error {
	const query = `
		INSERT INTO incidents (` + incidentColumns + `)
		VALUES (:id, :type, :status, :severity, :ward_id, :ward_name,
			:description, :latitude, :longitude, :accuracy, :validation_score,
			:image_ref, :simulated, :occurred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("insert incident %s: %w", incident.ID, err)
	}
	return nil
}

// Recent returns the newest incidents first, capped at limit.
func (r *IncidentRepository) Recent(ctx context.Context, limit int) ([]domain.Incident, error) {
	incidents := []domain.Incident{}
	query := "SELECT " + incidentColumns + " FROM incidents ORDER BY occurred_at DESC, id DESC LIMIT $1"
	if err := r.db.SelectContext(ctx, &incidents, query, limit); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// Prune deletes everything but the newest keep incidents, so simulated
// reports cannot grow the table without bound.
func (r *IncidentRepository) Prune(ctx context.Context, keep int) error {
	const query = `
		DELETE FROM incidents WHERE id NOT IN (
			SELECT id FROM incidents ORDER BY occurred_at DESC, id DESC LIMIT $1
		)`
	if _, err := r.db.ExecContext(ctx, query, keep); err != nil {
		return fmt.Errorf("prune incidents: %w", err)
	}
	return nil
}
