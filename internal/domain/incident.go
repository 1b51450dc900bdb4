package domain

import (
	"fmt"
	"time"
)

// IncidentType categorizes a reported flooding or infrastructure event.
type IncidentType string

const (
	IncidentWaterlogging IncidentType = "waterlogging"
	IncidentPothole      IncidentType = "pothole"
	IncidentDrainage     IncidentType = "drainage"
)

// IncidentStatus tracks the review state of a report.
type IncidentStatus string

const (
	IncidentPending   IncidentStatus = "pending"
	IncidentVerified  IncidentStatus = "verified"
	IncidentDismissed IncidentStatus = "dismissed"
)

// Incident is a user- or system-reported event tied to a ward. The in-memory
// feed and the persisted copy may diverge; they are never reconciled.
type Incident struct {
	ID          string         `db:"id" json:"id"`
	Type        IncidentType   `db:"type" json:"type"`
	Status      IncidentStatus `db:"status" json:"status"`
	Severity    int            `db:"severity" json:"severity"` // 1-3
	WardID      string         `db:"ward_id" json:"ward_id"`
	WardName    string         `db:"ward_name" json:"ward_name"`
	Description string         `db:"description" json:"description"`

	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
	Accuracy  float64 `db:"accuracy" json:"accuracy,omitempty"`

	ValidationScore float64 `db:"validation_score" json:"validation_score,omitempty"`
	ImageRef        string  `db:"image_ref" json:"image_ref,omitempty"`

	Simulated  bool      `db:"simulated" json:"simulated"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

// Validate checks the fields a submission must carry.
func (i Incident) Validate() error {
	switch i.Type {
	case IncidentWaterlogging, IncidentPothole, IncidentDrainage:
	default:
		return fmt.Errorf("unknown incident type %q", i.Type)
	}
	if i.WardID == "" {
		return fmt.Errorf("incident missing ward reference")
	}
	if i.Severity < 1 || i.Severity > 3 {
		return fmt.Errorf("incident severity %d outside 1-3", i.Severity)
	}
	return nil
}
