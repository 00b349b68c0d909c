package domain

import (
	"time"

	"github.com/google/uuid"
)

// ThresholdOutcome records whether one triggered comparison found any
// changes. The Threshold Controller reads a rolling window of these to tune
// the per-user activity threshold.
type ThresholdOutcome struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_threshold_outcome_user_created,priority:1" json:"user_id"`
	HadChanges bool      `gorm:"column:had_changes;not null" json:"had_changes"`

	CreatedAt time.Time `gorm:"not null;default:now();index:idx_threshold_outcome_user_created,priority:2" json:"created_at"`
}

func (ThresholdOutcome) TableName() string { return "threshold_outcome" }
