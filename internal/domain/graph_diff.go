package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GraphDiff is the persisted result of one baseline/learner comparison,
// upserted by (user_id, content_id): a recomputation replaces the previous
// record rather than appending.
type GraphDiff struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_graph_diff_user_content,unique,priority:1" json:"user_id"`
	ContentID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_graph_diff_user_content,unique,priority:2" json:"content_id"`
	BaselineGraphID uuid.UUID      `gorm:"type:uuid;not null" json:"baseline_graph_id"`
	LearnerGraphID  uuid.UUID      `gorm:"type:uuid;not null" json:"learner_graph_id"`
	Diff            datatypes.JSON `gorm:"column:diff;type:jsonb;not null" json:"diff"`
	Summary         datatypes.JSON `gorm:"column:summary;type:jsonb;not null" json:"summary"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (GraphDiff) TableName() string { return "graph_diff" }
