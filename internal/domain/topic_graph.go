package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopicGraph is one knowledge graph. At most one BASELINE graph exists per
// (content_id, scope_type, scope_id) and at most one LEARNER graph per
// (user_id, content_id); graphs are created lazily on first write and never
// deleted in normal operation.
type TopicGraph struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Kind           string     `gorm:"column:kind;not null;index:idx_topic_graph_kind" json:"kind"`
	ScopeType      string     `gorm:"column:scope_type;not null;default:'GLOBAL'" json:"scope_type"`
	ScopeID        *uuid.UUID `gorm:"type:uuid;column:scope_id" json:"scope_id,omitempty"`
	UserID         *uuid.UUID `gorm:"type:uuid;column:user_id;index:idx_topic_graph_user_content" json:"user_id,omitempty"`
	ContentID      *uuid.UUID `gorm:"type:uuid;column:content_id;index:idx_topic_graph_user_content" json:"content_id,omitempty"`
	LastComparedAt *time.Time `gorm:"column:last_compared_at" json:"last_compared_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TopicGraph) TableName() string { return "topic_graph" }
