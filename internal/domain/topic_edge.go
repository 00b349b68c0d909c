package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TopicEdge connects two nodes of the same graph. A self-loop PREREQUISITE
// edge is a reserved sentinel: a doubt marker on the node, not a real
// relation, and is excluded from rendered edge lists.
type TopicEdge struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GraphID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"graph_id"`
	FromNodeID uuid.UUID      `gorm:"type:uuid;not null;index" json:"from_node_id"`
	ToNodeID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"to_node_id"`
	EdgeType   string         `gorm:"column:edge_type;not null" json:"edge_type"`
	Confidence float64        `gorm:"column:confidence;not null;default:0.5" json:"confidence"`
	Source     string         `gorm:"column:source;not null;default:'DETERMINISTIC'" json:"source"`
	Rationale  datatypes.JSON `gorm:"column:rationale;type:jsonb" json:"rationale,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TopicEdge) TableName() string { return "topic_edge" }

// IsDoubtMarker reports whether the edge is the self-loop PREREQUISITE
// sentinel.
func (e *TopicEdge) IsDoubtMarker() bool {
	return e.EdgeType == EdgePrerequisite && e.FromNodeID == e.ToNodeID
}
