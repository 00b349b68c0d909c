package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TopicNode belongs to exactly one TopicGraph. Slug is the normalized match
// key, unique within a graph. Attributes may carry a registry back-reference
// ({registryId, registryLabel, registryStatus}) and navigation metadata.
type TopicNode struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GraphID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_topic_node_graph_slug,unique,priority:1" json:"graph_id"`
	CanonicalLabel   string         `gorm:"column:canonical_label;not null" json:"canonical_label"`
	Slug             string         `gorm:"column:slug;not null;index:idx_topic_node_graph_slug,unique,priority:2" json:"slug"`
	Aliases          datatypes.JSON `gorm:"column:aliases;type:jsonb" json:"aliases,omitempty"` // []string, normalized
	Confidence       float64        `gorm:"column:confidence;not null;default:0.5" json:"confidence"`
	Source           string         `gorm:"column:source;not null;default:'DETERMINISTIC'" json:"source"`
	LastReinforcedAt *time.Time     `gorm:"column:last_reinforced_at" json:"last_reinforced_at,omitempty"`
	Attributes       datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TopicNode) TableName() string { return "topic_node" }
