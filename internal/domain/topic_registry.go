package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TopicRegistryEntry is the global, scope-qualified canonical topic list.
// Entries are created as CANDIDATE (confidence 0.3) when linking finds no
// match; promotion to ACTIVE happens through a curation process outside this
// service.
type TopicRegistryEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug           string         `gorm:"column:slug;not null;index:idx_topic_registry_scope_slug,unique,priority:2" json:"slug"`
	CanonicalLabel string         `gorm:"column:canonical_label;not null" json:"canonical_label"`
	Aliases        datatypes.JSON `gorm:"column:aliases;type:jsonb" json:"aliases,omitempty"` // []string, normalized
	ScopeType      string         `gorm:"column:scope_type;not null;default:'GLOBAL';index:idx_topic_registry_scope_slug,unique,priority:1" json:"scope_type"`
	Status         string         `gorm:"column:status;not null;default:'CANDIDATE';index" json:"status"`
	Confidence     float64        `gorm:"column:confidence;not null;default:0.3" json:"confidence"`
	Stats          datatypes.JSON `gorm:"column:stats;type:jsonb" json:"stats,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TopicRegistryEntry) TableName() string { return "topic_registry" }
