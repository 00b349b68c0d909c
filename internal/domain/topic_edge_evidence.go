package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxEvidenceExcerptLen bounds the stored excerpt; longer text is truncated
// on write.
const MaxEvidenceExcerptLen = 200

// TruncateChars caps s at max characters without splitting a rune.
func TruncateChars(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// TopicEdgeEvidence is append-only provenance for an edge. Rows are never
// mutated after creation; more proof for the same edge accumulates as new
// rows.
type TopicEdgeEvidence struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EdgeID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"edge_id"`
	EvidenceType      string     `gorm:"column:evidence_type;not null" json:"evidence_type"`
	SourceHighlightID *uuid.UUID `gorm:"type:uuid;column:source_highlight_id" json:"source_highlight_id,omitempty"`
	SourceNoteID      *uuid.UUID `gorm:"type:uuid;column:source_note_id" json:"source_note_id,omitempty"`
	PageNumber        *int       `gorm:"column:page_number" json:"page_number,omitempty"`
	Timestamp         *time.Time `gorm:"column:timestamp" json:"timestamp,omitempty"`
	Excerpt           string     `gorm:"column:excerpt;type:text" json:"excerpt,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (TopicEdgeEvidence) TableName() string { return "topic_edge_evidence" }
