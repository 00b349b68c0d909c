package bus

import (
	"context"

	"github.com/google/uuid"
)

// Signal names carried on the bus.
const (
	SignalLearnerGraphUpdated        = "learner-graph-updated"
	SignalContentExtractionCompleted = "content-extraction-completed"
)

// Signal is one bus message. Delivery is at-least-once; handlers must
// tolerate duplicates.
type Signal struct {
	Name      string    `json:"name"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	ContentID uuid.UUID `json:"content_id,omitempty"`
}

type Handler func(ctx context.Context, sig Signal)

// Bus is the pub/sub collaborator between the learner builder, the activity
// scheduler, and the content-extraction pipeline.
type Bus interface {
	Publish(ctx context.Context, sig Signal) error
	Subscribe(name string, h Handler)
}
