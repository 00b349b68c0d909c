package services

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/apierr"
)

// Highlight kinds.
const (
	HighlightMainIdea = "MAIN_IDEA"
	HighlightEvidence = "EVIDENCE"
	HighlightDoubt    = "DOUBT"
)

// Mission types.
const (
	MissionHugging          = "HUGGING"
	MissionBridging         = "BRIDGING"
	MissionAnalogy          = "ANALOGY"
	MissionIceberg          = "ICEBERG"
	MissionConnectionCircle = "CONNECTION_CIRCLE"
)

// EventMeta is carried by every learner event.
type EventMeta struct {
	UserID     uuid.UUID
	ContentID  uuid.UUID
	SessionID  *uuid.UUID
	SectionRef string
}

// LearnerEvent is the tagged union of behavioral events; one variant per
// event kind, each with its own typed payload.
type LearnerEvent interface {
	Meta() EventMeta
	learnerEvent()
}

type HighlightEvent struct {
	EventMeta
	Kind        string
	Text        string
	HighlightID *uuid.UUID
	Page        *int
}

type CornellSynthesisEvent struct {
	EventMeta
	Text   string
	NoteID *uuid.UUID
}

type MissionCompletedEvent struct {
	EventMeta
	MissionType string
	TopicA      string
	TopicB      string
	Mapping     string
	Sign        string
	AttemptID   *uuid.UUID
}

// UnknownEvent preserves an unrecognized eventType so the builder can log
// and no-op instead of failing the producer.
type UnknownEvent struct {
	EventMeta
	EventType string
}

func (e HighlightEvent) Meta() EventMeta        { return e.EventMeta }
func (e CornellSynthesisEvent) Meta() EventMeta { return e.EventMeta }
func (e MissionCompletedEvent) Meta() EventMeta { return e.EventMeta }
func (e UnknownEvent) Meta() EventMeta          { return e.EventMeta }

func (HighlightEvent) learnerEvent()        {}
func (CornellSynthesisEvent) learnerEvent() {}
func (MissionCompletedEvent) learnerEvent() {}
func (UnknownEvent) learnerEvent()          {}

// wireEvent is the ingress shape; unknown fields are ignored by the decoder.
type wireEvent struct {
	UserID     uuid.UUID       `json:"userId"`
	ContentID  uuid.UUID       `json:"contentId"`
	SessionID  *uuid.UUID      `json:"sessionId,omitempty"`
	EventType  string          `json:"eventType"`
	EventData  json.RawMessage `json:"eventData"`
	SectionRef string          `json:"sectionRef,omitempty"`
}

type wireHighlightData struct {
	Kind        string     `json:"kind"`
	Text        string     `json:"text"`
	HighlightID *uuid.UUID `json:"highlightId,omitempty"`
	Page        *int       `json:"page,omitempty"`
}

type wireCornellData struct {
	Text   string     `json:"text"`
	NoteID *uuid.UUID `json:"noteId,omitempty"`
}

type wireMissionData struct {
	MissionType string     `json:"missionType"`
	TopicA      string     `json:"topicA"`
	TopicB      string     `json:"topicB,omitempty"`
	Mapping     string     `json:"mapping,omitempty"`
	Sign        string     `json:"sign,omitempty"`
	AttemptID   *uuid.UUID `json:"attemptId,omitempty"`
}

// ParseEvent validates and decodes a wire payload into the event union.
// Missing required fields yield a Validation error; an unrecognized
// eventType yields UnknownEvent so downstream can no-op.
func ParseEvent(raw []byte) (LearnerEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, apierr.Validation("malformed_event", err)
	}
	if w.UserID == uuid.Nil {
		return nil, apierr.Validation("missing_user_id", errors.New("userId is required"))
	}
	if w.ContentID == uuid.Nil {
		return nil, apierr.Validation("missing_content_id", errors.New("contentId is required"))
	}
	if strings.TrimSpace(w.EventType) == "" {
		return nil, apierr.Validation("missing_event_type", errors.New("eventType is required"))
	}

	meta := EventMeta{
		UserID:     w.UserID,
		ContentID:  w.ContentID,
		SessionID:  w.SessionID,
		SectionRef: w.SectionRef,
	}

	switch strings.ToUpper(strings.TrimSpace(w.EventType)) {
	case "HIGHLIGHT":
		var d wireHighlightData
		if err := json.Unmarshal(w.EventData, &d); err != nil {
			return nil, apierr.Validation("malformed_highlight_data", err)
		}
		if strings.TrimSpace(d.Text) == "" {
			return nil, apierr.Validation("missing_highlight_text", errors.New("highlight text is required"))
		}
		return HighlightEvent{
			EventMeta:   meta,
			Kind:        strings.ToUpper(strings.TrimSpace(d.Kind)),
			Text:        d.Text,
			HighlightID: d.HighlightID,
			Page:        d.Page,
		}, nil
	case "CORNELL_SYNTHESIS":
		var d wireCornellData
		if err := json.Unmarshal(w.EventData, &d); err != nil {
			return nil, apierr.Validation("malformed_cornell_data", err)
		}
		if strings.TrimSpace(d.Text) == "" {
			return nil, apierr.Validation("missing_cornell_text", errors.New("synthesis text is required"))
		}
		return CornellSynthesisEvent{EventMeta: meta, Text: d.Text, NoteID: d.NoteID}, nil
	case "MISSION_COMPLETED":
		var d wireMissionData
		if err := json.Unmarshal(w.EventData, &d); err != nil {
			return nil, apierr.Validation("malformed_mission_data", err)
		}
		if strings.TrimSpace(d.TopicA) == "" {
			return nil, apierr.Validation("missing_mission_topic", errors.New("topicA is required"))
		}
		return MissionCompletedEvent{
			EventMeta:   meta,
			MissionType: strings.ToUpper(strings.TrimSpace(d.MissionType)),
			TopicA:      d.TopicA,
			TopicB:      d.TopicB,
			Mapping:     d.Mapping,
			Sign:        d.Sign,
			AttemptID:   d.AttemptID,
		}, nil
	default:
		return UnknownEvent{EventMeta: meta, EventType: w.EventType}, nil
	}
}
