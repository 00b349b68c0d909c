package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/realtime/bus"
)

const (
	mainIdeaConfidence    = 0.5
	doubtMarkerConfidence = 0.3
	cornellEdgeConfidence = 0.6
	missionConfidence     = 0.7

	cornellMinFragmentLen = 10
	cornellMaxTopics      = 3
	cornellFallbackLen    = 50
)

// Node statuses in the merged visualization.
const (
	StatusUnvisited = "UNVISITED"
	StatusVisited   = "VISITED"
	StatusDoubt     = "DOUBT"
	StatusMastered  = "MASTERED"
)

const masteredConfidenceFloor = 0.8

// LearnerBuilder incrementally updates the LEARNER graph for a
// (user, content) pair from behavioral events.
type LearnerBuilder struct {
	graphs   repos.TopicGraphRepo
	nodes    repos.TopicNodeRepo
	edges    repos.TopicEdgeRepo
	evidence repos.TopicEdgeEvidenceRepo
	facade   *CacheFacade
	signals  bus.Bus
	log      *logger.Logger
}

func NewLearnerBuilder(
	graphs repos.TopicGraphRepo,
	nodes repos.TopicNodeRepo,
	edges repos.TopicEdgeRepo,
	evidence repos.TopicEdgeEvidenceRepo,
	facade *CacheFacade,
	signals bus.Bus,
	baseLog *logger.Logger,
) *LearnerBuilder {
	return &LearnerBuilder{
		graphs:   graphs,
		nodes:    nodes,
		edges:    edges,
		evidence: evidence,
		facade:   facade,
		signals:  signals,
		log:      baseLog.With("service", "LearnerBuilder"),
	}
}

// HandleEvent applies one behavioral event to the learner graph. Unknown
// event or mission kinds are logged and dropped; they never fail the
// producer. After any mutation the cached visualization is invalidated and
// a learner-graph-updated signal is published.
func (b *LearnerBuilder) HandleEvent(ctx context.Context, ev LearnerEvent) error {
	meta := ev.Meta()
	graph, err := b.findOrCreateLearnerGraph(ctx, meta.UserID, meta.ContentID)
	if err != nil {
		return fmt.Errorf("find or create learner graph: %w", err)
	}

	var mutated bool
	switch e := ev.(type) {
	case HighlightEvent:
		mutated, err = b.applyHighlight(ctx, graph, e)
	case CornellSynthesisEvent:
		mutated, err = b.applyCornellSynthesis(ctx, graph, e)
	case MissionCompletedEvent:
		mutated, err = b.applyMissionCompleted(ctx, graph, e)
	case UnknownEvent:
		b.log.Warn("unknown event type dropped", "event_type", e.EventType, "user_id", meta.UserID)
		return nil
	default:
		b.log.Warn("unhandled event variant dropped", "user_id", meta.UserID)
		return nil
	}
	if err != nil {
		// A failed apply may still have landed a partial mutation.
		if mutated {
			b.facade.InvalidateVisualization(ctx, meta.UserID, meta.ContentID)
		}
		return err
	}
	if !mutated {
		return nil
	}

	b.facade.InvalidateVisualization(ctx, meta.UserID, meta.ContentID)
	sig := bus.Signal{Name: bus.SignalLearnerGraphUpdated, UserID: meta.UserID, ContentID: meta.ContentID}
	if err := b.signals.Publish(ctx, sig); err != nil {
		// Best-effort: the graph mutation already landed.
		b.log.Warn("learner-graph-updated publish failed", "error", err, "user_id", meta.UserID)
	}
	return nil
}

func (b *LearnerBuilder) applyHighlight(ctx context.Context, graph *domain.TopicGraph, e HighlightEvent) (bool, error) {
	switch e.Kind {
	case HighlightMainIdea:
		_, err := b.upsertLearnerNode(ctx, graph.ID, e.Text, mainIdeaConfidence)
		if err != nil {
			return false, err
		}
		return true, nil

	case HighlightEvidence:
		recent, err := b.edges.GetMostRecentByGraph(ctx, graph.ID)
		if err != nil {
			return false, err
		}
		if recent != nil {
			if err := b.attachHighlightEvidence(ctx, recent.ID, e); err != nil {
				return false, err
			}
			return true, nil
		}
		// No edge to attach to: fall back to a standalone node with no
		// edge. Known weak behavior, kept deliberately.
		_, err = b.upsertLearnerNode(ctx, graph.ID, e.Text, mainIdeaConfidence)
		if err != nil {
			return false, err
		}
		return true, nil

	case HighlightDoubt:
		node, err := b.upsertLearnerNode(ctx, graph.ID, e.Text, doubtMarkerConfidence)
		if err != nil {
			return false, err
		}
		if node == nil {
			return false, nil
		}
		edge, err := b.edges.Create(ctx, &domain.TopicEdge{
			GraphID:    graph.ID,
			FromNodeID: node.ID,
			ToNodeID:   node.ID,
			EdgeType:   domain.EdgePrerequisite,
			Confidence: doubtMarkerConfidence,
			Source:     domain.SourceUser,
			Rationale:  toJSON(map[string]interface{}{"gap": true}),
		})
		if err != nil {
			return false, fmt.Errorf("create doubt marker: %w", err)
		}
		if err := b.attachHighlightEvidence(ctx, edge.ID, e); err != nil {
			return false, err
		}
		return true, nil

	default:
		b.log.Warn("unknown highlight kind dropped", "kind", e.Kind, "user_id", e.UserID)
		return false, nil
	}
}

func (b *LearnerBuilder) attachHighlightEvidence(ctx context.Context, edgeID uuid.UUID, e HighlightEvent) error {
	_, err := b.evidence.Create(ctx, &domain.TopicEdgeEvidence{
		EdgeID:            edgeID,
		EvidenceType:      domain.EvidenceHighlight,
		SourceHighlightID: e.HighlightID,
		PageNumber:        e.Page,
		Excerpt:           e.Text,
	})
	if err != nil {
		return fmt.Errorf("attach highlight evidence: %w", err)
	}
	return nil
}

func (b *LearnerBuilder) applyCornellSynthesis(ctx context.Context, graph *domain.TopicGraph, e CornellSynthesisEvent) (bool, error) {
	topics := ExtractTopics(e.Text)
	if len(topics) == 0 {
		return false, nil
	}

	var prev *domain.TopicNode
	mutated := false
	for _, topic := range topics {
		node, err := b.upsertLearnerNode(ctx, graph.ID, topic, mainIdeaConfidence)
		if err != nil {
			return mutated, err
		}
		if node == nil {
			continue
		}
		mutated = true

		if prev != nil && prev.ID != node.ID {
			edge, err := b.edges.Create(ctx, &domain.TopicEdge{
				GraphID:    graph.ID,
				FromNodeID: prev.ID,
				ToNodeID:   node.ID,
				EdgeType:   domain.EdgeLinksTo,
				Confidence: cornellEdgeConfidence,
				Source:     domain.SourceUser,
				Rationale:  toJSON(map[string]interface{}{"origin": "cornell_synthesis"}),
			})
			if err != nil {
				return mutated, fmt.Errorf("create LINKS_TO edge: %w", err)
			}
			if _, err := b.evidence.Create(ctx, &domain.TopicEdgeEvidence{
				EdgeID:       edge.ID,
				EvidenceType: domain.EvidenceCornellSummary,
				SourceNoteID: e.NoteID,
				Excerpt:      e.Text,
			}); err != nil {
				return mutated, fmt.Errorf("attach cornell evidence: %w", err)
			}
		}
		prev = node
	}
	return mutated, nil
}

// missionEdgeType maps a mission type to its edge semantics.
func missionEdgeType(missionType string) (string, bool) {
	switch missionType {
	case MissionHugging:
		return domain.EdgeAppliesIn, true
	case MissionBridging:
		return domain.EdgeExplains, true
	case MissionAnalogy:
		return domain.EdgeAnalogy, true
	case MissionIceberg, MissionConnectionCircle:
		return domain.EdgeCauses, true
	default:
		return "", false
	}
}

func (b *LearnerBuilder) applyMissionCompleted(ctx context.Context, graph *domain.TopicGraph, e MissionCompletedEvent) (bool, error) {
	edgeType, ok := missionEdgeType(e.MissionType)
	if !ok {
		b.log.Warn("unknown mission type dropped", "mission_type", e.MissionType, "user_id", e.UserID)
		return false, nil
	}
	if Slugify(e.TopicA) == "" || Slugify(e.TopicB) == "" {
		b.log.Warn("mission event missing topics dropped", "mission_type", e.MissionType, "user_id", e.UserID)
		return false, nil
	}

	from, err := b.upsertLearnerNode(ctx, graph.ID, e.TopicA, missionConfidence)
	if err != nil {
		return false, err
	}
	to, err := b.upsertLearnerNode(ctx, graph.ID, e.TopicB, missionConfidence)
	if err != nil {
		return true, err
	}

	rationale := map[string]interface{}{"missionType": e.MissionType}
	if e.Mapping != "" {
		rationale["mapping"] = e.Mapping
	}
	if e.Sign != "" {
		rationale["sign"] = e.Sign
	}

	edge, err := b.edges.Create(ctx, &domain.TopicEdge{
		GraphID:    graph.ID,
		FromNodeID: from.ID,
		ToNodeID:   to.ID,
		EdgeType:   edgeType,
		Confidence: missionConfidence,
		Source:     domain.SourceUser,
		Rationale:  toJSON(rationale),
	})
	if err != nil {
		return true, fmt.Errorf("create mission edge: %w", err)
	}

	now := time.Now().UTC()
	if _, err := b.evidence.Create(ctx, &domain.TopicEdgeEvidence{
		EdgeID:       edge.ID,
		EvidenceType: domain.EvidenceTimestamp,
		SourceNoteID: e.AttemptID,
		Timestamp:    &now,
		Excerpt:      fmt.Sprintf("transfer attempt (%s)", e.MissionType),
	}); err != nil {
		return true, fmt.Errorf("attach mission evidence: %w", err)
	}
	return true, nil
}

func (b *LearnerBuilder) findOrCreateLearnerGraph(ctx context.Context, userID, contentID uuid.UUID) (*domain.TopicGraph, error) {
	graph, err := b.graphs.FindLearner(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	if graph != nil {
		return graph, nil
	}
	uid, cid := userID, contentID
	return b.graphs.Create(ctx, &domain.TopicGraph{
		Kind:      domain.GraphKindLearner,
		ScopeType: domain.ScopeUser,
		ScopeID:   &uid,
		UserID:    &uid,
		ContentID: &cid,
	})
}

// upsertLearnerNode finds a node by slug or creates it with source USER.
// An existing node gets its reinforcement stamp refreshed and keeps the
// higher confidence.
func (b *LearnerBuilder) upsertLearnerNode(ctx context.Context, graphID uuid.UUID, label string, confidence float64) (*domain.TopicNode, error) {
	slug := Slugify(label)
	if slug == "" {
		return nil, nil
	}
	now := time.Now().UTC()

	existing, err := b.nodes.GetByGraphAndSlug(ctx, graphID, slug)
	if err != nil {
		return nil, fmt.Errorf("find learner node %q: %w", slug, err)
	}
	if existing != nil {
		existing.LastReinforcedAt = &now
		if confidence > existing.Confidence {
			existing.Confidence = confidence
		}
		if err := b.nodes.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("reinforce learner node %q: %w", slug, err)
		}
		return existing, nil
	}

	created, err := b.nodes.Create(ctx, &domain.TopicNode{
		GraphID:          graphID,
		CanonicalLabel:   label,
		Slug:             slug,
		Confidence:       confidence,
		Source:           domain.SourceUser,
		LastReinforcedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("create learner node %q: %w", slug, err)
	}
	return created, nil
}
