package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/realtime/bus"
)

// signalRecorder captures published signals for assertions.
type signalRecorder struct {
	mu      sync.Mutex
	signals []bus.Signal
}

func (r *signalRecorder) attach(b bus.Bus, name string) {
	b.Subscribe(name, func(ctx context.Context, sig bus.Signal) {
		r.mu.Lock()
		r.signals = append(r.signals, sig)
		r.mu.Unlock()
	})
}

func (r *signalRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals)
}

func highlightEvent(userID, contentID uuid.UUID, kind, text string) HighlightEvent {
	return HighlightEvent{
		EventMeta: EventMeta{UserID: userID, ContentID: contentID},
		Kind:      kind,
		Text:      text,
	}
}

func TestHandleMainIdeaHighlightCreatesNode(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	rec := &signalRecorder{}
	rec.attach(env.signals, bus.SignalLearnerGraphUpdated)

	if err := env.learner.HandleEvent(ctx, highlightEvent(userID, contentID, HighlightMainIdea, "Photosynthesis")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	if graph == nil {
		t.Fatal("learner graph not created")
	}
	node, _ := env.nodes.GetByGraphAndSlug(ctx, graph.ID, "photosynthesis")
	if node == nil {
		t.Fatal("node not created")
	}
	if node.Confidence != mainIdeaConfidence {
		t.Fatalf("confidence = %v, want %v", node.Confidence, mainIdeaConfidence)
	}
	if node.Source != domain.SourceUser {
		t.Fatalf("source = %q, want USER", node.Source)
	}
	if node.LastReinforcedAt == nil {
		t.Fatal("reinforcement stamp missing")
	}
	if rec.count() != 1 {
		t.Fatalf("signals published = %d, want 1", rec.count())
	}
}

func TestHandleMainIdeaHighlightReinforcesExisting(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	for i := 0; i < 2; i++ {
		if err := env.learner.HandleEvent(ctx, highlightEvent(userID, contentID, HighlightMainIdea, "Photosynthesis")); err != nil {
			t.Fatalf("HandleEvent #%d: %v", i+1, err)
		}
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	nodes, _ := env.nodes.GetByGraph(ctx, graph.ID)
	if len(nodes) != 1 {
		t.Fatalf("nodes = %d, want 1 (upsert, not duplicate)", len(nodes))
	}
}

func TestHandleDoubtHighlight(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	if err := env.learner.HandleEvent(ctx, highlightEvent(userID, contentID, HighlightDoubt, "Krebs Cycle")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	node, _ := env.nodes.GetByGraphAndSlug(ctx, graph.ID, "krebs-cycle")
	if node == nil {
		t.Fatal("doubt node not created")
	}
	if node.Confidence != doubtMarkerConfidence {
		t.Fatalf("confidence = %v, want %v", node.Confidence, doubtMarkerConfidence)
	}

	edges, _ := env.edges.GetByGraph(ctx, graph.ID)
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1 doubt marker", len(edges))
	}
	marker := edges[0]
	if !marker.IsDoubtMarker() {
		t.Fatalf("edge is not a doubt marker: type=%q from=%s to=%s", marker.EdgeType, marker.FromNodeID, marker.ToNodeID)
	}
	if marker.FromNodeID != node.ID || marker.ToNodeID != node.ID {
		t.Fatal("doubt marker must self-loop on the doubted node")
	}
	if gap := jsonToMap(marker.Rationale)["gap"]; gap != true {
		t.Fatalf("rationale gap = %v, want true", gap)
	}

	counts, _ := env.evidence.CountByEdgeIDs(ctx, []uuid.UUID{marker.ID})
	if counts[marker.ID] != 1 {
		t.Fatalf("evidence on marker = %d, want 1", counts[marker.ID])
	}
}

func TestHandleEvidenceHighlightAttachesToRecentEdge(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	// A mission first, so the graph has a recent edge.
	mission := MissionCompletedEvent{
		EventMeta:   EventMeta{UserID: userID, ContentID: contentID},
		MissionType: MissionBridging,
		TopicA:      "Force",
		TopicB:      "Motion",
	}
	if err := env.learner.HandleEvent(ctx, mission); err != nil {
		t.Fatalf("mission event: %v", err)
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	recent, _ := env.edges.GetMostRecentByGraph(ctx, graph.ID)
	before, _ := env.evidence.CountByEdgeIDs(ctx, []uuid.UUID{recent.ID})

	if err := env.learner.HandleEvent(ctx, highlightEvent(userID, contentID, HighlightEvidence, "forces cause acceleration")); err != nil {
		t.Fatalf("evidence event: %v", err)
	}

	after, _ := env.evidence.CountByEdgeIDs(ctx, []uuid.UUID{recent.ID})
	if after[recent.ID] != before[recent.ID]+1 {
		t.Fatalf("evidence count = %d, want %d", after[recent.ID], before[recent.ID]+1)
	}

	// No new node from the evidence text.
	if n, _ := env.nodes.GetByGraphAndSlug(ctx, graph.ID, Slugify("forces cause acceleration")); n != nil {
		t.Fatal("evidence with a recent edge must not create a node")
	}
}

func TestHandleEvidenceHighlightWithoutRecentEdge(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	if err := env.learner.HandleEvent(ctx, highlightEvent(userID, contentID, HighlightEvidence, "chloroplasts contain chlorophyll")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	node, _ := env.nodes.GetByGraphAndSlug(ctx, graph.ID, Slugify("chloroplasts contain chlorophyll"))
	if node == nil {
		t.Fatal("expected standalone node fallback")
	}
	edges, _ := env.edges.GetByGraph(ctx, graph.ID)
	if len(edges) != 0 {
		t.Fatalf("edges = %d, want 0 (orphan node, no edge)", len(edges))
	}
}

func TestHandleCornellSynthesisChainsTopics(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	ev := CornellSynthesisEvent{
		EventMeta: EventMeta{UserID: userID, ContentID: contentID},
		Text:      "Light reactions capture energy. Calvin cycle fixes carbon. Glucose stores the result.",
	}
	if err := env.learner.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	nodes, _ := env.nodes.GetByGraph(ctx, graph.ID)
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}
	edges, _ := env.edges.GetByGraph(ctx, graph.ID)
	if len(edges) != 2 {
		t.Fatalf("edges = %d, want 2 chain links", len(edges))
	}
	for _, e := range edges {
		if e.EdgeType != domain.EdgeLinksTo {
			t.Fatalf("edge type = %q, want LINKS_TO", e.EdgeType)
		}
		if e.Confidence != cornellEdgeConfidence {
			t.Fatalf("edge confidence = %v, want %v", e.Confidence, cornellEdgeConfidence)
		}
		counts, _ := env.evidence.CountByEdgeIDs(ctx, []uuid.UUID{e.ID})
		if counts[e.ID] != 1 {
			t.Fatalf("evidence per chain edge = %d, want 1", counts[e.ID])
		}
	}
}

func TestHandleMissionCompletedEdgeTypes(t *testing.T) {
	tests := []struct {
		missionType string
		wantEdge    string
	}{
		{MissionHugging, domain.EdgeAppliesIn},
		{MissionBridging, domain.EdgeExplains},
		{MissionAnalogy, domain.EdgeAnalogy},
		{MissionIceberg, domain.EdgeCauses},
		{MissionConnectionCircle, domain.EdgeCauses},
	}
	for _, tt := range tests {
		t.Run(tt.missionType, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()
			userID, contentID := uuid.New(), uuid.New()

			ev := MissionCompletedEvent{
				EventMeta:   EventMeta{UserID: userID, ContentID: contentID},
				MissionType: tt.missionType,
				TopicA:      "Topic A",
				TopicB:      "Topic B",
				Mapping:     "structural",
			}
			if err := env.learner.HandleEvent(ctx, ev); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}

			graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
			edges, _ := env.edges.GetByGraph(ctx, graph.ID)
			if len(edges) != 1 {
				t.Fatalf("edges = %d, want 1", len(edges))
			}
			e := edges[0]
			if e.EdgeType != tt.wantEdge {
				t.Fatalf("edge type = %q, want %q", e.EdgeType, tt.wantEdge)
			}
			if e.Confidence != missionConfidence {
				t.Fatalf("confidence = %v, want %v", e.Confidence, missionConfidence)
			}
			rationale := jsonToMap(e.Rationale)
			if rationale["missionType"] != tt.missionType {
				t.Fatalf("rationale missionType = %v", rationale["missionType"])
			}
		})
	}
}

func TestHandleMissionUnknownTypeDropped(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	rec := &signalRecorder{}
	rec.attach(env.signals, bus.SignalLearnerGraphUpdated)

	ev := MissionCompletedEvent{
		EventMeta:   EventMeta{UserID: userID, ContentID: contentID},
		MissionType: "TELEPORTATION",
		TopicA:      "A",
		TopicB:      "B",
	}
	if err := env.learner.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("unknown mission type must not fail: %v", err)
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	nodes, _ := env.nodes.GetByGraph(ctx, graph.ID)
	if len(nodes) != 0 {
		t.Fatalf("nodes = %d, want 0 for dropped mission", len(nodes))
	}
	if rec.count() != 0 {
		t.Fatalf("signals = %d, want 0 for non-mutating event", rec.count())
	}
}

func TestHandleUnknownEventNoop(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	rec := &signalRecorder{}
	rec.attach(env.signals, bus.SignalLearnerGraphUpdated)

	ev := UnknownEvent{EventMeta: EventMeta{UserID: userID, ContentID: contentID}, EventType: "PAGE_TURNED"}
	if err := env.learner.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("unknown event must not fail: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("signals = %d, want 0", rec.count())
	}
}

func TestHandleEventInvalidatesVisualization(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	env.facade.SetVisualization(ctx, userID, contentID, &Visualization{Nodes: []VizNode{}, Edges: []VizEdge{}})
	if _, ok := env.facade.GetVisualization(ctx, userID, contentID); !ok {
		t.Fatal("seeded visualization missing")
	}

	if err := env.learner.HandleEvent(ctx, highlightEvent(userID, contentID, HighlightMainIdea, "Osmosis")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if _, ok := env.facade.GetVisualization(ctx, userID, contentID); ok {
		t.Fatal("visualization must be invalidated after a mutation")
	}
}

func TestHandleEventInvalidatesVisualizationOnPartialFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID, contentID := uuid.New(), uuid.New()

	env.facade.SetVisualization(ctx, userID, contentID, &Visualization{Nodes: []VizNode{}, Edges: []VizEdge{}})

	// Both mission nodes land before the edge write fails.
	env.edges.createErr = errors.New("edge store down")
	ev := MissionCompletedEvent{
		EventMeta:   EventMeta{UserID: userID, ContentID: contentID},
		MissionType: MissionBridging,
		TopicA:      "Force",
		TopicB:      "Motion",
	}
	if err := env.learner.HandleEvent(ctx, ev); err == nil {
		t.Fatal("expected edge failure to surface")
	}

	graph, _ := env.graphs.FindLearner(ctx, userID, contentID)
	nodes, _ := env.nodes.GetByGraph(ctx, graph.ID)
	if len(nodes) != 2 {
		t.Fatalf("nodes = %d, want the partial mutation", len(nodes))
	}
	if _, ok := env.facade.GetVisualization(ctx, userID, contentID); ok {
		t.Fatal("visualization must be invalidated after a partial mutation")
	}
}
