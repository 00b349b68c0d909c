package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
)

type VizNode struct {
	ID              uuid.UUID   `json:"id"`
	Label           string      `json:"label"`
	Slug            string      `json:"slug"`
	Status          string      `json:"status"`
	Confidence      float64     `json:"confidence"`
	Source          string      `json:"source"`
	IsDiscovery     bool        `json:"is_discovery,omitempty"`
	AnnotationCount int         `json:"annotation_count"`
	Navigation      interface{} `json:"navigation,omitempty"`
}

type VizEdge struct {
	From       uuid.UUID `json:"from"`
	To         uuid.UUID `json:"to"`
	EdgeType   string    `json:"edge_type"`
	Confidence float64   `json:"confidence"`
	Origin     string    `json:"origin"`
}

type VizMetadata struct {
	BaselineGraphID uuid.UUID  `json:"baseline_graph_id"`
	LearnerGraphID  *uuid.UUID `json:"learner_graph_id,omitempty"`
	TotalNodes      int        `json:"total_nodes"`
	Mastered        int        `json:"mastered"`
	Doubt           int        `json:"doubt"`
	Visited         int        `json:"visited"`
	Unvisited       int        `json:"unvisited"`
}

// Visualization is the merged baseline/learner view rendered for the UI.
type Visualization struct {
	Nodes    []VizNode   `json:"nodes"`
	Edges    []VizEdge   `json:"edges"`
	Metadata VizMetadata `json:"metadata"`
}

// GetVisualization renders the merged view for (user, content), cache-first
// with a 5 minute TTL. A missing baseline yields an explicit empty shape
// with zero counts.
func (b *LearnerBuilder) GetVisualization(ctx context.Context, userID, contentID uuid.UUID) (*Visualization, error) {
	if viz, ok := b.facade.GetVisualization(ctx, userID, contentID); ok {
		return viz, nil
	}

	baseline, err := b.graphs.FindBaselineByContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("find baseline graph: %w", err)
	}
	if baseline == nil {
		return &Visualization{Nodes: []VizNode{}, Edges: []VizEdge{}}, nil
	}

	learner, err := b.graphs.FindLearner(ctx, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("find learner graph: %w", err)
	}

	baselineNodes, err := b.nodes.GetByGraph(ctx, baseline.ID)
	if err != nil {
		return nil, err
	}
	baselineEdges, err := b.edges.GetByGraph(ctx, baseline.ID)
	if err != nil {
		return nil, err
	}

	var learnerNodes []*domain.TopicNode
	var learnerEdges []*domain.TopicEdge
	annotations := map[uuid.UUID]int{}
	if learner != nil {
		if learnerNodes, err = b.nodes.GetByGraph(ctx, learner.ID); err != nil {
			return nil, err
		}
		if learnerEdges, err = b.edges.GetByGraph(ctx, learner.ID); err != nil {
			return nil, err
		}
		if annotations, err = b.evidence.CountByNodeForGraph(ctx, learner.ID); err != nil {
			return nil, err
		}
	}

	bySlug := map[string]*domain.TopicNode{}
	for _, n := range learnerNodes {
		if _, dup := bySlug[n.Slug]; !dup {
			bySlug[n.Slug] = n
		}
	}
	doubt := map[uuid.UUID]bool{}
	for _, e := range learnerEdges {
		if e.IsDoubtMarker() {
			doubt[e.ToNodeID] = true
		}
	}

	viz := &Visualization{Nodes: []VizNode{}, Edges: []VizEdge{}}
	viz.Metadata.BaselineGraphID = baseline.ID
	if learner != nil {
		id := learner.ID
		viz.Metadata.LearnerGraphID = &id
	}

	// learner node id -> rendered (baseline) node id, for edge remapping.
	remap := map[uuid.UUID]uuid.UUID{}
	matchedSlugs := map[string]bool{}

	for _, bn := range baselineNodes {
		status := StatusUnvisited
		count := 0
		if ln, ok := bySlug[bn.Slug]; ok {
			matchedSlugs[bn.Slug] = true
			remap[ln.ID] = bn.ID
			status = learnerNodeStatus(ln, doubt)
			count = annotations[ln.ID]
		}
		viz.Nodes = append(viz.Nodes, VizNode{
			ID:              bn.ID,
			Label:           bn.CanonicalLabel,
			Slug:            bn.Slug,
			Status:          status,
			Confidence:      bn.Confidence,
			Source:          bn.Source,
			AnnotationCount: count,
			Navigation:      jsonToMap(bn.Attributes)["navigation"],
		})
	}

	for _, ln := range learnerNodes {
		if matchedSlugs[ln.Slug] {
			continue
		}
		remap[ln.ID] = ln.ID
		viz.Nodes = append(viz.Nodes, VizNode{
			ID:              ln.ID,
			Label:           ln.CanonicalLabel,
			Slug:            ln.Slug,
			Status:          learnerNodeStatus(ln, doubt),
			Confidence:      ln.Confidence,
			Source:          ln.Source,
			IsDiscovery:     true,
			AnnotationCount: annotations[ln.ID],
			Navigation:      jsonToMap(ln.Attributes)["navigation"],
		})
	}

	edgeSeen := map[string]bool{}
	for _, e := range baselineEdges {
		sig := fmt.Sprintf("%s:%s:%s", e.FromNodeID, e.ToNodeID, e.EdgeType)
		if edgeSeen[sig] {
			continue
		}
		edgeSeen[sig] = true
		viz.Edges = append(viz.Edges, VizEdge{
			From:       e.FromNodeID,
			To:         e.ToNodeID,
			EdgeType:   e.EdgeType,
			Confidence: e.Confidence,
			Origin:     "baseline",
		})
	}
	for _, e := range learnerEdges {
		if e.IsDoubtMarker() {
			continue
		}
		from, okFrom := remap[e.FromNodeID]
		to, okTo := remap[e.ToNodeID]
		if !okFrom || !okTo {
			continue
		}
		sig := fmt.Sprintf("%s:%s:%s", from, to, e.EdgeType)
		if edgeSeen[sig] {
			continue
		}
		edgeSeen[sig] = true
		viz.Edges = append(viz.Edges, VizEdge{
			From:       from,
			To:         to,
			EdgeType:   e.EdgeType,
			Confidence: e.Confidence,
			Origin:     "learner",
		})
	}

	for _, n := range viz.Nodes {
		viz.Metadata.TotalNodes++
		switch n.Status {
		case StatusMastered:
			viz.Metadata.Mastered++
		case StatusDoubt:
			viz.Metadata.Doubt++
		case StatusVisited:
			viz.Metadata.Visited++
		case StatusUnvisited:
			viz.Metadata.Unvisited++
		}
	}

	b.facade.SetVisualization(ctx, userID, contentID, viz)
	return viz, nil
}

func learnerNodeStatus(n *domain.TopicNode, doubt map[uuid.UUID]bool) string {
	switch {
	case doubt[n.ID]:
		return StatusDoubt
	case n.Confidence > masteredConfidenceFloor:
		return StatusMastered
	default:
		return StatusVisited
	}
}
