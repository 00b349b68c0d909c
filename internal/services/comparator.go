package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/apierr"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

// Classifications of diffed edges.
const (
	ClassDiscoveryPlausible = "DISCOVERY_PLAUSIBLE"
	ClassErrorLikely        = "ERROR_LIKELY"
	ClassUndecided          = "UNDECIDED"
	ClassGapCritical        = "GAP_CRITICAL"
	ClassGapMinor           = "GAP_MINOR"
)

const (
	discoveryMinEvidence   = 2
	discoveryMinConfidence = 0.6
	errorMaxConfidence     = 0.5
	gapCriticalConfidence  = 0.8
	summaryTopN            = 10
)

type DiffNode struct {
	NodeID     uuid.UUID `json:"node_id"`
	Slug       string    `json:"slug"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}

type DiffEdge struct {
	EdgeID         uuid.UUID `json:"edge_id"`
	FromSlug       string    `json:"from_slug"`
	ToSlug         string    `json:"to_slug"`
	EdgeType       string    `json:"edge_type"`
	Confidence     float64   `json:"confidence"`
	EvidenceCount  int       `json:"evidence_count"`
	Classification string    `json:"classification"`
}

type NodeDiff struct {
	Matched          int        `json:"matched"`
	MissingInLearner int        `json:"missing_in_learner"`
	ExtraInLearner   int        `json:"extra_in_learner"`
	Missing          []DiffNode `json:"missing"`
	Extra            []DiffNode `json:"extra"`
}

type EdgeDiff struct {
	Matched      int        `json:"matched"`
	BaselineOnly []DiffEdge `json:"baseline_only"`
	LearnerOnly  []DiffEdge `json:"learner_only"`
}

type GraphDiffPayload struct {
	Nodes NodeDiff `json:"nodes"`
	Edges EdgeDiff `json:"edges"`
}

// HasChanges reports whether the diff found any divergence between the two
// graphs.
func (p *GraphDiffPayload) HasChanges() bool {
	return p.Nodes.MissingInLearner+p.Nodes.ExtraInLearner+
		len(p.Edges.BaselineOnly)+len(p.Edges.LearnerOnly) > 0
}

type DiffSummary struct {
	TopGaps        []DiffEdge     `json:"top_gaps"`
	TopDiscoveries []DiffEdge     `json:"top_discoveries"`
	Counts         map[string]int `json:"counts"`
}

type CompareResult struct {
	DiffID  uuid.UUID         `json:"diff_id"`
	Diff    *GraphDiffPayload `json:"diff"`
	Summary *DiffSummary      `json:"summary"`
}

// GraphComparator diffs the BASELINE and LEARNER graphs of a
// (user, content) pair, classifies the differences, and persists the
// resulting diff record.
type GraphComparator struct {
	graphs   repos.TopicGraphRepo
	nodes    repos.TopicNodeRepo
	edges    repos.TopicEdgeRepo
	evidence repos.TopicEdgeEvidenceRepo
	diffs    repos.GraphDiffRepo
	facade   *CacheFacade
	log      *logger.Logger
}

func NewGraphComparator(
	graphs repos.TopicGraphRepo,
	nodes repos.TopicNodeRepo,
	edges repos.TopicEdgeRepo,
	evidence repos.TopicEdgeEvidenceRepo,
	diffs repos.GraphDiffRepo,
	facade *CacheFacade,
	baseLog *logger.Logger,
) *GraphComparator {
	return &GraphComparator{
		graphs:   graphs,
		nodes:    nodes,
		edges:    edges,
		evidence: evidence,
		diffs:    diffs,
		facade:   facade,
		log:      baseLog.With("service", "GraphComparator"),
	}
}

// CompareGraphs requires both graphs to exist; a missing graph is a
// NotFound failure, not a best-effort skip. Deterministic for fixed graph
// snapshots.
func (c *GraphComparator) CompareGraphs(ctx context.Context, userID, contentID uuid.UUID) (*CompareResult, error) {
	baseline, err := c.graphs.FindBaselineByContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("find baseline graph: %w", err)
	}
	if baseline == nil {
		return nil, apierr.NotFound("baseline_graph_not_found",
			fmt.Errorf("no baseline graph for content %s", contentID))
	}
	learner, err := c.graphs.FindLearner(ctx, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("find learner graph: %w", err)
	}
	if learner == nil {
		return nil, apierr.NotFound("learner_graph_not_found",
			fmt.Errorf("no learner graph for user %s content %s", userID, contentID))
	}

	baselineNodes, err := c.nodes.GetByGraph(ctx, baseline.ID)
	if err != nil {
		return nil, err
	}
	learnerNodes, err := c.nodes.GetByGraph(ctx, learner.ID)
	if err != nil {
		return nil, err
	}
	baselineEdges, err := c.edges.GetByGraph(ctx, baseline.ID)
	if err != nil {
		return nil, err
	}
	learnerEdges, err := c.edges.GetByGraph(ctx, learner.ID)
	if err != nil {
		return nil, err
	}

	payload := &GraphDiffPayload{}

	// Node matching by slug.
	learnerBySlug := map[string]*domain.TopicNode{}
	for _, n := range learnerNodes {
		if _, dup := learnerBySlug[n.Slug]; !dup {
			learnerBySlug[n.Slug] = n
		}
	}
	matchedLearnerIDs := map[uuid.UUID]bool{}
	nodeRemap := map[uuid.UUID]uuid.UUID{} // baseline node id -> learner node id
	slugByNodeID := map[uuid.UUID]string{}
	for _, n := range baselineNodes {
		slugByNodeID[n.ID] = n.Slug
	}
	for _, n := range learnerNodes {
		slugByNodeID[n.ID] = n.Slug
	}

	for _, bn := range baselineNodes {
		if ln, ok := learnerBySlug[bn.Slug]; ok {
			payload.Nodes.Matched++
			matchedLearnerIDs[ln.ID] = true
			nodeRemap[bn.ID] = ln.ID
			continue
		}
		payload.Nodes.MissingInLearner++
		payload.Nodes.Missing = append(payload.Nodes.Missing, DiffNode{
			NodeID: bn.ID, Slug: bn.Slug, Label: bn.CanonicalLabel, Confidence: bn.Confidence,
		})
	}
	for _, ln := range learnerNodes {
		if matchedLearnerIDs[ln.ID] {
			continue
		}
		payload.Nodes.ExtraInLearner++
		payload.Nodes.Extra = append(payload.Nodes.Extra, DiffNode{
			NodeID: ln.ID, Slug: ln.Slug, Label: ln.CanonicalLabel, Confidence: ln.Confidence,
		})
	}

	// Edge matching by signature, with baseline ids remapped through the
	// node match map.
	learnerSigs := map[string]bool{}
	for _, e := range learnerEdges {
		learnerSigs[edgeSignature(e.FromNodeID, e.ToNodeID, e.EdgeType)] = true
	}

	matchedLearnerSigs := map[string]bool{}
	for _, e := range baselineEdges {
		from, okFrom := nodeRemap[e.FromNodeID]
		to, okTo := nodeRemap[e.ToNodeID]
		matched := false
		if okFrom && okTo {
			sig := edgeSignature(from, to, e.EdgeType)
			if learnerSigs[sig] {
				matched = true
				matchedLearnerSigs[sig] = true
			} else if e.EdgeType == domain.EdgeSupports {
				// Controlled relaxation: a baseline SUPPORTS edge is
				// satisfied by a learner LINKS_TO at the same endpoints.
				weak := edgeSignature(from, to, domain.EdgeLinksTo)
				if learnerSigs[weak] {
					matched = true
					matchedLearnerSigs[weak] = true
				}
			}
		}
		if matched {
			payload.Edges.Matched++
			continue
		}
		class := ClassGapMinor
		if e.Confidence >= gapCriticalConfidence {
			class = ClassGapCritical
		}
		payload.Edges.BaselineOnly = append(payload.Edges.BaselineOnly, DiffEdge{
			EdgeID:         e.ID,
			FromSlug:       slugByNodeID[e.FromNodeID],
			ToSlug:         slugByNodeID[e.ToNodeID],
			EdgeType:       e.EdgeType,
			Confidence:     e.Confidence,
			Classification: class,
		})
	}

	unmatchedLearner := make([]*domain.TopicEdge, 0, len(learnerEdges))
	unmatchedIDs := make([]uuid.UUID, 0, len(learnerEdges))
	for _, e := range learnerEdges {
		if matchedLearnerSigs[edgeSignature(e.FromNodeID, e.ToNodeID, e.EdgeType)] {
			continue
		}
		unmatchedLearner = append(unmatchedLearner, e)
		unmatchedIDs = append(unmatchedIDs, e.ID)
	}
	evidenceCounts, err := c.evidence.CountByEdgeIDs(ctx, unmatchedIDs)
	if err != nil {
		return nil, fmt.Errorf("count learner edge evidence: %w", err)
	}
	for _, e := range unmatchedLearner {
		n := evidenceCounts[e.ID]
		payload.Edges.LearnerOnly = append(payload.Edges.LearnerOnly, DiffEdge{
			EdgeID:         e.ID,
			FromSlug:       slugByNodeID[e.FromNodeID],
			ToSlug:         slugByNodeID[e.ToNodeID],
			EdgeType:       e.EdgeType,
			Confidence:     e.Confidence,
			EvidenceCount:  n,
			Classification: c.classifyLearnerEdge(ctx, e, n, slugByNodeID),
		})
	}

	summary := buildSummary(payload)

	row, err := c.diffs.Upsert(ctx, &domain.GraphDiff{
		UserID:          userID,
		ContentID:       contentID,
		BaselineGraphID: baseline.ID,
		LearnerGraphID:  learner.ID,
		Diff:            toJSON(payload),
		Summary:         toJSON(summary),
	})
	if err != nil {
		return nil, fmt.Errorf("persist diff: %w", err)
	}

	c.log.Info("graphs compared",
		"user_id", userID,
		"content_id", contentID,
		"nodes_matched", payload.Nodes.Matched,
		"missing_in_learner", payload.Nodes.MissingInLearner,
		"extra_in_learner", payload.Nodes.ExtraInLearner,
		"baseline_only_edges", len(payload.Edges.BaselineOnly),
		"learner_only_edges", len(payload.Edges.LearnerOnly))

	return &CompareResult{DiffID: row.ID, Diff: payload, Summary: summary}, nil
}

func (c *GraphComparator) classifyLearnerEdge(ctx context.Context, e *domain.TopicEdge, evidenceCount int, slugByNodeID map[uuid.UUID]string) string {
	switch {
	case evidenceCount >= discoveryMinEvidence && e.Source == domain.SourceUser && e.Confidence >= discoveryMinConfidence:
		return ClassDiscoveryPlausible
	case evidenceCount < discoveryMinEvidence || e.Confidence < errorMaxConfidence:
		return ClassErrorLikely
	default:
		// No blocking external classification: only a previously cached
		// resolution can settle an UNDECIDED edge.
		sig := fmt.Sprintf("%s:%s:%s", slugByNodeID[e.FromNodeID], slugByNodeID[e.ToNodeID], e.EdgeType)
		if resolution, ok := c.facade.GetDiffResolution(ctx, sig); ok && resolution != "" {
			return resolution
		}
		return ClassUndecided
	}
}

func edgeSignature(from, to uuid.UUID, edgeType string) string {
	return fmt.Sprintf("%s:%s:%s", from, to, edgeType)
}

func buildSummary(p *GraphDiffPayload) *DiffSummary {
	gaps := append([]DiffEdge(nil), p.Edges.BaselineOnly...)
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Confidence > gaps[j].Confidence })
	if len(gaps) > summaryTopN {
		gaps = gaps[:summaryTopN]
	}

	var discoveries []DiffEdge
	for _, e := range p.Edges.LearnerOnly {
		if e.Classification == ClassDiscoveryPlausible {
			discoveries = append(discoveries, e)
		}
	}
	sort.SliceStable(discoveries, func(i, j int) bool { return discoveries[i].Confidence > discoveries[j].Confidence })
	if len(discoveries) > summaryTopN {
		discoveries = discoveries[:summaryTopN]
	}

	return &DiffSummary{
		TopGaps:        gaps,
		TopDiscoveries: discoveries,
		Counts: map[string]int{
			"nodes_matched":       p.Nodes.Matched,
			"missing_in_learner":  p.Nodes.MissingInLearner,
			"extra_in_learner":    p.Nodes.ExtraInLearner,
			"edges_matched":       p.Edges.Matched,
			"baseline_only_edges": len(p.Edges.BaselineOnly),
			"learner_only_edges":  len(p.Edges.LearnerOnly),
		},
	}
}

// DecodeDiffPayload unpacks a persisted diff record.
func DecodeDiffPayload(row *domain.GraphDiff) (*GraphDiffPayload, error) {
	if row == nil {
		return nil, nil
	}
	var p GraphDiffPayload
	if err := json.Unmarshal(row.Diff, &p); err != nil {
		return nil, fmt.Errorf("decode diff payload: %w", err)
	}
	return &p, nil
}
