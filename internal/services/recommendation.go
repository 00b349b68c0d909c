package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

const (
	gapRecoveryScore    = 10
	prerequisiteScore   = 7
	maxRecommendations  = 5
	maxMissingNodes     = 10
	maxLearnerNodes     = 20
	maxWeakNodes        = 5
	maxPriorsPerNode    = 2
	maxCoveragePerSlug  = 2
	weakEvidenceCeiling = 2
)

type Recommendation struct {
	ContentID uuid.UUID `json:"content_id"`
	Slug      string    `json:"slug"`
	Score     int       `json:"score"`
	Reason    string    `json:"reason"`
}

// RecommendationEngine suggests other content from the user's latest diff
// (gap recovery) and from prerequisite priors for weakly-evidenced learner
// topics.
type RecommendationEngine struct {
	graphs   repos.TopicGraphRepo
	nodes    repos.TopicNodeRepo
	edges    repos.TopicEdgeRepo
	evidence repos.TopicEdgeEvidenceRepo
	registry repos.TopicRegistryRepo
	diffs    repos.GraphDiffRepo
	log      *logger.Logger
}

func NewRecommendationEngine(
	graphs repos.TopicGraphRepo,
	nodes repos.TopicNodeRepo,
	edges repos.TopicEdgeRepo,
	evidence repos.TopicEdgeEvidenceRepo,
	registry repos.TopicRegistryRepo,
	diffs repos.GraphDiffRepo,
	baseLog *logger.Logger,
) *RecommendationEngine {
	return &RecommendationEngine{
		graphs:   graphs,
		nodes:    nodes,
		edges:    edges,
		evidence: evidence,
		registry: registry,
		diffs:    diffs,
		log:      baseLog.With("service", "RecommendationEngine"),
	}
}

// GetRecommendations merges the gap-recovery and prerequisite strategies,
// deduplicates by target content (first occurrence wins), and returns the
// top 5 by score.
func (r *RecommendationEngine) GetRecommendations(ctx context.Context, userID uuid.UUID, contextContentID *uuid.UUID) ([]Recommendation, error) {
	var out []Recommendation

	gap, err := r.gapRecovery(ctx, userID, contextContentID)
	if err != nil {
		return nil, err
	}
	out = append(out, gap...)

	prereq, err := r.prerequisites(ctx, userID, contextContentID)
	if err != nil {
		return nil, err
	}
	out = append(out, prereq...)

	seen := map[uuid.UUID]bool{}
	merged := make([]Recommendation, 0, len(out))
	for _, rec := range out {
		if seen[rec.ContentID] {
			continue
		}
		seen[rec.ContentID] = true
		merged = append(merged, rec)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > maxRecommendations {
		merged = merged[:maxRecommendations]
	}
	return merged, nil
}

func (r *RecommendationEngine) gapRecovery(ctx context.Context, userID uuid.UUID, contextContentID *uuid.UUID) ([]Recommendation, error) {
	var row *domain.GraphDiff
	var err error
	if contextContentID != nil {
		row, err = r.diffs.GetByUserContent(ctx, userID, *contextContentID)
	} else {
		row, err = r.diffs.GetLatestByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest diff: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	payload, err := DecodeDiffPayload(row)
	if err != nil {
		return nil, err
	}

	missing := payload.Nodes.Missing
	if len(missing) > maxMissingNodes {
		missing = missing[:maxMissingNodes]
	}

	var out []Recommendation
	for _, node := range missing {
		// Every covering baseline competes; only the prerequisite strategy
		// caps coverage per slug.
		hits, err := r.nodes.FindBaselineCoverage(ctx, node.Slug, row.ContentID, 0)
		if err != nil {
			return nil, fmt.Errorf("find coverage for %q: %w", node.Slug, err)
		}
		for _, hit := range hits {
			out = append(out, Recommendation{
				ContentID: hit.ContentID,
				Slug:      node.Slug,
				Score:     gapRecoveryScore,
				Reason:    fmt.Sprintf("covers missing topic: %s", node.Label),
			})
		}
	}
	return out, nil
}

func (r *RecommendationEngine) prerequisites(ctx context.Context, userID uuid.UUID, contextContentID *uuid.UUID) ([]Recommendation, error) {
	if contextContentID == nil {
		// Without an explicit context, anchor on the user's latest diff.
		latest, err := r.diffs.GetLatestByUser(ctx, userID)
		if err != nil || latest == nil {
			return nil, err
		}
		cid := latest.ContentID
		contextContentID = &cid
	}
	learner, err := r.graphs.FindLearner(ctx, userID, *contextContentID)
	if err != nil || learner == nil {
		return nil, err
	}

	nodes, err := r.nodes.GetByGraph(ctx, learner.ID)
	if err != nil {
		return nil, err
	}
	if len(nodes) > maxLearnerNodes {
		nodes = nodes[:maxLearnerNodes]
	}

	nodeIDs := make([]uuid.UUID, 0, len(nodes))
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	edges, err := r.edges.GetByNodeIDs(ctx, learner.ID, nodeIDs)
	if err != nil {
		return nil, err
	}
	edgeIDs := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		edgeIDs = append(edgeIDs, e.ID)
	}
	counts, err := r.evidence.CountByEdgeIDs(ctx, edgeIDs)
	if err != nil {
		return nil, err
	}

	// Evidence per node, summed over incident edges.
	perNode := map[uuid.UUID]int{}
	for _, e := range edges {
		perNode[e.FromNodeID] += counts[e.ID]
		if e.ToNodeID != e.FromNodeID {
			perNode[e.ToNodeID] += counts[e.ID]
		}
	}

	var weak []*domain.TopicNode
	for _, n := range nodes {
		if perNode[n.ID] < weakEvidenceCeiling {
			weak = append(weak, n)
		}
		if len(weak) == maxWeakNodes {
			break
		}
	}
	if len(weak) == 0 {
		return nil, nil
	}

	global, err := r.graphs.FindCuratedGlobal(ctx)
	if err != nil || global == nil {
		return nil, err
	}

	var out []Recommendation
	for _, n := range weak {
		priors, err := r.edges.FindPrerequisiteSources(ctx, global.ID, n.Slug, maxPriorsPerNode)
		if err != nil {
			return nil, fmt.Errorf("find prerequisite priors for %q: %w", n.Slug, err)
		}
		for _, prior := range priors {
			entry, err := r.registry.GetBySlug(ctx, domain.ScopeGlobal, prior.Slug)
			if err != nil {
				return nil, err
			}
			if entry == nil || entry.Status != domain.RegistryStatusActive {
				continue
			}
			hits, err := r.nodes.FindBaselineCoverage(ctx, prior.Slug, *contextContentID, maxCoveragePerSlug)
			if err != nil {
				return nil, err
			}
			for _, hit := range hits {
				out = append(out, Recommendation{
					ContentID: hit.ContentID,
					Slug:      prior.Slug,
					Score:     prerequisiteScore,
					Reason:    fmt.Sprintf("prerequisite for %s", n.CanonicalLabel),
				})
			}
		}
	}
	return out, nil
}
