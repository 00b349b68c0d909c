package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

const candidateRegistryConfidence = 0.3

// LinkResult reports what registry linking did, for observability.
type LinkResult struct {
	Matched           int `json:"matched"`
	CandidatesCreated int `json:"candidates_created"`
}

// RegistryLinker connects baseline nodes to the global topic registry,
// deduplicating topic labels across content.
type RegistryLinker struct {
	graphs   repos.TopicGraphRepo
	nodes    repos.TopicNodeRepo
	registry repos.TopicRegistryRepo
	log      *logger.Logger
}

func NewRegistryLinker(
	graphs repos.TopicGraphRepo,
	nodes repos.TopicNodeRepo,
	registry repos.TopicRegistryRepo,
	baseLog *logger.Logger,
) *RegistryLinker {
	return &RegistryLinker{
		graphs:   graphs,
		nodes:    nodes,
		registry: registry,
		log:      baseLog.With("service", "RegistryLinker"),
	}
}

// LinkTopics matches every node of the baseline graph against the ACTIVE
// GLOBAL registry. A match records {registryId, registryLabel} on the node's
// attributes; a miss links the node to the existing entry for the slug, or
// creates a CANDIDATE entry when there is none, with
// registryStatus=CANDIDATE either way. No structural graph change.
func (l *RegistryLinker) LinkTopics(ctx context.Context, contentID, baselineGraphID uuid.UUID) (*LinkResult, error) {
	nodes, err := l.nodes.GetByGraph(ctx, baselineGraphID)
	if err != nil {
		return nil, fmt.Errorf("load baseline nodes: %w", err)
	}

	result := &LinkResult{}
	for _, node := range nodes {
		terms := append([]string{node.Slug}, jsonToStrings(node.Aliases)...)

		entry, err := l.registry.FindActiveGlobalMatching(ctx, terms)
		if err != nil {
			return nil, fmt.Errorf("registry lookup for %q: %w", node.Slug, err)
		}

		attrs := jsonToMap(node.Attributes)
		if entry != nil {
			attrs["registryId"] = entry.ID.String()
			attrs["registryLabel"] = entry.CanonicalLabel
			delete(attrs, "registryStatus")
			result.Matched++
		} else {
			// The slug may already hold a CANDIDATE row; (scope, slug) is
			// unique, so link instead of inserting a duplicate.
			linked, err := l.registry.GetBySlug(ctx, domain.ScopeGlobal, node.Slug)
			if err != nil {
				return nil, fmt.Errorf("registry slug lookup for %q: %w", node.Slug, err)
			}
			if linked == nil {
				linked, err = l.registry.Create(ctx, &domain.TopicRegistryEntry{
					Slug:           node.Slug,
					CanonicalLabel: node.CanonicalLabel,
					Aliases:        node.Aliases,
					ScopeType:      domain.ScopeGlobal,
					Status:         domain.RegistryStatusCandidate,
					Confidence:     candidateRegistryConfidence,
					Stats: toJSON(map[string]interface{}{
						"originContentId": contentID.String(),
						"originGraphId":   baselineGraphID.String(),
					}),
				})
				if err != nil {
					return nil, fmt.Errorf("create candidate registry entry for %q: %w", node.Slug, err)
				}
				result.CandidatesCreated++
			}
			attrs["registryId"] = linked.ID.String()
			attrs["registryLabel"] = linked.CanonicalLabel
			attrs["registryStatus"] = linked.Status
		}

		node.Attributes = toJSON(attrs)
		if err := l.nodes.Update(ctx, node); err != nil {
			return nil, fmt.Errorf("store registry link on node %s: %w", node.ID, err)
		}
	}

	l.log.Debug("registry linking complete",
		"graph_id", baselineGraphID,
		"matched", result.Matched,
		"candidates_created", result.CandidatesCreated)
	return result, nil
}

// EnsureGlobalGraph lazily creates the singleton CURATED/GLOBAL graph used
// as the anchor for registry-level graph operations (prerequisite priors).
func (l *RegistryLinker) EnsureGlobalGraph(ctx context.Context) (*domain.TopicGraph, error) {
	existing, err := l.graphs.FindCuratedGlobal(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return l.graphs.Create(ctx, &domain.TopicGraph{
		Kind:      domain.GraphKindCurated,
		ScopeType: domain.ScopeGlobal,
	})
}
