package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

const (
	tocNodeConfidence      = 0.9
	glossaryNodeConfidence = 0.8
	titleNodeConfidence    = 0.5
	partOfEdgeConfidence   = 0.9

	defaultEnhanceEdgeLimit = 10
)

// EdgeTypeClassifier refines a structural edge into a finer-grained type.
// Optional; when absent the enhancement pass only seeds the decision cache
// with the current type.
type EdgeTypeClassifier interface {
	ClassifyEdge(ctx context.Context, from, to *domain.TopicNode, currentType string) (string, error)
}

type BuildBaselineInput struct {
	ContentID uuid.UUID
	ScopeType string
	ScopeID   *uuid.UUID
}

type BuildBaselineResult struct {
	GraphID      uuid.UUID   `json:"graph_id"`
	NodesCreated int         `json:"nodes_created"`
	EdgesCreated int         `json:"edges_created"`
	Link         *LinkResult `json:"link,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
}

// BaselineBuilder constructs the deterministic BASELINE graph for a content
// item from its structural signals.
type BaselineBuilder struct {
	graphs     repos.TopicGraphRepo
	nodes      repos.TopicNodeRepo
	edges      repos.TopicEdgeRepo
	evidence   repos.TopicEdgeEvidenceRepo
	linker     *RegistryLinker
	source     ContentSource
	facade     *CacheFacade
	classifier EdgeTypeClassifier

	enhanceLimit int
	log          *logger.Logger
}

func NewBaselineBuilder(
	graphs repos.TopicGraphRepo,
	nodes repos.TopicNodeRepo,
	edges repos.TopicEdgeRepo,
	evidence repos.TopicEdgeEvidenceRepo,
	linker *RegistryLinker,
	source ContentSource,
	facade *CacheFacade,
	classifier EdgeTypeClassifier,
	baseLog *logger.Logger,
) *BaselineBuilder {
	return &BaselineBuilder{
		graphs:       graphs,
		nodes:        nodes,
		edges:        edges,
		evidence:     evidence,
		linker:       linker,
		source:       source,
		facade:       facade,
		classifier:   classifier,
		enhanceLimit: defaultEnhanceEdgeLimit,
		log:          baseLog.With("service", "BaselineBuilder"),
	}
}

// BuildBaseline finds-or-creates the BASELINE graph for the scope key and
// extracts nodes by priority: TOC entries (hierarchy becomes PART_OF edges),
// glossary terms, then a single title-fallback node. Idempotent: a second
// run with unchanged content creates nothing new.
func (b *BaselineBuilder) BuildBaseline(ctx context.Context, in BuildBaselineInput) (*BuildBaselineResult, error) {
	scopeType := in.ScopeType
	if scopeType == "" {
		scopeType = domain.ScopeGlobal
	}

	graph, err := b.graphs.FindBaseline(ctx, in.ContentID, scopeType, in.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("find baseline graph: %w", err)
	}
	if graph == nil {
		contentID := in.ContentID
		graph, err = b.graphs.Create(ctx, &domain.TopicGraph{
			Kind:      domain.GraphKindBaseline,
			ScopeType: scopeType,
			ScopeID:   in.ScopeID,
			ContentID: &contentID,
		})
		if err != nil {
			return nil, fmt.Errorf("create baseline graph: %w", err)
		}
	}

	structure, err := b.source.Structure(ctx, in.ContentID)
	if err != nil {
		return nil, err
	}

	result := &BuildBaselineResult{GraphID: graph.ID}

	existingEdges, err := b.edges.GetByGraph(ctx, graph.ID)
	if err != nil {
		return nil, fmt.Errorf("load baseline edges: %w", err)
	}
	edgeSeen := map[string]bool{}
	nodeByID := map[uuid.UUID]*domain.TopicNode{}
	for _, e := range existingEdges {
		edgeSeen[fmt.Sprintf("%s:%s:%s", e.FromNodeID, e.ToNodeID, e.EdgeType)] = true
	}

	extracted := false
	if len(structure.TOC) > 0 {
		for _, entry := range structure.TOC {
			if err := b.walkTOC(ctx, graph.ID, nil, entry, edgeSeen, nodeByID, result); err != nil {
				return nil, err
			}
		}
		extracted = len(nodeByID) > 0
	}

	if !extracted && len(structure.Glossary) > 0 {
		for _, term := range structure.Glossary {
			node, created, err := b.upsertNode(ctx, graph.ID, term.Term, glossaryNodeConfidence)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			if created {
				result.NodesCreated++
			}
			extracted = true
		}
	}

	if !extracted {
		title := structure.Title
		if title == "" {
			title = "content-" + in.ContentID.String()[:8]
		}
		_, created, err := b.upsertNode(ctx, graph.ID, title, titleNodeConfidence)
		if err != nil {
			return nil, err
		}
		if created {
			result.NodesCreated++
		}
	}

	// Registry linking is best-effort; a failure degrades the build, not
	// fails it.
	link, err := b.linker.LinkTopics(ctx, in.ContentID, graph.ID)
	if err != nil {
		b.log.Warn("registry linking failed", "error", err, "graph_id", graph.ID)
		result.Warnings = append(result.Warnings, fmt.Sprintf("registry linking failed: %v", err))
	} else {
		result.Link = link
	}

	if err := b.enhanceEdges(ctx, graph.ID, nodeByID); err != nil {
		b.log.Warn("edge enhancement failed", "error", err, "graph_id", graph.ID)
		result.Warnings = append(result.Warnings, fmt.Sprintf("edge enhancement failed: %v", err))
	}

	b.log.Info("baseline build complete",
		"graph_id", graph.ID,
		"content_id", in.ContentID,
		"nodes_created", result.NodesCreated,
		"edges_created", result.EdgesCreated)
	return result, nil
}

func (b *BaselineBuilder) walkTOC(
	ctx context.Context,
	graphID uuid.UUID,
	parent *domain.TopicNode,
	entry TOCEntry,
	edgeSeen map[string]bool,
	nodeByID map[uuid.UUID]*domain.TopicNode,
	result *BuildBaselineResult,
) error {
	node, created, err := b.upsertNode(ctx, graphID, entry.Title, tocNodeConfidence)
	if err != nil {
		return err
	}
	if node == nil {
		// Untitled entries contribute nothing, but their children may.
		for _, child := range entry.Children {
			if err := b.walkTOC(ctx, graphID, parent, child, edgeSeen, nodeByID, result); err != nil {
				return err
			}
		}
		return nil
	}
	if created {
		result.NodesCreated++
	}
	nodeByID[node.ID] = node

	if parent != nil {
		sig := fmt.Sprintf("%s:%s:%s", parent.ID, node.ID, domain.EdgePartOf)
		if !edgeSeen[sig] {
			edge, err := b.edges.Create(ctx, &domain.TopicEdge{
				GraphID:    graphID,
				FromNodeID: parent.ID,
				ToNodeID:   node.ID,
				EdgeType:   domain.EdgePartOf,
				Confidence: partOfEdgeConfidence,
				Source:     domain.SourceDeterministic,
				Rationale:  toJSON(map[string]interface{}{"origin": "toc"}),
			})
			if err != nil {
				return fmt.Errorf("create PART_OF edge: %w", err)
			}
			edgeSeen[sig] = true
			result.EdgesCreated++

			ev := &domain.TopicEdgeEvidence{
				EdgeID:       edge.ID,
				EvidenceType: domain.EvidencePageArea,
				PageNumber:   entry.Page,
				Excerpt:      entry.Title,
			}
			if _, err := b.evidence.Create(ctx, ev); err != nil {
				return fmt.Errorf("create PART_OF evidence: %w", err)
			}
		}
	}

	for _, child := range entry.Children {
		if err := b.walkTOC(ctx, graphID, node, child, edgeSeen, nodeByID, result); err != nil {
			return err
		}
	}
	return nil
}

func (b *BaselineBuilder) upsertNode(ctx context.Context, graphID uuid.UUID, label string, confidence float64) (*domain.TopicNode, bool, error) {
	slug := Slugify(label)
	if slug == "" {
		return nil, false, nil
	}
	existing, err := b.nodes.GetByGraphAndSlug(ctx, graphID, slug)
	if err != nil {
		return nil, false, fmt.Errorf("find node %q: %w", slug, err)
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := b.nodes.Create(ctx, &domain.TopicNode{
		GraphID:        graphID,
		CanonicalLabel: label,
		Slug:           slug,
		Confidence:     confidence,
		Source:         domain.SourceDeterministic,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create node %q: %w", slug, err)
	}
	return created, true, nil
}

// enhanceEdges is the low-volume refinement pass. The decision cache is
// consulted per edge signature before any classification so repeated builds
// never re-classify the same edge; without a classifier the pass only seeds
// the cache with the current type.
func (b *BaselineBuilder) enhanceEdges(ctx context.Context, graphID uuid.UUID, nodeByID map[uuid.UUID]*domain.TopicNode) error {
	if b.facade == nil {
		return nil
	}
	edges, err := b.edges.GetByGraph(ctx, graphID)
	if err != nil {
		return err
	}
	limit := b.enhanceLimit
	for _, edge := range edges {
		if limit <= 0 {
			break
		}
		from, to := nodeByID[edge.FromNodeID], nodeByID[edge.ToNodeID]
		if from == nil || to == nil {
			continue
		}
		sig := fmt.Sprintf("%s:%s:%s", from.Slug, to.Slug, edge.EdgeType)
		if decision, ok := b.facade.GetEdgeTypeDecision(ctx, sig); ok {
			if decision != edge.EdgeType {
				edge.EdgeType = decision
				if err := b.edges.Update(ctx, edge); err != nil {
					return err
				}
			}
			continue
		}
		limit--

		decision := edge.EdgeType
		if b.classifier != nil {
			refined, err := b.classifier.ClassifyEdge(ctx, from, to, edge.EdgeType)
			if err != nil {
				b.log.Warn("edge classification failed", "error", err, "signature", sig)
				continue
			}
			if refined != "" {
				decision = refined
			}
		}
		b.facade.SetEdgeTypeDecision(ctx, sig, decision)
		if decision != edge.EdgeType {
			edge.EdgeType = decision
			if err := b.edges.Update(ctx, edge); err != nil {
				return err
			}
		}
	}
	return nil
}
