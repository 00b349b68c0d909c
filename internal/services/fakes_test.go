package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/realtime/bus"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// fakeStore is a shared in-memory backing for the repo fakes. A monotonic
// clock keeps creation order stable so "most recent" queries behave like
// the real store.
type fakeStore struct {
	mu    sync.Mutex
	clock int64

	graphs   []*domain.TopicGraph
	nodes    []*domain.TopicNode
	edges    []*domain.TopicEdge
	evidence []*domain.TopicEdgeEvidence
	registry []*domain.TopicRegistryEntry
	diffs    []*domain.GraphDiff
	outcomes []*domain.ThresholdOutcome
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) tick() time.Time {
	s.clock++
	return time.Unix(1_700_000_000+s.clock, 0).UTC()
}

type fakeGraphRepo struct{ s *fakeStore }

func (r *fakeGraphRepo) Create(ctx context.Context, row *domain.TopicGraph) (*domain.TopicGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.ID = uuid.New()
	row.CreatedAt = r.s.tick()
	r.s.graphs = append(r.s.graphs, row)
	return row, nil
}

func (r *fakeGraphRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopicGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.graphs {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGraphRepo) FindBaseline(ctx context.Context, contentID uuid.UUID, scopeType string, scopeID *uuid.UUID) (*domain.TopicGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.graphs {
		if g.Kind != domain.GraphKindBaseline || g.ContentID == nil || *g.ContentID != contentID || g.ScopeType != scopeType {
			continue
		}
		if (g.ScopeID == nil) != (scopeID == nil) {
			continue
		}
		if scopeID != nil && *g.ScopeID != *scopeID {
			continue
		}
		return g, nil
	}
	return nil, nil
}

func (r *fakeGraphRepo) FindBaselineByContent(ctx context.Context, contentID uuid.UUID) (*domain.TopicGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.graphs {
		if g.Kind == domain.GraphKindBaseline && g.ContentID != nil && *g.ContentID == contentID {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGraphRepo) FindLearner(ctx context.Context, userID, contentID uuid.UUID) (*domain.TopicGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.graphs {
		if g.Kind == domain.GraphKindLearner &&
			g.UserID != nil && *g.UserID == userID &&
			g.ContentID != nil && *g.ContentID == contentID {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGraphRepo) FindCuratedGlobal(ctx context.Context) (*domain.TopicGraph, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.graphs {
		if g.Kind == domain.GraphKindCurated && g.ScopeType == domain.ScopeGlobal {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGraphRepo) StampLastCompared(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.graphs {
		if g.ID == id {
			t := at
			g.LastComparedAt = &t
			return nil
		}
	}
	return nil
}

type fakeNodeRepo struct{ s *fakeStore }

func (r *fakeNodeRepo) Create(ctx context.Context, row *domain.TopicNode) (*domain.TopicNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.ID = uuid.New()
	row.CreatedAt = r.s.tick()
	r.s.nodes = append(r.s.nodes, row)
	return row, nil
}

func (r *fakeNodeRepo) Update(ctx context.Context, row *domain.TopicNode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.nodes {
		if n.ID == row.ID {
			r.s.nodes[i] = row
			return nil
		}
	}
	return errors.New("node not found")
}

func (r *fakeNodeRepo) GetByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.TopicNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.TopicNode
	for _, n := range r.s.nodes {
		if n.GraphID == graphID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNodeRepo) GetByGraphAndSlug(ctx context.Context, graphID uuid.UUID, slug string) (*domain.TopicNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.nodes {
		if n.GraphID == graphID && n.Slug == slug {
			return n, nil
		}
	}
	return nil, nil
}

func (r *fakeNodeRepo) FindBaselineCoverage(ctx context.Context, slug string, excludeContentID uuid.UUID, limit int) ([]repos.BaselineCoverage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	graphByID := map[uuid.UUID]*domain.TopicGraph{}
	for _, g := range r.s.graphs {
		graphByID[g.ID] = g
	}
	var out []repos.BaselineCoverage
	for _, n := range r.s.nodes {
		if n.Slug != slug {
			continue
		}
		g := graphByID[n.GraphID]
		if g == nil || g.Kind != domain.GraphKindBaseline || g.ContentID == nil {
			continue
		}
		if excludeContentID != uuid.Nil && *g.ContentID == excludeContentID {
			continue
		}
		out = append(out, repos.BaselineCoverage{
			ContentID: *g.ContentID,
			GraphID:   g.ID,
			NodeID:    n.ID,
			Label:     n.CanonicalLabel,
			Slug:      n.Slug,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeEdgeRepo struct {
	s         *fakeStore
	createErr error
}

func (r *fakeEdgeRepo) Create(ctx context.Context, row *domain.TopicEdge) (*domain.TopicEdge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	row.ID = uuid.New()
	row.CreatedAt = r.s.tick()
	r.s.edges = append(r.s.edges, row)
	return row, nil
}

func (r *fakeEdgeRepo) Update(ctx context.Context, row *domain.TopicEdge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, e := range r.s.edges {
		if e.ID == row.ID {
			r.s.edges[i] = row
			return nil
		}
	}
	return errors.New("edge not found")
}

func (r *fakeEdgeRepo) GetByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.TopicEdge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.TopicEdge
	for _, e := range r.s.edges {
		if e.GraphID == graphID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEdgeRepo) GetMostRecentByGraph(ctx context.Context, graphID uuid.UUID) (*domain.TopicEdge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.TopicEdge
	for _, e := range r.s.edges {
		if e.GraphID != graphID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return latest, nil
}

func (r *fakeEdgeRepo) GetByNodeIDs(ctx context.Context, graphID uuid.UUID, nodeIDs []uuid.UUID) ([]*domain.TopicEdge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range nodeIDs {
		want[id] = true
	}
	var out []*domain.TopicEdge
	for _, e := range r.s.edges {
		if e.GraphID == graphID && (want[e.FromNodeID] || want[e.ToNodeID]) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEdgeRepo) FindPrerequisiteSources(ctx context.Context, graphID uuid.UUID, targetSlug string, limit int) ([]*domain.TopicNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = 2
	}
	nodeByID := map[uuid.UUID]*domain.TopicNode{}
	for _, n := range r.s.nodes {
		nodeByID[n.ID] = n
	}
	var out []*domain.TopicNode
	for _, e := range r.s.edges {
		if e.GraphID != graphID || e.EdgeType != domain.EdgePrerequisite || e.FromNodeID == e.ToNodeID {
			continue
		}
		target := nodeByID[e.ToNodeID]
		if target == nil || target.Slug != targetSlug {
			continue
		}
		if src := nodeByID[e.FromNodeID]; src != nil {
			out = append(out, src)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeEvidenceRepo struct{ s *fakeStore }

func (r *fakeEvidenceRepo) Create(ctx context.Context, row *domain.TopicEdgeEvidence) (*domain.TopicEdgeEvidence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.Excerpt = domain.TruncateChars(row.Excerpt, domain.MaxEvidenceExcerptLen)
	row.ID = uuid.New()
	row.CreatedAt = r.s.tick()
	r.s.evidence = append(r.s.evidence, row)
	return row, nil
}

func (r *fakeEvidenceRepo) CountByEdgeIDs(ctx context.Context, edgeIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range edgeIDs {
		want[id] = true
	}
	out := map[uuid.UUID]int{}
	for _, ev := range r.s.evidence {
		if want[ev.EdgeID] {
			out[ev.EdgeID]++
		}
	}
	return out, nil
}

func (r *fakeEvidenceRepo) CountByNodeForGraph(ctx context.Context, graphID uuid.UUID) (map[uuid.UUID]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	edgeByID := map[uuid.UUID]*domain.TopicEdge{}
	for _, e := range r.s.edges {
		if e.GraphID == graphID {
			edgeByID[e.ID] = e
		}
	}
	out := map[uuid.UUID]int{}
	for _, ev := range r.s.evidence {
		if e, ok := edgeByID[ev.EdgeID]; ok {
			out[e.ToNodeID]++
		}
	}
	return out, nil
}

type fakeRegistryRepo struct {
	s       *fakeStore
	findErr error
}

func (r *fakeRegistryRepo) Create(ctx context.Context, row *domain.TopicRegistryEntry) (*domain.TopicRegistryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	// (scope_type, slug) carries a unique index in the real store.
	for _, e := range r.s.registry {
		if e.ScopeType == row.ScopeType && e.Slug == row.Slug {
			return nil, errors.New(`duplicate key value violates unique constraint "idx_topic_registry_scope_slug"`)
		}
	}
	row.ID = uuid.New()
	row.CreatedAt = r.s.tick()
	r.s.registry = append(r.s.registry, row)
	return row, nil
}

func (r *fakeRegistryRepo) GetBySlug(ctx context.Context, scopeType, slug string) (*domain.TopicRegistryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.registry {
		if e.ScopeType == scopeType && e.Slug == slug {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeRegistryRepo) FindActiveGlobalMatching(ctx context.Context, terms []string) (*domain.TopicRegistryEntry, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[string]bool{}
	for _, t := range terms {
		want[t] = true
	}
	for _, e := range r.s.registry {
		if e.ScopeType != domain.ScopeGlobal || e.Status != domain.RegistryStatusActive {
			continue
		}
		if want[e.Slug] {
			return e, nil
		}
		for _, alias := range jsonToStrings(e.Aliases) {
			if want[alias] {
				return e, nil
			}
		}
	}
	return nil, nil
}

type fakeDiffRepo struct{ s *fakeStore }

func (r *fakeDiffRepo) Upsert(ctx context.Context, row *domain.GraphDiff) (*domain.GraphDiff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.diffs {
		if existing.UserID == row.UserID && existing.ContentID == row.ContentID {
			existing.BaselineGraphID = row.BaselineGraphID
			existing.LearnerGraphID = row.LearnerGraphID
			existing.Diff = row.Diff
			existing.Summary = row.Summary
			existing.UpdatedAt = r.s.tick()
			return existing, nil
		}
	}
	row.ID = uuid.New()
	row.CreatedAt = r.s.tick()
	row.UpdatedAt = row.CreatedAt
	r.s.diffs = append(r.s.diffs, row)
	return row, nil
}

func (r *fakeDiffRepo) GetByUserContent(ctx context.Context, userID, contentID uuid.UUID) (*domain.GraphDiff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.diffs {
		if d.UserID == userID && d.ContentID == contentID {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeDiffRepo) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.GraphDiff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.GraphDiff
	for _, d := range r.s.diffs {
		if d.UserID != userID {
			continue
		}
		if latest == nil || d.UpdatedAt.After(latest.UpdatedAt) {
			latest = d
		}
	}
	return latest, nil
}

type fakeOutcomeRepo struct{ s *fakeStore }

func (r *fakeOutcomeRepo) Create(ctx context.Context, row *domain.ThresholdOutcome) (*domain.ThresholdOutcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.ID = uuid.New()
	// Stamp near the wall clock so window queries see fresh rows, with a
	// monotonic nudge to keep ordering stable.
	r.s.clock++
	row.CreatedAt = time.Now().UTC().Add(time.Duration(r.s.clock) * time.Millisecond)
	r.s.outcomes = append(r.s.outcomes, row)
	return row, nil
}

func (r *fakeOutcomeRepo) GetRecent(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*domain.ThresholdOutcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []*domain.ThresholdOutcome
	for i := len(r.s.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		o := r.s.outcomes[i]
		if o.UserID == userID && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

// fakeCache is an in-memory cache.Client; TTLs are recorded but not
// enforced.
type fakeCache struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	broken bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return "", false, errors.New("cache unavailable")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache unavailable")
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache unavailable")
	}
	delete(c.data, key)
	return nil
}

func (c *fakeCache) keysWithPrefix(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// stubContentSource returns a fixed structure or error.
type stubContentSource struct {
	structure *ContentStructure
	err       error
}

func (s *stubContentSource) Structure(ctx context.Context, contentID uuid.UUID) (*ContentStructure, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.structure, nil
}

// testEnv bundles everything a service test needs against shared fakes.
type testEnv struct {
	store    *fakeStore
	graphs   *fakeGraphRepo
	nodes    *fakeNodeRepo
	edges    *fakeEdgeRepo
	evidence *fakeEvidenceRepo
	registry *fakeRegistryRepo
	diffs    *fakeDiffRepo
	outcomes *fakeOutcomeRepo

	cache   *fakeCache
	facade  *CacheFacade
	signals *bus.InProcessBus

	linker          *RegistryLinker
	learner         *LearnerBuilder
	comparator      *GraphComparator
	thresholds      *ThresholdController
	recommendations *RecommendationEngine
}

func newTestEnv() *testEnv {
	log := testLogger()
	store := newFakeStore()
	env := &testEnv{
		store:    store,
		graphs:   &fakeGraphRepo{s: store},
		nodes:    &fakeNodeRepo{s: store},
		edges:    &fakeEdgeRepo{s: store},
		evidence: &fakeEvidenceRepo{s: store},
		registry: &fakeRegistryRepo{s: store},
		diffs:    &fakeDiffRepo{s: store},
		outcomes: &fakeOutcomeRepo{s: store},
		cache:    newFakeCache(),
		signals:  bus.NewInProcessBus(log),
	}
	env.facade = NewCacheFacade(env.cache, log)
	env.linker = NewRegistryLinker(env.graphs, env.nodes, env.registry, log)
	env.learner = NewLearnerBuilder(env.graphs, env.nodes, env.edges, env.evidence, env.facade, env.signals, log)
	env.comparator = NewGraphComparator(env.graphs, env.nodes, env.edges, env.evidence, env.diffs, env.facade, log)
	env.thresholds = NewThresholdController(env.outcomes, log)
	env.recommendations = NewRecommendationEngine(env.graphs, env.nodes, env.edges, env.evidence, env.registry, env.diffs, log)
	return env
}

func (env *testEnv) newBaselineBuilder(source ContentSource) *BaselineBuilder {
	return NewBaselineBuilder(env.graphs, env.nodes, env.edges, env.evidence, env.linker, source, env.facade, nil, testLogger())
}

// seedGraph creates a graph row directly in the fake store.
func (env *testEnv) seedGraph(kind string, userID, contentID *uuid.UUID) *domain.TopicGraph {
	g := &domain.TopicGraph{Kind: kind, ScopeType: domain.ScopeGlobal, UserID: userID, ContentID: contentID}
	if kind == domain.GraphKindLearner {
		g.ScopeType = domain.ScopeUser
		g.ScopeID = userID
	}
	created, _ := env.graphs.Create(context.Background(), g)
	return created
}

func (env *testEnv) seedNode(graphID uuid.UUID, label string, confidence float64, source string) *domain.TopicNode {
	n := &domain.TopicNode{
		GraphID:        graphID,
		CanonicalLabel: label,
		Slug:           Slugify(label),
		Confidence:     confidence,
		Source:         source,
	}
	created, _ := env.nodes.Create(context.Background(), n)
	return created
}

func (env *testEnv) seedEdge(graphID, from, to uuid.UUID, edgeType string, confidence float64, source string) *domain.TopicEdge {
	e := &domain.TopicEdge{
		GraphID:    graphID,
		FromNodeID: from,
		ToNodeID:   to,
		EdgeType:   edgeType,
		Confidence: confidence,
		Source:     source,
	}
	created, _ := env.edges.Create(context.Background(), e)
	return created
}

func (env *testEnv) seedEvidence(edgeID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		_, _ = env.evidence.Create(context.Background(), &domain.TopicEdgeEvidence{
			EdgeID:       edgeID,
			EvidenceType: domain.EvidenceHighlight,
		})
	}
}
