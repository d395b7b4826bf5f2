// Package memory provides the in-memory reference implementation of every
// repository contract in the pipeline.  Unit tests and --store memory dry
// runs use it; the behavioural contract (deterministic ordering, atomic
// replacement, fail-closed lookups) matches the database-backed stores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/silicograph/bridger/internal/domain/bridge"
	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/pkg/errors"
)

// Store holds all state behind one mutex.  The repository contracts are
// exposed as views (Entities, Relations, Index, Raw, Elements, Bridges) so
// each consumer depends only on the interface it needs.
type Store struct {
	mu sync.RWMutex

	rawRecords   []*entity.RawRecord
	rawRelations []*entity.RawRelation
	elements     []*element.StructuralElement

	entities  map[string]*entity.CanonicalEntity
	relations []*entity.CanonicalRelation
	adjacency map[string][]string
	bridges   map[string]*bridge.Bridge

	// indexed holds the entities visible to Search; Rebuild replaces it so
	// the candidate index behaves like the external search engine it stands
	// in for.
	indexed []*entity.CanonicalEntity
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		entities:  make(map[string]*entity.CanonicalEntity),
		adjacency: make(map[string][]string),
		bridges:   make(map[string]*bridge.Bridge),
	}
}

// Entities returns the canonical entity repository view.
func (s *Store) Entities() entity.Repository { return entityRepo{s} }

// Relations returns the canonical relation repository view.
func (s *Store) Relations() entity.RelationRepository { return relationRepo{s} }

// Index returns the candidate index view.
func (s *Store) Index() entity.CandidateIndex { return candidateIndex{s} }

// Raw returns the raw input source view.
func (s *Store) Raw() entity.RawSource { return rawSource{s} }

// Elements returns the structural element source view.
func (s *Store) Elements() element.Source { return elementSource{s} }

// Bridges returns the bridge repository view.
func (s *Store) Bridges() bridge.Repository { return bridgeRepo{s} }

// SeedRawRecords installs the raw record fixture set.
func (s *Store) SeedRawRecords(records []*entity.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawRecords = append([]*entity.RawRecord(nil), records...)
}

// SeedRawRelations installs the raw relation fixture set.
func (s *Store) SeedRawRelations(relations []*entity.RawRelation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawRelations = append([]*entity.RawRelation(nil), relations...)
}

// SeedElements installs the structural element fixture set.
func (s *Store) SeedElements(elements []*element.StructuralElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = append([]*element.StructuralElement(nil), elements...)
}

// ─── raw source ──────────────────────────────────────────────────────────────

type rawSource struct{ s *Store }

func (r rawSource) ListRecords(_ context.Context) ([]*entity.RawRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := append([]*entity.RawRecord(nil), r.s.rawRecords...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r rawSource) ListRelations(_ context.Context) ([]*entity.RawRelation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := append([]*entity.RawRelation(nil), r.s.rawRelations...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── element source ──────────────────────────────────────────────────────────

type elementSource struct{ s *Store }

func (e elementSource) ListByRole(_ context.Context, role element.Role) ([]*element.StructuralElement, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	var out []*element.StructuralElement
	for _, el := range e.s.elements {
		if el.Role == role {
			out = append(out, el)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (e elementSource) ListAll(_ context.Context) ([]*element.StructuralElement, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	out := append([]*element.StructuralElement(nil), e.s.elements...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── entity repository ───────────────────────────────────────────────────────

type entityRepo struct{ s *Store }

func (r entityRepo) GetByID(_ context.Context, id string) (*entity.CanonicalEntity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entities[id]
	if !ok {
		return nil, errors.NotFound("entity not found").WithDetail("id=" + id)
	}
	clone := *e
	return &clone, nil
}

func (r entityRepo) ListAll(_ context.Context) ([]*entity.CanonicalEntity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.CanonicalEntity, 0, len(r.s.entities))
	for _, e := range r.s.entities {
		clone := *e
		out = append(out, &clone)
	}
	entity.SortEntities(out)
	return out, nil
}

func (r entityRepo) ReplaceAll(_ context.Context, entities []*entity.CanonicalEntity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	next := make(map[string]*entity.CanonicalEntity, len(entities))
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
		clone := *e
		next[e.ID] = &clone
	}
	r.s.entities = next
	return nil
}

// ─── relation repository ─────────────────────────────────────────────────────

type relationRepo struct{ s *Store }

func (r relationRepo) ReplaceAll(_ context.Context, relations []*entity.CanonicalRelation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.relations = append([]*entity.CanonicalRelation(nil), relations...)
	r.s.adjacency = make(map[string][]string, len(relations)*2)
	for _, rel := range relations {
		r.s.adjacency[rel.FromEntityID] = append(r.s.adjacency[rel.FromEntityID], rel.ToEntityID)
		r.s.adjacency[rel.ToEntityID] = append(r.s.adjacency[rel.ToEntityID], rel.FromEntityID)
	}
	return nil
}

func (r relationRepo) ListAll(_ context.Context) ([]*entity.CanonicalRelation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := append([]*entity.CanonicalRelation(nil), r.s.relations...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromEntityID != out[j].FromEntityID {
			return out[i].FromEntityID < out[j].FromEntityID
		}
		if out[i].ToEntityID != out[j].ToEntityID {
			return out[i].ToEntityID < out[j].ToEntityID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// Neighborhood walks the undirected adjacency breadth-first up to depth
// hops, excluding the seeds themselves.
func (r relationRepo) Neighborhood(_ context.Context, seedIDs []string, depth int) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seeds := make(map[string]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		seeds[id] = struct{}{}
	}
	visited := make(map[string]struct{}, len(seedIDs))
	frontier := append([]string(nil), seedIDs...)
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, n := range r.s.adjacency[id] {
				if _, seen := visited[n]; seen {
					continue
				}
				if _, isSeed := seeds[n]; isSeed {
					continue
				}
				visited[n] = struct{}{}
				next = append(next, n)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// ─── candidate index ─────────────────────────────────────────────────────────

type candidateIndex struct{ s *Store }

// Search matches a candidate when any query term equals its primary name or
// an alias (case-insensitive), shares a token with them, or appears as a
// substring of one.  Results are ordered by ID, which keeps ties
// deterministic.
func (c candidateIndex) Search(_ context.Context, terms []string, types []string, limit int) ([]*entity.CanonicalEntity, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	var out []*entity.CanonicalEntity
	for _, e := range c.s.indexed {
		if len(typeSet) > 0 {
			if _, ok := typeSet[e.Type]; !ok {
				continue
			}
		}
		if matchesAnyTerm(e, terms) {
			clone := *e
			out = append(out, &clone)
		}
	}
	entity.SortEntities(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesAnyTerm(e *entity.CanonicalEntity, terms []string) bool {
	names := make([]string, 0, 1+len(e.Aliases))
	names = append(names, strings.ToLower(e.PrimaryName))
	for _, a := range e.Aliases {
		names = append(names, strings.ToLower(a))
	}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		termTokens := strings.Fields(strings.ReplaceAll(term, "_", " "))
		for _, name := range names {
			if name == term || strings.Contains(name, term) {
				return true
			}
			nameTokens := strings.Fields(strings.ReplaceAll(name, "_", " "))
			if sharesToken(termTokens, nameTokens) {
				return true
			}
		}
	}
	return false
}

func sharesToken(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func (c candidateIndex) Rebuild(_ context.Context, entities []*entity.CanonicalEntity) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	next := make([]*entity.CanonicalEntity, 0, len(entities))
	for _, e := range entities {
		clone := *e
		next = append(next, &clone)
	}
	c.s.indexed = next
	return nil
}

// ─── bridge repository ───────────────────────────────────────────────────────

type bridgeRepo struct{ s *Store }

func (r bridgeRepo) ReplaceForElements(_ context.Context, elementIDs []string, bridges []*bridge.Bridge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range bridges {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	for _, id := range elementIDs {
		delete(r.s.bridges, id)
	}
	for _, b := range bridges {
		clone := *b
		r.s.bridges[b.FromElementID] = &clone
	}
	return nil
}

func (r bridgeRepo) ListAll(_ context.Context) ([]*bridge.Bridge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*bridge.Bridge, 0, len(r.s.bridges))
	for _, b := range r.s.bridges {
		clone := *b
		out = append(out, &clone)
	}
	bridge.Sort(out)
	return out, nil
}

func (r bridgeRepo) ForElement(_ context.Context, elementID string) (*bridge.Bridge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bridges[elementID]
	if !ok {
		return nil, errors.NotFound("element is unbridged").WithDetail("element=" + elementID)
	}
	clone := *b
	return &clone, nil
}
