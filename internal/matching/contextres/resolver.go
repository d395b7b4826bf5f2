// Package contextres resolves the graph context used to boost or penalize
// bridging scores: the canonical entities bridged by an element's parent
// plus their 1–2 hop neighborhood in the canonical relation graph.
package contextres

import (
	"context"
	"sort"
	"sync"

	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// Resolver computes the context entity set for a parent element.  Results
// are memoized per parent for the lifetime of the resolver, so all children
// of one module see an identical context set within a run.
//
// The resolver is a pure function of its inputs: the bridges committed so
// far and the canonical relation graph.  Both are fixed for the duration of
// a bridging stage, which is what makes memoization sound.  Related is safe
// for concurrent use; the scoring pipeline calls it from many goroutines.
type Resolver struct {
	relations entity.RelationRepository
	bridged   map[string][]string
	depth     int
	log       logging.Logger

	mu   sync.Mutex
	memo map[string][]string
}

// New constructs a Resolver.  bridgedByElement maps element IDs to the
// entity IDs they were bridged to in earlier stages; depth bounds the
// neighborhood traversal (1 or 2 hops).
func New(relations entity.RelationRepository, bridgedByElement map[string][]string, depth int, log logging.Logger) *Resolver {
	if depth < 1 {
		depth = 1
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Resolver{
		relations: relations,
		bridged:   bridgedByElement,
		depth:     depth,
		log:       log.Named("contextres"),
		memo:      make(map[string][]string),
	}
}

// Related returns the sorted context entity set for parentElementID: the
// parent's bridged entities plus everything reachable from them within the
// configured depth.  Empty when the parent is unknown, unbridged, or the
// element has no parent; the engine then applies the neutral multiplier.
func (r *Resolver) Related(ctx context.Context, parentElementID string) ([]string, error) {
	if parentElementID == "" {
		return nil, nil
	}

	// The mutex spans the traversal as well as the memo so concurrent
	// children of one parent resolve it exactly once.
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.memo[parentElementID]; ok {
		return cached, nil
	}

	seeds := r.bridged[parentElementID]
	if len(seeds) == 0 {
		r.memo[parentElementID] = nil
		return nil, nil
	}

	neighbors, err := r.relations.Neighborhood(ctx, seeds, r.depth)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "context neighborhood traversal failed").
			WithDetail("parent=" + parentElementID)
	}

	set := make(map[string]struct{}, len(seeds)+len(neighbors))
	for _, id := range seeds {
		set[id] = struct{}{}
	}
	for _, id := range neighbors {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)

	r.memo[parentElementID] = out
	r.log.Debug("context resolved",
		logging.String("parent", parentElementID),
		logging.Int("seeds", len(seeds)),
		logging.Int("context_size", len(out)))
	return out, nil
}

// Contains reports whether entityID is in the context set.  The context set
// must have been produced by Related for the same parent.
func Contains(contextSet []string, entityID string) bool {
	i := sort.SearchStrings(contextSet, entityID)
	return i < len(contextSet) && contextSet[i] == entityID
}
