package contextres_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/database/memory"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/matching/contextres"
)

func buildGraph(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	// sprs - esr - exception chain; alu isolated.
	require.NoError(t, s.Relations().ReplaceAll(context.Background(), []*entity.CanonicalRelation{
		{FromEntityID: "ent_sprs", ToEntityID: "ent_esr", Type: "contains"},
		{FromEntityID: "ent_esr", ToEntityID: "ent_exception", Type: "controls"},
	}))
	return s
}

func TestRelated_EmptyParentYieldsEmptyContext(t *testing.T) {
	t.Parallel()

	s := buildGraph(t)
	r := contextres.New(s.Relations(), map[string][]string{}, 2, logging.NewNopLogger())

	got, err := r.Related(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRelated_UnbridgedParentYieldsEmptyContext(t *testing.T) {
	t.Parallel()

	s := buildGraph(t)
	r := contextres.New(s.Relations(), map[string][]string{}, 2, logging.NewNopLogger())

	got, err := r.Related(context.Background(), "el_sprs")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRelated_SeedsPlusNeighborhood(t *testing.T) {
	t.Parallel()

	s := buildGraph(t)
	bridged := map[string][]string{"el_sprs": {"ent_sprs"}}

	depth1 := contextres.New(s.Relations(), bridged, 1, logging.NewNopLogger())
	got, err := depth1.Related(context.Background(), "el_sprs")
	require.NoError(t, err)
	assert.Equal(t, []string{"ent_esr", "ent_sprs"}, got)

	depth2 := contextres.New(s.Relations(), bridged, 2, logging.NewNopLogger())
	got, err = depth2.Related(context.Background(), "el_sprs")
	require.NoError(t, err)
	assert.Equal(t, []string{"ent_esr", "ent_exception", "ent_sprs"}, got)
}

func TestRelated_MemoizedPerParent(t *testing.T) {
	t.Parallel()

	s := buildGraph(t)
	bridged := map[string][]string{"el_sprs": {"ent_sprs"}}
	r := contextres.New(s.Relations(), bridged, 2, logging.NewNopLogger())
	ctx := context.Background()

	first, err := r.Related(ctx, "el_sprs")
	require.NoError(t, err)

	// Mutating the graph after the first resolution must not change the
	// memoized context within the same run.
	require.NoError(t, s.Relations().ReplaceAll(ctx, nil))
	second, err := r.Related(ctx, "el_sprs")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// countingRelations counts Neighborhood traversals so tests can assert each
// parent is resolved once.
type countingRelations struct {
	entity.RelationRepository

	mu    sync.Mutex
	calls int
}

func (c *countingRelations) Neighborhood(ctx context.Context, seeds []string, depth int) ([]string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.RelationRepository.Neighborhood(ctx, seeds, depth)
}

func TestRelated_ConcurrentChildrenShareOneResolution(t *testing.T) {
	t.Parallel()

	s := buildGraph(t)
	rel := &countingRelations{RelationRepository: s.Relations()}
	bridged := map[string][]string{
		"el_sprs": {"ent_sprs"},
		"el_esr":  {"ent_esr"},
	}
	r := contextres.New(rel, bridged, 2, logging.NewNopLogger())

	// Sibling ports of one module resolve their parent's context from many
	// scoring goroutines at once.
	const callers = 32
	parents := []string{"el_sprs", "el_esr"}
	results := make([][]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Related(context.Background(), parents[i%len(parents)])
		}(i)
	}
	wg.Wait()

	want := []string{"ent_esr", "ent_exception", "ent_sprs"}
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}

	// One traversal per distinct parent, no matter how many callers raced.
	assert.Equal(t, 2, rel.calls)
}

func TestContains(t *testing.T) {
	t.Parallel()

	set := []string{"ent_a", "ent_m", "ent_z"}
	assert.True(t, contextres.Contains(set, "ent_m"))
	assert.False(t, contextres.Contains(set, "ent_b"))
	assert.False(t, contextres.Contains(nil, "ent_a"))
}
