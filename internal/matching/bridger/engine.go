// Package bridger implements the semantic bridging engine: it scores every
// structural element against the canonical entity set and commits at most one
// bridge per element.  Bridging runs in three stages (architectural
// concepts, then modules, then ports and signals) so that each stage's
// bridges feed the graph context of the next.
package bridger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/silicograph/bridger/internal/domain/bridge"
	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/prometheus"
	"github.com/silicograph/bridger/internal/matching/compat"
	"github.com/silicograph/bridger/internal/matching/contextres"
	"github.com/silicograph/bridger/internal/matching/similarity"
	"github.com/silicograph/bridger/internal/pipeline"
	"github.com/silicograph/bridger/pkg/errors"
)

// Config tunes the engine.  Zero values select the platform defaults.
type Config struct {
	// Algorithm selects the similarity scorer.
	Algorithm string

	// StripPrefixes feeds name normalization.
	StripPrefixes []string

	// Acronyms feeds query-term expansion.
	Acronyms map[string][]string

	// Thresholds maps roles to the minimum final score for a bridge.
	Thresholds map[element.Role]float64

	// ModuleMinNameSimilarity floors the unboosted base-name score for
	// module elements.  A module candidate below the floor is discarded no
	// matter how strong its boosts or context are.
	ModuleMinNameSimilarity float64

	// MinNameLength rejects normalized names shorter than this before any
	// candidate retrieval.
	MinNameLength int

	CandidateLimit int
	ChunkSize      int
	Concurrency    int

	ContextDepth   int
	ContextBoost   float64
	ContextPenalty float64
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{
		Algorithm: similarity.AlgorithmJaroWinkler,
		Thresholds: map[element.Role]float64{
			element.RoleModule:    0.70,
			element.RolePort:      0.60,
			element.RoleSignal:    0.60,
			element.RoleBus:       0.50,
			element.RoleClock:     0.50,
			element.RoleFSM:       0.50,
			element.RoleParameter: 0.50,
			element.RoleMemory:    0.50,
		},
		ModuleMinNameSimilarity: 0.35,
		MinNameLength:           2,
		CandidateLimit:          50,
		ChunkSize:               100,
		ContextDepth:            2,
		ContextBoost:            1.20,
		ContextPenalty:          0.95,
	}
}

// Deps carries the engine's collaborators.  Scorer is optional; when nil the
// engine builds one from Config.Algorithm.
type Deps struct {
	Elements  element.Source
	Index     entity.CandidateIndex
	Relations entity.RelationRepository
	Bridges   bridge.Repository
	Scorer    similarity.Scorer
	Metrics   *prometheus.Metrics
	Logger    logging.Logger
}

// StageSummary reports one bridging stage.
type StageSummary struct {
	Stage      string  `json:"stage"`
	Elements   int     `json:"elements"`
	Bridged    int     `json:"bridged"`
	DurationMs float64 `json:"duration_ms"`
}

// Summary reports a whole bridging run.
type Summary struct {
	Elements       int            `json:"elements"`
	Bridged        int            `json:"bridged"`
	Unresolved     int            `json:"unresolved"`
	Failed         int            `json:"failed"`
	ContextBoosted int            `json:"context_boosted"`
	BridgedByRole  map[string]int `json:"bridged_by_role"`
	Stages         []StageSummary `json:"stages"`
}

// Result is the outcome of one run.
type Result struct {
	Bridges []*bridge.Bridge
	Summary Summary
}

// Engine scores elements and commits bridges.  An Engine is single-use per
// Run but holds no state between runs; identical inputs produce identical
// bridge sets.
type Engine struct {
	cfg      Config
	scorer   similarity.Scorer
	norm     *similarity.Normalizer
	expander *similarity.Expander
	matrix   *compat.Matrix

	elements  element.Source
	index     entity.CandidateIndex
	relations entity.RelationRepository
	bridges   bridge.Repository

	metrics *prometheus.Metrics
	log     logging.Logger
}

// NewEngine validates the configuration and wires the engine together.
// compatibility maps role names to permitted entity types.
func NewEngine(cfg Config, compatibility map[string][]string, deps Deps) (*Engine, error) {
	if cfg.MinNameLength < 1 {
		cfg.MinNameLength = 2
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 50
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.ContextDepth < 1 {
		cfg.ContextDepth = 2
	}
	if cfg.ContextBoost == 0 {
		cfg.ContextBoost = 1.20
	}
	if cfg.ContextPenalty == 0 {
		cfg.ContextPenalty = 0.95
	}
	for role, threshold := range cfg.Thresholds {
		if threshold < 0 || threshold > 1 {
			return nil, errors.New(errors.ErrCodeThresholdInvalid, "bridging threshold out of range").
				WithDetail(fmt.Sprintf("role=%s threshold=%f", role, threshold))
		}
	}

	scorer := deps.Scorer
	if scorer == nil {
		var err error
		scorer, err = similarity.NewScorer(cfg.Algorithm)
		if err != nil {
			return nil, err
		}
	}

	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	return &Engine{
		cfg:       cfg,
		scorer:    scorer,
		norm:      similarity.NewNormalizer(cfg.StripPrefixes),
		expander:  similarity.NewExpander(cfg.Acronyms),
		matrix:    compat.NewMatrix(compatibility),
		elements:  deps.Elements,
		index:     deps.Index,
		relations: deps.Relations,
		bridges:   deps.Bridges,
		metrics:   deps.Metrics,
		log:       log.Named("bridger"),
	}, nil
}

// stages orders bridging so parents are resolved before their children:
// architectural concepts carry no parent dependency, modules anchor the
// hierarchy, and ports/signals inherit context from their parent module.
var stages = []struct {
	name  string
	roles []element.Role
}{
	{"architectural", element.ArchitecturalRoles},
	{"modules", []element.Role{element.RoleModule}},
	{"ports", []element.Role{element.RolePort, element.RoleSignal}},
}

// Run executes all three stages and commits bridges in chunks.  A store
// failure mid-commit aborts the run; chunks already committed stay, and the
// next run replaces them identically because scoring is deterministic.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	result := &Result{Summary: Summary{BridgedByRole: make(map[string]int)}}
	bridgedBy := make(map[string][]string)

	for _, stage := range stages {
		started := time.Now()

		elements, err := e.listStageElements(ctx, stage.roles)
		if err != nil {
			return result, err
		}
		resolver := contextres.New(e.relations, bridgedBy, e.cfg.ContextDepth, e.log)

		stageBridges, err := e.scoreStage(ctx, elements, resolver, &result.Summary)
		if err != nil {
			return result, err
		}

		if err := e.commitStage(ctx, elements, stageBridges); err != nil {
			return result, err
		}
		for _, b := range stageBridges {
			bridgedBy[b.FromElementID] = append(bridgedBy[b.FromElementID], b.ToEntityID)
		}
		result.Bridges = append(result.Bridges, stageBridges...)

		elapsed := time.Since(started)
		result.Summary.Stages = append(result.Summary.Stages, StageSummary{
			Stage:      stage.name,
			Elements:   len(elements),
			Bridged:    len(stageBridges),
			DurationMs: float64(elapsed.Microseconds()) / 1000.0,
		})
		e.metrics.ObserveStage(stage.name, elapsed.Seconds())
		e.log.Info("bridging stage completed",
			logging.String("stage", stage.name),
			logging.Int("elements", len(elements)),
			logging.Int("bridged", len(stageBridges)),
			logging.Duration("elapsed", elapsed))
	}

	if err := e.accountUnknownRoles(ctx, &result.Summary); err != nil {
		return result, err
	}

	bridge.Sort(result.Bridges)
	return result, nil
}

// accountUnknownRoles surfaces elements whose role matches no stage.  They
// can never bridge, but silently dropping them would make the summary lie
// about the input size.
func (e *Engine) accountUnknownRoles(ctx context.Context, summary *Summary) error {
	all, err := e.elements.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "element listing failed")
	}
	for _, el := range all {
		if el.Role.IsValid() {
			continue
		}
		summary.Elements++
		summary.Failed++
		summary.Unresolved++
		e.log.Warn("element has unknown role",
			logging.String("element", el.ID), logging.String("role", string(el.Role)))
		if e.metrics != nil {
			e.metrics.ElementsUnresolved.WithLabelValues(string(el.Role)).Inc()
		}
	}
	return nil
}

func (e *Engine) listStageElements(ctx context.Context, roles []element.Role) ([]*element.StructuralElement, error) {
	var out []*element.StructuralElement
	for _, role := range roles {
		elements, err := e.elements.ListByRole(ctx, role)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreQueryFailed, "element listing failed").
				WithDetail("role=" + string(role))
		}
		out = append(out, elements...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (e *Engine) scoreStage(ctx context.Context, elements []*element.StructuralElement, resolver *contextres.Resolver, summary *Summary) ([]*bridge.Bridge, error) {
	opts := []pipeline.Option{}
	if e.cfg.Concurrency > 0 {
		opts = append(opts, pipeline.WithMaxConcurrency(e.cfg.Concurrency))
	}
	runner := pipeline.NewRunner[*element.StructuralElement, *bridge.Bridge](opts...)

	batch, err := runner.Run(ctx, elements, func(ctx context.Context, el *element.StructuralElement) (*bridge.Bridge, error) {
		return e.matchElement(ctx, el, resolver)
	})
	if err != nil {
		return nil, err
	}

	var out []*bridge.Bridge
	for i, res := range batch.Results {
		el := elements[i]
		summary.Elements++
		if e.metrics != nil {
			e.metrics.ElementsProcessed.WithLabelValues(string(el.Role)).Inc()
		}

		if res == nil || res.Error != nil {
			summary.Failed++
			summary.Unresolved++
			if res != nil && res.Error != nil {
				e.log.Warn("element scoring failed",
					logging.String("element", el.ID), logging.Err(res.Error))
			}
			if e.metrics != nil {
				e.metrics.ElementsUnresolved.WithLabelValues(string(el.Role)).Inc()
			}
			continue
		}
		if res.Result == nil {
			summary.Unresolved++
			if e.metrics != nil {
				e.metrics.ElementsUnresolved.WithLabelValues(string(el.Role)).Inc()
			}
			continue
		}

		b := res.Result
		out = append(out, b)
		summary.Bridged++
		summary.BridgedByRole[string(el.Role)]++
		if b.ContextFlag {
			summary.ContextBoosted++
		}
		if e.metrics != nil {
			e.metrics.BridgesCreated.WithLabelValues(string(el.Role)).Inc()
			if b.ContextFlag {
				e.metrics.ContextBoosted.Inc()
			}
		}
	}
	bridge.Sort(out)
	return out, nil
}

// matchElement scores one element against its candidate set and returns the
// winning bridge, or nil when the element stays unbridged.  A nil, nil
// return is the normal "no good match" outcome, never an error.
func (e *Engine) matchElement(ctx context.Context, el *element.StructuralElement, resolver *contextres.Resolver) (*bridge.Bridge, error) {
	if err := el.Validate(); err != nil {
		return nil, err
	}

	normalized := e.norm.Normalize(el.Name)
	if len([]rune(normalized)) < e.cfg.MinNameLength {
		return nil, nil
	}

	terms := []string{normalized}
	if expanded, changed := e.expander.ExpandName(normalized); changed {
		terms = append(terms, expanded)
	}

	types := e.matrix.CompatibleTypes(el.Role)
	if len(types) == 0 {
		return nil, nil
	}

	candidates, err := e.index.Search(ctx, terms, types, e.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	contextSet, err := resolver.Related(ctx, el.ParentID)
	if err != nil {
		return nil, err
	}

	var (
		bestID    string
		bestScore = -1.0
		bestFlag  bool
	)
	for _, cand := range candidates {
		// The index already filters by type; re-gate anyway so a stale or
		// overly broad index can never produce an incompatible bridge.
		if !e.matrix.Allows(el.Role, cand.Type) {
			continue
		}

		boosted, base := e.scoreCandidate(terms, cand)
		if el.Role == element.RoleModule && base < e.cfg.ModuleMinNameSimilarity {
			continue
		}

		score := boosted
		flag := false
		if len(contextSet) > 0 {
			if contextres.Contains(contextSet, cand.ID) {
				score *= e.cfg.ContextBoost
				flag = true
			} else {
				score *= e.cfg.ContextPenalty
			}
		}
		score = clamp01(score)

		if score > bestScore || (score == bestScore && cand.ID < bestID) {
			bestID = cand.ID
			bestScore = score
			bestFlag = flag
		}
	}

	if bestID == "" || bestScore < e.threshold(el.Role) {
		return nil, nil
	}
	return &bridge.Bridge{
		FromElementID: el.ID,
		ToEntityID:    bestID,
		Score:         bestScore,
		Method:        bridge.MethodJaroWinkler,
		ContextFlag:   bestFlag,
	}, nil
}

// scoreCandidate scores the query terms against the candidate's primary name
// and every alias, returning the best boosted score and the best unboosted
// base score.
func (e *Engine) scoreCandidate(terms []string, cand *entity.CanonicalEntity) (boosted, base float64) {
	names := make([]string, 0, 1+len(cand.Aliases))
	names = append(names, e.norm.Normalize(cand.PrimaryName))
	for _, alias := range cand.Aliases {
		names = append(names, e.norm.Normalize(alias))
	}
	for _, name := range names {
		b, raw := similarity.BestScore(e.scorer, terms, name)
		if b > boosted {
			boosted = b
		}
		if raw > base {
			base = raw
		}
	}
	return boosted, base
}

func (e *Engine) threshold(role element.Role) float64 {
	if t, ok := e.cfg.Thresholds[role]; ok {
		return t
	}
	// Unconfigured roles fall back to the strictest threshold.
	return 1.0
}

// commitStage replaces bridges chunk by chunk in element-ID order.  Every
// element of the stage appears in exactly one chunk, so elements that scored
// no bridge have their stale bridges cleared by the same call.
func (e *Engine) commitStage(ctx context.Context, elements []*element.StructuralElement, bridges []*bridge.Bridge) error {
	byElement := make(map[string]*bridge.Bridge, len(bridges))
	for _, b := range bridges {
		byElement[b.FromElementID] = b
	}

	for start := 0; start < len(elements); start += e.cfg.ChunkSize {
		end := start + e.cfg.ChunkSize
		if end > len(elements) {
			end = len(elements)
		}
		ids := make([]string, 0, end-start)
		chunk := make([]*bridge.Bridge, 0, end-start)
		for _, el := range elements[start:end] {
			ids = append(ids, el.ID)
			if b, ok := byElement[el.ID]; ok {
				chunk = append(chunk, b)
			}
		}
		if err := e.bridges.ReplaceForElements(ctx, ids, chunk); err != nil {
			e.metrics.IncStoreError("bridges")
			return errors.Wrap(err, errors.ErrCodeBridgeCommitFailed, "bridge chunk commit failed").
				WithDetail(fmt.Sprintf("chunk=%d..%d", start, end))
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
