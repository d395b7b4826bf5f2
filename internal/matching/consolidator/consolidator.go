// Package consolidator implements the two-stage entity deduplication pass:
// exact grouping on (type, normalized name), then fuzzy merging of near-
// duplicate entities through a union-find closure.  A final sweep remaps raw
// relations onto the surviving canonical entities.
//
// Consolidate is a pure computation over its inputs; committing the result
// to the stores is the caller's concern (see internal/application/jobs).
package consolidator

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/matching/similarity"
	"github.com/silicograph/bridger/internal/matching/unionfind"
)

// DescriptionSeparator joins member descriptions when groups collapse.
const DescriptionSeparator = " | "

// Config tunes the fuzzy merge stage.
type Config struct {
	// MaxEditDistance is the Levenshtein ceiling for merge eligibility.
	MaxEditDistance int

	// MinConfidence is the merge eligibility floor.
	MinConfidence float64

	// BorderlineFloor is the reporting floor: pairs scoring in
	// [BorderlineFloor, MinConfidence) are surfaced for review but never
	// merged.
	BorderlineFloor float64

	// ShortNameLength bounds the short-name rule: when the longer of two
	// normalized names has at most this many characters, confidence is
	// 1 − editDistance, which keeps distinct short names apart.
	ShortNameLength int
}

// DefaultConfig returns the production merge thresholds.
func DefaultConfig() Config {
	return Config{
		MaxEditDistance: 1,
		MinConfidence:   0.75,
		BorderlineFloor: 0.70,
		ShortNameLength: 5,
	}
}

// MergeCandidate is one scored stage-2 pair, reported for dry runs and
// borderline review.
type MergeCandidate struct {
	EntityA      string  `json:"entity_a"`
	EntityB      string  `json:"entity_b"`
	NameA        string  `json:"name_a"`
	NameB        string  `json:"name_b"`
	EditDistance int     `json:"edit_distance"`
	TokenOverlap float64 `json:"token_overlap"`
	Confidence   float64 `json:"confidence"`
	Eligible     bool    `json:"eligible"`
}

// Summary counts what one consolidation pass did.
type Summary struct {
	Records          int `json:"records"`
	Malformed        int `json:"malformed"`
	Stage1Entities   int `json:"stage1_entities"`
	EligiblePairs    int `json:"eligible_pairs"`
	BorderlinePairs  int `json:"borderline_pairs"`
	MergeGroups      int `json:"merge_groups"`
	EntitiesAbsorbed int `json:"entities_absorbed"`
	AmbiguousGroups  int `json:"ambiguous_groups"`
	Entities         int `json:"entities"`
	Relations        int `json:"relations"`
	RelationsSkipped int `json:"relations_skipped"`
}

// Result is the full output of one consolidation pass.
type Result struct {
	Entities  []*entity.CanonicalEntity
	Relations []*entity.CanonicalRelation

	// Candidates lists every reported stage-2 pair, eligible or borderline,
	// ordered by (EntityA, EntityB).
	Candidates []MergeCandidate

	// RecordToEntity maps each consolidated raw record ID to its canonical
	// entity.
	RecordToEntity map[string]string

	Summary Summary
}

// Consolidator runs the deduplication pass.
type Consolidator struct {
	cfg  Config
	norm *similarity.Normalizer
	log  logging.Logger
}

// New constructs a Consolidator.
func New(cfg Config, norm *similarity.Normalizer, log logging.Logger) *Consolidator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Consolidator{cfg: cfg, norm: norm, log: log.Named("consolidator")}
}

// Consolidate deduplicates records and remaps relations.  Malformed inputs
// are skipped and counted, never fatal.  The output is fully deterministic:
// identical inputs produce identical results regardless of input order.
func (c *Consolidator) Consolidate(records []*entity.RawRecord, relations []*entity.RawRelation) *Result {
	res := &Result{RecordToEntity: make(map[string]string)}

	groups := c.groupExact(records, res)
	entities := c.buildStage1Entities(groups, res)
	res.Summary.Stage1Entities = len(entities)

	entities = c.mergeFuzzy(entities, res)
	entity.SortEntities(entities)
	res.Entities = entities
	res.Summary.Entities = len(entities)

	res.Relations = c.sweepRelations(relations, res)
	res.Summary.Relations = len(res.Relations)

	c.log.Info("consolidation complete",
		logging.Int("records", res.Summary.Records),
		logging.Int("malformed", res.Summary.Malformed),
		logging.Int("stage1_entities", res.Summary.Stage1Entities),
		logging.Int("merge_groups", res.Summary.MergeGroups),
		logging.Int("entities", res.Summary.Entities),
		logging.Int("relations", res.Summary.Relations))
	return res
}

type exactGroup struct {
	entityType string
	normalized string
	members    []*entity.RawRecord
}

// groupExact is stage 1: bucket records by (type, normalized name).
func (c *Consolidator) groupExact(records []*entity.RawRecord, res *Result) []*exactGroup {
	byKey := make(map[string]*exactGroup)
	for _, r := range records {
		res.Summary.Records++
		if err := r.Validate(); err != nil {
			res.Summary.Malformed++
			c.log.Warn("skipping malformed record", logging.Err(err))
			continue
		}
		norm := c.norm.Normalize(r.Name)
		key := r.Type + "\x00" + norm
		g, ok := byKey[key]
		if !ok {
			g = &exactGroup{entityType: r.Type, normalized: norm}
			byKey[key] = g
		}
		g.members = append(g.members, r)
	}

	groups := make([]*exactGroup, 0, len(byKey))
	for _, g := range byKey {
		// Longest surface form first; ties alphabetically, then by ID.
		sort.Slice(g.members, func(i, j int) bool {
			a, b := g.members[i], g.members[j]
			la, lb := utf8.RuneCountInString(a.Name), utf8.RuneCountInString(b.Name)
			if la != lb {
				return la > lb
			}
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		})
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].entityType != groups[j].entityType {
			return groups[i].entityType < groups[j].entityType
		}
		return groups[i].normalized < groups[j].normalized
	})
	return groups
}

func (c *Consolidator) buildStage1Entities(groups []*exactGroup, res *Result) []*entity.CanonicalEntity {
	out := make([]*entity.CanonicalEntity, 0, len(groups))
	for _, g := range groups {
		primary := g.members[0]
		e := &entity.CanonicalEntity{
			ID:          entity.DeterministicID(g.entityType, g.normalized),
			PrimaryName: primary.Name,
			Type:        g.entityType,
		}

		aliasSet := make(map[string]struct{})
		descs := make([]string, 0, len(g.members))
		descSeen := make(map[string]struct{})
		prov := make([]string, 0, len(g.members))
		// Aliases carry every distinct surface form, the primary included, so
		// the full extraction vocabulary stays searchable.
		for _, m := range g.members {
			aliasSet[m.Name] = struct{}{}
			if d := strings.TrimSpace(m.Description); d != "" {
				if _, dup := descSeen[d]; !dup {
					descSeen[d] = struct{}{}
					descs = append(descs, d)
				}
			}
			prov = append(prov, m.ID)
			res.RecordToEntity[m.ID] = e.ID
		}
		e.Aliases = sortedKeys(aliasSet)
		e.Description = strings.Join(descs, DescriptionSeparator)
		sort.Strings(prov)
		e.Provenance = prov
		out = append(out, e)
	}
	return out
}

// mergeFuzzy is stage 2: score same-type pairs, close eligible pairs
// transitively, and collapse each component onto its primary entity.
func (c *Consolidator) mergeFuzzy(entities []*entity.CanonicalEntity, res *Result) []*entity.CanonicalEntity {
	byType := make(map[string][]*entity.CanonicalEntity)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	byID := make(map[string]*entity.CanonicalEntity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	ds := unionfind.New()
	for _, t := range types {
		part := byType[t]
		entity.SortEntities(part)
		for i := 0; i < len(part); i++ {
			for j := i + 1; j < len(part); j++ {
				cand, ok := c.scorePair(part[i], part[j])
				if !ok {
					continue
				}
				res.Candidates = append(res.Candidates, cand)
				if cand.Eligible {
					res.Summary.EligiblePairs++
					ds.Union(cand.EntityA, cand.EntityB)
				} else {
					res.Summary.BorderlinePairs++
				}
			}
		}
	}

	sort.Slice(res.Candidates, func(i, j int) bool {
		if res.Candidates[i].EntityA != res.Candidates[j].EntityA {
			return res.Candidates[i].EntityA < res.Candidates[j].EntityA
		}
		return res.Candidates[i].EntityB < res.Candidates[j].EntityB
	})

	components := ds.Components()
	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	absorbed := make(map[string]struct{})
	for _, k := range keys {
		memberIDs := components[k]
		members := make([]*entity.CanonicalEntity, 0, len(memberIDs))
		for _, id := range memberIDs {
			members = append(members, byID[id])
		}

		// Type uniformity is guaranteed by per-type partitioning; re-check
		// anyway so a future retrieval change cannot silently merge across
		// types.  A conflicting group is flagged and left unmerged.
		if !sameType(members) {
			res.Summary.AmbiguousGroups++
			c.log.Warn("ambiguous merge group spans types; skipping",
				logging.String("representative", k),
				logging.Int("members", len(members)))
			continue
		}

		primary := mergePrimary(members)
		c.absorb(primary, members, res)
		res.Summary.MergeGroups++
		for _, m := range members {
			if m.ID != primary.ID {
				absorbed[m.ID] = struct{}{}
				res.Summary.EntitiesAbsorbed++
			}
		}
	}

	out := make([]*entity.CanonicalEntity, 0, len(entities)-len(absorbed))
	for _, e := range entities {
		if _, gone := absorbed[e.ID]; !gone {
			out = append(out, e)
		}
	}
	return out
}

// scorePair computes the merge confidence for one same-type pair.  The
// second return is false when the pair is not even reportable.
func (c *Consolidator) scorePair(a, b *entity.CanonicalEntity) (MergeCandidate, bool) {
	na, nb := c.norm.Normalize(a.PrimaryName), c.norm.Normalize(b.PrimaryName)
	dist := similarity.EditDistance(na, nb)
	if dist == 0 || dist > c.cfg.MaxEditDistance {
		return MergeCandidate{}, false
	}

	maxLen := utf8.RuneCountInString(na)
	if l := utf8.RuneCountInString(nb); l > maxLen {
		maxLen = l
	}
	overlap := similarity.TokenJaccard(na, nb)

	var confidence float64
	if maxLen <= c.cfg.ShortNameLength {
		// Short names: a single edit is a different identifier, not a typo.
		confidence = 1 - float64(dist)
	} else {
		levScore := 1 - float64(dist)/float64(maxLen)
		confidence = 0.6*levScore + 0.4*overlap
	}
	if confidence < 0 {
		confidence = 0
	}

	if confidence < c.cfg.BorderlineFloor {
		return MergeCandidate{}, false
	}
	return MergeCandidate{
		EntityA:      a.ID,
		EntityB:      b.ID,
		NameA:        a.PrimaryName,
		NameB:        b.PrimaryName,
		EditDistance: dist,
		TokenOverlap: overlap,
		Confidence:   confidence,
		Eligible:     confidence >= c.cfg.MinConfidence,
	}, true
}

// absorb folds every member into primary in place.
func (c *Consolidator) absorb(primary *entity.CanonicalEntity, members []*entity.CanonicalEntity, res *Result) {
	aliasSet := make(map[string]struct{})
	for _, a := range primary.Aliases {
		aliasSet[a] = struct{}{}
	}
	descs := []string{}
	descSeen := map[string]struct{}{}
	for _, d := range strings.Split(primary.Description, DescriptionSeparator) {
		if d = strings.TrimSpace(d); d != "" {
			descSeen[d] = struct{}{}
			descs = append(descs, d)
		}
	}
	provSet := make(map[string]struct{})
	for _, p := range primary.Provenance {
		provSet[p] = struct{}{}
	}

	// Members arrive sorted by ID, so alias, description, and provenance
	// accumulation is order-stable.
	for _, m := range members {
		if m.ID == primary.ID {
			continue
		}
		aliasSet[m.PrimaryName] = struct{}{}
		for _, a := range m.Aliases {
			aliasSet[a] = struct{}{}
		}
		for _, d := range strings.Split(m.Description, DescriptionSeparator) {
			if d = strings.TrimSpace(d); d != "" {
				if _, dup := descSeen[d]; !dup {
					descSeen[d] = struct{}{}
					descs = append(descs, d)
				}
			}
		}
		for _, p := range m.Provenance {
			provSet[p] = struct{}{}
			res.RecordToEntity[p] = primary.ID
		}
	}

	primary.Aliases = sortedKeys(aliasSet)
	primary.Description = strings.Join(descs, DescriptionSeparator)
	primary.Provenance = sortedKeys(provSet)
}

// sweepRelations remaps raw relations onto canonical endpoints and
// deduplicates them by (from, to, type).
func (c *Consolidator) sweepRelations(relations []*entity.RawRelation, res *Result) []*entity.CanonicalRelation {
	type relKey struct{ from, to, typ string }
	dedup := make(map[relKey]*entity.CanonicalRelation)

	sorted := append([]*entity.RawRelation(nil), relations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, r := range sorted {
		if err := r.Validate(); err != nil {
			res.Summary.RelationsSkipped++
			continue
		}
		from, okF := res.RecordToEntity[r.FromRecordID]
		to, okT := res.RecordToEntity[r.ToRecordID]
		if !okF || !okT {
			res.Summary.RelationsSkipped++
			continue
		}
		// Merging can collapse both endpoints onto one entity; drop the
		// resulting self-loop.
		if from == to {
			res.Summary.RelationsSkipped++
			continue
		}
		key := relKey{from, to, r.Type}
		cr, ok := dedup[key]
		if !ok {
			cr = &entity.CanonicalRelation{FromEntityID: from, ToEntityID: to, Type: r.Type}
			dedup[key] = cr
		}
		cr.Provenance = append(cr.Provenance, r.ID)
	}

	out := make([]*entity.CanonicalRelation, 0, len(dedup))
	for _, cr := range dedup {
		sort.Strings(cr.Provenance)
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromEntityID != out[j].FromEntityID {
			return out[i].FromEntityID < out[j].FromEntityID
		}
		if out[i].ToEntityID != out[j].ToEntityID {
			return out[i].ToEntityID < out[j].ToEntityID
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func sameType(members []*entity.CanonicalEntity) bool {
	for i := 1; i < len(members); i++ {
		if members[i].Type != members[0].Type {
			return false
		}
	}
	return true
}

// mergePrimary picks the surviving entity of a merge group: longest primary
// name, ties broken alphabetically, then by ID.
func mergePrimary(members []*entity.CanonicalEntity) *entity.CanonicalEntity {
	best := members[0]
	for _, m := range members[1:] {
		lb, lm := utf8.RuneCountInString(best.PrimaryName), utf8.RuneCountInString(m.PrimaryName)
		switch {
		case lm > lb:
			best = m
		case lm == lb && m.PrimaryName < best.PrimaryName:
			best = m
		case lm == lb && m.PrimaryName == best.PrimaryName && m.ID < best.ID:
			best = m
		}
	}
	return best
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
