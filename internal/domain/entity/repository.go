package entity

import "context"

// Repository is the store-agnostic contract for the canonical entity set.
// Consolidation replaces the whole set each run; bridging reads it.
type Repository interface {
	// GetByID returns the entity with the given ID, or an
	// errors.ErrCodeNotFound AppError when absent.
	GetByID(ctx context.Context, id string) (*CanonicalEntity, error)

	// ListAll returns every canonical entity ordered by ID.
	ListAll(ctx context.Context) ([]*CanonicalEntity, error)

	// ReplaceAll atomically replaces the canonical entity set.
	ReplaceAll(ctx context.Context, entities []*CanonicalEntity) error
}

// RelationRepository is the contract for canonical relations and the bounded
// graph traversal the context resolver depends on.
type RelationRepository interface {
	// ReplaceAll atomically replaces the canonical relation set.
	ReplaceAll(ctx context.Context, relations []*CanonicalRelation) error

	// ListAll returns every canonical relation.
	ListAll(ctx context.Context) ([]*CanonicalRelation, error)

	// Neighborhood returns the IDs of entities reachable from any seed
	// within depth hops, in either edge direction, excluding the seeds
	// themselves.  Results are sorted and deduplicated.
	Neighborhood(ctx context.Context, seedIDs []string, depth int) ([]string, error)
}

// CandidateIndex is the retrieval contract the bridging engine queries for
// match candidates.  Implementations index normalized names and aliases and
// filter by entity type before scoring ever happens.
type CandidateIndex interface {
	// Search returns entities whose name or alias tokens match any of the
	// query terms, restricted to the given entity types, capped at limit.
	// Ordering is deterministic (relevance, then ID).
	Search(ctx context.Context, terms []string, types []string, limit int) ([]*CanonicalEntity, error)

	// Rebuild re-indexes the full canonical entity set after consolidation.
	Rebuild(ctx context.Context, entities []*CanonicalEntity) error
}

// RawSource supplies the immutable inputs to consolidation.
type RawSource interface {
	// ListRecords returns all raw records ordered by ID.
	ListRecords(ctx context.Context) ([]*RawRecord, error)

	// ListRelations returns all raw relations ordered by ID.
	ListRelations(ctx context.Context) ([]*RawRelation, error)
}
