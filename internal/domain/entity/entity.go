// Package entity defines the canonical knowledge-graph types produced by
// consolidation: raw extraction records, deduplicated canonical entities, and
// the relations between them.  Store-agnostic repository contracts live in
// repository.go; infrastructure packages provide the implementations.
package entity

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/silicograph/bridger/pkg/errors"
)

// RawRecord is one entity mention emitted by the upstream extraction stage.
// Records are immutable inputs; the consolidator never modifies them.
type RawRecord struct {
	// ID uniquely identifies the record in the staging store.
	ID string `json:"id"`

	// Name is the surface form as extracted from documentation.
	Name string `json:"name"`

	// Type is the extraction-assigned entity type (e.g. "signal",
	// "architecture_feature", "instruction").
	Type string `json:"type"`

	// Description is free-text context captured alongside the mention.
	Description string `json:"description,omitempty"`

	// Provenance names the source document or chunk the record came from.
	Provenance string `json:"provenance,omitempty"`
}

// Validate reports whether the record is well-formed enough to consolidate.
// Malformed records are skipped and counted, never fatal.
func (r *RawRecord) Validate() error {
	if r == nil {
		return errors.New(errors.ErrCodeMalformedRecord, "record is nil")
	}
	if strings.TrimSpace(r.ID) == "" {
		return errors.New(errors.ErrCodeMalformedRecord, "record has no id")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New(errors.ErrCodeMalformedRecord, "record has no name").WithDetail("id=" + r.ID)
	}
	if strings.TrimSpace(r.Type) == "" {
		return errors.New(errors.ErrCodeMalformedRecord, "record has no type").WithDetail("id=" + r.ID)
	}
	return nil
}

// RawRelation is an extraction-level edge between two raw records.  The
// consolidator remaps these onto canonical entities after merging.
type RawRelation struct {
	ID           string `json:"id"`
	FromRecordID string `json:"from_record_id"`
	ToRecordID   string `json:"to_record_id"`
	Type         string `json:"type"`
}

// Validate reports whether the relation references both endpoints.
func (r *RawRelation) Validate() error {
	if r == nil {
		return errors.New(errors.ErrCodeMalformedRecord, "relation is nil")
	}
	if strings.TrimSpace(r.FromRecordID) == "" || strings.TrimSpace(r.ToRecordID) == "" {
		return errors.New(errors.ErrCodeMalformedRecord, "relation is missing an endpoint").WithDetail("id=" + r.ID)
	}
	return nil
}

// CanonicalEntity is the deduplicated output of consolidation.  IDs are
// deterministic so repeated runs over unchanged inputs produce identical
// entities.
type CanonicalEntity struct {
	ID          string   `json:"id"`
	PrimaryName string   `json:"primary_name"`
	Aliases     []string `json:"aliases,omitempty"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`

	// Provenance lists the raw record IDs absorbed into this entity.
	// Invariant: never empty for a persisted entity.
	Provenance []string `json:"provenance"`
}

// Validate enforces the canonical-entity invariants before commit.
func (e *CanonicalEntity) Validate() error {
	if e == nil {
		return errors.InvalidParam("entity is nil")
	}
	if e.ID == "" || e.PrimaryName == "" || e.Type == "" {
		return errors.InvalidParam("entity is missing id, name, or type").WithDetail("id=" + e.ID)
	}
	if len(e.Provenance) == 0 {
		return errors.New(errors.ErrCodeValidation, "entity has empty provenance").WithDetail("id=" + e.ID)
	}
	return nil
}

// HasAlias reports whether name appears among the entity's aliases.
func (e *CanonicalEntity) HasAlias(name string) bool {
	for _, a := range e.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

// CanonicalRelation is a deduplicated edge between canonical entities.  The
// context resolver walks these during bridging.
type CanonicalRelation struct {
	FromEntityID string   `json:"from_entity_id"`
	ToEntityID   string   `json:"to_entity_id"`
	Type         string   `json:"type"`
	Provenance   []string `json:"provenance,omitempty"`
}

// DeterministicID derives a stable entity ID from the entity type and the
// normalized primary name.  The same (type, name) pair always maps to the
// same ID across runs.
func DeterministicID(entityType, normalizedName string) string {
	sum := md5.Sum([]byte(entityType + ":" + normalizedName))
	return "ent_" + hex.EncodeToString(sum[:])
}

// SortEntities orders entities by ID for deterministic iteration and commit
// order.
func SortEntities(entities []*CanonicalEntity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
}
