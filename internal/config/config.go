// Package config defines the pipeline configuration: matching parameters,
// store backends, and infrastructure connections.  No I/O lives in this file,
// only data types and validation; loading is in loader.go and defaults in
// defaults.go.
package config

import (
	"fmt"

	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/infrastructure/database/neo4j"
	"github.com/silicograph/bridger/internal/infrastructure/database/postgres"
	"github.com/silicograph/bridger/internal/infrastructure/database/redis"
	"github.com/silicograph/bridger/internal/infrastructure/messaging/kafka"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/infrastructure/search/opensearch"
	"github.com/silicograph/bridger/pkg/errors"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendServices = "services"
)

// StoreConfig selects where the pipeline keeps its state.  The memory
// backend serves tests and dry runs; the services backend wires Postgres
// staging, the Neo4j graph, and the OpenSearch candidate index together.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`

	// LockEnabled serialises runs through the Redis mutex so two pipelines
	// never rebuild the graph concurrently.
	LockEnabled bool `mapstructure:"lock_enabled"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SimilarityConfig selects the scoring algorithm and name normalization.
type SimilarityConfig struct {
	// Algorithm names the string scorer; "jaro_winkler" is the only
	// supported value.
	Algorithm string `mapstructure:"algorithm"`

	// StripPrefixes lists design-specific name prefixes removed during
	// normalization (e.g. "or1200_").
	StripPrefixes []string `mapstructure:"strip_prefixes"`
}

// ConsolidatorConfig tunes the entity merge stage.
type ConsolidatorConfig struct {
	MaxEditDistance int     `mapstructure:"max_edit_distance"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	BorderlineFloor float64 `mapstructure:"borderline_floor"`
	ShortNameLength int     `mapstructure:"short_name_length"`
}

// BridgingConfig tunes the element-to-entity matching stage.
type BridgingConfig struct {
	// Thresholds maps element roles to the minimum final score a match
	// must reach to produce a bridge.
	Thresholds map[string]float64 `mapstructure:"thresholds"`

	// ModuleMinNameSimilarity is the floor on the unboosted base-name score
	// for module elements; boosts and context never lift a module match
	// over a candidate whose raw name similarity is below this.
	ModuleMinNameSimilarity float64 `mapstructure:"module_min_name_similarity"`

	// MinNameLength rejects normalized element names shorter than this
	// before any candidate lookup happens.
	MinNameLength int `mapstructure:"min_name_length"`

	CandidateLimit int `mapstructure:"candidate_limit"`
	ChunkSize      int `mapstructure:"chunk_size"`
	Concurrency    int `mapstructure:"concurrency"`

	// ContextDepth bounds the relation-graph walk around a port's parent
	// module when computing the context set.
	ContextDepth   int     `mapstructure:"context_depth"`
	ContextBoost   float64 `mapstructure:"context_boost"`
	ContextPenalty float64 `mapstructure:"context_penalty"`
}

// Config is the root configuration.
type Config struct {
	Store        StoreConfig        `mapstructure:"store"`
	Log          logging.LogConfig  `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Similarity   SimilarityConfig   `mapstructure:"similarity"`
	Consolidator ConsolidatorConfig `mapstructure:"consolidator"`
	Bridging     BridgingConfig     `mapstructure:"bridging"`

	// TypeCompatibility maps element roles to the entity types they may
	// bridge to.  A role absent from the map bridges to nothing.
	TypeCompatibility map[string][]string `mapstructure:"type_compatibility"`

	// Acronyms maps short tokens to their expansions, applied during name
	// normalization (e.g. "alu" -> "arithmetic logic unit").
	Acronyms map[string][]string `mapstructure:"acronyms"`

	Postgres   postgres.Config   `mapstructure:"postgres"`
	Neo4j      neo4j.Config      `mapstructure:"neo4j"`
	OpenSearch opensearch.Config `mapstructure:"opensearch"`
	Redis      redis.Config      `mapstructure:"redis"`
	Kafka      kafka.Config      `mapstructure:"kafka"`
}

// Validate checks the cross-field invariants the matching stages rely on.
func (c *Config) Validate() error {
	if c.Store.Backend != BackendMemory && c.Store.Backend != BackendServices {
		return errors.InvalidParam("store.backend must be \"memory\" or \"services\"").
			WithDetail("backend=" + c.Store.Backend)
	}

	if c.Consolidator.MinConfidence < 0 || c.Consolidator.MinConfidence > 1 {
		return errors.New(errors.ErrCodeThresholdInvalid, "consolidator.min_confidence out of range")
	}
	if c.Consolidator.BorderlineFloor > c.Consolidator.MinConfidence {
		return errors.New(errors.ErrCodeThresholdInvalid,
			"consolidator.borderline_floor exceeds min_confidence")
	}
	if c.Consolidator.MaxEditDistance < 0 {
		return errors.InvalidParam("consolidator.max_edit_distance must be >= 0")
	}

	for role, threshold := range c.Bridging.Thresholds {
		if !element.Role(role).IsValid() {
			return errors.New(errors.ErrCodeUnknownRole, "bridging.thresholds names an unknown role").
				WithDetail("role=" + role)
		}
		if threshold < 0 || threshold > 1 {
			return errors.New(errors.ErrCodeThresholdInvalid, "bridging threshold out of range").
				WithDetail(fmt.Sprintf("role=%s threshold=%f", role, threshold))
		}
	}
	if c.Bridging.ModuleMinNameSimilarity < 0 || c.Bridging.ModuleMinNameSimilarity > 1 {
		return errors.New(errors.ErrCodeThresholdInvalid, "bridging.module_min_name_similarity out of range")
	}
	if c.Bridging.MinNameLength < 1 {
		return errors.InvalidParam("bridging.min_name_length must be >= 1")
	}
	if c.Bridging.ContextDepth < 1 {
		return errors.InvalidParam("bridging.context_depth must be >= 1")
	}
	if c.Bridging.ContextBoost < 1 {
		return errors.New(errors.ErrCodeThresholdInvalid, "bridging.context_boost must be >= 1")
	}
	if c.Bridging.ContextPenalty <= 0 || c.Bridging.ContextPenalty > 1 {
		return errors.New(errors.ErrCodeThresholdInvalid, "bridging.context_penalty must be in (0, 1]")
	}
	if c.Bridging.ChunkSize < 1 {
		return errors.InvalidParam("bridging.chunk_size must be >= 1")
	}

	for role := range c.TypeCompatibility {
		if !element.Role(role).IsValid() {
			return errors.New(errors.ErrCodeUnknownRole, "type_compatibility names an unknown role").
				WithDetail("role=" + role)
		}
	}

	if c.Store.Backend == BackendServices {
		if c.Postgres.Host == "" {
			return errors.InvalidParam("postgres.host is required with the services backend")
		}
		if c.Neo4j.URI == "" {
			return errors.InvalidParam("neo4j.uri is required with the services backend")
		}
		if len(c.OpenSearch.Addresses) == 0 {
			return errors.InvalidParam("opensearch.addresses is required with the services backend")
		}
	}
	return nil
}

// RoleThreshold returns the bridging threshold for a role, falling back to
// the architectural default when the role is unconfigured.
func (c *Config) RoleThreshold(role element.Role) float64 {
	if t, ok := c.Bridging.Thresholds[string(role)]; ok {
		return t
	}
	return defaultArchitecturalThreshold
}
