package config

// Default matching thresholds.  Modules demand the most evidence because a
// wrong module bridge poisons every port underneath it; architectural
// concepts tolerate the loosest match because their entities are broad.
const (
	defaultModuleThreshold        = 0.70
	defaultPortSignalThreshold    = 0.60
	defaultArchitecturalThreshold = 0.50
)

// ApplyDefaults fills every unset field with the platform default.  Explicit
// zero values the operator set deliberately cannot be distinguished from
// unset fields; anything that must be zero has to be valid at its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}

	if cfg.Similarity.Algorithm == "" {
		cfg.Similarity.Algorithm = "jaro_winkler"
	}
	if cfg.Similarity.StripPrefixes == nil {
		cfg.Similarity.StripPrefixes = []string{"or1200_", "or1k_"}
	}

	if cfg.Consolidator.MaxEditDistance == 0 {
		cfg.Consolidator.MaxEditDistance = 1
	}
	if cfg.Consolidator.MinConfidence == 0 {
		cfg.Consolidator.MinConfidence = 0.75
	}
	if cfg.Consolidator.BorderlineFloor == 0 {
		cfg.Consolidator.BorderlineFloor = 0.70
	}
	if cfg.Consolidator.ShortNameLength == 0 {
		cfg.Consolidator.ShortNameLength = 5
	}

	if cfg.Bridging.Thresholds == nil {
		cfg.Bridging.Thresholds = map[string]float64{
			"module":    defaultModuleThreshold,
			"port":      defaultPortSignalThreshold,
			"signal":    defaultPortSignalThreshold,
			"bus":       defaultArchitecturalThreshold,
			"clock":     defaultArchitecturalThreshold,
			"fsm":       defaultArchitecturalThreshold,
			"parameter": defaultArchitecturalThreshold,
			"memory":    defaultArchitecturalThreshold,
		}
	}
	if cfg.Bridging.ModuleMinNameSimilarity == 0 {
		cfg.Bridging.ModuleMinNameSimilarity = 0.35
	}
	if cfg.Bridging.MinNameLength == 0 {
		cfg.Bridging.MinNameLength = 2
	}
	if cfg.Bridging.CandidateLimit == 0 {
		cfg.Bridging.CandidateLimit = 50
	}
	if cfg.Bridging.ChunkSize == 0 {
		cfg.Bridging.ChunkSize = 100
	}
	if cfg.Bridging.ContextDepth == 0 {
		cfg.Bridging.ContextDepth = 2
	}
	if cfg.Bridging.ContextBoost == 0 {
		cfg.Bridging.ContextBoost = 1.20
	}
	if cfg.Bridging.ContextPenalty == 0 {
		cfg.Bridging.ContextPenalty = 0.95
	}

	if cfg.TypeCompatibility == nil {
		cfg.TypeCompatibility = map[string][]string{
			"module":    {"component", "module", "architecture_feature"},
			"port":      {"signal", "port", "interface"},
			"signal":    {"signal", "port", "register"},
			"bus":       {"bus", "interface", "architecture_feature"},
			"clock":     {"clock", "signal", "architecture_feature"},
			"fsm":       {"state_machine", "architecture_feature", "component"},
			"parameter": {"parameter", "configuration", "register"},
			"memory":    {"memory", "component", "architecture_feature"},
		}
	}

	if cfg.Acronyms == nil {
		cfg.Acronyms = map[string][]string{
			"alu": {"arithmetic logic unit"},
			"pc":  {"program counter"},
			"spr": {"special purpose register"},
			"mmu": {"memory management unit"},
			"pic": {"programmable interrupt controller"},
			"pm":  {"power management"},
			"tt":  {"tick timer"},
			"lsu": {"load store unit"},
			"fpu": {"floating point unit"},
			"cpu": {"central processing unit"},
		}
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.OpenSearch.IndexName == "" {
		cfg.OpenSearch.IndexName = "bridger-entities"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
}
