package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/pkg/errors"
)

func defaulted() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := defaulted()

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "jaro_winkler", cfg.Similarity.Algorithm)
	assert.Contains(t, cfg.Similarity.StripPrefixes, "or1200_")

	assert.Equal(t, 1, cfg.Consolidator.MaxEditDistance)
	assert.Equal(t, 0.75, cfg.Consolidator.MinConfidence)
	assert.Equal(t, 0.70, cfg.Consolidator.BorderlineFloor)
	assert.Equal(t, 5, cfg.Consolidator.ShortNameLength)

	assert.Equal(t, 0.70, cfg.Bridging.Thresholds["module"])
	assert.Equal(t, 0.60, cfg.Bridging.Thresholds["port"])
	assert.Equal(t, 0.60, cfg.Bridging.Thresholds["signal"])
	assert.Equal(t, 0.50, cfg.Bridging.Thresholds["clock"])
	assert.Equal(t, 0.35, cfg.Bridging.ModuleMinNameSimilarity)
	assert.Equal(t, 2, cfg.Bridging.MinNameLength)
	assert.Equal(t, 1.20, cfg.Bridging.ContextBoost)
	assert.Equal(t, 0.95, cfg.Bridging.ContextPenalty)

	assert.Contains(t, cfg.TypeCompatibility["module"], "component")
	assert.Contains(t, cfg.Acronyms["alu"], "arithmetic logic unit")
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()
	require.NoError(t, defaulted().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode errors.ErrorCode
	}{
		{
			name:     "unknown backend",
			mutate:   func(c *Config) { c.Store.Backend = "etcd" },
			wantCode: errors.ErrCodeInvalidParam,
		},
		{
			name:     "threshold above one",
			mutate:   func(c *Config) { c.Bridging.Thresholds["port"] = 1.5 },
			wantCode: errors.ErrCodeThresholdInvalid,
		},
		{
			name:     "unknown threshold role",
			mutate:   func(c *Config) { c.Bridging.Thresholds["wire"] = 0.5 },
			wantCode: errors.ErrCodeUnknownRole,
		},
		{
			name:     "borderline floor above min confidence",
			mutate:   func(c *Config) { c.Consolidator.BorderlineFloor = 0.9 },
			wantCode: errors.ErrCodeThresholdInvalid,
		},
		{
			name:     "context boost below one",
			mutate:   func(c *Config) { c.Bridging.ContextBoost = 0.5 },
			wantCode: errors.ErrCodeThresholdInvalid,
		},
		{
			name:     "context penalty above one",
			mutate:   func(c *Config) { c.Bridging.ContextPenalty = 1.2 },
			wantCode: errors.ErrCodeThresholdInvalid,
		},
		{
			name:     "unknown compatibility role",
			mutate:   func(c *Config) { c.TypeCompatibility["wire"] = []string{"signal"} },
			wantCode: errors.ErrCodeUnknownRole,
		},
		{
			name:     "services backend without postgres",
			mutate:   func(c *Config) { c.Store.Backend = BackendServices },
			wantCode: errors.ErrCodeInvalidParam,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaulted()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestRoleThreshold_FallsBackToArchitectural(t *testing.T) {
	t.Parallel()

	cfg := defaulted()
	delete(cfg.Bridging.Thresholds, "memory")
	assert.Equal(t, 0.50, cfg.RoleThreshold(element.RoleMemory))
	assert.Equal(t, 0.70, cfg.RoleThreshold(element.RoleModule))
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
store:
  backend: memory
bridging:
  context_depth: 3
similarity:
  strip_prefixes: ["or1200_"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	// Env overrides beat file values for keys the file declares.
	t.Setenv("BRIDGER_BRIDGING_CONTEXT_DEPTH", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Bridging.ContextDepth)
	assert.Equal(t, []string{"or1200_"}, cfg.Similarity.StripPrefixes)
	// Untouched sections still get defaults.
	assert.Equal(t, 0.75, cfg.Consolidator.MinConfidence)
}

func TestLoad_ReferenceConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendServices, cfg.Store.Backend)

	// The shipped file spells out the operator-tunable matching tables
	// rather than relying on compiled-in defaults.
	assert.Equal(t, []string{"component", "module", "architecture_feature"},
		cfg.TypeCompatibility["module"])
	assert.Equal(t, []string{"signal", "port", "interface"}, cfg.TypeCompatibility["port"])
	assert.Len(t, cfg.TypeCompatibility, 8)

	assert.Equal(t, []string{"special purpose register"}, cfg.Acronyms["spr"])
	assert.Equal(t, []string{"power management"}, cfg.Acronyms["pm"])
	assert.Len(t, cfg.Acronyms, 10)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BRIDGER_STORE_BACKEND", "memory")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}
