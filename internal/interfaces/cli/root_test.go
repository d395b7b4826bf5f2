package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/matching/consolidator"
)

func writeMemoryConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridger.yaml")
	yaml := `
store:
  backend: memory
metrics:
  enabled: false
kafka:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCommand_RegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()
	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"consolidate", "bridge", "run", "stats", "migrate"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConsolidateCommand_DryRunJSON(t *testing.T) {
	out, err := execute(t, "consolidate", "--dry-run", "-c", writeMemoryConfig(t), "-o", "json")
	require.NoError(t, err)

	var result consolidateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.DryRun)
	assert.Equal(t, 0, result.Summary.Records)
}

func TestStatsCommand_JSONOnEmptyStore(t *testing.T) {
	out, err := execute(t, "stats", "-c", writeMemoryConfig(t), "-o", "json")
	require.NoError(t, err)

	var result statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Entities)
	assert.Equal(t, 0, result.Bridges)
}

func TestRunCommand_EmptyMemoryPipeline(t *testing.T) {
	out, err := execute(t, "run", "-c", writeMemoryConfig(t), "-o", "json")
	require.NoError(t, err)

	var result runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Consolidation.Records)
	assert.Equal(t, 0, result.Bridging.Elements)
}

func TestMigrateCommand_RejectsMemoryBackend(t *testing.T) {
	_, err := execute(t, "migrate", "-c", writeMemoryConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services backend")
}

func TestStoreFlag_OverridesBackend(t *testing.T) {
	// Switching to services without connection settings fails validation.
	_, err := execute(t, "stats", "-c", writeMemoryConfig(t), "--store", "services")
	require.Error(t, err)
}

func TestRootCommand_BadConfigPath(t *testing.T) {
	_, err := execute(t, "stats", "-c", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestGetCLIContext_MissingContext(t *testing.T) {
	t.Parallel()

	_, err := GetCLIContext(&cobra.Command{})
	require.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	t.Parallel()

	out := FormatTable([]string{"NAME", "COUNT"}, [][]string{
		{"modules", "12"},
		{"ports", "340"},
	})
	assert.Contains(t, out, "NAME     COUNT")
	assert.Contains(t, out, "-----")
	assert.Contains(t, out, "modules  12")
	assert.Contains(t, out, "ports    340")

	assert.Empty(t, FormatTable(nil, nil))
}

func TestBorderlineOnly(t *testing.T) {
	t.Parallel()

	candidates := []consolidator.MergeCandidate{
		{EntityA: "a", EntityB: "b", Eligible: true},
		{EntityA: "c", EntityB: "d", Eligible: false},
	}
	got := borderlineOnly(candidates)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].EntityA)
}

func TestStatsOutput_TableRows(t *testing.T) {
	t.Parallel()

	out := statsOutput{}
	out.Entities = 3
	out.EntitiesByType = map[string]int{"signal": 2, "component": 1}
	out.ElementsByRole = map[string]int{"module": 1}

	rows := out.TableRows()
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"entities", "3"}, rows[0])

	// Per-type rows are sorted for stable output.
	var typed []string
	for _, row := range rows {
		if len(row[0]) > 9 && row[0][:9] == "entities[" {
			typed = append(typed, row[0])
		}
	}
	assert.Equal(t, []string{"entities[component]", "entities[signal]"}, typed)
}
