package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupOfflineEnv points the app at a throwaway data directory and clears
// any API key so commands never reach the network.
func setupOfflineEnv(t *testing.T) {
	t.Helper()

	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	t.Setenv("JACC_DATA_DIR", filepath.Join(tmpDir, "data"))
	t.Setenv("JACC_LOG_FILE", filepath.Join(tmpDir, "logs", "jacc.log"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JACC_API_KEY", "")
}

func TestStatsCmd_HasJSONFlag(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// When: finding the stats command
	statsCmd, _, err := cmd.Find([]string{"stats"})
	require.NoError(t, err)

	// Then: it should have --json defaulting to false
	jsonFlag := statsCmd.Flags().Lookup("json")
	require.NotNil(t, jsonFlag, "should have --json flag")
	assert.Equal(t, "false", jsonFlag.DefValue)
}

func TestStatsCmd_JSON_EmptyIndex(t *testing.T) {
	// Given: a fresh data directory with nothing ingested
	setupOfflineEnv(t)

	// When: running stats --json
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats", "--json"})

	err := cmd.Execute()

	// Then: the report should decode and show an empty index
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &stats))
	assert.EqualValues(t, 0, stats["chunks"])
	assert.EqualValues(t, 0, stats["vectors"])
	assert.Contains(t, stats, "agents")
	assert.Contains(t, stats, "cache", "response cache stats should always be reported")
}

func TestStatsCmd_Text_EmptyIndex(t *testing.T) {
	// Given: a fresh data directory with nothing ingested
	setupOfflineEnv(t)

	// When: running stats in text mode
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"stats"})

	err := cmd.Execute()

	// Then: the index section should print zero counts
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Index")
	assert.Contains(t, output, "chunks:  0")
	assert.Contains(t, output, "vectors: 0")
	assert.NotContains(t, output, "Agents", "no agent stats before any search ran")
}
