package querylog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterPersistsOneFilePerQuery(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	r := New("query-123", "session-abc", "add 1 and 2", nil, time.Unix(1_700_000_000, 0))
	r.AddAgentCall(AgentCall{AgentName: "calculator", Success: true, Output: 3.0})
	r.Finish(time.Unix(1_700_000_001, 0), true)

	require.NoError(t, w.Write(r))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "query_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), "query-12.json"))
}

func TestWriterRecordRoundTripsThroughJSON(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	r := New("q1", "s1", "what's the weather", map[string]any{"location": "nyc"}, time.Unix(1000, 0))
	r.AddRetry(1, "validation_failed")
	r.AddError("AgentFailure", "division by zero", time.Unix(1001, 0))
	r.Finish(time.Unix(1002, 0), false)
	require.NoError(t, w.Write(r))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "q1", decoded.QueryID)
	assert.False(t, decoded.Success)
	assert.Len(t, decoded.Retries, 1)
	assert.Len(t, decoded.Errors, 1)
}

func TestWriterCreatesDirIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	_, err := NewWriter(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriterLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	r := New("q2", "s1", "x", nil, time.Unix(2000, 0))
	r.Finish(time.Unix(2001, 0), true)
	require.NoError(t, w.Write(r))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}
