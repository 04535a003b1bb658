package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func TestZapLoggerWritesStructuredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log := NewZapLogger(Options{FilePath: path, Level: "warn", FileOnly: true})

	log.Info("graph", "dropped below level", nil)
	log.With(map[string]interface{}{"thread_id": "t1"}).Error("graph", "node failed", map[string]interface{}{"error": "boom"})
	require.NoError(t, log.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "ERROR", e["level"])
	assert.Equal(t, "node failed", e["message"])
	assert.Equal(t, "graph", e["module"])
	assert.Equal(t, "t1", e["thread_id"])
	assert.Equal(t, "boom", e["error_ref"])
	assert.Equal(t, map[string]interface{}{"error": "boom"}, e["details"])
}

func TestZapLoggerWithoutSinks(t *testing.T) {
	log := NewZapLogger(Options{FileOnly: true})
	log.Info("x", "discarded", nil)
	assert.NoError(t, log.Sync())
}
