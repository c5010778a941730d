//go:build unit

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})

	log.Info("iteration recorded", "iteration", 3, "exitCode", 1)
	log.V(1).Info("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "iteration recorded", entry["msg"])
	assert.Equal(t, 3.0, entry["iteration"])
	assert.Equal(t, 1.0, entry["exitCode"])
}

func TestNew_Verbosity(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf, Verbosity: 1})

	log.V(1).Info("test command finished")
	log.V(2).Info("too verbose")

	assert.Contains(t, buf.String(), "test command finished")
	assert.NotContains(t, buf.String(), "too verbose")
}

func TestNew_Development(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf, Development: true})

	log.Info("starting test loop", "runID", "abc")

	assert.Contains(t, buf.String(), "starting test loop")
	assert.Contains(t, buf.String(), "abc")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestSetup_RoutesSlog(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	buf := &bytes.Buffer{}
	Setup(Options{Output: buf})

	slog.Info("from slog", "key", "value")

	assert.Contains(t, buf.String(), "from slog")
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.NotNil(t, opts.Output)
	assert.False(t, opts.Development)
	assert.Zero(t, opts.Verbosity)
}
