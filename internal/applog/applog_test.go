package applog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation: known level names parse to their slog.Level; unknown names error.
func Test_Unit_ParseLevel_KnownAndUnknown(t *testing.T) {
	t.Parallel()

	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("WARNING")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("bogus")
	require.ErrorIs(t, err, ErrInvalidLevel)
}

// Expectation: -q forces Error regardless of -v count; otherwise a bare
// invocation is Warn, and each -v climbs one step toward Debug, clamped.
func Test_Unit_LevelFromVerbosity(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelError, LevelFromVerbosity(2, true))
	require.Equal(t, slog.LevelWarn, LevelFromVerbosity(0, false))
	require.Equal(t, slog.LevelInfo, LevelFromVerbosity(1, false))
	require.Equal(t, slog.LevelDebug, LevelFromVerbosity(2, false))
	require.Equal(t, slog.LevelDebug, LevelFromVerbosity(5, false))
}

// Expectation: the JSON handler actually emits parsable JSON lines.
func Test_Unit_New_JSON_EmitsParsableJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, true)
	log.Info("hello", "key", "value")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "hello", decoded["msg"])
}
