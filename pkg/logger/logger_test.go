package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rolesync/pkg/config"
)

func TestNew(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "info"})
	assert.NoError(t, err)

	_, err = New(&config.LoggingConfig{Level: "verbose"})
	assert.Error(t, err)

	logFile := filepath.Join(t.TempDir(), "logs", "rolesync.log")
	l, err := New(&config.LoggingConfig{Level: "debug", File: logFile, NoColor: true})
	require.NoError(t, err)
	l.Info("to file")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace-ish", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	child := l.WithField("run_id", "abc").WithFields(map[string]interface{}{"phase": "CHECK"})
	child.InfoWithFields("checking", map[string]interface{}{"attempt": 1, "elapsed": 2 * time.Second})
	l.Info("parent untouched")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "abc", lines[0]["run_id"])
	assert.Equal(t, "CHECK", lines[0]["phase"])
	assert.EqualValues(t, 1, lines[0]["attempt"])
	assert.Equal(t, "rolesync", lines[0]["app"])
	assert.NotContains(t, lines[1], "run_id")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.WithError(errors.New("boom")).Error("shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://example.test/a", 200, 5*time.Millisecond)
	LogRequest(tl, "GET", "https://example.test/b", 404, time.Millisecond)
	LogRequest(tl, "GET", "https://example.test/c", 0, time.Millisecond)
	LogDownload(tl, "primary", "role_pile_1.png", 10, nil)
	LogDownload(tl, "fallback", "role_pile_2.png", 0, errors.New("timeout"))
	LogPhase(tl, "GENERATE")
	LogSyncStats(tl, "run-1", 3, 1, 1500*time.Millisecond)

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 2)
	assert.True(t, tl.HasMessage("Download completed"))
	assert.True(t, tl.HasMessage("Entering phase"))

	failed := tl.GetMessagesByLevel("ERROR")[1]
	assert.Equal(t, "role_pile_2.png", failed.Fields["file"])
	assert.EqualError(t, failed.Error, "timeout")

	stats := tl.GetMessages()[len(tl.GetMessages())-1]
	assert.Equal(t, "run-1", stats.Fields["run_id"])
	assert.Equal(t, "1.5s", stats.Fields["elapsed"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("a", 1).WithError(errors.New("x"))
	child.Warn("from child")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Fields["a"])
	assert.True(t, tl.HasMessage("from child"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
	assert.False(t, tl.HasError())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("k", "v").WithError(errors.New("e")).Info("ignored")
	})
	assert.Nil(t, l.GetZerolog())
}
