package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatJSON)
	logger.SetOutput(&buf)

	logger.WithField("walletId", "w1").WithFields(map[string]interface{}{"flows": 3}).Info("flow analysis complete")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "flow analysis complete", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "w1", entries[0]["walletId"])
	assert.EqualValues(t, 3, entries[0]["flows"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn, FormatJSON)
	logger.SetOutput(&buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])

	logger.SetLevel(LevelDebug)
	logger.Debug("now visible")
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestWithErrorDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(LevelInfo, FormatJSON)
	parent.SetOutput(&buf)

	parent.WithError(errors.New("boom")).Error("failed")
	parent.Info("clean")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0]["error"])
	_, hasErr := entries[1]["error"]
	assert.False(t, hasErr)
}

func TestFromContext(t *testing.T) {
	logger := NewLogger(LevelInfo, FormatText)
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, GetGlobalLogger(), FromContext(context.Background()))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("xml"))
}
