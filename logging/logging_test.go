// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToJSONWithRFC3339(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithOutput(&buf))
	logger.Info("installed skill", Skill("pdf-tools"), Bundle("abc"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "installed skill", entry["msg"])
	assert.Equal(t, "pdf-tools", entry[KeySkill])
	assert.Equal(t, "abc", entry[KeyBundle])

	ts, ok := entry["time"].(string)
	require.True(t, ok, "time field should be a string")
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err, "timestamp should be valid RFC3339")
}

func TestNew_WithLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     slog.Level
		logDebug  bool
		logWarn   bool
		wantLines int
	}{
		{name: "info filters debug", level: slog.LevelInfo, logDebug: true, logWarn: true, wantLines: 1},
		{name: "debug keeps everything", level: slog.LevelDebug, logDebug: true, logWarn: true, wantLines: 2},
		{name: "error filters warn", level: slog.LevelError, logWarn: true, wantLines: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := New(WithOutput(&buf), WithLevel(tc.level))
			if tc.logDebug {
				logger.Debug("debug")
			}
			if tc.logWarn {
				logger.Warn("warn")
			}
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if buf.Len() == 0 {
				lines = nil
			}
			assert.Len(t, lines, tc.wantLines)
		})
	}
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithFormat(FormatText))
	logger.Info("resolved", Chain([]string{"a", "b", "c"}))

	out := buf.String()
	assert.Contains(t, out, "msg=resolved")
	assert.Contains(t, out, `chain="a -> b -> c"`)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "INFO", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Component(New(WithOutput(&buf)), "fetcher")
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetcher", entry[KeyComponent])

	assert.NotNil(t, Component(nil, "x"))
}
