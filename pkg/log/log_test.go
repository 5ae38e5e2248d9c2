// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx(t *testing.T) {
	assertion := assert.New(t)

	parent := AppendCtx(context.Background(), slog.String("event_type", "image.create"))
	first := AppendCtx(parent, slog.String("message_id", "m1"))
	second := AppendCtx(parent, slog.String("message_id", "m2"))

	assertion.Len(Attrs(parent), 1)
	assertion.Equal("m1", Attrs(first)[1].Value.String())
	assertion.Equal("m2", Attrs(second)[1].Value.String())
	assertion.Nil(Attrs(context.Background()))
}

func TestHandlerAddsContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := AppendCtx(context.Background(), slog.String("X-REQUEST-ID", "req-1"))
	logger.With("component", "router").InfoContext(ctx, "dispatched")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-1", record["X-REQUEST-ID"])
	assert.Equal(t, "router", record["component"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "INFO", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "", expected: slog.LevelDebug},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.input))
		})
	}
}
