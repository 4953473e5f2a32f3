// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("marker_id", "m1").Msg("created")

	out := buf.String()
	if !strings.Contains(out, `"marker_id":"m1"`) {
		t.Errorf("missing field in %s", out)
	}
	if !strings.Contains(out, `"message":"created"`) {
		t.Errorf("missing message in %s", out)
	}
}

func TestCtxAddsConnectionFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithConnection(context.Background(), "conn-7", "user-3")
	ctx = ContextWithCorrelationID(ctx, "abcd1234")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"connection_id":"conn-7"`, `"user_id":"user-3"`, `"correlation_id":"abcd1234"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if ConnectionIDFromContext(ctx) != "conn-7" {
		t.Error("ConnectionIDFromContext mismatch")
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(DefaultConfig())

	sl := slog.New(NewSlogHandler()).WithGroup("svc").With("name", "sweeper")
	sl.Warn("restarting", "attempt", 2)

	out := buf.String()
	if !strings.Contains(out, `"svc.name":"sweeper"`) {
		t.Errorf("group attr missing: %s", out)
	}
	if !strings.Contains(out, `"svc.attempt":2`) {
		t.Errorf("record attr missing: %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("level missing: %s", out)
	}
}
