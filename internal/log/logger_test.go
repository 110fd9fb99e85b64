package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewAppliesLevel(t *testing.T) {
	logger := New("error", "console")
	if logger.GetLevel() != zerolog.ErrorLevel {
		t.Fatalf("expected error level, got %v", logger.GetLevel())
	}
}

func TestJSONFormatWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "info", "json"), "relay")
	logger.Info().Str("room", "lobby").Msg("hello")
	logger.Debug().Msg("filtered")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "relay" || line["room"] != "lobby" || line["message"] != "hello" {
		t.Fatalf("unexpected fields: %v", line)
	}
}
