package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Init(Options{Level: "info", Format: "json", Out: &buf})
	componentLogger := WithComponent(logger, "selector")
	componentLogger.Info().Int("clips", 3).Msg("selected")
	logger.Debug().Msg("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["component"] != "selector" || rec["message"] != "selected" || rec["clips"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestInitConsoleHasNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := Init(Options{Format: "console", Out: &buf})
	logger.Info().Msg("hello")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no ANSI escapes, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected message, got %q", buf.String())
	}
}
