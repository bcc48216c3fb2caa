package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/podclips/internal/config"
	"github.com/forPelevin/podclips/internal/types"
)

func TestClock(t *testing.T) {
	tests := map[float64]string{
		0:      "0:00",
		5.9:    "0:05",
		95:     "1:35",
		3599:   "59:59",
		3725.2: "1:02:05",
	}
	for in, want := range tests {
		if got := clock(in); got != want {
			t.Fatalf("clock(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("héllo world", 5); got != "héll…" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestApplyRunFlags(t *testing.T) {
	cmd := newRunCmd(&app{})
	if err := cmd.ParseFlags([]string{"--clips", "3", "--clip-seconds", "45", "--no-subtitles", "--transcriber", "none"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := config.Default()
	applyRunFlags(cmd, &cfg)
	if cfg.Selection.MaxClips != 3 || cfg.Selection.ClipSeconds != 45 || cfg.Selection.MinSpacingSeconds != 45 {
		t.Fatalf("unexpected selection %+v", cfg.Selection)
	}
	if cfg.Render.BurnSubtitles || cfg.Transcription.Provider != "none" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Selection.ConfidenceFloor != config.Default().Selection.ConfidenceFloor {
		t.Fatalf("unset flags must not override config")
	}
}

func TestSelectCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.json")
	conf := 0.9
	tr := types.Transcript{
		ID:            "t",
		Status:        "completed",
		AudioDuration: 600,
		SentimentAnalysisResults: []types.SentimentResult{
			{Start: 125000, End: 128000, Sentiment: "POSITIVE", Confidence: &conf, Text: "what a moment"},
		},
	}
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"select", path, "--json", "--log-level", "error"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var segs []types.CandidateSegment
	if err := json.Unmarshal(out.Bytes(), &segs); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if len(segs) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(segs))
	}
	found := false
	for _, s := range segs {
		if s.Origin == types.OriginSentiment && s.StartSec == 120 && s.Label == "what a moment" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sentiment segment missing from %+v", segs)
	}

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"select", path, "--log-level", "error"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute table: %v", err)
	}
	if !strings.Contains(out.String(), "what a moment") || !strings.Contains(out.String(), "2:00") {
		t.Fatalf("unexpected table:\n%s", out.String())
	}
}

func TestSelectCommandNeedsDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	if err := os.WriteFile(path, []byte(`{"id":"x"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"select", path, "--log-level", "error"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--duration") {
		t.Fatalf("expected duration error, got %v", err)
	}
}
