package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix-like system")
	}
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "ffmpeg", Command: present},
		{Name: "yt-dlp", Command: "clearly-not-present-binary"},
		{Name: "whisper", Command: "", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected present binary to be available: %+v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be reported: %+v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", results[2].Detail)
	}
	if Healthy(results) {
		t.Fatalf("missing required binary must make the set unhealthy")
	}
	if !Healthy([]Status{results[0], results[2]}) {
		t.Fatalf("optional missing binary must not make the set unhealthy")
	}
}
