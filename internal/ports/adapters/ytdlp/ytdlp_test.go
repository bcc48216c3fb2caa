package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/ports"
)

func TestFetch_ReusesRecentDownload(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "dQw4w9WgXcQ.mp4")
	if err := os.WriteFile(existing, []byte("video"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a := New("clearly-not-present-ytdlp", false, time.Hour, zerolog.Nop())
	got, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != existing {
		t.Fatalf("expected %s, got %s", existing, got)
	}
}

func TestFetch_StaleDownloadIsFetchedAgain(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "dQw4w9WgXcQ.mp4")
	if err := os.WriteFile(existing, []byte("video"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(existing, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	a := New("clearly-not-present-ytdlp", false, time.Hour, zerolog.Nop())
	_, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", dir)
	if !errors.Is(err, ports.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
}

func TestFetch_RejectsUnsafeID(t *testing.T) {
	a := New("", false, 0, zerolog.Nop())
	_, err := a.Fetch(context.Background(), "u", "../../etc", t.TempDir())
	if !errors.Is(err, ports.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
}

func TestFetch_RunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix-like system")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "yt-dlp")
	// The stub writes a marker to the -o path.
	script := "#!/bin/sh\nout=\"\"\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"-o\" ]; then out=\"$2\"; fi\n  shift\ndone\necho fetched > \"$out\"\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	a := New(stub, true, 0, zerolog.Nop())
	got, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", filepath.Join(dir, "dl"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	b, err := os.ReadFile(got)
	if err != nil || strings.TrimSpace(string(b)) != "fetched" {
		t.Fatalf("unexpected output %q err=%v", b, err)
	}
}

func TestArgs_FastModeCapsHeight(t *testing.T) {
	fast := New("", true, 0, zerolog.Nop()).args("u", "o.mp4")
	if !strings.Contains(strings.Join(fast, " "), "height<=720") {
		t.Fatalf("expected 720p cap, got %v", fast)
	}
	full := New("", false, 0, zerolog.Nop()).args("u", "o.mp4")
	if strings.Contains(strings.Join(full, " "), "height<=") {
		t.Fatalf("unexpected height cap, got %v", full)
	}
}
