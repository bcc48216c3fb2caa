package transcriptcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/types"
)

func TestCache_PutGet(t *testing.T) {
	c := New(t.TempDir(), zerolog.Nop())
	if _, ok := c.Get("abc"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	want := types.Transcript{ID: "t1", Status: "completed", Words: []types.Word{{Start: 0, End: 300, Text: "hi"}}}
	if err := c.Put("abc", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := c.Get("abc")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.ID != "t1" || len(got.Words) != 1 || got.Words[0].Text != "hi" {
		t.Fatalf("unexpected transcript %+v", got)
	}
}

func TestCache_IncompleteAndCorruptAreMisses(t *testing.T) {
	c := New(t.TempDir(), zerolog.Nop())
	if err := c.Put("queued", types.Transcript{ID: "t", Status: "processing"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := c.Get("queued"); ok {
		t.Fatalf("incomplete transcript must be a miss")
	}
	if err := os.WriteFile(filepath.Join(c.Dir(), "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatalf("corrupt entry must be a miss")
	}
}

func TestCache_RejectsPathKeys(t *testing.T) {
	c := New(t.TempDir(), zerolog.Nop())
	if err := c.Put("../escape", types.Transcript{Status: "completed"}); err == nil {
		t.Fatalf("expected error for key with separators")
	}
}

func TestCache_ConcurrentPutsLastWriterWins(t *testing.T) {
	c := New(t.TempDir(), zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Put("same", types.Transcript{ID: "t", Status: "completed", Text: "x"})
		}()
	}
	wg.Wait()
	got, ok := c.Get("same")
	if !ok || got.Text != "x" {
		t.Fatalf("expected a complete entry, got %+v ok=%v", got, ok)
	}
	matches, _ := filepath.Glob(filepath.Join(c.Dir(), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestCache_Prune(t *testing.T) {
	c := New(t.TempDir(), zerolog.Nop())
	for _, k := range []string{"old", "fresh"} {
		if err := c.Put(k, types.Transcript{Status: "completed"}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(c.path("old"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	n, err := c.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", n)
	}
	if _, ok := c.Get("old"); ok {
		t.Fatalf("old entry should be gone")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry should remain")
	}

	empty := New(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())
	if n, err := empty.Prune(time.Hour); err != nil || n != 0 {
		t.Fatalf("prune of missing dir: n=%d err=%v", n, err)
	}
}

type countingTranscriber struct {
	calls int
	tr    types.Transcript
	err   error
}

func (c *countingTranscriber) Transcribe(_ context.Context, _, _ string) (types.Transcript, error) {
	c.calls++
	return c.tr, c.err
}

func TestTranscriber_CachesByAudioContent(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(wav, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := New(dir, zerolog.Nop())
	next := &countingTranscriber{tr: types.Transcript{ID: "t", Status: "completed"}}
	tr := c.Wrap(next, "assemblyai")

	for i := 0; i < 2; i++ {
		got, err := tr.Transcribe(context.Background(), wav, dir)
		if err != nil {
			t.Fatalf("transcribe: %v", err)
		}
		if got.ID != "t" {
			t.Fatalf("unexpected transcript %+v", got)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one backend call, got %d", next.calls)
	}

	other := &countingTranscriber{tr: types.Transcript{ID: "w", Status: "completed"}}
	if got, _ := c.Wrap(other, "whispercpp").Transcribe(context.Background(), wav, dir); got.ID != "w" || other.calls != 1 {
		t.Fatalf("provider must be part of the key, got %+v", got)
	}
}

func TestTranscriber_ErrorsAreNotCached(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(wav, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := New(dir, zerolog.Nop())
	next := &countingTranscriber{err: errors.New("boom")}
	tr := c.Wrap(next, "")
	for i := 0; i < 2; i++ {
		if _, err := tr.Transcribe(context.Background(), wav, dir); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("expected failures to reach the backend each time, got %d", next.calls)
	}
}
