// Package transcriptcache stores completed transcripts keyed by the content
// hash of the audio they were produced from.
package transcriptcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/ports"
	"github.com/forPelevin/podclips/internal/types"
)

const statusCompleted = "completed"

type Cache struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time
}

// New stores entries under <root>/transcripts.
func New(root string, logger zerolog.Logger) *Cache {
	return &Cache{
		dir:    filepath.Join(root, "transcripts"),
		logger: logger.With().Str("component", "transcriptcache").Logger(),
		now:    time.Now,
	}
}

func (c *Cache) Dir() string { return c.dir }

// KeyForFile hashes the file contents.
func KeyForFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns a cached completed transcript. Unreadable or incomplete
// entries are reported as misses.
func (c *Cache) Get(key string) (types.Transcript, bool) {
	b, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn().Err(err).Str("key", key).Msg("read cached transcript")
		}
		return types.Transcript{}, false
	}
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("ignoring corrupt cached transcript")
		return types.Transcript{}, false
	}
	if !strings.EqualFold(tr.Status, statusCompleted) {
		return types.Transcript{}, false
	}
	return tr, true
}

// Put writes tr atomically. Concurrent writers of the same key serialize on a
// lock file and the last one wins.
func (c *Cache) Put(key string, tr types.Transcript) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	b, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	lock := flock.New(c.path(key) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache entry: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// Prune removes entries not modified within maxAge and returns how many
// transcripts were deleted.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			c.logger.Warn().Err(err).Str("file", e.Name()).Msg("prune cache entry")
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			removed++
		}
	}
	return removed, nil
}

func (c *Cache) path(key string) string { return filepath.Join(c.dir, key+".json") }

// Transcriber consults the cache before delegating to the wrapped backend.
type Transcriber struct {
	next     ports.Transcriber
	cache    *Cache
	provider string
}

// Wrap keys entries by provider as well as audio content so switching
// backends never serves another backend's result.
func (c *Cache) Wrap(next ports.Transcriber, provider string) *Transcriber {
	return &Transcriber{next: next, cache: c, provider: provider}
}

func (t *Transcriber) Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error) {
	sum, err := KeyForFile(wavPath)
	if err != nil {
		t.cache.logger.Warn().Err(err).Msg("hash audio; skipping transcript cache")
		return t.next.Transcribe(ctx, wavPath, workDir)
	}
	key := sum
	if t.provider != "" {
		key = t.provider + "-" + sum
	}
	if tr, ok := t.cache.Get(key); ok {
		t.cache.logger.Info().Str("key", key).Msg("transcript cache hit")
		return tr, nil
	}
	tr, err := t.next.Transcribe(ctx, wavPath, workDir)
	if err != nil {
		return types.Transcript{}, err
	}
	if strings.EqualFold(tr.Status, statusCompleted) {
		if err := t.cache.Put(key, tr); err != nil {
			t.cache.logger.Warn().Err(err).Str("key", key).Msg("store transcript")
		}
	}
	return tr, nil
}
