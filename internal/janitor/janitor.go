// Package janitor periodically removes expired downloads, work directories
// and cached transcripts.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/transcriptcache"
)

const DefaultSchedule = "@every 30m"

type Options struct {
	Cache *transcriptcache.Cache
	// Dirs are swept one level deep: each expired entry is removed whole.
	Dirs     []string
	TTL      time.Duration
	Schedule string
	Logger   zerolog.Logger
}

type Report struct {
	Transcripts int
	Entries     int
}

type Janitor struct {
	cache  *transcriptcache.Cache
	dirs   []string
	ttl    time.Duration
	cron   *cron.Cron
	logger zerolog.Logger
	now    func() time.Time
}

// New validates the schedule and registers the sweep. Nothing runs until Start.
func New(opts Options) (*Janitor, error) {
	if opts.TTL <= 0 {
		return nil, errors.New("janitor ttl must be positive")
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	logger := opts.Logger.With().Str("component", "janitor").Logger()
	j := &Janitor{
		cache:  opts.Cache,
		dirs:   opts.Dirs,
		ttl:    opts.TTL,
		logger: logger,
		now:    time.Now,
	}
	cl := cronLogger{logger}
	j.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := j.cron.AddFunc(opts.Schedule, func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", opts.Schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.logger.Info().Dur("ttl", j.ttl).Msg("janitor started")
	j.cron.Start()
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() context.Context { return j.cron.Stop() }

// Sweep removes everything older than the TTL once.
func (j *Janitor) Sweep() Report {
	var rep Report
	if j.cache != nil {
		n, err := j.cache.Prune(j.ttl)
		if err != nil {
			j.logger.Warn().Err(err).Msg("prune transcript cache")
		}
		rep.Transcripts = n
	}
	cutoff := j.now().Add(-j.ttl)
	for _, dir := range j.dirs {
		n, err := pruneDir(dir, cutoff)
		if err != nil {
			j.logger.Warn().Err(err).Str("dir", dir).Msg("prune directory")
		}
		rep.Entries += n
	}
	if rep.Transcripts > 0 || rep.Entries > 0 {
		j.logger.Info().Int("transcripts", rep.Transcripts).Int("entries", rep.Entries).Msg("expired cache removed")
	}
	return rep
}

func pruneDir(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
