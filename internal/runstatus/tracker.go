package runstatus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/ports"
	"github.com/forPelevin/podclips/internal/types"
)

const (
	persistTimeout = 5 * time.Second
	maxRunning     = 99
)

// Tracker creates run handles and publishes their snapshots.
type Tracker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	runs    map[string]*Run
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger.With().Str("component", "runstatus").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		runs:   make(map[string]*Run),
		subs:   make(map[int]func(Snapshot)),
	}
}

// Create registers a queued run for input.
func (t *Tracker) Create(ctx context.Context, input string) (*Run, error) {
	now := t.now()
	snap := Snapshot{
		ID:        uuid.NewString(),
		State:     StateQueued,
		Phase:     "queued",
		Message:   "Waiting for a worker",
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	r := &Run{t: t, snap: snap}
	t.mu.Lock()
	t.runs[snap.ID] = r
	t.mu.Unlock()
	t.publish(snap)
	return r, nil
}

// Open returns the live handle for id, loading it from the store when this
// process did not create it.
func (t *Tracker) Open(ctx context.Context, id string) (*Run, error) {
	t.mu.RLock()
	r, ok := t.runs[id]
	t.mu.RUnlock()
	if ok {
		return r, nil
	}
	snap, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.runs[id]; ok {
		return r, nil
	}
	r = &Run{t: t, snap: snap}
	if !snap.State.Terminal() {
		t.runs[id] = r
	}
	return r, nil
}

func (t *Tracker) Get(ctx context.Context, id string) (Snapshot, error) {
	t.mu.RLock()
	r, ok := t.runs[id]
	t.mu.RUnlock()
	if ok {
		return r.Snapshot(), nil
	}
	return t.store.Get(ctx, id)
}

func (t *Tracker) List(ctx context.Context, limit int) ([]Snapshot, error) {
	return t.store.List(ctx, limit)
}

// Subscribe registers fn for every snapshot change. fn must not block.
func (t *Tracker) Subscribe(fn func(Snapshot)) (cancel func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) publish(snap Snapshot) {
	t.mu.RLock()
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.subs[id])
	}
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(snap.clone())
	}
}

func (t *Tracker) persist(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := t.store.Save(ctx, snap); err != nil {
		t.logger.Error().Err(err).Str("run_id", snap.ID).Msg("persist run status")
	}
	if snap.State.Terminal() {
		t.mu.Lock()
		delete(t.runs, snap.ID)
		t.mu.Unlock()
	}
	t.publish(snap)
}

// Run is the per-run status handle passed through the pipeline.
type Run struct {
	t    *Tracker
	mu   sync.Mutex
	snap Snapshot
	seq  uint64

	// saveMu orders store writes; saved is the last seq written.
	saveMu sync.Mutex
	saved  uint64
}

// commit snapshots the current state. Callers hold r.mu.
func (r *Run) commit() (Snapshot, uint64) {
	r.seq++
	return r.snap.clone(), r.seq
}

// save persists snap outside r.mu and drops it when a newer one already won.
func (r *Run) save(snap Snapshot, seq uint64) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if seq <= r.saved {
		return
	}
	r.saved = seq
	r.t.persist(snap)
}

func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.ID
}

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.clone()
}

// Update records phase progress. Progress never decreases and stays at or
// below 99 until Complete. Updates after a terminal state are ignored.
func (r *Run) Update(phase string, percent int, message string) {
	r.mu.Lock()
	if r.snap.State.Terminal() {
		r.mu.Unlock()
		return
	}
	percent = min(max(percent, 0), maxRunning)
	r.snap.Progress = max(r.snap.Progress, percent)
	r.snap.State = StateProcessing
	r.snap.Phase = phase
	r.snap.Message = message
	r.snap.UpdatedAt = r.t.now()
	r.t.logger.Info().
		Str("run_id", r.snap.ID).
		Str("phase", phase).
		Int("progress", r.snap.Progress).
		Msg(message)
	snap, seq := r.commit()
	r.mu.Unlock()
	r.save(snap, seq)
}

func (r *Run) Complete(outDir string, clips []types.ManifestClip) {
	r.mu.Lock()
	if r.snap.State.Terminal() {
		r.mu.Unlock()
		return
	}
	r.snap.State = StateCompleted
	r.snap.Phase = "completed"
	r.snap.Progress = 100
	r.snap.Message = fmt.Sprintf("Generated %d clips", len(clips))
	r.snap.OutDir = outDir
	r.snap.Clips = append([]types.ManifestClip(nil), clips...)
	r.snap.UpdatedAt = r.t.now()
	r.t.logger.Info().Str("run_id", r.snap.ID).Int("clips", len(clips)).Msg("run completed")
	snap, seq := r.commit()
	r.mu.Unlock()
	r.save(snap, seq)
}

// Fail marks the run failed. Progress keeps its last value.
func (r *Run) Fail(err error) {
	if err == nil {
		err = errors.New("unknown failure")
	}
	r.mu.Lock()
	if r.snap.State.Terminal() {
		r.mu.Unlock()
		return
	}
	r.snap.State = StateError
	r.snap.Message = strings.TrimSpace(err.Error())
	r.snap.ErrorKind = ports.Kind(err)
	r.snap.UpdatedAt = r.t.now()
	r.t.logger.Error().Err(err).Str("run_id", r.snap.ID).Str("phase", r.snap.Phase).Msg("run failed")
	snap, seq := r.commit()
	r.mu.Unlock()
	r.save(snap, seq)
}
