package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/pipeline"
	"github.com/forPelevin/podclips/internal/runstatus"
	"github.com/forPelevin/podclips/internal/usecase"
)

const TaskGenerateClips = "clips:generate"

type GeneratePayload struct {
	RunID string `json:"run_id"`
	Input string `json:"input"`
}

// Dispatcher hands runs to workers. Start does not block.
type Dispatcher interface {
	Dispatch(ctx context.Context, p GeneratePayload) error
	Start(ctx context.Context) error
	Stop()
}

// PipelineFunc executes one run for input, reporting progress to rep.
type PipelineFunc func(ctx context.Context, input string, rep usecase.Reporter) (pipeline.Result, error)

// Runner executes queued runs against the status tracker.
type Runner struct {
	tracker  *runstatus.Tracker
	pipeline PipelineFunc
	logger   zerolog.Logger
}

func NewRunner(tracker *runstatus.Tracker, fn PipelineFunc, logger zerolog.Logger) *Runner {
	return &Runner{
		tracker:  tracker,
		pipeline: fn,
		logger:   logger.With().Str("component", "jobs").Logger(),
	}
}

// Execute runs p to completion and records the outcome on its run. Runs that
// already finished are skipped.
func (r *Runner) Execute(ctx context.Context, p GeneratePayload) error {
	run, err := r.tracker.Open(ctx, p.RunID)
	if err != nil {
		return fmt.Errorf("open run %s: %w", p.RunID, err)
	}
	if run.Snapshot().State.Terminal() {
		r.logger.Info().Str("run_id", p.RunID).Msg("run already finished, skipping")
		return nil
	}
	r.logger.Info().Str("run_id", p.RunID).Str("input", p.Input).Msg("run started")
	res, err := r.pipeline(ctx, p.Input, run)
	if err != nil {
		run.Fail(err)
		return err
	}
	run.Complete(res.OutDir, res.Manifest.Clips)
	return nil
}

// Abandon fails a run that never reached a worker.
func (r *Runner) Abandon(ctx context.Context, p GeneratePayload, reason error) {
	run, err := r.tracker.Open(ctx, p.RunID)
	if err != nil {
		r.logger.Warn().Err(err).Str("run_id", p.RunID).Msg("abandon run")
		return
	}
	run.Fail(reason)
}

// ProcessTask implements asynq.Handler. Failed runs are not retried.
func (r *Runner) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p GeneratePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %v: %w", err, asynq.SkipRetry)
	}
	if p.RunID == "" {
		return fmt.Errorf("payload without run_id: %w", asynq.SkipRetry)
	}
	if err := r.Execute(ctx, p); err != nil {
		if errors.Is(err, runstatus.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("run %s: %v: %w", p.RunID, err, asynq.SkipRetry)
	}
	return nil
}
