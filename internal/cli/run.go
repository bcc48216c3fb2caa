package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/podclips/internal/config"
	"github.com/forPelevin/podclips/internal/pipeline"
	"github.com/forPelevin/podclips/internal/runstatus"
)

const runTimeout = 3 * time.Hour

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Generate clips from a local video or a YouTube URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, a, args[0])
		},
	}
	f := cmd.Flags()
	f.String("out", "", "Output directory")
	f.Int("clips", 0, "Number of clips")
	f.Float64("clip-seconds", 0, "Clip duration in seconds")
	f.Float64("confidence-floor", 0, "Minimum sentiment confidence")
	f.String("transcriber", "", "Transcriber: assemblyai, whispercpp or none")
	f.Int("workers", 0, "Parallel render workers")
	f.Bool("fast", false, "Faster download and encode at lower quality")
	f.Bool("no-subtitles", false, "Do not burn captions into clips")
	f.Bool("no-status", false, "Do not record the run in the status database")

	// Hidden tuning flags (internal)
	f.Float64("lead-in", 0, "Seconds before a sentiment peak to start the clip")
	f.Float64("max-video-seconds", 0, "Duration ceiling when probing fails")
	_ = f.MarkHidden("lead-in")
	_ = f.MarkHidden("max-video-seconds")
	return cmd
}

// applyRunFlags overrides config with flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("out") {
		cfg.Paths.OutDir, _ = f.GetString("out")
	}
	if f.Changed("clips") {
		cfg.Selection.MaxClips, _ = f.GetInt("clips")
	}
	if f.Changed("clip-seconds") {
		cfg.Selection.ClipSeconds, _ = f.GetFloat64("clip-seconds")
		cfg.Selection.MinSpacingSeconds = max(cfg.Selection.MinSpacingSeconds, cfg.Selection.ClipSeconds)
	}
	if f.Changed("confidence-floor") {
		cfg.Selection.ConfidenceFloor, _ = f.GetFloat64("confidence-floor")
	}
	if f.Changed("lead-in") {
		cfg.Selection.LeadInSeconds, _ = f.GetFloat64("lead-in")
	}
	if f.Changed("max-video-seconds") {
		cfg.Selection.MaxVideoSeconds, _ = f.GetFloat64("max-video-seconds")
	}
	if f.Changed("transcriber") {
		cfg.Transcription.Provider, _ = f.GetString("transcriber")
	}
	if f.Changed("workers") {
		cfg.Render.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("fast") {
		cfg.Tools.FastMode, _ = f.GetBool("fast")
	}
	if noSubs, _ := f.GetBool("no-subtitles"); noSubs {
		cfg.Render.BurnSubtitles = false
	}
}

func run(cmd *cobra.Command, a *app, input string) error {
	cfg := a.cfg
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	pcfg := cfg.Pipeline(input, a.logger)
	if err := pcfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store runstatus.Store = runstatus.NewMemoryStore()
	if noStatus, _ := cmd.Flags().GetBool("no-status"); !noStatus {
		s, err := runstatus.OpenSQLite(cfg.Server.StatusDB)
		if err != nil {
			a.logger.Warn().Err(err).Msg("status database unavailable; run will not be recorded")
		} else {
			store = s
		}
	}
	defer store.Close()

	tracker := runstatus.NewTracker(store, a.logger)
	r, err := tracker.Create(ctx, input)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(ctx, pcfg, r)
	if err != nil {
		r.Fail(err)
		return err
	}
	r.Complete(res.OutDir, res.Manifest.Clips)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, clipsTable(res.Manifest.Clips))
	if res.Manifest.SelectionFallback {
		fmt.Fprintln(out, "No usable annotations; clips were spaced evenly across the video.")
	}
	fmt.Fprintf(out, "Wrote %d clips to %s (run %s)\n", len(res.Manifest.Clips), res.OutDir, r.ID())
	return nil
}
