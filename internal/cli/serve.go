package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/podclips/internal/api"
	"github.com/forPelevin/podclips/internal/deps"
	"github.com/forPelevin/podclips/internal/janitor"
	"github.com/forPelevin/podclips/internal/jobs"
	"github.com/forPelevin/podclips/internal/pipeline"
	"github.com/forPelevin/podclips/internal/runstatus"
	"github.com/forPelevin/podclips/internal/transcriptcache"
	"github.com/forPelevin/podclips/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and clip workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, a)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().String("redis", "", "Redis address; queue runs through asynq instead of in-process")
	cmd.Flags().StringSlice("allowed-origins", nil, "Extra websocket origin patterns")
	return cmd
}

func serve(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v, _ := cmd.Flags().GetString("redis"); v != "" {
		cfg.Server.RedisAddr = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := a.logger

	store, err := runstatus.OpenSQLite(cfg.Server.StatusDB)
	if err != nil {
		return err
	}
	defer store.Close()
	tracker := runstatus.NewTracker(store, logger)

	runner := jobs.NewRunner(tracker, func(ctx context.Context, input string, rep usecase.Reporter) (pipeline.Result, error) {
		pcfg := cfg.Pipeline(input, logger)
		if err := pcfg.Validate(); err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Run(ctx, pcfg, rep)
	}, logger)

	var dispatcher jobs.Dispatcher
	if cfg.Server.RedisAddr != "" {
		dispatcher = jobs.NewAsynqQueue(cfg.Server.RedisAddr, cfg.Server.QueueConcurrency, runner, logger)
	} else {
		dispatcher = jobs.NewLocalQueue(runner, cfg.Server.QueueConcurrency)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}
	defer dispatcher.Stop()

	jan, err := janitor.New(janitor.Options{
		Cache:    transcriptcache.New(cfg.Paths.CacheDir, logger),
		Dirs:     []string{pipeline.DownloadDir(cfg.Paths.CacheDir), filepath.Join(cfg.Paths.CacheDir, "runs")},
		TTL:      cfg.TTL(),
		Schedule: cfg.Cache.JanitorSchedule,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	jan.Start()
	defer func() { <-jan.Stop().Done() }()

	origins, _ := cmd.Flags().GetStringSlice("allowed-origins")
	srv := api.NewServer(api.Options{
		Tracker:        tracker,
		Dispatcher:     dispatcher,
		Requirements:   requirements(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, cfg.Tools.YtDlp),
		OriginPatterns: origins,
		Logger:         logger,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func requirements(ffmpeg, ffprobe, ytdlp string) []deps.Requirement {
	return []deps.Requirement{
		{Name: "ffmpeg", Command: ffmpeg},
		{Name: "ffprobe", Command: ffprobe},
		{Name: "yt-dlp", Command: ytdlp},
	}
}
