package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/forPelevin/podclips/internal/domain/selection"
	"github.com/forPelevin/podclips/internal/pipeline"
)

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "podclips.toml"

// Selection mirrors selection.Params.
type Selection struct {
	MaxClips          int     `toml:"max_clips"`
	ClipSeconds       float64 `toml:"clip_seconds"`
	MinSpacingSeconds float64 `toml:"min_spacing_seconds"`
	ConfidenceFloor   float64 `toml:"confidence_floor"`
	LeadInSeconds     float64 `toml:"lead_in_seconds"`
	MaxVideoSeconds   float64 `toml:"max_video_seconds"`
}

type Render struct {
	Workers       int  `toml:"workers"`
	BurnSubtitles bool `toml:"burn_subtitles"`
}

type Tools struct {
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	YtDlp    string `toml:"ytdlp"`
	FastMode bool   `toml:"fast_mode"`
}

type AssemblyAI struct {
	APIKey              string   `toml:"api_key"`
	BaseURL             string   `toml:"base_url"`
	AllowedHosts        []string `toml:"allowed_hosts"`
	PollIntervalSeconds float64  `toml:"poll_interval_seconds"`
	MaxPolls            int      `toml:"max_polls"`
}

type Whisper struct {
	Bin   string `toml:"bin"`
	Model string `toml:"model"`
}

// Transcription selects the provider: assemblyai, whispercpp or none.
type Transcription struct {
	Provider   string     `toml:"provider"`
	AssemblyAI AssemblyAI `toml:"assemblyai"`
	Whisper    Whisper    `toml:"whisper"`
}

type Paths struct {
	OutDir   string `toml:"out_dir"`
	CacheDir string `toml:"cache_dir"`
}

// Cache controls reuse and pruning of downloads and transcripts.
type Cache struct {
	TTLHours        float64 `toml:"ttl_hours"`
	JanitorSchedule string  `toml:"janitor_schedule"`
}

type Server struct {
	Addr             string `toml:"addr"`
	StatusDB         string `toml:"status_db"`
	RedisAddr        string `toml:"redis_addr"`
	QueueConcurrency int    `toml:"queue_concurrency"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full podclips configuration.
//
// Values are layered: Default, then the TOML file, then environment
// variables, then command-line flags.
type Config struct {
	Selection     Selection     `toml:"selection"`
	Render        Render        `toml:"render"`
	Tools         Tools         `toml:"tools"`
	Transcription Transcription `toml:"transcription"`
	Paths         Paths         `toml:"paths"`
	Cache         Cache         `toml:"cache"`
	Server        Server        `toml:"server"`
	Logging       Logging       `toml:"logging"`
}

func Default() Config {
	return Config{
		Selection: Selection{
			MaxClips:          selection.DefaultMaxClips,
			ClipSeconds:       selection.DefaultClipDurationSec,
			MinSpacingSeconds: selection.DefaultClipDurationSec,
			ConfidenceFloor:   selection.DefaultSentimentConfidenceFloor,
			LeadInSeconds:     selection.DefaultLeadInSec,
			MaxVideoSeconds:   selection.DefaultMaxVideoDurationSec,
		},
		Render: Render{Workers: 3, BurnSubtitles: true},
		Tools:  Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe", YtDlp: "yt-dlp"},
		Transcription: Transcription{
			Provider: pipeline.TranscriberAssemblyAI,
			AssemblyAI: AssemblyAI{
				BaseURL:             "https://api.assemblyai.com",
				PollIntervalSeconds: 3,
				MaxPolls:            400,
			},
			Whisper: Whisper{
				Bin:   ".cache/bin/whisper.cpp",
				Model: ".cache/models/ggml-base.bin",
			},
		},
		Paths:   Paths{OutDir: "out", CacheDir: ".cache"},
		Cache:   Cache{TTLHours: 1, JanitorSchedule: "@every 30m"},
		Server:  Server{Addr: ":5000", StatusDB: ".cache/runs.db", QueueConcurrency: 2},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load reads path (or ./podclips.toml when path is empty) over the defaults and
// applies environment overrides. A missing default file is not an error; a
// missing explicit file is.
func Load(path string) (Config, string, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return Config{}, "", err
	}
	if exists {
		f, err := os.Open(resolved)
		if err != nil {
			return Config{}, "", fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, "", err
	}
	cfg.normalize()
	return cfg, resolved, nil
}

func resolvePath(path string) (string, bool, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return path, true, nil
	}
	abs, err := filepath.Abs(DefaultFile)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return abs, true, nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("stat config: %w", err)
	}
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := cast.ToBoolE(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("ASSEMBLYAI_API_KEY", &c.Transcription.AssemblyAI.APIKey)
	str("ASSEMBLYAI_BASE_URL", &c.Transcription.AssemblyAI.BaseURL)
	if v, ok := lookup("ASSEMBLYAI_ALLOWED_HOSTS"); ok && strings.TrimSpace(v) != "" {
		c.Transcription.AssemblyAI.AllowedHosts = splitList(v)
	}
	str("PODCLIPS_TRANSCRIBER", &c.Transcription.Provider)
	integer("PODCLIPS_MAX_CLIPS", &c.Selection.MaxClips)
	float("PODCLIPS_CLIP_SECONDS", &c.Selection.ClipSeconds)
	float("PODCLIPS_CONFIDENCE_FLOOR", &c.Selection.ConfidenceFloor)
	float("PODCLIPS_LEAD_IN_SECONDS", &c.Selection.LeadInSeconds)
	float("PODCLIPS_MAX_VIDEO_SECONDS", &c.Selection.MaxVideoSeconds)
	integer("PODCLIPS_RENDER_WORKERS", &c.Render.Workers)
	boolean("PODCLIPS_FAST_MODE", &c.Tools.FastMode)
	str("FFMPEG_PATH", &c.Tools.FFmpeg)
	str("FFPROBE_PATH", &c.Tools.FFprobe)
	str("PODCLIPS_REDIS_ADDR", &c.Server.RedisAddr)
	str("PODCLIPS_STATUS_DB", &c.Server.StatusDB)
	str("PODCLIPS_LOG_LEVEL", &c.Logging.Level)
	str("PODCLIPS_LOG_FORMAT", &c.Logging.Format)
	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			c.Server.Addr = fmt.Sprintf(":%d", port)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) normalize() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	// Spacing below the clip length would let windows overlap.
	if c.Selection.MinSpacingSeconds < c.Selection.ClipSeconds {
		c.Selection.MinSpacingSeconds = c.Selection.ClipSeconds
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SelectionParams returns the selector parameters.
func (c Config) SelectionParams() selection.Params {
	return selection.Params{
		MaxClips:                 c.Selection.MaxClips,
		ClipDurationSec:          c.Selection.ClipSeconds,
		MinSpacingSec:            c.Selection.MinSpacingSeconds,
		SentimentConfidenceFloor: c.Selection.ConfidenceFloor,
		LeadInSec:                c.Selection.LeadInSeconds,
	}
}

// TTL is how long downloads and transcripts stay reusable.
func (c Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLHours * float64(time.Hour))
}

// Pipeline builds the pipeline configuration for a single input.
func (c Config) Pipeline(input string, logger zerolog.Logger) pipeline.Config {
	return pipeline.Config{
		Input:         input,
		OutDir:        c.Paths.OutDir,
		BurnSubtitles: c.Render.BurnSubtitles,
		FastMode:      c.Tools.FastMode,
		RenderWorkers: c.Render.Workers,

		Selection:        c.SelectionParams(),
		MaxVideoDuration: c.Selection.MaxVideoSeconds,

		CacheDir:      c.Paths.CacheDir,
		DownloadReuse: c.TTL(),

		FFmpegPath:  c.Tools.FFmpeg,
		FFprobePath: c.Tools.FFprobe,
		YtDlpPath:   c.Tools.YtDlp,

		Transcriber:  c.Transcription.Provider,
		WhisperBin:   c.Transcription.Whisper.Bin,
		WhisperModel: c.Transcription.Whisper.Model,

		AssemblyAIAPIKey:       c.Transcription.AssemblyAI.APIKey,
		AssemblyAIBaseURL:      c.Transcription.AssemblyAI.BaseURL,
		AssemblyAIAllowedHosts: c.Transcription.AssemblyAI.AllowedHosts,
		AssemblyAIPollInterval: time.Duration(c.Transcription.AssemblyAI.PollIntervalSeconds * float64(time.Second)),
		AssemblyAIMaxPolls:     c.Transcription.AssemblyAI.MaxPolls,

		Logger: logger,
	}
}
