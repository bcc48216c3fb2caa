package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/domain/selection"
	"github.com/forPelevin/podclips/internal/ports"
	"github.com/forPelevin/podclips/internal/ports/adapters/assemblyai"
	"github.com/forPelevin/podclips/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/podclips/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/podclips/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/podclips/internal/sourceurl"
	"github.com/forPelevin/podclips/internal/transcriptcache"
	"github.com/forPelevin/podclips/internal/types"
	"github.com/forPelevin/podclips/internal/usecase"
)

const (
	TranscriberAssemblyAI = "assemblyai"
	TranscriberWhisper    = "whispercpp"
	TranscriberNone       = "none"
)

type Config struct {
	// Input is a local video path or a YouTube URL.
	Input         string
	OutDir        string
	BurnSubtitles bool
	FastMode      bool
	RenderWorkers int

	Selection        selection.Params
	MaxVideoDuration float64

	// CacheDir is the base directory for local artifacts (audio, transcripts, etc.).
	// If empty, defaults to ".cache".
	CacheDir string
	// DownloadReuse is how long a previous download of the same video is reused.
	DownloadReuse time.Duration

	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string

	Transcriber string

	WhisperBin   string
	WhisperModel string

	AssemblyAIAPIKey       string
	AssemblyAIBaseURL      string
	AssemblyAIAllowedHosts []string
	AssemblyAIPollInterval time.Duration
	AssemblyAIMaxPolls     int

	Logger zerolog.Logger
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input is empty")
	}
	if _, err := ResolveInput(c.Input); err != nil {
		return err
	}
	if c.RenderWorkers < 0 {
		return fmt.Errorf("render workers must be >= 0")
	}
	if c.MaxVideoDuration < 0 {
		return fmt.Errorf("max video duration must be >= 0")
	}
	p := c.Selection
	if p.MaxClips < 0 || p.ClipDurationSec < 0 || p.LeadInSec < 0 {
		return fmt.Errorf("selection parameters must not be negative")
	}
	if p.SentimentConfidenceFloor < 0 || p.SentimentConfidenceFloor > 1 {
		return fmt.Errorf("confidence floor must be within [0, 1]")
	}
	switch c.transcriber() {
	case TranscriberAssemblyAI:
		if c.AssemblyAIAPIKey == "" {
			return errors.New("ASSEMBLYAI_API_KEY is required for the assemblyai transcriber (set it in .env)")
		}
		return assemblyai.ValidateBaseURL(c.AssemblyAIBaseURL, c.AssemblyAIAllowedHosts)
	case TranscriberWhisper:
		if c.WhisperModel == "" {
			return fmt.Errorf("whisper model path is required")
		}
	case TranscriberNone:
	default:
		return fmt.Errorf("unknown transcriber %q", c.Transcriber)
	}
	return nil
}

func (c Config) transcriber() string {
	t := strings.ToLower(strings.TrimSpace(c.Transcriber))
	if t == "" {
		return TranscriberAssemblyAI
	}
	return t
}

// Source is a resolved pipeline input.
type Source struct {
	LocalPath string
	Remote    sourceurl.Source
}

func (s Source) IsRemote() bool { return s.Remote.VideoID != "" }

// key identifies the media independent of how the input was spelled.
func (s Source) key() string {
	if s.IsRemote() {
		return "yt:" + s.Remote.VideoID
	}
	return s.LocalPath
}

// ResolveInput accepts an existing file or a YouTube URL.
func ResolveInput(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if fi, err := os.Stat(raw); err == nil {
		if fi.IsDir() {
			return Source{}, ports.Wrap(ports.ErrInputValidation, "resolve input", fmt.Sprintf("%q is a directory", raw), nil)
		}
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Source{}, err
		}
		return Source{LocalPath: abs}, nil
	}
	if looksLikeURL(raw) {
		src, err := sourceurl.Parse(raw)
		if err != nil {
			return Source{}, err
		}
		return Source{Remote: src}, nil
	}
	return Source{}, ports.Wrap(ports.ErrInputValidation, "resolve input", fmt.Sprintf("%q is neither a file nor a YouTube URL", raw), nil)
}

func looksLikeURL(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "://") || strings.HasPrefix(l, "youtu") || strings.HasPrefix(l, "www.youtu") ||
		strings.HasPrefix(l, "m.youtube") || strings.HasPrefix(l, "music.youtube")
}

type Result struct {
	OutDir   string
	Manifest types.Manifest
}

// Run executes one clip generation run and writes manifest.json into a fresh
// run directory under cfg.OutDir.
func Run(ctx context.Context, cfg Config, rep usecase.Reporter) (Result, error) {
	logger := cfg.Logger
	src, err := ResolveInput(cfg.Input)
	if err != nil {
		return Result{}, err
	}

	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.FastMode)
	fetcher := ytdlp.New(cfg.YtDlpPath, cfg.FastMode, cfg.DownloadReuse, logger)
	trn, err := buildTranscriber(cfg, baseCache)
	if err != nil {
		return Result{}, err
	}

	uc := usecase.New(usecase.Deps{
		Fetcher:     fetcher,
		Video:       v,
		Transcriber: trn,
		Logger:      logger.With().Str("component", "usecase").Logger(),
	})

	jobID := hash(src.key())
	cacheDir := filepath.Join(baseCache, "runs", jobID)
	logger.Debug().Str("cache", cacheDir).Msg("preparing workspace")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Result{}, err
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	name := src.LocalPath
	if src.IsRemote() {
		name = src.Remote.VideoID
	}
	runOutDir := buildRunOutDir(outDir, name, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Result{}, err
	}
	logger.Info().Str("out", runOutDir).Msg("output run dir")

	res, err := uc.Run(ctx, usecase.Input{
		LocalPath:        src.LocalPath,
		URL:              src.Remote.URL,
		VideoID:          src.Remote.VideoID,
		Params:           cfg.Selection,
		MaxVideoDuration: cfg.MaxVideoDuration,
		RenderWorkers:    cfg.RenderWorkers,
		BurnSubtitles:    cfg.BurnSubtitles,
		CacheDir:         cacheDir,
		DownloadDir:      DownloadDir(baseCache),
		OutDir:           runOutDir,
		Reporter:         rep,
	})
	if err != nil {
		return Result{}, err
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return Result{}, err
	}
	logger.Info().Int("clips", len(res.Manifest.Clips)).Str("path", manifestPath).Msg("manifest written")
	return Result{OutDir: runOutDir, Manifest: res.Manifest}, nil
}

// DownloadDir is where fetched videos are kept between runs.
func DownloadDir(cacheRoot string) string { return filepath.Join(cacheRoot, "downloads") }

func buildTranscriber(cfg Config, cacheRoot string) (ports.Transcriber, error) {
	cache := transcriptcache.New(cacheRoot, cfg.Logger)
	switch name := cfg.transcriber(); name {
	case TranscriberAssemblyAI:
		a := assemblyai.New(assemblyai.Options{
			APIKey:       cfg.AssemblyAIAPIKey,
			BaseURL:      cfg.AssemblyAIBaseURL,
			PollInterval: cfg.AssemblyAIPollInterval,
			MaxPolls:     cfg.AssemblyAIMaxPolls,
			Logger:       cfg.Logger,
		})
		return cache.Wrap(a, name), nil
	case TranscriberWhisper:
		return cache.Wrap(whispercpp.New(cfg.WhisperBin, cfg.WhisperModel), name), nil
	case TranscriberNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
	}
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.Fetcher = (*ytdlp.Adapter)(nil)
var _ ports.Transcriber = (*assemblyai.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.Transcriber = (*transcriptcache.Transcriber)(nil)
