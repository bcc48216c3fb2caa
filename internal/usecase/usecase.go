package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/podclips/internal/domain/selection"
	"github.com/forPelevin/podclips/internal/domain/subtitles"
	"github.com/forPelevin/podclips/internal/ports"
	"github.com/forPelevin/podclips/internal/types"
)

const (
	PhaseDownload   = "download"
	PhaseExtract    = "extract"
	PhaseTranscribe = "transcribe"
	PhaseSelect     = "select"
	PhaseRender     = "render"

	DefaultRenderWorkers = 3
)

// Reporter receives phase progress. Implementations must be safe for
// concurrent use; render workers report in parallel.
type Reporter interface {
	Update(phase string, percent int, message string)
}

type nopReporter struct{}

func (nopReporter) Update(string, int, string) {}

type Deps struct {
	Fetcher ports.Fetcher
	Video   ports.VideoTool
	// Transcriber may be nil; selection then relies on duration alone.
	Transcriber ports.Transcriber
	Logger      zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	// Exactly one of LocalPath or URL is set.
	LocalPath string
	URL       string
	VideoID   string

	Params           selection.Params
	MaxVideoDuration float64
	RenderWorkers    int
	BurnSubtitles    bool

	CacheDir    string
	DownloadDir string
	OutDir      string
	Reporter    Reporter
}

type Result struct {
	Manifest types.Manifest
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	rep := in.Reporter
	if rep == nil {
		rep = nopReporter{}
	}
	log := u.d.Logger

	media, err := u.acquire(ctx, in, rep)
	if err != nil {
		return Result{}, err
	}

	probed, probeErr := u.d.Video.ProbeDuration(ctx, media)
	duration := selection.EffectiveDuration(probed.Seconds(), probeErr, in.MaxVideoDuration)
	if probeErr != nil {
		log.Warn().Err(probeErr).Float64("duration_sec", duration).Msg("probe failed; using duration ceiling")
	}

	if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
		return Result{}, err
	}
	rep.Update(PhaseExtract, 15, "Extracting audio")
	wav := filepath.Join(in.CacheDir, "audio.wav")
	if err := u.d.Video.ExtractAudioMono16k(ctx, media, wav); err != nil {
		if !errors.Is(err, ports.ErrExtraction) {
			err = ports.Wrap(ports.ErrExtraction, "extract audio", "", err)
		}
		return Result{}, err
	}

	tr, annotated := u.transcribe(ctx, wav, in.CacheDir, rep)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rep.Update(PhaseSelect, 45, "Selecting segments")
	segs := selection.Select(selection.SpansFromTranscript(tr), duration, in.Params)
	log.Info().
		Int("segments", len(segs)).
		Float64("duration_sec", duration).
		Bool("annotated", annotated).
		Msg("segments selected")
	if len(segs) == 0 {
		return Result{}, ports.Wrap(ports.ErrRender, "select segments", "no segments to render", nil)
	}

	clips, err := u.render(ctx, in, media, tr, segs, duration, rep)
	if err != nil {
		return Result{}, err
	}

	m := types.Manifest{
		Input:             sourceLabel(in),
		SourceID:          in.VideoID,
		DurationSec:       duration,
		SelectionFallback: !annotated,
		Clips:             clips,
	}
	return Result{Manifest: m}, nil
}

func (u Usecase) acquire(ctx context.Context, in Input, rep Reporter) (string, error) {
	if in.URL == "" {
		if _, err := os.Stat(in.LocalPath); err != nil {
			return "", ports.Wrap(ports.ErrAcquisition, "open input", in.LocalPath, err)
		}
		return in.LocalPath, nil
	}
	if u.d.Fetcher == nil {
		return "", ports.Wrap(ports.ErrAcquisition, "download", "no fetcher configured", nil)
	}
	rep.Update(PhaseDownload, 10, "Downloading video")
	path, err := u.d.Fetcher.Fetch(ctx, in.URL, in.VideoID, in.DownloadDir)
	if err != nil {
		if !errors.Is(err, ports.ErrAcquisition) {
			err = ports.Wrap(ports.ErrAcquisition, "download", in.URL, err)
		}
		return "", err
	}
	return path, nil
}

// transcribe never fails the run: without annotations the selector still
// produces fallback windows.
func (u Usecase) transcribe(ctx context.Context, wav, workDir string, rep Reporter) (types.Transcript, bool) {
	if u.d.Transcriber == nil {
		u.d.Logger.Warn().Msg("no transcriber configured; using fallback selection")
		return types.Transcript{}, false
	}
	rep.Update(PhaseTranscribe, 20, "Transcribing audio")
	tr, err := u.d.Transcriber.Transcribe(ctx, wav, workDir)
	if err != nil {
		u.d.Logger.Warn().Err(err).Str("kind", ports.Kind(err)).Msg("transcription failed; using fallback selection")
		return types.Transcript{}, false
	}
	rep.Update(PhaseTranscribe, 40, "Transcription complete")
	return tr, true
}

type rendered struct {
	clip types.ManifestClip
	err  error
}

func (u Usecase) render(
	ctx context.Context,
	in Input,
	media string,
	tr types.Transcript,
	segs []types.CandidateSegment,
	duration float64,
	rep Reporter,
) ([]types.ManifestClip, error) {
	clipsDir := filepath.Join(in.OutDir, "clips")
	subtitlesDir := filepath.Join(in.OutDir, "subtitles")
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		return nil, err
	}
	if in.BurnSubtitles {
		if err := os.MkdirAll(subtitlesDir, 0o755); err != nil {
			return nil, err
		}
	}

	workers := in.RenderWorkers
	if workers <= 0 {
		workers = DefaultRenderWorkers
	}
	total := len(segs)
	results := make([]rendered, total)

	var (
		mu   sync.Mutex
		done int
	)
	rep.Update(PhaseRender, 50, fmt.Sprintf("Rendering %d clips", total))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, seg := range segs {
		g.Go(func() error {
			results[i] = u.renderOne(ctx, in, media, tr, seg, duration)
			mu.Lock()
			defer mu.Unlock()
			done++
			rep.Update(PhaseRender, 50+49*done/total, fmt.Sprintf("Rendered %d/%d clips", done, total))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		clips    []types.ManifestClip
		firstErr error
	)
	for i, r := range results {
		if r.err != nil {
			u.d.Logger.Warn().Err(r.err).Int("segment", segs[i].ID).Msg("dropping clip after render failure")
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		clips = append(clips, r.clip)
	}
	if len(clips) == 0 {
		return nil, ports.Wrap(ports.ErrRender, "render clips", fmt.Sprintf("all %d clips failed", total), firstErr)
	}
	return clips, nil
}

// renderOne cuts one window. Media shorter than a clip yields a clip that
// ends with the media.
func (u Usecase) renderOne(ctx context.Context, in Input, media string, tr types.Transcript, seg types.CandidateSegment, duration float64) rendered {
	id := fmt.Sprintf("%03d", seg.ID)
	endSec := min(seg.StartSec+seg.DurationSec, duration)
	start := secToDuration(seg.StartSec)
	end := secToDuration(endSec)

	text := seg.Label
	if seg.Origin != types.OriginFallback {
		if wt := subtitles.WindowText(tr, start, end); wt != "" {
			text = wt
		}
	}

	clipRel := filepath.ToSlash(filepath.Join("clips", id+".mp4"))
	var subsRel, burnASS string
	if in.BurnSubtitles {
		ass, err := subtitles.RenderVerticalASS(tr, start, end, text)
		if err != nil {
			return rendered{err: ports.Wrap(ports.ErrRender, "subtitles", id, err)}
		}
		subsRel = filepath.ToSlash(filepath.Join("subtitles", id+".ass"))
		burnASS = filepath.Join(in.OutDir, "subtitles", id+".ass")
		if err := os.WriteFile(burnASS, []byte(ass), 0o644); err != nil {
			return rendered{err: ports.Wrap(ports.ErrRender, "write subtitles", id, err)}
		}
	}

	if err := u.d.Video.RenderClip(ctx, media, start, end, filepath.Join(in.OutDir, "clips", id+".mp4"), burnASS); err != nil {
		if !errors.Is(err, ports.ErrRender) {
			err = ports.Wrap(ports.ErrRender, "render clip", id, err)
		}
		return rendered{err: err}
	}

	return rendered{clip: types.ManifestClip{
		ID:         id,
		StartSec:   seg.StartSec,
		EndSec:     endSec,
		Origin:     seg.Origin,
		Confidence: seg.Confidence,
		Label:      seg.Label,
		Text:       text,
		File:       clipRel,
		Subtitles:  subsRel,
	}}
}

func sourceLabel(in Input) string {
	if in.URL != "" {
		return in.URL
	}
	return in.LocalPath
}

func secToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second)).Round(time.Millisecond)
}
