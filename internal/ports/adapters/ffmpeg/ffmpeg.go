package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/podclips/internal/ports"
)

const verticalFilter = "scale=1080:1920:force_original_aspect_ratio=decrease,pad=1080:1920:(ow-iw)/2:(oh-ih)/2:color=black"

type Adapter struct {
	ffmpeg  string
	ffprobe string
	fast    bool
}

// New builds the adapter. Fast mode trades quality for encode speed.
func New(ffmpegPath, ffprobePath string, fast bool) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, fast: fast}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return ports.Wrap(ports.ErrExtraction, "ffmpeg extract audio", tail(b), err)
	}
	return nil
}

// RenderClip cuts [start, end) into a 1080x1920 letterboxed clip, burning
// burnASS when set.
func (a *Adapter) RenderClip(ctx context.Context, inMP4 string, start, end time.Duration, outMP4 string, burnASS string) error {
	if end <= start {
		return ports.Wrap(ports.ErrRender, "ffmpeg render clip", fmt.Sprintf("empty window %s..%s", start, end), nil)
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, renderArgs(inMP4, start, end, outMP4, burnASS, a.fast)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return ports.Wrap(ports.ErrRender, "ffmpeg render clip", tail(b), err)
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inMP4,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	return parseDuration(string(b))
}

func renderArgs(inMP4 string, start, end time.Duration, outMP4, burnASS string, fast bool) []string {
	preset, crf := "medium", "23"
	if fast {
		preset, crf = "ultrafast", "28"
	}
	vf := verticalFilter
	if burnASS != "" {
		vf += ",subtitles=" + escapeFilterPath(burnASS)
	}
	return []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-i", inMP4,
		"-t", fmtSeconds(end - start),
		"-vf", vf,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", crf,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outMP4,
	}
}

func parseDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}

// tail keeps the end of tool output, where ffmpeg reports the actual error.
func tail(b []byte) string {
	const limit = 2000
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
