package ytdlp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/ports"
)

const (
	formatBest = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	formatFast = "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best"
)

var safeIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Adapter struct {
	bin    string
	fast   bool
	reuse  time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// New builds the fetcher. Downloads younger than reuse are returned without
// fetching again; zero disables reuse.
func New(binPath string, fast bool, reuse time.Duration, logger zerolog.Logger) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{
		bin:    binPath,
		fast:   fast,
		reuse:  reuse,
		logger: logger.With().Str("component", "ytdlp").Logger(),
		now:    time.Now,
	}
}

func (a *Adapter) Fetch(ctx context.Context, url, videoID, destDir string) (string, error) {
	if !safeIDRE.MatchString(videoID) {
		return "", ports.Wrap(ports.ErrAcquisition, "yt-dlp", fmt.Sprintf("unsafe video id %q", videoID), nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", ports.Wrap(ports.ErrAcquisition, "yt-dlp", "create download dir", err)
	}
	out := filepath.Join(destDir, videoID+".mp4")
	if a.reusable(out) {
		a.logger.Info().Str("path", out).Msg("using existing download")
		return out, nil
	}

	cmd := exec.CommandContext(ctx, a.bin, a.args(url, out)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", ports.Wrap(ports.ErrAcquisition, "yt-dlp download", tail(b), err)
	}
	if fi, err := os.Stat(out); err != nil || fi.Size() == 0 {
		return "", ports.Wrap(ports.ErrAcquisition, "yt-dlp download", "no output file produced", err)
	}
	return out, nil
}

func (a *Adapter) args(url, out string) []string {
	format := formatBest
	if a.fast {
		format = formatFast
	}
	return []string{
		"-f", format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-progress",
		"-o", out,
		url,
	}
}

func (a *Adapter) reusable(path string) bool {
	if a.reuse <= 0 {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() || fi.Size() == 0 {
		return false
	}
	return a.now().Sub(fi.ModTime()) < a.reuse
}

func tail(b []byte) string {
	const limit = 1000
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
