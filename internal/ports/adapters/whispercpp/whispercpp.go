package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/podclips/internal/ports"
	"github.com/forPelevin/podclips/internal/types"
)

// Adapter runs whisper.cpp locally. It yields word timings only, so selection
// falls through to the fallback tier with word-based captions.
type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(workDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-ml", "1",
		"-sow",
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, ports.Wrap(ports.ErrAnnotationService, "whisper.cpp", strings.TrimSpace(string(b)), err)
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, ports.Wrap(ports.ErrAnnotationService, "whisper.cpp", "read output", err)
	}
	return parseOutput(jb)
}

type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput converts word-level segments (ms offsets) into a transcript.
func parseOutput(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper output: %w", err)
	}
	tr := types.Transcript{ID: "whispercpp", Status: "completed"}
	texts := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := max(seg.Offsets.From, 0)
		tr.Words = append(tr.Words, types.Word{Start: start, End: max(seg.Offsets.To, start), Text: text})
		texts = append(texts, text)
	}
	tr.Text = strings.Join(texts, " ")
	if n := len(tr.Words); n > 0 {
		tr.AudioDuration = float64(tr.Words[n-1].End) / 1000
	}
	return tr, nil
}
