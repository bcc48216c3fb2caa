package ports

import (
	"context"
	"time"

	"github.com/forPelevin/podclips/internal/types"
)

// Fetcher downloads a remote video into destDir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, videoID, destDir string) (string, error)
}

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
	RenderClip(ctx context.Context, inMP4 string, start, end time.Duration, outMP4 string, burnASS string) error
	ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error)
}

// Transcriber turns extracted audio into words plus optional sentiment and
// chapter annotations. workDir holds adapter scratch files.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error)
}
