package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/podclips/internal/types"
)

func testTranscript() types.Transcript {
	return types.Transcript{Words: []types.Word{
		{Start: 9_500, End: 10_200, Text: "Before"},
		{Start: 10_200, End: 10_500, Text: "Hello"},
		{Start: 10_500, End: 11_000, Text: "world"},
		{Start: 39_800, End: 40_400, Text: "edge"},
	}}
}

func TestRenderVerticalASS_KaraokeHasKTags(t *testing.T) {
	ass, err := RenderVerticalASS(testTranscript(), 10*time.Second, 40*time.Second, "label")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ass, "{\\k") {
		t.Fatalf("expected karaoke tags in ASS, got:\n%s", ass)
	}
	if !strings.Contains(ass, "PlayResX: 1080") || !strings.Contains(ass, "PlayResY: 1920") {
		t.Fatalf("expected vertical canvas, got:\n%s", ass)
	}
	// Words are clipped to the window and shifted to clip-local time.
	if !strings.Contains(ass, "Dialogue: 0,0:00:00.00,") {
		t.Fatalf("expected first line at clip start, got:\n%s", ass)
	}
	if strings.Contains(ass, "label") {
		t.Fatalf("fallback text must not be used when words exist")
	}
}

func TestRenderVerticalASS_PlainFallback(t *testing.T) {
	ass, err := RenderVerticalASS(types.Transcript{}, 0, 30*time.Second, "Clip at {0:00}")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(ass, "{\\k") {
		t.Fatalf("plain fallback must not contain karaoke tags")
	}
	if !strings.Contains(ass, "Dialogue: 0,0:00:00.00,0:00:30.00,Vertical,,0,0,0,,Clip at (0:00)") {
		t.Fatalf("unexpected plain event:\n%s", ass)
	}
}

func TestRenderVerticalASS_EmptyWindow(t *testing.T) {
	if _, err := RenderVerticalASS(testTranscript(), 5*time.Second, 5*time.Second, ""); err == nil {
		t.Fatalf("expected error for empty window")
	}
}

func TestWindowText(t *testing.T) {
	got := WindowText(testTranscript(), 10*time.Second, 40*time.Second)
	if got != "Hello world" {
		t.Fatalf("unexpected window text %q", got)
	}
	if got := WindowText(types.Transcript{}, 0, time.Minute); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestPackWords_SplitsLongRuns(t *testing.T) {
	var words []wword
	for i := 0; i < 14; i++ {
		st := time.Duration(i) * 300 * time.Millisecond
		words = append(words, wword{Start: st, End: st + 250*time.Millisecond, Text: "word"})
	}
	lines := packWords(words)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, ln := range lines {
		if len(ln.Words) > 6 {
			t.Fatalf("line too long: %d words", len(ln.Words))
		}
		if ln.End < ln.Start {
			t.Fatalf("line ends before it starts: %+v", ln)
		}
	}
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}
