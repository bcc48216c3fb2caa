package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/podclips/internal/types"
)

// RenderVerticalASS builds a karaoke subtitle file for a 1080x1920 clip
// covering [start, end). fallbackText is shown for the whole clip when the
// transcript has no words in the window.
func RenderVerticalASS(tr types.Transcript, start, end time.Duration, fallbackText string) (string, error) {
	if end <= start {
		return "", fmt.Errorf("subtitles: empty window %s..%s", start, end)
	}
	words := collectWords(tr, start, end)
	if len(words) == 0 {
		return renderASSPlain(fallbackText, end-start), nil
	}
	lines := packWords(words)
	return renderASSKaraoke(lines), nil
}

// WindowText joins the words that lie entirely inside [start, end].
func WindowText(tr types.Transcript, start, end time.Duration) string {
	var parts []string
	for _, w := range tr.Words {
		ws := ms(w.Start)
		we := ms(w.End)
		if ws < start || we > end {
			continue
		}
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

type wword struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start time.Duration
	End   time.Duration
	Words []wword
}

func collectWords(tr types.Transcript, start, end time.Duration) []wword {
	var out []wword
	for _, w := range tr.Words {
		ws := ms(w.Start)
		we := ms(w.End)
		if we <= start || ws >= end {
			continue
		}
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		if ws < start {
			ws = start
		}
		if we > end {
			we = end
		}
		// Offsets are clip-local: each clip gets its own subtitle file.
		out = append(out, wword{Start: ws - start, End: we - start, Text: sanitizeASS(text)})
	}
	return out
}

// packWords groups words into lines short enough for a portrait frame.
func packWords(words []wword) []line {
	var out []line
	cur := line{Start: words[0].Start}
	charBudget := 28
	wordBudget := 6
	curLen := 0
	for i, w := range words {
		wl := len([]rune(w.Text))
		nextLen := curLen
		if curLen > 0 {
			nextLen++
		}
		nextLen += wl
		if len(cur.Words) > 0 && (len(cur.Words) >= wordBudget || nextLen > charBudget) {
			cur.End = cur.Words[len(cur.Words)-1].End
			out = append(out, cur)
			cur = line{Start: w.Start}
			curLen = 0
		}
		cur.Words = append(cur.Words, w)
		if curLen > 0 {
			curLen++
		}
		curLen += wl
		if i == len(words)-1 {
			cur.End = w.End
			out = append(out, cur)
		}
	}
	return out
}

func renderASSKaraoke(lines []line) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ln := range lines {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(ln.Start))
		b.WriteString(",")
		b.WriteString(assTime(ln.End))
		b.WriteString(",Vertical,,0,0,0,,")
		for _, w := range ln.Words {
			durCS := int((w.End - w.Start) / (10 * time.Millisecond))
			if durCS < 1 {
				durCS = 1
			}
			b.WriteString(fmt.Sprintf("{\\k%d}%s ", durCS, w.Text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderASSPlain(text string, dur time.Duration) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	b.WriteString("Dialogue: 0,0:00:00.00,")
	b.WriteString(assTime(dur))
	b.WriteString(",Vertical,,0,0,0,,")
	b.WriteString(sanitizeASS(text))
	b.WriteString("\n")
	return b.String()
}

// assHeader targets the padded 1080x1920 frame; captions sit in the lower
// third, clear of the letterboxed picture.
func assHeader() string {
	return strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Vertical, Arial, 72, &H00FFFFFF, &H0000D7FF, &H00000000, &H80000000, 1,0,0,0,100,100,0,0,1,5,2,2, 60,60,420,1
`)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
