package selection

import (
	"fmt"
	"math"
	"sort"

	"github.com/forPelevin/podclips/internal/types"
)

// Select picks up to p.MaxClips clip windows from annotated spans.
//
// Tiers run in priority order and only fill remaining capacity:
//   - sentiment: positive spans scoring strictly above the confidence floor,
//     started LeadInSec early for context.
//   - chapter: chapter starts ranked by quality score.
//   - fallback: timestamps derived from the duration alone, or windows packed
//     from zero when that fits more of them.
//
// Every window is clamped inside the media before the spacing rule is applied,
// so the returned windows never overlap and never run past the end. The result
// is ordered by start time with 1-based ids in that order. Select is a pure
// function of its arguments.
func Select(spans []types.AnnotatedSpan, durationSec float64, p Params) []types.CandidateSegment {
	p = p.Normalize()
	out := []types.CandidateSegment{}
	if !(durationSec > 0) || math.IsInf(durationSec, 0) {
		return out
	}

	pk := picker{p: p, duration: durationSec}
	pk.sentimentTier(spans)
	if !pk.full() {
		pk.chapterTier(spans)
	}
	if !pk.full() {
		pk.fallbackTier()
	}

	out = append(out, pk.accepted...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartSec < out[j].StartSec })
	if len(out) > p.MaxClips {
		out = out[:p.MaxClips]
	}
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

type picker struct {
	p        Params
	duration float64
	accepted []types.CandidateSegment
}

func (k *picker) full() bool { return len(k.accepted) >= k.p.MaxClips }

func (k *picker) sentimentTier(spans []types.AnnotatedSpan) {
	var cands []types.AnnotatedSpan
	for _, s := range spans {
		if s.Kind != types.SpanSentiment || s.Polarity != types.PolarityPositive {
			continue
		}
		if !(s.Score > k.p.SentimentConfidenceFloor) {
			continue
		}
		cands = append(cands, s)
	}
	rankByScore(cands)
	for _, s := range cands {
		if k.full() {
			return
		}
		start := math.Max(0, msToSec(s.StartMS)-k.p.LeadInSec)
		k.offer(start, types.OriginSentiment, s.Score, s.Label)
	}
}

func (k *picker) chapterTier(spans []types.AnnotatedSpan) {
	var cands []types.AnnotatedSpan
	for _, s := range spans {
		if s.Kind == types.SpanChapter {
			cands = append(cands, s)
		}
	}
	rankByScore(cands)
	for _, s := range cands {
		if k.full() {
			return
		}
		k.offer(msToSec(s.StartMS), types.OriginChapter, s.Score, s.Label)
	}
}

// fallbackTier offers the duration-derived timestamps and then fills any gaps.
// Clamping can bunch those timestamps on short media, so a plain packing from
// zero is tried as well and wins when it fits more windows.
func (k *picker) fallbackTier() {
	spread := k.fork()
	for _, ts := range FallbackTimestamps(k.duration, k.p) {
		if spread.full() {
			break
		}
		spread.offer(ts, types.OriginFallback, neutralScore, "")
	}
	spread.pack()

	packed := k.fork()
	packed.pack()

	if len(packed.accepted) > len(spread.accepted) {
		k.accepted = packed.accepted
		return
	}
	k.accepted = spread.accepted
}

// pack places fallback windows at the earliest start that keeps the spacing
// rule, left to right.
func (k *picker) pack() {
	limit := math.Max(0, k.duration-k.p.ClipDurationSec)
	x := 0.0
	for x <= limit && !k.full() {
		if next, blocked := k.blockedUntil(x); blocked {
			x = next
			continue
		}
		k.offer(x, types.OriginFallback, neutralScore, "")
		x += k.p.MinSpacingSec
	}
}

// blockedUntil reports whether start is too close to an accepted window and,
// if so, the first start past every conflicting one.
func (k *picker) blockedUntil(start float64) (float64, bool) {
	next, blocked := start, false
	for _, a := range k.accepted {
		if k.tooClose(a.StartSec, start) {
			next = math.Max(next, a.StartSec+k.p.MinSpacingSec)
			blocked = true
		}
	}
	return next, blocked
}

func (k *picker) tooClose(a, b float64) bool {
	return math.Abs(a-b) < k.p.MinSpacingSec-spacingTolerance
}

func (k *picker) fork() *picker {
	return &picker{
		p:        k.p,
		duration: k.duration,
		accepted: append([]types.CandidateSegment(nil), k.accepted...),
	}
}

// offer clamps start into the media and accepts it when it keeps the spacing
// rule against everything accepted so far.
func (k *picker) offer(start float64, origin types.Origin, score float64, label string) bool {
	if k.full() {
		return false
	}
	start = k.clamp(start)
	for _, a := range k.accepted {
		if k.tooClose(a.StartSec, start) {
			return false
		}
	}
	if label == "" {
		label = ClipLabel(start)
	}
	k.accepted = append(k.accepted, types.CandidateSegment{
		StartSec:    start,
		DurationSec: k.p.ClipDurationSec,
		Origin:      origin,
		Confidence:  displayConfidence(score),
		Label:       label,
	})
	return true
}

func (k *picker) clamp(start float64) float64 {
	if math.IsNaN(start) {
		start = 0
	}
	if start+k.p.ClipDurationSec > k.duration {
		start = k.duration - k.p.ClipDurationSec
	}
	if start < 0 {
		start = 0
	}
	return roundMillis(start)
}

// rankByScore orders by score descending, then start ascending.
func rankByScore(spans []types.AnnotatedSpan) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Score != spans[j].Score {
			return spans[i].Score > spans[j].Score
		}
		return spans[i].StartMS < spans[j].StartMS
	})
}

func displayConfidence(score float64) float64 {
	if math.IsNaN(score) || score < neutralScore {
		return neutralScore
	}
	if score > 1 {
		return 1
	}
	return score
}

// ClipLabel is the label used when a segment carries no text of its own.
func ClipLabel(startSec float64) string {
	total := int(math.Max(0, startSec))
	return fmt.Sprintf("Clip at %d:%02d", total/60, total%60)
}

func msToSec(ms int64) float64 { return float64(ms) / 1000 }

// roundMillis drops sub-millisecond noise so identical inputs always print
// identically.
func roundMillis(sec float64) float64 { return math.Round(sec*1000) / 1000 }
