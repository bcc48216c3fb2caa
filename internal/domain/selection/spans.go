package selection

import (
	"math"
	"strings"

	"github.com/forPelevin/podclips/internal/types"
)

// SpansFromTranscript extracts selector inputs from a transcription result.
// Missing lists contribute nothing and missing scores default to 0.5.
func SpansFromTranscript(tr types.Transcript) []types.AnnotatedSpan {
	spans := make([]types.AnnotatedSpan, 0, len(tr.SentimentAnalysisResults)+len(tr.Chapters))
	for _, s := range tr.SentimentAnalysisResults {
		start := max(s.Start, 0)
		spans = append(spans, types.AnnotatedSpan{
			StartMS:  start,
			EndMS:    start,
			Kind:     types.SpanSentiment,
			Label:    strings.TrimSpace(s.Text),
			Score:    scoreOrDefault(s.Confidence),
			Polarity: parsePolarity(s.Sentiment),
		})
	}
	for _, c := range tr.Chapters {
		start := max(c.Start, 0)
		spans = append(spans, types.AnnotatedSpan{
			StartMS: start,
			EndMS:   max(c.End, start),
			Kind:    types.SpanChapter,
			Label:   firstNonEmpty(c.Summary, c.Headline, c.Gist),
			Score:   scoreOrDefault(c.SummaryQualityScore),
		})
	}
	return spans
}

func parsePolarity(s string) types.Polarity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "POSITIVE":
		return types.PolarityPositive
	case "NEGATIVE":
		return types.PolarityNegative
	default:
		return types.PolarityNeutral
	}
}

func scoreOrDefault(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return neutralScore
	}
	return math.Min(math.Max(*v, 0), 1)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
