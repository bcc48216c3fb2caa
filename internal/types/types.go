package types

// Transcript mirrors the transcription service result. Times are milliseconds.
// Every list may be absent; absent lists decode to nil and are treated as empty.
type Transcript struct {
	ID            string  `json:"id,omitempty"`
	Status        string  `json:"status,omitempty"`
	Error         string  `json:"error,omitempty"`
	Text          string  `json:"text,omitempty"`
	AudioDuration float64 `json:"audio_duration,omitempty"`

	Words                    []Word            `json:"words,omitempty"`
	SentimentAnalysisResults []SentimentResult `json:"sentiment_analysis_results,omitempty"`
	Chapters                 []Chapter         `json:"chapters,omitempty"`
}

type Word struct {
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

type SentimentResult struct {
	Start      int64    `json:"start"`
	End        int64    `json:"end"`
	Sentiment  string   `json:"sentiment"`
	Confidence *float64 `json:"confidence,omitempty"`
	Text       string   `json:"text"`
}

type Chapter struct {
	Start               int64    `json:"start"`
	End                 int64    `json:"end"`
	Headline            string   `json:"headline,omitempty"`
	Gist                string   `json:"gist,omitempty"`
	Summary             string   `json:"summary,omitempty"`
	SummaryQualityScore *float64 `json:"summary_quality_score,omitempty"`
}

type SpanKind string

const (
	SpanSentiment SpanKind = "SENTIMENT"
	SpanChapter   SpanKind = "CHAPTER"
)

type Polarity string

const (
	PolarityPositive Polarity = "POSITIVE"
	PolarityNegative Polarity = "NEGATIVE"
	PolarityNeutral  Polarity = "NEUTRAL"
)

// AnnotatedSpan is one time-stamped signal extracted from a transcript.
// Sentiment spans are point events at StartMS.
type AnnotatedSpan struct {
	StartMS  int64
	EndMS    int64
	Kind     SpanKind
	Label    string
	Score    float64
	Polarity Polarity
}

type Origin string

const (
	OriginSentiment Origin = "SENTIMENT"
	OriginChapter   Origin = "CHAPTER"
	OriginFallback  Origin = "FALLBACK"
)

// CandidateSegment is one selected clip window.
type CandidateSegment struct {
	ID          int     `json:"id"`
	StartSec    float64 `json:"start_sec"`
	DurationSec float64 `json:"duration_sec"`
	Origin      Origin  `json:"origin"`
	Confidence  float64 `json:"confidence"`
	Label       string  `json:"label"`
}

type Manifest struct {
	Input             string         `json:"input"`
	SourceID          string         `json:"source_id,omitempty"`
	DurationSec       float64        `json:"duration_sec"`
	SelectionFallback bool           `json:"selection_fallback"`
	Clips             []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID         string  `json:"id"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Origin     Origin  `json:"origin"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Text       string  `json:"text"`
	File       string  `json:"file"`
	Subtitles  string  `json:"subtitles,omitempty"`
}
