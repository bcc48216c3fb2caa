package selection

import (
	"math"
)

const (
	DefaultMaxClips                 = 5
	DefaultClipDurationSec          = 30.0
	DefaultSentimentConfidenceFloor = 0.6
	DefaultLeadInSec                = 5.0
	DefaultMaxVideoDurationSec      = 7200.0

	// neutralScore stands in for scores the annotation service did not report.
	neutralScore = 0.5

	// spacingTolerance absorbs float error when starts sit exactly one
	// spacing apart.
	spacingTolerance = 1e-6
)

// Params tunes the selector. Zero values are replaced by Normalize.
type Params struct {
	MaxClips                 int
	ClipDurationSec          float64
	MinSpacingSec            float64
	SentimentConfidenceFloor float64
	LeadInSec                float64
}

func DefaultParams() Params {
	return Params{
		MaxClips:                 DefaultMaxClips,
		ClipDurationSec:          DefaultClipDurationSec,
		MinSpacingSec:            DefaultClipDurationSec,
		SentimentConfidenceFloor: DefaultSentimentConfidenceFloor,
		LeadInSec:                DefaultLeadInSec,
	}
}

// Normalize returns a copy with unusable values replaced. Spacing never drops
// below the clip duration so accepted windows cannot overlap.
func (p Params) Normalize() Params {
	if p.MaxClips <= 0 {
		p.MaxClips = DefaultMaxClips
	}
	if !(p.ClipDurationSec > 0) || math.IsInf(p.ClipDurationSec, 0) {
		p.ClipDurationSec = DefaultClipDurationSec
	}
	if !(p.MinSpacingSec >= p.ClipDurationSec) || math.IsInf(p.MinSpacingSec, 0) {
		p.MinSpacingSec = p.ClipDurationSec
	}
	switch {
	case math.IsNaN(p.SentimentConfidenceFloor):
		p.SentimentConfidenceFloor = DefaultSentimentConfidenceFloor
	case p.SentimentConfidenceFloor < 0:
		p.SentimentConfidenceFloor = 0
	case p.SentimentConfidenceFloor > 1:
		p.SentimentConfidenceFloor = 1
	}
	if !(p.LeadInSec >= 0) || math.IsInf(p.LeadInSec, 0) {
		p.LeadInSec = 0
	}
	return p
}

// EffectiveDuration resolves the media duration the selector runs with. A
// failed or empty probe yields the ceiling; longer media is capped to it.
func EffectiveDuration(probedSec float64, probeErr error, ceilingSec float64) float64 {
	if !(ceilingSec > 0) {
		ceilingSec = DefaultMaxVideoDurationSec
	}
	if probeErr != nil || !(probedSec > 0) || math.IsInf(probedSec, 0) {
		return ceilingSec
	}
	return math.Min(probedSec, ceilingSec)
}
