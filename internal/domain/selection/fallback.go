package selection

// FallbackTimestamps derives candidate starts from the media duration alone.
//
// Short media (no longer than MaxClips back-to-back clips) is sampled at even
// fractions starting from zero, so coverage spans the whole file. Longer media
// is split into MaxClips+1 equal intervals and the inner boundaries are used,
// which keeps away from the very start and end.
func FallbackTimestamps(durationSec float64, p Params) []float64 {
	p = p.Normalize()
	if !(durationSec > 0) {
		return nil
	}
	n := p.MaxClips
	out := make([]float64, 0, n)
	if durationSec <= float64(n)*p.ClipDurationSec {
		for i := 0; i < n; i++ {
			out = append(out, float64(i)*durationSec/float64(n))
		}
		return out
	}
	for i := 1; i <= n; i++ {
		out = append(out, float64(i)*durationSec/float64(n+1))
	}
	return out
}
