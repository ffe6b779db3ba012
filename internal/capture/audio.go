package capture

import (
	"math"
)

// analysisWindow is the number of PCM samples fed to the spectrum analysis.
const analysisWindow = 256

// spectrumGain maps the raw average bin magnitude onto a perceptual 0..1
// scale; a full-scale tone lands around 0.5 and broadband noise saturates.
const spectrumGain = 64.0

// Level derives a normalized loudness from a rolling PCM window: the
// average frequency-domain magnitude over the window, scaled and clamped to
// [0, 1]. 0 is silence; values approach 1 at maximum loudness.
func Level(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	if len(window) > analysisWindow {
		window = window[len(window)-analysisWindow:]
	}
	n := len(window)
	bins := n / 2
	if bins == 0 {
		return 0
	}

	var sum float64
	for k := 1; k <= bins; k++ {
		var re, im float64
		for i, x := range window {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += x * math.Cos(angle)
			im += x * math.Sin(angle)
		}
		// Normalized so a full-scale tone contributes 1.0 at its bin.
		sum += math.Hypot(re, im) / (float64(n) / 2)
	}

	level := spectrumGain * sum / float64(bins)
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
