package model

// ViolationType labels a discrete environment violation detected by the
// client-side event monitor.
type ViolationType string

const (
	ViolationTabSwitch     ViolationType = "Tab Switch / Minimized"
	ViolationFocusLost     ViolationType = "Window Focus Lost"
	ViolationRestrictedKey ViolationType = "Restricted Key Pressed"

	// ViolationBackgroundNoise is derived server-side from sustained loud
	// audio samples; the client never emits it directly.
	ViolationBackgroundNoise ViolationType = "Background Noise / Talking detected"
)

// ViolationSample is the tagged union sent to the proctoring collaborator.
// Exactly one of the two shapes is populated per sample: a periodic capture
// (Image + AudioLevel) or a discrete event (ViolationType).
type ViolationSample struct {
	// Image is a base64 data URL of a downscaled JPEG still frame, nil for
	// discrete event samples.
	Image *string `json:"image"`
	// AudioLevel is the normalized loudness in [0, 1]. Meaningful only on
	// periodic samples.
	AudioLevel float64 `json:"audio_level"`
	// ViolationType is set only on discrete event samples.
	ViolationType *ViolationType `json:"violation_type"`
}

// PeriodicSample builds a capture-shaped sample.
func PeriodicSample(image string, audioLevel float64) ViolationSample {
	return ViolationSample{Image: &image, AudioLevel: audioLevel}
}

// EventSample builds a discrete-event-shaped sample.
func EventSample(vt ViolationType) ViolationSample {
	return ViolationSample{ViolationType: &vt}
}

// IsEvent reports whether the sample carries a discrete violation rather
// than a periodic capture.
func (s ViolationSample) IsEvent() bool {
	return s.ViolationType != nil
}
