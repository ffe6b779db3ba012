// Package capture owns camera/microphone access and produces the periodic
// still-image + audio-level samples consumed by the violation reporter.
package capture

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceDenied indicates camera or microphone access could not be
// acquired. This is fatal to starting a proctored session.
var ErrDeviceDenied = errors.New("camera/microphone access denied")

// Device is one camera+microphone pair. Acquire takes exclusive access to
// both; a session must not proceed unless both are held. Implementations
// are platform-specific; the sampler only depends on this interface.
type Device interface {
	// Acquire takes exclusive access to camera and microphone. Returns an
	// error wrapping ErrDeviceDenied when access is unavailable.
	Acquire(ctx context.Context) error
	// Frame captures one still frame at the device's native resolution.
	Frame(ctx context.Context) (image.Image, error)
	// AudioWindow returns the most recent rolling window of PCM samples in
	// [-1, 1] for loudness analysis.
	AudioWindow() []float64
	// Release frees the camera and microphone. Safe to call once after a
	// successful Acquire.
	Release() error
}
