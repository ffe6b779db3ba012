package capture

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
)

// SyntheticDevice is a software camera/microphone pair: a moving test
// pattern for video and a fixed-amplitude tone for audio. It backs the demo
// client and the test suite; hardware devices implement the same interface.
type SyntheticDevice struct {
	// Amplitude of the generated tone in [0, 1]. Zero simulates silence.
	Amplitude float64
	// Deny makes Acquire fail, simulating refused device permissions.
	Deny bool

	mu       sync.Mutex
	acquired bool
	released bool
	frameNum int
}

// NewSyntheticDevice creates a synthetic device producing a tone of the
// given amplitude.
func NewSyntheticDevice(amplitude float64) *SyntheticDevice {
	return &SyntheticDevice{Amplitude: amplitude}
}

// Acquire takes the simulated camera and microphone.
func (d *SyntheticDevice) Acquire(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Deny {
		return ErrDeviceDenied
	}
	d.acquired = true
	d.released = false
	return nil
}

// Frame renders a 640×480 moving gradient so consecutive frames differ.
func (d *SyntheticDevice) Frame(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	if !d.acquired {
		d.mu.Unlock()
		return nil, ErrDeviceDenied
	}
	d.frameNum++
	shift := d.frameNum
	d.mu.Unlock()

	const w, h = 640, 480
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + shift*4) % 256),
				G: uint8((y + shift*2) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img, nil
}

// AudioWindow returns one analysis window of a pure tone at the configured
// amplitude.
func (d *SyntheticDevice) AudioWindow() []float64 {
	window := make([]float64, analysisWindow)
	for i := range window {
		// 8 cycles per window keeps the tone on an exact analysis bin.
		window[i] = d.Amplitude * math.Sin(2*math.Pi*8*float64(i)/float64(analysisWindow))
	}
	return window
}

// Release frees the simulated devices.
func (d *SyntheticDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquired = false
	d.released = true
	return nil
}

// Released reports whether Release has been called. Used by tests to verify
// the sampler frees device handles.
func (d *SyntheticDevice) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}
