package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/proctorly/examroom/internal/model"
)

// Downscale target for outbound frames.
const (
	FrameWidth  = 320
	FrameHeight = 240
	jpegQuality = 40
)

// Sampler runs the fixed-period capture loop: every period it grabs one
// downscaled still frame and one audio level and emits them as a periodic
// violation sample. Sampling continues until Stop or context cancellation,
// after which the device is released.
type Sampler struct {
	log      zerolog.Logger
	dev      Device
	interval time.Duration
	out      chan model.ViolationSample
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSampler creates a sampler over dev with the given capture period.
func NewSampler(log zerolog.Logger, dev Device, interval time.Duration) *Sampler {
	return &Sampler{
		log:      log.With().Str("component", "capture").Logger(),
		dev:      dev,
		interval: interval,
		out:      make(chan model.ViolationSample, 4),
		stop:     make(chan struct{}),
	}
}

// Start acquires the device and begins the sampling loop. Acquisition
// failure is returned to the caller and is fatal to starting the session.
// The returned channel closes once sampling has stopped and the device is
// released.
func (s *Sampler) Start(ctx context.Context) (<-chan model.ViolationSample, error) {
	if err := s.dev.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire device: %w", err)
	}
	go s.run(ctx)
	return s.out, nil
}

// Stop ends the sampling loop. Idempotent.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.out)
	defer func() {
		if err := s.dev.Release(); err != nil {
			s.log.Warn().Err(err).Msg("Device release failed")
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			sample, err := s.capture(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("Capture tick failed, skipping")
				continue
			}
			select {
			case s.out <- sample:
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Sampler) capture(ctx context.Context) (model.ViolationSample, error) {
	frame, err := s.dev.Frame(ctx)
	if err != nil {
		return model.ViolationSample{}, fmt.Errorf("frame: %w", err)
	}
	encoded, err := EncodeFrame(frame)
	if err != nil {
		return model.ViolationSample{}, fmt.Errorf("encode: %w", err)
	}
	return model.PeriodicSample(encoded, Level(s.dev.AudioWindow())), nil
}

// EncodeFrame downscales a frame to 320×240 and encodes it as a JPEG data
// URL.
func EncodeFrame(src image.Image) (string, error) {
	dst := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
