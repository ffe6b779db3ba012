package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/protocol"
)

// violationRecord is the queue payload consumed by the persistence worker.
type violationRecord struct {
	SessionID     string  `json:"session_id"`
	ExamID        string  `json:"exam_id"`
	ViolationType *string `json:"violation_type"`
	Image         *string `json:"image"`
	AudioLevel    float64 `json:"audio_level"`
	Timestamp     int64   `json:"timestamp"`
}

// ProctorService applies the escalation policy to the inbound sample stream.
// Discrete violations pass through a per-kind cooldown before counting;
// periodic captures are persisted as-is and their audio level feeds the
// loud-noise detector. The warning tally is the sole input to the
// termination decision.
type ProctorService struct {
	cfg   *config.Config
	store SessionStore
	log   zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(cfg *config.Config, store SessionStore, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "proctor_service").Logger(),
	}
}

// HandleSample processes one inbound sample and returns the event to push
// back, if any.
func (s *ProctorService) HandleSample(ctx context.Context, sessionID, examID string, sample model.ViolationSample) (*protocol.EventEnvelope, error) {
	if sample.IsEvent() {
		return s.handleViolation(ctx, sessionID, examID, *sample.ViolationType, sample)
	}
	return s.handlePeriodic(ctx, sessionID, examID, sample)
}

func (s *ProctorService) handleViolation(ctx context.Context, sessionID, examID string, vt model.ViolationType, sample model.ViolationSample) (*protocol.EventEnvelope, error) {
	claimed, err := s.store.TryCooldown(ctx, sessionID, string(vt), s.cfg.ViolationCooldown)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Same violation kind within the cooldown window: recorded nowhere,
		// counted nowhere.
		return nil, nil
	}
	return s.escalate(ctx, sessionID, examID, vt, sample)
}

func (s *ProctorService) handlePeriodic(ctx context.Context, sessionID, examID string, sample model.ViolationSample) (*protocol.EventEnvelope, error) {
	// Frames are stored for later review, never analyzed inline.
	s.queueRecord(ctx, sessionID, examID, nil, sample)

	if sample.AudioLevel < s.cfg.AudioThreshold {
		if err := s.store.ResetNoiseStreak(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	streak, err := s.store.BumpNoiseStreak(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if streak < s.cfg.NoiseStreak {
		return nil, nil
	}
	if err := s.store.ResetNoiseStreak(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.handleViolation(ctx, sessionID, examID, model.ViolationBackgroundNoise, sample)
}

// escalate counts one confirmed violation and decides between a warning and
// termination.
func (s *ProctorService) escalate(ctx context.Context, sessionID, examID string, vt model.ViolationType, sample model.ViolationSample) (*protocol.EventEnvelope, error) {
	count, err := s.store.IncrWarnings(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("incr warnings: %w", err)
	}

	kind := string(vt)
	s.queueRecord(ctx, sessionID, examID, &kind, sample)

	if count >= s.cfg.MaxWarnings {
		if err := s.store.SetStatus(ctx, sessionID, SessionTerminated, s.cfg.JWTExpiry); err != nil {
			return nil, fmt.Errorf("terminate session: %w", err)
		}
		s.log.Warn().
			Str("session_id", sessionID).
			Int("count", count).
			Str("violation", kind).
			Msg("Session terminated")
		ev := protocol.TerminatedEvent("Max warnings exceeded. Exam Terminated.", &s.cfg.DashboardURL)
		return &ev, nil
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("count", count).
		Str("violation", kind).
		Msg("Warning issued")
	ev := protocol.WarningEvent(kind, count)
	return &ev, nil
}

func (s *ProctorService) queueRecord(ctx context.Context, sessionID, examID string, vt *string, sample model.ViolationSample) {
	payload, err := json.Marshal(violationRecord{
		SessionID:     sessionID,
		ExamID:        examID,
		ViolationType: vt,
		Image:         sample.Image,
		AudioLevel:    sample.AudioLevel,
		Timestamp:     time.Now().Unix(),
	})
	if err != nil {
		return
	}
	// Persistence is best effort; the live stream must not stall on it.
	if err := s.store.QueueViolation(ctx, payload); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Violation not queued")
	}
}
