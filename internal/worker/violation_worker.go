// Package worker holds the background queue consumers.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWorker drains the violation persistence queue into PostgreSQL in
// batches. The live proctoring path only ever touches Redis; durability is
// this worker's job.
type ViolationWorker struct {
	violations *repository.ViolationRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(violations *repository.ViolationRepository, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		violations: violations,
		rdb:        rdb,
		log:        log.With().Str("component", "violation_worker").Logger(),
	}
}

type violationPayload struct {
	SessionID     string  `json:"session_id"`
	ExamID        string  `json:"exam_id"`
	ViolationType *string `json:"violation_type"`
	Image         *string `json:"image"`
	AudioLevel    float64 `json:"audio_level"`
	Timestamp     int64   `json:"timestamp"`
}

// Start runs the drain loop until the context is cancelled.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]*violationPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check flush conditions (time or size).
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check context (graceful shutdown).
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis. BLPop blocks for 1 second and returns
		// immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload violationPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*violationPayload) {
	rows, bad := w.toRows(batch)
	for _, p := range bad {
		w.log.Error().Str("session_id", p.SessionID).Msg("Dropping record with invalid UUID")
	}
	if len(rows) == 0 {
		return
	}

	if err := w.violations.InsertBatch(ctx, rows); err != nil {
		w.log.Warn().Err(err).Int("count", len(rows)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ViolationWorker) toRows(batch []*violationPayload) ([]repository.ViolationRow, []*violationPayload) {
	rows := make([]repository.ViolationRow, 0, len(batch))
	var bad []*violationPayload
	for _, p := range batch {
		row, err := p.toRow()
		if err != nil {
			bad = append(bad, p)
			continue
		}
		rows = append(rows, row)
	}
	return rows, bad
}

func (p *violationPayload) toRow() (repository.ViolationRow, error) {
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return repository.ViolationRow{}, err
	}
	examID, err := uuid.Parse(p.ExamID)
	if err != nil {
		return repository.ViolationRow{}, err
	}
	return repository.ViolationRow{
		SessionID:     sessionID,
		ExamID:        examID,
		ViolationType: p.ViolationType,
		Image:         p.Image,
		AudioLevel:    p.AudioLevel,
		RecordedAt:    time.Unix(p.Timestamp, 0),
	}, nil
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []*violationPayload) {
	requeueList := make([]*violationPayload, 0)

	for _, p := range batch {
		row, err := p.toRow()
		if err != nil {
			w.log.Error().Str("session_id", p.SessionID).Msg("Dropping record with invalid UUID")
			continue
		}

		if err := w.violations.InsertOne(ctx, row); err != nil {
			// Requeue everything that fails the insert; most failures here
			// are the database being down, not bad data.
			w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []*violationPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Back off so a hard-down database is not hammered.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []*violationPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
