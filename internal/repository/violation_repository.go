package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViolationRow is one persisted proctoring record: either a discrete
// violation or a periodic capture snapshot.
type ViolationRow struct {
	SessionID     uuid.UUID
	ExamID        uuid.UUID
	ViolationType *string
	Image         *string
	AudioLevel    float64
	RecordedAt    time.Time
}

// ViolationRepository persists proctoring records.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// InsertBatch bulk-inserts a batch via COPY. The whole batch fails together;
// callers fall back to InsertOne for row-level recovery.
func (r *ViolationRepository) InsertBatch(ctx context.Context, batch []ViolationRow) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []interface{}{
			v.SessionID, v.ExamID, v.ViolationType, v.Image, v.AudioLevel, v.RecordedAt,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"violations"},
		[]string{"session_id", "exam_id", "violation_type", "image", "audio_level", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// InsertOne inserts a single record.
func (r *ViolationRepository) InsertOne(ctx context.Context, v ViolationRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO violations (session_id, exam_id, violation_type, image, audio_level, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		v.SessionID, v.ExamID, v.ViolationType, v.Image, v.AudioLevel, v.RecordedAt,
	)
	return err
}
