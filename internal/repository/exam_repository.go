// Package repository holds the pgx data access layer.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRow is an exam as stored, including scoring fields that never reach
// the client.
type ExamRow struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	PassPercentage  float64
}

// QuestionRow is a question as stored. CorrectOption and Marks stay
// server-side; the handler strips them before building the paper payload.
type QuestionRow struct {
	ID            uuid.UUID
	QuestionText  string
	Options       []string
	CorrectOption int
	Marks         int
	Position      int
}

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*ExamRow, error) {
	e := &ExamRow{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, duration_minutes, pass_percentage
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.DurationMinutes, &e.PassPercentage)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetQuestions retrieves an exam's questions in display order.
func (r *ExamRepository) GetQuestions(ctx context.Context, examID uuid.UUID) ([]QuestionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, correct_option, marks, position
		 FROM questions WHERE exam_id = $1 ORDER BY position ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []QuestionRow
	for rows.Next() {
		var q QuestionRow
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Options, &q.CorrectOption, &q.Marks, &q.Position); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
