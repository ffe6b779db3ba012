package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/repository"
)

// Common exam service errors.
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrSessionTerminated = errors.New("session was terminated")
	ErrAlreadySubmitted  = errors.New("session already submitted")
)

// ResultPassed and ResultFailed are the two values of result_status.
const (
	ResultPassed = "Passed"
	ResultFailed = "Failed"
)

// ExamReader is the slice of the exam repository the service needs.
type ExamReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.ExamRow, error)
	GetQuestions(ctx context.Context, examID uuid.UUID) ([]repository.QuestionRow, error)
}

// ExamService serves exam content and scores submissions.
type ExamService struct {
	cfg    *config.Config
	exams  ExamReader
	store  SessionStore
	tokens *TokenService
	log    zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(cfg *config.Config, exams ExamReader, store SessionStore, tokens *TokenService, log zerolog.Logger) *ExamService {
	return &ExamService{
		cfg:    cfg,
		exams:  exams,
		store:  store,
		tokens: tokens,
		log:    log.With().Str("component", "exam_service").Logger(),
	}
}

// Join creates a proctoring session for an exam and returns its token.
func (s *ExamService) Join(ctx context.Context, examID uuid.UUID) (model.JoinResult, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return model.JoinResult{}, err
	}

	sessionID := uuid.New()
	token, err := s.tokens.Generate(sessionID, exam.ID)
	if err != nil {
		return model.JoinResult{}, fmt.Errorf("generate session token: %w", err)
	}

	if err := s.store.SetStatus(ctx, sessionID.String(), SessionActive, s.cfg.JWTExpiry); err != nil {
		return model.JoinResult{}, fmt.Errorf("register session: %w", err)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("exam_id", exam.ID.String()).
		Msg("Session joined")

	return model.JoinResult{
		Token:   token,
		Session: model.SessionInfo{ID: sessionID, ExamID: exam.ID},
	}, nil
}

// Paper returns the exam metadata and question sequence. Correct options and
// marks never cross this boundary.
func (s *ExamService) Paper(ctx context.Context, examID uuid.UUID) (model.ExamPaper, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return model.ExamPaper{}, err
	}
	questions, err := s.exams.GetQuestions(ctx, examID)
	if err != nil {
		return model.ExamPaper{}, fmt.Errorf("get questions: %w", err)
	}
	if len(questions) == 0 {
		return model.ExamPaper{}, ErrNoQuestions
	}

	paper := model.ExamPaper{
		Exam: model.ExamMeta{
			ID:              exam.ID,
			Name:            exam.Name,
			DurationMinutes: exam.DurationMinutes,
			PassPercentage:  exam.PassPercentage,
		},
		Questions: make([]model.Question, 0, len(questions)),
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, model.Question{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
		})
	}
	return paper, nil
}

// Submit scores a complete answer map, marks-weighted: each question
// contributes its marks when the selected option matches, and the percentage
// is obtained over total marks. Terminated sessions are rejected. A repeat
// submit replays the recorded result, so re-triggering after success is safe.
func (s *ExamService) Submit(ctx context.Context, sessionID string, examID uuid.UUID, answers model.AnswerMap) (model.SubmitResult, error) {
	status, err := s.store.Status(ctx, sessionID)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("check session status: %w", err)
	}
	switch status {
	case SessionTerminated:
		return model.SubmitResult{}, ErrSessionTerminated
	case SessionSubmitted:
		return s.recordedResult(ctx, sessionID)
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return model.SubmitResult{}, err
	}
	questions, err := s.exams.GetQuestions(ctx, examID)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("get questions: %w", err)
	}
	if len(questions) == 0 {
		return model.SubmitResult{}, ErrNoQuestions
	}

	obtained, total := 0, 0
	for _, q := range questions {
		total += q.Marks
		if selected, ok := answers[q.ID.String()]; ok && selected == q.CorrectOption {
			obtained += q.Marks
		}
	}

	var percentage float64
	if total > 0 {
		percentage = float64(obtained) / float64(total) * 100
	}

	resultStatus := ResultFailed
	if percentage >= exam.PassPercentage {
		resultStatus = ResultPassed
	}

	result := model.SubmitResult{
		Success:       true,
		ObtainedMarks: obtained,
		TotalMarks:    total,
		Percentage:    percentage,
		ResultStatus:  resultStatus,
	}

	if err := s.store.SetStatus(ctx, sessionID, SessionSubmitted, s.cfg.JWTExpiry); err != nil {
		return model.SubmitResult{}, fmt.Errorf("mark submitted: %w", err)
	}
	if payload, err := json.Marshal(result); err == nil {
		if err := s.store.SetResult(ctx, sessionID, payload, s.cfg.JWTExpiry); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Result not cached")
		}
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("obtained", obtained).
		Int("total", total).
		Float64("percentage", percentage).
		Str("result", resultStatus).
		Msg("Exam submitted")

	return result, nil
}

// recordedResult replays the cached score of an already-submitted session.
// If the cache has expired the repeat is rejected instead.
func (s *ExamService) recordedResult(ctx context.Context, sessionID string) (model.SubmitResult, error) {
	payload, err := s.store.Result(ctx, sessionID)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("load recorded result: %w", err)
	}
	if payload == nil {
		return model.SubmitResult{}, ErrAlreadySubmitted
	}
	var result model.SubmitResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return model.SubmitResult{}, fmt.Errorf("decode recorded result: %w", err)
	}
	return result, nil
}

func (s *ExamService) getExam(ctx context.Context, examID uuid.UUID) (*repository.ExamRow, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}
