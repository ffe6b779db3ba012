package model

import (
	"github.com/google/uuid"
)

// ExamMeta describes an exam for the duration of one session. Immutable
// once loaded.
type ExamMeta struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	PassPercentage  float64   `json:"pass_percentage"`
}

// Question is a single multiple-choice question as exposed to a student.
// The correct option never crosses this boundary.
type Question struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
}

// ExamPaper is the payload a student receives when an exam loads.
type ExamPaper struct {
	Exam      ExamMeta   `json:"exam"`
	Questions []Question `json:"questions"`
}

// AnswerMap maps question IDs to the selected option index (0-based).
// Keys are added only by explicit selection and never removed during a
// session; re-selecting overwrites.
type AnswerMap map[string]int

// Clone returns an independent copy, so callers outside the session
// controller never alias its state.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SubmitResult is the scoring collaborator's response to a submission.
type SubmitResult struct {
	Success       bool    `json:"success"`
	ObtainedMarks int     `json:"obtained_marks"`
	TotalMarks    int     `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
	ResultStatus  string  `json:"result_status"`
}

// SubmitRequest carries the complete answer map to the scoring collaborator.
// An empty map is a valid submission; unanswered questions score zero.
type SubmitRequest struct {
	Answers AnswerMap `json:"answers"`
}

// JoinResult is returned when a proctoring session is created.
type JoinResult struct {
	Token   string      `json:"token"`
	Session SessionInfo `json:"session"`
}

// SessionInfo identifies one student's attempt at one exam.
type SessionInfo struct {
	ID     uuid.UUID `json:"id"`
	ExamID uuid.UUID `json:"exam_id"`
}
