package session

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/model"
)

// Controller errors.
var (
	ErrNotActive     = errors.New("session is not active")
	ErrUnknownQID    = errors.New("unknown question id")
	ErrInvalidOption = errors.New("option index out of range")
	ErrInvalidIndex  = errors.New("question index out of range")
)

// Controller owns all mutable session state: the question sequence, the
// answer map, the current position and the session status. It is the only
// writer; every other component reads through accessors or receives copies.
// All calls must come from the engine's run loop.
type Controller struct {
	log       zerolog.Logger
	meta      model.ExamMeta
	questions []model.Question
	answers   model.AnswerMap
	current   int
	status    Status
}

// NewController creates a controller in the Loading state.
func NewController(log zerolog.Logger) *Controller {
	return &Controller{
		log:     log.With().Str("component", "session").Logger(),
		answers: make(model.AnswerMap),
		status:  StatusLoading,
	}
}

// Activate installs a successfully loaded paper: Loading → Active,
// currentIndex = 0, empty answer map. The paper is validated before any
// state changes.
func (c *Controller) Activate(paper model.ExamPaper) error {
	if c.status != StatusLoading {
		return fmt.Errorf("activate from %s: %w", c.status, ErrNotActive)
	}
	if len(paper.Questions) == 0 {
		return errors.New("exam has no questions")
	}
	for _, q := range paper.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s has %d options, need at least 2", q.ID, len(q.Options))
		}
	}

	c.meta = paper.Exam
	c.questions = paper.Questions
	c.answers = make(model.AnswerMap)
	c.current = 0
	c.status = StatusActive

	c.log.Info().
		Str("exam_id", paper.Exam.ID.String()).
		Int("questions", len(paper.Questions)).
		Int("duration_minutes", paper.Exam.DurationMinutes).
		Msg("Session active")
	return nil
}

// FailLoad marks the session as unloadable: Loading → LoadFailed.
func (c *Controller) FailLoad() {
	if c.status == StatusLoading {
		c.status = StatusLoadFailed
	}
}

// SelectAnswer records an option choice. The session must be Active and the
// option index valid for that question. Repeated identical calls leave state
// unchanged; re-selecting overwrites.
func (c *Controller) SelectAnswer(questionID string, optionIndex int) error {
	if c.status != StatusActive {
		return ErrNotActive
	}
	q, ok := c.questionByID(questionID)
	if !ok {
		return ErrUnknownQID
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return ErrInvalidOption
	}
	c.answers[questionID] = optionIndex
	return nil
}

// Navigate moves the current position. No effect on the answer map.
func (c *Controller) Navigate(index int) error {
	if c.status != StatusActive {
		return ErrNotActive
	}
	if index < 0 || index >= len(c.questions) {
		return ErrInvalidIndex
	}
	c.current = index
	return nil
}

// Palette returns one mark per question: the current entry is marked
// current (taking precedence over answered), answered entries answered,
// the rest neutral.
func (c *Controller) Palette() []PaletteMark {
	marks := make([]PaletteMark, len(c.questions))
	for i, q := range c.questions {
		switch {
		case i == c.current:
			marks[i] = MarkCurrent
		default:
			if _, answered := c.answers[q.ID.String()]; answered {
				marks[i] = MarkAnswered
			}
		}
	}
	return marks
}

// ─── Status transitions ─────────────────────────────────────────────

// BeginSubmit moves Active → Submitting. Returns false if the session is
// not in a submittable state, which suppresses double submission.
func (c *Controller) BeginSubmit() bool {
	if c.status != StatusActive {
		return false
	}
	c.status = StatusSubmitting
	return true
}

// FinishSubmit moves Submitting → Submitted.
func (c *Controller) FinishSubmit() {
	if c.status == StatusSubmitting {
		c.status = StatusSubmitted
	}
}

// AbortSubmit moves Submitting → Active so a failed submission can be
// retried.
func (c *Controller) AbortSubmit() {
	if c.status == StatusSubmitting {
		c.status = StatusActive
	}
}

// Terminate is the absorbing transition driven by the server's termination
// event. It wins over any state except a completed submission.
func (c *Controller) Terminate() {
	if c.status == StatusSubmitted {
		return
	}
	c.status = StatusTerminated
}

// ─── Accessors ──────────────────────────────────────────────────────

// Status returns the current session status.
func (c *Controller) Status() Status { return c.status }

// Meta returns the exam metadata for this session.
func (c *Controller) Meta() model.ExamMeta { return c.meta }

// QuestionCount returns the number of questions in the session.
func (c *Controller) QuestionCount() int { return len(c.questions) }

// CurrentIndex returns the current question position.
func (c *Controller) CurrentIndex() int { return c.current }

// CurrentQuestion returns the question at the current position.
func (c *Controller) CurrentQuestion() model.Question {
	return c.questions[c.current]
}

// SelectedOption returns the recorded answer for a question, if any.
func (c *Controller) SelectedOption(questionID string) (int, bool) {
	idx, ok := c.answers[questionID]
	return idx, ok
}

// Answers returns a copy of the answer map.
func (c *Controller) Answers() model.AnswerMap {
	return c.answers.Clone()
}

func (c *Controller) questionByID(id string) (model.Question, bool) {
	for _, q := range c.questions {
		if q.ID.String() == id {
			return q, true
		}
	}
	return model.Question{}, false
}
