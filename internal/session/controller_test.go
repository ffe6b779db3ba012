package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/proctorly/examroom/internal/logger"
	"github.com/proctorly/examroom/internal/model"
)

func testPaper(n int) model.ExamPaper {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:           uuid.New(),
			QuestionText: "question",
			Options:      []string{"A", "B", "C", "D"},
		}
	}
	return model.ExamPaper{
		Exam: model.ExamMeta{
			ID:              uuid.New(),
			Name:            "Sample Exam",
			DurationMinutes: 30,
			PassPercentage:  40,
		},
		Questions: questions,
	}
}

func activeController(t *testing.T, n int) (*Controller, model.ExamPaper) {
	t.Helper()
	c := NewController(logger.Discard())
	paper := testPaper(n)
	if err := c.Activate(paper); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return c, paper
}

func TestActivate(t *testing.T) {
	t.Run("transitions loading to active", func(t *testing.T) {
		c, _ := activeController(t, 3)
		if got := c.Status(); got != StatusActive {
			t.Fatalf("status = %s, want %s", got, StatusActive)
		}
		if c.CurrentIndex() != 0 {
			t.Fatalf("current index = %d, want 0", c.CurrentIndex())
		}
		if len(c.Answers()) != 0 {
			t.Fatalf("answer map not empty on activation")
		}
	})

	t.Run("rejects paper with too few options", func(t *testing.T) {
		c := NewController(logger.Discard())
		paper := testPaper(2)
		paper.Questions[1].Options = []string{"only"}
		if err := c.Activate(paper); err == nil {
			t.Fatal("expected error for single-option question")
		}
	})

	t.Run("rejects empty paper", func(t *testing.T) {
		c := NewController(logger.Discard())
		if err := c.Activate(model.ExamPaper{}); err == nil {
			t.Fatal("expected error for empty paper")
		}
	})
}

func TestSelectAnswer(t *testing.T) {
	t.Run("persists across navigation", func(t *testing.T) {
		c, paper := activeController(t, 5)
		qid := paper.Questions[1].ID.String()

		if err := c.SelectAnswer(qid, 2); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		if err := c.Navigate(4); err != nil {
			t.Fatalf("Navigate: %v", err)
		}
		if err := c.Navigate(1); err != nil {
			t.Fatalf("Navigate back: %v", err)
		}
		if idx, ok := c.SelectedOption(qid); !ok || idx != 2 {
			t.Fatalf("selected option = %d,%v, want 2,true", idx, ok)
		}
	})

	t.Run("repeated identical calls are idempotent", func(t *testing.T) {
		c, paper := activeController(t, 3)
		qid := paper.Questions[0].ID.String()

		for i := 0; i < 3; i++ {
			if err := c.SelectAnswer(qid, 1); err != nil {
				t.Fatalf("SelectAnswer #%d: %v", i, err)
			}
		}
		answers := c.Answers()
		if len(answers) != 1 || answers[qid] != 1 {
			t.Fatalf("answers = %v, want {%s:1}", answers, qid)
		}
	})

	t.Run("re-selecting overwrites", func(t *testing.T) {
		c, paper := activeController(t, 3)
		qid := paper.Questions[0].ID.String()

		if err := c.SelectAnswer(qid, 0); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		if err := c.SelectAnswer(qid, 3); err != nil {
			t.Fatalf("SelectAnswer overwrite: %v", err)
		}
		if idx, _ := c.SelectedOption(qid); idx != 3 {
			t.Fatalf("selected option = %d, want 3", idx)
		}
	})

	t.Run("rejects out-of-range option", func(t *testing.T) {
		c, paper := activeController(t, 3)
		qid := paper.Questions[0].ID.String()

		if err := c.SelectAnswer(qid, 4); !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("err = %v, want ErrInvalidOption", err)
		}
		if err := c.SelectAnswer(qid, -1); !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("err = %v, want ErrInvalidOption", err)
		}
	})

	t.Run("rejects unknown question", func(t *testing.T) {
		c, _ := activeController(t, 3)
		if err := c.SelectAnswer(uuid.New().String(), 0); !errors.Is(err, ErrUnknownQID) {
			t.Fatalf("err = %v, want ErrUnknownQID", err)
		}
	})

	t.Run("rejected outside active status", func(t *testing.T) {
		c, paper := activeController(t, 3)
		qid := paper.Questions[0].ID.String()
		c.Terminate()
		if err := c.SelectAnswer(qid, 0); !errors.Is(err, ErrNotActive) {
			t.Fatalf("err = %v, want ErrNotActive", err)
		}
	})
}

func TestPalette(t *testing.T) {
	c, paper := activeController(t, 7)

	if err := c.SelectAnswer(paper.Questions[2].ID.String(), 0); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := c.SelectAnswer(paper.Questions[5].ID.String(), 1); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := c.Navigate(3); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	marks := c.Palette()
	want := []PaletteMark{
		MarkNeutral, MarkNeutral, MarkAnswered, MarkCurrent,
		MarkNeutral, MarkAnswered, MarkNeutral,
	}
	for i := range want {
		if marks[i] != want[i] {
			t.Fatalf("palette[%d] = %d, want %d (full: %v)", i, marks[i], want[i], marks)
		}
	}
}

func TestPaletteCurrentWinsOverAnswered(t *testing.T) {
	c, paper := activeController(t, 3)

	if err := c.SelectAnswer(paper.Questions[0].ID.String(), 0); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	// Current position 0 is also answered; current takes precedence.
	if marks := c.Palette(); marks[0] != MarkCurrent {
		t.Fatalf("palette[0] = %d, want MarkCurrent", marks[0])
	}
}

func TestNavigateBounds(t *testing.T) {
	c, _ := activeController(t, 3)
	if err := c.Navigate(3); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("err = %v, want ErrInvalidIndex", err)
	}
	if err := c.Navigate(-1); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("err = %v, want ErrInvalidIndex", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Run("begin submit only from active", func(t *testing.T) {
		c, _ := activeController(t, 2)
		if !c.BeginSubmit() {
			t.Fatal("BeginSubmit from Active should succeed")
		}
		if c.BeginSubmit() {
			t.Fatal("BeginSubmit from Submitting should be suppressed")
		}
	})

	t.Run("abort submit restores active for retry", func(t *testing.T) {
		c, _ := activeController(t, 2)
		c.BeginSubmit()
		c.AbortSubmit()
		if got := c.Status(); got != StatusActive {
			t.Fatalf("status = %s, want %s", got, StatusActive)
		}
		if !c.BeginSubmit() {
			t.Fatal("retry after abort should be possible")
		}
	})

	t.Run("terminate is absorbing and wins over submitting", func(t *testing.T) {
		c, _ := activeController(t, 2)
		c.BeginSubmit()
		c.Terminate()
		if got := c.Status(); got != StatusTerminated {
			t.Fatalf("status = %s, want %s", got, StatusTerminated)
		}
		// A late FinishSubmit must not resurrect the session.
		c.FinishSubmit()
		if got := c.Status(); got != StatusTerminated {
			t.Fatalf("status after late FinishSubmit = %s, want %s", got, StatusTerminated)
		}
	})
}

func TestAnswersReturnsCopy(t *testing.T) {
	c, paper := activeController(t, 2)
	qid := paper.Questions[0].ID.String()
	if err := c.SelectAnswer(qid, 1); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	answers := c.Answers()
	answers[qid] = 3
	if idx, _ := c.SelectedOption(qid); idx != 1 {
		t.Fatalf("controller state mutated through copy: %d", idx)
	}
}
