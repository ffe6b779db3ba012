// Command examroom runs one proctored exam session from the terminal. The
// engine does the work; this binary is just a thin presenter plus a command
// loop feeding user intent back in.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/proctorly/examroom/internal/capture"
	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/engine"
	"github.com/proctorly/examroom/internal/escalation"
	"github.com/proctorly/examroom/internal/examapi"
	"github.com/proctorly/examroom/internal/logger"
	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/monitor"
	"github.com/proctorly/examroom/internal/session"
)

func main() {
	var examID string
	flag.StringVar(&examID, "exam", "", "Exam UUID to take")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if examID == "" {
		fmt.Fprintln(os.Stderr, "usage: examroom -exam <exam-uuid>")
		os.Exit(2)
	}

	pres := &terminalPresenter{}
	api := examapi.New(cfg.APIBaseURL)
	dev := &capture.SyntheticDevice{Amplitude: 0.1}
	eng := engine.New(cfg, log, api, dev, pres)

	go commandLoop(eng, pres)

	if err := eng.Run(context.Background(), examID); err != nil {
		log.Error().Err(err).Msg("Session ended with error")
		os.Exit(1)
	}
}

// commandLoop reads user commands from stdin:
//
//	a <option>   answer the current question
//	g <number>   go to a question (1-based)
//	submit       finalize the exam
//	tab | focus  simulate an environment signal (for testing against a
//	             local collaborator)
func commandLoop(eng *engine.Engine, pres *terminalPresenter) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "a":
			if len(fields) < 2 {
				fmt.Println("usage: a <option-number>")
				continue
			}
			opt, err := strconv.Atoi(fields[1])
			if err != nil || opt < 1 {
				fmt.Println("option must be a positive number")
				continue
			}
			qid := pres.currentQuestionID()
			if qid == "" {
				fmt.Println("no question loaded yet")
				continue
			}
			eng.SelectAnswer(qid, opt-1)
		case "g":
			if len(fields) < 2 {
				fmt.Println("usage: g <question-number>")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				fmt.Println("question number must be a positive number")
				continue
			}
			eng.Navigate(n - 1)
		case "submit":
			eng.Submit()
		case "tab":
			eng.Observe(monitor.Signal{Kind: monitor.SignalHidden})
		case "focus":
			eng.Observe(monitor.Signal{Kind: monitor.SignalBlur})
		default:
			fmt.Println("commands: a <option>, g <question>, submit, tab, focus")
		}
	}
}

// terminalPresenter renders the session to stdout.
type terminalPresenter struct {
	qid string
}

func (p *terminalPresenter) currentQuestionID() string { return p.qid }

func (p *terminalPresenter) ExamLoaded(meta model.ExamMeta, questionCount int) {
	fmt.Printf("\n=== %s ===\n%d questions, %d minutes, pass at %.0f%%\n\n",
		meta.Name, questionCount, meta.DurationMinutes, meta.PassPercentage)
}

func (p *terminalPresenter) ShowQuestion(index int, q model.Question, selected int, hasSelected bool) {
	p.qid = q.ID.String()
	fmt.Printf("\nQ%d. %s\n", index+1, q.QuestionText)
	for i, opt := range q.Options {
		mark := " "
		if hasSelected && i == selected {
			mark = "*"
		}
		fmt.Printf("  [%s] %d. %s\n", mark, i+1, opt)
	}
}

func (p *terminalPresenter) ShowPalette(marks []session.PaletteMark) {
	var b strings.Builder
	b.WriteString("palette:")
	for i, m := range marks {
		switch m {
		case session.MarkCurrent:
			fmt.Fprintf(&b, " [%d]", i+1)
		case session.MarkAnswered:
			fmt.Fprintf(&b, " %d*", i+1)
		default:
			fmt.Fprintf(&b, " %d", i+1)
		}
	}
	fmt.Println(b.String())
}

func (p *terminalPresenter) ShowClock(display string) {
	fmt.Printf("\r%s ", display)
}

func (p *terminalPresenter) ShowWarning(w escalation.Warning) {
	fmt.Printf("\n!! WARNING %d/%d: %s (%d remaining)\n", w.Count, w.Max, w.Message, w.Remaining)
}

func (p *terminalPresenter) ShowTermination(t escalation.Termination) {
	fmt.Printf("\n==================================\n")
	fmt.Printf("  EXAM TERMINATED\n  %s\n", t.Reason)
	fmt.Printf("==================================\n")
}

func (p *terminalPresenter) ShowResult(r model.SubmitResult) {
	fmt.Printf("\nScore: %.0f%% (%s), %d/%d marks\n",
		r.Percentage, r.ResultStatus, r.ObtainedMarks, r.TotalMarks)
}

func (p *terminalPresenter) ShowSubmitFailed() {
	fmt.Println("\nSubmission failed. Type 'submit' to retry.")
}

func (p *terminalPresenter) ShowLoadFailed() {
	fmt.Println("\nCould not load the exam.")
}

func (p *terminalPresenter) ShowDeviceDenied() {
	fmt.Println("\nCamera/microphone access is required to take this exam.")
}

func (p *terminalPresenter) Redirect(target string) {
	fmt.Printf("\nredirecting to %s\n", target)
}
