// Package engine wires the exam session together: one run-loop goroutine
// owns all session state and drains a single event queue fed by the
// countdown timer, the capture sampler, the event monitor, the proctoring
// channel and user commands. Producers never touch state directly, so no
// locking exists around the session itself.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/capture"
	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/escalation"
	"github.com/proctorly/examroom/internal/examapi"
	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/monitor"
	"github.com/proctorly/examroom/internal/protocol"
	"github.com/proctorly/examroom/internal/reporter"
	"github.com/proctorly/examroom/internal/session"
)

// Presenter is the rendering surface the engine drives. Implementations
// must not mutate session state; they render and forward user intent back
// through the engine's command methods.
type Presenter interface {
	ExamLoaded(meta model.ExamMeta, questionCount int)
	ShowQuestion(index int, q model.Question, selected int, hasSelected bool)
	ShowPalette(marks []session.PaletteMark)
	ShowClock(display string)
	ShowWarning(w escalation.Warning)
	// ShowTermination presents the blocking, non-dismissible notice and
	// returns once the user acknowledges it.
	ShowTermination(t escalation.Termination)
	ShowResult(r model.SubmitResult)
	ShowSubmitFailed()
	ShowLoadFailed()
	ShowDeviceDenied()
	Redirect(target string)
}

// Engine runs one exam session end to end.
type Engine struct {
	cfg  *config.Config
	log  zerolog.Logger
	api  *examapi.Client
	dev  capture.Device
	pres Presenter

	ctrl    *session.Controller
	timer   *session.Timer
	sampler *capture.Sampler
	rep     *reporter.Reporter
	esc     *escalation.Handler
	mon     *monitor.Monitor

	// TimerInterval overrides the countdown tick; tests compress it.
	TimerInterval time.Duration

	examID   string
	active   atomic.Bool
	events   chan func()
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an engine for one session.
func New(cfg *config.Config, log zerolog.Logger, api *examapi.Client, dev capture.Device, pres Presenter) *Engine {
	e := &Engine{
		cfg:           cfg,
		log:           log.With().Str("component", "engine").Logger(),
		api:           api,
		dev:           dev,
		pres:          pres,
		ctrl:          session.NewController(log),
		esc:           escalation.New(log, cfg.MaxWarnings),
		TimerInterval: time.Second,
		events:        make(chan func(), 64),
		done:          make(chan struct{}),
	}
	monCh := make(chan model.ViolationSample, 16)
	e.mon = monitor.New(log, e.active.Load, monCh)
	go e.pump(monCh)
	return e
}

// Run loads the exam, starts proctoring and drives the session until it is
// submitted or terminated. It returns an error only for failures that
// prevent the session from starting.
func (e *Engine) Run(ctx context.Context, examID string) error {
	e.examID = examID

	if err := e.load(ctx); err != nil {
		e.ctrl.FailLoad()
		e.pres.ShowLoadFailed()
		e.pres.Redirect(e.cfg.DashboardURL)
		return err
	}

	if err := e.startProctoring(ctx); err != nil {
		e.pres.ShowDeviceDenied()
		e.pres.Redirect(e.cfg.DashboardURL)
		return err
	}

	e.active.Store(true)
	e.pres.ExamLoaded(e.ctrl.Meta(), e.ctrl.QuestionCount())
	e.render()

	e.timer = session.NewTimer(e.ctrl.Meta().DurationMinutes * 60).WithInterval(e.TimerInterval)
	go e.pumpTicks(e.timer.Start())

	for {
		select {
		case fn := <-e.events:
			fn()
		case <-e.done:
			return nil
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		}
	}
}

// ─── User commands (safe from any goroutine) ────────────────────────

// SelectAnswer records an option choice for a question.
func (e *Engine) SelectAnswer(questionID string, optionIndex int) {
	e.post(func() {
		if err := e.ctrl.SelectAnswer(questionID, optionIndex); err != nil {
			e.log.Debug().Err(err).Msg("Answer selection rejected")
			return
		}
		e.render()
	})
}

// Navigate moves the session to another question.
func (e *Engine) Navigate(index int) {
	e.post(func() {
		if err := e.ctrl.Navigate(index); err != nil {
			e.log.Debug().Err(err).Msg("Navigation rejected")
			return
		}
		e.render()
	})
}

// Submit finalizes the session on user confirmation.
func (e *Engine) Submit() {
	e.post(e.submit)
}

// Observe feeds a raw environment signal to the violation monitor,
// returning whether its default handling must be suppressed.
func (e *Engine) Observe(sig monitor.Signal) bool {
	return e.mon.Observe(sig)
}

// Terminated reports whether the server has terminated this session.
func (e *Engine) Terminated() bool { return e.esc.Terminated() }

// ─── Session startup ────────────────────────────────────────────────

func (e *Engine) load(ctx context.Context) error {
	join, err := e.api.Join(ctx, e.examID)
	if err != nil {
		return fmt.Errorf("join exam: %w", err)
	}
	e.api.SetToken(join.Token)

	paper, err := e.api.Paper(ctx, e.examID)
	if err != nil {
		return fmt.Errorf("fetch paper: %w", err)
	}
	if err := e.ctrl.Activate(paper); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	return nil
}

func (e *Engine) startProctoring(ctx context.Context) error {
	e.sampler = capture.NewSampler(e.log, e.dev, e.cfg.CapturePeriod)
	samples, err := e.sampler.Start(ctx)
	if err != nil {
		return err
	}
	go e.pump(samples)

	rep, err := reporter.Dial(ctx, e.log, e.api.ProctorURL(e.examID))
	if err != nil {
		// Best effort: the session runs, samples are dropped until the
		// operator restarts with a reachable collaborator.
		e.log.Warn().Err(err).Msg("Proctor channel unavailable, samples will be dropped")
		return nil
	}
	e.rep = rep
	rep.Listen(func(ev protocol.EventEnvelope) {
		e.esc.Intercept(ev)
		e.post(func() { e.onServerEvent(ev) })
	})
	return nil
}

// ─── Event handlers (run-loop only) ─────────────────────────────────

func (e *Engine) onTick(t session.Tick) {
	e.pres.ShowClock(t.Display)
	if t.Expired {
		e.log.Info().Msg("Time expired, auto-submitting")
		e.submit()
	}
}

func (e *Engine) onSample(s model.ViolationSample) {
	if e.rep == nil {
		return
	}
	e.rep.Report(s)
}

func (e *Engine) onServerEvent(ev protocol.EventEnvelope) {
	out := e.esc.Apply(ev)
	if out.Warning != nil {
		e.pres.ShowWarning(*out.Warning)
	}
	if out.Terminated != nil {
		e.terminate(*out.Terminated)
	}
}

func (e *Engine) terminate(t escalation.Termination) {
	e.ctrl.Terminate()
	e.active.Store(false)
	e.stopProctoring()

	e.pres.ShowTermination(t)
	target := e.cfg.DashboardURL
	if t.Redirect != nil && *t.Redirect != "" {
		target = *t.Redirect
	}
	e.pres.Redirect(target)
	e.finish()
}

func (e *Engine) render() {
	idx := e.ctrl.CurrentIndex()
	q := e.ctrl.CurrentQuestion()
	selected, has := e.ctrl.SelectedOption(q.ID.String())
	e.pres.ShowQuestion(idx, q, selected, has)
	e.pres.ShowPalette(e.ctrl.Palette())
}

// ─── Plumbing ───────────────────────────────────────────────────────

func (e *Engine) post(fn func()) {
	select {
	case e.events <- fn:
	case <-e.done:
	}
}

func (e *Engine) pump(ch <-chan model.ViolationSample) {
	for s := range ch {
		sample := s
		e.post(func() { e.onSample(sample) })
	}
}

func (e *Engine) pumpTicks(ch <-chan session.Tick) {
	for t := range ch {
		tick := t
		e.post(func() { e.onTick(tick) })
	}
}

func (e *Engine) stopProctoring() {
	if e.sampler != nil {
		e.sampler.Stop()
	}
	if e.timer != nil {
		e.timer.Stop()
	}
}

func (e *Engine) shutdown() {
	e.active.Store(false)
	e.stopProctoring()
	e.finish()
}

func (e *Engine) finish() {
	e.doneOnce.Do(func() {
		close(e.done)
		if e.rep != nil {
			e.rep.Close()
		}
	})
}
