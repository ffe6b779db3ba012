package engine

import "context"

// submit finalizes the session. It is triggered by user confirmation or by
// timer expiry and runs on the loop goroutine: while the scoring request is
// in flight the loop is suspended at the network boundary, so no other
// transition can interleave. A termination read off the proctoring channel
// during that window still wins — the latch is checked again after the call
// returns and the result is discarded.
func (e *Engine) submit() {
	if e.esc.Terminated() {
		return
	}
	if !e.ctrl.BeginSubmit() {
		e.log.Debug().Str("status", string(e.ctrl.Status())).Msg("Submission suppressed")
		return
	}
	e.active.Store(false)

	answers := e.ctrl.Answers()
	e.log.Info().Int("answered", len(answers)).Msg("Submitting exam")

	result, err := e.api.Submit(context.Background(), e.examID, answers)

	if e.esc.Terminated() {
		// Termination arrived while the request was in flight. Discard the
		// result; the termination flow presents the terminal notice.
		e.log.Warn().Msg("Termination raced an in-flight submission, result discarded")
		return
	}

	if err != nil {
		e.ctrl.AbortSubmit()
		e.active.Store(true)
		e.log.Error().Err(err).Msg("Submission failed")
		e.pres.ShowSubmitFailed()
		return
	}

	e.ctrl.FinishSubmit()
	e.stopProctoring()
	if e.rep != nil {
		if err := e.rep.SessionEnded(); err != nil {
			e.log.Debug().Err(err).Msg("Session-ended notice not delivered")
		}
	}

	e.pres.ShowResult(result)
	e.pres.Redirect(e.cfg.DashboardURL)
	e.finish()
}
