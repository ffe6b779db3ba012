package session

// Status is the lifecycle state of one exam session.
type Status string

const (
	StatusLoading    Status = "LOADING"
	StatusActive     Status = "ACTIVE"
	StatusSubmitting Status = "SUBMITTING"
	StatusSubmitted  Status = "SUBMITTED"
	StatusTerminated Status = "TERMINATED"
	StatusLoadFailed Status = "LOAD_FAILED"
)

// PaletteMark is the visual state of one palette entry.
type PaletteMark int

const (
	MarkNeutral PaletteMark = iota
	MarkAnswered
	MarkCurrent
)
