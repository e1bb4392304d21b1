package sequence

import "fmt"

// AbortReason tells the calling layer why a run ended. The values are the
// process exit codes the wrapping scripts act on.
type AbortReason int

const (
	Completed            AbortReason = 0
	SequenceMissing      AbortReason = 2
	SequenceMalformed    AbortReason = 3
	RainBeforeStart      AbortReason = 4
	RainDuringRun        AbortReason = 5
	InstrumentNoResponse AbortReason = 6
	HardwareNotReady     AbortReason = 27
	ValidationFailed     AbortReason = 28
	PowerShutdown        AbortReason = 29
)

func (r AbortReason) String() string {
	switch r {
	case Completed:
		return "completed"
	case SequenceMissing:
		return "sequence missing"
	case SequenceMalformed:
		return "sequence malformed"
	case RainBeforeStart:
		return "rain before start"
	case RainDuringRun:
		return "rain during run"
	case InstrumentNoResponse:
		return "instrument no response"
	case HardwareNotReady:
		return "hardware not ready"
	case ValidationFailed:
		return "validation failed"
	case PowerShutdown:
		return "power shutdown"
	}
	return fmt.Sprintf("abort(%d)", int(r))
}

// ExitCode is the process exit status for the reason
func (r AbortReason) ExitCode() int {
	return int(r)
}

// AbortError ends a run early
type AbortError struct {
	Reason AbortReason
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err == nil {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Is matches any AbortError with the same reason
func (e *AbortError) Is(target error) bool {
	t, ok := target.(*AbortError)
	return ok && t.Reason == e.Reason
}

func abort(reason AbortReason, err error) *AbortError {
	return &AbortError{Reason: reason, Err: err}
}
