package pipeline

import "fmt"

// OutcomeKind distinguishes the ways a stage run can end without failing.
type OutcomeKind int

const (
	// OutcomeProcessed means one SIP moved to the stage's end status.
	OutcomeProcessed OutcomeKind = iota
	// OutcomeBusy means the external service declined the work; the claim
	// was reverted and the trigger can be repeated later.
	OutcomeBusy
	// OutcomeAlreadyRunning means another SIP holds the stage's in-progress
	// status, so nothing was claimed.
	OutcomeAlreadyRunning
	// OutcomeIdle means no SIP was waiting at the stage's start status.
	OutcomeIdle
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeProcessed:
		return "processed"
	case OutcomeBusy:
		return "busy"
	case OutcomeAlreadyRunning:
		return "already_running"
	case OutcomeIdle:
		return "idle"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the result of one stage run. Identifier is set for processed
// and busy outcomes, naming the SIP involved.
type Outcome struct {
	Kind       OutcomeKind
	Identifier string
	Message    string
}
