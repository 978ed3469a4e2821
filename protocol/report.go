package protocol

import (
	"time"

	"github.com/arloliu/go-msgseq/clock"
)

// Status is the verdict on a single expected message.
type Status uint8

const (
	// StatusMatched indicates the right text arrived inside the window.
	StatusMatched Status = iota
	// StatusMismatched indicates a message arrived with the wrong text or outside the window.
	StatusMismatched
	// StatusTimedOut indicates no message arrived within delay+tolerance.
	StatusTimedOut
	// StatusAbandoned indicates the connection went away while the message was awaited.
	StatusAbandoned
)

// String returns string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusMismatched:
		return "mismatched"
	case StatusTimedOut:
		return "timed-out"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a run.
type Outcome uint8

const (
	// OutcomeCompleted indicates the whole sequence was sent, or verified.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed indicates the Receiver rejected a message.
	OutcomeFailed
	// OutcomeAbandoned indicates the connection went away, or the run was canceled, before the end
	// of the sequence.
	OutcomeAbandoned
)

// String returns string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Verdict records how one expected message was judged by the Receiver.
type Verdict struct {
	// Index is the position of the message in the sequence.
	Index int
	// Expected is the expected text.
	Expected string
	// Actual is the received text. It is only meaningful when HasActual is true.
	Actual string
	// HasActual reports whether a message was received.
	HasActual bool
	// ArrivedAt is the time the race resolved, whether a message arrived or not.
	ArrivedAt time.Time
	// Window is the accepted arrival window.
	Window clock.Window
	// Status is the verdict.
	Status Status
}

// Report is the result of one run of a Sender or a Receiver. It is returned to the caller and never stored.
type Report struct {
	// Verdicts holds one entry per message the Receiver judged, in order. The Sender leaves it empty.
	Verdicts []Verdict
	// Sent is the number of messages the Sender handed to the connection.
	Sent int
	// Outcome is the terminal result.
	Outcome Outcome
}

// OK reports whether the run completed.
func (r Report) OK() bool {
	return r.Outcome == OutcomeCompleted
}

// Verified returns the number of matched messages.
func (r Report) Verified() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Status == StatusMatched {
			n++
		}
	}

	return n
}

// Failure returns the verdict that failed the run, if any.
func (r Report) Failure() (Verdict, bool) {
	if r.Outcome != OutcomeFailed || len(r.Verdicts) == 0 {
		return Verdict{}, false
	}

	return r.Verdicts[len(r.Verdicts)-1], true
}
