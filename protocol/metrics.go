package protocol

import (
	"sync/atomic"
)

// Metrics contains atomic counters for protocol runs.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// SendCount indicates the number of messages sent.
	SendCount atomic.Uint64
	// SendErrCount indicates the number of failed sends.
	SendErrCount atomic.Uint64

	// MatchedCount indicates the number of messages verified.
	MatchedCount atomic.Uint64
	// MismatchedCount indicates the number of messages rejected for their text or arrival time.
	MismatchedCount atomic.Uint64
	// TimedOutCount indicates the number of messages that never arrived.
	TimedOutCount atomic.Uint64

	// CompletedRuns indicates the number of runs that reached the end of the sequence.
	CompletedRuns atomic.Uint64
	// FailedRuns indicates the number of runs that ended on a rejected message.
	FailedRuns atomic.Uint64
	// AbandonedRuns indicates the number of runs that ended because the connection went away.
	AbandonedRuns atomic.Uint64

	// ActiveRuns indicates the number of runs in progress.
	ActiveRuns atomic.Int64
}

func (m *Metrics) incSendCount() {
	m.SendCount.Add(1)
}

func (m *Metrics) incSendErrCount() {
	m.SendErrCount.Add(1)
}

func (m *Metrics) incStatus(status Status) {
	switch status {
	case StatusMatched:
		m.MatchedCount.Add(1)
	case StatusMismatched:
		m.MismatchedCount.Add(1)
	case StatusTimedOut:
		m.TimedOutCount.Add(1)
	}
}

func (m *Metrics) runStarted() {
	m.ActiveRuns.Add(1)
}

func (m *Metrics) runFinished(outcome Outcome) {
	m.ActiveRuns.Add(-1)

	switch outcome {
	case OutcomeCompleted:
		m.CompletedRuns.Add(1)
	case OutcomeFailed:
		m.FailedRuns.Add(1)
	case OutcomeAbandoned:
		m.AbandonedRuns.Add(1)
	}
}

// LogValues returns the counters as key-value pairs for a log record.
func (m *Metrics) LogValues() []any {
	return []any{
		"sent", m.SendCount.Load(),
		"send_errors", m.SendErrCount.Load(),
		"matched", m.MatchedCount.Load(),
		"mismatched", m.MismatchedCount.Load(),
		"timed_out", m.TimedOutCount.Load(),
		"completed_runs", m.CompletedRuns.Load(),
		"failed_runs", m.FailedRuns.Load(),
		"abandoned_runs", m.AbandonedRuns.Load(),
		"active_runs", m.ActiveRuns.Load(),
	}
}
