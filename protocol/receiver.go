package protocol

import (
	"context"
	"time"

	"github.com/arloliu/go-msgseq/clock"
	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/sequence"
	"github.com/arloliu/go-msgseq/transport"
)

// Receiver verifies that a sequence arrives over a connection with the right texts at the right times.
//
// A Receiver holds no per-run state, so one Receiver can drive any number of connections concurrently.
type Receiver struct {
	seq *sequence.Sequence
	cfg *config
}

// NewReceiver creates a Receiver for seq.
func NewReceiver(seq *sequence.Sequence, opts ...Option) *Receiver {
	return &Receiver{seq: seq, cfg: newConfig(opts...)}
}

// Metrics returns the metrics the Receiver reports to.
func (r *Receiver) Metrics() *Metrics {
	return r.cfg.metrics
}

// Tolerance returns the half-width of the arrival window.
func (r *Receiver) Tolerance() time.Duration {
	return r.cfg.tolerance
}

type raceResult uint8

const (
	raceMessage raceResult = iota
	raceTimeout
	raceClosed
)

// Wait waits for conn to open, then verifies the sequence message by message. It stops at the first
// rejected message, when the connection goes away, or when ctx is done.
//
// Wait always closes conn before returning if it is still Connecting or Open.
func (r *Receiver) Wait(ctx context.Context, conn transport.Adapter) Report {
	log := r.cfg.logger.With("conn_id", conn.ID(), "role", "receiver")
	metrics := r.cfg.metrics

	metrics.runStarted()
	report := Report{}

	defer func() {
		r.finish(conn, log)
		metrics.runFinished(report.Outcome)
	}()

	if conn.State().IsConnecting() {
		select {
		case <-conn.Opened():
		case <-ctx.Done():
		}
	}

	for index := 0; ; index++ {
		if ctx.Err() != nil || !conn.State().IsOpen() {
			r.abandon(&report, log, index, conn.State())
			return report
		}

		msg, ok := r.seq.At(index)
		if !ok {
			log.Info("Protocol completed", "verified", report.Verified())
			report.Outcome = OutcomeCompleted

			return report
		}

		start := r.cfg.clock.Now()
		window := clock.NewWindow(start.Add(msg.Delay), r.cfg.tolerance)

		text, result := r.race(ctx, conn, msg.Delay+r.cfg.tolerance)
		arrivedAt := r.cfg.clock.Now()

		if result == raceClosed || ctx.Err() != nil || !conn.State().IsOpen() {
			r.abandon(&report, log, index, conn.State())
			return report
		}

		verdict := Verdict{
			Index:     index,
			Expected:  msg.Text,
			Actual:    text,
			HasActual: result == raceMessage,
			ArrivedAt: arrivedAt,
			Window:    window,
		}
		switch {
		case result == raceTimeout:
			verdict.Status = StatusTimedOut
		case text != msg.Text || !window.Contains(arrivedAt):
			verdict.Status = StatusMismatched
		default:
			verdict.Status = StatusMatched
		}

		report.Verdicts = append(report.Verdicts, verdict)
		metrics.incStatus(verdict.Status)

		if verdict.Status != StatusMatched {
			log.Error("Protocol ERR",
				"index", index,
				"expected", msg.Text,
				"from", window.From.Format(clock.TimestampLayout),
				"to", window.To.Format(clock.TimestampLayout),
				"status", verdict.Status,
				"actual", text,
				"at", arrivedAt.Format(clock.TimestampLayout),
			)
			report.Outcome = OutcomeFailed

			return report
		}

		log.Info("Protocol OK", "index", index, "text", text, "at", arrivedAt.Format(clock.TimestampLayout))
	}
}

// race waits for the next inbound message, bounded by timeout. A message that is already queued when the
// timeout fires wins over the timeout.
func (r *Receiver) race(ctx context.Context, conn transport.Adapter, timeout time.Duration) (string, raceResult) {
	timer := r.cfg.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case text, ok := <-conn.Receive():
		if !ok {
			return "", raceClosed
		}

		return text, raceMessage

	case <-timer.C():
		select {
		case text, ok := <-conn.Receive():
			if !ok {
				return "", raceClosed
			}

			return text, raceMessage
		default:
			return "", raceTimeout
		}

	case <-ctx.Done():
		return "", raceClosed
	}
}

func (r *Receiver) abandon(report *Report, log logger.Logger, index int, state transport.ConnState) {
	log.Info("Protocol abandoned", "index", index, "state", state, "verified", report.Verified())
	report.Outcome = OutcomeAbandoned

	if msg, ok := r.seq.At(index); ok {
		report.Verdicts = append(report.Verdicts, Verdict{
			Index:    index,
			Expected: msg.Text,
			Status:   StatusAbandoned,
		})
	}
}

func (r *Receiver) finish(conn transport.Adapter, log logger.Logger) {
	state := conn.State()
	if !state.IsConnecting() && !state.IsOpen() {
		return
	}

	if err := conn.Close(); err != nil {
		log.Warn("failed to close connection", "error", err)
	}
}
