package protocol

import (
	"context"
	"time"

	"github.com/arloliu/go-msgseq/sequence"
	"github.com/arloliu/go-msgseq/transport"
)

// Sender emits a sequence over a connection, waiting each message's delay before sending it.
//
// A Sender holds no per-run state, so one Sender can drive any number of connections concurrently.
type Sender struct {
	seq *sequence.Sequence
	cfg *config
}

// NewSender creates a Sender for seq.
func NewSender(seq *sequence.Sequence, opts ...Option) *Sender {
	return &Sender{seq: seq, cfg: newConfig(opts...)}
}

// Metrics returns the metrics the Sender reports to.
func (s *Sender) Metrics() *Metrics {
	return s.cfg.metrics
}

// Execute sends the sequence over conn and returns once the sequence is exhausted, the connection is no
// longer Open, or ctx is done.
//
// Message i is sent no earlier than its delay after message i-1 was sent, or after Execute was called for
// the first message. Nothing is sent once the connection has left the Open state. A send error is logged
// and the run goes on with the next message.
func (s *Sender) Execute(ctx context.Context, conn transport.Adapter) Report {
	log := s.cfg.logger.With("conn_id", conn.ID(), "role", "sender")
	metrics := s.cfg.metrics

	metrics.runStarted()
	report := Report{}

	for index := 0; ; index++ {
		if ctx.Err() != nil || !conn.State().IsOpen() {
			log.Info("Protocol abandoned", "index", index, "state", conn.State(), "sent", report.Sent)
			report.Outcome = OutcomeAbandoned

			break
		}

		msg, ok := s.seq.At(index)
		if !ok {
			log.Info("Protocol completed", "sent", report.Sent)
			report.Outcome = OutcomeCompleted

			break
		}

		if !s.wait(ctx, conn, msg.Delay) {
			index-- // re-check the connection for the same message
			continue
		}

		if err := conn.Send(msg.Text); err != nil {
			metrics.incSendErrCount()
			log.Warn("failed to send message", "index", index, "text", msg.Text, "error", err)

			continue
		}

		report.Sent++
		metrics.incSendCount()
		log.Debug("message sent", "index", index, "text", msg.Text, "delay", msg.Delay)
	}

	metrics.runFinished(report.Outcome)

	return report
}

// wait waits for d. It returns false when ctx is done or the connection is closed first.
func (s *Sender) wait(ctx context.Context, conn transport.Adapter, d time.Duration) bool {
	timer := s.cfg.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-ctx.Done():
		return false
	case <-conn.Done():
		return false
	}
}
