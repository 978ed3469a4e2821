// Package protocol implements the timed message exchange engines.
//
// A Sender drives a sequence.Sequence outward: it waits each message's delay, then sends its text, until
// the sequence is exhausted or the connection leaves the Open state.
//
// A Receiver drives the same sequence inward: for each expected message it races the next inbound message
// against a timeout of delay+tolerance, then checks the text and the arrival time against the window
// [expected-tolerance, expected+tolerance], where expected is the instant the wait started plus the delay.
// The first invalid message fails the run, the remaining messages are not checked.
//
// Both engines stop silently when the connection goes away. Such a run is reported as abandoned, which is
// distinct from a failed verification:
//
//	sender := protocol.NewSender(seq)
//	report := sender.Execute(ctx, conn)
//
//	receiver := protocol.NewReceiver(seq, protocol.WithTolerance(300*time.Millisecond))
//	report := receiver.Wait(ctx, conn)
//	if report.Outcome == protocol.OutcomeFailed {
//	    // a message was wrong, late, early or missing
//	}
//
// When the timeout fires at the very instant a message is delivered, the message wins: the engine performs
// one last non-blocking read before declaring a timeout.
package protocol
