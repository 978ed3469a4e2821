// Package sequence defines the scripted message sequence exchanged between a sender and a receiver.
//
// A Sequence is an ordered, immutable list of messages, each with the delay that precedes it. The order is
// the required send and arrival order. A Sequence never changes after construction, so one value can be
// shared by any number of protocol engines without synchronization.
//
// Sequences come from one of three places:
//   - New / MustNew, built in code.
//   - Default, the built-in demonstration sequence.
//   - LoadFile / Parse / ParseYAML, a JSON (or YAML) array of {"text": string, "delay": milliseconds} objects.
package sequence

import (
	"fmt"
	"iter"
	"time"
)

// Message is a single scripted message and the delay that precedes it.
type Message struct {
	// Text is the exact message payload.
	Text string
	// Delay is the time to wait before the message is sent, or expected to arrive.
	// It is always a positive whole number of milliseconds.
	Delay time.Duration
}

// NewMessage creates a Message from a text and a delay in milliseconds.
func NewMessage(text string, delayMillis int64) Message {
	return Message{Text: text, Delay: time.Duration(delayMillis) * time.Millisecond}
}

// DelayMillis returns the delay in milliseconds.
func (m Message) DelayMillis() int64 {
	return m.Delay.Milliseconds()
}

func (m Message) validate() error {
	if m.Text == "" {
		return ErrTextEmpty
	}
	if m.Delay <= 0 || m.Delay%time.Millisecond != 0 {
		return fmt.Errorf("%w: got %v", ErrDelayNotPositiveInt, m.Delay)
	}

	return nil
}

// Sequence is an immutable ordered list of messages.
type Sequence struct {
	msgs []Message
}

// New creates a Sequence from the given messages, in order.
// It returns an error when a message has an empty text or a delay that isn't a positive whole number
// of milliseconds.
func New(msgs ...Message) (*Sequence, error) {
	for i, m := range msgs {
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	cloned := make([]Message, len(msgs))
	copy(cloned, msgs)

	return &Sequence{msgs: cloned}, nil
}

// MustNew is like New but panics on invalid messages.
func MustNew(msgs ...Message) *Sequence {
	seq, err := New(msgs...)
	if err != nil {
		panic(err)
	}

	return seq
}

// At returns the message at index. The boolean is false when index is out of range, which marks the end of
// the sequence.
func (s *Sequence) At(index int) (Message, bool) {
	if s == nil || index < 0 || index >= len(s.msgs) {
		return Message{}, false
	}

	return s.msgs[index], true
}

// Len returns the number of messages.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}

	return len(s.msgs)
}

// All returns an iterator over the index and message pairs, in order.
func (s *Sequence) All() iter.Seq2[int, Message] {
	return func(yield func(int, Message) bool) {
		for i := 0; i < s.Len(); i++ {
			if !yield(i, s.msgs[i]) {
				return
			}
		}
	}
}

// TotalDelay returns the sum of all delays, the minimal duration of a complete run.
func (s *Sequence) TotalDelay() time.Duration {
	var total time.Duration
	for _, m := range s.All() {
		total += m.Delay
	}

	return total
}

// Default returns the built-in sequence:
//
//   - "hello" after 2 seconds.
//   - "still here?" after 3 seconds.
//   - "you can leave now" after 3.5 seconds, 4 times in a row.
func Default() *Sequence {
	msgs := []Message{
		NewMessage("hello", 2000),
		NewMessage("still here?", 3000),
	}
	for range 4 {
		msgs = append(msgs, NewMessage("you can leave now", 3500))
	}

	return MustNew(msgs...)
}
