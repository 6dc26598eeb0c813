// Package signals implements component C9: in-process reactive signals
// (spec §4.9). A signal has latest-value semantics — read(signal) returns
// the current value, emit(signal, value) publishes a new one, and
// subscribe(signal) opens a stream that immediately yields the current
// value and then every subsequent update. Signals never cross the sync
// boundary; their durable counterparts are facts (spec §4.9).
package signals

import "sync"

// Signal holds one reactive value. The zero value is not usable; construct
// with New, which also mints the single Writer allowed to Emit — single
// writer per signal is enforced by construction rather than a runtime
// check, since only the holder of the Writer can call Emit at all.
type Signal struct {
	mu     sync.Mutex
	value  any
	subs   map[int]chan any
	nextID int
}

// Writer is the exclusive handle that may publish updates to a Signal.
type Writer struct {
	s *Signal
}

// New creates a signal with an initial value and returns it alongside the
// Writer that may update it.
func New(initial any) (*Signal, *Writer) {
	s := &Signal{
		value: initial,
		subs:  make(map[int]chan any),
	}
	return s, &Writer{s: s}
}

// Read returns the signal's current value.
func (s *Signal) Read() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe opens a stream of updates: the channel immediately holds the
// current value, then receives every subsequent Emit. The channel is
// buffered to depth 1 and loss-tolerant — a subscriber that doesn't drain
// promptly sees only the latest value, never a backlog (spec §4.9: "the
// subscriber may receive only the latest (loss-tolerant)"). Call the
// returned function to unsubscribe and release the channel.
func (s *Signal) Subscribe() (<-chan any, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan any, 1)
	ch <- s.value
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Emit publishes a new value, updating Read's result and notifying every
// subscriber. A subscriber holding a stale unread value has it replaced,
// not queued.
func (w *Writer) Emit(value any) {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	for _, ch := range s.subs {
		select {
		case ch <- value:
		default:
			// Drain the stale buffered value and replace it with the
			// latest, matching the loss-tolerant contract instead of
			// blocking the writer on a slow subscriber.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}
