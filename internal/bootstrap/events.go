package bootstrap

import (
	"errors"
	"sync"
)

// EventKind discriminates Event.
type EventKind string

const (
	KindOutput   EventKind = "output"
	KindProgress EventKind = "progress"
	KindError    EventKind = "error"
	KindFinished EventKind = "finished"
)

// Step names used in Event.Step.
const (
	StepManager     = "manager"
	StepInterpreter = "interpreter"
	StepRuntime     = "runtime"
	StepPackages    = "packages"
	StepTools       = "tools"
)

// Steps lists every step in pipeline order.
var Steps = []string{StepManager, StepInterpreter, StepRuntime, StepPackages, StepTools}

// Progress is one download sample.
type Progress struct {
	Downloaded  uint64  `json:"downloaded"`
	Total       uint64  `json:"total"`
	Percentage  float64 `json:"percentage"`
	SpeedBPS    float64 `json:"speed_bps"`
	ElapsedSecs float64 `json:"elapsed_secs"`
}

// Event is a single notification on the bootstrap stream. Finished, or an
// Error followed by the channel closing, is always last.
type Event struct {
	Kind     EventKind `json:"kind"`
	Step     string    `json:"step,omitempty"`
	Text     string    `json:"text,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// ErrAlreadyAttached is returned by a second call to Attach.
var ErrAlreadyAttached = errors.New("event stream already has a subscriber")

// Events is a single-subscriber queue. Events emitted while nobody is
// attached, or after the subscriber closed its side, are dropped. Emission
// blocks only while an attached subscriber's buffer is full.
type Events struct {
	mu     sync.RWMutex
	buffer int
	sub    *Subscription
	used   bool
	closed bool
}

// Subscription is the receiving side of Events.
type Subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func newEvents(buffer int) *Events {
	if buffer < 0 {
		buffer = 0
	}
	return &Events{buffer: buffer}
}

// Attach returns the only subscription this stream will ever hand out.
// Attaching after the terminal event yields an already-closed channel.
func (e *Events) Attach() (*Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.used {
		return nil, ErrAlreadyAttached
	}
	e.used = true
	sub := &Subscription{ch: make(chan Event, e.buffer), done: make(chan struct{})}
	if e.closed {
		close(sub.ch)
		return sub, nil
	}
	e.sub = sub
	return sub, nil
}

// C returns the event channel. It is closed after the terminal event.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close detaches the subscriber. Pending and future events are dropped; the
// pipeline keeps running.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

func (e *Events) emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || e.sub == nil {
		return
	}
	select {
	case e.sub.ch <- ev:
	case <-e.sub.done:
	}
}

// finish sends the terminal event and closes the stream. Callers guarantee
// no other goroutine is emitting.
func (e *Events) finish(ev Event) {
	e.emit(ev)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.sub != nil {
		close(e.sub.ch)
	}
}
