// Package progress defines the typed progress events of a denoising run and
// their rendering into the line-oriented host protocol.
package progress

import (
	"context"
	"sync"
)

type Stage string

const (
	StageLoading    = Stage("loading")
	StageProcessing = Stage("processing")
	StageSaving     = Stage("saving")
	StageComplete   = Stage("complete")
	StageError      = Stage("error")
)

func (s Stage) String() string {
	return string(s)
}

// Event is one progress notification. Progress is in [0, 100].
type Event struct {
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

type Handler interface {
	OnProgress(ctx context.Context, ev Event)
}

type HandlerFunc func(ctx context.Context, ev Event)

func (fn HandlerFunc) OnProgress(ctx context.Context, ev Event) {
	fn(ctx, ev)
}

// Discard ignores all events.
var Discard Handler = HandlerFunc(func(context.Context, Event) {})

// Monotonic forwards events to the wrapped Handler with the progress value
// clamped into [0, 100] and never below a previously forwarded value.
type Monotonic struct {
	locker   sync.Mutex
	handler  Handler
	last     float64
	reported bool
}

var _ Handler = (*Monotonic)(nil)

func NewMonotonic(handler Handler) *Monotonic {
	if handler == nil {
		handler = Discard
	}
	return &Monotonic{
		handler: handler,
	}
}

func (m *Monotonic) OnProgress(ctx context.Context, ev Event) {
	m.locker.Lock()
	defer m.locker.Unlock()
	ev.Progress = min(max(ev.Progress, 0, m.last), 100)
	m.last = ev.Progress
	m.reported = true
	m.handler.OnProgress(ctx, ev)
}

// Last returns the last forwarded progress value and whether any event was
// forwarded at all.
func (m *Monotonic) Last() (float64, bool) {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.last, m.reported
}

// Report is a shorthand for OnProgress with the event fields as arguments.
func Report(ctx context.Context, h Handler, stage Stage, progress float64, message string) {
	if h == nil {
		return
	}
	h.OnProgress(ctx, Event{
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}

// Scale maps a fraction in [0, 1] onto the progress range [from, to].
func Scale(from, to, fraction float64) float64 {
	fraction = min(max(fraction, 0), 1)
	return from + (to-from)*fraction
}
