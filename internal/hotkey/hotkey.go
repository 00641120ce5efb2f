// Package hotkey provides a global hotkey listener using gohook.
// It supports "hold" mode (press to start, release to stop) and
// "toggle" mode (press to start, press again to stop).
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates whether recording should start or stop.
type EventType int

const (
	// EventStart signals that the hotkey was activated (start recording).
	EventStart EventType = iota
	// EventStop signals that the hotkey was deactivated (stop recording).
	EventStop
)

func (t EventType) String() string {
	if t == EventStart {
		return "start"
	}
	return "stop"
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	combo Combo
	fsm   *machine
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

// NewListener creates a Listener for the given combo and mode
// ("hold" or "toggle"; anything else is treated as hold).
func NewListener(combo Combo, mode string) *Listener {
	return &Listener{
		combo: combo,
		fsm:   newMachine(mode),
		ch:    make(chan Event, 16),
		done:  make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.combo.Keys, func(hook.Event) {
		if ev, ok := l.fsm.press(); ok {
			l.emit(ev)
		}
	})
	hook.Register(hook.KeyUp, l.combo.Keys, func(hook.Event) {
		if ev, ok := l.fsm.release(); ok {
			l.emit(ev)
		}
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit never blocks the hook thread; events are dropped if the consumer
// is 16 behind.
func (l *Listener) emit(ev Event) {
	select {
	case l.ch <- ev:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// machine turns raw key presses into start/stop events for a mode.
// Key repeat while held produces repeated presses; only the first counts.
type machine struct {
	mu     sync.Mutex
	toggle bool
	held   bool
	active bool
}

func newMachine(mode string) *machine {
	return &machine{toggle: mode == "toggle"}
}

func (m *machine) press() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return Event{}, false
	}
	m.held = true

	if m.toggle && m.active {
		m.active = false
		return Event{Type: EventStop}, true
	}
	m.active = true
	return Event{Type: EventStart}, true
}

func (m *machine) release() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		return Event{}, false
	}
	m.held = false

	if !m.toggle && m.active {
		m.active = false
		return Event{Type: EventStop}, true
	}
	return Event{}, false
}
