// Package eventx provides the event channel shared by database connections, their child
// objects and the proxies wrapping them.
//
// An Emitter keeps an explicit list of listeners per event name plus a list of relays.
// Relays see every event before the emitter's own listeners do, which is how a proxy
// surfaces the events of the object it wraps under the same name and arguments.
package eventx

import (
	"sync"
)

// EventError is emitted with a single error argument when an operation fails and nobody
// else is in charge of reporting it.
const EventError = "error"

// Listener receives the arguments of one emitted event.
type Listener func(args ...any)

// RelayFunc receives every event emitted on the emitter it is attached to.
type RelayFunc func(event string, args ...any)

type subscription struct {
	id       uint64
	listener Listener
	once     bool
}

type relay struct {
	id uint64
	fn RelayFunc
}

// Emitter - event channel with per-event listeners and relays.
// The zero value is not usable, use NewEmitter.
type Emitter struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[string][]subscription
	relays    []relay
}

// NewEmitter - Emitter constructor.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]subscription)}
}

// On registers listener for event and returns the function removing it.
func (e *Emitter) On(event string, listener Listener) (unsubscribe func()) {
	return e.subscribe(event, listener, false)
}

// Once registers listener for the next emission of event only.
func (e *Emitter) Once(event string, listener Listener) (unsubscribe func()) {
	return e.subscribe(event, listener, true)
}

// Relay attaches fn so that it receives every event emitted from now on, before the
// emitter's own listeners. It returns the function detaching fn.
func (e *Emitter) Relay(fn RelayFunc) (detach func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.relays = append(e.relays, relay{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		for i, r := range e.relays {
			if r.id == id {
				e.relays = append(e.relays[:i:i], e.relays[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers event to every relay, then to every listener of event, in registration
// order. Handlers run on the calling goroutine without the emitter lock held, so they may
// register, remove or emit. It reports whether the event had any relay or listener.
func (e *Emitter) Emit(event string, args ...any) bool {
	e.mu.Lock()
	relays := make([]relay, len(e.relays))
	copy(relays, e.relays)

	subs := e.listeners[event]
	listeners := make([]Listener, 0, len(subs))
	kept := subs[:0:0]
	for _, sub := range subs {
		listeners = append(listeners, sub.listener)
		if !sub.once {
			kept = append(kept, sub)
		}
	}
	if len(kept) != len(subs) {
		e.listeners[event] = kept
	}
	e.mu.Unlock()

	for _, r := range relays {
		r.fn(event, args...)
	}

	for _, listener := range listeners {
		listener(args...)
	}

	return len(relays) > 0 || len(listeners) > 0
}

// ListenerCount returns the number of listeners currently registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.listeners[event])
}

func (e *Emitter) subscribe(event string, listener Listener, once bool) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], subscription{id: id, listener: listener, once: once})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		subs := e.listeners[event]
		for i, sub := range subs {
			if sub.id == id {
				e.listeners[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}
