package player

import (
	"errors"
	"sync"
)

// ErrEngineClosed indicates a command reached an engine whose media source
// was already released.
var ErrEngineClosed = errors.New("media engine closed")

// SimEngine is a headless media engine used by the watch command and in
// tests. It plays nothing; it only honors transport commands and emits the
// notifications a real engine would.
type SimEngine struct {
	mu          sync.Mutex
	source      string
	rate        float64
	playing     bool
	closed      bool
	subscribers map[int]func(Event)
	nextID      int
}

// NewSimEngine constructs an engine bound to the given source URL.
func NewSimEngine(source string) *SimEngine {
	return &SimEngine{
		source:      source,
		rate:        1,
		subscribers: make(map[int]func(Event)),
	}
}

// Source returns the bound media URL.
func (e *SimEngine) Source() string {
	return e.source
}

// Play starts playback and notifies subscribers.
func (e *SimEngine) Play() error {
	return e.transition(true, EventPlay)
}

// Pause stops playback and notifies subscribers.
func (e *SimEngine) Pause() error {
	return e.transition(false, EventPause)
}

// FinishMedia simulates the media reaching its end: the engine pauses on
// its own initiative, exactly like a real engine would.
func (e *SimEngine) FinishMedia() {
	_ = e.transition(false, EventPause)
}

// SetRate records the playback rate.
func (e *SimEngine) SetRate(rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.rate = rate
	return nil
}

// Rate returns the current playback rate.
func (e *SimEngine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Playing reports whether the engine is playing.
func (e *SimEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Subscribe registers fn for playback notifications.
func (e *SimEngine) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subscribers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

// SubscriberCount reports the live registrations. Used to verify symmetric
// attach and detach.
func (e *SimEngine) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

// Close releases the media source; subsequent commands fail.
func (e *SimEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *SimEngine) transition(playing bool, event Event) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.playing = playing
	fns := make([]func(Event), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
	return nil
}
