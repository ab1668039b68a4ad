package player

import (
	"fmt"
	"sync"
)

// Event is a playback notification emitted by the media engine.
type Event int

const (
	// EventPlay means the engine started or resumed playback.
	EventPlay Event = iota
	// EventPause means the engine stopped playback, whether asked to or
	// on its own (buffering, end of media).
	EventPause
)

// Engine is the media engine a controller drives. Subscribe returns the
// function releasing the registration; implementations must stop calling fn
// once it runs.
type Engine interface {
	Play() error
	Pause() error
	SetRate(rate float64) error
	Subscribe(fn func(Event)) (cancel func())
}

// Rates is the closed set of supported playback rates.
var Rates = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

func validRate(rate float64) bool {
	for _, r := range Rates {
		if r == rate {
			return true
		}
	}
	return false
}

// PlaybackState is the controller's view of one video.
type PlaybackState struct {
	IsPlaying        bool
	Rate             float64
	ControlsMenuOpen bool
}

// Controller binds one media source to transport controls. IsPlaying tracks
// the engine's own notifications, never the commands issued: the engine is
// the source of truth, so an engine-initiated pause cannot drift the state.
type Controller struct {
	mu     sync.Mutex
	engine Engine
	state  PlaybackState
	detach func()
	closed bool
}

// NewController attaches to the engine and starts tracking its events.
// Callers must Close the controller when the video leaves the view.
func NewController(engine Engine) *Controller {
	if engine == nil {
		panic("player: engine must not be nil")
	}
	c := &Controller{
		engine: engine,
		state:  PlaybackState{Rate: 1},
	}
	c.detach = engine.Subscribe(c.handleEvent)
	return c
}

// Close releases the engine subscription. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	detach := c.detach
	c.detach = nil
	c.closed = true
	c.mu.Unlock()
	if detach != nil {
		detach()
	}
}

// State returns the current playback state.
func (c *Controller) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TogglePlay issues a play command when paused and a pause command when
// playing. It does not touch IsPlaying; the engine's notification does.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	playing := c.state.IsPlaying
	c.mu.Unlock()

	if playing {
		return c.engine.Pause()
	}
	return c.engine.Play()
}

// SetRate applies one of the enumerated playback rates to the engine and
// the controller together and closes the rate menu. Any other value is a
// caller bug: the set is closed, so this panics rather than erroring.
func (c *Controller) SetRate(rate float64) error {
	if !validRate(rate) {
		panic(fmt.Sprintf("player: rate %g is not in the supported set", rate))
	}
	if err := c.engine.SetRate(rate); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Rate = rate
	c.state.ControlsMenuOpen = false
	c.mu.Unlock()
	return nil
}

// ToggleMenu flips the rate menu. Purely local, no engine interaction.
func (c *Controller) ToggleMenu() {
	c.mu.Lock()
	c.state.ControlsMenuOpen = !c.state.ControlsMenuOpen
	c.mu.Unlock()
}

func (c *Controller) handleEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch event {
	case EventPlay:
		c.state.IsPlaying = true
	case EventPause:
		c.state.IsPlaying = false
	}
}
