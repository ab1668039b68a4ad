package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// Topics carried on the client-wide bus. Payloads are documented per topic
// and must not change shape without updating every subscriber.
const (
	// TopicVideoUploaded fires after a successful upload; no payload.
	// The library sync client refreshes on it.
	TopicVideoUploaded = "video:uploaded"
	// TopicSessionExpired fires when any component observes a rejected
	// session token; no payload. The session store clears on it and the
	// auth flow resets to signup.
	TopicSessionExpired = "session:expired"
)

// Bus is the cross-component signal bus. It is injected into dependents;
// there is deliberately no package-level instance.
type Bus struct {
	inner evbus.Bus
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{inner: evbus.New()}
}

// Publish delivers the topic to all current subscribers synchronously.
func (b *Bus) Publish(topic string) {
	b.inner.Publish(topic)
}

// Subscribe registers fn for the topic until Unsubscribe is called.
func (b *Bus) Subscribe(topic string, fn func()) error {
	return b.inner.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn func()) error {
	return b.inner.Unsubscribe(topic, fn)
}
