package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus is the pipeline event bus. One instance is created per App and passed
// to the components that publish or subscribe.
type Bus struct {
	bus evbus.Bus
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish delivers an event to every subscriber of topic.
// Synchronous subscribers run before Publish returns.
func (b *Bus) Publish(topic string, args ...interface{}) {
	if b == nil {
		return
	}
	b.bus.Publish(topic, args...)
}

// Subscribe registers a synchronous handler.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler that runs in its own goroutine.
// Handlers for the same topic are serialized.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, true)
}

// Unsubscribe removes a handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback reports whether topic has subscribers.
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// WaitAsync blocks until every async handler has returned.
func (b *Bus) WaitAsync() {
	if b == nil {
		return
	}
	b.bus.WaitAsync()
}
