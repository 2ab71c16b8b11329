package events

import "github.com/rs/zerolog"

// Broadcaster is the payload-less status-change channel. Subscribers re-read
// the shared application state when notified instead of receiving a copy.
type Broadcaster struct {
	emitter *Emitter[struct{}]
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{emitter: NewEmitter[struct{}](logger)}
}

// Subscribe registers handler for every subsequent Fire.
func (b *Broadcaster) Subscribe(handler func()) Disposable {
	if handler == nil {
		return DisposeFunc(nil)
	}
	return b.emitter.Subscribe(func(struct{}) { handler() })
}

// Fire notifies all current subscribers once.
func (b *Broadcaster) Fire() {
	b.emitter.Fire(struct{}{})
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	return b.emitter.Len()
}
