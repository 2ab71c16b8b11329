// Package events provides the in-process notification channels that decouple
// publishers (the status poller, the task executor) from their consumers.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Disposable releases a subscription.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func()

// Dispose implements Disposable.
func (f DisposeFunc) Dispose() {
	if f != nil {
		f()
	}
}

type subscription[T any] struct {
	id       uint64
	handler  func(T)
	disposed atomic.Bool
}

// Emitter delivers values of type T synchronously to every current subscriber,
// in subscription order. A panicking subscriber is recovered and logged so the
// remaining subscribers are still notified.
type Emitter[T any] struct {
	logger zerolog.Logger
	mu     sync.Mutex
	subs   []*subscription[T]
	nextID uint64
}

// NewEmitter constructs an Emitter.
func NewEmitter[T any](logger zerolog.Logger) *Emitter[T] {
	return &Emitter[T]{logger: logger}
}

// Subscribe registers handler and returns a Disposable that removes it.
// Disposing more than once is a no-op.
func (e *Emitter[T]) Subscribe(handler func(T)) Disposable {
	if handler == nil {
		return DisposeFunc(nil)
	}

	e.mu.Lock()
	e.nextID++
	sub := &subscription[T]{id: e.nextID, handler: handler}
	e.subs = append(e.subs, sub)
	e.mu.Unlock()

	return DisposeFunc(func() {
		if !sub.disposed.CompareAndSwap(false, true) {
			return
		}
		e.remove(sub.id)
	})
}

// Fire delivers value to a copy of the subscriber list taken at call time.
// Subscribers added during dispatch are not notified; subscribers disposed
// during dispatch are skipped if they have not been reached yet.
func (e *Emitter[T]) Fire(value T) {
	e.mu.Lock()
	subs := make([]*subscription[T], len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, sub := range subs {
		if sub.disposed.Load() {
			continue
		}
		e.deliver(sub, value)
	}
}

// Len returns the number of active subscribers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Emitter[T]) deliver(sub *subscription[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Uint64("subscriber", sub.id).
				Str("panic", fmt.Sprint(r)).
				Msg("event subscriber panicked")
		}
	}()
	sub.handler(value)
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subs {
		if sub.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}
