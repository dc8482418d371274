package eventbus

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNotSubscribed is returned by Off and OffNext when an explicit
// subscription is not registered under the given event name.
var ErrNotSubscribed = errors.New("eventbus: subscription not found")

// Handler handles one dispatched payload.
type Handler[T any] func(T)

// Subscription identifies a registered handler. It is returned by On and
// OnNext and is the only way to remove a single handler again.
type Subscription struct {
	name  string
	fired bool // set under Bus.mu once a dispatch has claimed a one-shot
}

// Name returns the event name the subscription was registered under.
func (s *Subscription) Name() string {
	return s.name
}

type entry[T any] struct {
	sub *Subscription
	fn  Handler[T]
}

// Bus dispatches payloads of type T to handlers keyed by event name.
// It is safe for concurrent use.
type Bus[T any] struct {
	mu       sync.Mutex
	handlers map[string][]entry[T]
	next     map[string][]entry[T]
	abort    chan struct{}
}

// New creates an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{
		handlers: make(map[string][]entry[T]),
		next:     make(map[string][]entry[T]),
		abort:    make(chan struct{}),
	}
}

// On registers fn for every dispatch of name.
func (b *Bus[T]) On(name string, fn Handler[T]) *Subscription {
	sub := &Subscription{name: name}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], entry[T]{sub: sub, fn: fn})
	b.mu.Unlock()
	return sub
}

// OnNext registers fn for the next dispatch of name only.
func (b *Bus[T]) OnNext(name string, fn Handler[T]) *Subscription {
	sub := &Subscription{name: name}
	b.mu.Lock()
	b.next[name] = append(b.next[name], entry[T]{sub: sub, fn: fn})
	b.mu.Unlock()
	return sub
}

// Off removes persistent handlers for name. With no subs, every handler for
// name is removed and Off never fails. Otherwise each sub must be registered
// under name, or ErrNotSubscribed is returned and nothing is removed.
func (b *Bus[T]) Off(name string, subs ...*Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return remove(b.handlers, name, subs)
}

// OffNext removes pending one-shot handlers for name, with the same rules as
// Off.
func (b *Bus[T]) OffNext(name string, subs ...*Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return remove(b.next, name, subs)
}

func remove[T any](m map[string][]entry[T], name string, subs []*Subscription) error {
	if len(subs) == 0 {
		delete(m, name)
		return nil
	}
	list := m[name]
	for _, sub := range subs {
		if !slices.ContainsFunc(list, func(e entry[T]) bool { return e.sub == sub }) {
			return ErrNotSubscribed
		}
	}
	list = slices.DeleteFunc(slices.Clone(list), func(e entry[T]) bool {
		return slices.Contains(subs, e.sub)
	})
	if len(list) == 0 {
		delete(m, name)
	} else {
		m[name] = list
	}
	return nil
}

// Dispatch invokes the persistent handlers for name in registration order,
// followed by the pending one-shot handlers, which are removed before any of
// them runs. Handler panics are not recovered. Dispatch always returns true.
func (b *Bus[T]) Dispatch(name string, payload T) bool {
	b.mu.Lock()
	handlers := slices.Clone(b.handlers[name])
	once := b.next[name]
	delete(b.next, name)
	for _, e := range once {
		e.sub.fired = true
	}
	b.mu.Unlock()

	for _, e := range handlers {
		e.fn(payload)
	}
	for _, e := range once {
		e.fn(payload)
	}
	return true
}

// WaitForNext blocks until the next dispatch of name and returns its payload.
// It returns ok=false if ctx is done first or the bus is aborted. Each call
// holds its own one-shot registration, so concurrent waiters on the same name
// all observe the same dispatch.
func (b *Bus[T]) WaitForNext(ctx context.Context, name string) (payload T, ok bool) {
	ch := make(chan T, 1)
	b.mu.Lock()
	abort := b.abort
	b.mu.Unlock()

	sub := b.OnNext(name, func(v T) {
		ch <- v
	})

	select {
	case v := <-ch:
		return v, true
	case <-ctx.Done():
	case <-abort:
	}
	b.mu.Lock()
	fired := sub.fired
	if !fired {
		_ = remove(b.next, name, []*Subscription{sub})
	}
	b.mu.Unlock()
	if fired {
		// A dispatch claimed the registration before we could cancel it.
		return <-ch, true
	}
	var zero T
	return zero, false
}

// Abort releases every goroutine blocked in WaitForNext with ok=false.
// Registered handlers are kept, and later waits behave normally.
func (b *Bus[T]) Abort() {
	b.mu.Lock()
	close(b.abort)
	b.abort = make(chan struct{})
	b.mu.Unlock()
}

// Reset removes all persistent and one-shot handlers and releases pending
// waiters.
func (b *Bus[T]) Reset() {
	b.mu.Lock()
	b.handlers = make(map[string][]entry[T])
	b.next = make(map[string][]entry[T])
	close(b.abort)
	b.abort = make(chan struct{})
	b.mu.Unlock()
}

// Len returns the number of persistent and pending one-shot handlers for name.
func (b *Bus[T]) Len(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name]) + len(b.next[name])
}
