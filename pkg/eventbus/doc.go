// Package eventbus provides a small named-event dispatcher with persistent and
// one-shot subscriptions.
//
// A Bus is parameterized by its payload type. Handlers registered with On are
// invoked for every dispatch of their event name; handlers registered with
// OnNext are invoked once and then removed. WaitForNext blocks the calling
// goroutine until the next dispatch of a name:
//
//	bus := eventbus.New[*Event]()
//	bus.On("server.*", func(ev *Event) { log(ev) })
//
//	ev, ok := bus.WaitForNext(ctx, "server.session.created")
//	if !ok {
//	    // ctx expired or the bus was aborted
//	}
//
// Dispatch snapshots the handler lists before invoking them, so handlers may
// subscribe or unsubscribe (including themselves) while being called.
package eventbus
