package eventbus

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestBus_OnDispatchOrder(t *testing.T) {
	bus := New[int]()
	var got []string
	bus.On("foo", func(v int) { got = append(got, "a") })
	bus.On("foo", func(v int) { got = append(got, "b") })
	bus.OnNext("foo", func(v int) { got = append(got, "once") })
	bus.On("bar", func(v int) { got = append(got, "bar") })

	if !bus.Dispatch("foo", 1) {
		t.Fatal("Dispatch returned false")
	}
	bus.Dispatch("foo", 2)

	want := []string{"a", "b", "once", "a", "b"}
	if !slices.Equal(got, want) {
		t.Fatalf("handlers called %v, want %v", got, want)
	}
}

func TestBus_OffAll(t *testing.T) {
	bus := New[string]()
	calls := 0
	bus.On("foo", func(string) { calls++ })
	bus.On("foo", func(string) { calls++ })

	if err := bus.Off("foo"); err != nil {
		t.Fatalf("Off: %v", err)
	}
	bus.Dispatch("foo", "x")
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}

	// Removing all handlers for an unknown name is a no-op.
	if err := bus.Off("never"); err != nil {
		t.Fatalf("Off(never) = %v, want nil", err)
	}
}

func TestBus_OffSingle(t *testing.T) {
	bus := New[string]()
	var got []string
	a := bus.On("foo", func(string) { got = append(got, "a") })
	bus.On("foo", func(string) { got = append(got, "b") })

	if err := bus.Off("foo", a); err != nil {
		t.Fatalf("Off: %v", err)
	}
	bus.Dispatch("foo", "x")
	if !slices.Equal(got, []string{"b"}) {
		t.Fatalf("got %v, want [b]", got)
	}

	// Removing it again fails.
	if err := bus.Off("foo", a); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("second Off = %v, want ErrNotSubscribed", err)
	}
	// Wrong name fails too.
	other := bus.On("bar", func(string) {})
	if err := bus.Off("foo", other); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("Off with foreign sub = %v, want ErrNotSubscribed", err)
	}
}

func TestBus_OffNext(t *testing.T) {
	bus := New[int]()
	calls := 0
	sub := bus.OnNext("foo", func(int) { calls++ })
	if err := bus.OffNext("foo", sub); err != nil {
		t.Fatalf("OffNext: %v", err)
	}
	bus.Dispatch("foo", 1)
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
	if err := bus.OffNext("foo", sub); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("OffNext again = %v, want ErrNotSubscribed", err)
	}
	if err := bus.OffNext("foo"); err != nil {
		t.Fatalf("OffNext all = %v", err)
	}
}

func TestBus_OnNextFiresOnce(t *testing.T) {
	bus := New[int]()
	var got []int
	bus.OnNext("foo", func(v int) { got = append(got, v) })
	bus.Dispatch("foo", 1)
	bus.Dispatch("foo", 2)
	if !slices.Equal(got, []int{1}) {
		t.Fatalf("got %v, want [1]", got)
	}
	if n := bus.Len("foo"); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}

func TestBus_MutationDuringDispatch(t *testing.T) {
	bus := New[int]()
	var got []string
	var self *Subscription
	self = bus.On("foo", func(int) {
		got = append(got, "self")
		if err := bus.Off("foo", self); err != nil {
			t.Errorf("Off inside handler: %v", err)
		}
		bus.On("foo", func(int) { got = append(got, "late") })
	})
	bus.On("foo", func(int) { got = append(got, "second") })

	bus.Dispatch("foo", 0)
	if !slices.Equal(got, []string{"self", "second"}) {
		t.Fatalf("first dispatch %v, want [self second]", got)
	}

	got = nil
	bus.Dispatch("foo", 0)
	if !slices.Equal(got, []string{"second", "late"}) {
		t.Fatalf("second dispatch %v, want [second late]", got)
	}
}

func TestBus_WaitForNext(t *testing.T) {
	bus := New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan string)
	go func() {
		v, ok := bus.WaitForNext(ctx, "foo")
		if !ok {
			v = "timeout"
		}
		done <- v
	}()

	// Wait until the waiter registered.
	for bus.Len("foo") == 0 {
		time.Sleep(time.Millisecond)
	}
	bus.Dispatch("foo", "first")
	bus.Dispatch("foo", "second")

	if v := <-done; v != "first" {
		t.Fatalf("WaitForNext = %q, want first", v)
	}
	if n := bus.Len("foo"); n != 0 {
		t.Fatalf("Len after wait = %d, want 0", n)
	}
}

func TestBus_WaitForNextTimeout(t *testing.T) {
	bus := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v, ok := bus.WaitForNext(ctx, "foo")
	if ok {
		t.Fatalf("WaitForNext = %d, true; want timeout", v)
	}
	if n := bus.Len("foo"); n != 0 {
		t.Fatalf("timed out waiter left %d registrations", n)
	}
}

func TestBus_WaitForNextConcurrent(t *testing.T) {
	bus := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const waiters = 8
	var wg sync.WaitGroup
	results := make(chan int, waiters)
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, ok := bus.WaitForNext(ctx, "foo"); ok {
				results <- v
			}
		}()
	}
	for bus.Len("foo") < waiters {
		time.Sleep(time.Millisecond)
	}
	bus.Dispatch("foo", 42)
	wg.Wait()
	close(results)

	n := 0
	for v := range results {
		if v != 42 {
			t.Fatalf("waiter got %d, want 42", v)
		}
		n++
	}
	if n != waiters {
		t.Fatalf("%d waiters resolved, want %d", n, waiters)
	}
}

func TestBus_Abort(t *testing.T) {
	bus := New[int]()
	done := make(chan bool)
	go func() {
		_, ok := bus.WaitForNext(context.Background(), "foo")
		done <- ok
	}()
	for bus.Len("foo") == 0 {
		time.Sleep(time.Millisecond)
	}
	bus.Abort()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("aborted wait returned ok")
		}
	case <-time.After(time.Second):
		t.Fatal("Abort did not release waiter")
	}
}

func TestBus_Reset(t *testing.T) {
	bus := New[int]()
	calls := 0
	bus.On("foo", func(int) { calls++ })
	bus.OnNext("foo", func(int) { calls++ })
	bus.Reset()
	bus.Dispatch("foo", 1)
	if calls != 0 {
		t.Fatalf("calls after Reset = %d, want 0", calls)
	}
}

func TestBus_HandlerPanicPropagates(t *testing.T) {
	bus := New[int]()
	bus.On("foo", func(int) { panic("boom") })
	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("recover() = %v, want boom", r)
		}
	}()
	bus.Dispatch("foo", 1)
}
