package kv

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func stores(t *testing.T, opts *Options) map[string]Store {
	t.Helper()
	b, err := NewBadger(BadgerOptions{Options: opts, InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	m := NewMemory(opts)
	t.Cleanup(func() {
		b.Close()
		m.Close()
	})
	return map[string]Store{"memory": m, "badger": b}
}

func TestStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t, nil) {
		t.Run(name, func(t *testing.T) {
			key := Key{"conv", "sess_1", "meta"}
			if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if err := s.Set(ctx, key, []byte("a")); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			if err := s.Set(ctx, key, []byte("b")); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil || string(got) != "b" {
				t.Fatalf("Get() = %q, %v, want b", got, err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete(missing) error: %v", err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t, nil) {
		t.Run(name, func(t *testing.T) {
			err := s.BatchSet(ctx, []Entry{
				{Key{"conv", "s1", "0002"}, []byte("2")},
				{Key{"conv", "s1", "0001"}, []byte("1")},
				{Key{"conv", "s10", "0001"}, []byte("x")},
				{Key{"meta", "s1"}, []byte("m")},
			})
			if err != nil {
				t.Fatalf("BatchSet() error: %v", err)
			}

			var keys []string
			var vals []string
			for e, err := range s.List(ctx, Key{"conv", "s1"}) {
				if err != nil {
					t.Fatalf("List() error: %v", err)
				}
				keys = append(keys, e.Key.String())
				vals = append(vals, string(e.Value))
			}
			if want := []string{"conv:s1:0001", "conv:s1:0002"}; !slices.Equal(keys, want) {
				t.Fatalf("List keys = %v, want %v", keys, want)
			}
			if want := []string{"1", "2"}; !slices.Equal(vals, want) {
				t.Fatalf("List values = %v, want %v", vals, want)
			}

			n := 0
			for range s.List(ctx, nil) {
				n++
			}
			if n != 4 {
				t.Fatalf("List(nil) yielded %d entries, want 4", n)
			}

			n = 0
			for range s.List(ctx, Key{"conv"}) {
				n++
				break
			}
			if n != 1 {
				t.Fatalf("early break yielded %d entries", n)
			}
		})
	}
}

func TestStoreSeparator(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t, &Options{Separator: '/'}) {
		t.Run(name, func(t *testing.T) {
			s.Set(ctx, Key{"a", "b:c"}, []byte("v"))
			for e, err := range s.List(ctx, Key{"a"}) {
				if err != nil {
					t.Fatalf("List() error: %v", err)
				}
				if !slices.Equal(e.Key, Key{"a", "b:c"}) {
					t.Fatalf("Key = %q, want [a b:c]", e.Key)
				}
			}
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	v := []byte("abc")
	m.Set(ctx, Key{"k"}, v)
	v[0] = 'X'
	got, _ := m.Get(ctx, Key{"k"})
	if string(got) != "abc" {
		t.Fatalf("Get() = %q after caller mutation, want abc", got)
	}
}

func TestNewBadgerRequiresDir(t *testing.T) {
	if _, err := NewBadger(BadgerOptions{}); err == nil {
		t.Fatalf("NewBadger() without dir succeeded")
	}
}
