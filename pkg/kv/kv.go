// Package kv stores recorded conversation data under hierarchical keys.
//
// A Key is a slice of segments such as {"conv", "sess_1", "0000000003"}. It is
// encoded by joining the segments with a separator byte (':' by default), so
// listing by prefix walks one subtree in byte order. Badger persists the data;
// Memory is a drop-in for tests and for running without a record directory.
package kv

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path. Segments must not contain the separator.
type Key []string

// String joins the segments with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys. Implementations are safe
// for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields the entries below prefix in encoded key order. An empty
	// prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet stores all entries atomically.
	BatchSet(ctx context.Context, entries []Entry) error

	Close() error
}

// DefaultSeparator joins key segments when Options.Separator is zero.
const DefaultSeparator byte = ':'

// Options configures key encoding. A nil *Options uses the defaults.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o == nil || o.Separator == 0 {
		return DefaultSeparator
	}
	return o.Separator
}

func (o *Options) encode(k Key) []byte {
	segs := make([][]byte, len(k))
	for i, s := range k {
		segs[i] = []byte(s)
	}
	return bytes.Join(segs, []byte{o.sep()})
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// prefix returns the encoded scan prefix for p. A trailing separator keeps
// {"a","b"} from matching {"a","bc"}.
func (o *Options) prefix(p Key) []byte {
	if len(p) == 0 {
		return nil
	}
	return append(o.encode(p), o.sep())
}
