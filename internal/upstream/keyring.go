// internal/upstream/keyring.go
package upstream

import "sync/atomic"

// KeyRing hands out API keys for successive calls.
type KeyRing interface {
	Next() string
}

// RoundRobin cycles through a fixed key list. Concurrent callers may occasionally receive the
// same key; the counter itself is race free.
type RoundRobin struct {
	keys    []string
	counter atomic.Uint64
}

func NewRoundRobin(keys []string) *RoundRobin {
	return &RoundRobin{keys: append([]string(nil), keys...)}
}

// Next returns the next key, or "" when the ring is empty.
func (r *RoundRobin) Next() string {
	if len(r.keys) == 0 {
		return ""
	}
	n := r.counter.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))]
}

func (r *RoundRobin) Len() int {
	return len(r.keys)
}
