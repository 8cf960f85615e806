// Package optimistic applies local changes ahead of server confirmation and
// undoes them when the server rejects the change.
package optimistic

import (
	"errors"
	"sync"
)

var ErrPending = errors.New("optimistic: request id already pending")

type change[V any] struct {
	key      string
	prior    V
	hadPrior bool
	version  uint64
}

type entry[V any] struct {
	value   V
	version uint64
}

// Tracker is a keyed cache of server-confirmed values with a ledger of
// in-flight optimistic changes. Each change is settled at most once, either
// by Confirm or by Rollback.
type Tracker[V any] struct {
	mu      sync.Mutex
	values  map[string]entry[V]
	pending map[string]change[V]
	clock   uint64
}

func New[V any]() *Tracker[V] {
	return &Tracker[V]{values: map[string]entry[V]{}, pending: map[string]change[V]{}}
}

func (t *Tracker[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.values[key]
	return e.value, ok
}

// Put stores a server-confirmed value.
func (t *Tracker[V]) Put(key string, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock++
	t.values[key] = entry[V]{value: v, version: t.clock}
}

// Apply records the current value of key under requestID and replaces it
// with next.
func (t *Tracker[V]) Apply(requestID, key string, next V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[requestID]; ok {
		return ErrPending
	}
	prior, had := t.values[key]
	t.clock++
	t.values[key] = entry[V]{value: next, version: t.clock}
	t.pending[requestID] = change[V]{key: key, prior: prior.value, hadPrior: had, version: t.clock}
	return nil
}

// Confirm settles requestID with the value the server returned. It reports
// false when the request was already settled or never applied.
func (t *Tracker[V]) Confirm(requestID string, confirmed V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.pending[requestID]
	if !ok {
		return false
	}
	delete(t.pending, requestID)
	if t.values[ch.key].version == ch.version {
		t.clock++
		t.values[ch.key] = entry[V]{value: confirmed, version: t.clock}
	}
	t.inherit(ch, confirmed, true)
	return true
}

// Rollback restores the value key had before requestID was applied. Only the
// first call for a request has an effect. When a later change to the same key
// is still in flight, the current value is left alone and the later change
// inherits the restored prior instead.
func (t *Tracker[V]) Rollback(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.pending[requestID]
	if !ok {
		return false
	}
	delete(t.pending, requestID)
	if t.values[ch.key].version == ch.version {
		if ch.hadPrior {
			t.clock++
			t.values[ch.key] = entry[V]{value: ch.prior, version: t.clock}
		} else {
			delete(t.values, ch.key)
		}
		return true
	}
	t.inherit(ch, ch.prior, ch.hadPrior)
	return true
}

// inherit hands the settled baseline to the next pending change on the same
// key, so its own rollback lands on a server-confirmed value.
func (t *Tracker[V]) inherit(settled change[V], base V, had bool) {
	var (
		nextID string
		next   change[V]
		found  bool
	)
	for id, ch := range t.pending {
		if ch.key != settled.key || ch.version <= settled.version {
			continue
		}
		if !found || ch.version < next.version {
			nextID, next, found = id, ch, true
		}
	}
	if !found {
		return
	}
	next.prior, next.hadPrior = base, had
	t.pending[nextID] = next
}

// Pending returns the number of unsettled changes.
func (t *Tracker[V]) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
