package bplus

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// lookupCache remembers GetValue results keyed by the encoded key bytes.
// A key's value never changes while the key is present, so only Remove and
// Clean have to invalidate. A nil *lookupCache is a disabled cache.
type lookupCache[V any] struct {
	c *ristretto.Cache[string, V]
}

func newLookupCache[V any](maxEntries int64) (*lookupCache[V], error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return &lookupCache[V]{c: c}, nil
}

func (lc *lookupCache[V]) get(key []byte) (V, bool) {
	if lc == nil {
		var zero V
		return zero, false
	}
	return lc.c.Get(string(key))
}

func (lc *lookupCache[V]) set(key []byte, v V) {
	if lc == nil {
		return
	}
	lc.c.Set(string(key), v, 1)
}

func (lc *lookupCache[V]) del(key []byte) {
	if lc == nil {
		return
	}
	lc.c.Del(string(key))
}

// wait blocks until buffered sets are applied.
func (lc *lookupCache[V]) wait() {
	if lc == nil {
		return
	}
	lc.c.Wait()
}

func (lc *lookupCache[V]) clear() {
	if lc == nil {
		return
	}
	lc.c.Clear()
}

func (lc *lookupCache[V]) close() {
	if lc == nil {
		return
	}
	lc.c.Close()
}

func (lc *lookupCache[V]) metrics() (hits, misses uint64) {
	if lc == nil || lc.c.Metrics == nil {
		return 0, 0
	}
	return lc.c.Metrics.Hits(), lc.c.Metrics.Misses()
}
