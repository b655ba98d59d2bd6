// Structure of B+ Tree
/*
Tree
 ├── Header page (page id 1: page_cnt, size, root_page_id)
 └── Internal Page (keys + child page ids)
        └── Child Internal Pages ...
               └── Leaf Pages (keys + values + next page id)


- keys: sorted ascending order under Cmp
- internal pages: key slot 0 is never compared, child i holds keys in [key[i], key[i+1])
- internal page size counts children
- leaf pages linked with `next` for in-order scans, -1 ends the chain
- all leaf pages at same depth
- every page but the root holds between ceil(max/2) and max entries

*/
package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	diskmanager "BTreeStore/storage_engine/disk_manager"
	"BTreeStore/storage_engine/page"
	"errors"
	"log/slog"
	"sync"
)

var ErrInvalidOption = errors.New("bplus: invalid option")

// Comparator orders keys: negative when a < b, zero when equal, positive when a > b.
type Comparator[K any] func(a, b K) int

type BPlusTree[K, V any] struct {
	indexName    string
	headerPageID page.PageID

	bpm         *bufferpool.BufferPoolManager
	diskManager *diskmanager.DiskManager

	keyCodec   Codec[K]
	valueCodec Codec[V]
	cmp        Comparator[K]
	roughCmp   Comparator[K]

	leafMaxSize     int
	internalMaxSize int
	leafSlots       int
	internalSlots   int

	cache  *lookupCache[V]
	logger *slog.Logger
	closed bool
	mu     sync.RWMutex
}

// ############################################# OPTIONS #############################################

type options struct {
	leafMaxSize     int
	internalMaxSize int
	poolSize        int
	replacerK       int
	cacheSize       int64
	logger          *slog.Logger
}

type Option func(*options)

// WithLeafMaxSize caps the entries per leaf. Zero keeps the largest size a page can hold.
func WithLeafMaxSize(n int) Option {
	return func(o *options) { o.leafMaxSize = n }
}

// WithInternalMaxSize caps the children per internal page.
func WithInternalMaxSize(n int) Option {
	return func(o *options) { o.internalMaxSize = n }
}

// MinPoolSize is the smallest pool Open accepts. A mutation pins the header, one
// page per tree level and up to two siblings, so a tree of height h needs h+3
// frames; Insert and Remove refuse to start when fewer are unpinned.
const MinPoolSize = 8

// WithPoolSize sets the buffer pool frame count, at least MinPoolSize.
func WithPoolSize(frames int) Option {
	return func(o *options) { o.poolSize = frames }
}

func WithReplacerK(k int) Option {
	return func(o *options) { o.replacerK = k }
}

// WithLookupCache keeps up to n GetValue results in memory.
func WithLookupCache(n int64) Option {
	return func(o *options) { o.cacheSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// ############################################# STATS #############################################

type Stats struct {
	Size        int
	Height      int
	RootPageID  page.PageID
	PageCount   page.PageID
	Pool        bufferpool.Stats
	CacheHits   uint64
	CacheMisses uint64
}
