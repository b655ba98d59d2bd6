package replacer

import (
	"BTreeStore/storage_engine/page"
	"sync"
)

// lrukNode is the access history of one frame, oldest timestamp first.
// It never holds more than k entries.
type lrukNode struct {
	history   []uint64
	evictable bool
}

// LRUKReplacer picks eviction victims by backward k-distance: the age of a
// frame's k-th most recent access. Frames with fewer than k accesses have an
// infinite distance and are evicted first, oldest access first.
type LRUKReplacer struct {
	nodes            map[page.FrameID]*lrukNode
	currentTimestamp uint64
	evictableSize    int
	replacerSize     int // number of frames the replacer is allowed to track
	k                int
	mu               sync.Mutex
}
