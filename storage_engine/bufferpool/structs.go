package bufferpool

import (
	diskmanager "BTreeStore/storage_engine/disk_manager"
	"BTreeStore/storage_engine/page"
	"BTreeStore/storage_engine/replacer"
	"errors"
	"log/slog"
	"sync"
)

var ErrPoolExhausted = errors.New("bufferpool: every frame is pinned")

// ############################################# FRAME #############################################

// frameHeader is one slot of the pool. The slot keeps its data buffer for the
// whole life of the pool and is re-tagged with whatever page it currently holds.
type frameHeader struct {
	frameID  page.FrameID
	data     []byte
	pinCount int
	isDirty  bool
	pageID   page.PageID
}

// ############################################# BUFFER POOL #############################################

// BufferPoolManager caches pages of one disk file in a fixed array of frames
// and evicts with LRU-K once the free list runs dry.
type BufferPoolManager struct {
	numFrames  int
	nextPageID page.PageID // last page id handed out by NewPage

	frames     []*frameHeader
	pageTable  map[page.PageID]page.FrameID
	freeFrames []page.FrameID

	replacer    *replacer.LRUKReplacer
	diskManager *diskmanager.DiskManager

	hits      int
	misses    int
	evictions int

	logger *slog.Logger
	mu     sync.Mutex
}

type Option func(*BufferPoolManager)

func WithLogger(logger *slog.Logger) Option {
	return func(bpm *BufferPoolManager) {
		if logger != nil {
			bpm.logger = logger
		}
	}
}

// Stats returns buffer pool statistics
type Stats struct {
	Capacity      int
	ResidentPages int
	PinnedPages   int
	DirtyPages    int
	Hits          int
	Misses        int
	Evictions     int
	PageCount     page.PageID
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
