package bufferpool

import (
	"BTreeStore/storage_engine/page"
	"fmt"
)

/*
This file holds helper functions for the bufferpool
*/

func (f *frameHeader) reset() {
	clear(f.data)
	f.pinCount = 0
	f.isDirty = false
	f.pageID = page.InvalidPageID
}

// Size returns the number of frames in the pool
func (bpm *BufferPoolManager) Size() int {
	return bpm.numFrames
}

// GetPinCount reports the pin count of a resident page.
func (bpm *BufferPoolManager) GetPinCount(pageID page.PageID) (int, bool) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, exists := bpm.pageTable[pageID]
	if !exists {
		return 0, false
	}
	return bpm.frames[frameID].pinCount, true
}

// UnpinnedFrames is the number of frames a new fetch could still use: free
// frames plus resident pages nobody holds.
func (bpm *BufferPoolManager) UnpinnedFrames() int {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	n := 0
	for _, frame := range bpm.frames {
		if frame.pinCount == 0 {
			n++
		}
	}
	return n
}

// Stats returns current buffer pool statistics
func (bpm *BufferPoolManager) Stats() Stats {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	stats := Stats{
		Capacity:      bpm.numFrames,
		ResidentPages: len(bpm.pageTable),
		Hits:          bpm.hits,
		Misses:        bpm.misses,
		Evictions:     bpm.evictions,
		PageCount:     bpm.nextPageID,
	}
	for _, frameID := range bpm.pageTable {
		frame := bpm.frames[frameID]
		if frame.pinCount > 0 {
			stats.PinnedPages++
		}
		if frame.isDirty {
			stats.DirtyPages++
		}
	}
	return stats
}

// Clean drops every cached page without writing it back, resets the page id
// counter and empties the disk file.
func (bpm *BufferPoolManager) Clean() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	bpm.pageTable = make(map[page.PageID]page.FrameID, bpm.numFrames)
	bpm.freeFrames = bpm.freeFrames[:0]
	for _, frame := range bpm.frames {
		frame.reset()
		bpm.freeFrames = append(bpm.freeFrames, frame.frameID)
	}
	bpm.replacer.Clean()
	bpm.nextPageID = 0
	bpm.hits, bpm.misses, bpm.evictions = 0, 0, 0

	if err := bpm.diskManager.Clean(); err != nil {
		return fmt.Errorf("failed to clean disk: %w", err)
	}
	return nil
}
