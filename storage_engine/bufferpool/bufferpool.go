package bufferpool

import (
	"BTreeStore/internal/logging"
	diskmanager "BTreeStore/storage_engine/disk_manager"
	"BTreeStore/storage_engine/page"
	"BTreeStore/storage_engine/replacer"
	"fmt"
)

/*
This file is the main file of the bufferpool
The pool owns a fixed number of frames. A page is looked up in the page table first,
then placed into a free frame, and only when no frame is free the LRU-K replacer picks
a victim (written back first if dirty).

Callers never see frames. They get a ReadPageGuard or WritePageGuard which keeps the
page pinned until Drop.

Page ids come from a counter owned by the pool, starting at 1. The counter is not
persisted here; the index stores it in its header page and restores it with InitPageCnt.
*/

func NewBufferPoolManager(numFrames int, diskManager *diskmanager.DiskManager, k int, opts ...Option) *BufferPoolManager {
	bpm := &BufferPoolManager{
		numFrames:   numFrames,
		frames:      make([]*frameHeader, numFrames),
		pageTable:   make(map[page.PageID]page.FrameID, numFrames),
		freeFrames:  make([]page.FrameID, 0, numFrames),
		replacer:    replacer.NewLRUKReplacer(numFrames, k),
		diskManager: diskManager,
		logger:      logging.Component("bufferpool"),
	}
	for i := 0; i < numFrames; i++ {
		bpm.frames[i] = &frameHeader{
			frameID: page.FrameID(i),
			data:    make([]byte, page.PageSize),
			pageID:  page.InvalidPageID,
		}
		bpm.freeFrames = append(bpm.freeFrames, page.FrameID(i))
	}
	for _, opt := range opts {
		opt(bpm)
	}
	return bpm
}

// NewPage allocates the next page id and grows the file to cover it.
// The page is not brought into memory until it is fetched.
func (bpm *BufferPoolManager) NewPage() (page.PageID, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	pageID := bpm.nextPageID + 1
	if err := bpm.diskManager.IncreaseDiskSpace(int(pageID)); err != nil {
		return page.InvalidPageID, fmt.Errorf("failed to allocate page %d: %w", pageID, err)
	}
	bpm.nextPageID = pageID
	return pageID, nil
}

// InitPageCnt restores the allocation counter of a reopened file.
func (bpm *BufferPoolManager) InitPageCnt(count page.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if count < 0 {
		return fmt.Errorf("invalid page count %d", count)
	}
	if err := bpm.diskManager.IncreaseDiskSpace(int(count)); err != nil {
		return fmt.Errorf("failed to restore page count %d: %w", count, err)
	}
	bpm.nextPageID = count
	return nil
}

// PageCnt is the number of page ids handed out so far.
func (bpm *BufferPoolManager) PageCnt() page.PageID {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	return bpm.nextPageID
}

// ReadPage pins pageID for reading.
func (bpm *BufferPoolManager) ReadPage(pageID page.PageID) (*ReadPageGuard, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frame, err := bpm.fetchFrame(pageID)
	if err != nil {
		return nil, err
	}
	return &ReadPageGuard{pageGuard: newPageGuard(bpm, frame)}, nil
}

// WritePage pins pageID for writing. The page is dirty from this point on.
func (bpm *BufferPoolManager) WritePage(pageID page.PageID) (*WritePageGuard, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frame, err := bpm.fetchFrame(pageID)
	if err != nil {
		return nil, err
	}
	frame.isDirty = true
	return &WritePageGuard{pageGuard: newPageGuard(bpm, frame)}, nil
}

// DeletePage drops pageID from the pool. It reports false only when the page is pinned.
// The contents are discarded, dirty or not.
func (bpm *BufferPoolManager) DeletePage(pageID page.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, exists := bpm.pageTable[pageID]
	if !exists {
		bpm.diskManager.DeletePage(pageID)
		return true
	}

	frame := bpm.frames[frameID]
	if frame.pinCount > 0 {
		bpm.logger.Debug("delete refused", "page", pageID, "pin", frame.pinCount)
		return false
	}

	bpm.replacer.Remove(frameID)
	delete(bpm.pageTable, pageID)
	frame.reset()
	bpm.freeFrames = append(bpm.freeFrames, frameID)
	bpm.diskManager.DeletePage(pageID)
	return true
}

// FlushPage writes pageID back if it is resident and dirty. The bool reports whether
// anything was written.
func (bpm *BufferPoolManager) FlushPage(pageID page.PageID) (bool, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, exists := bpm.pageTable[pageID]
	if !exists {
		return false, nil
	}
	frame := bpm.frames[frameID]
	if !frame.isDirty {
		return false, nil
	}
	if err := bpm.writeBack(frame); err != nil {
		return false, err
	}
	return true, nil
}

// FlushAllPages writes back every dirty resident page and syncs the file.
func (bpm *BufferPoolManager) FlushAllPages() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	bpm.logger.Debug("flush all", "resident", len(bpm.pageTable))
	for _, frameID := range bpm.pageTable {
		frame := bpm.frames[frameID]
		if !frame.isDirty {
			continue
		}
		if err := bpm.writeBack(frame); err != nil {
			return err
		}
	}
	if err := bpm.diskManager.Sync(); err != nil {
		return fmt.Errorf("failed to sync after flush: %w", err)
	}
	return nil
}

// fetchFrame makes pageID resident and pins it.
// Assumes lock is already held
func (bpm *BufferPoolManager) fetchFrame(pageID page.PageID) (*frameHeader, error) {
	if !pageID.IsValid() {
		return nil, fmt.Errorf("fetch page %d: %w", pageID, diskmanager.ErrInvalidPageID)
	}

	if frameID, exists := bpm.pageTable[pageID]; exists {
		frame := bpm.frames[frameID]
		bpm.hits++
		bpm.logger.Debug("hit", "page", pageID, "frame", frameID, "pin", frame.pinCount)
		bpm.pin(frame)
		return frame, nil
	}

	bpm.misses++
	bpm.logger.Debug("miss", "page", pageID)

	frame, err := bpm.acquireFrame()
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", pageID, err)
	}

	// a short read is as fatal as any other read failure
	if err := bpm.diskManager.ReadPage(pageID, frame.data); err != nil {
		frame.reset()
		bpm.freeFrames = append(bpm.freeFrames, frame.frameID)
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}

	frame.pageID = pageID
	bpm.pageTable[pageID] = frame.frameID
	bpm.pin(frame)
	return frame, nil
}

// acquireFrame returns an empty frame, evicting a page if the free list is empty.
// Assumes lock is already held
func (bpm *BufferPoolManager) acquireFrame() (*frameHeader, error) {
	if n := len(bpm.freeFrames); n > 0 {
		frameID := bpm.freeFrames[n-1]
		bpm.freeFrames = bpm.freeFrames[:n-1]
		return bpm.frames[frameID], nil
	}

	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return nil, ErrPoolExhausted
	}
	victim := bpm.frames[frameID]
	bpm.logger.Debug("evict", "page", victim.pageID, "frame", frameID, "dirty", victim.isDirty)

	if victim.isDirty {
		if err := bpm.writeBack(victim); err != nil {
			// put the victim back the way it was
			bpm.replacer.RecordAccess(frameID)
			bpm.replacer.SetEvictable(frameID, true)
			return nil, fmt.Errorf("failed to write page %d during eviction: %w", victim.pageID, err)
		}
	}

	delete(bpm.pageTable, victim.pageID)
	victim.reset()
	bpm.evictions++
	return victim, nil
}

// Assumes lock is already held
func (bpm *BufferPoolManager) writeBack(frame *frameHeader) error {
	if err := bpm.diskManager.WritePage(frame.pageID, frame.data); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", frame.pageID, err)
	}
	frame.isDirty = false
	return nil
}

// Assumes lock is already held
func (bpm *BufferPoolManager) pin(frame *frameHeader) {
	frame.pinCount++
	bpm.replacer.RecordAccess(frame.frameID)
	bpm.replacer.SetEvictable(frame.frameID, false)
}

func (bpm *BufferPoolManager) unpin(frame *frameHeader) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frame.pinCount == 0 {
		return
	}
	frame.pinCount--
	if frame.pinCount == 0 {
		bpm.replacer.SetEvictable(frame.frameID, true)
	}
}
