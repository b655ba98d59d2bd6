package diskmanager

import (
	"BTreeStore/internal/logging"
	"BTreeStore/internal/sys"
	"BTreeStore/storage_engine/page"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

/*
This is main file for disk manager
It owns:
The index file descriptor (os.File) and its advisory lock
Reading/writing whole pages at id * PageSize (ReadAt, WriteAt)
File growth: capacity doubles until the requested page count fits

Page slot 0 is the metadata block (magic + capacity) so a reopened file comes back
with the capacity it was closed with. The buffer pool never hands out page id 0.
Older layouts kept the capacity right after the first page; this one keeps it at offset 0.
Only an empty file is stamped. A non-empty file without the magic is refused untouched.

The disk manager never frees space. DeletePage only counts.
*/

func NewDiskManager(filePath string) (*DiskManager, error) {
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}

	if err := sys.TryLock(file); err != nil {
		file.Close()
		if errors.Is(err, sys.ErrWouldBlock) {
			return nil, fmt.Errorf("%s: %w", filePath, ErrFileLocked)
		}
		return nil, fmt.Errorf("failed to lock file %s: %w", filePath, err)
	}

	dm := &DiskManager{
		file:         file,
		filePath:     filePath,
		pageCapacity: MinCapacity,
		logger:       logging.Component("disk").With("file", filePath),
	}

	stat, err := file.Stat()
	if err != nil {
		dm.release()
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	// only an empty file is stamped; anything else must already be an index
	if stat.Size() == 0 {
		if err := dm.resize(); err != nil {
			dm.release()
			return nil, err
		}
		dm.logger.Debug("created", "capacity", dm.pageCapacity)
		return dm, nil
	}

	capacity, ok, err := dm.readMetadata()
	if err != nil {
		dm.release()
		return nil, err
	}
	if !ok {
		dm.release()
		return nil, fmt.Errorf("%s: missing %q magic: %w", filePath, metaMagic, ErrNotIndex)
	}
	if capacity < MinCapacity || stat.Size() < int64(capacity+1)*page.PageSize {
		dm.release()
		return nil, fmt.Errorf("%s: capacity %d does not fit file size %d: %w", filePath, capacity, stat.Size(), ErrNotIndex)
	}
	dm.pageCapacity = capacity

	dm.logger.Debug("opened", "capacity", dm.pageCapacity)
	return dm, nil
}

// IncreaseDiskSpace makes sure the file can hold page ids up to pages.
func (dm *DiskManager) IncreaseDiskSpace(pages int) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return ErrClosed
	}
	if pages < dm.pages {
		return nil
	}
	dm.pages = pages
	if dm.pageCapacity >= pages {
		return nil
	}

	for dm.pageCapacity < pages {
		dm.pageCapacity *= 2
	}
	dm.logger.Debug("grow", "pages", pages, "capacity", dm.pageCapacity)
	return dm.resize()
}

// WritePage writes exactly one page of data at the slot of pageID.
func (dm *DiskManager) WritePage(pageID page.PageID, data []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return ErrClosed
	}
	if !pageID.IsValid() {
		return fmt.Errorf("write page %d: %w", pageID, ErrInvalidPageID)
	}
	if int(pageID) > dm.pageCapacity {
		return fmt.Errorf("write page %d (capacity %d): %w", pageID, dm.pageCapacity, ErrPageOutOfRange)
	}
	if len(data) != page.PageSize {
		return fmt.Errorf("page data size %d does not match page size %d", len(data), page.PageSize)
	}

	if _, err := dm.file.WriteAt(data, offsetOf(pageID)); err != nil {
		return fmt.Errorf("failed to write page %d to %s: %w", pageID, dm.filePath, err)
	}
	dm.numWrites++
	return nil
}

// ReadPage fills out with the page stored at pageID. A page that is only partly
// on disk is zero padded and reported as ErrShortRead.
func (dm *DiskManager) ReadPage(pageID page.PageID, out []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return ErrClosed
	}
	if !pageID.IsValid() {
		return fmt.Errorf("read page %d: %w", pageID, ErrInvalidPageID)
	}
	if len(out) != page.PageSize {
		return fmt.Errorf("page buffer size %d does not match page size %d", len(out), page.PageSize)
	}

	stat, err := dm.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dm.filePath, err)
	}
	offset := offsetOf(pageID)
	if offset >= stat.Size() {
		return fmt.Errorf("read page %d (file size %d): %w", pageID, stat.Size(), ErrPageOutOfRange)
	}

	n, err := dm.file.ReadAt(out, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read page %d from %s: %w", pageID, dm.filePath, err)
	}
	if n < page.PageSize {
		clear(out[n:])
		return fmt.Errorf("read page %d: got %d of %d bytes: %w", pageID, n, page.PageSize, ErrShortRead)
	}
	return nil
}

// DeletePage records the deletion. Space is not reclaimed.
func (dm *DiskManager) DeletePage(pageID page.PageID) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.numDeletes++
}

// Clean empties the file and starts over with the minimum capacity.
func (dm *DiskManager) Clean() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return ErrClosed
	}
	if err := dm.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", dm.filePath, err)
	}

	dm.pageCapacity = MinCapacity
	dm.pages = 0
	dm.numWrites = 0
	dm.numDeletes = 0
	dm.numFlushes = 0
	return dm.resize()
}

// Sync pushes written pages to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return ErrClosed
	}
	return dm.syncLocked()
}

func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.closed {
		return nil
	}
	syncErr := dm.syncLocked()
	closeErr := dm.release()
	dm.closed = true
	dm.logger.Debug("closed", "writes", dm.numWrites, "deletes", dm.numDeletes, "flushes", dm.numFlushes)

	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

func (dm *DiskManager) GetNumWrites() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numWrites
}

func (dm *DiskManager) GetNumDeletes() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numDeletes
}

func (dm *DiskManager) GetNumFlushes() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numFlushes
}

// Capacity is the number of page slots the file is currently sized for.
func (dm *DiskManager) Capacity() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.pageCapacity
}

func (dm *DiskManager) FilePath() string {
	return dm.filePath
}

// ###################################### helpers ######################################

func offsetOf(pageID page.PageID) int64 {
	return int64(pageID) * page.PageSize
}

func (dm *DiskManager) syncLocked() error {
	if err := sys.Fsync(dm.file); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dm.filePath, err)
	}
	dm.numFlushes++
	return nil
}

// resize sets the file length to the metadata slot plus pageCapacity pages and
// records the capacity in the metadata block.
func (dm *DiskManager) resize() error {
	size := int64(dm.pageCapacity+1) * page.PageSize
	if err := dm.file.Truncate(size); err != nil {
		return fmt.Errorf("failed to resize %s to %d bytes: %w", dm.filePath, size, err)
	}
	return dm.writeMetadata()
}

func (dm *DiskManager) writeMetadata() error {
	var meta [metaBlockSize]byte
	copy(meta[metaMagicOff:], metaMagic)
	binary.LittleEndian.PutUint32(meta[metaCapOff:], uint32(dm.pageCapacity))
	if _, err := dm.file.WriteAt(meta[:], 0); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// readMetadata reports ok=false for files that were never stamped.
func (dm *DiskManager) readMetadata() (int, bool, error) {
	var meta [metaBlockSize]byte
	n, err := dm.file.ReadAt(meta[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, false, fmt.Errorf("failed to read metadata: %w", err)
	}
	if n < metaBlockSize || string(meta[metaMagicOff:metaMagicOff+len(metaMagic)]) != metaMagic {
		return 0, false, nil
	}
	return int(binary.LittleEndian.Uint32(meta[metaCapOff:])), true, nil
}

func (dm *DiskManager) release() error {
	unlockErr := sys.Unlock(dm.file)
	if err := dm.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dm.filePath, err)
	}
	return unlockErr
}
