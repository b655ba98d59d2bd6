package page

import "strconv"

const (
	PageSize = 4096

	// DefaultBufferPoolSize and DefaultReplacerK are the frame count and LRU-K
	// history depth every index file is opened with unless overridden.
	DefaultBufferPoolSize = 1200
	DefaultReplacerK      = 10
)

/*
This holds the identifiers shared by every layer of the storage engine.

Page ids address 4KB slots of a single index file (offset = id * PageSize).
They are handed out by the buffer pool from a monotonic counter that starts at 1,
slot 0 of every file belongs to the disk manager's metadata block.

Frame ids index the buffer pool's fixed frame array. A frame is re-tagged with
different page ids over its lifetime.
*/

type PageID int32

const InvalidPageID PageID = -1

func (id PageID) IsValid() bool {
	return id > 0
}

func (id PageID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type FrameID int32

const InvalidFrameID FrameID = -1
