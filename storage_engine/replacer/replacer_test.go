package replacer

import (
	"BTreeStore/storage_engine/page"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvict(t *testing.T, r *LRUKReplacer) page.FrameID {
	t.Helper()
	frameID, ok := r.Evict()
	require.True(t, ok, "expected an evictable frame")
	return frameID
}

func TestEvictOrder(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	// frames 1..6 get one access each, frame 1 a second one
	for i := 1; i <= 6; i++ {
		r.RecordAccess(page.FrameID(i))
	}
	for i := 1; i <= 5; i++ {
		r.SetEvictable(page.FrameID(i), true)
	}
	r.SetEvictable(6, false)
	r.RecordAccess(1)
	assert.Equal(t, 5, r.Size())

	// infinite distance first, oldest first access wins the tie
	assert.Equal(t, page.FrameID(2), mustEvict(t, r))
	assert.Equal(t, page.FrameID(3), mustEvict(t, r))
	assert.Equal(t, page.FrameID(4), mustEvict(t, r))
	assert.Equal(t, 2, r.Size())

	r.RecordAccess(3)
	r.RecordAccess(4)
	r.RecordAccess(5)
	r.RecordAccess(4)
	r.SetEvictable(3, true)
	r.SetEvictable(4, true)
	assert.Equal(t, 4, r.Size())

	// 3 has a single access now: infinite
	assert.Equal(t, page.FrameID(3), mustEvict(t, r))
	assert.Equal(t, 3, r.Size())

	r.SetEvictable(6, true)
	assert.Equal(t, 4, r.Size())
	assert.Equal(t, page.FrameID(6), mustEvict(t, r))

	r.SetEvictable(1, false)
	assert.Equal(t, 2, r.Size())
	// 5 has k accesses with the older k-th access
	assert.Equal(t, page.FrameID(5), mustEvict(t, r))
	assert.Equal(t, page.FrameID(4), mustEvict(t, r))

	_, ok := r.Evict()
	assert.False(t, ok)

	r.SetEvictable(1, true)
	assert.Equal(t, page.FrameID(1), mustEvict(t, r))
	assert.Equal(t, 0, r.Size())
}

func TestHistoryKeepsOnlyK(t *testing.T) {
	r := NewLRUKReplacer(3, 2)

	r.RecordAccess(0) // t1
	r.RecordAccess(0) // t2
	r.RecordAccess(0) // t3 -> history {2,3}
	r.RecordAccess(1) // t4
	r.RecordAccess(1) // t5 -> history {4,5}
	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	assert.Equal(t, page.FrameID(0), mustEvict(t, r))

	r.RecordAccess(2) // t6
	r.RecordAccess(2) // t7
	r.RecordAccess(1) // t8 -> history {5,8}
	r.SetEvictable(2, true)

	// 1's second most recent access (t5) is older than 2's (t6)
	assert.Equal(t, page.FrameID(1), mustEvict(t, r))
}

func TestRemove(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.SetEvictable(0, true)

	r.Remove(0)
	assert.Equal(t, 0, r.Size())

	// untracked frames are ignored
	r.Remove(3)
	r.SetEvictable(3, true)
	assert.Equal(t, 0, r.Size())

	assert.Panics(t, func() { r.Remove(1) })

	_, ok := r.Evict()
	assert.False(t, ok)
}

func TestInvalidFramePanics(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	assert.Panics(t, func() { r.RecordAccess(2) })
	assert.Panics(t, func() { r.RecordAccess(-1) })
	assert.Panics(t, func() { r.SetEvictable(5, true) })
	assert.Panics(t, func() { r.Remove(2) })
}

func TestSetEvictableIsIdempotent(t *testing.T) {
	r := NewLRUKReplacer(2, 3)
	r.RecordAccess(1)
	r.SetEvictable(1, true)
	r.SetEvictable(1, true)
	assert.Equal(t, 1, r.Size())
	r.SetEvictable(1, false)
	r.SetEvictable(1, false)
	assert.Equal(t, 0, r.Size())
}

func TestClean(t *testing.T) {
	r := NewLRUKReplacer(3, 2)
	for i := 0; i < 3; i++ {
		r.RecordAccess(page.FrameID(i))
		r.SetEvictable(page.FrameID(i), true)
	}
	r.Clean()
	assert.Equal(t, 0, r.Size())
	_, ok := r.Evict()
	assert.False(t, ok)

	r.RecordAccess(2)
	r.SetEvictable(2, true)
	assert.Equal(t, page.FrameID(2), mustEvict(t, r))
}
