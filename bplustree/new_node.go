package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	"fmt"
)

// newLeaf allocates a page, formats it as an empty leaf and returns it pinned for writing.
func (t *BPlusTree[K, V]) newLeaf(maxSize int) (*bufferpool.WritePageGuard, leafPage[K, V], error) {
	guard, err := t.allocPage()
	if err != nil {
		return nil, leafPage[K, V]{}, err
	}
	leaf := t.asLeaf(guard.DataMut())
	leaf.Init(maxSize)
	return guard, leaf, nil
}

// newInternal allocates a page, formats it as an empty internal page and returns it pinned for writing.
func (t *BPlusTree[K, V]) newInternal(maxSize int) (*bufferpool.WritePageGuard, internalPage[K], error) {
	guard, err := t.allocPage()
	if err != nil {
		return nil, internalPage[K]{}, err
	}
	ip := t.asInternal(guard.DataMut())
	ip.Init(maxSize)
	return guard, ip, nil
}

func (t *BPlusTree[K, V]) allocPage() (*bufferpool.WritePageGuard, error) {
	id, err := t.bpm.NewPage()
	if err != nil {
		return nil, fmt.Errorf("allocate page: %w", err)
	}
	guard, err := t.bpm.WritePage(id)
	if err != nil {
		return nil, fmt.Errorf("pin new page %d: %w", id, err)
	}
	return guard, nil
}

// reserveFrames fails with ErrPoolExhausted unless n frames beyond the pages the
// current operation already pins are available. Called before the first change
// to a page so a too-small pool never leaves a half-done split or merge.
func (t *BPlusTree[K, V]) reserveFrames(n int, op string) error {
	if free := t.bpm.UnpinnedFrames(); free < n {
		return fmt.Errorf("%s: %d unpinned frames, need %d: %w", op, free, n, bufferpool.ErrPoolExhausted)
	}
	return nil
}

// freePage gives a page back to the pool. The caller must have dropped every guard on it.
func (t *BPlusTree[K, V]) freePage(guard *bufferpool.WritePageGuard) {
	id := guard.PageID()
	guard.Drop()
	if !t.bpm.DeletePage(id) {
		t.logger.Warn("page still pinned after merge", "page", id)
	}
}
