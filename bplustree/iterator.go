package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	"BTreeStore/storage_engine/page"
	"fmt"
)

// Iterator provides a forward-only scan along the leaf chain.
// It keeps the current leaf pinned until it moves past it or is closed,
// and must not be held across Insert or Remove.
type Iterator[K, V any] struct {
	tree  *BPlusTree[K, V]
	guard *bufferpool.ReadPageGuard
	leaf  leafPage[K, V]
	index int
	err   error
}

// Begin positions an iterator on the smallest key.
func (t *BPlusTree[K, V]) Begin() (*Iterator[K, V], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.first()
}

// SeekGE positions the iterator at the first key >= target.
func (t *BPlusTree[K, V]) SeekGE(target K) (*Iterator[K, V], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seek(target, t.childIndex, t.cmp)
}

func (t *BPlusTree[K, V]) first() (*Iterator[K, V], error) {
	var zero K
	guard, err := t.findLeaf(zero, leftmostChild[K])
	if err != nil {
		return nil, err
	}
	it := &Iterator[K, V]{tree: t}
	it.enter(guard)
	it.skipExhausted()
	return it, it.err
}

// seek descends with pick and stops on the first entry with cmp(entry, target) >= 0.
func (t *BPlusTree[K, V]) seek(target K, pick func(internalPage[K], K) int, cmp Comparator[K]) (*Iterator[K, V], error) {
	guard, err := t.findLeaf(target, pick)
	if err != nil {
		return nil, err
	}
	it := &Iterator[K, V]{tree: t}
	it.enter(guard)

	for it.Valid() {
		for it.index < it.leaf.Size() && cmp(it.leaf.KeyAt(it.index), target) < 0 {
			it.index++
		}
		if it.index < it.leaf.Size() {
			break
		}
		it.advanceLeaf()
	}
	return it, it.err
}

func (it *Iterator[K, V]) enter(guard *bufferpool.ReadPageGuard) {
	it.guard = guard
	it.index = 0
	if guard != nil {
		it.leaf = it.tree.asLeaf(guard.Data())
	}
}

// advanceLeaf releases the current leaf and pins its successor.
func (it *Iterator[K, V]) advanceLeaf() {
	next := it.leaf.NextPageID()
	it.guard.Drop()
	it.guard = nil
	if next == page.InvalidPageID {
		return
	}
	guard, err := it.tree.bpm.ReadPage(next)
	if err != nil {
		it.err = fmt.Errorf("follow leaf chain to page %d: %w", next, err)
		return
	}
	it.enter(guard)
}

func (it *Iterator[K, V]) skipExhausted() {
	for it.Valid() && it.index >= it.leaf.Size() {
		it.advanceLeaf()
	}
}

func (it *Iterator[K, V]) Valid() bool {
	return it.guard != nil && it.err == nil
}

// Next advances the iterator. Returns false when exhausted.
func (it *Iterator[K, V]) Next() bool {
	if !it.Valid() {
		return false
	}
	it.index++
	it.skipExhausted()
	return it.Valid()
}

// Key returns the current key.
func (it *Iterator[K, V]) Key() K {
	return it.leaf.KeyAt(it.index)
}

// Value returns the current value.
func (it *Iterator[K, V]) Value() V {
	return it.leaf.ValueAt(it.index)
}

// PageID is the leaf the iterator currently stands on.
func (it *Iterator[K, V]) PageID() page.PageID {
	if it.guard == nil {
		return page.InvalidPageID
	}
	return it.guard.PageID()
}

func (it *Iterator[K, V]) Err() error {
	return it.err
}

func (it *Iterator[K, V]) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
}
