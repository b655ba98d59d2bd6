package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	"BTreeStore/storage_engine/page"
	"fmt"
)

// childIndex is the slot of the last separator <= key. Slot 0 is never compared.
func (t *BPlusTree[K, V]) childIndex(p internalPage[K], key K) int {
	idx := 0
	for i := 1; i < p.Size(); i++ {
		if t.cmp(p.KeyAt(i), key) > 0 {
			break
		}
		idx = i
	}
	return idx
}

// roughChildIndex is the leftmost child that can hold a key rough-equal to key.
func (t *BPlusTree[K, V]) roughChildIndex(p internalPage[K], key K) int {
	for i := 1; i < p.Size(); i++ {
		if t.roughCmp(p.KeyAt(i), key) >= 0 {
			return i - 1
		}
	}
	return p.Size() - 1
}

func leftmostChild[K any](internalPage[K], K) int { return 0 }

// findLeaf descends with read guards, releasing each parent before moving on.
// pick chooses the child slot at every internal page. The returned guard is
// nil for an empty tree; otherwise the caller must Drop it.
func (t *BPlusTree[K, V]) findLeaf(key K, pick func(internalPage[K], K) int) (*bufferpool.ReadPageGuard, error) {
	root, _, err := t.readHeader()
	if err != nil {
		return nil, err
	}
	if root == page.InvalidPageID {
		return nil, nil
	}

	pageID := root
	for {
		guard, err := t.bpm.ReadPage(pageID)
		if err != nil {
			return nil, fmt.Errorf("descend to page %d: %w", pageID, err)
		}
		tp := treePage(guard.Data())
		switch tp.Type() {
		case leafPageType:
			return guard, nil
		case internalPageType:
			ip := t.asInternal(guard.Data())
			pageID = ip.ValueAt(pick(ip, key))
			guard.Drop()
		default:
			guard.Drop()
			return nil, fmt.Errorf("page %d has invalid page type %d", pageID, tp.Type())
		}
	}
}

// findLeafWrite descends with write guards and keeps the whole chain in ctx.
// ctx.header must already be held. The leaf ends up on top of the stack.
func (t *BPlusTree[K, V]) findLeafWrite(ctx *Context, key K) error {
	pageID := ctx.rootID
	for {
		guard, err := t.bpm.WritePage(pageID)
		if err != nil {
			return fmt.Errorf("descend to page %d: %w", pageID, err)
		}
		tp := treePage(guard.Data())
		switch tp.Type() {
		case leafPageType:
			ctx.push(guard, -1)
			return nil
		case internalPageType:
			ip := t.asInternal(guard.DataMut())
			idx := t.childIndex(ip, key)
			ctx.push(guard, idx)
			pageID = ip.ValueAt(idx)
		default:
			guard.Drop()
			return fmt.Errorf("page %d has invalid page type %d", pageID, tp.Type())
		}
	}
}

// beginWrite pins the header for the length of a mutation.
func (t *BPlusTree[K, V]) beginWrite() (*Context, error) {
	if t.closed {
		return nil, fmt.Errorf("index %s is closed", t.indexName)
	}
	header, err := t.bpm.WritePage(t.headerPageID)
	if err != nil {
		return nil, fmt.Errorf("write header page: %w", err)
	}
	return &Context{
		header: header,
		rootID: headerPage(header.Data()).RootPageID(),
	}, nil
}

// finishWrite stores the new root, element count and allocation counter.
func (t *BPlusTree[K, V]) finishWrite(ctx *Context, delta int) {
	h := headerPage(ctx.header.DataMut())
	h.SetRootPageID(ctx.rootID)
	h.SetSize(h.Size() + delta)
	h.SetPageCnt(t.bpm.PageCnt())
}

// GetValue returns the value stored under key.
func (t *BPlusTree[K, V]) GetValue(key K) (V, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero V
	encoded := t.encodeKey(key)
	if v, ok := t.cache.get(encoded); ok {
		return v, true, nil
	}

	guard, err := t.findLeaf(key, t.childIndex)
	if err != nil || guard == nil {
		return zero, false, err
	}
	defer guard.Drop()

	leaf := t.asLeaf(guard.Data())
	for i := 0; i < leaf.Size(); i++ {
		c := t.cmp(leaf.KeyAt(i), key)
		if c == 0 {
			v := leaf.ValueAt(i)
			t.cache.set(encoded, v)
			return v, true, nil
		}
		if c > 0 {
			break
		}
	}
	return zero, false, nil
}

// GetAllValue returns, in key order, the values of every entry whose key is
// equal to key under the rough comparator. It relies on cmp refining roughCmp
// so that rough-equal entries sit next to each other.
func (t *BPlusTree[K, V]) GetAllValue(key K) ([]V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	it, err := t.seek(key, t.roughChildIndex, t.roughCmp)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []V
	for ; it.Valid(); it.Next() {
		if t.roughCmp(it.Key(), key) != 0 {
			break
		}
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// GetAll returns every value in key order.
func (t *BPlusTree[K, V]) GetAll() ([]V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	it, err := t.first()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []V
	for ; it.Valid(); it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

func (t *BPlusTree[K, V]) encodeKey(key K) []byte {
	if t.cache == nil {
		return nil
	}
	buf := make([]byte, t.keyCodec.Size())
	t.keyCodec.Encode(buf, key)
	return buf
}
