package bplus

import "BTreeStore/storage_engine/page"

// Insert adds key -> value. It reports false, changing nothing, when key is already present.
func (t *BPlusTree[K, V]) Insert(key K, value V) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, err := t.beginWrite()
	if err != nil {
		return false, err
	}
	defer ctx.release()

	// If tree is empty
	if ctx.rootID == page.InvalidPageID {
		guard, leaf, err := t.newLeaf(t.leafMaxSize)
		if err != nil {
			return false, err
		}
		leaf.InsertAt(0, key, value)
		ctx.rootID = guard.PageID()
		guard.Drop()
		t.finishWrite(ctx, 1)
		return true, nil
	}

	// find leaf
	if err := t.findLeafWrite(ctx, key); err != nil {
		return false, err
	}
	leaf := t.asLeaf(ctx.top().guard.DataMut())

	pos := 0
	for ; pos < leaf.Size(); pos++ {
		c := t.cmp(leaf.KeyAt(pos), key)
		if c == 0 {
			return false, nil
		}
		if c > 0 {
			break
		}
	}
	if leaf.Size() >= leaf.MaxSize() {
		if err := t.reserveFrames(1, "split"); err != nil {
			return false, err
		}
	}
	leaf.InsertAt(pos, key, value)

	if leaf.Size() > leaf.MaxSize() {
		if err := t.splitLeaf(ctx); err != nil {
			return false, err
		}
	}
	t.finishWrite(ctx, 1)
	return true, nil
}

// splitLeaf moves the upper half of the overflowing leaf on top of ctx into a new
// right sibling and hands the separator to the parent.
func (t *BPlusTree[K, V]) splitLeaf(ctx *Context) error {
	f := ctx.pop()
	defer f.guard.Drop()
	leaf := t.asLeaf(f.guard.DataMut())

	rightGuard, right, err := t.newLeaf(leaf.MaxSize())
	if err != nil {
		return err
	}
	defer rightGuard.Drop()

	n := leaf.Size()
	newSize := (n + 1) / 2
	leaf.MoveTo(right, n-newSize)

	right.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(rightGuard.PageID())

	t.logger.Debug("split leaf", "page", f.guard.PageID(), "new", rightGuard.PageID(), "left_size", leaf.Size(), "right_size", right.Size())
	sep := right.KeyAt(0)
	leftID, rightID := f.guard.PageID(), rightGuard.PageID()
	rightGuard.Drop()
	f.guard.Drop()
	return t.insertIntoParent(ctx, leftID, sep, rightID)
}
