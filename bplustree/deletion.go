package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	"BTreeStore/storage_engine/page"
	"fmt"
)

// Remove deletes key. Removing an absent key does nothing.
func (t *BPlusTree[K, V]) Remove(key K) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, err := t.beginWrite()
	if err != nil {
		return err
	}
	defer ctx.release()

	if ctx.rootID == page.InvalidPageID {
		return nil
	}
	if err := t.findLeafWrite(ctx, key); err != nil {
		return err
	}

	leaf := t.asLeaf(ctx.top().guard.DataMut())
	pos := -1
	for i := 0; i < leaf.Size(); i++ {
		c := t.cmp(leaf.KeyAt(i), key)
		if c == 0 {
			pos = i
			break
		}
		if c > 0 {
			break
		}
	}
	if pos < 0 {
		return nil
	}
	if len(ctx.stack) > 1 && leaf.Size()-1 < leaf.MinSize() {
		if err := t.reserveFrames(2, "rebalance"); err != nil {
			return err
		}
	}
	leaf.RemoveAt(pos)
	t.cache.del(t.encodeKey(key))

	// root leaf has no minimum; it goes away once empty
	if len(ctx.stack) == 1 {
		if leaf.Size() == 0 {
			f := ctx.pop()
			t.freePage(f.guard)
			ctx.rootID = page.InvalidPageID
		}
		t.finishWrite(ctx, -1)
		return nil
	}

	if leaf.Size() < leaf.MinSize() {
		if err := t.fixUnderflow(ctx); err != nil {
			return err
		}
	}
	t.finishWrite(ctx, -1)
	return nil
}

// fixUnderflow repairs the non-root page on top of ctx: borrow one entry from a
// sibling that can spare it (left first), else merge with a sibling keeping the
// lower-indexed page, then check the parent.
func (t *BPlusTree[K, V]) fixUnderflow(ctx *Context) error {
	cur := ctx.pop()
	defer cur.guard.Drop()

	pf := ctx.top()
	parent := t.asInternal(pf.guard.DataMut())
	idx := pf.childIdx
	isLeaf := treePage(cur.guard.Data()).IsLeaf()

	var leftGuard, rightGuard *bufferpool.WritePageGuard
	var err error

	if idx > 0 {
		if leftGuard, err = t.bpm.WritePage(parent.ValueAt(idx - 1)); err != nil {
			return fmt.Errorf("pin left sibling: %w", err)
		}
		defer leftGuard.Drop()
		if lp := treePage(leftGuard.Data()); lp.Size() > lp.MinSize() {
			t.borrowFromLeft(isLeaf, parent, idx, leftGuard, cur.guard)
			return nil
		}
	}
	if idx < parent.Size()-1 {
		if rightGuard, err = t.bpm.WritePage(parent.ValueAt(idx + 1)); err != nil {
			return fmt.Errorf("pin right sibling: %w", err)
		}
		defer rightGuard.Drop()
		if rp := treePage(rightGuard.Data()); rp.Size() > rp.MinSize() {
			t.borrowFromRight(isLeaf, parent, idx, cur.guard, rightGuard)
			return nil
		}
	}

	if leftGuard != nil {
		t.merge(isLeaf, parent, idx, leftGuard, cur.guard)
	} else {
		t.merge(isLeaf, parent, idx+1, cur.guard, rightGuard)
	}

	// unpin this level before the parent is repaired
	cur.guard.Drop()
	if leftGuard != nil {
		leftGuard.Drop()
	}
	if rightGuard != nil {
		rightGuard.Drop()
	}
	return t.afterMerge(ctx)
}

// afterMerge handles the parent on top of ctx that just lost one child.
func (t *BPlusTree[K, V]) afterMerge(ctx *Context) error {
	pf := ctx.top()
	parent := t.asInternal(pf.guard.DataMut())

	if ctx.isRoot(pf.guard.PageID()) {
		if parent.Size() == 1 {
			newRoot := parent.ValueAt(0)
			f := ctx.pop()
			t.logger.Debug("collapse root", "old", f.guard.PageID(), "new", newRoot)
			t.freePage(f.guard)
			ctx.rootID = newRoot
		}
		return nil
	}
	if parent.Size() < parent.MinSize() {
		return t.fixUnderflow(ctx)
	}
	return nil
}

// borrowFromLeft moves the last entry of the left sibling to the front of cur.
func (t *BPlusTree[K, V]) borrowFromLeft(isLeaf bool, parent internalPage[K], idx int, leftGuard, curGuard *bufferpool.WritePageGuard) {
	if isLeaf {
		left, cur := t.asLeaf(leftGuard.DataMut()), t.asLeaf(curGuard.DataMut())
		last := left.Size() - 1
		cur.InsertAt(0, left.KeyAt(last), left.ValueAt(last))
		left.RemoveAt(last)
		parent.SetKeyAt(idx, cur.KeyAt(0))
		return
	}

	left, cur := t.asInternal(leftGuard.DataMut()), t.asInternal(curGuard.DataMut())
	last := left.Size() - 1
	cur.InsertAt(0, left.KeyAt(last), left.ValueAt(last))
	// the old first child now needs a real separator: the one coming down from the parent
	cur.SetKeyAt(1, parent.KeyAt(idx))
	parent.SetKeyAt(idx, left.KeyAt(last))
	left.RemoveAt(last)
}

// borrowFromRight moves the first entry of the right sibling to the end of cur.
func (t *BPlusTree[K, V]) borrowFromRight(isLeaf bool, parent internalPage[K], idx int, curGuard, rightGuard *bufferpool.WritePageGuard) {
	if isLeaf {
		cur, right := t.asLeaf(curGuard.DataMut()), t.asLeaf(rightGuard.DataMut())
		cur.InsertAt(cur.Size(), right.KeyAt(0), right.ValueAt(0))
		right.RemoveAt(0)
		parent.SetKeyAt(idx+1, right.KeyAt(0))
		return
	}

	cur, right := t.asInternal(curGuard.DataMut()), t.asInternal(rightGuard.DataMut())
	cur.InsertAt(cur.Size(), parent.KeyAt(idx+1), right.ValueAt(0))
	parent.SetKeyAt(idx+1, right.KeyAt(1))
	right.RemoveAt(0)
}

// merge folds the page at parent slot rightIdx into its left neighbour, removes
// the slot from the parent and frees the right page.
func (t *BPlusTree[K, V]) merge(isLeaf bool, parent internalPage[K], rightIdx int, leftGuard, rightGuard *bufferpool.WritePageGuard) {
	if isLeaf {
		left, right := t.asLeaf(leftGuard.DataMut()), t.asLeaf(rightGuard.DataMut())
		right.MoveTo(left, 0)
		left.SetNextPageID(right.NextPageID())
	} else {
		left, right := t.asInternal(leftGuard.DataMut()), t.asInternal(rightGuard.DataMut())
		right.SetKeyAt(0, parent.KeyAt(rightIdx))
		right.MoveTo(left, 0)
	}
	t.logger.Debug("merge", "into", leftGuard.PageID(), "freed", rightGuard.PageID(), "leaf", isLeaf)
	parent.RemoveAt(rightIdx)
	t.freePage(rightGuard)
}
