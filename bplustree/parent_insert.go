package bplus

import "BTreeStore/storage_engine/page"

// insertIntoParent inserts sepKey and rightID next to leftID in the parent on top of ctx.
// If ctx is empty leftID was the root and a new root is grown above it.
// If the parent overflows, it splits and propagates upward.
func (t *BPlusTree[K, V]) insertIntoParent(ctx *Context, leftID page.PageID, sepKey K, rightID page.PageID) error {
	pf := ctx.top()
	if pf == nil {
		guard, root, err := t.newInternal(t.internalMaxSize)
		if err != nil {
			return err
		}
		defer guard.Drop()
		// slot 0 key is never compared
		root.InsertAt(0, sepKey, leftID)
		root.InsertAt(1, sepKey, rightID)
		ctx.rootID = guard.PageID()
		t.logger.Debug("new root", "page", ctx.rootID, "left", leftID, "right", rightID)
		return nil
	}

	parent := t.asInternal(pf.guard.DataMut())
	parent.InsertAt(pf.childIdx+1, sepKey, rightID)
	if parent.Size() <= parent.MaxSize() {
		return nil
	}
	return t.splitInternal(ctx)
}
