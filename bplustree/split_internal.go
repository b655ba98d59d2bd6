package bplus

// splitInternal splits the overflowing internal page on top of ctx and promotes
// the first key of the new right page.
func (t *BPlusTree[K, V]) splitInternal(ctx *Context) error {
	f := ctx.pop()
	defer f.guard.Drop()
	node := t.asInternal(f.guard.DataMut())

	rightGuard, right, err := t.newInternal(node.MaxSize())
	if err != nil {
		return err
	}
	defer rightGuard.Drop()

	// left keeps [0:remain), right gets [remain:n) and its slot 0 key goes up
	n := node.Size()
	newSize := (n + 1) / 2
	remain := n - newSize
	promote := node.KeyAt(remain)
	node.MoveTo(right, remain)

	t.logger.Debug("split internal", "page", f.guard.PageID(), "new", rightGuard.PageID(), "left_size", node.Size(), "right_size", right.Size())
	leftID, rightID := f.guard.PageID(), rightGuard.PageID()
	rightGuard.Drop()
	f.guard.Drop()
	return t.insertIntoParent(ctx, leftID, promote, rightID)
}
