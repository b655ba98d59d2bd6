package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	"BTreeStore/storage_engine/page"
)

// frame is one level of a descent: the pinned page and the child slot taken from it.
// childIdx is -1 on the leaf.
type frame struct {
	guard    *bufferpool.WritePageGuard
	childIdx int
}

// Context carries the pinned ancestor chain of one Insert or Remove, root first.
type Context struct {
	header *bufferpool.WritePageGuard
	rootID page.PageID
	stack  []frame
}

func (c *Context) push(guard *bufferpool.WritePageGuard, childIdx int) {
	c.stack = append(c.stack, frame{guard: guard, childIdx: childIdx})
}

// pop removes the deepest frame. The caller owns its guard afterwards.
func (c *Context) pop() frame {
	f := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return f
}

func (c *Context) top() *frame {
	if len(c.stack) == 0 {
		return nil
	}
	return &c.stack[len(c.stack)-1]
}

func (c *Context) isRoot(id page.PageID) bool {
	return id == c.rootID
}

// release drops every guard still held, header last.
func (c *Context) release() {
	for i := len(c.stack) - 1; i >= 0; i-- {
		c.stack[i].guard.Drop()
	}
	c.stack = c.stack[:0]
	if c.header != nil {
		c.header.Drop()
	}
}
