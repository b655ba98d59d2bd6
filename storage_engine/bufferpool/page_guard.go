package bufferpool

import "BTreeStore/storage_engine/page"

/*
Page guards are the only way to touch a page held by the pool.

A guard pins its page when the pool builds it and unpins it on Drop. Drop is safe to
call more than once, so `defer guard.Drop()` can sit next to an early explicit Drop.
Guards must not be copied; pass the pointer to hand ownership over.

ReadPageGuard exposes the bytes read-only by convention, WritePageGuard adds DataMut.
The engine is single threaded, so neither kind takes a latch.
*/

// noCopy lets go vet's copylocks check flag guards passed by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

type pageGuard struct {
	_ noCopy

	bpm    *BufferPoolManager
	frame  *frameHeader
	pageID page.PageID
	valid  bool
}

func newPageGuard(bpm *BufferPoolManager, frame *frameHeader) pageGuard {
	return pageGuard{
		bpm:    bpm,
		frame:  frame,
		pageID: frame.pageID,
		valid:  true,
	}
}

func (g *pageGuard) PageID() page.PageID {
	return g.pageID
}

// Data is the page content. Callers holding a ReadPageGuard must not modify it.
func (g *pageGuard) Data() []byte {
	g.mustBeValid()
	return g.frame.data
}

func (g *pageGuard) IsDirty() bool {
	g.mustBeValid()
	return g.frame.isDirty
}

func (g *pageGuard) IsValid() bool {
	return g.valid
}

// Drop releases the pin. Later calls do nothing.
func (g *pageGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false
	g.bpm.unpin(g.frame)
	g.frame = nil
}

func (g *pageGuard) mustBeValid() {
	if !g.valid {
		panic("bufferpool: use of dropped page guard for page " + g.pageID.String())
	}
}

type ReadPageGuard struct {
	pageGuard
}

type WritePageGuard struct {
	pageGuard
}

// DataMut is the writable page content.
func (g *WritePageGuard) DataMut() []byte {
	g.mustBeValid()
	return g.frame.data
}
