package bplus

import (
	"BTreeStore/storage_engine/page"
	"encoding/binary"
)

// Page views. Every view wraps the bytes of a pinned frame and reads/writes in place.
//
// Header page:
//   - page_cnt (4) | size (4) | root_page_id (4)
//
// Tree page header (12 bytes):
//   - page_type (4) | size (4) | max_size (4)
//
// Leaf page: header | next_page_id (4) | keys[slots] | values[slots]
// Internal page: header | keys[slots] | children[slots] (int32 page ids)

type pageType uint32

const (
	invalidPage pageType = iota
	leafPageType
	internalPageType
)

const (
	hdrPageCntOff = 0
	hdrSizeOff    = 4
	hdrRootOff    = 8

	typeOff    = 0
	sizeOff    = 4
	maxSizeOff = 8

	treeHeaderSize = 12
	leafNextOff    = 12
	leafHeaderSize = 16
	childIDSize    = 4
)

func leafSlotCount(keySize, valueSize int) int {
	return (page.PageSize - leafHeaderSize) / (keySize + valueSize)
}

func internalSlotCount(keySize int) int {
	return (page.PageSize - treeHeaderSize) / (keySize + childIDSize)
}

func getInt32(b []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(b[off:]))
}

func putInt32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:], uint32(v))
}

// ###################################### header ######################################

type headerPage []byte

func (h headerPage) PageCnt() page.PageID         { return page.PageID(getInt32(h, hdrPageCntOff)) }
func (h headerPage) SetPageCnt(n page.PageID)     { putInt32(h, hdrPageCntOff, int32(n)) }
func (h headerPage) Size() int                    { return int(getInt32(h, hdrSizeOff)) }
func (h headerPage) SetSize(n int)                { putInt32(h, hdrSizeOff, int32(n)) }
func (h headerPage) RootPageID() page.PageID      { return page.PageID(getInt32(h, hdrRootOff)) }
func (h headerPage) SetRootPageID(id page.PageID) { putInt32(h, hdrRootOff, int32(id)) }

// ###################################### common ######################################

type treePage []byte

func (p treePage) Type() pageType     { return pageType(binary.LittleEndian.Uint32(p[typeOff:])) }
func (p treePage) IsLeaf() bool       { return p.Type() == leafPageType }
func (p treePage) Size() int          { return int(getInt32(p, sizeOff)) }
func (p treePage) SetSize(n int)      { putInt32(p, sizeOff, int32(n)) }
func (p treePage) MaxSize() int       { return int(getInt32(p, maxSizeOff)) }
func (p treePage) MinSize() int       { return (p.MaxSize() + 1) / 2 }
func (p treePage) setType(t pageType) { binary.LittleEndian.PutUint32(p[typeOff:], uint32(t)) }

// ###################################### leaf ######################################

type leafPage[K, V any] struct {
	treePage
	kc    Codec[K]
	vc    Codec[V]
	slots int
}

func (t *BPlusTree[K, V]) asLeaf(data []byte) leafPage[K, V] {
	return leafPage[K, V]{treePage: data, kc: t.keyCodec, vc: t.valueCodec, slots: t.leafSlots}
}

func (p leafPage[K, V]) Init(maxSize int) {
	p.setType(leafPageType)
	p.SetSize(0)
	putInt32(p.treePage, maxSizeOff, int32(maxSize))
	p.SetNextPageID(page.InvalidPageID)
}

func (p leafPage[K, V]) NextPageID() page.PageID {
	return page.PageID(getInt32(p.treePage, leafNextOff))
}

func (p leafPage[K, V]) SetNextPageID(id page.PageID) { putInt32(p.treePage, leafNextOff, int32(id)) }

func (p leafPage[K, V]) keyOff(i int) int { return leafHeaderSize + i*p.kc.Size() }
func (p leafPage[K, V]) valOff(i int) int {
	return leafHeaderSize + p.slots*p.kc.Size() + i*p.vc.Size()
}

func (p leafPage[K, V]) KeyAt(i int) K {
	off := p.keyOff(i)
	return p.kc.Decode(p.treePage[off : off+p.kc.Size()])
}

func (p leafPage[K, V]) SetKeyAt(i int, k K) {
	off := p.keyOff(i)
	p.kc.Encode(p.treePage[off:off+p.kc.Size()], k)
}

func (p leafPage[K, V]) ValueAt(i int) V {
	off := p.valOff(i)
	return p.vc.Decode(p.treePage[off : off+p.vc.Size()])
}

func (p leafPage[K, V]) SetValueAt(i int, v V) {
	off := p.valOff(i)
	p.vc.Encode(p.treePage[off:off+p.vc.Size()], v)
}

// InsertAt shifts entries [i, size) one slot right and stores (k, v) at i.
func (p leafPage[K, V]) InsertAt(i int, k K, v V) {
	n := p.Size()
	copy(p.treePage[p.keyOff(i+1):p.keyOff(n+1)], p.treePage[p.keyOff(i):p.keyOff(n)])
	copy(p.treePage[p.valOff(i+1):p.valOff(n+1)], p.treePage[p.valOff(i):p.valOff(n)])
	p.SetKeyAt(i, k)
	p.SetValueAt(i, v)
	p.SetSize(n + 1)
}

func (p leafPage[K, V]) RemoveAt(i int) {
	n := p.Size()
	copy(p.treePage[p.keyOff(i):p.keyOff(n-1)], p.treePage[p.keyOff(i+1):p.keyOff(n)])
	copy(p.treePage[p.valOff(i):p.valOff(n-1)], p.treePage[p.valOff(i+1):p.valOff(n)])
	p.SetSize(n - 1)
}

// MoveTo appends entries [from, size) of p to dst and truncates p at from.
func (p leafPage[K, V]) MoveTo(dst leafPage[K, V], from int) {
	n, m := p.Size(), dst.Size()
	cnt := n - from
	copy(dst.treePage[dst.keyOff(m):dst.keyOff(m+cnt)], p.treePage[p.keyOff(from):p.keyOff(n)])
	copy(dst.treePage[dst.valOff(m):dst.valOff(m+cnt)], p.treePage[p.valOff(from):p.valOff(n)])
	dst.SetSize(m + cnt)
	p.SetSize(from)
}

// ###################################### internal ######################################

type internalPage[K any] struct {
	treePage
	kc    Codec[K]
	slots int
}

func (t *BPlusTree[K, V]) asInternal(data []byte) internalPage[K] {
	return internalPage[K]{treePage: data, kc: t.keyCodec, slots: t.internalSlots}
}

func (p internalPage[K]) Init(maxSize int) {
	p.setType(internalPageType)
	p.SetSize(0)
	putInt32(p.treePage, maxSizeOff, int32(maxSize))
}

func (p internalPage[K]) keyOff(i int) int { return treeHeaderSize + i*p.kc.Size() }
func (p internalPage[K]) childOff(i int) int {
	return treeHeaderSize + p.slots*p.kc.Size() + i*childIDSize
}

func (p internalPage[K]) KeyAt(i int) K {
	off := p.keyOff(i)
	return p.kc.Decode(p.treePage[off : off+p.kc.Size()])
}

func (p internalPage[K]) SetKeyAt(i int, k K) {
	off := p.keyOff(i)
	p.kc.Encode(p.treePage[off:off+p.kc.Size()], k)
}

func (p internalPage[K]) ValueAt(i int) page.PageID {
	return page.PageID(getInt32(p.treePage, p.childOff(i)))
}

func (p internalPage[K]) SetValueAt(i int, id page.PageID) {
	putInt32(p.treePage, p.childOff(i), int32(id))
}

// InsertAt shifts slots [i, size) one right and stores (k, child) at i.
func (p internalPage[K]) InsertAt(i int, k K, child page.PageID) {
	n := p.Size()
	copy(p.treePage[p.keyOff(i+1):p.keyOff(n+1)], p.treePage[p.keyOff(i):p.keyOff(n)])
	copy(p.treePage[p.childOff(i+1):p.childOff(n+1)], p.treePage[p.childOff(i):p.childOff(n)])
	p.SetKeyAt(i, k)
	p.SetValueAt(i, child)
	p.SetSize(n + 1)
}

func (p internalPage[K]) RemoveAt(i int) {
	n := p.Size()
	copy(p.treePage[p.keyOff(i):p.keyOff(n-1)], p.treePage[p.keyOff(i+1):p.keyOff(n)])
	copy(p.treePage[p.childOff(i):p.childOff(n-1)], p.treePage[p.childOff(i+1):p.childOff(n)])
	p.SetSize(n - 1)
}

// MoveTo appends slots [from, size) of p to dst and truncates p at from.
// The key moved into dst's first free slot keeps whatever p held there.
func (p internalPage[K]) MoveTo(dst internalPage[K], from int) {
	n, m := p.Size(), dst.Size()
	cnt := n - from
	copy(dst.treePage[dst.keyOff(m):dst.keyOff(m+cnt)], p.treePage[p.keyOff(from):p.keyOff(n)])
	copy(dst.treePage[dst.childOff(m):dst.childOff(m+cnt)], p.treePage[p.childOff(from):p.childOff(n)])
	dst.SetSize(m + cnt)
	p.SetSize(from)
}
