// Package bplus: index inspection for debugging.
// Dump prints a level-by-level view of the pages, CheckIntegrity verifies the
// structural invariants and Stats summarises the tree and its buffer pool.

package bplus

import (
	"BTreeStore/storage_engine/page"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrCorrupt = errors.New("bplus: index corrupt")

// Dump writes a human-readable dump of the index to w:
// header fields, then every page level by level (BFS).
func (t *BPlusTree[K, V]) Dump(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) }
	pln := func(s string) { fmt.Fprintln(w, s) }

	root, size, err := t.readHeader()
	if err != nil {
		return err
	}
	p("Index file: %s\n", t.indexName)
	p("  Page %d (header): root page id = %d, size = %d, page count = %d\n",
		t.headerPageID, root, size, t.bpm.PageCnt())
	p("  Max sizes: leaf = %d, internal = %d\n", t.leafMaxSize, t.internalMaxSize)
	if root == page.InvalidPageID {
		pln("  (empty tree)")
		return nil
	}

	pln("\n  Pages (BFS):")
	pln("  ---")

	queue := []page.PageID{root}
	level := 0
	for len(queue) > 0 {
		n := len(queue)
		p("  Level %d:\n", level)
		for _, pageID := range queue[:n] {
			guard, err := t.bpm.ReadPage(pageID)
			if err != nil {
				p("    [page %d] read error: %v\n", pageID, err)
				continue
			}
			tp := treePage(guard.Data())
			switch tp.Type() {
			case internalPageType:
				ip := t.asInternal(guard.Data())
				keys := make([]K, 0, ip.Size())
				children := make([]page.PageID, 0, ip.Size())
				for i := 0; i < ip.Size(); i++ {
					if i > 0 {
						keys = append(keys, ip.KeyAt(i))
					}
					children = append(children, ip.ValueAt(i))
				}
				p("    [page %d] INTERNAL size=%d keys=%v children=%v\n", pageID, ip.Size(), keys, children)
				queue = append(queue, children...)
			case leafPageType:
				leaf := t.asLeaf(guard.Data())
				p("    [page %d] LEAF size=%d next=%d\n", pageID, leaf.Size(), leaf.NextPageID())
				for i := 0; i < leaf.Size(); i++ {
					p("      %v -> %v\n", leaf.KeyAt(i), leaf.ValueAt(i))
				}
			default:
				p("    [page %d] invalid page type %d\n", pageID, tp.Type())
			}
			guard.Drop()
		}
		pln("  ---")
		queue = queue[n:]
		level++
	}
	return nil
}

// DumpStdout prints Dump to stdout.
func (t *BPlusTree[K, V]) DumpStdout() error {
	return t.Dump(os.Stdout)
}

// CheckIntegrity walks the whole tree and reports the first broken invariant:
// page sizes, key order and separator bounds, equal leaf depth, the leaf chain
// and the stored element count.
func (t *BPlusTree[K, V]) CheckIntegrity() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, size, err := t.readHeader()
	if err != nil {
		return err
	}
	if root == page.InvalidPageID {
		if size != 0 {
			return fmt.Errorf("%w: empty tree with size %d", ErrCorrupt, size)
		}
		return nil
	}

	c := &integrityCheck[K, V]{tree: t, leafDepth: -1, pageCnt: t.bpm.PageCnt()}
	if err := c.walk(root, 0, nil, nil); err != nil {
		return err
	}
	if c.entries != size {
		return fmt.Errorf("%w: header size %d, leaves hold %d", ErrCorrupt, size, c.entries)
	}
	return c.checkChain()
}

type integrityCheck[K, V any] struct {
	tree      *BPlusTree[K, V]
	root      page.PageID
	pageCnt   page.PageID
	leafDepth int
	leaves    []page.PageID
	entries   int
}

// walk checks the subtree at pageID whose keys must lie in [lo, hi). nil bounds are open.
func (c *integrityCheck[K, V]) walk(pageID page.PageID, depth int, lo, hi *K) error {
	t := c.tree
	if depth == 0 {
		c.root = pageID
	}
	if pageID <= t.headerPageID || pageID > c.pageCnt {
		return fmt.Errorf("%w: page id %d outside (%d, %d]", ErrCorrupt, pageID, t.headerPageID, c.pageCnt)
	}

	guard, err := t.bpm.ReadPage(pageID)
	if err != nil {
		return err
	}
	defer guard.Drop()

	tp := treePage(guard.Data())
	if err := c.checkSize(pageID, tp); err != nil {
		return err
	}
	inRange := func(k K) bool {
		return (lo == nil || t.cmp(k, *lo) >= 0) && (hi == nil || t.cmp(k, *hi) < 0)
	}

	switch tp.Type() {
	case leafPageType:
		leaf := t.asLeaf(guard.Data())
		for i := 0; i < leaf.Size(); i++ {
			k := leaf.KeyAt(i)
			if !inRange(k) {
				return fmt.Errorf("%w: leaf %d key %v outside its separators", ErrCorrupt, pageID, k)
			}
			if i > 0 && t.cmp(leaf.KeyAt(i-1), k) >= 0 {
				return fmt.Errorf("%w: leaf %d keys not strictly increasing at %d", ErrCorrupt, pageID, i)
			}
		}
		if c.leafDepth == -1 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			return fmt.Errorf("%w: leaf %d at depth %d, expected %d", ErrCorrupt, pageID, depth, c.leafDepth)
		}
		c.leaves = append(c.leaves, pageID)
		c.entries += leaf.Size()
		return nil

	case internalPageType:
		ip := t.asInternal(guard.Data())
		for i := 1; i < ip.Size(); i++ {
			k := ip.KeyAt(i)
			if !inRange(k) {
				return fmt.Errorf("%w: internal %d separator %v outside its bounds", ErrCorrupt, pageID, k)
			}
			if i > 1 && t.cmp(ip.KeyAt(i-1), k) >= 0 {
				return fmt.Errorf("%w: internal %d separators not increasing at %d", ErrCorrupt, pageID, i)
			}
		}
		for i := 0; i < ip.Size(); i++ {
			childLo, childHi := lo, hi
			if i > 0 {
				k := ip.KeyAt(i)
				childLo = &k
			}
			if i < ip.Size()-1 {
				k := ip.KeyAt(i + 1)
				childHi = &k
			}
			if err := c.walk(ip.ValueAt(i), depth+1, childLo, childHi); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: page %d has invalid page type %d", ErrCorrupt, pageID, tp.Type())
	}
}

func (c *integrityCheck[K, V]) checkSize(pageID page.PageID, tp treePage) error {
	size, maxSize := tp.Size(), tp.MaxSize()
	minSize := tp.MinSize()
	if pageID == c.root {
		minSize = 1
		if tp.Type() == internalPageType {
			minSize = 2
		}
	}
	if size < minSize || size > maxSize {
		return fmt.Errorf("%w: page %d size %d not in [%d, %d]", ErrCorrupt, pageID, size, minSize, maxSize)
	}
	return nil
}

// checkChain follows next pointers from the leftmost leaf and expects exactly
// the leaves found by the walk, in the same order.
func (c *integrityCheck[K, V]) checkChain() error {
	t := c.tree
	pageID := c.leaves[0]
	for i := 0; ; i++ {
		if i >= len(c.leaves) || pageID != c.leaves[i] {
			return fmt.Errorf("%w: leaf chain diverges at position %d (page %d)", ErrCorrupt, i, pageID)
		}
		guard, err := t.bpm.ReadPage(pageID)
		if err != nil {
			return err
		}
		next := t.asLeaf(guard.Data()).NextPageID()
		guard.Drop()
		if next == page.InvalidPageID {
			if i != len(c.leaves)-1 {
				return fmt.Errorf("%w: leaf chain ends after %d of %d leaves", ErrCorrupt, i+1, len(c.leaves))
			}
			return nil
		}
		pageID = next
	}
}

// Stats summarises the tree and its buffer pool.
func (t *BPlusTree[K, V]) Stats() (Stats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, size, err := t.readHeader()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		Size:       size,
		RootPageID: root,
		PageCount:  t.bpm.PageCnt(),
	}
	for pageID := root; pageID != page.InvalidPageID; {
		guard, err := t.bpm.ReadPage(pageID)
		if err != nil {
			return Stats{}, err
		}
		s.Height++
		tp := treePage(guard.Data())
		next := page.InvalidPageID
		if tp.Type() == internalPageType {
			next = t.asInternal(guard.Data()).ValueAt(0)
		}
		guard.Drop()
		pageID = next
	}
	s.Pool = t.bpm.Stats()
	s.CacheHits, s.CacheMisses = t.cache.metrics()
	return s, nil
}
