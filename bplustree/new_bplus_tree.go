package bplus

import (
	"BTreeStore/internal/logging"
	"BTreeStore/storage_engine/bufferpool"
	diskmanager "BTreeStore/storage_engine/disk_manager"
	"BTreeStore/storage_engine/page"
	"fmt"
)

// Open loads the index stored in the file name, creating an empty one if the file
// is new. roughCmp may be nil, in which case GetAllValue matches with cmp.
func Open[K, V any](name string, keyCodec Codec[K], valueCodec Codec[V], cmp, roughCmp Comparator[K], opts ...Option) (*BPlusTree[K, V], error) {
	o := options{
		poolSize:  page.DefaultBufferPoolSize,
		replacerK: page.DefaultReplacerK,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Component("bplus")
	}
	o.logger = o.logger.With("index", name)

	if keyCodec == nil || valueCodec == nil || cmp == nil {
		return nil, fmt.Errorf("%w: codecs and comparator are required", ErrInvalidOption)
	}
	if roughCmp == nil {
		roughCmp = cmp
	}
	if o.poolSize < MinPoolSize {
		return nil, fmt.Errorf("%w: pool size %d below %d", ErrInvalidOption, o.poolSize, MinPoolSize)
	}

	t := &BPlusTree[K, V]{
		indexName:  name,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		cmp:        cmp,
		roughCmp:   roughCmp,
		logger:     o.logger,
	}
	t.leafSlots = leafSlotCount(keyCodec.Size(), valueCodec.Size())
	t.internalSlots = internalSlotCount(keyCodec.Size())

	// one spare slot: a page overflows by one entry before it splits
	t.leafMaxSize, t.internalMaxSize = o.leafMaxSize, o.internalMaxSize
	if t.leafMaxSize == 0 {
		t.leafMaxSize = t.leafSlots - 1
	}
	if t.internalMaxSize == 0 {
		t.internalMaxSize = t.internalSlots - 1
	}
	if t.leafMaxSize < 2 || t.leafMaxSize > t.leafSlots-1 {
		return nil, fmt.Errorf("%w: leaf max size %d not in [2, %d]", ErrInvalidOption, t.leafMaxSize, t.leafSlots-1)
	}
	if t.internalMaxSize < 3 || t.internalMaxSize > t.internalSlots-1 {
		return nil, fmt.Errorf("%w: internal max size %d not in [3, %d]", ErrInvalidOption, t.internalMaxSize, t.internalSlots-1)
	}

	dm, err := diskmanager.NewDiskManager(name)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", name, err)
	}
	t.diskManager = dm
	t.bpm = bufferpool.NewBufferPoolManager(o.poolSize, dm, o.replacerK, bufferpool.WithLogger(o.logger.With("component", "bufferpool")))

	if o.cacheSize > 0 {
		if t.cache, err = newLookupCache[V](o.cacheSize); err != nil {
			dm.Close()
			return nil, err
		}
	}

	if err := t.loadHeader(); err != nil {
		t.cache.close()
		dm.Close()
		return nil, err
	}

	t.logger.Debug("opened", "root", t.GetRootPageId(), "size", t.GetSize(),
		"leaf_max", t.leafMaxSize, "internal_max", t.internalMaxSize)
	return t, nil
}

// loadHeader reads page 1. A zero root id marks a file that was never initialised.
func (t *BPlusTree[K, V]) loadHeader() error {
	t.headerPageID = 1

	guard, err := t.bpm.ReadPage(t.headerPageID)
	if err != nil {
		return fmt.Errorf("read header page: %w", err)
	}
	h := headerPage(guard.Data())
	rootID, pageCnt, size := h.RootPageID(), h.PageCnt(), h.Size()
	guard.Drop()

	if rootID == 0 && pageCnt == 0 && size == 0 {
		return t.initHeader()
	}
	if err := t.checkHeader(rootID, pageCnt, size); err != nil {
		return err
	}
	if err := t.bpm.InitPageCnt(pageCnt); err != nil {
		return fmt.Errorf("restore page count: %w", err)
	}
	return nil
}

// checkHeader rejects a header that cannot describe this file, before any of its
// fields is used to size the pool or the file.
func (t *BPlusTree[K, V]) checkHeader(rootID, pageCnt page.PageID, size int) error {
	capacity := t.diskManager.Capacity()
	if pageCnt < t.headerPageID || int(pageCnt) > capacity {
		return fmt.Errorf("%w: header page count %d outside [%d, %d]", ErrCorrupt, pageCnt, t.headerPageID, capacity)
	}
	if rootID != page.InvalidPageID && (rootID <= t.headerPageID || rootID > pageCnt) {
		return fmt.Errorf("%w: header root page %d outside (%d, %d]", ErrCorrupt, rootID, t.headerPageID, pageCnt)
	}
	if size < 0 || (rootID == page.InvalidPageID && size != 0) {
		return fmt.Errorf("%w: header size %d with root %d", ErrCorrupt, size, rootID)
	}
	return nil
}

func (t *BPlusTree[K, V]) initHeader() error {
	id, err := t.bpm.NewPage()
	if err != nil {
		return fmt.Errorf("allocate header page: %w", err)
	}
	if id != t.headerPageID {
		return fmt.Errorf("header page allocated at %d, want %d", id, t.headerPageID)
	}

	guard, err := t.bpm.WritePage(id)
	if err != nil {
		return fmt.Errorf("write header page: %w", err)
	}
	defer guard.Drop()

	h := headerPage(guard.DataMut())
	h.SetRootPageID(page.InvalidPageID)
	h.SetSize(0)
	h.SetPageCnt(t.bpm.PageCnt())
	return nil
}

func (t *BPlusTree[K, V]) readHeader() (root page.PageID, size int, err error) {
	guard, err := t.bpm.ReadPage(t.headerPageID)
	if err != nil {
		return page.InvalidPageID, 0, fmt.Errorf("read header page: %w", err)
	}
	defer guard.Drop()
	h := headerPage(guard.Data())
	return h.RootPageID(), h.Size(), nil
}

// header reads the header for the accessors that have no error return.
func (t *BPlusTree[K, V]) header() (page.PageID, int) {
	root, size, err := t.readHeader()
	if err != nil {
		t.logger.Error("header unavailable", "err", err)
	}
	return root, size
}

func (t *BPlusTree[K, V]) IsEmpty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	root, _ := t.header()
	return root == page.InvalidPageID
}

// GetSize is the number of key/value pairs stored.
func (t *BPlusTree[K, V]) GetSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, size := t.header()
	return size
}

func (t *BPlusTree[K, V]) GetRootPageId() page.PageID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	root, _ := t.header()
	return root
}

func (t *BPlusTree[K, V]) Name() string {
	return t.indexName
}

// Clean wipes the file and leaves an empty tree behind under the same name.
func (t *BPlusTree[K, V]) Clean() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return diskmanager.ErrClosed
	}
	if err := t.bpm.Clean(); err != nil {
		return fmt.Errorf("clean index %s: %w", t.indexName, err)
	}
	t.cache.wait()
	t.cache.clear()
	return t.initHeader()
}

// Close writes the page counter back, flushes every dirty page and releases the file.
func (t *BPlusTree[K, V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.cache.close()

	if err := t.storePageCnt(); err != nil {
		t.diskManager.Close()
		return err
	}
	if err := t.bpm.FlushAllPages(); err != nil {
		t.diskManager.Close()
		return fmt.Errorf("flush index %s: %w", t.indexName, err)
	}
	return t.diskManager.Close()
}

func (t *BPlusTree[K, V]) storePageCnt() error {
	guard, err := t.bpm.WritePage(t.headerPageID)
	if err != nil {
		return fmt.Errorf("write header page: %w", err)
	}
	defer guard.Drop()
	headerPage(guard.DataMut()).SetPageCnt(t.bpm.PageCnt())
	return nil
}
