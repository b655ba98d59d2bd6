package bplus

import (
	"BTreeStore/storage_engine/bufferpool"
	diskmanager "BTreeStore/storage_engine/disk_manager"
	"BTreeStore/storage_engine/page"
	"cmp"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmpInt32(a, b int32) int { return cmp.Compare(a, b) }

func openIntTree(t *testing.T, path string, opts ...Option) *BPlusTree[int32, int32] {
	t.Helper()
	tree, err := Open[int32, int32](path, Int32Codec{}, Int32Codec{}, cmpInt32, nil, opts...)
	require.NoError(t, err)
	return tree
}

func newIntTree(t *testing.T, opts ...Option) *BPlusTree[int32, int32] {
	t.Helper()
	tree := openIntTree(t, filepath.Join(t.TempDir(), "test.idx"), opts...)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func mustInsert(t *testing.T, tree *BPlusTree[int32, int32], keys ...int32) {
	t.Helper()
	for _, k := range keys {
		ok, err := tree.Insert(k, k*10)
		require.NoError(t, err)
		require.True(t, ok, "insert %d", k)
	}
}

func mustRemove(t *testing.T, tree *BPlusTree[int32, int32], keys ...int32) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, tree.Remove(k))
	}
}

func tenTimes(keys ...int32) []int32 {
	out := make([]int32, len(keys))
	for i, k := range keys {
		out[i] = k * 10
	}
	return out
}

func TestEmptyTree(t *testing.T) {
	tree := newIntTree(t)

	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.GetSize())
	assert.EqualValues(t, -1, tree.GetRootPageId())

	_, found, err := tree.GetValue(1)
	require.NoError(t, err)
	assert.False(t, found)

	all, err := tree.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, tree.Remove(1))
	assert.Equal(t, 0, tree.GetSize())
	require.NoError(t, tree.CheckIntegrity())
}

func TestLeafSplit(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3))

	mustInsert(t, tree, 5, 3, 8, 1, 4, 7, 9, 2, 6)

	all, err := tree.GetAll()
	require.NoError(t, err)
	assert.Equal(t, tenTimes(1, 2, 3, 4, 5, 6, 7, 8, 9), all)
	assert.Equal(t, 9, tree.GetSize())

	stats, err := tree.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.Height, 1, "root must be an internal page")
	require.NoError(t, tree.CheckIntegrity())

	for k := int32(1); k <= 9; k++ {
		v, found, err := tree.GetValue(k)
		require.NoError(t, err)
		require.True(t, found, "key %d", k)
		assert.Equal(t, k*10, v)
	}
}

type orderKey struct {
	User [8]byte
	Time int32
}

func userKey(user string, time int32) orderKey {
	var k orderKey
	copy(k.User[:], user)
	k.Time = time
	return k
}

func cmpUser(a, b orderKey) int {
	return strings.Compare(string(a.User[:]), string(b.User[:]))
}

func cmpOrder(a, b orderKey) int {
	if c := cmpUser(a, b); c != 0 {
		return c
	}
	return cmp.Compare(a.Time, b.Time)
}

func TestGetAllValueRoughMatch(t *testing.T) {
	kc, err := NewStructCodec[orderKey]()
	require.NoError(t, err)
	assert.Equal(t, 12, kc.Size())

	tree, err := Open[orderKey, int64](filepath.Join(t.TempDir(), "orders.idx"), kc, Int64Codec{}, cmpOrder, cmpUser)
	require.NoError(t, err)
	defer tree.Close()

	for _, e := range []struct {
		key   orderKey
		value int64
	}{
		{userKey("A", 2), 2},
		{userKey("B", 1), 3},
		{userKey("A", 1), 1},
	} {
		ok, err := tree.Insert(e.key, e.value)
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, err := tree.GetAllValue(userKey("A", 0))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)

	got, err = tree.GetAllValue(userKey("C", 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetAllValueAcrossLeaves(t *testing.T) {
	kc, err := NewStructCodec[orderKey]()
	require.NoError(t, err)
	tree, err := Open[orderKey, int64](filepath.Join(t.TempDir(), "orders.idx"), kc, Int64Codec{}, cmpOrder, cmpUser,
		WithLeafMaxSize(3), WithInternalMaxSize(3))
	require.NoError(t, err)
	defer tree.Close()

	users := []string{"ann", "bob", "cat", "dan"}
	for time := int32(40); time > 0; time-- {
		for _, u := range users {
			ok, err := tree.Insert(userKey(u, time), int64(time))
			require.NoError(t, err)
			require.True(t, ok)
		}
	}
	require.NoError(t, tree.CheckIntegrity())

	for _, u := range users {
		got, err := tree.GetAllValue(userKey(u, 0))
		require.NoError(t, err)
		require.Len(t, got, 40, "user %s", u)
		assert.True(t, slices.IsSorted(got))
		assert.Equal(t, int64(1), got[0])
		assert.Equal(t, int64(40), got[39])
	}
}

func TestRootCollapse(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3), WithInternalMaxSize(3))

	mustInsert(t, tree, 1, 2, 3, 4, 5, 6)
	require.NoError(t, tree.CheckIntegrity())

	mustRemove(t, tree, 6, 5)
	require.NoError(t, tree.CheckIntegrity())

	// root is internal with exactly two leaves now
	root := tree.GetRootPageId()
	guard, err := tree.bpm.ReadPage(root)
	require.NoError(t, err)
	rootPage := tree.asInternal(guard.Data())
	require.False(t, rootPage.IsLeaf())
	require.Equal(t, 2, rootPage.Size())
	firstChild := rootPage.ValueAt(0)
	guard.Drop()

	mustRemove(t, tree, 1)

	assert.Equal(t, firstChild, tree.GetRootPageId())
	all, err := tree.GetAll()
	require.NoError(t, err)
	assert.Equal(t, tenTimes(2, 3, 4), all)
	require.NoError(t, tree.CheckIntegrity())

	pins, resident := tree.bpm.GetPinCount(root)
	assert.False(t, resident, "old root page is freed, pinned %d", pins)
}

func TestDuplicateInsertRejected(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(4))
	mustInsert(t, tree, 1, 2, 3, 4, 5)

	ok, err := tree.Insert(3, 999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 5, tree.GetSize())

	v, found, err := tree.GetValue(3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(30), v)
}

func TestRemoveIsIdempotent(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3), WithInternalMaxSize(3))
	mustInsert(t, tree, 10, 20, 30, 40, 50)

	mustRemove(t, tree, 30)
	assert.Equal(t, 4, tree.GetSize())
	mustRemove(t, tree, 30, 35)
	assert.Equal(t, 4, tree.GetSize())

	_, found, err := tree.GetValue(30)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, tree.CheckIntegrity())
}

func TestRemoveAllThenReuse(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(4), WithInternalMaxSize(4))
	keys := make([]int32, 300)
	for i := range keys {
		keys[i] = int32(i)
	}
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	mustInsert(t, tree, keys...)

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for i, k := range keys {
		mustRemove(t, tree, k)
		if i%25 == 0 {
			require.NoError(t, tree.CheckIntegrity(), "after removing %d keys", i+1)
		}
	}

	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.GetSize())
	require.NoError(t, tree.CheckIntegrity())

	mustInsert(t, tree, 42)
	all, err := tree.GetAll()
	require.NoError(t, err)
	assert.Equal(t, []int32{420}, all)
}

func TestRandomInterleaving(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(5), WithInternalMaxSize(4))
	rng := rand.New(rand.NewSource(42))
	model := map[int32]bool{}

	for op := 0; op < 4000; op++ {
		k := int32(rng.Intn(600))
		if rng.Intn(3) == 0 {
			require.NoError(t, tree.Remove(k))
			delete(model, k)
		} else {
			ok, err := tree.Insert(k, k*10)
			require.NoError(t, err)
			assert.Equal(t, !model[k], ok, "insert %d", k)
			model[k] = true
		}
		if op%250 == 0 {
			require.NoError(t, tree.CheckIntegrity(), "op %d", op)
		}
	}
	require.NoError(t, tree.CheckIntegrity())

	want := make([]int32, 0, len(model))
	for k := range model {
		want = append(want, k)
	}
	slices.Sort(want)

	all, err := tree.GetAll()
	require.NoError(t, err)
	assert.Equal(t, tenTimes(want...), all)
	assert.Equal(t, len(model), tree.GetSize())

	for k := int32(0); k < 600; k++ {
		_, found, err := tree.GetValue(k)
		require.NoError(t, err)
		assert.Equal(t, model[k], found, "key %d", k)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.idx")
	opts := []Option{WithLeafMaxSize(8), WithInternalMaxSize(6), WithPoolSize(16)}

	tree := openIntTree(t, path, opts...)
	for k := int32(0); k < 2000; k++ {
		mustInsert(t, tree, k*3)
	}
	mustRemove(t, tree, 0, 3, 6)
	before, err := tree.GetAll()
	require.NoError(t, err)
	size := tree.GetSize()
	pageCnt := tree.bpm.PageCnt()
	require.NoError(t, tree.Close())
	require.NoError(t, tree.Close())

	tree = openIntTree(t, path, opts...)
	defer tree.Close()

	after, err := tree.GetAll()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, size, tree.GetSize())
	assert.Equal(t, pageCnt, tree.bpm.PageCnt())

	// new pages must not overwrite old ones
	for k := int32(0); k < 500; k++ {
		mustInsert(t, tree, k*3+1)
	}
	require.NoError(t, tree.CheckIntegrity())
	assert.Equal(t, size+500, tree.GetSize())
}

func TestOpenRefusesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	content := []byte(strings.Repeat("not an index\n", 20000))
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Open[int32, int32](path, Int32Codec{}, Int32Codec{}, cmpInt32, nil)
	require.ErrorIs(t, err, diskmanager.ErrNotIndex)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, after)
}

func TestOpenRejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.idx")
	tree := openIntTree(t, path, WithLeafMaxSize(4))
	for k := int32(0); k < 50; k++ {
		mustInsert(t, tree, k)
	}
	require.NoError(t, tree.Close())

	headerOff := int64(1) * page.PageSize
	for name, field := range map[string]struct {
		off   int64
		value uint32
	}{
		"page count beyond capacity": {hdrPageCntOff, 1 << 30},
		"root beyond page count":     {hdrRootOff, 1 << 20},
		"root is header":             {hdrRootOff, 1},
		"negative size":              {hdrSizeOff, 0xFFFFFFFF},
	} {
		original, err := os.ReadFile(path)
		require.NoError(t, err)

		f, err := os.OpenFile(path, os.O_RDWR, 0)
		require.NoError(t, err)
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], field.value)
		_, err = f.WriteAt(buf[:], headerOff+field.off)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		corrupted, err := os.ReadFile(path)
		require.NoError(t, err)

		_, err = Open[int32, int32](path, Int32Codec{}, Int32Codec{}, cmpInt32, nil, WithLeafMaxSize(4))
		require.ErrorIs(t, err, ErrCorrupt, name)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, corrupted, after, name)

		require.NoError(t, os.WriteFile(path, original, 0o644))
	}

	tree = openIntTree(t, path, WithLeafMaxSize(4))
	defer tree.Close()
	assert.Equal(t, 50, tree.GetSize())
	require.NoError(t, tree.CheckIntegrity())
}

func TestClean(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(4))
	mustInsert(t, tree, 1, 2, 3, 4, 5, 6, 7, 8)

	require.NoError(t, tree.Clean())
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.GetSize())
	assert.EqualValues(t, 1, tree.bpm.PageCnt())

	mustInsert(t, tree, 3)
	v, found, err := tree.GetValue(3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(30), v)
}

func TestLookupCache(t *testing.T) {
	tree := newIntTree(t, WithLookupCache(128))
	mustInsert(t, tree, 1, 2, 3)

	_, found, err := tree.GetValue(2)
	require.NoError(t, err)
	require.True(t, found)
	tree.cache.wait()

	v, found, err := tree.GetValue(2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int32(20), v)

	stats, err := tree.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.CacheHits)

	mustRemove(t, tree, 2)
	_, found, err = tree.GetValue(2)
	require.NoError(t, err)
	assert.False(t, found, "removed key must not be served from the cache")

	ok, err := tree.Insert(2, 77)
	require.NoError(t, err)
	require.True(t, ok)
	v, found, err = tree.GetValue(2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(77), v)
}

func TestSmallPoolDeepTree(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3), WithInternalMaxSize(3), WithPoolSize(24), WithReplacerK(2))

	for k := int32(1000); k > 0; k-- {
		mustInsert(t, tree, k)
	}
	require.NoError(t, tree.CheckIntegrity())
	for k := int32(1); k <= 1000; k += 2 {
		mustRemove(t, tree, k)
	}
	require.NoError(t, tree.CheckIntegrity())
	assert.Equal(t, 500, tree.GetSize())

	stats, err := tree.Stats()
	require.NoError(t, err)
	assert.Positive(t, stats.Pool.Evictions)
	assert.Zero(t, stats.Pool.PinnedPages, "every guard must be released")
}

func TestPoolTooSmallForHeightLeavesTreeIntact(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3), WithInternalMaxSize(3), WithPoolSize(MinPoolSize))

	var err error
	inserted := 0
	for k := int32(0); k < 100000; k++ {
		var ok bool
		if ok, err = tree.Insert(k, k*10); err != nil {
			break
		}
		require.True(t, ok)
		inserted++
	}
	require.ErrorIs(t, err, bufferpool.ErrPoolExhausted)

	require.NoError(t, tree.CheckIntegrity())
	assert.Equal(t, inserted, tree.GetSize())
	all, err := tree.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, inserted)

	stats, err := tree.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Pool.PinnedPages)
	assert.GreaterOrEqual(t, stats.Height+3, MinPoolSize)

	// a no-op remove still descends the full height
	require.NoError(t, tree.Remove(int32(inserted)+1))
	assert.Equal(t, inserted, tree.GetSize())
}

func TestIterator(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3))
	mustInsert(t, tree, 10, 20, 30, 40, 50, 60, 70)

	it, err := tree.SeekGE(35)
	require.NoError(t, err)
	var keys []int32
	for ; it.Valid(); it.Next() {
		keys = append(keys, it.Key())
	}
	it.Close()
	require.NoError(t, it.Err())
	assert.Equal(t, []int32{40, 50, 60, 70}, keys)

	it, err = tree.SeekGE(71)
	require.NoError(t, err)
	assert.False(t, it.Valid())
	it.Close()

	it, err = tree.Begin()
	require.NoError(t, err)
	require.True(t, it.Valid())
	assert.Equal(t, int32(10), it.Key())
	assert.Equal(t, int32(100), it.Value())
	it.Close()

	assert.Zero(t, tree.bpm.Stats().PinnedPages)
}

func TestInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	for name, opt := range map[string]Option{
		"leaf too small":     WithLeafMaxSize(1),
		"leaf too large":     WithLeafMaxSize(100000),
		"internal too small": WithInternalMaxSize(2),
		"internal too large": WithInternalMaxSize(100000),
		"pool too small":     WithPoolSize(MinPoolSize - 1),
	} {
		_, err := Open[int32, int32](filepath.Join(dir, "bad.idx"), Int32Codec{}, Int32Codec{}, cmpInt32, nil, opt)
		assert.ErrorIs(t, err, ErrInvalidOption, name)
	}

	_, err := Open[int32, int32](filepath.Join(dir, "bad.idx"), Int32Codec{}, Int32Codec{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestDump(t *testing.T) {
	tree := newIntTree(t, WithLeafMaxSize(3))
	mustInsert(t, tree, 1, 2, 3, 4)

	var sb strings.Builder
	require.NoError(t, tree.Dump(&sb))
	out := sb.String()
	assert.Contains(t, out, "INTERNAL size=2")
	assert.Contains(t, out, "LEAF size=2")
	assert.Contains(t, out, "4 -> 40")
}
