package diskmanager

import (
	"BTreeStore/storage_engine/page"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T) (*DiskManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.idx")
	dm, err := NewDiskManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return dm, path
}

func filled(b byte) []byte {
	data := make([]byte, page.PageSize)
	for i := range data {
		data[i] = b
	}
	return data
}

func TestNewFileHasMinimumCapacity(t *testing.T) {
	dm, path := newTestDisk(t)

	assert.Equal(t, MinCapacity, dm.Capacity())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(MinCapacity+1)*page.PageSize, info.Size())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dm, _ := newTestDisk(t)

	require.NoError(t, dm.WritePage(3, filled(0xAB)))
	require.NoError(t, dm.WritePage(4, filled(0x11)))

	out := make([]byte, page.PageSize)
	require.NoError(t, dm.ReadPage(3, out))
	assert.Equal(t, filled(0xAB), out)
	require.NoError(t, dm.ReadPage(4, out))
	assert.Equal(t, filled(0x11), out)
	assert.Equal(t, 2, dm.GetNumWrites())
}

func TestUnwrittenPageReadsAsZeros(t *testing.T) {
	dm, _ := newTestDisk(t)

	out := filled(0xFF)
	require.NoError(t, dm.ReadPage(7, out))
	assert.Equal(t, make([]byte, page.PageSize), out)
}

func TestIncreaseDiskSpaceDoubles(t *testing.T) {
	dm, path := newTestDisk(t)

	require.NoError(t, dm.IncreaseDiskSpace(10))
	assert.Equal(t, 16, dm.Capacity())

	require.NoError(t, dm.IncreaseDiskSpace(17))
	assert.Equal(t, 32, dm.Capacity())

	require.NoError(t, dm.IncreaseDiskSpace(100))
	assert.Equal(t, 128, dm.Capacity())

	// below the high-water mark: nothing changes
	require.NoError(t, dm.IncreaseDiskSpace(5))
	assert.Equal(t, 128, dm.Capacity())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(129)*page.PageSize, info.Size())

	require.NoError(t, dm.WritePage(100, filled(7)))
}

func TestInvalidAndOutOfRangePages(t *testing.T) {
	dm, _ := newTestDisk(t)
	buf := make([]byte, page.PageSize)

	assert.ErrorIs(t, dm.WritePage(0, buf), ErrInvalidPageID)
	assert.ErrorIs(t, dm.WritePage(page.InvalidPageID, buf), ErrInvalidPageID)
	assert.ErrorIs(t, dm.ReadPage(0, buf), ErrInvalidPageID)
	assert.ErrorIs(t, dm.WritePage(MinCapacity+1, buf), ErrPageOutOfRange)
	assert.ErrorIs(t, dm.ReadPage(MinCapacity+1, buf), ErrPageOutOfRange)
	assert.Error(t, dm.WritePage(1, buf[:10]))
}

func TestShortReadZeroFills(t *testing.T) {
	dm, path := newTestDisk(t)
	require.NoError(t, dm.WritePage(2, filled(0x5A)))

	require.NoError(t, os.Truncate(path, 2*page.PageSize+100))

	out := filled(0xFF)
	err := dm.ReadPage(2, out)
	require.ErrorIs(t, err, ErrShortRead)
	assert.Equal(t, filled(0x5A)[:100], out[:100])
	assert.Equal(t, make([]byte, page.PageSize-100), out[100:])
}

func TestReopenRecoversCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.idx")
	dm, err := NewDiskManager(path)
	require.NoError(t, err)
	require.NoError(t, dm.IncreaseDiskSpace(40))
	require.NoError(t, dm.WritePage(40, filled(0x42)))
	require.NoError(t, dm.Close())
	require.NoError(t, dm.Close())

	dm, err = NewDiskManager(path)
	require.NoError(t, err)
	defer dm.Close()

	assert.Equal(t, 64, dm.Capacity())
	out := make([]byte, page.PageSize)
	require.NoError(t, dm.ReadPage(40, out))
	assert.Equal(t, filled(0x42), out)
}

func TestMetadataLivesInSlotZero(t *testing.T) {
	dm, path := newTestDisk(t)
	require.NoError(t, dm.IncreaseDiskSpace(17))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BPTC", string(data[:4]))
	assert.Equal(t, uint32(32), binary.LittleEndian.Uint32(data[4:8]))
	assert.Len(t, data, 33*page.PageSize)
}

func TestForeignFileIsRefusedUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	content := []byte(strings.Repeat("plain text that is not an index\n", 6000))
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := NewDiskManager(path)
	require.ErrorIs(t, err, ErrNotIndex)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, after)

	// the failed open released its lock
	_, err = NewDiskManager(path)
	require.ErrorIs(t, err, ErrNotIndex)
}

func TestTruncatedIndexIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cut.idx")
	dm, err := NewDiskManager(path)
	require.NoError(t, err)
	require.NoError(t, dm.IncreaseDiskSpace(40))
	require.NoError(t, dm.Close())

	require.NoError(t, os.Truncate(path, 10*page.PageSize))
	_, err = NewDiskManager(path)
	require.ErrorIs(t, err, ErrNotIndex)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10*page.PageSize), info.Size())
}

func TestCleanResets(t *testing.T) {
	dm, path := newTestDisk(t)
	require.NoError(t, dm.IncreaseDiskSpace(50))
	require.NoError(t, dm.WritePage(20, filled(1)))
	dm.DeletePage(20)
	assert.Equal(t, 1, dm.GetNumDeletes())

	require.NoError(t, dm.Clean())

	assert.Equal(t, MinCapacity, dm.Capacity())
	assert.Equal(t, 0, dm.GetNumWrites())
	assert.Equal(t, 0, dm.GetNumDeletes())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(MinCapacity+1)*page.PageSize, info.Size())

	out := filled(9)
	require.NoError(t, dm.ReadPage(1, out))
	assert.Equal(t, make([]byte, page.PageSize), out)
}

func TestSyncCountsFlushes(t *testing.T) {
	dm, _ := newTestDisk(t)
	require.NoError(t, dm.Sync())
	require.NoError(t, dm.Sync())
	assert.Equal(t, 2, dm.GetNumFlushes())
}

func TestClosedManagerRejectsIO(t *testing.T) {
	dm, _ := newTestDisk(t)
	require.NoError(t, dm.Close())

	assert.ErrorIs(t, dm.WritePage(1, filled(0)), ErrClosed)
	assert.ErrorIs(t, dm.ReadPage(1, make([]byte, page.PageSize)), ErrClosed)
	assert.ErrorIs(t, dm.IncreaseDiskSpace(100), ErrClosed)
	assert.ErrorIs(t, dm.Sync(), ErrClosed)
}

func TestSecondOpenIsLocked(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("advisory locks are unix only")
	}
	_, path := newTestDisk(t)

	_, err := NewDiskManager(path)
	assert.ErrorIs(t, err, ErrFileLocked)
}
