package e5fs_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/e5fs"
	"github.com/nativerv/eunix/pkg/fsmode"
)

func oneMiBFS(t *testing.T) *e5fs.FS {
	t.Helper()
	dev := bytedev.NewMemDevice(1 << 20)
	fs, err := e5fs.MKFS(dev, 0.05, 4096)
	require.NoError(t, err)
	return fs
}

// TestMKFSThenDumpE5FS is spec.md §8 scenario 1.
func TestMKFSThenDumpE5FS(t *testing.T) {
	dev := bytedev.NewMemDevice(1 << 20)
	fs, err := e5fs.MKFS(dev, 0.05, 4096)
	require.NoError(t, err)

	sb := fs.ReadSuperblock()
	require.Equal(t, uint64(4096), sb.BlockDataSize)
	require.Equal(t, uint64(243), sb.BlocksCount)

	wantInodes := uint64(float64(1<<20) * 0.05 / float64(e5fs.InodeSize))
	require.Equal(t, wantInodes, sb.InodesCount)

	var tag [16]byte
	copy(tag[:], "e5fs")
	require.Equal(t, tag, sb.FilesystemType)
}

func TestSuperblockRoundTrip(t *testing.T) {
	fs := oneMiBFS(t)
	inMemory := fs.ReadSuperblock()

	raw := inMemory.Marshal()
	reread, err := e5fs.UnmarshalSuperblock(raw)
	require.NoError(t, err)
	require.Equal(t, inMemory, *reread)
}

func TestInodeRoundTrip(t *testing.T) {
	fs := oneMiBFS(t)
	in := e5fs.NewFreeInode()
	in.Mode = fsmode.New(false, fsmode.File, fsmode.PermRead, fsmode.PermRead, 0)
	in.LinksCount = 3
	in.UID, in.GID = 42, 7
	in.FileSize = 12345
	in.DirectBlockNumbers[0] = 5

	require.NoError(t, fs.WriteInode(1, in))
	got, err := fs.ReadInode(1)
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestBlockRoundTrip(t *testing.T) {
	fs := oneMiBFS(t)
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, fs.WriteBlock(10, data))
	got, err := fs.ReadBlock(10)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

// TestFBLInvariant is spec.md §8's FBL union/partition property.
func TestFBLInvariant(t *testing.T) {
	fs := oneMiBFS(t)
	sb := fs.ReadSuperblock()

	seen := map[e5fs.AddressSize]bool{}
	noAddrCount := 0
	chunkLen := sb.AddressesPerFBLChunk()
	for b := sb.FirstFBLBlockNumber; b < sb.BlocksCount; b++ {
		raw, err := fs.ReadBlock(b)
		require.NoError(t, err)
		require.Len(t, raw, int(sb.BlockDataSize))
		for i := 0; i < chunkLen; i++ {
			addr := leUint64Test(raw[i*8 : i*8+8])
			if addr == e5fs.NoAddress {
				noAddrCount++
				continue
			}
			require.False(t, seen[addr], "block %d listed twice in FBL", addr)
			seen[addr] = true
		}
	}

	// block 0 belongs to the root directory, so it is absent from the FBL.
	for b := e5fs.AddressSize(1); b < sb.FirstFBLBlockNumber; b++ {
		require.True(t, seen[b], "block %d missing from FBL", b)
	}
	require.False(t, seen[0])

	totalSlots := uint64(chunkLen) * (sb.BlocksCount - sb.FirstFBLBlockNumber)
	require.Equal(t, totalSlots, uint64(len(seen))+uint64(noAddrCount))
}

func leUint64Test(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func TestCreateFileRoundTrip(t *testing.T) {
	fs := oneMiBFS(t)
	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, fsmode.PermRead, fsmode.PermRead)
	inum, _, err := fs.CreateFile("/hello", 1000, 1000, mode)
	require.NoError(t, err)

	lookedUp, in, err := fs.LookupPath("/hello")
	require.NoError(t, err)
	require.Equal(t, inum, lookedUp)
	require.False(t, in.Mode.Free())
	require.Equal(t, fsmode.File, in.Mode.FileType())

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Equal(t, inum, entries["hello"].InodeNumber)
}

func TestMkdirNestedCreate(t *testing.T) {
	fs := oneMiBFS(t)
	mode := fsmode.New(false, 0, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec)
	_, _, err := fs.CreateDir("/a", 0, 0, mode)
	require.NoError(t, err)
	_, _, err = fs.CreateFile("/a/b", 0, 0, mode)
	require.NoError(t, err)

	entries, err := fs.ReadDir("/a")
	require.NoError(t, err)
	require.Contains(t, entries, ".")
	require.Contains(t, entries, "..")
	require.Contains(t, entries, "b")
	require.Len(t, entries, 3)

	_, _, err = fs.LookupPath("/a/b")
	require.NoError(t, err)
}

func TestDuplicateCreateFails(t *testing.T) {
	fs := oneMiBFS(t)
	mode := fsmode.New(false, fsmode.File, fsmode.PermRead, 0, 0)
	_, _, err := fs.CreateFile("/x", 0, 0, mode)
	require.NoError(t, err)
	_, _, err = fs.CreateFile("/x", 0, 0, mode)
	require.Error(t, err)
}

func TestReadWriteFileAcrossBlocks(t *testing.T) {
	fs := oneMiBFS(t)
	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, _, err := fs.CreateFile("/big", 0, 0, mode)
	require.NoError(t, err)

	data := make([]byte, 4096*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, fs.WriteFile("/big", data))

	got, err := fs.ReadFile("/big", len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestRemoveFile(t *testing.T) {
	fs := oneMiBFS(t)
	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, _, err := fs.CreateFile("/gone", 0, 0, mode)
	require.NoError(t, err)

	require.NoError(t, fs.RemoveFile("/gone"))
	_, _, err = fs.LookupPath("/gone")
	require.Error(t, err)

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.NotContains(t, entries, "gone")
}

func TestBlockDataSizeMustBePowerOfTwo(t *testing.T) {
	dev := bytedev.NewMemDevice(1 << 20)
	_, err := e5fs.MKFS(dev, 0.05, 1000)
	require.Error(t, err)
}

func TestInodeTablePercentageOutOfRange(t *testing.T) {
	dev := bytedev.NewMemDevice(1 << 20)
	_, err := e5fs.MKFS(dev, 1.5, 4096)
	require.Error(t, err)
}

func TestFBLTooSmallDevice(t *testing.T) {
	dev := bytedev.NewMemDevice(4096 * 2)
	_, err := e5fs.MKFS(dev, 0.99, 4096)
	require.Error(t, err)
}

func TestAddressesPerFBLChunk(t *testing.T) {
	fs := oneMiBFS(t)
	sb := fs.ReadSuperblock()
	require.Equal(t, int(math.Floor(4096.0/8.0)), sb.AddressesPerFBLChunk())
}
