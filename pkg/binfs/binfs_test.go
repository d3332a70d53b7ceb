package binfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/binfs"
)

// fakeKernel stands in for *kernel.Kernel in these tests, avoiding an
// import cycle (pkg/kernel imports pkg/binfs to construct the system BinFS).
type fakeKernel struct {
	calls int
}

func TestAddBinsAndLookup(t *testing.T) {
	fs := binfs.New[*fakeKernel](8)
	require.NoError(t, fs.AddBins([]binfs.Binary[*fakeKernel]{
		{Path: "/true", Func: func(argv []string, k *fakeKernel) int { k.calls++; return 0 }},
		{Path: "/false", Func: func(argv []string, k *fakeKernel) int { return 1 }},
	}))

	handle, err := fs.LookupBinary("/true")
	require.NoError(t, err)
	require.Equal(t, "true", handle.Name)

	k := &fakeKernel{}
	require.Equal(t, 0, handle.Func(nil, k))
	require.Equal(t, 1, k.calls)
}

func TestLookupBinaryMissing(t *testing.T) {
	fs := binfs.New[*fakeKernel](4)
	_, err := fs.LookupBinary("/nope")
	require.Error(t, err)
}

func TestLookupBinaryOnDirectoryFails(t *testing.T) {
	fs := binfs.New[*fakeKernel](4)
	require.NoError(t, fs.MakeDir("/sbin"))
	require.NoError(t, fs.AddBins([]binfs.Binary[*fakeKernel]{
		{Path: "/sbin/mkfs.e5fs", Func: func(argv []string, k *fakeKernel) int { return 0 }},
	}))

	_, err := fs.LookupBinary("/sbin")
	require.Error(t, err)

	handle, err := fs.LookupBinary("/sbin/mkfs.e5fs")
	require.NoError(t, err)
	require.Equal(t, "mkfs.e5fs", handle.Name)
}

func TestWriteFileRejected(t *testing.T) {
	fs := binfs.New[*fakeKernel](4)
	require.NoError(t, fs.AddBins([]binfs.Binary[*fakeKernel]{
		{Path: "/true", Func: func(argv []string, k *fakeKernel) int { return 0 }},
	}))
	require.Error(t, fs.WriteFile("/true", []byte("nope")))
}
