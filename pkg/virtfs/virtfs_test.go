package virtfs_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/virtfs"
)

// intPayload is a minimal Payload implementation used only by these tests.
type intPayload int

func (p intPayload) String() string { return strconv.Itoa(int(p)) }

func decodeInt(b []byte) (intPayload, error) {
	n, err := strconv.Atoi(string(b))
	return intPayload(n), err
}

func rwMode() fsmode.FileMode {
	return fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, fsmode.PermRead, fsmode.PermRead)
}

func dirMode() fsmode.FileMode {
	return fsmode.New(false, fsmode.Dir, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec,
		fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec)
}

func TestCreateFileRoundTrip(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	created, err := fs.CreateFile("/hello", 1000, 1000, rwMode())
	require.NoError(t, err)

	looked, err := fs.LookupPath("/hello")
	require.NoError(t, err)
	require.Equal(t, created.Number, looked.Number)

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Equal(t, created.Number, entries["hello"].InodeNumber)
}

func TestMkdirAndNestedCreate(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateDir("/a", 0, 0, dirMode())
	require.NoError(t, err)
	_, err = fs.CreateFile("/a/b", 0, 0, rwMode())
	require.NoError(t, err)

	entries, err := fs.ReadDir("/a")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Contains(t, entries, "b")

	_, err = fs.LookupPath("/a/b")
	require.NoError(t, err)
}

func TestDuplicateCreateFails(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateFile("/x", 0, 0, rwMode())
	require.NoError(t, err)
	_, err = fs.CreateFile("/x", 0, 0, rwMode())
	require.Error(t, err)
}

func TestReadWriteFilePayload(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateFile("/n", 0, 0, rwMode())
	require.NoError(t, err)

	require.NoError(t, fs.WriteFile("/n", []byte("42"), decodeInt))
	got, err := fs.ReadFile("/n", -1)
	require.NoError(t, err)
	require.Equal(t, "42", string(got))

	payload, err := fs.FilePayload("/n")
	require.NoError(t, err)
	require.Equal(t, intPayload(42), payload)
}

func TestReadFileTruncatesToCount(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateFile("/n", 0, 0, rwMode())
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile("/n", []byte("12345"), decodeInt))

	got, err := fs.ReadFile("/n", 3)
	require.NoError(t, err)
	require.Equal(t, "123", string(got))
}

func TestRemoveFileFreesInode(t *testing.T) {
	fs := virtfs.New[intPayload](4)
	_, err := fs.CreateFile("/a", 0, 0, rwMode())
	require.NoError(t, err)
	require.NoError(t, fs.RemoveFile("/a"))

	_, err = fs.LookupPath("/a")
	require.Error(t, err)

	// the freed slot must be reusable.
	_, err = fs.CreateFile("/b", 0, 0, rwMode())
	require.NoError(t, err)
}

func TestStatReflectsMode(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateFile("/f", 1000, 1000, rwMode())
	require.NoError(t, err)

	in, err := fs.Stat("/f")
	require.NoError(t, err)
	require.False(t, in.Mode.Free())
	require.Equal(t, fsmode.File, in.Mode.FileType())
	require.Equal(t, uint32(1000), in.UID)
}

func TestChangeModePreservesFileType(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateDir("/d", 0, 0, dirMode())
	require.NoError(t, err)

	require.NoError(t, fs.ChangeMode("/d", fsmode.New(false, fsmode.File, fsmode.PermRead, 0, 0)))
	in, err := fs.Stat("/d")
	require.NoError(t, err)
	require.Equal(t, fsmode.Dir, in.Mode.FileType())
}

func TestLookupPathNotADirectory(t *testing.T) {
	fs := virtfs.New[intPayload](16)
	_, err := fs.CreateFile("/f", 0, 0, rwMode())
	require.NoError(t, err)
	_, err = fs.LookupPath("/f/nested")
	require.Error(t, err)
}
