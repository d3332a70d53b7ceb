package binaries_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/internal/binaries"
	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/e5fs"
	"github.com/nativerv/eunix/pkg/kernel"
	"github.com/nativerv/eunix/pkg/vfs"
)

func newKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	dev := bytedev.NewMemDevice(1 << 20)
	fs, err := e5fs.MKFS(dev, 0.05, 4096)
	require.NoError(t, err)

	k := kernel.New(nil, binaries.All, nil)
	require.NoError(t, k.VFS().Mount("/", vfs.E5FSAdapter{FS: fs}))
	return k
}

func lookupFunc(t *testing.T, name string) func([]string, *kernel.Kernel) int {
	t.Helper()
	for _, b := range binaries.All() {
		if b.Path == name {
			return b.Func
		}
	}
	t.Fatalf("no binary registered at %s", name)
	return nil
}

func TestTouchThenCat(t *testing.T) {
	k := newKernel(t)
	touch := lookupFunc(t, "/bin/touch")
	write := lookupFunc(t, "/bin/write")

	require.Equal(t, 0, touch([]string{"touch", "/greeting"}, k))
	require.Equal(t, 0, write([]string{"write", "/greeting", "hello", "world"}, k))

	data, err := k.VFS().ReadFile("/greeting", -1)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestMkdirThenLs(t *testing.T) {
	k := newKernel(t)
	mkdir := lookupFunc(t, "/bin/mkdir")
	ls := lookupFunc(t, "/bin/ls")

	require.Equal(t, 0, mkdir([]string{"mkdir", "/sub"}, k))
	require.Equal(t, 0, ls([]string{"ls", "/"}, k))
}

func TestRmRemovesFile(t *testing.T) {
	k := newKernel(t)
	touch := lookupFunc(t, "/bin/touch")
	rm := lookupFunc(t, "/bin/rm")

	require.Equal(t, 0, touch([]string{"touch", "/gone"}, k))
	require.Equal(t, 0, rm([]string{"rm", "/gone"}, k))

	_, err := k.VFS().Stat("/gone")
	require.Error(t, err)
}

func TestChmodAppliesOctalMode(t *testing.T) {
	k := newKernel(t)
	touch := lookupFunc(t, "/bin/touch")
	chmod := lookupFunc(t, "/bin/chmod")

	require.Equal(t, 0, touch([]string{"touch", "/f"}, k))
	require.Equal(t, 0, chmod([]string{"chmod", "600", "/f"}, k))

	info, err := k.VFS().Stat("/f")
	require.NoError(t, err)
	require.True(t, info.Mode.User().CanRead())
	require.True(t, info.Mode.User().CanWrite())
	require.False(t, info.Mode.Others().CanRead())
}

func TestChownUpdatesOwnership(t *testing.T) {
	k := newKernel(t)
	touch := lookupFunc(t, "/bin/touch")
	chown := lookupFunc(t, "/bin/chown")

	require.Equal(t, 0, touch([]string{"touch", "/f"}, k))
	require.Equal(t, 0, chown([]string{"chown", "42:7", "/f"}, k))

	info, err := k.VFS().Stat("/f")
	require.NoError(t, err)
	require.Equal(t, uint32(42), info.UID)
	require.Equal(t, uint32(7), info.GID)
}

func TestPasswdRejectsUnknownUser(t *testing.T) {
	k := newKernel(t)
	k.SetIdentity(9999, 9999, nil)
	mkdir := lookupFunc(t, "/bin/mkdir")
	touch := lookupFunc(t, "/bin/touch")
	write := lookupFunc(t, "/bin/write")
	passwdCmd := lookupFunc(t, "/sbin/passwd")

	k.SetIdentity(0, 0, nil)
	require.Equal(t, 0, mkdir([]string{"mkdir", "/etc"}, k))
	require.Equal(t, 0, touch([]string{"touch", "/etc/passwd"}, k))
	require.Equal(t, 0, write([]string{"write", "/etc/passwd", "root:deadbeef:0:0::/root:/bin/sh"}, k))

	k.SetIdentity(9999, 9999, nil)
	require.Equal(t, 1, passwdCmd([]string{"passwd", "newpass"}, k))
}
