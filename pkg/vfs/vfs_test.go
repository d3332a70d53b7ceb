package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/e5fs"
	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/vfs"
)

func newRootVFS(t *testing.T) (*vfs.VFS, *e5fs.FS) {
	t.Helper()
	dev := bytedev.NewMemDevice(1 << 20)
	fs, err := e5fs.MKFS(dev, 0.05, 4096)
	require.NoError(t, err)

	v := vfs.New()
	require.NoError(t, v.Mount("/", vfs.E5FSAdapter{FS: fs}))
	v.SetIdentity(vfs.Identity{UID: vfs.RootUID})
	return v, fs
}

// TestPermissionGate is spec.md §8 scenario 6.
func TestPermissionGate(t *testing.T) {
	v, _ := newRootVFS(t)

	ownerOnly := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, err := v.CreateFile("/secret", 1000, 1000, ownerOnly)
	require.NoError(t, err)

	v.SetIdentity(vfs.Identity{UID: 2000, GID: 2000})
	_, err = v.ReadFile("/secret", -1)
	require.Error(t, err)

	v.SetIdentity(vfs.Identity{UID: 1000, GID: 1000})
	_, err = v.ReadFile("/secret", -1)
	require.NoError(t, err)

	v.SetIdentity(vfs.Identity{UID: vfs.RootUID})
	_, err = v.ReadFile("/secret", -1)
	require.NoError(t, err)
}

func TestSupplementaryGIDGrantsGroupPermission(t *testing.T) {
	v, _ := newRootVFS(t)

	groupReadable := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, fsmode.PermRead, 0)
	_, err := v.CreateFile("/shared", 1000, 50, groupReadable)
	require.NoError(t, err)

	v.SetIdentity(vfs.Identity{UID: 2000, GID: 2000, SupplementaryGIDs: []uint32{50}})
	_, err = v.ReadFile("/shared", -1)
	require.NoError(t, err)
}

func TestChmodRequiresOwnerOrRoot(t *testing.T) {
	v, _ := newRootVFS(t)
	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, err := v.CreateFile("/f", 1000, 1000, mode)
	require.NoError(t, err)

	v.SetIdentity(vfs.Identity{UID: 2000})
	err = v.ChangeMode("/f", mode)
	require.Error(t, err)

	v.SetIdentity(vfs.Identity{UID: 1000})
	require.NoError(t, v.ChangeMode("/f", mode))
}

func TestChownRequiresRootUnlessGroupOnlyChange(t *testing.T) {
	v, _ := newRootVFS(t)
	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, err := v.CreateFile("/f", 1000, 1000, mode)
	require.NoError(t, err)

	v.SetIdentity(vfs.Identity{UID: 1000})
	require.NoError(t, v.ChangeOwners("/f", 1000, 42))

	err = v.ChangeOwners("/f", 1001, 42)
	require.Error(t, err)

	v.SetIdentity(vfs.Identity{UID: vfs.RootUID})
	require.NoError(t, v.ChangeOwners("/f", 1001, 42))
}

func TestMatchMountPointLongestPrefix(t *testing.T) {
	v, _ := newRootVFS(t)
	dev2 := bytedev.NewMemDevice(1 << 20)
	sub, err := e5fs.MKFS(dev2, 0.05, 4096)
	require.NoError(t, err)
	v.SetIdentity(vfs.Identity{UID: vfs.RootUID})
	_, err = v.CreateDir("/mnt", 0, 0, fsmode.New(false, fsmode.Dir, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec, 0, 0))
	require.NoError(t, err)
	require.NoError(t, v.Mount("/mnt", vfs.E5FSAdapter{FS: sub}))

	mp, rel, _, err := v.MatchMountPoint("/mnt/hello")
	require.NoError(t, err)
	require.Equal(t, "/mnt", mp)
	require.Equal(t, "/hello", rel)

	mp, rel, _, err = v.MatchMountPoint("/other")
	require.NoError(t, err)
	require.Equal(t, "/", mp)
	require.Equal(t, "/other", rel)
}

func TestParentDirRejectsRoot(t *testing.T) {
	_, err := vfs.ParentDir("/")
	require.Error(t, err)
}
