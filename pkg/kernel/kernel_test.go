package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/binfs"
	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/e5fs"
	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/kernel"
	"github.com/nativerv/eunix/pkg/machine"
	"github.com/nativerv/eunix/pkg/vfs"
)

func memOpener(devices map[string]*bytedev.MemDevice) kernel.DeviceOpener {
	return func(path string) (bytedev.ByteDevice, error) {
		return devices[path], nil
	}
}

func echoBinary() []binfs.Binary[*kernel.Kernel] {
	return []binfs.Binary[*kernel.Kernel]{
		{Path: "/echo", Func: func(argv []string, k *kernel.Kernel) int { return len(argv) }},
	}
}

func TestMountDevfsThenBinfs(t *testing.T) {
	root := bytedev.NewMemDevice(1 << 20)
	table := machine.DeviceTable{
		{Name: "root", Device: machine.Device{Path: "root.img", Type: machine.Block}},
	}
	k := kernel.New(table, echoBinary, memOpener(map[string]*bytedev.MemDevice{"root.img": root}))

	require.NoError(t, k.Mount("", "/dev", "devfs"))
	require.NoError(t, k.Mount("", "/bin", "binfs"))

	code, err := k.Run([]string{"/bin/echo", "a", "b"})
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

func TestMountE5FSResolvesThroughDevfs(t *testing.T) {
	rootDev := bytedev.NewMemDevice(1 << 20)
	_, err := e5fs.MKFS(rootDev, 0.05, 4096)
	require.NoError(t, err)

	table := machine.DeviceTable{
		{Name: "root", Device: machine.Device{Path: "root.img", Type: machine.Block}},
	}
	k := kernel.New(table, nil, memOpener(map[string]*bytedev.MemDevice{"root.img": rootDev}))
	require.NoError(t, k.Mount("", "/dev", "devfs"))
	require.NoError(t, k.Mount("/dev/sdA", "/", "e5fs"))

	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, err = k.VFS().CreateFile("/hello", 0, 0, mode)
	require.NoError(t, err)
}

func TestMountRequiresRoot(t *testing.T) {
	table := machine.DeviceTable{}
	k := kernel.New(table, nil, memOpener(nil))
	k.SetIdentity(1000, 1000, nil)

	err := k.Mount("", "/dev", "devfs")
	require.Error(t, err)
}

func TestMountUnknownTypeFails(t *testing.T) {
	k := kernel.New(nil, nil, memOpener(nil))
	err := k.Mount("", "/weird", "not-a-real-fs")
	require.Error(t, err)
}

func TestUpdateUIDGIDMaps(t *testing.T) {
	rootDev := bytedev.NewMemDevice(1 << 20)
	fs, err := e5fs.MKFS(rootDev, 0.05, 4096)
	require.NoError(t, err)

	k := kernel.New(nil, nil, memOpener(nil))
	require.NoError(t, k.VFS().Mount("/", vfs.E5FSAdapter{FS: fs}))

	mode := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, 0, 0)
	_, err = k.VFS().CreateDir("/etc", 0, 0, fsmode.New(false, fsmode.Dir, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec, 0, 0))
	require.NoError(t, err)
	_, err = k.VFS().CreateFile("/etc/passwd", 0, 0, mode)
	require.NoError(t, err)
	require.NoError(t, k.VFS().WriteFile("/etc/passwd", []byte("root:deadbeef:0:0::/root:/bin/sh\n")))
	_, err = k.VFS().CreateFile("/etc/group", 0, 0, mode)
	require.NoError(t, err)
	require.NoError(t, k.VFS().WriteFile("/etc/group", []byte("wheel:x:10:root\n")))

	require.NoError(t, k.UpdateUIDGIDMaps())
	require.Equal(t, "root", k.UIDMap()[0])
	require.Equal(t, "wheel", k.GIDMap()[10])
}
