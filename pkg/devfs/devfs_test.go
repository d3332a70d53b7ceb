package devfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/devfs"
	"github.com/nativerv/eunix/pkg/machine"
)

func memOpener(t *testing.T) func(string) (bytedev.ByteDevice, error) {
	t.Helper()
	return func(path string) (bytedev.ByteDevice, error) {
		return bytedev.NewMemDevice(4096), nil
	}
}

func TestNewNamesDevicesInDeclarationOrder(t *testing.T) {
	table := machine.DeviceTable{
		{Name: "root", Device: machine.Device{Path: "/tmp/a.img", Type: machine.Block}},
		{Name: "swap", Device: machine.Device{Path: "/tmp/b.img", Type: machine.Block}},
		{Name: "console", Device: machine.Device{Path: "/dev/tty0", Type: machine.TTY}},
	}

	fs, err := devfs.New(table, memOpener(t))
	require.NoError(t, err)

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Contains(t, entries, "sdA")
	require.Contains(t, entries, "sdB")
	require.Contains(t, entries, "tty1")

	_, err = fs.Device("/sdA")
	require.NoError(t, err)
	_, err = fs.Device("/tty1")
	require.NoError(t, err)
}

func TestDeviceNotFound(t *testing.T) {
	fs, err := devfs.New(nil, memOpener(t))
	require.NoError(t, err)

	_, err = fs.Device("/sdZ")
	require.Error(t, err)
}

func TestWriteFileRejected(t *testing.T) {
	table := machine.DeviceTable{
		{Name: "root", Device: machine.Device{Path: "/tmp/a.img", Type: machine.Block}},
	}
	fs, err := devfs.New(table, memOpener(t))
	require.NoError(t, err)

	err = fs.WriteFile("/sdA", []byte("nope"))
	require.Error(t, err)
}
