package machine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/machine"
)

func writeSchema(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadPreservesDeclarationOrder(t *testing.T) {
	path := writeSchema(t, `
machine:
  devices:
    root:
      path: /tmp/root.img
      type: block
    swap:
      path: /tmp/swap.img
      type: block
    console:
      path: /dev/tty0
      type: tty
`)

	m, err := machine.Load(path)
	require.NoError(t, err)
	require.Len(t, m.Devices, 3)
	require.Equal(t, "root", m.Devices[0].Name)
	require.Equal(t, "swap", m.Devices[1].Name)
	require.Equal(t, "console", m.Devices[2].Name)
	require.Equal(t, machine.Block, m.Devices[0].Device.Type)
	require.Equal(t, machine.TTY, m.Devices[2].Device.Type)
}

func TestLoadRejectsUnknownDeviceType(t *testing.T) {
	path := writeSchema(t, `
machine:
  devices:
    weird:
      path: /tmp/weird.img
      type: sparkly
`)

	_, err := machine.Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesDevicePath(t *testing.T) {
	path := writeSchema(t, `
machine:
  devices:
    root:
      path: /tmp/root.img
      type: block
`)

	t.Setenv("EUNIX_MACHINE_DEVICES_ROOT_PATH", "/tmp/override.img")
	m, err := machine.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/override.img", m.Devices[0].Device.Path)
}
