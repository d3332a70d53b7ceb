// Package devfs is the device-node filesystem from spec.md §4.5: a VirtFS
// instance whose payload is a host-backed ByteDevice, named deterministically
// in machine.DeviceTable order (sdA, sdB, ... for block devices; tty1, tty2,
// ... for ttys).
//
// Grounded on the teacher's device-binding layer in pkg/jdfs/fsd.go, which
// maps served paths to backing files at mount time; here the binding happens
// once at boot from the machine schema instead of per RPC call.
package devfs

import (
	"fmt"

	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/machine"
	"github.com/nativerv/eunix/pkg/virtfs"
)

// Handle is DevFS's Payload: the device's assigned name plus the open
// ByteDevice backing it. Its String() form is the name, so reading a device
// node's "content" (per VirtFS's text-payload contract) yields the name
// rather than raw device bytes — device I/O goes through Device(), not
// ReadFile.
type Handle struct {
	Name   string
	Device bytedev.ByteDevice
	Kind   machine.DeviceType
}

func (h Handle) String() string { return h.Name }

func decodeHandle(name string) func([]byte) (Handle, error) {
	return func(b []byte) (Handle, error) {
		return Handle{}, fserr.New(fserr.EACCES, "%s is not writable through the filesystem interface", name)
	}
}

// DevFS is a VirtFS[Handle] rooted at "/".
type DevFS struct {
	vfs *virtfs.VirtFS[Handle]
}

func deviceMode() fsmode.FileMode {
	return fsmode.New(false, fsmode.Block, fsmode.PermRead|fsmode.PermWrite,
		fsmode.PermRead|fsmode.PermWrite, 0)
}

// New builds a DevFS, opening one ByteDevice per entry in table (in
// declaration order) and naming them per spec.md §4.5: block devices as
// sdA, sdB, sdC, ...; ttys as tty1, tty2, tty3, ....
func New(table machine.DeviceTable, open func(path string) (bytedev.ByteDevice, error)) (*DevFS, error) {
	vfs := virtfs.New[Handle](len(table) + 1)
	fs := &DevFS{vfs: vfs}

	blockIdx, ttyIdx := 0, 0
	for _, entry := range table {
		var name string
		switch entry.Device.Type {
		case machine.Block:
			name = fmt.Sprintf("sd%c", 'A'+blockIdx)
			blockIdx++
		case machine.TTY:
			ttyIdx++
			name = fmt.Sprintf("tty%d", ttyIdx)
		default:
			return nil, fserr.New(fserr.EINVAL, "device %q has unknown type %q", entry.Name, entry.Device.Type)
		}

		dev, err := open(entry.Device.Path)
		if err != nil {
			return nil, fserr.New(fserr.EIO, "open device %s backing %s: %s", entry.Device.Path, name, err)
		}

		path := "/" + name
		mode := deviceMode()
		if entry.Device.Type == machine.Block {
			mode = mode.WithFileType(fsmode.Block)
		} else {
			mode = mode.WithFileType(fsmode.Char)
		}
		in, err := vfs.CreateFile(path, 0, 0, mode)
		if err != nil {
			return nil, err
		}
		vfs.SetFilePayload(in.Number, Handle{Name: name, Device: dev, Kind: entry.Device.Type})
	}
	return fs, nil
}

// Device returns the open ByteDevice behind a device node by pathname, per
// spec.md §4.5's device_by_pathname.
func (fs *DevFS) Device(pathname string) (bytedev.ByteDevice, error) {
	handle, err := fs.vfs.FilePayload(pathname)
	if err != nil {
		return nil, err
	}
	return handle.Device, nil
}

// LookupPath, ReadDir, Stat, ChangeMode and ChangeOwners pass through to the
// underlying VirtFS so DevFS satisfies the VFS's filesystem interface
// alongside E5FS and BinFS.
func (fs *DevFS) LookupPath(path string) (virtfs.INode, error) { return fs.vfs.LookupPath(path) }
func (fs *DevFS) ReadDir(path string) (map[string]virtfs.DirEntry, error) {
	return fs.vfs.ReadDir(path)
}
func (fs *DevFS) Stat(path string) (virtfs.INode, error) { return fs.vfs.Stat(path) }
func (fs *DevFS) ChangeMode(path string, mode fsmode.FileMode) error {
	return fs.vfs.ChangeMode(path, mode)
}
func (fs *DevFS) ChangeOwners(path string, uid, gid uint32) error {
	return fs.vfs.ChangeOwners(path, uid, gid)
}

// ReadFile returns a device node's name as text, matching VirtFS's payload
// contract; actual device I/O is through Device().
func (fs *DevFS) ReadFile(path string, count int) ([]byte, error) {
	return fs.vfs.ReadFile(path, count)
}

// WriteFile is rejected: device node payloads are bound at boot, not
// rewritable through the filesystem interface.
func (fs *DevFS) WriteFile(path string, data []byte) error {
	return fs.vfs.WriteFile(path, data, decodeHandle(path))
}

// CreateFile, CreateDir, RemoveFile and ChangeTimes complete VirtFS
// passthrough so DevFS satisfies the VFS's uniform filesystem interface,
// even though device nodes are ordinarily only created by New at boot.
func (fs *DevFS) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (virtfs.INode, error) {
	return fs.vfs.CreateFile(path, uid, gid, mode)
}
func (fs *DevFS) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (virtfs.INode, error) {
	return fs.vfs.CreateDir(path, uid, gid, mode)
}
func (fs *DevFS) RemoveFile(path string) error { return fs.vfs.RemoveFile(path) }
func (fs *DevFS) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	return fs.vfs.ChangeTimes(path, atime, mtime, ctime)
}
