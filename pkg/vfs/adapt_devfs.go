package vfs

import (
	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/devfs"
	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/virtfs"
)

// DevFSAdapter presents a *devfs.DevFS as a vfs.FileSystem.
type DevFSAdapter struct {
	FS *devfs.DevFS
}

func virtInfo(in virtfs.INode) Info {
	return Info{Mode: in.Mode, UID: in.UID, GID: in.GID, Size: in.FileSize, Atime: in.Atime, Mtime: in.Mtime, Ctime: in.Ctime}
}

func virtEntries(dirents map[string]virtfs.DirEntry) map[string]Entry {
	out := make(map[string]Entry, len(dirents))
	for name := range dirents {
		out[name] = Entry{Name: name}
	}
	return out
}

func (a DevFSAdapter) LookupPath(path string) (Info, error) {
	in, err := a.FS.LookupPath(path)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a DevFSAdapter) Stat(path string) (Info, error) {
	in, err := a.FS.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a DevFSAdapter) ReadDir(path string) (map[string]Entry, error) {
	dirents, err := a.FS.ReadDir(path)
	if err != nil {
		return nil, err
	}
	return virtEntries(dirents), nil
}

func (a DevFSAdapter) ReadFile(path string, count int) ([]byte, error) { return a.FS.ReadFile(path, count) }
func (a DevFSAdapter) WriteFile(path string, data []byte) error        { return a.FS.WriteFile(path, data) }

func (a DevFSAdapter) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	in, err := a.FS.CreateFile(path, uid, gid, mode)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a DevFSAdapter) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	in, err := a.FS.CreateDir(path, uid, gid, mode)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a DevFSAdapter) RemoveFile(path string) error { return a.FS.RemoveFile(path) }
func (a DevFSAdapter) ChangeMode(path string, mode fsmode.FileMode) error {
	return a.FS.ChangeMode(path, mode)
}
func (a DevFSAdapter) ChangeOwners(path string, uid, gid uint32) error {
	return a.FS.ChangeOwners(path, uid, gid)
}
func (a DevFSAdapter) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	return a.FS.ChangeTimes(path, atime, mtime, ctime)
}

// Device satisfies vfs.DeviceResolver.
func (a DevFSAdapter) Device(path string) (bytedev.ByteDevice, error) { return a.FS.Device(path) }
