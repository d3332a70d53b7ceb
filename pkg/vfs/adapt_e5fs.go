package vfs

import (
	"github.com/nativerv/eunix/pkg/e5fs"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// E5FSAdapter presents an *e5fs.FS as a vfs.FileSystem, converting E5FS's
// own (AddressSize, INode) return shape into the VFS's filesystem-agnostic
// Info/Entry types.
type E5FSAdapter struct {
	FS *e5fs.FS
}

func e5fsInfo(in e5fs.INode) Info {
	return Info{Mode: in.Mode, UID: in.UID, GID: in.GID, Size: in.FileSize, Atime: in.Atime, Mtime: in.Mtime, Ctime: in.Ctime}
}

func (a E5FSAdapter) LookupPath(path string) (Info, error) {
	_, in, err := a.FS.LookupPath(path)
	if err != nil {
		return Info{}, err
	}
	return e5fsInfo(in), nil
}

func (a E5FSAdapter) Stat(path string) (Info, error) {
	in, err := a.FS.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return e5fsInfo(in), nil
}

func (a E5FSAdapter) ReadDir(path string) (map[string]Entry, error) {
	dirents, err := a.FS.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Entry, len(dirents))
	for name := range dirents {
		out[name] = Entry{Name: name}
	}
	return out, nil
}

func (a E5FSAdapter) ReadFile(path string, count int) ([]byte, error) { return a.FS.ReadFile(path, count) }
func (a E5FSAdapter) WriteFile(path string, data []byte) error        { return a.FS.WriteFile(path, data) }

func (a E5FSAdapter) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	_, in, err := a.FS.CreateFile(path, uid, gid, mode)
	if err != nil {
		return Info{}, err
	}
	return e5fsInfo(in), nil
}

func (a E5FSAdapter) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	_, in, err := a.FS.CreateDir(path, uid, gid, mode)
	if err != nil {
		return Info{}, err
	}
	return e5fsInfo(in), nil
}

func (a E5FSAdapter) RemoveFile(path string) error { return a.FS.RemoveFile(path) }
func (a E5FSAdapter) ChangeMode(path string, mode fsmode.FileMode) error {
	return a.FS.ChangeMode(path, mode)
}
func (a E5FSAdapter) ChangeOwners(path string, uid, gid uint32) error {
	return a.FS.ChangeOwners(path, uid, gid)
}
func (a E5FSAdapter) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	return a.FS.ChangeTimes(path, atime, mtime, ctime)
}
