package vfs

import (
	"github.com/nativerv/eunix/pkg/binfs"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// BinFSAdapter presents a *binfs.BinFS[K] as a vfs.FileSystem. K stays a
// type parameter here too, so vfs never has to name the kernel type that
// eventually instantiates it.
type BinFSAdapter[K any] struct {
	FS *binfs.BinFS[K]
}

func (a BinFSAdapter[K]) LookupPath(path string) (Info, error) {
	in, err := a.FS.LookupPath(path)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a BinFSAdapter[K]) Stat(path string) (Info, error) {
	in, err := a.FS.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a BinFSAdapter[K]) ReadDir(path string) (map[string]Entry, error) {
	dirents, err := a.FS.ReadDir(path)
	if err != nil {
		return nil, err
	}
	return virtEntries(dirents), nil
}

func (a BinFSAdapter[K]) ReadFile(path string, count int) ([]byte, error) {
	return a.FS.ReadFile(path, count)
}
func (a BinFSAdapter[K]) WriteFile(path string, data []byte) error { return a.FS.WriteFile(path, data) }

func (a BinFSAdapter[K]) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	in, err := a.FS.CreateFile(path, uid, gid, mode)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a BinFSAdapter[K]) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	in, err := a.FS.CreateDir(path, uid, gid, mode)
	if err != nil {
		return Info{}, err
	}
	return virtInfo(in), nil
}

func (a BinFSAdapter[K]) RemoveFile(path string) error { return a.FS.RemoveFile(path) }
func (a BinFSAdapter[K]) ChangeMode(path string, mode fsmode.FileMode) error {
	return a.FS.ChangeMode(path, mode)
}
func (a BinFSAdapter[K]) ChangeOwners(path string, uid, gid uint32) error {
	return a.FS.ChangeOwners(path, uid, gid)
}
func (a BinFSAdapter[K]) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	return a.FS.ChangeTimes(path, atime, mtime, ctime)
}

// LookupBinary resolves path to its invocable handle through the BinFS
// mounted under the VFS, per spec.md §4.9's binary dispatcher.
func (a BinFSAdapter[K]) LookupBinary(path string) (binfs.Handle[K], error) {
	return a.FS.LookupBinary(path)
}
