// Package binfs is the executable-binding filesystem from spec.md §4.6: a
// VirtFS instance whose payload is a function handle of type
// (argv, kernel) -> exit-code. It is parameterised over the kernel type K
// rather than importing pkg/kernel directly, because the kernel owns the
// mount table that holds a BinFS — importing kernel here would cycle back.
//
// Grounded on the teacher's RPC dispatch table in pkg/jdfs/fsops.go, which
// maps an operation name to a handler function; here the table is itself a
// filesystem, addressable by path and walkable like any other directory.
package binfs

import (
	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/virtfs"
)

// Handle is BinFS's Payload: a named, invocable binary. K is the kernel type
// threaded through every invocation (spec.md §5's "the kernel value is
// threaded explicitly to every binary handle").
type Handle[K any] struct {
	Name string
	Func func(argv []string, kernel K) int
}

// String satisfies virtfs.Payload; function values aren't otherwise
// printable, so the handle's bound name stands in, per spec.md §9's note
// that function-valued payloads need a tractable text form.
func (h Handle[K]) String() string { return h.Name }

// Binary is one entry passed to AddBins: a path to create plus the function
// it should invoke.
type Binary[K any] struct {
	Path string
	Func func(argv []string, kernel K) int
}

func decodeHandle[K any](path string) func([]byte) (Handle[K], error) {
	return func([]byte) (Handle[K], error) {
		return Handle[K]{}, fserr.New(fserr.EACCES, "%s is not writable through the filesystem interface", path)
	}
}

func binMode() fsmode.FileMode {
	return fsmode.New(false, fsmode.File,
		fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec)
}

// BinFS is a VirtFS[Handle[K]] rooted at "/".
type BinFS[K any] struct {
	vfs *virtfs.VirtFS[Handle[K]]
}

// New builds an empty BinFS with room for capacity binaries.
func New[K any](capacity int) *BinFS[K] {
	return &BinFS[K]{vfs: virtfs.New[Handle[K]](capacity)}
}

// AddBins implements spec.md §4.6's add_bins: create a file per (path,
// handle) entry, storing the handle as its payload. Parent directories must
// already exist; callers register deep paths (e.g. "/sbin/mkfs.e5fs") by
// creating intermediate directories first.
func (fs *BinFS[K]) AddBins(bins []Binary[K]) error {
	for _, b := range bins {
		name := b.Path
		if i := lastSlash(name); i >= 0 {
			name = name[i+1:]
		}
		in, err := fs.vfs.CreateFile(b.Path, 0, 0, binMode())
		if err != nil {
			return fserr.WithPath(err, b.Path)
		}
		fs.vfs.SetFilePayload(in.Number, Handle[K]{Name: name, Func: b.Func})
	}
	return nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// MakeDir creates an intermediate directory (e.g. "/sbin") so AddBins can
// register binaries nested below it.
func (fs *BinFS[K]) MakeDir(path string) error {
	mode := fsmode.New(false, fsmode.Dir,
		fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec,
		fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec)
	_, err := fs.vfs.CreateDir(path, 0, 0, mode)
	return err
}

// LookupBinary implements spec.md §4.6's lookup_binary.
func (fs *BinFS[K]) LookupBinary(path string) (Handle[K], error) {
	in, err := fs.vfs.LookupPath(path)
	if err != nil {
		return Handle[K]{}, err
	}
	if in.Mode.FileType() == fsmode.Dir {
		return Handle[K]{}, fserr.New(fserr.EISDIR, "%s is a directory", path)
	}
	return fs.vfs.FilePayload(path)
}

// LookupPath, ReadDir, Stat, ChangeMode and ChangeOwners pass through to the
// underlying VirtFS so BinFS satisfies the VFS's filesystem interface
// alongside E5FS and DevFS.
func (fs *BinFS[K]) LookupPath(path string) (virtfs.INode, error) { return fs.vfs.LookupPath(path) }
func (fs *BinFS[K]) ReadDir(path string) (map[string]virtfs.DirEntry, error) {
	return fs.vfs.ReadDir(path)
}
func (fs *BinFS[K]) Stat(path string) (virtfs.INode, error) { return fs.vfs.Stat(path) }
func (fs *BinFS[K]) ChangeMode(path string, mode fsmode.FileMode) error {
	return fs.vfs.ChangeMode(path, mode)
}
func (fs *BinFS[K]) ChangeOwners(path string, uid, gid uint32) error {
	return fs.vfs.ChangeOwners(path, uid, gid)
}

// ReadFile returns a binary's bound name as text, matching VirtFS's payload
// contract.
func (fs *BinFS[K]) ReadFile(path string, count int) ([]byte, error) {
	return fs.vfs.ReadFile(path, count)
}

// WriteFile is rejected: binary bindings are fixed at AddBins time.
func (fs *BinFS[K]) WriteFile(path string, data []byte) error {
	return fs.vfs.WriteFile(path, data, decodeHandle[K](path))
}

// CreateFile, CreateDir, RemoveFile and ChangeTimes complete VirtFS
// passthrough so BinFS satisfies the VFS's uniform filesystem interface.
func (fs *BinFS[K]) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (virtfs.INode, error) {
	return fs.vfs.CreateFile(path, uid, gid, mode)
}
func (fs *BinFS[K]) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (virtfs.INode, error) {
	return fs.vfs.CreateDir(path, uid, gid, mode)
}
func (fs *BinFS[K]) RemoveFile(path string) error { return fs.vfs.RemoveFile(path) }
func (fs *BinFS[K]) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	return fs.vfs.ChangeTimes(path, atime, mtime, ctime)
}
