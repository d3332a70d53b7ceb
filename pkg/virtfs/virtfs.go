// Package virtfs implements the generic in-memory pseudo-filesystem engine
// from spec.md §4.4: fixed-size parallel inode and payload arrays,
// parameterised by a payload type. DevFS and BinFS are both VirtFS
// instances with different payload types (spec.md §4.5, §4.6).
//
// Grounded on the teacher's in-core inode registry (pkg/jdfs/fsd.go's
// icFSD: a flat slice of inode records plus a free-list of slot indices) —
// here the registry owns the canonical state directly instead of caching a
// real filesystem's, and is generic over the payload carried per file.
package virtfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// Payload is the constraint on a VirtFS's file payload type: it must be
// representable as text, so read_file's "serialize payload via text form"
// contract (spec.md §4.4) and directory listings stay tractable, per
// spec.md §9's note on function-valued payloads needing printable values.
type Payload interface {
	fmt.Stringer
}

// INode is VirtFS's in-memory inode record (spec.md §4.4).
type INode struct {
	Mode          fsmode.FileMode
	LinksCount    uint32
	UID, GID      uint32
	FileSize      uint64
	Atime         uint32
	Mtime         uint32
	Ctime         uint32
	Btime         uint32
	PayloadNumber uint64
	Number        uint64
}

// DirEntry is one (inode number, name) pair inside a directory payload.
type DirEntry struct {
	InodeNumber uint64
	Name        string
}

// slot is one payload: a tagged union of a directory map (isDir) and a file
// value.
type slot[T Payload] struct {
	isDir bool
	dir   map[string]DirEntry
	file  T
}

// VirtFS is a fixed-capacity, in-memory filesystem over payload type T.
type VirtFS[T Payload] struct {
	inodes    []INode
	payloads  []*slot[T]
	freeInode []uint64 // stack of free inode indices; a claim pops the last one
}

// New constructs a VirtFS with room for capacity inodes, with inode 0
// initialized as the root directory containing "." and ".." (spec.md §4.4).
func New[T Payload](capacity int) *VirtFS[T] {
	vfs := &VirtFS[T]{
		inodes:   make([]INode, capacity),
		payloads: make([]*slot[T], capacity),
	}
	for i := range vfs.inodes {
		vfs.inodes[i] = INode{Mode: fsmode.New(true, fsmode.File, 0, 0, 0), Number: uint64(i)}
	}
	for i := capacity - 1; i >= 1; i-- {
		vfs.freeInode = append(vfs.freeInode, uint64(i))
	}

	now := uint32(time.Now().Unix())
	root := INode{
		Mode: fsmode.New(false, fsmode.Dir, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec,
			fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec),
		LinksCount: 2, Atime: now, Mtime: now, Ctime: now, Btime: now,
		PayloadNumber: 0, Number: 0,
	}
	vfs.inodes[0] = root
	vfs.payloads[0] = &slot[T]{isDir: true, dir: map[string]DirEntry{
		".":  {InodeNumber: 0, Name: "."},
		"..": {InodeNumber: 0, Name: ".."},
	}}
	return vfs
}

func splitPath(path string) (prefix []string, final string, err error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, "", fserr.New(fserr.EINVAL, "not an absolute path: %q", path)
	}
	if path == "/" {
		return nil, "", nil
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return nil, "", fserr.New(fserr.EINVAL, "empty path component in %q", path)
		}
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// LookupPath implements spec.md §4.4's lookup_path.
func (vfs *VirtFS[T]) LookupPath(path string) (INode, error) {
	if path == "/" {
		return vfs.inodes[0], nil
	}
	prefix, final, err := splitPath(path)
	if err != nil {
		return INode{}, err
	}

	cur := uint64(0)
	for _, name := range prefix {
		curSlot := vfs.payloads[cur]
		if curSlot == nil || !curSlot.isDir {
			return INode{}, fserr.New(fserr.ENOTDIR, "%s is not a directory", name)
		}
		e, ok := curSlot.dir[name]
		if !ok {
			return INode{}, fserr.New(fserr.ENOENT, "%s not found", name)
		}
		cur = e.InodeNumber
	}

	curSlot := vfs.payloads[cur]
	if curSlot == nil || !curSlot.isDir {
		return INode{}, fserr.New(fserr.ENOTDIR, "%s is not a directory", final)
	}
	e, ok := curSlot.dir[final]
	if !ok {
		return INode{}, fserr.New(fserr.ENOENT, "%s not found", final)
	}
	return vfs.inodes[e.InodeNumber], nil
}

func (vfs *VirtFS[T]) resolveParent(path string) (parentNum uint64, final string, err error) {
	prefix, final, err := splitPath(path)
	if err != nil {
		return 0, "", err
	}
	parentPath := "/" + strings.Join(prefix, "/")
	if len(prefix) == 0 {
		parentPath = "/"
	}
	parentIn, err := vfs.LookupPath(parentPath)
	if err != nil {
		return 0, "", err
	}
	if parentIn.Mode.FileType() != fsmode.Dir {
		return 0, "", fserr.New(fserr.ENOTDIR, "%s is not a directory", parentPath)
	}
	return parentIn.Number, final, nil
}

func (vfs *VirtFS[T]) claimFreeInode() (uint64, error) {
	n := len(vfs.freeInode)
	if n == 0 {
		return 0, fserr.New(fserr.ENOSPC, "no free inodes")
	}
	idx := vfs.freeInode[n-1]
	vfs.freeInode = vfs.freeInode[:n-1]
	vfs.inodes[idx].Mode = vfs.inodes[idx].Mode.WithFree(false)
	return idx, nil
}

// createCommon implements the create_file/create_dir shared prefix from
// spec.md §4.4: split path, require parent is a directory, require the
// final component is unclaimed, allocate an inode, link it into the parent.
func (vfs *VirtFS[T]) createCommon(path string, uid, gid uint32, mode fsmode.FileMode) (uint64, error) {
	parentNum, name, err := vfs.resolveParent(path)
	if err != nil {
		return 0, err
	}
	parentSlot := vfs.payloads[parentNum]
	if _, exists := parentSlot.dir[name]; exists {
		return 0, fserr.New(fserr.EINVAL, "%s already exists", path)
	}
	inum, err := vfs.claimFreeInode()
	if err != nil {
		return 0, err
	}
	now := uint32(time.Now().Unix())
	vfs.inodes[inum].Mode = mode.WithFree(false)
	vfs.inodes[inum].UID = uid
	vfs.inodes[inum].GID = gid
	vfs.inodes[inum].Atime, vfs.inodes[inum].Mtime, vfs.inodes[inum].Ctime, vfs.inodes[inum].Btime = now, now, now, now
	vfs.inodes[inum].PayloadNumber = inum
	vfs.inodes[inum].LinksCount = 1

	parentSlot.dir[name] = DirEntry{InodeNumber: inum, Name: name}
	return inum, nil
}

// CreateFile implements spec.md §4.4's create_file.
func (vfs *VirtFS[T]) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (INode, error) {
	inum, err := vfs.createCommon(path, uid, gid, mode.WithFileType(fsmode.File))
	if err != nil {
		return INode{}, err
	}
	var zero T
	vfs.payloads[inum] = &slot[T]{isDir: false, file: zero}
	return vfs.inodes[inum], nil
}

// CreateDir implements spec.md §4.4's create_dir.
func (vfs *VirtFS[T]) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (INode, error) {
	inum, err := vfs.createCommon(path, uid, gid, mode.WithFileType(fsmode.Dir))
	if err != nil {
		return INode{}, err
	}
	parentNum, _, _ := vfs.resolveParent(path)
	vfs.inodes[inum].LinksCount = 2
	vfs.payloads[inum] = &slot[T]{isDir: true, dir: map[string]DirEntry{
		".":  {InodeNumber: inum, Name: "."},
		"..": {InodeNumber: parentNum, Name: ".."},
	}}
	return vfs.inodes[inum], nil
}

// SetFilePayload overwrites the payload of an already-created file inode,
// used by DevFS/BinFS immediately after CreateFile to attach their typed
// value.
func (vfs *VirtFS[T]) SetFilePayload(inum uint64, value T) {
	vfs.payloads[inum] = &slot[T]{isDir: false, file: value}
}

// ReadFile implements spec.md §4.4's read_file: the payload's text form,
// truncated to count bytes.
func (vfs *VirtFS[T]) ReadFile(path string, count int) ([]byte, error) {
	in, err := vfs.LookupPath(path)
	if err != nil {
		return nil, err
	}
	s := vfs.payloads[in.PayloadNumber]
	if s == nil || s.isDir {
		return nil, fserr.New(fserr.EISDIR, "%s is a directory", path)
	}
	text := s.file.String()
	if count >= 0 && count < len(text) {
		text = text[:count]
	}
	return []byte(text), nil
}

// WriteFile overwrites path's payload with decode(data), per spec.md
// §4.4's open question: "overwrite payload with the given bytes, using a
// caller-supplied decoder from bytes to T".
func (vfs *VirtFS[T]) WriteFile(path string, data []byte, decode func([]byte) (T, error)) error {
	in, err := vfs.LookupPath(path)
	if err != nil {
		return err
	}
	s := vfs.payloads[in.PayloadNumber]
	if s == nil || s.isDir {
		return fserr.New(fserr.EISDIR, "%s is a directory", path)
	}
	value, err := decode(data)
	if err != nil {
		return fserr.New(fserr.EINVAL, "decode payload for %s: %s", path, err)
	}
	s.file = value
	vfs.inodes[in.Number].FileSize = uint64(len(data))
	vfs.inodes[in.Number].Mtime = uint32(time.Now().Unix())
	return nil
}

// ReadDir implements spec.md §4.4's read_dir.
func (vfs *VirtFS[T]) ReadDir(path string) (map[string]DirEntry, error) {
	in, err := vfs.LookupPath(path)
	if err != nil {
		return nil, err
	}
	s := vfs.payloads[in.PayloadNumber]
	if s == nil || !s.isDir {
		return nil, fserr.New(fserr.ENOTDIR, "%s is not a directory", path)
	}
	out := make(map[string]DirEntry, len(s.dir))
	for k, v := range s.dir {
		out[k] = v
	}
	return out, nil
}

// Stat implements spec.md §4.4's stat.
func (vfs *VirtFS[T]) Stat(path string) (INode, error) { return vfs.LookupPath(path) }

// ChangeMode implements spec.md §4.4's change_mode.
func (vfs *VirtFS[T]) ChangeMode(path string, mode fsmode.FileMode) error {
	in, err := vfs.LookupPath(path)
	if err != nil {
		return err
	}
	vfs.inodes[in.Number].Mode = mode.WithFileType(in.Mode.FileType()).WithFree(false)
	vfs.inodes[in.Number].Ctime = uint32(time.Now().Unix())
	return nil
}

// ChangeOwners is the VirtFS analogue of E5FS's change_owners.
func (vfs *VirtFS[T]) ChangeOwners(path string, uid, gid uint32) error {
	in, err := vfs.LookupPath(path)
	if err != nil {
		return err
	}
	vfs.inodes[in.Number].UID = uid
	vfs.inodes[in.Number].GID = gid
	vfs.inodes[in.Number].Ctime = uint32(time.Now().Unix())
	return nil
}

// ChangeTimes implements spec.md §4.4's change_times, left as an open
// question there; resolved here the same way as E5FS's: overwrite the three
// timestamp fields directly.
func (vfs *VirtFS[T]) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	in, err := vfs.LookupPath(path)
	if err != nil {
		return err
	}
	vfs.inodes[in.Number].Atime = atime
	vfs.inodes[in.Number].Mtime = mtime
	vfs.inodes[in.Number].Ctime = ctime
	return nil
}

// RemoveFile unlinks name from its parent and frees its inode/payload slot.
// Directories must be empty (only "." and "..").
func (vfs *VirtFS[T]) RemoveFile(path string) error {
	parentNum, name, err := vfs.resolveParent(path)
	if err != nil {
		return err
	}
	parentSlot := vfs.payloads[parentNum]
	e, ok := parentSlot.dir[name]
	if !ok {
		return fserr.New(fserr.ENOENT, "%s not found", path)
	}
	childSlot := vfs.payloads[e.InodeNumber]
	if childSlot.isDir && len(childSlot.dir) > 2 {
		return fserr.New(fserr.EINVAL, "%s is not empty", path)
	}
	delete(parentSlot.dir, name)
	vfs.payloads[e.InodeNumber] = nil
	vfs.inodes[e.InodeNumber] = INode{Mode: fsmode.New(true, fsmode.File, 0, 0, 0), Number: e.InodeNumber}
	vfs.freeInode = append(vfs.freeInode, e.InodeNumber)
	return nil
}

// FilePayload returns the typed payload stored at path, for callers (DevFS,
// BinFS) that need the raw value rather than its text form.
func (vfs *VirtFS[T]) FilePayload(path string) (T, error) {
	var zero T
	in, err := vfs.LookupPath(path)
	if err != nil {
		return zero, err
	}
	s := vfs.payloads[in.PayloadNumber]
	if s == nil || s.isDir {
		return zero, fserr.New(fserr.EISDIR, "%s is a directory", path)
	}
	return s.file, nil
}
