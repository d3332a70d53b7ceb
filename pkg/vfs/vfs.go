// Package vfs is the mount-table and permission-gate layer from spec.md
// §4.7: it owns no storage of its own, matching an absolute path against
// the longest-prefix mount point and delegating the mount-relative
// remainder to the concrete filesystem (E5FS, DevFS, BinFS) registered
// there, after a uniform permission check against the current identity.
//
// Grounded on the teacher's connection-level dispatch in pkg/jdfs/fsops.go,
// which routes an incoming operation to the right in-core handler after
// validating the caller's credentials; here the "connection" is always
// local and the credentials come from the Kernel's current identity instead
// of an HBI peer.
package vfs

import (
	"strings"

	"github.com/nativerv/eunix/pkg/binfs"
	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// RootUID is the identity that bypasses every permission check (spec.md
// §4.7).
const RootUID = 0

// Info is the subset of a concrete filesystem's inode fields the VFS needs
// for permission checks and for returning stat results, independent of
// whether the backing filesystem is E5FS or a VirtFS instance.
type Info struct {
	Mode  fsmode.FileMode
	UID   uint32
	GID   uint32
	Size  uint64
	Atime uint32
	Mtime uint32
	Ctime uint32
}

// Entry is one name in a directory listing; it carries no inode number.
type Entry struct {
	Name string
}

// FileSystem is the uniform surface every mounted filesystem exposes to the
// VFS, keyed by a path relative to its own mount point.
type FileSystem interface {
	LookupPath(path string) (Info, error)
	Stat(path string) (Info, error)
	ReadDir(path string) (map[string]Entry, error)
	ReadFile(path string, count int) ([]byte, error)
	WriteFile(path string, data []byte) error
	CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error)
	CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error)
	RemoveFile(path string) error
	ChangeMode(path string, mode fsmode.FileMode) error
	ChangeOwners(path string, uid, gid uint32) error
	ChangeTimes(path string, atime, mtime, ctime uint32) error
}

// Identity is the current caller credentials permission checks run against
// (spec.md §4.8's current_uid/current_gid/supplementary gids).
type Identity struct {
	UID               uint32
	GID               uint32
	SupplementaryGIDs []uint32
}

// VFS is the mount table plus current identity.
type VFS struct {
	mounts   map[string]FileSystem
	identity Identity
}

// New constructs a VFS with no mounts; a path operation fails with ENOENT
// until some mount point covers that path.
func New() *VFS {
	return &VFS{mounts: make(map[string]FileSystem)}
}

// SetIdentity implements the propagation side of spec.md §4.8's
// update_vfs_current_uid_gid: the Kernel calls this whenever current
// identity changes so permission checks see it.
func (v *VFS) SetIdentity(id Identity) { v.identity = id }

// Mount registers fs at the absolute mount point target.
func (v *VFS) Mount(target string, fs FileSystem) error {
	if _, _, err := SplitPath(target); err != nil {
		return err
	}
	v.mounts[target] = fs
	return nil
}

// SplitPath implements spec.md §4.7's split_path.
func SplitPath(path string) (prefix []string, final string, err error) {
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

// ParentDir implements spec.md §4.7's parent_dir.
func ParentDir(path string) (string, error) {
	prefix, _, err := SplitPath(path)
	if err != nil {
		return "", err
	}
	if path == "/" {
		return "", fserr.New(fserr.EINVAL, "root has no parent")
	}
	if len(prefix) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(prefix, "/"), nil
}

func pathComponents(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// MatchMountPoint implements spec.md §4.7's match_mount_point: the
// registered mount point with the longest component-wise prefix match
// against path, plus the mount-relative remainder re-prefixed with "/".
func (v *VFS) MatchMountPoint(path string) (mountPoint string, relative string, fs FileSystem, err error) {
	if _, _, err := SplitPath(path); err != nil {
		return "", "", nil, err
	}
	comps := pathComponents(path)

	bestLen := -1
	for mp := range v.mounts {
		mpComps := pathComponents(mp)
		if len(mpComps) > len(comps) {
			continue
		}
		match := true
		for i, c := range mpComps {
			if comps[i] != c {
				match = false
				break
			}
		}
		if match && len(mpComps) > bestLen {
			bestLen = len(mpComps)
			mountPoint = mp
		}
	}
	if bestLen < 0 {
		return "", "", nil, fserr.New(fserr.ENOENT, "no mount point covers %s", path)
	}

	rel := "/" + strings.Join(comps[bestLen:], "/")
	return mountPoint, rel, v.mounts[mountPoint], nil
}

func (v *VFS) checkRead(path string, info Info) error  { return v.check(path, info, readBit) }
func (v *VFS) checkWrite(path string, info Info) error { return v.check(path, info, writeBit) }
func (v *VFS) checkExec(path string, info Info) error  { return v.check(path, info, execBit) }

type bitKind int

const (
	readBit bitKind = iota
	writeBit
	execBit
)

func (v *VFS) check(path string, info Info, kind bitKind) error {
	if v.identity.UID == RootUID {
		return nil
	}
	perm := info.Mode.PermFor(v.identity.UID, info.UID, v.identity.GID, info.GID, v.identity.SupplementaryGIDs)
	var ok bool
	switch kind {
	case readBit:
		ok = perm.CanRead()
	case writeBit:
		ok = perm.CanWrite()
	case execBit:
		ok = perm.CanExec()
	}
	if !ok {
		return fserr.New(fserr.EACCES, "permission denied: %s", path)
	}
	return nil
}

// LookupPath dispatches to the matched filesystem with no permission check
// (spec.md §4.7 only gates the named operations below, lookup itself is
// read-through so traversal can report ENOENT/ENOTDIR before EACCES).
func (v *VFS) LookupPath(path string) (Info, error) {
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return Info{}, err
	}
	info, err := fs.LookupPath(rel)
	if err != nil {
		return Info{}, fserr.WithPath(err, path)
	}
	return info, nil
}

func (v *VFS) Stat(path string) (Info, error) { return v.LookupPath(path) }

func (v *VFS) ReadDir(path string) (map[string]Entry, error) {
	info, err := v.LookupPath(path)
	if err != nil {
		return nil, err
	}
	if err := v.checkRead(path, info); err != nil {
		return nil, err
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(rel)
	if err != nil {
		return nil, fserr.WithPath(err, path)
	}
	return entries, nil
}

func (v *VFS) ReadFile(path string, count int) ([]byte, error) {
	info, err := v.LookupPath(path)
	if err != nil {
		return nil, err
	}
	if err := v.checkRead(path, info); err != nil {
		return nil, err
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(rel, count)
	if err != nil {
		return nil, fserr.WithPath(err, path)
	}
	return data, nil
}

func (v *VFS) WriteFile(path string, data []byte) error {
	info, err := v.LookupPath(path)
	if err != nil {
		return err
	}
	if err := v.checkWrite(path, info); err != nil {
		return err
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return err
	}
	return fserr.WithPath(fs.WriteFile(rel, data), path)
}

func (v *VFS) create(path string, uid, gid uint32, mode fsmode.FileMode, dir bool) (Info, error) {
	parent, err := ParentDir(path)
	if err != nil {
		return Info{}, err
	}
	parentInfo, err := v.LookupPath(parent)
	if err != nil {
		return Info{}, err
	}
	if err := v.checkWrite(parent, parentInfo); err != nil {
		return Info{}, err
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if dir {
		info, err = fs.CreateDir(rel, uid, gid, mode)
	} else {
		info, err = fs.CreateFile(rel, uid, gid, mode)
	}
	if err != nil {
		return Info{}, fserr.WithPath(err, path)
	}
	return info, nil
}

func (v *VFS) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	return v.create(path, uid, gid, mode, false)
}

func (v *VFS) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (Info, error) {
	return v.create(path, uid, gid, mode, true)
}

func (v *VFS) RemoveFile(path string) error {
	parent, err := ParentDir(path)
	if err != nil {
		return err
	}
	parentInfo, err := v.LookupPath(parent)
	if err != nil {
		return err
	}
	if err := v.checkWrite(parent, parentInfo); err != nil {
		return err
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return err
	}
	return fserr.WithPath(fs.RemoveFile(rel), path)
}

// ChangeMode requires uid match or root (spec.md §4.7).
func (v *VFS) ChangeMode(path string, mode fsmode.FileMode) error {
	info, err := v.LookupPath(path)
	if err != nil {
		return err
	}
	if v.identity.UID != RootUID && v.identity.UID != info.UID {
		return fserr.New(fserr.EPERM, "chmod %s: not owner", path)
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return err
	}
	return fserr.WithPath(fs.ChangeMode(rel, mode), path)
}

// ChangeOwners requires root, unless the caller owns the inode and the new
// uid is unchanged (group-only change), per spec.md §4.7.
func (v *VFS) ChangeOwners(path string, uid, gid uint32) error {
	info, err := v.LookupPath(path)
	if err != nil {
		return err
	}
	allowed := v.identity.UID == RootUID || (v.identity.UID == info.UID && uid == info.UID)
	if !allowed {
		return fserr.New(fserr.EPERM, "chown %s: not permitted", path)
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return err
	}
	return fserr.WithPath(fs.ChangeOwners(rel, uid, gid), path)
}

func (v *VFS) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	info, err := v.LookupPath(path)
	if err != nil {
		return err
	}
	if err := v.checkWrite(path, info); err != nil {
		return err
	}
	_, rel, fs, err := v.MatchMountPoint(path)
	if err != nil {
		return err
	}
	return fserr.WithPath(fs.ChangeTimes(rel, atime, mtime, ctime), path)
}

// CheckExec is exercised by binary dispatch (spec.md §4.9), which requires
// exec permission on the resolved binary before invoking its handle.
func (v *VFS) CheckExec(path string) error {
	info, err := v.LookupPath(path)
	if err != nil {
		return err
	}
	return v.checkExec(path, info)
}

// DeviceResolver is implemented by mounted filesystems that back device
// nodes (DevFS), letting the Kernel resolve an e5fs mount's source path to
// the already-open ByteDevice behind it (spec.md §4.8's mount("e5fs", ...)
// requirement that source live under a DevFS mount).
type DeviceResolver interface {
	Device(path string) (bytedev.ByteDevice, error)
}

// BinaryLookup is implemented by mounted filesystems that resolve names to
// invocable handles (BinFS), used by the Kernel's binary dispatcher.
type BinaryLookup[K any] interface {
	LookupBinary(path string) (binfs.Handle[K], error)
}
