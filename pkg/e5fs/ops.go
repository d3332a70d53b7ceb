package e5fs

import (
	"strings"
	"time"

	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// splitPath splits an absolute path into its prefix components and final
// component, mirroring spec.md §4.4's lookup_path contract.
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

// LookupPath walks from the root inode (0) to path, per spec.md §4.4.
func (fs *FS) LookupPath(path string) (AddressSize, INode, error) {
	if path == "/" {
		in, err := fs.ReadInode(0)
		return 0, in, err
	}
	prefix, final, err := splitPath(path)
	if err != nil {
		return 0, INode{}, err
	}

	cur := AddressSize(0)
	curIn, err := fs.ReadInode(0)
	if err != nil {
		return 0, INode{}, err
	}
	for _, name := range prefix {
		if curIn.Mode.FileType() != fsmode.Dir {
			return 0, INode{}, fserr.New(fserr.ENOTDIR, "%s is not a directory", name)
		}
		next, ok, nerr := fs.lookupChild(&curIn, name)
		if nerr != nil {
			return 0, INode{}, nerr
		}
		if !ok {
			return 0, INode{}, fserr.New(fserr.ENOENT, "%s not found", name)
		}
		cur = next
		curIn, err = fs.ReadInode(cur)
		if err != nil {
			return 0, INode{}, err
		}
	}
	if curIn.Mode.FileType() != fsmode.Dir {
		return 0, INode{}, fserr.New(fserr.ENOTDIR, "%s is not a directory", final)
	}
	child, ok, err := fs.lookupChild(&curIn, final)
	if err != nil {
		return 0, INode{}, err
	}
	if !ok {
		return 0, INode{}, fserr.New(fserr.ENOENT, "%s not found", final)
	}
	childIn, err := fs.ReadInode(child)
	return child, childIn, err
}

func (fs *FS) lookupChild(dir *INode, name string) (AddressSize, bool, error) {
	entries, err := fs.readDirEntries(dir)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.InodeNumber, true, nil
		}
	}
	return 0, false, nil
}

// resolveParent resolves path's parent directory, requiring it be a
// directory. Returns zero values with ENOENT-style errors same as
// LookupPath.
func (fs *FS) resolveParent(path string) (AddressSize, INode, string, error) {
	prefix, final, err := splitPath(path)
	if err != nil {
		return 0, INode{}, "", err
	}
	parentPath := "/" + strings.Join(prefix, "/")
	if len(prefix) == 0 {
		parentPath = "/"
	}
	parentNum, parentIn, err := fs.LookupPath(parentPath)
	if err != nil {
		return 0, INode{}, "", err
	}
	if parentIn.Mode.FileType() != fsmode.Dir {
		return 0, INode{}, "", fserr.New(fserr.ENOTDIR, "%s is not a directory", parentPath)
	}
	return parentNum, parentIn, final, nil
}

func (fs *FS) addDirEntry(parentNum AddressSize, parent *INode, entry DirEntry) error {
	entries, err := fs.readDirEntries(parent)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == entry.Name {
			return fserr.New(fserr.EEXIST, "%s already exists", entry.Name)
		}
	}
	entries = append(entries, entry)
	return fs.writeDirEntries(parentNum, parent, entries)
}

func (fs *FS) removeDirEntry(parentNum AddressSize, parent *INode, name string) error {
	entries, err := fs.readDirEntries(parent)
	if err != nil {
		return err
	}
	out := entries[:0]
	found := false
	for _, e := range entries {
		if e.Name == name {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		return fserr.New(fserr.ENOENT, "%s not found", name)
	}
	return fs.writeDirEntries(parentNum, parent, out)
}

// CreateFile implements spec.md §4.4's create_file for E5FS.
func (fs *FS) CreateFile(path string, uid, gid uint32, mode fsmode.FileMode) (AddressSize, INode, error) {
	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return 0, INode{}, err
	}
	if _, ok, _ := fs.lookupChild(&parent, name); ok {
		return 0, INode{}, fserr.New(fserr.EINVAL, "%s already exists", path)
	}
	inum, in, err := fs.AllocateFile(uid, gid)
	if err != nil {
		return 0, INode{}, err
	}
	in.Mode = mode.WithFree(false).WithFileType(fsmode.File)
	in.LinksCount = 1
	if err := fs.WriteInode(inum, in); err != nil {
		return 0, INode{}, err
	}
	if err := fs.addDirEntry(parentNum, &parent, DirEntry{InodeNumber: inum, Name: name}); err != nil {
		return 0, INode{}, err
	}
	return inum, in, nil
}

// CreateDir implements spec.md §4.4's create_dir for E5FS: same as
// CreateFile, then set file_type to Dir and initialize entries "." and "..".
func (fs *FS) CreateDir(path string, uid, gid uint32, mode fsmode.FileMode) (AddressSize, INode, error) {
	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return 0, INode{}, err
	}
	if _, ok, _ := fs.lookupChild(&parent, name); ok {
		return 0, INode{}, fserr.New(fserr.EINVAL, "%s already exists", path)
	}
	inum, in, err := fs.AllocateFile(uid, gid)
	if err != nil {
		return 0, INode{}, err
	}
	in.Mode = mode.WithFree(false).WithFileType(fsmode.Dir)
	in.LinksCount = 2
	if err := fs.writeDirEntries(inum, &in, []DirEntry{{InodeNumber: inum, Name: "."}, {InodeNumber: parentNum, Name: ".."}}); err != nil {
		return 0, INode{}, err
	}
	if err := fs.addDirEntry(parentNum, &parent, DirEntry{InodeNumber: inum, Name: name}); err != nil {
		return 0, INode{}, err
	}
	return inum, in, nil
}

// ReadDir returns path's directory entries keyed by name.
func (fs *FS) ReadDir(path string) (map[string]DirEntry, error) {
	_, in, err := fs.LookupPath(path)
	if err != nil {
		return nil, err
	}
	if in.Mode.FileType() != fsmode.Dir {
		return nil, fserr.New(fserr.ENOTDIR, "%s is not a directory", path)
	}
	entries, err := fs.readDirEntries(&in)
	if err != nil {
		return nil, err
	}
	out := make(map[string]DirEntry, len(entries))
	for _, e := range entries {
		out[e.Name] = e
	}
	return out, nil
}

// Stat projects path's inode fields.
func (fs *FS) Stat(path string) (INode, error) {
	_, in, err := fs.LookupPath(path)
	return in, err
}

// ReadFile reads up to count bytes of path's content.
func (fs *FS) ReadFile(path string, count int) ([]byte, error) {
	_, in, err := fs.LookupPath(path)
	if err != nil {
		return nil, err
	}
	if in.Mode.FileType() == fsmode.Dir {
		return nil, fserr.New(fserr.EISDIR, "%s is a directory", path)
	}
	data, err := fs.readAllBlocks(&in)
	if err != nil {
		return nil, err
	}
	if count >= 0 && count < len(data) {
		data = data[:count]
	}
	return data, nil
}

// WriteFile overwrites path's content with data.
func (fs *FS) WriteFile(path string, data []byte) error {
	inum, in, err := fs.LookupPath(path)
	if err != nil {
		return err
	}
	if in.Mode.FileType() == fsmode.Dir {
		return fserr.New(fserr.EISDIR, "%s is a directory", path)
	}
	in.Mtime = uint32(time.Now().Unix())
	return fs.writeAllBlocks(inum, &in, data)
}

// RemoveFile unlinks name from its parent directory and releases its
// blocks and inode. Directories must be empty (only "." and "..").
func (fs *FS) RemoveFile(path string) error {
	parentNum, parent, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	childNum, ok, err := fs.lookupChild(&parent, name)
	if err != nil {
		return err
	}
	if !ok {
		return fserr.New(fserr.ENOENT, "%s not found", path)
	}
	childIn, err := fs.ReadInode(childNum)
	if err != nil {
		return err
	}
	if childIn.Mode.FileType() == fsmode.Dir {
		entries, err := fs.readDirEntries(&childIn)
		if err != nil {
			return err
		}
		if len(entries) > 2 {
			return fserr.New(fserr.EINVAL, "%s is not empty", path)
		}
	}
	if err := fs.freeInodeBlocks(&childIn); err != nil {
		return err
	}
	freed := NewFreeInode()
	if err := fs.WriteInode(childNum, freed); err != nil {
		return err
	}
	fs.sb.FreeInodesCount++
	if err := fs.WriteSuperblock(); err != nil {
		return err
	}
	return fs.removeDirEntry(parentNum, &parent, name)
}

func (fs *FS) freeInodeBlocks(in *INode) error {
	for _, b := range in.DirectBlockNumbers {
		if b != NoAddress {
			if err := fs.ReleaseBlock(b); err != nil {
				return err
			}
		}
	}
	perIndirect := fs.sb.AddressesPerFBLChunk()
	for _, ib := range in.IndirectBlockNumbers {
		if ib == NoAddress {
			continue
		}
		chunk, err := fs.readFBLChunk(ib, perIndirect)
		if err != nil {
			return err
		}
		for _, addr := range chunk {
			if addr != NoAddress {
				if err := fs.ReleaseBlock(addr); err != nil {
					return err
				}
			}
		}
		if err := fs.ReleaseBlock(ib); err != nil {
			return err
		}
	}
	return nil
}

// ChangeMode overwrites path's mode.
func (fs *FS) ChangeMode(path string, mode fsmode.FileMode) error {
	inum, in, err := fs.LookupPath(path)
	if err != nil {
		return err
	}
	in.Mode = mode.WithFileType(in.Mode.FileType()).WithFree(false)
	in.Ctime = uint32(time.Now().Unix())
	return fs.WriteInode(inum, in)
}

// ChangeOwners overwrites path's uid/gid.
func (fs *FS) ChangeOwners(path string, uid, gid uint32) error {
	inum, in, err := fs.LookupPath(path)
	if err != nil {
		return err
	}
	in.UID, in.GID = uid, gid
	in.Ctime = uint32(time.Now().Unix())
	return fs.WriteInode(inum, in)
}

// ChangeTimes overwrites path's atime/mtime/ctime (spec.md §4.3's open
// question on change_times, resolved: same family as VirtFS's analogous
// operation).
func (fs *FS) ChangeTimes(path string, atime, mtime, ctime uint32) error {
	inum, in, err := fs.LookupPath(path)
	if err != nil {
		return err
	}
	in.Atime, in.Mtime, in.Ctime = atime, mtime, ctime
	return fs.WriteInode(inum, in)
}

// Rename moves oldPath to newPath within this filesystem instance.
func (fs *FS) Rename(oldPath, newPath string) error {
	oldParentNum, oldParent, oldName, err := fs.resolveParent(oldPath)
	if err != nil {
		return err
	}
	childNum, ok, err := fs.lookupChild(&oldParent, oldName)
	if err != nil {
		return err
	}
	if !ok {
		return fserr.New(fserr.ENOENT, "%s not found", oldPath)
	}
	newParentNum, newParent, newName, err := fs.resolveParent(newPath)
	if err != nil {
		return err
	}
	if _, ok, _ := fs.lookupChild(&newParent, newName); ok {
		return fserr.New(fserr.EEXIST, "%s already exists", newPath)
	}
	if err := fs.addDirEntry(newParentNum, &newParent, DirEntry{InodeNumber: childNum, Name: newName}); err != nil {
		return err
	}
	return fs.removeDirEntry(oldParentNum, &oldParent, oldName)
}
