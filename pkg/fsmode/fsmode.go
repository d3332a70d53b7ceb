// Package fsmode implements the packed FileMode bitfield that is part of
// E5FS's on-disk contract (spec.md §3): a 16-bit value combining a free
// flag, a file-type tag, and three rwx permission triples.
package fsmode

import "fmt"

// FileMode is the 16-bit packed permission/type/free bitfield. Bit layout,
// most significant bit first:
//
//	bit 15     free      (1 = inode slot unused)
//	bits 14-12 file_type (3 bits, see FileType consts)
//	bits 11-9  user      (r,w,x)
//	bits 8-6   group     (r,w,x)
//	bits 5-3   others    (r,w,x)
//	bits 2-0   reserved, always zero
//
// The file_type field is 3 bits wide, not 2: it must admit five values
// (File, Dir, Sys, Block, Char), which a 2-bit field cannot hold.
type FileMode uint16

// FileType enumerates the inode kinds addressable by FileMode's file_type
// field, in the order the on-disk layout assigns them.
type FileType uint8

const (
	File FileType = iota
	Dir
	Sys
	Block
	Char
)

func (t FileType) String() string {
	switch t {
	case File:
		return "file"
	case Dir:
		return "dir"
	case Sys:
		return "sys"
	case Block:
		return "block"
	case Char:
		return "char"
	default:
		return fmt.Sprintf("filetype(%d)", uint8(t))
	}
}

// Perm is one rwx permission triple, packed into the low 3 bits of its
// field: r=4, w=2, x=1.
type Perm uint8

const (
	PermRead  Perm = 4
	PermWrite Perm = 2
	PermExec  Perm = 1
)

func (p Perm) CanRead() bool  { return p&PermRead != 0 }
func (p Perm) CanWrite() bool { return p&PermWrite != 0 }
func (p Perm) CanExec() bool  { return p&PermExec != 0 }

const (
	freeShift     = 15
	fileTypeShift = 12
	fileTypeMask  = 0x7
	userShift     = 9
	groupShift    = 6
	othersShift   = 3
	permMask      = 0x7
)

// New builds a FileMode from its constituent fields.
func New(free bool, ft FileType, user, group, others Perm) FileMode {
	var m FileMode
	if free {
		m |= 1 << freeShift
	}
	m |= FileMode(ft&fileTypeMask) << fileTypeShift
	m |= FileMode(user&permMask) << userShift
	m |= FileMode(group&permMask) << groupShift
	m |= FileMode(others&permMask) << othersShift
	return m
}

func (m FileMode) Free() bool        { return m&(1<<freeShift) != 0 }
func (m FileMode) FileType() FileType { return FileType((m >> fileTypeShift) & fileTypeMask) }
func (m FileMode) User() Perm        { return Perm((m >> userShift) & permMask) }
func (m FileMode) Group() Perm       { return Perm((m >> groupShift) & permMask) }
func (m FileMode) Others() Perm      { return Perm((m >> othersShift) & permMask) }

// WithFree returns m with the free bit set/cleared, all other fields kept.
func (m FileMode) WithFree(free bool) FileMode {
	if free {
		return m | (1 << freeShift)
	}
	return m &^ (1 << freeShift)
}

// WithFileType returns m with file_type replaced, preserving every other
// field (per spec.md §4.2).
func (m FileMode) WithFileType(ft FileType) FileMode {
	return (m &^ (fileTypeMask << fileTypeShift)) | FileMode(ft&fileTypeMask)<<fileTypeShift
}

func (m FileMode) WithUser(p Perm) FileMode {
	return (m &^ (permMask << userShift)) | FileMode(p&permMask)<<userShift
}

func (m FileMode) WithGroup(p Perm) FileMode {
	return (m &^ (permMask << groupShift)) | FileMode(p&permMask)<<groupShift
}

func (m FileMode) WithOthers(p Perm) FileMode {
	return (m &^ (permMask << othersShift)) | FileMode(p&permMask)<<othersShift
}

// PermFor returns the permission triple applicable to the (uid, gid,
// supplementary gids) identity against an inode owned by (ownerUID,
// ownerGID). Root is handled separately by callers (vfs), not here.
func (m FileMode) PermFor(uid, ownerUID, gid, ownerGID uint32, supplementary []uint32) Perm {
	if uid == ownerUID {
		return m.User()
	}
	if gid == ownerGID {
		return m.Group()
	}
	for _, g := range supplementary {
		if g == ownerGID {
			return m.Group()
		}
	}
	return m.Others()
}

func (m FileMode) String() string {
	triplet := func(p Perm) string {
		r, w, x := "-", "-", "-"
		if p.CanRead() {
			r = "r"
		}
		if p.CanWrite() {
			w = "w"
		}
		if p.CanExec() {
			x = "x"
		}
		return r + w + x
	}
	free := "-"
	if m.Free() {
		free = "f"
	}
	return fmt.Sprintf("%s%s%s%s%s", free, m.FileType(), triplet(m.User()), triplet(m.Group()), triplet(m.Others()))
}
