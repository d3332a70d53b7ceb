// Package e5fs implements the E5FS on-disk filesystem: superblock, inode
// table, block table, and free-block list (spec.md §3–§4.3), laid out
// byte-exact per spec.md §6. Serialization follows the teacher's own
// little-endian, fixed-width-field encoding style (pkg/jdfs uses syscall
// structs the same way against os.File); here it is done explicitly with
// encoding/binary since E5FS, unlike jdfs, owns its own on-disk format
// rather than proxying the host filesystem's.
package e5fs

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/nativerv/eunix/pkg/fserr"
)

// AddressSize is the wire type for block and inode numbers.
type AddressSize = uint64

// NoAddress is the sentinel denoting "absent" for an AddressSize field.
const NoAddress AddressSize = 1<<64 - 1

const (
	DirectBlockCount   = 12
	IndirectBlockCount = 3

	// FilesystemTypeTag is the ASCII magic stamped into Superblock.FilesystemType.
	FilesystemTypeTag = "e5fs"
	fsTypeTagSize     = 16

	addressSizeBytes = 8
)

// Superblock is the filesystem's global header, always at device offset 0.
type Superblock struct {
	FilesystemType [fsTypeTagSize]byte

	// BlocksCount is both "filesystem size (blocks)" and "total blocks" from
	// spec.md §3 — on this layout there is exactly one notion of block
	// count, so the two prose fields collapse into one on-disk field.
	BlocksCount uint64

	InodeTableSize       uint64
	InodeTablePercentage float32

	FreeInodesCount uint64
	FreeBlocksCount uint64

	InodesCount uint64

	// BlockSize and BlockDataSize are equal in this implementation: blocks
	// carry no per-block header, so the raw block size is exactly its data
	// capacity. Both fields are kept to match spec.md §3's field list.
	BlockSize     uint64
	BlockDataSize uint64

	FreeInodesCache     [16]uint64
	FirstFBLBlockNumber uint64

	// FSID is an instance-identifying tag, not part of spec.md's byte-exact
	// contract; stored past the fixed fields (SPEC_FULL.md §DOMAIN STACK).
	// Nothing besides UnmarshalSuperblock reads it back.
	FSID [16]byte
}

// SuperblockSize is the fixed on-disk size of a serialized Superblock.
const SuperblockSize = fsTypeTagSize +
	8 + 8 + 4 + 8 + 8 + 8 + 8 + 8 + 16*8 + 8 + 16

func newFSID() [16]byte {
	id := uuid.New()
	var b [16]byte
	copy(b[:], id[:])
	return b
}

// AddressesPerFBLChunk is how many AddressSize entries fit in one FBL block.
func (sb *Superblock) AddressesPerFBLChunk() int {
	return int(sb.BlockDataSize / addressSizeBytes)
}

// Marshal encodes sb in the declared field order, little-endian, fixed
// width (spec.md §6.1).
func (sb *Superblock) Marshal() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(SuperblockSize)
	buf.Write(sb.FilesystemType[:])
	_ = binary.Write(buf, binary.LittleEndian, sb.BlocksCount)
	_ = binary.Write(buf, binary.LittleEndian, sb.InodeTableSize)
	_ = binary.Write(buf, binary.LittleEndian, sb.InodeTablePercentage)
	_ = binary.Write(buf, binary.LittleEndian, sb.FreeInodesCount)
	_ = binary.Write(buf, binary.LittleEndian, sb.FreeBlocksCount)
	_ = binary.Write(buf, binary.LittleEndian, sb.InodesCount)
	_ = binary.Write(buf, binary.LittleEndian, sb.BlockSize)
	_ = binary.Write(buf, binary.LittleEndian, sb.BlockDataSize)
	_ = binary.Write(buf, binary.LittleEndian, sb.FreeInodesCache)
	_ = binary.Write(buf, binary.LittleEndian, sb.FirstFBLBlockNumber)
	buf.Write(sb.FSID[:])
	return buf.Bytes()
}

// UnmarshalSuperblock reverses Marshal. Fails with EBADFS if raw is short or
// the magic tag doesn't read "e5fs".
func UnmarshalSuperblock(raw []byte) (*Superblock, error) {
	if len(raw) < SuperblockSize {
		return nil, fserr.New(fserr.EBADFS, "superblock truncated: got %d bytes, want %d", len(raw), SuperblockSize)
	}
	sb := &Superblock{}
	r := bytes.NewReader(raw)
	_, _ = r.Read(sb.FilesystemType[:])
	_ = binary.Read(r, binary.LittleEndian, &sb.BlocksCount)
	_ = binary.Read(r, binary.LittleEndian, &sb.InodeTableSize)
	_ = binary.Read(r, binary.LittleEndian, &sb.InodeTablePercentage)
	_ = binary.Read(r, binary.LittleEndian, &sb.FreeInodesCount)
	_ = binary.Read(r, binary.LittleEndian, &sb.FreeBlocksCount)
	_ = binary.Read(r, binary.LittleEndian, &sb.InodesCount)
	_ = binary.Read(r, binary.LittleEndian, &sb.BlockSize)
	_ = binary.Read(r, binary.LittleEndian, &sb.BlockDataSize)
	_ = binary.Read(r, binary.LittleEndian, &sb.FreeInodesCache)
	_ = binary.Read(r, binary.LittleEndian, &sb.FirstFBLBlockNumber)
	_, _ = r.Read(sb.FSID[:])

	var tag [fsTypeTagSize]byte
	copy(tag[:], FilesystemTypeTag)
	if sb.FilesystemType != tag {
		return nil, fserr.New(fserr.EBADFS, "bad superblock magic: %q", sb.FilesystemType)
	}
	return sb, nil
}
