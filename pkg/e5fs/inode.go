package e5fs

import (
	"bytes"
	"encoding/binary"

	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// INode is the fixed-size metadata record for one E5FS file or directory
// (spec.md §3). Direct block numbers are consulted first; once exhausted,
// IndirectBlockNumbers each name a block holding further AddressSize
// entries (single indirection, per spec.md §4.3's "direct blocks then
// indirect blocks via single indirection" guidance).
type INode struct {
	Mode       fsmode.FileMode
	LinksCount uint32
	UID        uint32
	GID        uint32
	FileSize   uint64
	Atime      uint32
	Mtime      uint32
	Ctime      uint32

	DirectBlockNumbers   [DirectBlockCount]AddressSize
	IndirectBlockNumbers [IndirectBlockCount]AddressSize
}

// InodeSize is the fixed on-disk size of a serialized INode.
const InodeSize = 2 + 4 + 4 + 4 + 8 + 4 + 4 + 4 +
	DirectBlockCount*addressSizeBytes + IndirectBlockCount*addressSizeBytes

// NewFreeInode returns the zero value of a free inode slot: mode.free=1,
// everything else zeroed, block pointers set to NoAddress.
func NewFreeInode() INode {
	in := INode{Mode: fsmode.New(true, fsmode.File, 0, 0, 0)}
	for i := range in.DirectBlockNumbers {
		in.DirectBlockNumbers[i] = NoAddress
	}
	for i := range in.IndirectBlockNumbers {
		in.IndirectBlockNumbers[i] = NoAddress
	}
	return in
}

// Marshal encodes in in declared field order, little-endian (spec.md §6.2).
func (in *INode) Marshal() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(InodeSize)
	_ = binary.Write(buf, binary.LittleEndian, uint16(in.Mode))
	_ = binary.Write(buf, binary.LittleEndian, in.LinksCount)
	_ = binary.Write(buf, binary.LittleEndian, in.UID)
	_ = binary.Write(buf, binary.LittleEndian, in.GID)
	_ = binary.Write(buf, binary.LittleEndian, in.FileSize)
	_ = binary.Write(buf, binary.LittleEndian, in.Atime)
	_ = binary.Write(buf, binary.LittleEndian, in.Mtime)
	_ = binary.Write(buf, binary.LittleEndian, in.Ctime)
	_ = binary.Write(buf, binary.LittleEndian, in.DirectBlockNumbers)
	_ = binary.Write(buf, binary.LittleEndian, in.IndirectBlockNumbers)
	return buf.Bytes()
}

// UnmarshalINode reverses Marshal.
func UnmarshalINode(raw []byte) (INode, error) {
	var in INode
	if len(raw) < InodeSize {
		return in, fserr.New(fserr.EBADFS, "inode truncated: got %d bytes, want %d", len(raw), InodeSize)
	}
	r := bytes.NewReader(raw)
	var mode uint16
	_ = binary.Read(r, binary.LittleEndian, &mode)
	in.Mode = fsmode.FileMode(mode)
	_ = binary.Read(r, binary.LittleEndian, &in.LinksCount)
	_ = binary.Read(r, binary.LittleEndian, &in.UID)
	_ = binary.Read(r, binary.LittleEndian, &in.GID)
	_ = binary.Read(r, binary.LittleEndian, &in.FileSize)
	_ = binary.Read(r, binary.LittleEndian, &in.Atime)
	_ = binary.Read(r, binary.LittleEndian, &in.Mtime)
	_ = binary.Read(r, binary.LittleEndian, &in.Ctime)
	_ = binary.Read(r, binary.LittleEndian, &in.DirectBlockNumbers)
	_ = binary.Read(r, binary.LittleEndian, &in.IndirectBlockNumbers)
	return in, nil
}
