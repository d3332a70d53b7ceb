package e5fs

import (
	"bytes"
	"encoding/binary"

	"github.com/nativerv/eunix/pkg/fserr"
)

// DirEntry is one packed (inode number, name) pair inside a directory's
// blocks (spec.md §3's directory entry).
type DirEntry struct {
	InodeNumber AddressSize
	Name        string
}

const dirEntryHeaderSize = addressSizeBytes + 2 // inode number + name length

func marshalDirEntries(entries []DirEntry) []byte {
	buf := new(bytes.Buffer)
	for _, e := range entries {
		_ = binary.Write(buf, binary.LittleEndian, e.InodeNumber)
		_ = binary.Write(buf, binary.LittleEndian, uint16(len(e.Name)))
		buf.WriteString(e.Name)
	}
	return buf.Bytes()
}

func unmarshalDirEntries(raw []byte) ([]DirEntry, error) {
	var entries []DirEntry
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		if r.Len() < dirEntryHeaderSize {
			break // trailing zero padding from the last partially-filled block
		}
		var inum AddressSize
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &inum); err != nil {
			return nil, fserr.New(fserr.EBADFS, "corrupt directory entry: %s", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fserr.New(fserr.EBADFS, "corrupt directory entry: %s", err)
		}
		if nameLen == 0 {
			break // zero padding
		}
		if r.Len() < int(nameLen) {
			return nil, fserr.New(fserr.EBADFS, "corrupt directory entry: name truncated")
		}
		nameBuf := make([]byte, nameLen)
		_, _ = r.Read(nameBuf)
		entries = append(entries, DirEntry{InodeNumber: inum, Name: string(nameBuf)})
	}
	return entries, nil
}

// writeDirEntries overwrites inum's content with the packed encoding of
// entries, growing its block chain as needed.
func (fs *FS) writeDirEntries(inum AddressSize, in *INode, entries []DirEntry) error {
	return fs.writeAllBlocks(inum, in, marshalDirEntries(entries))
}

// readDirEntries reads and decodes in's directory entries.
func (fs *FS) readDirEntries(in *INode) ([]DirEntry, error) {
	raw, err := fs.readAllBlocks(in)
	if err != nil {
		return nil, err
	}
	return unmarshalDirEntries(raw)
}
