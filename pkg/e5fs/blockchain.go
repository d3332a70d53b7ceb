package e5fs

import "github.com/nativerv/eunix/pkg/fserr"

// blockAddr returns the data-block number at logical index idx within in:
// indices [0,DirectBlockCount) come from DirectBlockNumbers, further
// indices walk IndirectBlockNumbers (each indirect block holds
// addressesPerFBLChunk further AddressSize entries), per spec.md §4.3's
// "direct blocks then indirect blocks via single indirection" guidance.
func (fs *FS) blockAddr(in *INode, idx int) (AddressSize, bool, error) {
	if idx < DirectBlockCount {
		addr := in.DirectBlockNumbers[idx]
		return addr, addr != NoAddress, nil
	}
	idx -= DirectBlockCount
	perIndirect := fs.sb.AddressesPerFBLChunk()
	indirectSlot := idx / perIndirect
	offsetInSlot := idx % perIndirect
	if indirectSlot >= IndirectBlockCount {
		return 0, false, fserr.New(fserr.ENOSPC, "file exceeds maximum size addressable by %d indirect blocks", IndirectBlockCount)
	}
	indirectBlockNum := in.IndirectBlockNumbers[indirectSlot]
	if indirectBlockNum == NoAddress {
		return 0, false, nil
	}
	chunk, err := fs.readFBLChunk(indirectBlockNum, perIndirect)
	if err != nil {
		return 0, false, err
	}
	addr := chunk[offsetInSlot]
	return addr, addr != NoAddress, nil
}

// ensureBlock returns the data-block number at logical index idx within in,
// allocating (and, for indirect indices, allocating the indirect block
// itself) as needed, and persists the updated inode.
func (fs *FS) ensureBlock(inum AddressSize, in *INode, idx int) (AddressSize, error) {
	if idx < DirectBlockCount {
		if in.DirectBlockNumbers[idx] != NoAddress {
			return in.DirectBlockNumbers[idx], nil
		}
		addr, err := fs.claimFreeBlockLocked()
		if err != nil {
			return 0, err
		}
		if err := fs.WriteBlock(addr, make([]byte, fs.sb.BlockDataSize)); err != nil {
			return 0, err
		}
		in.DirectBlockNumbers[idx] = addr
		return addr, fs.WriteInode(inum, *in)
	}

	idx -= DirectBlockCount
	perIndirect := fs.sb.AddressesPerFBLChunk()
	indirectSlot := idx / perIndirect
	offsetInSlot := idx % perIndirect
	if indirectSlot >= IndirectBlockCount {
		return 0, fserr.New(fserr.ENOSPC, "file exceeds maximum size addressable by %d indirect blocks", IndirectBlockCount)
	}

	if in.IndirectBlockNumbers[indirectSlot] == NoAddress {
		ib, err := fs.claimFreeBlockLocked()
		if err != nil {
			return 0, err
		}
		empty := make([]AddressSize, perIndirect)
		for i := range empty {
			empty[i] = NoAddress
		}
		if err := fs.writeFBLChunk(ib, empty); err != nil {
			return 0, err
		}
		in.IndirectBlockNumbers[indirectSlot] = ib
		if err := fs.WriteInode(inum, *in); err != nil {
			return 0, err
		}
	}

	chunk, err := fs.readFBLChunk(in.IndirectBlockNumbers[indirectSlot], perIndirect)
	if err != nil {
		return 0, err
	}
	if chunk[offsetInSlot] != NoAddress {
		return chunk[offsetInSlot], nil
	}
	addr, err := fs.claimFreeBlockLocked()
	if err != nil {
		return 0, err
	}
	if err := fs.WriteBlock(addr, make([]byte, fs.sb.BlockDataSize)); err != nil {
		return 0, err
	}
	chunk[offsetInSlot] = addr
	if err := fs.writeFBLChunk(in.IndirectBlockNumbers[indirectSlot], chunk); err != nil {
		return 0, err
	}
	return addr, nil
}

// readAllBlocks concatenates every data block reachable from in, up to
// in.FileSize bytes.
func (fs *FS) readAllBlocks(in *INode) ([]byte, error) {
	out := make([]byte, 0, in.FileSize)
	remaining := int(in.FileSize)
	for idx := 0; remaining > 0; idx++ {
		addr, ok, err := fs.blockAddr(in, idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		block, err := fs.ReadBlock(addr)
		if err != nil {
			return nil, err
		}
		take := remaining
		if take > len(block) {
			take = len(block)
		}
		out = append(out, block[:take]...)
		remaining -= take
	}
	return out, nil
}

// writeAllBlocks overwrites in's content with data, allocating additional
// blocks as needed and updating in.FileSize. Blocks beyond the new content
// are left allocated but unreferenced by FileSize (truncation of the block
// chain itself is out of scope, matching E5FS's no-sparse-files,
// no-journalling non-goals).
func (fs *FS) writeAllBlocks(inum AddressSize, in *INode, data []byte) error {
	blockSize := int(fs.sb.BlockDataSize)
	for idx := 0; idx*blockSize < len(data); idx++ {
		addr, err := fs.ensureBlock(inum, in, idx)
		if err != nil {
			return err
		}
		start := idx * blockSize
		end := start + blockSize
		if end > len(data) {
			end = len(data)
		}
		buf := make([]byte, blockSize)
		copy(buf, data[start:end])
		if err := fs.WriteBlock(addr, buf); err != nil {
			return err
		}
	}
	in.FileSize = uint64(len(data))
	return fs.WriteInode(inum, *in)
}
