package e5fs

import (
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/fsmode"
)

// FS is one mounted E5FS instance: a superblock, an inode table, a block
// table, and the free-block list packed into the tail of the block table
// (spec.md §3–§4.3).
type FS struct {
	dev bytedev.ByteDevice
	sb  Superblock
	bufs *blockBufPool
}

func (fs *FS) inodeTableOffset() uint64 { return SuperblockSize }
func (fs *FS) blockTableOffset() uint64 { return SuperblockSize + fs.sb.InodeTableSize }

func (fs *FS) inodeOffset(n AddressSize) uint64 {
	return fs.inodeTableOffset() + n*InodeSize
}

func (fs *FS) blockOffset(n AddressSize) uint64 {
	return fs.blockTableOffset() + n*fs.sb.BlockDataSize
}

// MKFS formats dev as a fresh E5FS instance per spec.md §4.3.
func MKFS(dev bytedev.ByteDevice, inodeTablePercentage float32, blockDataSize uint64) (*FS, error) {
	if inodeTablePercentage < 0 || inodeTablePercentage > 1 {
		return nil, fserr.New(fserr.EINVAL, "inode_table_percentage must be in [0,1], got %v", inodeTablePercentage)
	}
	if blockDataSize < 512 || blockDataSize&(blockDataSize-1) != 0 {
		return nil, fserr.New(fserr.EINVAL, "block_data_size must be a power of two >= 512, got %d", blockDataSize)
	}

	deviceSize, err := dev.Size()
	if err != nil {
		return nil, err
	}

	inodesCount := uint64(float64(deviceSize) * float64(inodeTablePercentage) / float64(InodeSize))
	blocksCount := uint64(float64(deviceSize) * float64(1-inodeTablePercentage) / float64(blockDataSize))
	if blocksCount == 0 {
		return nil, fserr.New(fserr.EINVAL, "device too small to hold any blocks")
	}

	addressesPerFBLChunk := blockDataSize / addressSizeBytes
	blocksNeededForFBL := uint64(math.Ceil(float64(blocksCount) / float64(addressesPerFBLChunk)))
	if blocksNeededForFBL >= blocksCount {
		return nil, fserr.New(fserr.EINVAL, "device too small: fbl needs %d of %d blocks", blocksNeededForFBL, blocksCount)
	}
	firstFBLBlockNumber := blocksCount - blocksNeededForFBL

	var typeTag [fsTypeTagSize]byte
	copy(typeTag[:], FilesystemTypeTag)

	sb := Superblock{
		FilesystemType:       typeTag,
		BlocksCount:          blocksCount,
		InodeTableSize:       inodesCount * InodeSize,
		InodeTablePercentage: inodeTablePercentage,
		FreeInodesCount:      inodesCount,
		FreeBlocksCount:      firstFBLBlockNumber,
		InodesCount:          inodesCount,
		BlockSize:            blockDataSize,
		BlockDataSize:        blockDataSize,
		FirstFBLBlockNumber:  firstFBLBlockNumber,
		FSID:                 newFSID(),
	}
	for i := range sb.FreeInodesCache {
		if uint64(i) < inodesCount {
			sb.FreeInodesCache[i] = uint64(i)
		} else {
			sb.FreeInodesCache[i] = NoAddress
		}
	}

	// Root directory claims block 0 up front, so the FBL is laid down with
	// block 0 already marked taken instead of being claimed through the
	// normal allocator after the fact.
	const rootBlock AddressSize = 0
	sb.FreeBlocksCount--

	fs := &FS{dev: dev, sb: sb, bufs: newBlockBufPool(int(blockDataSize))}

	if err := fs.WriteSuperblock(); err != nil {
		return nil, err
	}

	// Zero the inode table: every slot free.
	free := NewFreeInode()
	freeBytes := free.Marshal()
	for i := uint64(0); i < inodesCount; i++ {
		if err := fs.dev.WriteAt(fs.inodeOffset(i), freeBytes); err != nil {
			return nil, err
		}
	}

	// Lay down the FBL: data-block numbers [0, first_fbl_block_number) in
	// order, padded with NoAddress to fill the final FBL block; block 0 is
	// pre-claimed for the root directory.
	entries := make([]AddressSize, blocksNeededForFBL*addressesPerFBLChunk)
	for i := range entries {
		entries[i] = NoAddress
	}
	for i := uint64(1); i < firstFBLBlockNumber; i++ {
		entries[i] = i
	}
	for i := uint64(0); i < blocksNeededForFBL; i++ {
		chunk := entries[i*addressesPerFBLChunk : (i+1)*addressesPerFBLChunk]
		if err := fs.writeFBLChunk(firstFBLBlockNumber+i, chunk); err != nil {
			return nil, err
		}
	}

	// Root directory at inode 0: contains "." and "..", both self.
	root := NewFreeInode()
	root.Mode = fsmode.New(false, fsmode.Dir, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec,
		fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec)
	root.LinksCount = 2
	now := uint32(time.Now().Unix())
	root.Atime, root.Mtime, root.Ctime = now, now, now
	root.DirectBlockNumbers[0] = rootBlock
	if err := fs.writeDirEntries(0, &root, []DirEntry{{InodeNumber: 0, Name: "."}, {InodeNumber: 0, Name: ".."}}); err != nil {
		return nil, err
	}
	if err := fs.WriteInode(0, root); err != nil {
		return nil, err
	}
	fs.sb.FreeInodesCount--
	if err := fs.WriteSuperblock(); err != nil {
		return nil, err
	}

	glog.V(1).Infof("mkfs: blocks_count=%d inodes_count=%d block_data_size=%d first_fbl_block=%d",
		blocksCount, inodesCount, blockDataSize, firstFBLBlockNumber)

	return fs, nil
}

// Open reads an existing E5FS superblock off dev (spec.md §4.3's "the E5FS
// source of this repository does not implement [re-]open end-to-end" is
// resolved here: mounting is exercised by the kernel's `mount -t e5fs`).
func Open(dev bytedev.ByteDevice) (*FS, error) {
	deviceSize, err := dev.Size()
	if err != nil {
		return nil, err
	}
	if deviceSize < SuperblockSize {
		return nil, fserr.New(fserr.EBADFS, "device smaller than superblock: %d < %d", deviceSize, SuperblockSize)
	}
	raw, err := dev.ReadAt(0, SuperblockSize)
	if err != nil {
		return nil, err
	}
	sb, err := UnmarshalSuperblock(raw)
	if err != nil {
		return nil, err
	}
	return &FS{dev: dev, sb: *sb, bufs: newBlockBufPool(int(sb.BlockDataSize))}, nil
}

// ReadSuperblock returns the filesystem's in-memory superblock copy.
func (fs *FS) ReadSuperblock() Superblock { return fs.sb }

// WriteSuperblock persists fs.sb to device offset 0.
func (fs *FS) WriteSuperblock() error {
	return fs.dev.WriteAt(0, fs.sb.Marshal())
}

// ReadBlock reads block n's raw content.
func (fs *FS) ReadBlock(n AddressSize) ([]byte, error) {
	if n >= fs.sb.BlocksCount {
		return nil, fserr.New(fserr.ENOENT, "block %d out of range [0,%d)", n, fs.sb.BlocksCount)
	}
	return fs.dev.ReadAt(fs.blockOffset(n), int(fs.sb.BlockDataSize))
}

// WriteBlock writes data (padded/truncated to block_data_size) to block n.
func (fs *FS) WriteBlock(n AddressSize, data []byte) error {
	if n >= fs.sb.BlocksCount {
		return fserr.New(fserr.ENOENT, "block %d out of range [0,%d)", n, fs.sb.BlocksCount)
	}
	buf := fs.bufs.Get()
	defer fs.bufs.Put(buf)
	copy(buf, data)
	return fs.dev.WriteAt(fs.blockOffset(n), buf)
}

// ReadInode reads inode n.
func (fs *FS) ReadInode(n AddressSize) (INode, error) {
	if n >= fs.sb.InodesCount {
		return INode{}, fserr.New(fserr.ENOENT, "inode %d out of range [0,%d)", n, fs.sb.InodesCount)
	}
	raw, err := fs.dev.ReadAt(fs.inodeOffset(n), InodeSize)
	if err != nil {
		return INode{}, err
	}
	return UnmarshalINode(raw)
}

// WriteInode writes inode n.
func (fs *FS) WriteInode(n AddressSize, in INode) error {
	if n >= fs.sb.InodesCount {
		return fserr.New(fserr.ENOENT, "inode %d out of range [0,%d)", n, fs.sb.InodesCount)
	}
	return fs.dev.WriteAt(fs.inodeOffset(n), in.Marshal())
}

// ClaimFreeInode returns the smallest free inode index, marking it taken.
func (fs *FS) ClaimFreeInode() (AddressSize, error) {
	for n := uint64(0); n < fs.sb.InodesCount; n++ {
		in, err := fs.ReadInode(n)
		if err != nil {
			return 0, err
		}
		if in.Mode.Free() {
			in.Mode = in.Mode.WithFree(false)
			if err := fs.WriteInode(n, in); err != nil {
				return 0, err
			}
			if fs.sb.FreeInodesCount > 0 {
				fs.sb.FreeInodesCount--
			}
			return n, fs.WriteSuperblock()
		}
	}
	return 0, fserr.New(fserr.ENOSPC, "no free inodes")
}

// claimFreeBlockLocked scans the FBL in order and takes the first non-
// NoAddress entry it finds.
func (fs *FS) claimFreeBlockLocked() (AddressSize, error) {
	chunkLen := fs.sb.AddressesPerFBLChunk()
	for fblBlock := fs.sb.FirstFBLBlockNumber; fblBlock < fs.sb.BlocksCount; fblBlock++ {
		chunk, err := fs.readFBLChunk(fblBlock, chunkLen)
		if err != nil {
			return 0, err
		}
		for i, addr := range chunk {
			if addr != NoAddress {
				chunk[i] = NoAddress
				if err := fs.writeFBLChunk(fblBlock, chunk); err != nil {
					return 0, err
				}
				if fs.sb.FreeBlocksCount > 0 {
					fs.sb.FreeBlocksCount--
				}
				return addr, fs.WriteSuperblock()
			}
		}
	}
	return 0, fserr.New(fserr.ENOSPC, "no free blocks")
}

// ClaimFreeBlock is the exported allocator entry point.
func (fs *FS) ClaimFreeBlock() (AddressSize, error) { return fs.claimFreeBlockLocked() }

// ReleaseBlock returns a block to the FBL: appended into the first FBL
// chunk with a NoAddress slot (spec.md §5's "release_block" dual).
func (fs *FS) ReleaseBlock(n AddressSize) error {
	chunkLen := fs.sb.AddressesPerFBLChunk()
	for fblBlock := fs.sb.FirstFBLBlockNumber; fblBlock < fs.sb.BlocksCount; fblBlock++ {
		chunk, err := fs.readFBLChunk(fblBlock, chunkLen)
		if err != nil {
			return err
		}
		for i, addr := range chunk {
			if addr == NoAddress {
				chunk[i] = n
				if err := fs.writeFBLChunk(fblBlock, chunk); err != nil {
					return err
				}
				fs.sb.FreeBlocksCount++
				return fs.WriteSuperblock()
			}
		}
	}
	return fserr.New(fserr.EBADFS, "free-block list is full, cannot release block %d", n)
}

func (fs *FS) readFBLChunk(fblBlock AddressSize, chunkLen int) ([]AddressSize, error) {
	raw, err := fs.ReadBlock(fblBlock)
	if err != nil {
		return nil, err
	}
	out := make([]AddressSize, chunkLen)
	for i := 0; i < chunkLen; i++ {
		off := i * addressSizeBytes
		if off+addressSizeBytes > len(raw) {
			out[i] = NoAddress
			continue
		}
		out[i] = leUint64(raw[off : off+addressSizeBytes])
	}
	return out, nil
}

func (fs *FS) writeFBLChunk(fblBlock AddressSize, chunk []AddressSize) error {
	raw := make([]byte, fs.sb.BlockDataSize)
	for i, addr := range chunk {
		off := i * addressSizeBytes
		if off+addressSizeBytes > len(raw) {
			break
		}
		putLeUint64(raw[off:off+addressSizeBytes], addr)
	}
	return fs.WriteBlock(fblBlock, raw)
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// AllocateFile claims one inode and one block, initializing the inode with
// mode.free=0, NOBODY ownership, current timestamps, and the claimed block
// stored (zeroed) in DirectBlockNumbers[0] (spec.md §4.3 allocate_file).
func (fs *FS) AllocateFile(nobodyUID, nobodyGID uint32) (AddressSize, INode, error) {
	inum, err := fs.ClaimFreeInode()
	if err != nil {
		return 0, INode{}, err
	}
	block, err := fs.claimFreeBlockLocked()
	if err != nil {
		return 0, INode{}, err
	}
	if err := fs.WriteBlock(block, make([]byte, fs.sb.BlockDataSize)); err != nil {
		return 0, INode{}, err
	}
	in := NewFreeInode()
	in.Mode = in.Mode.WithFree(false)
	in.UID, in.GID = nobodyUID, nobodyGID
	now := uint32(time.Now().Unix())
	in.Atime, in.Mtime, in.Ctime = now, now, now
	in.DirectBlockNumbers[0] = block
	if err := fs.WriteInode(inum, in); err != nil {
		return 0, INode{}, err
	}
	return inum, in, nil
}
