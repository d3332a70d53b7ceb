// Package bytedev exposes a host file as a fixed-size, seekable byte
// container for E5FS to lay its superblock/inode-table/block-table/FBL out
// on (spec.md §4.1). Grounded on the teacher's own use of os.File.ReadAt /
// os.File.WriteAt as the one and only byte-level I/O primitive for its
// in-core filesystem (pkg/jdfs/fsd.go's rootDir/handle model) — no
// third-party library in the retrieved corpus wraps random-access file I/O
// more directly than os.File already does, so this one component stays on
// the standard library.
package bytedev

import (
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/nativerv/eunix/pkg/fserr"
)

// ByteDevice is a random-access byte container backing one block device.
type ByteDevice interface {
	ReadAt(offset uint64, length int) ([]byte, error)
	WriteAt(offset uint64, data []byte) error
	Size() (uint64, error)
	Close() error
}

// FileDevice backs a ByteDevice with a host file, opened once and kept for
// the lifetime of the device.
type FileDevice struct {
	path string
	f    *os.File
	size uint64
}

// OpenFile opens (or creates, if create is true) path as a fixed-size
// ByteDevice. When create is true and the file doesn't reach size bytes yet,
// it is grown (sparse) to size.
func OpenFile(path string, size uint64, create bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fserr.New(fserr.EIO, "open device %s: %s", path, err)
	}
	if create {
		if fi, err := f.Stat(); err == nil && uint64(fi.Size()) < size {
			if err := f.Truncate(int64(size)); err != nil {
				f.Close()
				return nil, fserr.New(fserr.EIO, "truncate device %s: %s", path, err)
			}
		}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fserr.New(fserr.EIO, "stat device %s: %s", path, err)
	}
	dev := &FileDevice{path: path, f: f, size: uint64(fi.Size())}
	glog.V(2).Infof("opened byte device %s, size=%d", path, dev.size)
	return dev, nil
}

func (d *FileDevice) Size() (uint64, error) { return d.size, nil }

func (d *FileDevice) ReadAt(offset uint64, length int) ([]byte, error) {
	if length < 0 || offset+uint64(length) > d.size {
		return nil, fserr.New(fserr.EIO, "read out of range at %s: offset=%d length=%d size=%d",
			d.path, offset, length, d.size)
	}
	buf := make([]byte, length)
	n, err := d.f.ReadAt(buf, int64(offset))
	if err != nil && n != length {
		return nil, fserr.New(fserr.EIO, "short read at %s: %s", d.path, errors.WithStack(err))
	}
	return buf, nil
}

func (d *FileDevice) WriteAt(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > d.size {
		return fserr.New(fserr.EIO, "write out of range at %s: offset=%d length=%d size=%d",
			d.path, offset, len(data), d.size)
	}
	if _, err := d.f.WriteAt(data, int64(offset)); err != nil {
		return fserr.New(fserr.EIO, "write failed at %s: %s", d.path, errors.WithStack(err))
	}
	return nil
}

func (d *FileDevice) Close() error { return d.f.Close() }

// MemDevice is an in-memory ByteDevice, used by tests and by callers that
// want an E5FS instance without a backing host file.
type MemDevice struct {
	buf []byte
}

func NewMemDevice(size uint64) *MemDevice {
	return &MemDevice{buf: make([]byte, size)}
}

func (d *MemDevice) Size() (uint64, error) { return uint64(len(d.buf)), nil }

func (d *MemDevice) ReadAt(offset uint64, length int) ([]byte, error) {
	if length < 0 || offset+uint64(length) > uint64(len(d.buf)) {
		return nil, fserr.New(fserr.EIO, "read out of range: offset=%d length=%d size=%d",
			offset, length, len(d.buf))
	}
	out := make([]byte, length)
	copy(out, d.buf[offset:offset+uint64(length)])
	return out, nil
}

func (d *MemDevice) WriteAt(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > uint64(len(d.buf)) {
		return fserr.New(fserr.EIO, "write out of range: offset=%d length=%d size=%d",
			offset, len(data), len(d.buf))
	}
	copy(d.buf[offset:], data)
	return nil
}

func (d *MemDevice) Close() error { return nil }
