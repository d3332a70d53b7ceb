package e5fs

import "sync"

// blockBufPool recycles block-sized byte buffers, aligned to a filesystem's
// block_data_size rather than the OS page size. Grounded on
// pkg/jdfs/bufpool.go's BufPool, which does the same alignment trick against
// os.Getpagesize(); here the single alignment (one block size per FS
// instance) makes the arena registry unnecessary — a plain sync.Pool
// suffices.
type blockBufPool struct {
	blockSize int
	pool      sync.Pool
}

func newBlockBufPool(blockSize int) *blockBufPool {
	bp := &blockBufPool{blockSize: blockSize}
	bp.pool.New = func() interface{} {
		return make([]byte, bp.blockSize)
	}
	return bp
}

func (bp *blockBufPool) Get() []byte {
	buf := bp.pool.Get().([]byte)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

func (bp *blockBufPool) Put(buf []byte) {
	if len(buf) != bp.blockSize {
		return
	}
	bp.pool.Put(buf) //nolint:staticcheck // buf is reused wholesale, not resliced
}
