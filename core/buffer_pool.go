package core

import (
	"sync"

	"github.com/armon/circbuf"
)

// BufferPool manages a pool of reusable circular buffers so repeated stage
// executions do not reallocate their capture buffers.
type BufferPool struct {
	pool sync.Pool
	size int64
}

// NewBufferPool creates a new buffer pool handing out buffers of the given size.
func NewBufferPool(size int64) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool = sync.Pool{
		New: func() interface{} {
			buf, _ := circbuf.NewBuffer(bp.size)
			return buf
		},
	}
	return bp
}

// Get retrieves a buffer from the pool or creates a new one.
func (bp *BufferPool) Get() *circbuf.Buffer {
	return bp.pool.Get().(*circbuf.Buffer)
}

// Put returns a buffer to the pool for reuse.
func (bp *BufferPool) Put(buf *circbuf.Buffer) {
	if buf == nil {
		return
	}

	buf.Reset()

	// Only standard-sized buffers go back; custom sizes are left for GC.
	if buf.Size() == bp.size {
		bp.pool.Put(buf)
	}
}

// DefaultBufferPool provides capture buffers for stage executions, capped at
// maxStreamSize so a chatty test run cannot exhaust memory.
var DefaultBufferPool = NewBufferPool(maxStreamSize)
