package tcp

import (
	"github.com/pkg/errors"
)

// Buffer is a chunked side-buffer mediating between the user byte stream
// and the wire, per spec.md §3: chunk_count <= max_chunk_count, logical
// byte stream with a write cursor and a drain cursor. TX and RX buffers
// share this structure. Materialized as a fixed-size vector of chunk
// descriptors the way lib/pool.go's Payload backs lib/packet.go's frames,
// but chunk allocation itself is delegated to the ChunkPool collaborator
// (memory-pool allocation is explicitly external, spec.md §1).
type Buffer struct {
	pool      ChunkPool
	chunkSize int
	chunks    []BufferChunk
	capacity  int

	// write and drain are monotonically increasing logical offsets; the
	// number of bytes currently held is write-drain. Neither wraps: only
	// the chunk index derived from them does.
	write uint64
	drain uint64
}

// NewBuffer materializes a Buffer of the requested logical capacity,
// composed of ceil(capacity/chunkSize) chunks capped at MaxChunkCount, so
// the resulting Cap() is the requested capacity rounded up to whole chunks
// unless the cap applies. Returns ErrOutOfResources if the pool can't
// satisfy every chunk, per allocate_buffers' failure contract.
func NewBuffer(pool ChunkPool, capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, errors.Wrap(ErrFailure, "buffer capacity must be positive")
	}

	first, err := pool.Alloc()
	if err != nil {
		return nil, errors.Wrap(ErrOutOfResources, "allocating side-buffer chunk")
	}
	chunkSize := len(first.Bytes())
	if chunkSize == 0 {
		pool.Free(first)
		return nil, errors.Wrap(ErrOutOfResources, "pool handed out a zero-length chunk")
	}

	nChunks := (capacity + chunkSize - 1) / chunkSize
	if nChunks > MaxChunkCount {
		nChunks = MaxChunkCount
	}
	if nChunks < 1 {
		nChunks = 1
	}

	chunks := make([]BufferChunk, 1, nChunks)
	chunks[0] = first
	for i := 1; i < nChunks; i++ {
		c, err := pool.Alloc()
		if err != nil {
			for _, allocated := range chunks {
				pool.Free(allocated)
			}
			return nil, errors.Wrap(ErrOutOfResources, "allocating side-buffer chunk")
		}
		chunks = append(chunks, c)
	}

	return &Buffer{
		pool:      pool,
		chunkSize: chunkSize,
		chunks:    chunks,
		capacity:  nChunks * chunkSize,
	}, nil
}

// Cap returns the buffer's total logical capacity in bytes.
func (b *Buffer) Cap() int { return b.capacity }

// Used returns the number of logical bytes currently held.
func (b *Buffer) Used() int { return int(b.write - b.drain) }

// Free returns the number of additional bytes the buffer can hold.
func (b *Buffer) Free() int { return b.capacity - b.Used() }

func (b *Buffer) chunkAt(offset uint64) BufferChunk {
	idx := int((offset / uint64(b.chunkSize)) % uint64(len(b.chunks)))
	return b.chunks[idx]
}

// WriteAt copies data into the buffer at relOffset bytes past the current
// write cursor and extends the write cursor by relOffset+len(data). It
// returns an error if relOffset+len(data) > Free().
func (b *Buffer) WriteAt(relOffset int, data []byte) error {
	if relOffset < 0 || relOffset+len(data) > b.Free() {
		return errors.Wrap(ErrFailure, "side-buffer write out of range")
	}
	base := b.write + uint64(relOffset)
	for n := 0; n < len(data); {
		chunk := b.chunkAt(base + uint64(n))
		within := int((base + uint64(n)) % uint64(b.chunkSize))
		room := b.chunkSize - within
		m := len(data) - n
		if m > room {
			m = room
		}
		copy(chunk.Bytes()[within:within+m], data[n:n+m])
		n += m
	}
	b.write = base + uint64(len(data))
	return nil
}

// ReadAt copies out length bytes starting relOffset bytes past the drain
// cursor, without advancing either cursor.
func (b *Buffer) ReadAt(relOffset, length int) []byte {
	out := make([]byte, length)
	base := b.drain + uint64(relOffset)
	for n := 0; n < length; {
		chunk := b.chunkAt(base + uint64(n))
		within := int((base + uint64(n)) % uint64(b.chunkSize))
		room := b.chunkSize - within
		m := length - n
		if m > room {
			m = room
		}
		copy(out[n:n+m], chunk.Bytes()[within:within+m])
		n += m
	}
	return out
}

// Advance drops n bytes from the front of the buffer: acknowledged bytes
// on the TX side, consumed bytes on the RX side.
func (b *Buffer) Advance(n int) { b.drain += uint64(n) }

// Extend records n additional queued bytes without copying. WriteAt already
// moves the write cursor itself, so Extend is not called after it.
func (b *Buffer) Extend(n int) { b.write += uint64(n) }

// Close releases every chunk back to the pool. After Close the buffer must
// not be used again.
func (b *Buffer) Close() {
	for _, c := range b.chunks {
		b.pool.Free(c)
	}
	b.chunks = nil
}
