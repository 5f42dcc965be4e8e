package audio

import "sync"

// FrameBuffer accumulates converted PCM up to a fixed ceiling of 200 ms.
// Writes never block; when the ceiling is exceeded the oldest whole frames
// are discarded so only the most recent window is kept.
type FrameBuffer struct {
	mu    sync.Mutex
	buf   []byte
	max   int
	align int
}

// NewFrameBuffer returns a buffer sized for f:
// ceil(rate * channels * bytesPerSample / 5) bytes.
func NewFrameBuffer(f Format) *FrameBuffer {
	limit := (f.ByteRate() + 4) / 5
	align := f.BlockAlign()
	if align < 1 {
		align = 1
	}
	if limit < align {
		limit = align
	}
	return &FrameBuffer{
		buf:   make([]byte, 0, limit),
		max:   limit,
		align: align,
	}
}

// Write appends p, discarding the oldest bytes beyond the ceiling.
func (b *FrameBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) > b.max {
		keep := b.max - b.max%b.align
		p = p[len(p)-keep:]
		b.buf = b.buf[:0]
	}

	if over := len(b.buf) + len(p) - b.max; over > 0 {
		if r := over % b.align; r != 0 {
			over += b.align - r
		}
		if over > len(b.buf) {
			over = len(b.buf)
		}
		kept := copy(b.buf, b.buf[over:])
		b.buf = b.buf[:kept]
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// Drain returns the buffered bytes and empties the buffer.
func (b *FrameBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return out
}

// Len is the number of buffered bytes.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Cap is the ceiling in bytes.
func (b *FrameBuffer) Cap() int { return b.max }
