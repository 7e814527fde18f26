package proc

import "sync"

// tailBuffer accumulates stream output up to a byte limit, discarding the
// oldest bytes first. Diagnostics care about the most recent output.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		trimmed := make([]byte, b.limit)
		copy(trimmed, b.buf[len(b.buf)-b.limit:])
		b.buf = trimmed
		b.truncated = true
	}
}

// Bytes returns a copy of the retained output.
func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Tail returns up to n trailing bytes as a string.
func (b *tailBuffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) <= n {
		return string(b.buf)
	}
	return string(b.buf[len(b.buf)-n:])
}
