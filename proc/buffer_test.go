package proc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	b := newTailBuffer(8)
	b.Write([]byte("abc"))
	assert.Equal(t, "abc", string(b.Bytes()))
	assert.False(t, b.truncated)

	b.Write([]byte("defghij"))
	assert.Equal(t, "cdefghij", string(b.Bytes()), "oldest bytes dropped first")
	assert.True(t, b.truncated)

	assert.Equal(t, "hij", b.Tail(3))
	assert.Equal(t, "cdefghij", b.Tail(100))
}

func TestTailBufferLargeWrites(t *testing.T) {
	t.Parallel()

	b := newTailBuffer(16)
	b.Write([]byte(strings.Repeat("x", 1024) + "end"))
	out := string(b.Bytes())
	assert.Len(t, out, 16)
	assert.True(t, strings.HasSuffix(out, "end"))
}
