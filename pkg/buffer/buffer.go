package buffer

import (
	"fmt"
	"os"
)

// Loader fills p with bytes from an external data source and reports the
// outcome as a signed count: n > 0 means n bytes were written to the front
// of p (n must not exceed len(p)), 0 means end of input, and a negative
// value is an error code the buffer passes through without interpretation.
//
// A Loader may block. The buffer never retries after a 0 or negative
// result; whether and how to continue is the caller's decision.
type Loader interface {
	Load(p []byte) int
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(p []byte) int

// Load calls f(p).
func (f LoaderFunc) Load(p []byte) int { return f(p) }

// noCopy makes `go vet -copylocks` flag copies of the embedding struct.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Buffer is a self-loading byte buffer. It owns one contiguous region,
// tracks how much of it holds valid data, and refills the writable tail
// from an injected Loader on each Load call, growing first whenever the
// tail would be smaller than the configured minimum.
//
// Capacities produced by growth are rounded up to a multiple of the
// allocation granularity (growBy); the initial capacity is allocated
// exactly as requested. Compact discards a consumed prefix by shifting the
// remaining bytes to offset zero, so long-lived parses do not accrete
// unbounded storage.
//
// A Buffer must not be copied after first use and must not be used from
// multiple goroutines. Slices returned by Slice alias the backing storage
// and are invalidated by the next mutating call; callers must not retain
// them across Load, Resize, Compact, or Close.
type Buffer struct {
	noCopy noCopy

	data       []byte // len(data) is the capacity
	length     int
	minLoading int
	growBy     int
	loader     Loader
	closed     bool
}

// New creates a Buffer with the given initial capacity, minimum loading
// size, allocation granularity, and data source. A growBy of 0 selects the
// platform page size. The initial allocation is exactly capacity bytes;
// rounding to growBy applies only to later growth.
//
// New panics unless capacity > 0, 0 < minLoading < capacity, growBy >= 0,
// and loader is non-nil.
func New(capacity, minLoading, growBy int, loader Loader) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("buffer: non-positive capacity %d", capacity))
	}
	if minLoading <= 0 || minLoading >= capacity {
		panic(fmt.Sprintf("buffer: minLoading %d outside (0, %d)", minLoading, capacity))
	}
	if growBy < 0 {
		panic(fmt.Sprintf("buffer: negative growBy %d", growBy))
	}
	if loader == nil {
		panic("buffer: nil loader")
	}
	if growBy == 0 {
		growBy = os.Getpagesize()
	}
	return &Buffer{
		data:       make([]byte, capacity),
		minLoading: minLoading,
		growBy:     growBy,
		loader:     loader,
	}
}

func (b *Buffer) check() {
	if b.closed {
		panic("buffer: use after Close")
	}
}

// Len returns the count of valid bytes currently held.
func (b *Buffer) Len() int {
	b.check()
	return b.length
}

// Cap returns the total allocated storage in bytes.
func (b *Buffer) Cap() int {
	b.check()
	return len(b.data)
}

// Headroom returns the writable tail size, Cap()-Len().
func (b *Buffer) Headroom() int {
	b.check()
	return len(b.data) - b.length
}

// At returns the byte at offset i. It panics unless 0 <= i < Len().
func (b *Buffer) At(i int) byte {
	b.check()
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("buffer: index %d out of range [0, %d)", i, b.length))
	}
	return b.data[i]
}

// Slice returns a view over the valid bytes [start, end). The view aliases
// the backing storage: it is valid only until the next Load, Resize,
// Compact, or Close call. Slice panics unless 0 <= start <= end <= Len().
func (b *Buffer) Slice(start, end int) []byte {
	b.check()
	if start < 0 || start > end || end > b.length {
		panic(fmt.Sprintf("buffer: slice bounds [%d:%d] out of range [0, %d]", start, end, b.length))
	}
	return b.data[start:end]
}

// Load pulls more bytes from the source into the buffer. If the writable
// tail is smaller than the minimum loading size, the buffer grows first via
// Resize(Len()+minLoading). The loader is then invoked exactly once with
// the whole tail.
//
// A positive return is the number of bytes appended; Len() grew by exactly
// that amount. 0 (end of input) and negative values (source error codes)
// are returned verbatim with the buffer unchanged. Load does not loop to
// fill the tail; call it repeatedly to keep accumulating.
func (b *Buffer) Load() int {
	b.check()
	if len(b.data)-b.length < b.minLoading {
		b.Resize(b.length + b.minLoading)
	}
	tail := b.data[b.length:]
	n := b.loader.Load(tail)
	if n <= 0 {
		return n
	}
	if n > len(tail) {
		panic(fmt.Sprintf("buffer: loader reported %d bytes for a %d byte region", n, len(tail)))
	}
	b.length += n
	return n
}

// Resize reallocates the backing storage to hold at least target bytes,
// rounded up to the next multiple of growBy. The first Len() bytes are
// preserved at unchanged offsets; everything beyond them is unspecified.
// The backing memory may move, so all previously returned slices are
// invalid after Resize returns.
//
// The rounded capacity may be below the current one when target is small;
// it can never go below Len() because target must exceed it. There is no
// shrink-to-fit: Resize panics unless target > Len().
func (b *Buffer) Resize(target int) {
	b.check()
	if target <= b.length {
		panic(fmt.Sprintf("buffer: resize target %d not above length %d", target, b.length))
	}
	rounded := (target + b.growBy - 1) / b.growBy * b.growBy
	if rounded == len(b.data) {
		return
	}
	grown := make([]byte, rounded)
	copy(grown, b.data[:b.length])
	b.data = grown
}

// Compact discards the consumed prefix [0, lastValid) by moving the bytes
// [lastValid, Len()) to offset zero. Len() shrinks by lastValid; capacity
// is unchanged. The move tolerates overlap. Compact invalidates all
// previously returned slices. It panics unless 0 <= lastValid <= Len().
func (b *Buffer) Compact(lastValid int) {
	b.check()
	if lastValid < 0 || lastValid > b.length {
		panic(fmt.Sprintf("buffer: compact bound %d out of range [0, %d]", lastValid, b.length))
	}
	copy(b.data, b.data[lastValid:b.length])
	b.length -= lastValid
}

// Fork branches a read position into dst without disturbing the buffer.
// The valid bytes [start, Len()) are copied to the front of dst, then the
// loader fills the rest of dst directly, bypassing the buffer's storage,
// until dst is full or the source reports end of input or an error.
//
// Fork returns len(dst) when dst was filled completely, the number of
// bytes written when the source ended first, or the source's negative
// error code immediately (dst contents beyond the last write are
// unspecified). The buffer's own length, capacity, and bytes never change.
//
// Fork panics unless 0 <= start <= Len() and dst can hold the valid bytes
// from start onward. It exists for parsers that discover mid-stream that a
// larger contiguous span is needed (framing with a declared payload
// length): the span is obtained in one pass with no growth or compaction
// of the primary buffer.
func (b *Buffer) Fork(start int, dst []byte) int {
	b.check()
	if start < 0 || start > b.length {
		panic(fmt.Sprintf("buffer: fork start %d out of range [0, %d]", start, b.length))
	}
	if avail := b.length - start; len(dst) < avail {
		panic(fmt.Sprintf("buffer: fork destination holds %d bytes, need at least %d", len(dst), avail))
	}
	n := copy(dst, b.data[start:b.length])
	for n < len(dst) {
		r := b.loader.Load(dst[n:])
		if r == 0 {
			return n
		}
		if r < 0 {
			return r
		}
		if r > len(dst)-n {
			panic(fmt.Sprintf("buffer: loader reported %d bytes for a %d byte region", r, len(dst)-n))
		}
		n += r
	}
	return n
}

// Close releases the backing storage. It is idempotent; every other method
// panics once the buffer is closed.
func (b *Buffer) Close() {
	b.data = nil
	b.loader = nil
	b.closed = true
}
