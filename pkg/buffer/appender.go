package buffer

import "encoding/binary"

// Appender is an append-only byte array with doubling growth. It has no
// data source and no compaction; it accumulates writes until Reset or
// Take. The zero value is ready to use.
//
// Unlike Buffer, an Appender never panics beyond ordinary slice bounds
// and may be copied freely before first use.
type Appender struct {
	buf []byte
}

// Append appends p.
func (a *Appender) Append(p []byte) {
	a.grow(len(p))
	a.buf = append(a.buf, p...)
}

// AppendByte appends a single byte.
func (a *Appender) AppendByte(c byte) {
	a.grow(1)
	a.buf = append(a.buf, c)
}

// AppendUint32 appends v in big-endian byte order.
func (a *Appender) AppendUint32(v uint32) {
	a.grow(4)
	a.buf = binary.BigEndian.AppendUint32(a.buf, v)
}

func (a *Appender) grow(n int) {
	if len(a.buf)+n <= cap(a.buf) {
		return
	}
	grown := make([]byte, len(a.buf), 2*cap(a.buf)+n)
	copy(grown, a.buf)
	a.buf = grown
}

// Len returns the number of accumulated bytes.
func (a *Appender) Len() int { return len(a.buf) }

// Cap returns the current storage capacity.
func (a *Appender) Cap() int { return cap(a.buf) }

// Bytes returns the accumulated bytes. The slice aliases the Appender's
// storage and is invalidated by further appends.
func (a *Appender) Bytes() []byte { return a.buf }

// Reset empties the Appender, keeping the storage for reuse.
func (a *Appender) Reset() { a.buf = a.buf[:0] }

// Take hands the accumulated bytes to the caller and detaches them from
// the Appender, which is left empty with no storage.
func (a *Appender) Take() []byte {
	b := a.buf
	a.buf = nil
	return b
}
