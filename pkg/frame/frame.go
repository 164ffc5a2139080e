// Package frame reads and writes length-prefixed frames.
//
// The wire format is a 4-byte big-endian payload length followed by the
// payload itself. A [Scanner] parses the format incrementally from a
// self-loading [buffer.Buffer], compacting consumed frames and forking
// oversized payloads into their own allocations; Append and Write produce
// the format for the sending side.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/haivivi/streambuf/pkg/buffer"
)

// headerSize is the byte length of the frame header.
const headerSize = 4

// DefaultMaxSize is the payload size limit used when a Scanner is not
// configured with one. It guards against a corrupt or hostile header
// declaring a multi-gigabyte payload.
const DefaultMaxSize = 16 << 20

// Sentinel errors.
var (
	// ErrTooLarge is returned when a frame header declares a payload
	// larger than the configured maximum, and by Write when asked to
	// encode such a payload.
	ErrTooLarge = errors.New("frame: frame too large")
)

// Append appends one encoded frame (header plus payload) to a. It panics
// when the payload exceeds the representable size; sizing payloads is the
// programmer's job on the sending side.
func Append(a *buffer.Appender, payload []byte) {
	if len(payload) > maxEncodable {
		panic(fmt.Sprintf("frame: payload of %d bytes exceeds the wire format limit", len(payload)))
	}
	a.AppendUint32(uint32(len(payload)))
	a.Append(payload)
}

// maxEncodable is the largest payload the 4-byte header can declare.
const maxEncodable = 1<<32 - 1

// Write writes one encoded frame to w. Unlike Append it reports an
// oversized payload as ErrTooLarge instead of panicking, since w is
// typically fed from data the program did not construct itself.
func Write(w io.Writer, payload []byte) error {
	if len(payload) > maxEncodable {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
