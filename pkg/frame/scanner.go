package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/haivivi/streambuf/pkg/buffer"
)

// DefaultForkThreshold is the smallest payload the Scanner pulls through
// Buffer.Fork instead of staging inside the buffer, unless configured
// otherwise. Payloads below it stay resident and are returned as views.
const DefaultForkThreshold = 64 << 10

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithMaxSize sets the payload size limit. Frames declaring more than n
// bytes fail with ErrTooLarge. The default is DefaultMaxSize.
func WithMaxSize(n int) ScannerOption {
	return func(s *Scanner) { s.max = n }
}

// WithForkThreshold sets the payload size from which the Scanner switches
// to the fork path. The default is the larger of the buffer's initial
// capacity and DefaultForkThreshold.
func WithForkThreshold(n int) ScannerOption {
	return func(s *Scanner) { s.forkAt = n }
}

// WithSource tells the Scanner which loader feeds the buffer. When the
// loader reports a negative count and src implements Err() error (as
// every source.Source does), Next surfaces that error instead of the
// opaque code.
func WithSource(src buffer.Loader) ScannerOption {
	return func(s *Scanner) { s.src = src }
}

// Scanner parses length-prefixed frames from a self-loading buffer.
//
// Each Next call compacts the previously returned frame away, loads until
// the next frame is complete, and returns its payload. Small payloads are
// borrowed views into the buffer, valid only until the following Next
// call; payloads at or above the fork threshold are pulled into their own
// exact-size allocation via Buffer.Fork and belong to the caller.
//
// A Scanner is not safe for concurrent use. Its first error is sticky.
type Scanner struct {
	buf    *buffer.Buffer
	src    buffer.Loader
	off    int // bytes consumed by the frame returned last
	max    int
	forkAt int
	err    error
}

// NewScanner returns a Scanner reading frames from buf.
func NewScanner(buf *buffer.Buffer, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		buf: buf,
		max: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.forkAt <= 0 {
		s.forkAt = buf.Cap()
		if s.forkAt < DefaultForkThreshold {
			s.forkAt = DefaultForkThreshold
		}
	}
	return s
}

// Next returns the payload of the next frame.
//
// At a clean frame boundary an orderly end of input yields io.EOF; end of
// input in the middle of a frame yields io.ErrUnexpectedEOF. A payload
// declared larger than the limit yields ErrTooLarge. A negative loader
// count yields the source's error when known (see WithSource), otherwise
// an error carrying the code. All errors are sticky.
func (s *Scanner) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	payload, err := s.next()
	if err != nil {
		s.err = err
		return nil, err
	}
	return payload, nil
}

func (s *Scanner) next() ([]byte, error) {
	s.buf.Compact(s.off)
	s.off = 0

	if err := s.fill(headerSize); err != nil {
		return nil, err
	}
	size := int(binary.BigEndian.Uint32(s.buf.Slice(0, headerSize)))
	if size > s.max {
		return nil, fmt.Errorf("%w: header declares %d bytes, limit %d", ErrTooLarge, size, s.max)
	}

	// A payload at or above the fork threshold goes into its own exact
	// allocation: the resident remainder is copied out and the rest is
	// loaded directly, so the buffer never grows to hold it.
	if size >= s.forkAt && size >= s.buf.Len()-headerSize {
		dst := make([]byte, size)
		n := s.buf.Fork(headerSize, dst)
		if n < 0 {
			return nil, s.sourceErr(n)
		}
		if n < size {
			return nil, io.ErrUnexpectedEOF
		}
		// Everything resident belonged to this frame; drop it all.
		s.buf.Compact(s.buf.Len())
		return dst, nil
	}

	total := headerSize + size
	if s.buf.Cap() < total {
		s.buf.Resize(total)
	}
	if err := s.fill(total); err != nil {
		return nil, err
	}
	s.off = total
	return s.buf.Slice(headerSize, total), nil
}

// fill loads until the buffer holds at least total valid bytes.
func (s *Scanner) fill(total int) error {
	for s.buf.Len() < total {
		n := s.buf.Load()
		if n > 0 {
			continue
		}
		if n == 0 {
			if s.buf.Len() == 0 {
				return io.EOF
			}
			return io.ErrUnexpectedEOF
		}
		return s.sourceErr(n)
	}
	return nil
}

func (s *Scanner) sourceErr(code int) error {
	if e, ok := s.src.(interface{ Err() error }); ok {
		if err := e.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("frame: source failed with code %d", code)
}
