// Package source provides buffer.Loader implementations backed by common
// transports.
//
// Every adapter translates Go I/O results into the loader's signed-count
// protocol: a positive count for delivered bytes, 0 for orderly end of
// input, and -1 for a failure. The Go error behind a -1 stays available
// through the Source interface:
//
//	n := buf.Load()
//	if n < 0 {
//		return src.Err()
//	}
//
// Adapters are terminal: after reporting 0 or -1 they keep reporting the
// same result on every later call. None of them are safe for concurrent
// use, matching the buffer they feed.
package source

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/haivivi/streambuf/pkg/buffer"
)

// Source is a buffer.Loader that retains the Go error behind a negative
// count. Err returns nil while the source is healthy and after orderly end
// of input; it returns the cause once Load has reported a negative count.
type Source interface {
	buffer.Loader
	Err() error
}

// Reader adapts an io.Reader. A read error arriving together with data is
// held back and delivered on the next call, so no bytes are lost. io.EOF
// maps to 0, every other error to -1.
func Reader(r io.Reader) Source {
	return &readerSource{r: r}
}

// Conn adapts a net.Conn. When timeout is positive, a read deadline of
// now+timeout is set before every read; an overrun surfaces as -1 with Err
// unwrapping to os.ErrDeadlineExceeded.
func Conn(c net.Conn, timeout time.Duration) Source {
	if timeout <= 0 {
		return Reader(c)
	}
	return &readerSource{r: &deadlineReader{c: c, timeout: timeout}}
}

// Bytes feeds the given data from memory, at most chunk bytes per call
// (chunk <= 0 delivers as much as the region holds), then reports end of
// input forever.
func Bytes(data []byte, chunk int) Source {
	return &bytesSource{data: data, chunk: chunk}
}

const (
	stateActive = iota
	stateEOF
	stateFailed
)

// maxEmptyReads bounds tolerance for readers that return 0, nil,
// mirroring bufio's limit.
const maxEmptyReads = 100

type readerSource struct {
	r       io.Reader
	pending error // non-nil error delivered alongside data, due next call
	err     error
	state   int
}

var _ Source = (*readerSource)(nil)

func (s *readerSource) Load(p []byte) int {
	switch s.state {
	case stateEOF:
		return 0
	case stateFailed:
		return -1
	}
	if s.pending != nil {
		return s.finish(s.pending)
	}
	for i := 0; i < maxEmptyReads; i++ {
		n, err := s.r.Read(p)
		if n > 0 {
			if err != nil {
				s.pending = err
			}
			return n
		}
		if err != nil {
			return s.finish(err)
		}
		if len(p) == 0 {
			return 0
		}
	}
	return s.finish(io.ErrNoProgress)
}

func (s *readerSource) finish(err error) int {
	s.pending = nil
	if errors.Is(err, io.EOF) {
		s.state = stateEOF
		return 0
	}
	s.state = stateFailed
	s.err = err
	return -1
}

func (s *readerSource) Err() error { return s.err }

type deadlineReader struct {
	c       net.Conn
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if err := d.c.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
		return 0, err
	}
	return d.c.Read(p)
}

type bytesSource struct {
	data  []byte
	pos   int
	chunk int
}

var _ Source = (*bytesSource)(nil)

func (s *bytesSource) Load(p []byte) int {
	rest := s.data[s.pos:]
	if len(rest) == 0 {
		return 0
	}
	n := len(p)
	if n > len(rest) {
		n = len(rest)
	}
	if s.chunk > 0 && n > s.chunk {
		n = s.chunk
	}
	copy(p, rest[:n])
	s.pos += n
	return n
}

func (s *bytesSource) Err() error { return nil }
