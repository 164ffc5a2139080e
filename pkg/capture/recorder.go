package capture

import (
	"time"

	"github.com/haivivi/streambuf/pkg/buffer"
)

// Recorder is a buffer.Loader that delegates to an underlying source and
// appends one chunk per call to a Store. Every result is recorded,
// including the terminal zero or negative one, after which recording
// stops; the pass-through itself never stops.
//
// Store failures do not disturb the stream: the first one is retained for
// Err and recording ceases, while Load keeps delegating.
type Recorder struct {
	src     buffer.Loader
	store   *Store
	session Session
	seq     uint64
	done    bool
	err     error
}

var _ buffer.Loader = (*Recorder)(nil)

// NewRecorder starts recording src into store under the given session.
// The session record is written immediately; chunks follow as Load runs.
func NewRecorder(src buffer.Loader, store *Store, sess Session) *Recorder {
	r := &Recorder{src: src, store: store, session: sess}
	if err := store.PutSession(sess); err != nil {
		r.err = err
		r.done = true
	}
	return r
}

// Load implements buffer.Loader.
func (r *Recorder) Load(p []byte) int {
	n := r.src.Load(p)
	if r.done {
		return n
	}
	c := Chunk{
		Seq:  r.seq,
		Time: time.Now().UnixMilli(),
		N:    n,
	}
	if n > 0 {
		c.Data = p[:n]
	}
	if err := r.store.AppendChunk(r.session.ID, c); err != nil {
		r.err = err
		r.done = true
		return n
	}
	r.seq++
	if n <= 0 {
		r.done = true
	}
	return n
}

// Session returns the session being recorded.
func (r *Recorder) Session() Session { return r.session }

// Chunks returns the number of chunks recorded so far.
func (r *Recorder) Chunks() uint64 { return r.seq }

// Err returns the first store error, if any. A non-nil Err means the
// recording is incomplete; the stream itself was unaffected.
func (r *Recorder) Err() error { return r.err }
