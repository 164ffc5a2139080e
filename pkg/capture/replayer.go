package capture

import (
	"errors"

	"github.com/haivivi/streambuf/pkg/buffer"
)

// Replayer is a buffer.Loader that reproduces a recorded session. Data
// chunks are delivered in sequence order with partial-delivery carry: a
// recorded chunk larger than the requested region spans several loads.
// A recorded terminal chunk (zero or negative) is reproduced verbatim and
// then repeated, as a real terminated source would. A session whose
// recording simply stops reports end of input after the last chunk.
type Replayer struct {
	store *Store
	id    string
	seq   uint64
	carry []byte // unread remainder of the current chunk
	final int    // terminal result to repeat, valid once done
	done  bool
	err   error
}

var _ buffer.Loader = (*Replayer)(nil)

// NewReplayer opens a replay of the given session. The session must exist;
// chunks are fetched lazily as the replay progresses.
func NewReplayer(store *Store, id string) (*Replayer, error) {
	if _, err := store.Session(id); err != nil {
		return nil, err
	}
	return &Replayer{store: store, id: id}, nil
}

// Load implements buffer.Loader.
func (r *Replayer) Load(p []byte) int {
	if r.done {
		return r.final
	}
	if len(r.carry) > 0 {
		n := copy(p, r.carry)
		r.carry = r.carry[n:]
		return n
	}
	c, err := r.store.Chunk(r.id, r.seq)
	if err != nil {
		// Past the last chunk, or the store failed: either way the
		// stream is over. Err distinguishes the two.
		if !errors.Is(err, ErrNotFound) {
			r.err = err
		}
		r.done = true
		r.final = 0
		return 0
	}
	r.seq++
	if c.N <= 0 {
		r.done = true
		r.final = c.N
		return c.N
	}
	n := copy(p, c.Data)
	if n < len(c.Data) {
		r.carry = c.Data[n:]
	}
	return n
}

// Err returns the store error that ended the replay early, if any.
func (r *Replayer) Err() error { return r.err }
