package source

import (
	"context"
	"net"
	"time"

	"github.com/googleapis/gax-go/v2"
)

// DialFunc opens a connection to the data source.
type DialFunc func(ctx context.Context) (net.Conn, error)

const (
	defaultBackoffInitial = 500 * time.Millisecond
	defaultBackoffMax     = 30 * time.Second
	defaultBackoffMult    = 2.0
)

// RedialOption configures a Redialer.
type RedialOption func(*Redialer)

// WithBackoff sets the reconnect backoff schedule. The pause starts at
// initial and is multiplied by multiplier after each failed attempt, capped
// at max. The schedule resets after a successful read.
func WithBackoff(initial, max time.Duration, multiplier float64) RedialOption {
	return func(r *Redialer) {
		r.initial, r.max, r.mult = initial, max, multiplier
	}
}

// WithReadTimeout sets a per-read deadline. A stalled connection then
// counts as dropped and triggers a reconnect instead of blocking forever.
func WithReadTimeout(d time.Duration) RedialOption {
	return func(r *Redialer) { r.timeout = d }
}

// Redial returns a Source that keeps the stream alive across connection
// drops. Any read failure, including a remote end of stream, closes the
// current connection and dials again with exponential backoff.
//
// A Redialer never reports 0: an auto-reconnecting stream has no orderly
// end. It reports -1 only once ctx is done, with Err returning the cause.
func Redial(ctx context.Context, dial DialFunc, opts ...RedialOption) *Redialer {
	r := &Redialer{
		ctx:     ctx,
		dial:    dial,
		initial: defaultBackoffInitial,
		max:     defaultBackoffMax,
		mult:    defaultBackoffMult,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetBackoff()
	return r
}

// Redialer is an auto-reconnecting Source. See Redial.
type Redialer struct {
	ctx     context.Context
	dial    DialFunc
	timeout time.Duration
	initial time.Duration
	max     time.Duration
	mult    float64

	bo   gax.Backoff
	conn net.Conn
	err  error
}

var _ Source = (*Redialer)(nil)

// Load implements buffer.Loader. It blocks until at least one byte arrives
// or ctx is done.
func (r *Redialer) Load(p []byte) int {
	if r.err != nil {
		return -1
	}
	for {
		if r.ctx.Err() != nil {
			return r.fail(context.Cause(r.ctx))
		}
		if r.conn == nil {
			conn, err := r.dial(r.ctx)
			if err != nil {
				if err := gax.Sleep(r.ctx, r.bo.Pause()); err != nil {
					return r.fail(err)
				}
				continue
			}
			r.conn = conn
		}
		n, err := r.read(p)
		if n > 0 {
			if err != nil {
				r.drop()
			}
			r.resetBackoff()
			return n
		}
		r.drop()
		if err := gax.Sleep(r.ctx, r.bo.Pause()); err != nil {
			return r.fail(err)
		}
	}
}

func (r *Redialer) read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}

// Err implements Source.
func (r *Redialer) Err() error { return r.err }

// Close releases the current connection, if any. The Redialer stays usable
// and reconnects on the next Load; cancel the context to stop it for good.
func (r *Redialer) Close() error {
	r.drop()
	return nil
}

func (r *Redialer) drop() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *Redialer) fail(err error) int {
	r.drop()
	r.err = err
	return -1
}

func (r *Redialer) resetBackoff() {
	r.bo = gax.Backoff{Initial: r.initial, Max: r.max, Multiplier: r.mult}
}
