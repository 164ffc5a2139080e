package capture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/streambuf/pkg/buffer"
	"github.com/haivivi/streambuf/pkg/frame"
	"github.com/haivivi/streambuf/pkg/source"
	"github.com/haivivi/streambuf/pkg/storage"
)

// Dump format: a stream of length-prefixed frames. Frame 0 is the msgpack
// Session record; every following frame is a msgpack chunkRecord, with
// chunk data lz4-compressed exactly as in the store.

// flushAt is the batch size at which Export flushes accumulated frames.
const flushAt = 256 << 10

// dumpBufferSize and dumpMinLoading size the self-loading buffer Import
// reads dumps through.
const (
	dumpBufferSize = 64 << 10
	dumpMinLoading = 8 << 10
)

// Export writes the named session and all its chunks to path in fs as a
// framed msgpack dump.
func Export(ctx context.Context, store *Store, id string, fs storage.FileStore, path string) error {
	sess, err := store.Session(id)
	if err != nil {
		return err
	}
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}

	var a buffer.Appender
	head, err := msgpack.Marshal(sess)
	if err != nil {
		w.Close()
		return err
	}
	frame.Append(&a, head)

	for c, cerr := range store.Chunks(id) {
		if cerr != nil {
			w.Close()
			return cerr
		}
		rec, err := encodeChunk(c)
		if err != nil {
			w.Close()
			return err
		}
		frame.Append(&a, rec)
		if a.Len() >= flushAt {
			if _, err := w.Write(a.Bytes()); err != nil {
				w.Close()
				return err
			}
			a.Reset()
		}
	}
	if a.Len() > 0 {
		if _, err := w.Write(a.Bytes()); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// Import reads a dump from path in fs and inserts its session and chunks
// into the store. A dump whose session is already present fails with
// ErrExists before anything is written.
func Import(ctx context.Context, store *Store, fs storage.FileStore, path string) (Session, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return Session{}, err
	}
	defer r.Close()

	// The dump is read back through the library's own load path.
	src := source.Reader(r)
	buf := buffer.New(dumpBufferSize, dumpMinLoading, 0, src)
	defer buf.Close()
	sc := frame.NewScanner(buf, frame.WithSource(src))

	head, err := sc.Next()
	if err != nil {
		return Session{}, fmt.Errorf("capture: read dump header: %w", err)
	}
	var sess Session
	if err := msgpack.Unmarshal(head, &sess); err != nil {
		return Session{}, fmt.Errorf("capture: decode dump session: %w", err)
	}
	if sess.ID == "" {
		return Session{}, errors.New("capture: dump session has no ID")
	}
	if _, err := store.Session(sess.ID); err == nil {
		return Session{}, fmt.Errorf("%w: %s", ErrExists, sess.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	if err := store.PutSession(sess); err != nil {
		return Session{}, err
	}

	for {
		payload, err := sc.Next()
		if err == io.EOF {
			return sess, nil
		}
		if err != nil {
			return Session{}, fmt.Errorf("capture: read dump: %w", err)
		}
		c, err := decodeChunk(payload)
		if err != nil {
			return Session{}, err
		}
		if err := store.AppendChunk(sess.ID, c); err != nil {
			return Session{}, err
		}
	}
}
