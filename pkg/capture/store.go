package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a session or chunk does not exist.
	ErrNotFound = errors.New("capture: not found")

	// ErrExists is returned by Import when the dump's session is already
	// in the store.
	ErrExists = errors.New("capture: session already exists")
)

// Key layout:
//
//	s:<id>        → msgpack-encoded Session
//	c:<id>:<seq>  → msgpack-encoded chunkRecord
//
// The sequence number is fixed-width big-endian so Badger's lexicographic
// iteration order is the numeric chunk order.

func sessionKey(id string) []byte {
	return []byte("s:" + id)
}

func chunkKey(id string, seq uint64) []byte {
	k := make([]byte, 0, 2+len(id)+1+8)
	k = append(k, "c:"...)
	k = append(k, id...)
	k = append(k, ':')
	return binary.BigEndian.AppendUint64(k, seq)
}

func chunkPrefix(id string) []byte {
	return []byte("c:" + id + ":")
}

// Store persists sessions and chunks in a BadgerDB database.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a capture store in dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("capture: store directory is required")
	}
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a store with no disk persistence. It exercises the
// real Badger engine and is intended for tests.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(slogLogger{}))
	if err != nil {
		return nil, fmt.Errorf("capture: open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutSession stores a session record, overwriting any previous one with
// the same ID.
func (s *Store) PutSession(sess Session) error {
	if sess.ID == "" {
		return errors.New("capture: session has no ID")
	}
	data, err := msgpack.Marshal(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(sess.ID), data)
	})
}

// Session retrieves a session by ID. Returns ErrNotFound if absent.
func (s *Store) Session(id string) (Session, error) {
	var sess Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return sess, err
}

// Sessions iterates over all stored sessions in ID order.
func (s *Store) Sessions() iter.Seq2[Session, error] {
	prefix := []byte("s:")
	return func(yield func(Session, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				var sess Session
				err := it.Item().Value(func(val []byte) error {
					return msgpack.Unmarshal(val, &sess)
				})
				if !yield(sess, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Session{}, err)
		}
	}
}

// AppendChunk stores one chunk of a session.
func (s *Store) AppendChunk(id string, c Chunk) error {
	data, err := encodeChunk(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(id, c.Seq), data)
	})
}

// Chunk retrieves a single chunk by sequence number. Returns ErrNotFound
// if absent.
func (s *Store) Chunk(id string, seq uint64) (Chunk, error) {
	var c Chunk
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(id, seq))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			c, derr = decodeChunk(val)
			return derr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Chunk{}, fmt.Errorf("%w: session %s chunk %d", ErrNotFound, id, seq)
	}
	return c, err
}

// Chunks iterates over a session's chunks in sequence order.
func (s *Store) Chunks(id string) iter.Seq2[Chunk, error] {
	prefix := chunkPrefix(id)
	return func(yield func(Chunk, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				var c Chunk
				err := it.Item().Value(func(val []byte) error {
					var derr error
					c, derr = decodeChunk(val)
					return derr
				})
				if !yield(c, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Chunk{}, err)
		}
	}
}

// DeleteSession removes a session and all its chunks. Deleting an absent
// session is not an error.
func (s *Store) DeleteSession(id string) error {
	// Collect the chunk keys first; Badger forbids writes during iteration
	// on the same transaction, and a WriteBatch handles arbitrary counts.
	var keys [][]byte
	prefix := chunkPrefix(id)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Delete(sessionKey(id)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// slogLogger routes Badger's logging into slog, dropping the info and
// debug chatter.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...interface{}) {
	slog.Error("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (slogLogger) Warningf(f string, v ...interface{}) {
	slog.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (slogLogger) Infof(string, ...interface{})  {}
func (slogLogger) Debugf(string, ...interface{}) {}
