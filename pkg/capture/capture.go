// Package capture records what a loader delivers and plays it back later.
//
// A [Recorder] wraps any buffer.Loader and appends one [Chunk] per call to
// a Badger-backed [Store], including the terminal end-of-input or error
// result, so the exact byte stream a parser saw is preserved. A [Replayer]
// is itself a buffer.Loader that reproduces a recorded session verbatim,
// which makes protocol bugs replayable offline any number of times.
//
// Sessions travel between machines as framed msgpack dumps written through
// a storage.FileStore; see Export and Import.
package capture

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Session describes one recorded loader stream.
type Session struct {
	// ID is the session identifier, a UUID assigned at recording time.
	ID string `msgpack:"id" json:"id"`

	// Source labels where the bytes came from, typically the dial URL.
	Source string `msgpack:"source" json:"source"`

	// Started is the recording start time in Unix milliseconds.
	Started int64 `msgpack:"started" json:"started"`

	// Note is an optional operator-supplied annotation.
	Note string `msgpack:"note,omitempty" json:"note,omitempty"`
}

// Chunk is the result of a single loader call within a session.
//
// N mirrors the loader's signed-count protocol: positive chunks carry
// len(Data) == N bytes, a zero chunk records end of input, and a negative
// chunk records the source's error code. The first non-positive chunk is
// the last one in a session.
type Chunk struct {
	Seq  uint64 `msgpack:"seq" json:"seq"`
	Time int64  `msgpack:"time" json:"time"` // Unix milliseconds
	N    int    `msgpack:"n" json:"n"`
	Data []byte `msgpack:"-" json:"-"`
}

// Chunk data codecs used in the store and in dumps.
const (
	codecPlain = 0
	codecLZ4   = 1
)

// chunkRecord is the stored form of a Chunk. Data is lz4 block-compressed
// when that actually shrinks it; Size holds the uncompressed length so the
// decoder can allocate exactly.
type chunkRecord struct {
	Seq   uint64 `msgpack:"seq"`
	Time  int64  `msgpack:"time"`
	N     int    `msgpack:"n"`
	Codec uint8  `msgpack:"codec"`
	Size  int    `msgpack:"size,omitempty"`
	Data  []byte `msgpack:"data,omitempty"`
}

func encodeChunk(c Chunk) ([]byte, error) {
	rec := chunkRecord{Seq: c.Seq, Time: c.Time, N: c.N, Codec: codecPlain, Data: c.Data}
	if len(c.Data) > 0 {
		dst := make([]byte, lz4.CompressBlockBound(len(c.Data)))
		n, err := lz4.CompressBlock(c.Data, dst, nil)
		if err == nil && n > 0 && n < len(c.Data) {
			rec.Codec = codecLZ4
			rec.Size = len(c.Data)
			rec.Data = dst[:n]
		}
	}
	return msgpack.Marshal(rec)
}

func decodeChunk(data []byte) (Chunk, error) {
	var rec chunkRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Chunk{}, fmt.Errorf("capture: decode chunk: %w", err)
	}
	c := Chunk{Seq: rec.Seq, Time: rec.Time, N: rec.N}
	switch rec.Codec {
	case codecPlain:
		c.Data = rec.Data
	case codecLZ4:
		c.Data = make([]byte, rec.Size)
		n, err := lz4.UncompressBlock(rec.Data, c.Data)
		if err != nil {
			return Chunk{}, fmt.Errorf("capture: decompress chunk %d: %w", rec.Seq, err)
		}
		if n != rec.Size {
			return Chunk{}, fmt.Errorf("capture: chunk %d decompressed to %d bytes, recorded %d", rec.Seq, n, rec.Size)
		}
	default:
		return Chunk{}, fmt.Errorf("capture: chunk %d has unknown codec %d", rec.Seq, rec.Codec)
	}
	return c, nil
}
