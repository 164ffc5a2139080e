// Package buffer provides byte staging primitives for incremental protocol
// parsing.
//
// The package offers two types, each optimized for a different accumulation
// pattern:
//
//   - Buffer: a self-loading buffer that pulls bytes from an external data
//     source on demand, grows with a configurable allocation granularity,
//     and reclaims consumed prefixes without relocating unconsumed data more
//     often than necessary.
//
//   - Appender: a plain append-only byte array with doubling growth. No
//     external source, no compaction; suitable for assembling output.
//
// Buffer is single-threaded and non-reentrant. It owns its backing storage
// exclusively: slices returned by Slice are borrowed views that become
// invalid at the next Load, Resize, Compact, or Close call. Precondition
// violations (out-of-range indexes, a resize below the valid length, a fork
// destination that is too small) panic immediately rather than corrupting
// state; end-of-input and source errors are plain return values.
//
// Example usage:
//
//	src := source.Reader(conn)
//	buf := buffer.New(4096, 512, 0, src)
//
//	for {
//		n := buf.Load()
//		if n <= 0 {
//			break // end of input (0) or source error (<0)
//		}
//		consumed := parse(buf.Slice(0, buf.Len()))
//		buf.Compact(consumed)
//	}
package buffer
