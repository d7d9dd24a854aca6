// Package completion turns an evaluator's completion capability into
// well-formed results for the wire.
//
// [TokenBounds] computes the identifier span under a cursor with a fixed,
// language-agnostic rule (letters, digits, underscore). [Complete] drives an
// [github.com/quillkernel/quill/eval.Completer] and folds every failure mode
// into a [Result], so the dispatcher only ever sees a value it can serialize.
//
// Offsets are byte offsets throughout this package. Front-ends count in
// runes; use [ByteOffset] and [RuneOffset] to convert at the wire boundary.
package completion
