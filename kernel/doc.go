// Package kernel implements the message dispatcher at the heart of quill:
// the protocol state machine that consumes requests one at a time, drives
// the evaluator under output capture, and emits each request's strictly
// ordered reply and broadcast sequence.
//
// # Dispatch
//
// [Kernel.Run] serves a [github.com/quillkernel/quill/transport.Streams]
// until canceled or until a shutdown request is served. Every recognized
// kind produces exactly one reply; execute requests additionally produce
// the broadcast sequence clients reconstruct a cell from:
//
//	status(busy), execute_input, stream*, execute_result?, display_data*, status(idle)
//
// Two execute requests never interleave their broadcasts; the loop is a
// single worker and each sequence completes before the next dispatch.
//
// # Responses
//
// [Response] is the uniform classification of one evaluation: success with
// rendered result and displays, or failure with the fault rendered onto
// stderr. The not-ready engine, compile faults, runtime faults and renderer
// failures each map to a distinct, recoverable response; the kernel never
// exits because an evaluation failed.
//
// # Embedding
//
// [Embedded] drives the same pipeline without sockets, for hosts that link
// the kernel in directly. [NewMetrics] adds Prometheus observation of the
// loop. Both are optional; a zero [Config] plus a transport is a working
// kernel with the not-ready evaluator behavior.
package kernel
