// Package eval defines the boundary between the kernel and the language
// engine that actually evaluates code.
//
// # Capabilities
//
// [Evaluator] is the one required capability. [Completer], [Checker] and
// [Inspector] are optional; the kernel discovers them with type assertions
// on the evaluator value it was configured with. [Renderer] is the injected
// display-conversion capability, defaulting to [TextRenderer].
//
// # Outcomes and faults
//
// Evaluate returns an [Outcome] carrying the primary result and any display
// values. A nil Outcome with a nil error means the engine is not ready.
// Faults are classified by type: [CompileError] for parse/compile failures,
// [RuntimeError] for failures while the snippet ran. Both match their
// sentinel ([ErrCompile], [ErrRuntime]) under errors.Is, so callers can
// classify without naming the concrete type.
package eval
