package eval

import (
	"context"

	"github.com/quillkernel/quill/wire"
)

// Evaluator is the pluggable engine that turns one source snippet into a
// value. Implementations own parsing, compilation state, and the language's
// execution semantics; the kernel owns everything around the call (output
// capture, counting, broadcast ordering).
//
// Contract:
// - Concurrency: the kernel calls Evaluate from a single worker; implementations
//   need not be safe for concurrent Evaluate calls but must keep count-indexed
//   state consistent across sequential calls.
// - Context: should honor cancellation/deadlines and return ctx.Err() when
//   canceled; the kernel does not impose a timeout of its own.
// - Errors: compile-time faults should be returned as *CompileError and
//   runtime faults as *RuntimeError; callers classify with errors.As.
// - Not ready: a nil Outcome with a nil error means the engine has not
//   finished initializing. Callers must treat it as unavailable, never as an
//   empty result.
// - Ownership: code is read-only; the returned Outcome is caller-owned.
type Evaluator interface {
	// Evaluate runs one snippet. count is the execution counter value
	// assigned to this snippet; engines that keep per-cell compilation
	// state key it by count.
	Evaluate(ctx context.Context, code string, count int) (*Outcome, error)
}

// Completer proposes completions for the identifier under a cursor.
// Evaluators that support completion implement it alongside Evaluator; the
// kernel discovers the capability with a type assertion.
//
// Contract:
// - cursor is a byte offset into code, 0 <= cursor <= len(code).
// - count identifies the compilation state the proposals are resolved
//   against (the current execution counter value).
// - A nil candidate slice with a nil error means no proposals.
// - Errors and panics are contained by the completion engine; they never
//   reach the wire as faults.
type Completer interface {
	Complete(ctx context.Context, code string, cursor, count int) ([]Candidate, error)
}

// Checker reports whether a snippet forms a syntactically complete unit,
// for front-ends that decide between "execute now" and "wait for more
// input". Optional capability, discovered by type assertion.
type Checker interface {
	// CheckComplete returns true when code can be executed as-is. A
	// *CompileError marks code that can never become complete.
	CheckComplete(ctx context.Context, code string, count int) (bool, error)
}

// Inspector lists diagnostics for a snippet without executing it. Optional
// capability.
type Inspector interface {
	Inspect(ctx context.Context, code string) ([]Diagnostic, error)
}

// Renderer converts an arbitrary result value into a display bundle. The
// kernel treats rendering as fallible: a renderer error downgrades a
// successful evaluation to an error response without losing captured output.
type Renderer interface {
	Render(v any) (wire.MIMEBundle, error)
}

// Outcome is what one evaluation produced: the primary result value and any
// display values emitted along the way. A nil Result is a snippet that
// produced no value (statements, definitions).
type Outcome struct {
	// Result is the snippet's final value, nil when it produced none.
	Result any

	// Displays holds values displayed during evaluation, in emission order.
	Displays []any
}

// DisplayValue wraps a value that is already a display bundle. When an
// Outcome's Result is a *DisplayValue the kernel appends it to the display
// sequence instead of rendering it as the printed result.
type DisplayValue struct {
	Data wire.MIMEBundle
}

// Display wraps a bundle for use as an Outcome result or display value.
func Display(data wire.MIMEBundle) *DisplayValue {
	return &DisplayValue{Data: data}
}

// Candidate is one completion proposal.
type Candidate struct {
	// Text is inserted over the token span when the candidate is accepted.
	Text string

	// Type is the type-tail hint displayed alongside the text, e.g.
	// "func(string) int". Empty when the engine has none.
	Type string
}

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Position is a 1-based line/column location in source text.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Diagnostic is one inspection finding. Start and End are nil when the
// engine cannot attribute the finding to a span.
type Diagnostic struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Start    *Position `json:"start,omitempty"`
	End      *Position `json:"end,omitempty"`
}
