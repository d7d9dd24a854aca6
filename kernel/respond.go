package kernel

import (
	"errors"
	"strings"

	"github.com/quillkernel/quill/capture"
	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/wire"
)

// errorPlaceholder stands in for a result when an evaluation fails. Error
// responses never expose the evaluator's raw value.
const errorPlaceholder = "Error"

// notReadyStderr is appended to stderr when no evaluator is attached.
const notReadyStderr = "NO REPL!"

// Response is the uniform outcome of one evaluation: success or failure,
// the rendered result and displays, and everything the snippet wrote.
// It is built once per execute request and consumed immediately.
type Response struct {
	// OK reports whether the evaluation succeeded.
	OK bool

	// Result is the rendered primary value. nil when the snippet produced
	// no value; a placeholder rendering when the evaluation failed.
	Result wire.MIMEBundle

	// Displays holds the rendered display values, in emission order.
	Displays []wire.MIMEBundle

	// Stdout and Stderr carry the captured output. On failure Stderr ends
	// with the rendered fault.
	Stdout string
	Stderr string
}

// respond runs one evaluation callable under output capture and classifies
// what came back. Stdout is mirrored to the real terminal while captured;
// stderr is captured only.
//
// Classification:
//   - nil outcome with nil error: the engine is not attached or not ready.
//   - *eval.CompileError / *eval.RuntimeError: rendered onto stderr after
//     whatever the snippet already wrote.
//   - any other error: treated as a runtime fault.
//   - success: displays and the primary result are rendered through the
//     configured renderer; a renderer failure downgrades the response to an
//     error while keeping captured stdout.
//
// Panics out of the callable are defects, not modeled outcomes; capture
// restores the stream handles and the panic propagates.
func (k *Kernel) respond(call func() (*eval.Outcome, error)) Response {
	var outcome *eval.Outcome
	var evalErr error
	stdout, stderr, capErr := capture.Capture(true, false, func() error {
		outcome, evalErr = call()
		return nil
	})
	if capErr != nil {
		return Response{
			OK:     false,
			Result: wire.TextBundle(errorPlaceholder),
			Stderr: capErr.Error(),
		}
	}

	if evalErr != nil {
		return Response{
			OK:     false,
			Result: wire.TextBundle(errorPlaceholder),
			Stdout: stdout,
			Stderr: appendLine(stderr, renderFault(evalErr)),
		}
	}
	if outcome == nil {
		return Response{
			OK:     false,
			Result: wire.TextBundle(errorPlaceholder),
			Stdout: stdout,
			Stderr: appendLine(stderr, notReadyStderr),
		}
	}

	resp := Response{OK: true, Stdout: stdout, Stderr: stderr}
	if err := k.render(outcome, &resp); err != nil {
		return Response{
			OK:     false,
			Result: wire.TextBundle(errorPlaceholder),
			Stdout: stdout,
			Stderr: appendLine(stderr, "Unable to convert result to a string: "+err.Error()),
		}
	}
	return resp
}

// render fills resp from a successful outcome: display values first, then
// the primary result. A primary that is itself a display wrapper joins the
// display sequence instead of becoming the printed result.
func (k *Kernel) render(outcome *eval.Outcome, resp *Response) error {
	for _, v := range outcome.Displays {
		bundle, err := k.cfg.Renderer.Render(v)
		if err != nil {
			return err
		}
		if bundle != nil {
			resp.Displays = append(resp.Displays, bundle)
		}
	}
	switch v := outcome.Result.(type) {
	case nil:
	case *eval.DisplayValue:
		resp.Displays = append(resp.Displays, v.Data)
	default:
		bundle, err := k.cfg.Renderer.Render(v)
		if err != nil {
			return err
		}
		resp.Result = bundle
	}
	return nil
}

// renderFault turns an evaluation fault into the text appended to stderr.
// Compile faults use their message. Runtime faults without a cause use the
// message; with a cause, the innermost cause followed by each stack frame on
// its own line.
func renderFault(err error) string {
	var re *eval.RuntimeError
	if errors.As(err, &re) {
		if re.Cause == nil {
			return re.Message
		}
		lines := append([]string{eval.RootCause(re.Cause).Error()}, re.Stack...)
		return strings.Join(lines, "\n")
	}
	var ce *eval.CompileError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}

// appendLine appends text to captured output, inserting a newline when the
// capture does not already end with one.
func appendLine(captured, text string) string {
	if captured == "" || strings.HasSuffix(captured, "\n") {
		return captured + text
	}
	return captured + "\n" + text
}
