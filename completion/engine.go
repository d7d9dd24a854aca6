package completion

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/wire"
)

// Complete resolves completions for the token under the cursor. It blocks
// until the completer finishes: the dispatcher must not reply before the
// candidates exist.
//
// cursor and count follow the eval.Completer contract (byte offset,
// execution counter). Candidate display text and type hints pass through
// unmodified. Zero candidates yield Empty. Any error or panic from the
// completer is converted into an error Result carrying the fault's short
// type name, message and a textual trace; faults never unwind to the caller.
//
// A cursor outside [0, len(code)] is a programming fault and panics before
// the completer is consulted.
func Complete(ctx context.Context, completer eval.Completer, code string, cursor, count int) Result {
	start, end := TokenBounds(code, cursor)

	candidates, err := invoke(ctx, completer, code, cursor, count)
	if err != nil {
		return Result{
			Status:    wire.StatusError,
			Matches:   []string{},
			Metadata:  []string{},
			Code:      code,
			Cursor:    cursor,
			EName:     faultName(err),
			EValue:    err.Error(),
			Traceback: faultTrace(err),
		}
	}
	if len(candidates) == 0 {
		return Empty(code, cursor)
	}

	matches := make([]string, len(candidates))
	metadata := make([]string, len(candidates))
	for i, c := range candidates {
		matches[i] = c.Text
		metadata[i] = c.Type
	}
	return Result{
		Status:      wire.StatusOK,
		Matches:     matches,
		CursorStart: start,
		CursorEnd:   end,
		Metadata:    metadata,
		Code:        code,
		Cursor:      cursor,
	}
}

// invoke calls the completer, converting a panic into an error that carries
// the goroutine stack at the point of failure.
func invoke(ctx context.Context, completer eval.Completer, code string, cursor, count int) (candidates []eval.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return completer.Complete(ctx, code, cursor, count)
}

// panicError adapts a recovered panic value to the error interface so one
// rendering path serves both failure modes.
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

// faultName renders the unqualified type name of a fault, following
// pointers to the named type underneath.
func faultName(err error) string {
	v := any(err)
	if p, ok := err.(*panicError); ok {
		if p.value == nil {
			return "panic"
		}
		v = p.value
	}
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Error"
	}
	return t.Name()
}

// faultTrace renders a textual trace: the recovered goroutine stack for
// panics, the evaluator-provided stack when one exists, otherwise the
// unwrap chain one message per line.
func faultTrace(err error) []string {
	if p, ok := err.(*panicError); ok {
		return strings.Split(strings.TrimRight(p.stack, "\n"), "\n")
	}
	var re *eval.RuntimeError
	if errors.As(err, &re) && len(re.Stack) > 0 {
		return re.Stack
	}
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return lines
}
