package kernel

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/wire"
)

func newRespondKernel(t *testing.T, renderer eval.Renderer) *Kernel {
	t.Helper()
	cfg := Config{Renderer: renderer}
	k, err := newKernel(cfg)
	require.NoError(t, err)
	return k
}

func TestRespondSuccess(t *testing.T) {
	muteStdout(t)
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		fmt.Fprint(os.Stdout, "working\n")
		return &eval.Outcome{Result: 42}, nil
	})

	assert.True(t, resp.OK)
	assert.Equal(t, "42", resp.Result[wire.MIMEText])
	assert.Equal(t, "working\n", resp.Stdout)
	assert.Empty(t, resp.Stderr)
	assert.Empty(t, resp.Displays)
}

func TestRespondNoResult(t *testing.T) {
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		return &eval.Outcome{}, nil
	})

	assert.True(t, resp.OK)
	assert.Nil(t, resp.Result)
}

func TestRespondNotReady(t *testing.T) {
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		return nil, nil
	})

	assert.False(t, resp.OK)
	assert.Equal(t, errorPlaceholder, resp.Result[wire.MIMEText],
		"error responses carry the placeholder, never a raw value")
	assert.Equal(t, "NO REPL!", resp.Stderr)
}

func TestRespondCompileFault(t *testing.T) {
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		fmt.Fprint(os.Stderr, "warming up\n")
		return nil, &eval.CompileError{Message: "unexpected token", Line: 2, Column: 5}
	})

	assert.False(t, resp.OK)
	assert.Equal(t, "warming up\nunexpected token (line 2, col 5)", resp.Stderr,
		"captured stderr comes first, then the fault message")
	assert.Equal(t, errorPlaceholder, resp.Result[wire.MIMEText])
}

func TestRespondRuntimeFaultNoCause(t *testing.T) {
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		return nil, &eval.RuntimeError{Message: "divide by zero"}
	})

	assert.False(t, resp.OK)
	assert.Equal(t, "divide by zero", resp.Stderr)
}

func TestRespondRuntimeFaultWithCauseAndStack(t *testing.T) {
	k := newRespondKernel(t, nil)
	inner := errors.New("index out of range")
	wrapped := fmt.Errorf("invoking cell: %w", fmt.Errorf("relay: %w", inner))

	resp := k.respond(func() (*eval.Outcome, error) {
		return nil, &eval.RuntimeError{
			Message: "evaluation failed",
			Cause:   wrapped,
			Stack:   []string{"at lookup (cell 3)", "at main (cell 3)"},
		}
	})

	assert.False(t, resp.OK)
	lines := strings.Split(resp.Stderr, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index out of range", lines[0],
		"wrapper causes unwrap to the innermost fault")
	assert.Equal(t, "at lookup (cell 3)", lines[1])
	assert.Equal(t, "at main (cell 3)", lines[2])
}

func TestRespondUntypedErrorIsRuntimeFault(t *testing.T) {
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		return nil, errors.New("engine hiccup")
	})

	assert.False(t, resp.OK)
	assert.Equal(t, "engine hiccup", resp.Stderr)
}

func TestRespondDisplays(t *testing.T) {
	k := newRespondKernel(t, nil)

	resp := k.respond(func() (*eval.Outcome, error) {
		return &eval.Outcome{
			Result:   "final",
			Displays: []any{"first", "second"},
		}, nil
	})

	require.True(t, resp.OK)
	require.Len(t, resp.Displays, 2)
	assert.Equal(t, "first", resp.Displays[0][wire.MIMEText])
	assert.Equal(t, "second", resp.Displays[1][wire.MIMEText])
	assert.Equal(t, "final", resp.Result[wire.MIMEText])
}

func TestRespondDisplayWrapperPrimary(t *testing.T) {
	k := newRespondKernel(t, nil)
	rich := wire.MIMEBundle{"text/html": "<table/>", wire.MIMEText: "table"}

	resp := k.respond(func() (*eval.Outcome, error) {
		return &eval.Outcome{
			Result:   eval.Display(rich),
			Displays: []any{"before"},
		}, nil
	})

	require.True(t, resp.OK)
	assert.Nil(t, resp.Result, "a display-wrapper primary is not a printed result")
	require.Len(t, resp.Displays, 2)
	assert.Equal(t, "before", resp.Displays[0][wire.MIMEText])
	assert.Equal(t, "<table/>", resp.Displays[1]["text/html"],
		"the unwrapped primary joins the end of the display sequence")
}

type failingRenderer struct{ err error }

func (r failingRenderer) Render(v any) (wire.MIMEBundle, error) {
	return nil, r.err
}

func TestRespondRendererFailure(t *testing.T) {
	muteStdout(t)
	k := newRespondKernel(t, failingRenderer{err: errors.New("unprintable value")})

	resp := k.respond(func() (*eval.Outcome, error) {
		fmt.Fprint(os.Stdout, "kept output")
		return &eval.Outcome{Result: struct{}{}}, nil
	})

	assert.False(t, resp.OK)
	assert.Equal(t, "kept output", resp.Stdout,
		"captured stdout survives a renderer failure")
	assert.Equal(t, "Unable to convert result to a string: unprintable value", resp.Stderr)
	assert.Equal(t, errorPlaceholder, resp.Result[wire.MIMEText])
}

func TestRespondStderrNotMirrored(t *testing.T) {
	// The mirror target for stderr is the handle saved at capture entry;
	// swap it for a pipe to prove nothing is forwarded.
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	k := newRespondKernel(t, nil)
	resp := k.respond(func() (*eval.Outcome, error) {
		fmt.Fprint(os.Stderr, "secret")
		return &eval.Outcome{}, nil
	})

	os.Stderr = orig
	w.Close()
	leaked := make([]byte, 16)
	n, _ := r.Read(leaked)

	assert.Equal(t, "secret", resp.Stderr)
	assert.Zero(t, n, "stderr must be captured without mirroring")
}

func TestAppendLine(t *testing.T) {
	tests := []struct {
		name     string
		captured string
		text     string
		want     string
	}{
		{"empty capture", "", "fault", "fault"},
		{"newline terminated", "out\n", "fault", "out\nfault"},
		{"unterminated", "out", "fault", "out\nfault"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, appendLine(tt.captured, tt.text))
		})
	}
}
