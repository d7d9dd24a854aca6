package bridge

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/kernel"
)

// calcEvaluator echoes code back as its result and proposes one canned
// completion.
type calcEvaluator struct{}

func (calcEvaluator) Evaluate(ctx context.Context, code string, count int) (*eval.Outcome, error) {
	return &eval.Outcome{Result: "echo:" + code}, nil
}

func (calcEvaluator) Complete(ctx context.Context, code string, cursor, count int) ([]eval.Candidate, error) {
	return []eval.Candidate{{Text: "velocity", Type: "float64"}}, nil
}

// faultingEvaluator completes with an error to exercise containment.
type faultingEvaluator struct{ calcEvaluator }

func (faultingEvaluator) Complete(ctx context.Context, code string, cursor, count int) ([]eval.Candidate, error) {
	return nil, errors.New("resolver offline")
}

// muteStdout silences the capture mirror for the duration of a test.
func muteStdout(t *testing.T) {
	t.Helper()
	orig := os.Stdout
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	os.Stdout = devnull
	t.Cleanup(func() {
		os.Stdout = orig
		devnull.Close()
	})
}

func newSession(t *testing.T, ev eval.Evaluator) *mcp.ClientSession {
	t.Helper()
	emb, err := kernel.NewEmbedded(kernel.Config{Evaluator: ev, Language: "calc"})
	require.NoError(t, err)
	b, err := New(Config{Kernel: emb})
	require.NoError(t, err)

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	_, err = b.Server().Connect(ctx, serverT, nil)
	require.NoError(t, err)

	cli := mcp.NewClient(&mcp.Implementation{Name: "bridge-test", Version: "0.0.1"}, nil)
	session, err := cli.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func structured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	sc, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content missing: %#v", res)
	return sc
}

func TestNewRequiresKernel(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestExecuteTool(t *testing.T) {
	muteStdout(t)
	session := newSession(t, calcEvaluator{})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "execute",
		Arguments: map[string]any{"code": "1+1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	sc := structured(t, res)
	assert.Equal(t, "ok", sc["status"])
	assert.Equal(t, float64(0), sc["execution_count"])
	assert.Equal(t, "echo:1+1", sc["result"])

	res, err = session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "execute",
		Arguments: map[string]any{"code": "2+2"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), structured(t, res)["execution_count"])
}

func TestExecuteToolWithoutEvaluator(t *testing.T) {
	muteStdout(t)
	session := newSession(t, nil)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "execute",
		Arguments: map[string]any{"code": "1+1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	sc := structured(t, res)
	assert.Equal(t, "error", sc["status"])
	assert.Contains(t, sc["stderr"], "NO REPL!")
}

func TestCompleteTool(t *testing.T) {
	session := newSession(t, calcEvaluator{})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "complete",
		Arguments: map[string]any{"code": "vel", "cursor": 3},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	sc := structured(t, res)
	assert.Equal(t, "ok", sc["status"])
	assert.Equal(t, []any{"velocity"}, sc["matches"])
	assert.Equal(t, float64(0), sc["cursor_start"])
	assert.Equal(t, float64(3), sc["cursor_end"])
}

func TestCompleteToolContainsFaults(t *testing.T) {
	session := newSession(t, faultingEvaluator{})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "complete",
		Arguments: map[string]any{"code": "vel", "cursor": 3},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, "contained faults must not fail the tool call")

	sc := structured(t, res)
	assert.Equal(t, "error", sc["status"])
	assert.Equal(t, "errorString", sc["ename"])
	assert.Equal(t, "resolver offline", sc["evalue"])
}

func TestCompleteToolRejectsCursorOutOfRange(t *testing.T) {
	session := newSession(t, calcEvaluator{})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "complete",
		Arguments: map[string]any{"code": "vel", "cursor": 9},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError, "out-of-range cursor is a caller fault")
}
