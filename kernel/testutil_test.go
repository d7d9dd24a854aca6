package kernel

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// fakeStreams is a transport.Streams that records everything the kernel
// sends and lets tests inject failures.
type fakeStreams struct {
	mu         sync.Mutex
	requests   chan transport.Inbound
	replies    []*wire.Message
	published  []*wire.Message
	ports      transport.PortTable
	replyErr   error
	publishErr error
	closed     bool
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{
		requests: make(chan transport.Inbound, 16),
		ports: transport.PortTable{
			Transport: "tcp",
			IP:        "127.0.0.1",
			Shell:     50001,
			Control:   50002,
			IOPub:     50003,
			Stdin:     50004,
			Heartbeat: 50005,
		},
	}
}

func (f *fakeStreams) Requests() <-chan transport.Inbound { return f.requests }

func (f *fakeStreams) Reply(in transport.Inbound, msg *wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, msg)
	return nil
}

func (f *fakeStreams) Publish(msg *wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeStreams) Ports() transport.PortTable { return f.ports }

func (f *fakeStreams) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStreams) publishedKinds() []wire.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]wire.Kind, len(f.published))
	for i, m := range f.published {
		kinds[i] = m.Header.Kind
	}
	return kinds
}

func (f *fakeStreams) publishedAt(i int) *wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[i]
}

func (f *fakeStreams) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func (f *fakeStreams) lastReply() *wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return nil
	}
	return f.replies[len(f.replies)-1]
}

// fakeEvaluator is a configurable eval.Evaluator with call tracking.
type fakeEvaluator struct {
	mu           sync.Mutex
	evaluateFunc func(ctx context.Context, code string, count int) (*eval.Outcome, error)
	codes        []string
	counts       []int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, code string, count int) (*eval.Outcome, error) {
	f.mu.Lock()
	f.codes = append(f.codes, code)
	f.counts = append(f.counts, count)
	fn := f.evaluateFunc
	f.mu.Unlock()
	if fn == nil {
		return &eval.Outcome{}, nil
	}
	return fn(ctx, code, count)
}

func (f *fakeEvaluator) evalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.codes)
}

// completingEvaluator adds the completion capability.
type completingEvaluator struct {
	fakeEvaluator
	completeFunc  func(ctx context.Context, code string, cursor, count int) ([]eval.Candidate, error)
	completeCalls int
}

func (f *completingEvaluator) Complete(ctx context.Context, code string, cursor, count int) ([]eval.Candidate, error) {
	f.mu.Lock()
	f.completeCalls++
	fn := f.completeFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, code, cursor, count)
}

// checkingEvaluator adds the completeness-check capability.
type checkingEvaluator struct {
	fakeEvaluator
	checkFunc func(ctx context.Context, code string, count int) (bool, error)
}

func (f *checkingEvaluator) CheckComplete(ctx context.Context, code string, count int) (bool, error) {
	if f.checkFunc == nil {
		return true, nil
	}
	return f.checkFunc(ctx, code, count)
}

func newTestKernel(t *testing.T, streams transport.Streams, ev eval.Evaluator) *Kernel {
	t.Helper()
	k, err := New(Config{
		Streams:         streams,
		Evaluator:       ev,
		Language:        "calc",
		LanguageVersion: "1.0.0",
		Banner:          "calc kernel",
	})
	require.NoError(t, err)
	return k
}

func request(kind wire.Kind, content map[string]any) transport.Inbound {
	return transport.Inbound{
		Message: wire.NewMessage(kind, "sess-t", content),
		Channel: wire.ChannelShell,
	}
}

func executeRequest(code string) transport.Inbound {
	return request(wire.ExecuteRequest, map[string]any{"code": code})
}

// muteStdout redirects the test process stdout so mirrored evaluation
// output does not land in the test log.
func muteStdout(t *testing.T) {
	t.Helper()
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = devnull
	t.Cleanup(func() {
		os.Stdout = orig
		devnull.Close()
	})
}
