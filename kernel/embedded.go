package kernel

import (
	"context"
	"time"

	"github.com/quillkernel/quill/completion"
	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/magic"
)

// Embedded drives a kernel without a transport: evaluations and completions
// run through the same response builder, counter, capture scope and
// administrative commands as wire-served requests, but results come back as
// values instead of broadcast sequences. Hosts that embed a language
// runtime (REPL tools, the MCP bridge, tests) use this instead of sockets.
type Embedded struct {
	k *Kernel
}

// NewEmbedded creates a transportless kernel. The Streams field of cfg is
// ignored; every other field behaves as in New.
func NewEmbedded(cfg Config) (*Embedded, error) {
	cfg.Streams = nil
	k, err := newKernel(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedded{k: k}, nil
}

// Kernel exposes the underlying kernel for evaluator attachment and counter
// reads.
func (e *Embedded) Kernel() *Kernel {
	return e.k
}

// ExecuteCode runs one snippet and returns the classified response together
// with the execution count it consumed and the wall time it took.
func (e *Embedded) ExecuteCode(ctx context.Context, code string) (Response, int, time.Duration) {
	count := int(e.k.counter.Add(1) - 1)
	start := time.Now()
	resp := e.k.respond(func() (*eval.Outcome, error) {
		if magic.IsCommand(code) {
			return e.k.cfg.Magic.Run(ctx, code, e.k.magicEnv(count))
		}
		ev := e.k.Evaluator()
		if ev == nil {
			return nil, nil
		}
		return ev.Evaluate(ctx, code, count)
	})
	e.k.observeExecution(resp.OK, time.Since(start))
	return resp, count, time.Since(start)
}

// Complete resolves completions at a rune-offset cursor. Unlike the wire
// path, an unattached evaluator yields an empty result instead of silence:
// a direct caller always deserves an answer.
func (e *Embedded) Complete(ctx context.Context, code string, cursor int) completion.Result {
	byteCursor := completion.ByteOffset(code, cursor)
	completer, ok := e.k.Evaluator().(eval.Completer)
	if !ok {
		return completion.Empty(code, byteCursor)
	}
	count := int(e.k.counter.Load())
	return completion.Complete(ctx, completer, code, byteCursor, count)
}
