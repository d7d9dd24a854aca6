package kernel

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/quillkernel/quill/completion"
	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/magic"
	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// Dispatch routes one inbound request to its handler. Unrecognized kinds
// get a generic unsupported reply. The only error callers must act on is
// ErrShutdown; everything else is a transport fault already folded into the
// completed emission sequence.
func (k *Kernel) Dispatch(ctx context.Context, in transport.Inbound) error {
	kind := in.Message.Header.Kind
	k.observeRequest(kind)

	switch kind {
	case wire.KernelInfoRequest:
		return k.handleKernelInfo(in)
	case wire.HistoryRequest:
		return k.handleHistory(in)
	case wire.ShutdownRequest:
		return k.handleShutdown(in)
	case wire.ConnectRequest:
		return k.handleConnect(in)
	case wire.ExecuteRequest:
		return k.handleExecute(ctx, in)
	case wire.CommInfoRequest:
		return k.handleCommInfo(in)
	case wire.CompleteRequest:
		return k.handleComplete(ctx, in)
	case wire.IsCompleteRequest:
		return k.handleIsComplete(ctx, in)
	default:
		return k.handleUnsupported(in)
	}
}

// reply sends a direct reply on the channel the request arrived on.
func (k *Kernel) reply(in transport.Inbound, kind wire.Kind, content map[string]any) error {
	msg := wire.Reply(in.Message, kind, content)
	if err := k.cfg.Streams.Reply(in, msg); err != nil {
		k.cfg.Logger.Logf("reply %s: %v", kind, err)
		return err
	}
	return nil
}

// publish broadcasts a message correlated to the current request.
func (k *Kernel) publish(kind wire.Kind, content map[string]any) error {
	parent := k.Current()
	if parent == nil {
		k.cfg.Logger.Logf("publish %s outside a request context", kind)
		return nil
	}
	msg := wire.Reply(parent, kind, content)
	if err := k.cfg.Streams.Publish(msg); err != nil {
		k.cfg.Logger.Logf("publish %s: %v", kind, err)
		return err
	}
	return nil
}

func (k *Kernel) handleKernelInfo(in transport.Inbound) error {
	return k.reply(in, wire.KernelInfoReply, map[string]any{
		"status":                 wire.StatusOK,
		"protocol_version":       wire.ProtocolVersion,
		"implementation":         Implementation,
		"implementation_version": Version,
		"language_info": map[string]any{
			"name":           k.cfg.Language,
			"version":        k.cfg.LanguageVersion,
			"mimetype":       k.cfg.MIMEType,
			"file_extension": k.cfg.FileExtension,
		},
		"banner": k.cfg.Banner,
	})
}

// handleHistory replies with an empty list: the kernel keeps no history.
func (k *Kernel) handleHistory(in transport.Inbound) error {
	return k.reply(in, wire.HistoryReply, map[string]any{
		"status":  wire.StatusOK,
		"history": []any{},
	})
}

// handleShutdown echoes the request content back, then signals the loop to
// stop. The reply is sent before the signal so the stop is cooperative.
func (k *Kernel) handleShutdown(in transport.Inbound) error {
	err := k.reply(in, wire.ShutdownReply, in.Message.Content)
	if err != nil {
		return errors.Join(ErrShutdown, err)
	}
	return ErrShutdown
}

func (k *Kernel) handleConnect(in transport.Inbound) error {
	return k.reply(in, wire.ConnectReply, k.cfg.Streams.Ports().Content())
}

func (k *Kernel) handleCommInfo(in transport.Inbound) error {
	return k.reply(in, wire.CommInfoReply, map[string]any{
		"status": wire.StatusOK,
		"comms":  map[string]any{},
	})
}

func (k *Kernel) handleUnsupported(in transport.Inbound) error {
	kind := in.Message.Header.Kind
	k.cfg.Logger.Logf("unsupported request kind %q", kind)
	replyKind := wire.Kind(strings.TrimSuffix(string(kind), "_request") + "_reply")
	content := wire.ErrorContent("Unsupported", "unsupported message kind: "+string(kind), nil)
	return k.reply(in, replyKind, content)
}

// handleExecute drives the full execute sequence. The order is the wire
// contract: busy, input echo, streams, result or abort, idle, never
// interleaved with another request's broadcasts.
func (k *Kernel) handleExecute(ctx context.Context, in transport.Inbound) error {
	msg := in.Message
	code := msg.Str("code")

	k.setCurrent(msg)
	defer k.clearCurrent()

	count := int(k.counter.Add(1) - 1)
	started := time.Now().UTC()

	var errs []error
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	fail(k.publish(wire.Status, wire.StatusContent(wire.StateBusy)))
	fail(k.publish(wire.ExecuteInput, wire.ExecuteInputContent(code, count)))

	resp := k.respond(func() (*eval.Outcome, error) {
		if magic.IsCommand(code) {
			return k.cfg.Magic.Run(ctx, code, k.magicEnv(count))
		}
		ev := k.Evaluator()
		if ev == nil {
			return nil, nil
		}
		return ev.Evaluate(ctx, code, count)
	})

	if resp.Stdout != "" {
		fail(k.publish(wire.Stream, wire.StreamContent(wire.StreamStdout, resp.Stdout)))
	}
	if resp.Stderr != "" {
		fail(k.publish(wire.Stream, wire.StreamContent(wire.StreamStderr, resp.Stderr)))
	}

	if resp.OK {
		if resp.Result != nil {
			fail(k.publish(wire.ExecuteResult, wire.ExecuteResultContent(count, resp.Result)))
		}
		for _, d := range resp.Displays {
			fail(k.publish(wire.DisplayData, wire.DisplayDataContent(d, nil)))
		}
		reply := wire.Reply(msg, wire.ExecuteReply, wire.ExecuteOKContent(count))
		reply.Metadata["session"] = msg.Header.Session
		reply.Metadata["started"] = started.Format(time.RFC3339)
		if err := k.cfg.Streams.Reply(in, reply); err != nil {
			k.cfg.Logger.Logf("reply execute_reply: %v", err)
			fail(err)
		}
	} else {
		fail(k.reply(in, wire.ExecuteReply, wire.ExecuteAbortContent(count)))
	}

	fail(k.publish(wire.Status, wire.StatusContent(wire.StateIdle)))

	k.observeExecution(resp.OK, time.Since(started))
	return errors.Join(errs...)
}

// handleComplete resolves completions. When no evaluator is attached the
// request is dropped without a reply; the condition is only logged. A
// capable evaluator's results are cached per (code, cursor, count) since
// completion against unchanged state is deterministic.
func (k *Kernel) handleComplete(ctx context.Context, in transport.Inbound) error {
	msg := in.Message
	ev := k.Evaluator()
	if ev == nil {
		k.cfg.Logger.Logf("completion requested before evaluator attach, dropping %s", msg)
		return nil
	}

	code := msg.Str("code")
	cursor := completion.ByteOffset(code, msg.Int("cursor_pos"))
	completer, ok := ev.(eval.Completer)
	if !ok {
		return k.reply(in, wire.CompleteReply, completion.Empty(code, cursor).ReplyContent())
	}

	key := completionKey{code: code, cursor: cursor, count: k.counter.Load()}
	res, hit := k.completions.Get(key)
	if !hit {
		res = completion.Complete(ctx, completer, code, cursor, int(key.count))
		k.completions.Add(key, res)
	}
	k.observeCompletion(hit)
	return k.reply(in, wire.CompleteReply, res.ReplyContent())
}

// handleIsComplete reports whether the submission can be executed as-is.
// Administrative commands are always complete. Without an engine the check
// fails with an error status; engines that cannot check are optimistic.
func (k *Kernel) handleIsComplete(ctx context.Context, in transport.Inbound) error {
	code := in.Message.Str("code")

	if magic.IsCommand(code) {
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusComplete})
	}

	ev := k.Evaluator()
	if ev == nil {
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusError})
	}
	checker, ok := ev.(eval.Checker)
	if !ok {
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusComplete})
	}

	complete, err := checker.CheckComplete(ctx, code, int(k.counter.Load()))
	switch {
	case errors.Is(err, eval.ErrCompile):
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusInvalid})
	case err != nil:
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusError})
	case complete:
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusComplete})
	default:
		return k.reply(in, wire.IsCompleteReply, map[string]any{"status": wire.StatusIncomplete})
	}
}
