// Package client talks to a running kernel over one of its stream
// transports. It correlates each request with its reply and hands iopub
// broadcasts to the caller as a channel.
package client

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/quillkernel/quill/wire"
)

// link is one bidirectional enveloped stream. wire.Codec satisfies it for
// TCP; the WebSocket dialer brings its own.
type link interface {
	Encode(*wire.Envelope) error
	Decode() (*wire.Envelope, error)
	Close() error
}

// outcome is what a waiting call receives: the reply, or the error that
// killed the connection first.
type outcome struct {
	msg *wire.Message
	err error
}

// Client is a connected kernel front-end. One Client carries one session;
// all requests it sends share the session ID.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - IOPub: broadcasts are delivered in arrival order; a consumer that stops
//   reading loses broadcasts rather than stalling the connection.
// - Lifetime: after Close, or after the connection drops, in-flight calls
//   fail and the IOPub channel closes.
type Client struct {
	session string

	shell   link
	control link
	closers []io.Closer
	ping    func(context.Context) error

	mu      sync.Mutex
	pending map[string]chan outcome

	broadcasts chan *wire.Message
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// Session returns the session ID stamped on every request this client sends.
func (c *Client) Session() string { return c.session }

// IOPub returns the broadcast feed. The channel closes when the connection
// ends.
func (c *Client) IOPub() <-chan *wire.Message { return c.broadcasts }

// KernelInfo asks the kernel to describe itself.
func (c *Client) KernelInfo(ctx context.Context) (*wire.Message, error) {
	return c.call(ctx, c.shell, wire.ChannelShell, wire.KernelInfoRequest, nil)
}

// Execute submits one snippet and waits for the execute reply. Broadcasts
// triggered by the execution arrive on IOPub.
func (c *Client) Execute(ctx context.Context, code string) (*wire.Message, error) {
	return c.call(ctx, c.shell, wire.ChannelShell, wire.ExecuteRequest, map[string]any{
		"code": code,
	})
}

// Complete asks for completion candidates at a cursor position, measured in
// runes into code.
func (c *Client) Complete(ctx context.Context, code string, cursor int) (*wire.Message, error) {
	return c.call(ctx, c.shell, wire.ChannelShell, wire.CompleteRequest, map[string]any{
		"code":       code,
		"cursor_pos": cursor,
	})
}

// IsComplete asks whether code forms a complete unit ready to execute.
func (c *Client) IsComplete(ctx context.Context, code string) (*wire.Message, error) {
	return c.call(ctx, c.shell, wire.ChannelShell, wire.IsCompleteRequest, map[string]any{
		"code": code,
	})
}

// Connect fetches the kernel's port table.
func (c *Client) Connect(ctx context.Context) (*wire.Message, error) {
	return c.call(ctx, c.shell, wire.ChannelShell, wire.ConnectRequest, nil)
}

// Shutdown asks the kernel to stop. The kernel acknowledges before it goes
// down, so the reply is still delivered.
func (c *Client) Shutdown(ctx context.Context, restart bool) (*wire.Message, error) {
	return c.call(ctx, c.control, wire.ChannelControl, wire.ShutdownRequest, map[string]any{
		"restart": restart,
	})
}

// Ping probes the heartbeat channel and reports whether the kernel echoed.
func (c *Client) Ping(ctx context.Context) error {
	return c.ping(ctx)
}

// Close tears down the connection. In-flight calls fail; the IOPub channel
// closes once the readers drain. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		for _, cl := range c.closers {
			cl.Close()
		}
	})
	return nil
}

func (c *Client) call(ctx context.Context, l link, ch wire.Channel, kind wire.Kind, content map[string]any) (*wire.Message, error) {
	msg := wire.NewMessage(kind, c.session, content)
	waiter := make(chan outcome, 1)
	c.mu.Lock()
	c.pending[msg.Header.ID] = waiter
	c.mu.Unlock()

	if err := l.Encode(&wire.Envelope{Channel: ch, Message: msg}); err != nil {
		c.take(msg.Header.ID)
		return nil, fmt.Errorf("client: send %s: %w", kind, err)
	}

	select {
	case out := <-waiter:
		return out.msg, out.err
	case <-ctx.Done():
		c.take(msg.Header.ID)
		return nil, ctx.Err()
	}
}

// start spawns one reader per stream and arranges for the broadcast feed to
// close when the last reader exits.
func (c *Client) start(readers ...link) {
	for _, r := range readers {
		c.wg.Add(1)
		go c.read(r)
	}
	go func() {
		c.wg.Wait()
		close(c.broadcasts)
	}()
}

func (c *Client) read(l link) {
	defer c.wg.Done()
	for {
		env, err := l.Decode()
		if err != nil {
			c.failPending(fmt.Errorf("client: connection lost: %w", err))
			return
		}
		c.route(env)
	}
}

// route hands one inbound frame to its consumer. Broadcasts carry the
// triggering request in their parent header, so they must be recognized by
// channel before any reply correlation happens.
func (c *Client) route(env *wire.Envelope) {
	if env.Channel == wire.ChannelIOPub {
		select {
		case c.broadcasts <- env.Message:
		default:
		}
		return
	}
	if waiter := c.take(env.Message.ParentHeader.ID); waiter != nil {
		waiter <- outcome{msg: env.Message}
		return
	}
	// Heartbeat echoes come back unchanged, correlated by their own ID.
	if waiter := c.take(env.Message.Header.ID); waiter != nil {
		waiter <- outcome{msg: env.Message}
	}
}

func (c *Client) take(id string) chan outcome {
	if id == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	waiter, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return waiter
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, waiter := range c.pending {
		delete(c.pending, id)
		waiter <- outcome{err: err}
	}
}

func newClient() *Client {
	return &Client{
		session:    uuid.NewString(),
		pending:    make(map[string]chan outcome),
		broadcasts: make(chan *wire.Message, 64),
	}
}
