package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// defaultPingTimeout bounds a heartbeat probe when the caller's context
// carries no deadline of its own.
const defaultPingTimeout = 5 * time.Second

// Dial connects using whichever transport the port table names.
func Dial(table transport.PortTable) (*Client, error) {
	switch table.Transport {
	case "tcp":
		return DialTCP(table)
	case "ws":
		return DialWS(table)
	}
	return nil, fmt.Errorf("client: unsupported transport %q", table.Transport)
}

// DialTCP connects to a kernel serving per-channel TCP listeners: separate
// connections for shell, control and iopub, plus a raw heartbeat socket.
func DialTCP(table transport.PortTable) (*Client, error) {
	c := newClient()
	fail := func(what string, err error) (*Client, error) {
		c.Close()
		return nil, fmt.Errorf("client: dial %s: %w", what, err)
	}

	dialCodec := func(port int) (*wire.Codec, error) {
		raw, err := net.Dial("tcp", fmt.Sprintf("%s:%d", table.IP, port))
		if err != nil {
			return nil, err
		}
		codec := wire.NewCodec(raw)
		c.closers = append(c.closers, codec)
		return codec, nil
	}

	shell, err := dialCodec(table.Shell)
	if err != nil {
		return fail("shell", err)
	}
	control, err := dialCodec(table.Control)
	if err != nil {
		return fail("control", err)
	}
	iopub, err := dialCodec(table.IOPub)
	if err != nil {
		return fail("iopub", err)
	}
	hb, err := net.Dial("tcp", fmt.Sprintf("%s:%d", table.IP, table.Heartbeat))
	if err != nil {
		return fail("heartbeat", err)
	}
	c.closers = append(c.closers, hb)

	c.shell = shell
	c.control = control
	c.ping = rawPing(hb)
	c.start(shell, control, iopub)
	return c, nil
}

// DialWS connects to a kernel serving all channels over one WebSocket
// endpoint.
func DialWS(table transport.PortTable) (*Client, error) {
	url := fmt.Sprintf("ws://%s:%d/", table.IP, table.Shell)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}

	c := newClient()
	l := &wsLink{conn: conn}
	c.closers = append(c.closers, l)
	c.shell = l
	c.control = l
	c.ping = func(ctx context.Context) error {
		_, err := c.call(ctx, l, wire.ChannelHeartbeat, "ping", nil)
		return err
	}
	c.start(l)
	return c, nil
}

// rawPing probes a byte-echo heartbeat socket: write a nonce, expect it
// back verbatim.
func rawPing(conn net.Conn) func(context.Context) error {
	var mu sync.Mutex
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		deadline := time.Now().Add(defaultPingTimeout)
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("client: heartbeat: %w", err)
		}

		probe := []byte(uuid.NewString())
		if _, err := conn.Write(probe); err != nil {
			return fmt.Errorf("client: heartbeat: %w", err)
		}
		echo := make([]byte, len(probe))
		if _, err := io.ReadFull(conn, echo); err != nil {
			return fmt.Errorf("client: heartbeat: %w", err)
		}
		if !bytes.Equal(probe, echo) {
			return errors.New("client: heartbeat echo mismatch")
		}
		return nil
	}
}

// wsLink adapts a WebSocket connection to the link interface. WebSocket
// connections allow one concurrent writer, so Encode holds a write lock.
type wsLink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *wsLink) Encode(env *wire.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(env)
}

func (l *wsLink) Decode() (*wire.Envelope, error) {
	var env wire.Envelope
	if err := l.conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	if env.Message == nil {
		return nil, errors.New("client: frame without message")
	}
	return &env, nil
}

func (l *wsLink) Close() error {
	return l.conn.Close()
}
