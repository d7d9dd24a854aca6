// Package tcp serves the kernel's channels over TCP, one listener per
// channel plus a raw-echo heartbeat, with newline-delimited JSON framing.
package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// Config holds the listen addresses. A zero port binds an ephemeral one;
// read the outcome from Ports.
type Config struct {
	// IP is the bind address. Defaults to 127.0.0.1.
	IP string

	ShellPort     int
	ControlPort   int
	IOPubPort     int
	StdinPort     int
	HeartbeatPort int

	// Logger is optional.
	Logger Logger
}

// Logger matches the kernel's logging interface so one logger serves both.
type Logger interface {
	Logf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}

// conn wraps a codec with a write lock so broadcasts and replies can share
// it safely.
type conn struct {
	mu    sync.Mutex
	codec *wire.Codec
}

func (c *conn) send(ch wire.Channel, msg *wire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.Encode(&wire.Envelope{Channel: ch, Message: msg})
}

// Server is a transport.Streams bound to five TCP listeners.
type Server struct {
	cfg       Config
	listeners map[wire.Channel]net.Listener
	requests  chan transport.Inbound
	done      chan struct{}

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	iopub   map[*conn]struct{}
	pending map[string]*conn

	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ transport.Streams = (*Server)(nil)

// Listen binds every channel's listener. Serve must be called to accept.
func Listen(cfg Config) (*Server, error) {
	if cfg.IP == "" {
		cfg.IP = "127.0.0.1"
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	s := &Server{
		cfg:       cfg,
		listeners: make(map[wire.Channel]net.Listener),
		requests:  make(chan transport.Inbound, 64),
		done:      make(chan struct{}),
		conns:     make(map[net.Conn]struct{}),
		iopub:     make(map[*conn]struct{}),
		pending:   make(map[string]*conn),
	}

	ports := map[wire.Channel]int{
		wire.ChannelShell:     cfg.ShellPort,
		wire.ChannelControl:   cfg.ControlPort,
		wire.ChannelIOPub:     cfg.IOPubPort,
		wire.ChannelStdin:     cfg.StdinPort,
		wire.ChannelHeartbeat: cfg.HeartbeatPort,
	}
	for ch, port := range ports {
		l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.IP, port))
		if err != nil {
			s.closeListeners()
			return nil, fmt.Errorf("tcp: bind %s: %w", ch, err)
		}
		s.listeners[ch] = l
	}
	return s, nil
}

// Serve runs the accept loops until ctx is canceled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptRequests(wire.ChannelShell) })
	g.Go(func() error { return s.acceptRequests(wire.ChannelControl) })
	g.Go(func() error { return s.acceptIOPub() })
	g.Go(func() error { return s.acceptStdin() })
	g.Go(func() error { return s.acceptHeartbeat() })
	g.Go(func() error {
		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case <-s.done:
			return nil
		}
	})
	return g.Wait()
}

// Requests implements transport.Streams.
func (s *Server) Requests() <-chan transport.Inbound { return s.requests }

// Reply implements transport.Streams: the reply travels back on the
// connection its request arrived on.
func (s *Server) Reply(in transport.Inbound, msg *wire.Message) error {
	s.mu.Lock()
	c, ok := s.pending[in.Message.Header.ID]
	delete(s.pending, in.Message.Header.ID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("tcp: no connection awaits reply to %s", in.Message)
	}
	return c.send(in.Channel, msg)
}

// Publish implements transport.Streams: every iopub subscriber receives the
// broadcast. Dead subscribers are dropped, not reported.
func (s *Server) Publish(msg *wire.Message) error {
	s.mu.Lock()
	subs := make([]*conn, 0, len(s.iopub))
	for c := range s.iopub {
		subs = append(subs, c)
	}
	s.mu.Unlock()

	for _, c := range subs {
		if err := c.send(wire.ChannelIOPub, msg); err != nil {
			s.cfg.Logger.Logf("tcp: dropping iopub subscriber: %v", err)
			s.mu.Lock()
			delete(s.iopub, c)
			s.mu.Unlock()
			c.codec.Close()
		}
	}
	return nil
}

// Ports implements transport.Streams with the actually bound ports.
func (s *Server) Ports() transport.PortTable {
	return transport.PortTable{
		Transport: "tcp",
		IP:        s.cfg.IP,
		Shell:     s.port(wire.ChannelShell),
		Control:   s.port(wire.ChannelControl),
		IOPub:     s.port(wire.ChannelIOPub),
		Stdin:     s.port(wire.ChannelStdin),
		Heartbeat: s.port(wire.ChannelHeartbeat),
	}
}

func (s *Server) port(ch wire.Channel) int {
	l, ok := s.listeners[ch]
	if !ok {
		return 0
	}
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// Close implements transport.Streams. Idempotent; ends the request feed
// after every connection handler drains.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeListeners()
		s.mu.Lock()
		for raw := range s.conns {
			raw.Close()
		}
		for c := range s.iopub {
			c.codec.Close()
		}
		s.iopub = make(map[*conn]struct{})
		s.mu.Unlock()
		s.wg.Wait()
		close(s.requests)
	})
	return nil
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners {
		l.Close()
	}
}

// track registers a connection whose handler goroutine the caller is about
// to spawn. It refuses connections that race with Close so the handler
// count never grows once shutdown has begun.
func (s *Server) track(raw net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing() {
		raw.Close()
		return false
	}
	s.conns[raw] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(raw net.Conn) {
	s.mu.Lock()
	delete(s.conns, raw)
	s.mu.Unlock()
	raw.Close()
	s.wg.Done()
}

func (s *Server) acceptRequests(ch wire.Channel) error {
	l := s.listeners[ch]
	for {
		raw, err := l.Accept()
		if err != nil {
			if s.closing() {
				return nil
			}
			s.cfg.Logger.Logf("tcp: accept %s: %v", ch, err)
			continue
		}
		if !s.track(raw) {
			return nil
		}
		go s.handleRequests(ch, raw)
	}
}

// handleRequests feeds one connection's frames into the request channel,
// remembering which connection each request came from.
func (s *Server) handleRequests(ch wire.Channel, raw net.Conn) {
	defer s.untrack(raw)
	c := &conn{codec: wire.NewCodec(raw)}

	for {
		env, err := c.codec.Decode()
		if err != nil {
			if err != io.EOF && !s.closing() {
				s.cfg.Logger.Logf("tcp: decode on %s: %v", ch, err)
			}
			return
		}
		s.mu.Lock()
		s.pending[env.Message.Header.ID] = c
		s.mu.Unlock()
		select {
		case s.requests <- transport.Inbound{Message: env.Message, Channel: ch}:
		case <-s.done:
			return
		}
	}
}

func (s *Server) acceptIOPub() error {
	l := s.listeners[wire.ChannelIOPub]
	for {
		raw, err := l.Accept()
		if err != nil {
			if s.closing() {
				return nil
			}
			s.cfg.Logger.Logf("tcp: accept iopub: %v", err)
			continue
		}
		if !s.subscribe(&conn{codec: wire.NewCodec(raw)}) {
			return nil
		}
	}
}

// subscribe adds an iopub connection. No goroutine reads from these; they
// live in the subscriber set until a write fails or the server closes.
func (s *Server) subscribe(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing() {
		c.codec.Close()
		return false
	}
	s.iopub[c] = struct{}{}
	return true
}

// acceptStdin parks stdin connections: the kernel never requests input, so
// frames from these peers are read and discarded to detect disconnects.
func (s *Server) acceptStdin() error {
	l := s.listeners[wire.ChannelStdin]
	for {
		raw, err := l.Accept()
		if err != nil {
			if s.closing() {
				return nil
			}
			continue
		}
		if !s.track(raw) {
			return nil
		}
		go func() {
			defer s.untrack(raw)
			c := wire.NewCodec(raw)
			for {
				if _, err := c.Decode(); err != nil {
					return
				}
			}
		}()
	}
}

// acceptHeartbeat echoes bytes back verbatim, the liveness probe clients
// expect.
func (s *Server) acceptHeartbeat() error {
	l := s.listeners[wire.ChannelHeartbeat]
	for {
		raw, err := l.Accept()
		if err != nil {
			if s.closing() {
				return nil
			}
			continue
		}
		if !s.track(raw) {
			return nil
		}
		go func() {
			defer s.untrack(raw)
			io.Copy(raw, raw)
		}()
	}
}

func (s *Server) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
