// Package ws serves every kernel channel over a single WebSocket endpoint.
// Each frame is a wire.Envelope, so one connection multiplexes shell,
// control, iopub, stdin and heartbeat traffic.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// Config holds the listen address for the WebSocket endpoint.
type Config struct {
	// IP is the bind address. Defaults to 127.0.0.1.
	IP string

	// Port is the listen port; zero binds an ephemeral one.
	Port int

	// Logger is optional.
	Logger Logger
}

// Logger matches the kernel's logging interface so one logger serves both.
type Logger interface {
	Logf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}

// client is one upgraded connection. WebSocket connections allow a single
// concurrent writer, so every send holds the write lock.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(ch wire.Channel, msg *wire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(&wire.Envelope{Channel: ch, Message: msg})
}

func (c *client) echo(env *wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

// Server is a transport.Streams listening on one HTTP port.
type Server struct {
	cfg      Config
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	requests chan transport.Inbound
	done     chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
	pending map[string]*client

	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ transport.Streams = (*Server)(nil)

// Listen binds the endpoint. Serve must be called to accept connections.
func Listen(cfg Config) (*Server, error) {
	if cfg.IP == "" {
		cfg.IP = "127.0.0.1"
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.IP, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("ws: bind: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		listener: l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The kernel binds loopback by default; remote deployments put
			// their own origin policy in front.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		requests: make(chan transport.Inbound, 64),
		done:     make(chan struct{}),
		clients:  make(map[*client]struct{}),
		pending:  make(map[string]*client),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleChannels)
	s.server = &http.Server{Handler: mux}
	return s, nil
}

// Serve accepts connections until ctx is canceled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.server.Serve(s.listener)
		if err == http.ErrServerClosed || s.closing() {
			return nil
		}
		return fmt.Errorf("ws: serve: %w", err)
	})
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
		return fmt.Errorf("ws: no connection awaits reply to %s", in.Message)
	}
	return c.send(in.Channel, msg)
}

// Publish implements transport.Streams: every connected client receives the
// broadcast, since one socket carries all channels.
func (s *Server) Publish(msg *wire.Message) error {
	s.mu.Lock()
	subs := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		subs = append(subs, c)
	}
	s.mu.Unlock()

	for _, c := range subs {
		if err := c.send(wire.ChannelIOPub, msg); err != nil {
			s.cfg.Logger.Logf("ws: dropping client: %v", err)
			c.conn.Close()
		}
	}
	return nil
}

// Ports implements transport.Streams. All channels share the one port.
func (s *Server) Ports() transport.PortTable {
	port := 0
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	return transport.PortTable{
		Transport: "ws",
		IP:        s.cfg.IP,
		Shell:     port,
		Control:   port,
		IOPub:     port,
		Stdin:     port,
		Heartbeat: port,
	}
}

// Close implements transport.Streams. Upgraded connections are hijacked
// from the HTTP server, so each one is closed explicitly; the request feed
// ends once their readers drain.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.server.Close()
		s.mu.Lock()
		for c := range s.clients {
			c.conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		close(s.requests)
	})
	return nil
}

// register refuses clients that race with Close so the reader count never
// grows once shutdown has begun.
func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing() {
		c.conn.Close()
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.conn.Close()
	s.wg.Done()
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Logf("ws: upgrade: %v", err)
		return
	}
	c := &client{conn: conn}
	if !s.register(c) {
		return
	}
	defer s.unregister(c)

	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !s.closing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.cfg.Logger.Logf("ws: read: %v", err)
			}
			return
		}
		if !s.dispatch(c, &env) {
			return
		}
	}
}

// dispatch routes one inbound frame. Heartbeat frames bounce straight back;
// shell and control frames join the request feed; anything else is noise
// from the client and is dropped.
func (s *Server) dispatch(c *client, env *wire.Envelope) bool {
	switch env.Channel {
	case wire.ChannelHeartbeat:
		if err := c.echo(env); err != nil {
			return false
		}
	case wire.ChannelShell, wire.ChannelControl:
		if env.Message == nil {
			s.cfg.Logger.Logf("ws: dropping %s frame without message", env.Channel)
			return true
		}
		s.mu.Lock()
		s.pending[env.Message.Header.ID] = c
		s.mu.Unlock()
		select {
		case s.requests <- transport.Inbound{Message: env.Message, Channel: env.Channel}:
		case <-s.done:
			return false
		}
	default:
		s.cfg.Logger.Logf("ws: dropping frame on %s", env.Channel)
	}
	return true
}

func (s *Server) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
