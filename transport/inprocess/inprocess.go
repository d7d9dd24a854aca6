// Package inprocess links a kernel and a client in one process with
// buffered channels. It exists for embedding and for tests that need the
// full dispatch pipeline without sockets.
package inprocess

import (
	"errors"
	"sync"

	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// ErrClosed is returned for sends on a closed pair.
var ErrClosed = errors.New("inprocess: pair closed")

const bufferSize = 64

// Pair is both sides of an in-process connection. The kernel side is a
// transport.Streams; the client side feeds requests in and consumes replies
// and broadcasts.
type Pair struct {
	requests   chan transport.Inbound
	replies    chan *wire.Message
	broadcasts chan *wire.Message

	mu     sync.Mutex
	closed bool
}

// New creates a connected pair.
func New() *Pair {
	return &Pair{
		requests:   make(chan transport.Inbound, bufferSize),
		replies:    make(chan *wire.Message, bufferSize),
		broadcasts: make(chan *wire.Message, bufferSize),
	}
}

// Requests implements transport.Streams.
func (p *Pair) Requests() <-chan transport.Inbound { return p.requests }

// Reply implements transport.Streams.
func (p *Pair) Reply(in transport.Inbound, msg *wire.Message) error {
	return p.send(p.replies, msg)
}

// Publish implements transport.Streams.
func (p *Pair) Publish(msg *wire.Message) error {
	return p.send(p.broadcasts, msg)
}

// Ports implements transport.Streams. Nothing is bound.
func (p *Pair) Ports() transport.PortTable {
	return transport.PortTable{Transport: "inprocess"}
}

// Close implements transport.Streams. It is idempotent; the request feed is
// closed so a serving kernel loop stops.
func (p *Pair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.requests)
	return nil
}

func (p *Pair) send(ch chan *wire.Message, msg *wire.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	ch <- msg
	return nil
}

// Submit feeds one request to the kernel side. The channel class defaults
// to shell when empty.
func (p *Pair) Submit(msg *wire.Message, ch wire.Channel) error {
	if ch == "" {
		ch = wire.ChannelShell
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.requests <- transport.Inbound{Message: msg, Channel: ch}
	return nil
}

// Replies is the client-side reply feed.
func (p *Pair) Replies() <-chan *wire.Message { return p.replies }

// Broadcasts is the client-side broadcast feed.
func (p *Pair) Broadcasts() <-chan *wire.Message { return p.broadcasts }
