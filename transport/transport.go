// Package transport defines the boundary between the kernel and whatever
// carries its messages: a set of typed sockets feeding requests in and
// taking replies and broadcasts out.
package transport

import (
	"github.com/quillkernel/quill/wire"
)

// Socket delivers messages to one channel's peers.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent Send calls.
// - Errors: Send failures are transport faults; the kernel logs them and
//   keeps its emission sequence going.
type Socket interface {
	Send(msg *wire.Message) error
}

// Inbound pairs a request with the channel class it arrived on, so the
// reply can travel back the same way.
type Inbound struct {
	Message *wire.Message
	Channel wire.Channel
}

// Streams is the full surface the kernel drives: a request feed, a reply
// path correlated to each request's origin, and a broadcast path.
//
// Contract:
// - Requests returns the same channel on every call; it is closed when the
//   transport shuts down.
// - Reply must send on the socket class named by in.Channel.
// - Publish must deliver to every connected broadcast consumer.
// - Close is idempotent and unblocks pending accepts/reads.
type Streams interface {
	Requests() <-chan Inbound
	Reply(in Inbound, msg *wire.Message) error
	Publish(msg *wire.Message) error
	Ports() PortTable
	Close() error
}

// PortTable reports where each channel is bound. Zero ports mean the
// channel is not separately bound (single-socket transports).
type PortTable struct {
	Transport string `json:"transport"`
	IP        string `json:"ip"`
	Shell     int    `json:"shell_port"`
	Control   int    `json:"control_port"`
	IOPub     int    `json:"iopub_port"`
	Stdin     int    `json:"stdin_port"`
	Heartbeat int    `json:"hb_port"`
}

// Content serializes the table as connect_reply content.
func (p PortTable) Content() map[string]any {
	return map[string]any{
		"transport":    p.Transport,
		"ip":           p.IP,
		"shell_port":   p.Shell,
		"control_port": p.Control,
		"iopub_port":   p.IOPub,
		"stdin_port":   p.Stdin,
		"hb_port":      p.Heartbeat,
	}
}
