package wire

// Kind is the closed set of message kinds quill understands. The kind lives
// in the message header's msg_type field and selects the dispatch handler.
type Kind string

// Request kinds arrive on the shell or control channel and demand exactly
// one correlated reply.
const (
	KernelInfoRequest Kind = "kernel_info_request"
	HistoryRequest    Kind = "history_request"
	ShutdownRequest   Kind = "shutdown_request"
	ConnectRequest    Kind = "connect_request"
	ExecuteRequest    Kind = "execute_request"
	CommInfoRequest   Kind = "comm_info_request"
	CompleteRequest   Kind = "complete_request"
	IsCompleteRequest Kind = "is_complete_request"
)

// Reply kinds pair 1:1 with request kinds.
const (
	KernelInfoReply Kind = "kernel_info_reply"
	HistoryReply    Kind = "history_reply"
	ShutdownReply   Kind = "shutdown_reply"
	ConnectReply    Kind = "connect_reply"
	ExecuteReply    Kind = "execute_reply"
	CommInfoReply   Kind = "comm_info_reply"
	CompleteReply   Kind = "complete_reply"
	IsCompleteReply Kind = "is_complete_reply"
)

// Broadcast kinds are published on the iopub channel, correlated to the
// triggering request through the parent header.
const (
	Status        Kind = "status"
	ExecuteInput  Kind = "execute_input"
	Stream        Kind = "stream"
	ExecuteResult Kind = "execute_result"
	DisplayData   Kind = "display_data"
)

// Reply returns the reply kind paired with a request kind, or the empty
// Kind when k is not a recognized request.
func (k Kind) Reply() Kind {
	switch k {
	case KernelInfoRequest:
		return KernelInfoReply
	case HistoryRequest:
		return HistoryReply
	case ShutdownRequest:
		return ShutdownReply
	case ConnectRequest:
		return ConnectReply
	case ExecuteRequest:
		return ExecuteReply
	case CommInfoRequest:
		return CommInfoReply
	case CompleteRequest:
		return CompleteReply
	case IsCompleteRequest:
		return IsCompleteReply
	}
	return ""
}

// IsRequest reports whether k is a recognized request kind.
func (k Kind) IsRequest() bool {
	return k.Reply() != ""
}

// Channel names a logical socket of the kernel's transport.
type Channel string

const (
	ChannelShell     Channel = "shell"
	ChannelControl   Channel = "control"
	ChannelIOPub     Channel = "iopub"
	ChannelStdin     Channel = "stdin"
	ChannelHeartbeat Channel = "hb"
)

// Execution states broadcast in status messages.
const (
	StateStarting = "starting"
	StateBusy     = "busy"
	StateIdle     = "idle"
)

// Reply status values. The exact strings are part of the wire contract.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusAbort      = "abort"
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusInvalid    = "invalid"
)

// Stream names for captured output broadcasts.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)
