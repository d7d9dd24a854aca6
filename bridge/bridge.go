// Package bridge exposes kernel operations as MCP tools, so agent tooling
// can execute snippets and resolve completions over a stdio session. It is
// a thin adapter: tool I/O structs on one side, the embedded kernel on the
// other, no tool indexing.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quillkernel/quill/completion"
	"github.com/quillkernel/quill/kernel"
	"github.com/quillkernel/quill/wire"
)

// ErrConfiguration indicates an invalid or incomplete configuration.
var ErrConfiguration = errors.New("configuration error")

// Config configures a bridge.
type Config struct {
	// Kernel is the embedded kernel the tools drive. Required.
	Kernel *kernel.Embedded

	// Name is the MCP server name. Defaults to "quill".
	Name string

	// Version is the advertised server version. Defaults to the kernel
	// version.
	Version string
}

// Bridge is an MCP server wrapping one embedded kernel.
type Bridge struct {
	k      *kernel.Embedded
	server *mcp.Server
}

// ExecuteInput is the execute tool's argument payload.
type ExecuteInput struct {
	Code string `json:"code" jsonschema:"the source snippet to execute"`
}

// ExecuteOutput reports one execution: the reply status, the counter value
// the snippet consumed, the rendered result, and captured output.
type ExecuteOutput struct {
	Status         string `json:"status"`
	ExecutionCount int    `json:"execution_count"`
	Result         string `json:"result,omitempty"`
	Stdout         string `json:"stdout,omitempty"`
	Stderr         string `json:"stderr,omitempty"`
}

// CompleteInput is the complete tool's argument payload. Cursor is a rune
// offset into Code.
type CompleteInput struct {
	Code   string `json:"code" jsonschema:"the source snippet to complete within"`
	Cursor int    `json:"cursor" jsonschema:"rune offset of the cursor in code"`
}

// CompleteOutput lists completion candidates over the replaced span, with
// cursor bounds as rune offsets. A contained completer fault is reported
// through EName and EValue rather than failing the tool call.
type CompleteOutput struct {
	Status      string   `json:"status"`
	Matches     []string `json:"matches"`
	CursorStart int      `json:"cursor_start"`
	CursorEnd   int      `json:"cursor_end"`
	EName       string   `json:"ename,omitempty"`
	EValue      string   `json:"evalue,omitempty"`
}

// New builds the bridge and registers its tools.
func New(cfg Config) (*Bridge, error) {
	if cfg.Kernel == nil {
		return nil, fmt.Errorf("%w: Kernel is required", ErrConfiguration)
	}
	if cfg.Name == "" {
		cfg.Name = "quill"
	}
	if cfg.Version == "" {
		cfg.Version = kernel.Version
	}

	b := &Bridge{
		k:      cfg.Kernel,
		server: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
	}
	mcp.AddTool(b.server, &mcp.Tool{
		Name:        "execute",
		Description: "Execute a source snippet in the kernel and return its result and captured output.",
	}, b.handleExecute)
	mcp.AddTool(b.server, &mcp.Tool{
		Name:        "complete",
		Description: "Propose completions for the identifier under a cursor position.",
	}, b.handleComplete)
	return b, nil
}

// Server exposes the underlying MCP server for hosts that connect it to a
// transport of their own.
func (b *Bridge) Server() *mcp.Server {
	return b.server
}

// Run serves the bridge over stdio until ctx is canceled or the peer
// disconnects.
func (b *Bridge) Run(ctx context.Context) error {
	return b.server.Run(ctx, &mcp.StdioTransport{})
}

func (b *Bridge) handleExecute(ctx context.Context, req *mcp.CallToolRequest, in ExecuteInput) (*mcp.CallToolResult, ExecuteOutput, error) {
	resp, count, _ := b.k.ExecuteCode(ctx, in.Code)

	out := ExecuteOutput{
		ExecutionCount: count,
		Stdout:         resp.Stdout,
		Stderr:         resp.Stderr,
	}
	if resp.OK {
		out.Status = wire.StatusOK
		out.Result = textOf(resp.Result)
	} else {
		out.Status = wire.StatusError
	}
	return nil, out, nil
}

func (b *Bridge) handleComplete(ctx context.Context, req *mcp.CallToolRequest, in CompleteInput) (*mcp.CallToolResult, CompleteOutput, error) {
	if in.Cursor < 0 || in.Cursor > utf8.RuneCountInString(in.Code) {
		return nil, CompleteOutput{}, fmt.Errorf("cursor %d out of range [0, %d]", in.Cursor, utf8.RuneCountInString(in.Code))
	}

	r := b.k.Complete(ctx, in.Code, in.Cursor)
	return nil, CompleteOutput{
		Status:      r.Status,
		Matches:     r.Matches,
		CursorStart: completion.RuneOffset(r.Code, r.CursorStart),
		CursorEnd:   completion.RuneOffset(r.Code, r.CursorEnd),
		EName:       r.EName,
		EValue:      r.EValue,
	}, nil
}

// textOf flattens a rendered bundle to its plain-text representation.
func textOf(bundle wire.MIMEBundle) string {
	if bundle == nil {
		return ""
	}
	if text, ok := bundle[wire.MIMEText].(string); ok {
		return text
	}
	parts := make([]string, 0, len(bundle))
	for mime := range bundle {
		parts = append(parts, mime)
	}
	return fmt.Sprintf("<%s>", strings.Join(parts, ", "))
}
