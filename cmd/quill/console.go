package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quillkernel/quill/client"
	"github.com/quillkernel/quill/config"
	"github.com/quillkernel/quill/wire"
)

const (
	consoleCallTimeout = 2 * time.Second
	broadcastQuiet     = 2 * time.Second
)

type consoleOptions struct {
	connectionPath string
	historyPath    string
}

func newConsoleCmd() *cobra.Command {
	var opts consoleOptions
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open an interactive prompt against a running kernel",
		Long:  "console connects to the kernel named by a connection file and offers a line-edited prompt with history, tab completion, and multi-line input driven by the kernel's own completeness checks.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.connectionPath, "connection", "", "connection file of the kernel to talk to")
	f.StringVar(&opts.historyPath, "history", "", "readline history file (defaults to ~/.quill_history)")
	_ = cmd.MarkFlagRequired("connection")
	return cmd
}

func runConsole(cmd *cobra.Command, opts consoleOptions) error {
	conn, err := config.ReadConnection(opts.connectionPath)
	if err != nil {
		return err
	}
	if err := conn.Validate(); err != nil {
		return err
	}
	cli, err := client.Dial(conn.PortTable())
	if err != nil {
		return err
	}
	defer cli.Close()

	infoCtx, cancel := context.WithTimeout(cmd.Context(), consoleCallTimeout)
	info, err := cli.KernelInfo(infoCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("kernel not answering: %w", err)
	}
	printBanner(cmd.OutOrStdout(), info)

	history := opts.historyPath
	if history == "" {
		if home, err := os.UserHomeDir(); err == nil {
			history = filepath.Join(home, ".quill_history")
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(0),
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &kernelCompleter{cli: cli},
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	count := 0
	var buf []string
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(buf) > 0 {
				buf = nil
				rl.SetPrompt(prompt(count))
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if len(buf) == 0 {
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "exit", "quit":
				return nil
			}
		}
		buf = append(buf, line)
		code := strings.Join(buf, "\n")

		// The kernel decides whether the cell can run yet. Anything but
		// an explicit "incomplete" runs it; guessing locally would tie
		// the console to one language's syntax.
		icCtx, cancel := context.WithTimeout(cmd.Context(), consoleCallTimeout)
		check, err := cli.IsComplete(icCtx, code)
		cancel()
		if err == nil && check.Str("status") == wire.StatusIncomplete {
			rl.SetPrompt(continuation(count))
			continue
		}

		buf = nil
		reply, err := cli.Execute(cmd.Context(), code)
		if err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		drainBroadcasts(cli, reply.ParentHeader.ID)
		if reply.Str("status") == wire.StatusError {
			printFault(reply)
		}
		count = reply.Int("execution_count") + 1
		rl.SetPrompt(prompt(count))
	}
	return nil
}

func prompt(n int) string       { return fmt.Sprintf("In [%d]: ", n) }
func continuation(n int) string { return strings.Repeat(" ", len(prompt(n))-5) + "...: " }

func printBanner(out io.Writer, info *wire.Message) {
	banner := info.Str("banner")
	if banner != "" {
		color.New(color.FgCyan, color.Bold).Fprintln(out, banner)
	}
	name := "plain"
	if li, ok := info.Content["language_info"].(map[string]any); ok {
		if n, ok := li["name"].(string); ok && n != "" {
			name = n
		}
	}
	fmt.Fprintf(out, "%s kernel, protocol %s. Type exit to leave.\n",
		cases.Title(language.English).String(name), info.Str("protocol_version"))
}

// drainBroadcasts renders the IOPub side of one execution: everything
// published under the request's ID, up to the closing idle status. A quiet
// timeout guards against a kernel that dies mid-broadcast.
func drainBroadcasts(cli *client.Client, parent string) {
	for {
		select {
		case msg, ok := <-cli.IOPub():
			if !ok {
				return
			}
			if msg.ParentHeader.ID != parent {
				continue
			}
			renderBroadcast(msg)
			if msg.Header.Kind == wire.Status && msg.Str("execution_state") == "idle" {
				return
			}
		case <-time.After(broadcastQuiet):
			return
		}
	}
}

func renderBroadcast(msg *wire.Message) {
	switch msg.Header.Kind {
	case wire.Stream:
		if msg.Str("name") == wire.StreamStderr {
			color.New(color.FgRed).Fprint(os.Stderr, msg.Str("text"))
			return
		}
		fmt.Print(msg.Str("text"))
	case wire.ExecuteResult:
		tag := color.GreenString("Out[%d]:", msg.Int("execution_count"))
		fmt.Printf("%s %s\n", tag, bundleText(msg.Content["data"]))
	case wire.DisplayData:
		fmt.Println(bundleText(msg.Content["data"]))
	}
}

func printFault(reply *wire.Message) {
	red := color.New(color.FgRed)
	if lines, ok := reply.Content["traceback"].([]any); ok {
		for _, l := range lines {
			if s, ok := l.(string); ok {
				red.Fprintln(os.Stderr, s)
			}
		}
	}
	red.Fprintf(os.Stderr, "%s: %s\n", reply.Str("ename"), reply.Str("evalue"))
}

// bundleText picks the plain-text rendering out of a MIME bundle. Messages
// that crossed a codec carry plain maps; in-process ones may still carry
// the named bundle type.
func bundleText(v any) string {
	switch data := v.(type) {
	case map[string]any:
		if s, ok := data[wire.MIMEText].(string); ok {
			return s
		}
	case wire.MIMEBundle:
		if s, ok := data[wire.MIMEText].(string); ok {
			return s
		}
	}
	return ""
}

// kernelCompleter adapts kernel completion to readline. readline wants the
// text that would extend the current word, so each match from the kernel's
// replacement range is trimmed by the span already typed.
type kernelCompleter struct {
	cli *client.Client
}

func (kc *kernelCompleter) Do(line []rune, pos int) ([][]rune, int) {
	ctx, cancel := context.WithTimeout(context.Background(), consoleCallTimeout)
	defer cancel()
	reply, err := kc.cli.Complete(ctx, string(line), pos)
	if err != nil || reply.Str("status") != wire.StatusOK {
		return nil, 0
	}
	length := pos - reply.Int("cursor_start")
	if length < 0 {
		return nil, 0
	}
	raw, _ := reply.Content["matches"].([]any)
	var out [][]rune
	for _, m := range raw {
		s, ok := m.(string)
		if !ok {
			continue
		}
		r := []rune(s)
		if len(r) < length {
			continue
		}
		out = append(out, r[length:])
	}
	return out, length
}
