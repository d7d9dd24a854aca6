// Package magic implements the kernel's administrative commands: directives
// the dispatcher recognizes and runs itself instead of handing them to the
// language evaluator. A command is any submission whose first non-space rune
// is '%'.
package magic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/quillkernel/quill/eval"
)

// ErrCommandExists is returned when registering a duplicate command.
var ErrCommandExists = errors.New("command already registered")

// Env carries the kernel state commands may consult. Evaluator may be nil
// when the engine has not been configured.
type Env struct {
	Evaluator eval.Evaluator
	Count     int
	Language  string
	Version   string
}

// Command is one administrative command.
type Command struct {
	// Name invokes the command, written without the leading '%'.
	Name string

	// Summary is the one-line description listed by %help.
	Summary string

	// Run executes the command. Output written to os.Stdout/os.Stderr is
	// captured and streamed like evaluator output; the returned outcome is
	// classified the same way an evaluation is.
	Run func(ctx context.Context, args []string, env Env) (*eval.Outcome, error)
}

// Registry maps command names to commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates a registry with the builtin commands installed.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]Command)}
	r.Register(Command{Name: "help", Summary: "list available commands", Run: r.runHelp})
	r.Register(Command{Name: "version", Summary: "show the kernel version", Run: runVersion})
	r.Register(Command{Name: "load", Summary: "evaluate a source file: %load <path>", Run: runLoad})
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %q has no run function", cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrCommandExists, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Lookup retrieves a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns command names sorted for deterministic output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run parses and executes one command line. An unrecognized name yields a
// *eval.CompileError so callers classify it like any malformed submission.
func (r *Registry) Run(ctx context.Context, code string, env Env) (*eval.Outcome, error) {
	name, args := Parse(code)
	cmd, ok := r.Lookup(name)
	if !ok {
		return nil, &eval.CompileError{Message: fmt.Sprintf("unknown command %%%s", name)}
	}
	return cmd.Run(ctx, args, env)
}

// IsCommand reports whether code is an administrative command: its first
// non-space rune is '%'.
func IsCommand(code string) bool {
	for _, r := range code {
		if unicode.IsSpace(r) {
			continue
		}
		return r == '%'
	}
	return false
}

// Parse splits a command line into its name (without the '%') and arguments.
func Parse(code string) (name string, args []string) {
	fields := strings.Fields(strings.TrimSpace(code))
	if len(fields) == 0 {
		return "", nil
	}
	name = strings.TrimPrefix(fields[0], "%")
	return name, fields[1:]
}
