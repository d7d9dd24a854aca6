package magic

import (
	"context"
	"fmt"
	"os"

	"github.com/quillkernel/quill/eval"
)

// runHelp writes the command table to stdout, one line per command in name
// order, so it streams to the client like any other output.
func (r *Registry) runHelp(ctx context.Context, args []string, env Env) (*eval.Outcome, error) {
	for _, name := range r.Names() {
		cmd, ok := r.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintf(os.Stdout, "%%%-10s %s\n", cmd.Name, cmd.Summary)
	}
	return &eval.Outcome{}, nil
}

func runVersion(ctx context.Context, args []string, env Env) (*eval.Outcome, error) {
	id := env.Version
	if env.Language != "" {
		id = fmt.Sprintf("%s kernel %s", env.Language, env.Version)
	}
	return &eval.Outcome{Result: id}, nil
}

// runLoad reads a source file and evaluates its whole content as one
// snippet under the current execution count.
func runLoad(ctx context.Context, args []string, env Env) (*eval.Outcome, error) {
	if len(args) != 1 {
		return nil, &eval.CompileError{Message: "usage: %load <path>"}
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, &eval.RuntimeError{
			Message: fmt.Sprintf("cannot load %s", args[0]),
			Cause:   err,
		}
	}
	if env.Evaluator == nil {
		return nil, nil
	}
	return env.Evaluator.Evaluate(ctx, string(content), env.Count)
}
