package magic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/quillkernel/quill/capture"
	"github.com/quillkernel/quill/eval"
)

type fakeEvaluator struct {
	lastCode  string
	lastCount int
	outcome   *eval.Outcome
	err       error
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, code string, count int) (*eval.Outcome, error) {
	f.lastCode = code
	f.lastCount = count
	return f.outcome, f.err
}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"%help", true},
		{"  %version", true},
		{"\t%load a.src", true},
		{"x % y", false},
		{"plain code", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := IsCommand(tt.code); got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		code     string
		wantName string
		wantArgs []string
	}{
		{"%help", "help", nil},
		{"%load file.src", "load", []string{"file.src"}},
		{"  %load  a b ", "load", []string{"a", "b"}},
		{"", "", nil},
	}
	for _, tt := range tests {
		name, args := Parse(tt.code)
		if name != tt.wantName {
			t.Errorf("Parse(%q) name = %q, want %q", tt.code, name, tt.wantName)
		}
		if len(args) != len(tt.wantArgs) {
			t.Errorf("Parse(%q) args = %v, want %v", tt.code, args, tt.wantArgs)
			continue
		}
		for i := range args {
			if args[i] != tt.wantArgs[i] {
				t.Errorf("Parse(%q) args = %v, want %v", tt.code, args, tt.wantArgs)
			}
		}
	}
}

func TestRegistryBuiltinsSorted(t *testing.T) {
	r := NewRegistry()
	want := []string{"help", "load", "version"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Command{Name: "help", Summary: "again", Run: runVersion})
	if !errors.Is(err, ErrCommandExists) {
		t.Errorf("duplicate registration error = %v, want ErrCommandExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Command{Summary: "no name", Run: runVersion}); err == nil {
		t.Error("expected an error for a nameless command")
	}
	if err := r.Register(Command{Name: "norun"}); err == nil {
		t.Error("expected an error for a command without a run function")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	r := NewRegistry()
	_, err := r.Run(context.Background(), "%nosuch", Env{})
	var ce *eval.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("unknown command error = %T, want *eval.CompileError", err)
	}
	if !strings.Contains(ce.Message, "%nosuch") {
		t.Errorf("message = %q, should name the command", ce.Message)
	}
}

func TestHelpListsCommands(t *testing.T) {
	r := NewRegistry()
	stdout, _, err := capture.Capture(false, false, func() error {
		_, runErr := r.Run(context.Background(), "%help", Env{})
		return runErr
	})
	if err != nil {
		t.Fatalf("%%help: %v", err)
	}
	for _, name := range []string{"%help", "%load", "%version"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("help output missing %s:\n%s", name, stdout)
		}
	}
}

func TestVersionResult(t *testing.T) {
	r := NewRegistry()
	out, err := r.Run(context.Background(), "%version", Env{Language: "calc", Version: "1.2.0"})
	if err != nil {
		t.Fatalf("%%version: %v", err)
	}
	got, ok := out.Result.(string)
	if !ok || !strings.Contains(got, "1.2.0") || !strings.Contains(got, "calc") {
		t.Errorf("result = %v, want language and version", out.Result)
	}
}

func TestLoadEvaluatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippet.src")
	if err := os.WriteFile(path, []byte("1 + 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeEvaluator{outcome: &eval.Outcome{Result: 3}}
	r := NewRegistry()

	out, err := r.Run(context.Background(), "%load "+path, Env{Evaluator: fake, Count: 7})
	if err != nil {
		t.Fatalf("%%load: %v", err)
	}
	if fake.lastCode != "1 + 2\n" {
		t.Errorf("evaluated code = %q", fake.lastCode)
	}
	if fake.lastCount != 7 {
		t.Errorf("count = %d, want the current execution count", fake.lastCount)
	}
	if out.Result != 3 {
		t.Errorf("result = %v, want 3", out.Result)
	}
}

func TestLoadUsage(t *testing.T) {
	r := NewRegistry()
	_, err := r.Run(context.Background(), "%load", Env{})
	var ce *eval.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("missing-arg error = %T, want *eval.CompileError", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	r := NewRegistry()
	_, err := r.Run(context.Background(), "%load /nonexistent/path.src", Env{Evaluator: &fakeEvaluator{}})
	var re *eval.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("missing-file error = %T, want *eval.RuntimeError", err)
	}
	if re.Cause == nil {
		t.Error("the file error should be kept as the cause")
	}
}

func TestLoadWithoutEvaluator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippet.src")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	out, err := r.Run(context.Background(), "%load "+path, Env{})
	if out != nil || err != nil {
		t.Errorf("without an evaluator %%load = (%v, %v), want the not-ready (nil, nil)", out, err)
	}
}
