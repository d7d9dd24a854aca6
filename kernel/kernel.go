package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quillkernel/quill/completion"
	"github.com/quillkernel/quill/eval"
	"github.com/quillkernel/quill/magic"
	"github.com/quillkernel/quill/transport"
	"github.com/quillkernel/quill/wire"
)

// Version is the kernel implementation version reported to clients.
const Version = "0.4.2"

// Implementation is the implementation name reported to clients.
const Implementation = "quill"

// Sentinel errors for error classification.
var (
	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrShutdown signals that a shutdown request was served and the
	// message loop should stop.
	ErrShutdown = errors.New("shutdown requested")
)

// completionCacheSize bounds the completion result cache.
const completionCacheSize = 128

// Config holds the configuration for a kernel.
type Config struct {
	// Streams is the transport the kernel serves.
	// Required by New; NewEmbedded runs without one.
	Streams transport.Streams

	// Evaluator is the language engine. Optional: a kernel without one
	// reports the not-ready condition on execute and drops completion
	// requests. Attach one later with Kernel.AttachEvaluator.
	Evaluator eval.Evaluator

	// Renderer converts result values into display bundles.
	// Defaults to eval.TextRenderer.
	Renderer eval.Renderer

	// Magic holds the administrative commands.
	// Defaults to magic.NewRegistry().
	Magic *magic.Registry

	// Language and LanguageVersion identify the evaluated language.
	// Language defaults to "plain".
	Language        string
	LanguageVersion string

	// MIMEType and FileExtension describe the language's source files.
	// Default to "text/plain" and ".txt".
	MIMEType      string
	FileExtension string

	// Banner is the greeting reported in kernel_info replies.
	Banner string

	// Logger is an optional logger for observability.
	Logger Logger

	// Metrics is an optional metrics observer.
	Metrics *Metrics
}

// Validate checks that all required fields are set.
// Returns ErrConfiguration if any required field is missing.
func (c *Config) Validate() error {
	var missing []string

	if c.Streams == nil {
		missing = append(missing, "Streams")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s",
			ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Renderer == nil {
		c.Renderer = eval.TextRenderer{}
	}
	if c.Magic == nil {
		c.Magic = magic.NewRegistry()
	}
	if c.Language == "" {
		c.Language = "plain"
	}
	if c.MIMEType == "" {
		c.MIMEType = "text/plain"
	}
	if c.FileExtension == "" {
		c.FileExtension = ".txt"
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

type completionKey struct {
	code   string
	cursor int
	count  int64
}

// Kernel is the message dispatcher: it consumes one request at a time from
// the transport and emits the reply/broadcast sequence each kind demands.
type Kernel struct {
	cfg Config

	// counter is the execution counter. Atomic because is_complete checks
	// and metrics read it outside the dispatch worker.
	counter atomic.Int64

	mu        sync.RWMutex
	evaluator eval.Evaluator
	current   *wire.Message

	completions *lru.Cache[completionKey, completion.Result]
}

// New creates a kernel serving the configured transport.
// Returns ErrConfiguration if any required field is missing.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newKernel(cfg)
}

func newKernel(cfg Config) (*Kernel, error) {
	cfg.applyDefaults()
	cache, err := lru.New[completionKey, completion.Result](completionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("completion cache: %w", err)
	}
	k := &Kernel{cfg: cfg, completions: cache}
	k.evaluator = cfg.Evaluator
	return k, nil
}

// AttachEvaluator installs the language engine. Kernels are often started
// before their engine finishes initializing; until attachment the kernel
// reports the not-ready condition.
func (k *Kernel) AttachEvaluator(ev eval.Evaluator) {
	k.mu.Lock()
	k.evaluator = ev
	k.mu.Unlock()
	k.cfg.Logger.Logf("evaluator attached")
}

// Evaluator returns the attached engine, nil when none is ready.
func (k *Kernel) Evaluator() eval.Evaluator {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.evaluator
}

// ExecutionCount returns the number of execute requests taken so far. The
// next execution observes this value as its count.
func (k *Kernel) ExecutionCount() int {
	return int(k.counter.Load())
}

// Current returns the request the kernel is processing, nil between
// requests. Broadcasts correlate to it.
func (k *Kernel) Current() *wire.Message {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

func (k *Kernel) setCurrent(msg *wire.Message) {
	k.mu.Lock()
	k.current = msg
	k.mu.Unlock()
}

func (k *Kernel) clearCurrent() {
	k.setCurrent(nil)
}

// Run serves the transport until the context is canceled, the request feed
// closes, or a shutdown request is served. Each request's full emission
// sequence completes before the next is dispatched; dispatch faults other
// than shutdown are logged and the loop continues.
func (k *Kernel) Run(ctx context.Context) error {
	k.cfg.Logger.Logf("kernel ready: language=%s implementation=%s/%s",
		k.cfg.Language, Implementation, Version)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-k.cfg.Streams.Requests():
			if !ok {
				return nil
			}
			if err := k.Dispatch(ctx, in); err != nil {
				if errors.Is(err, ErrShutdown) {
					k.cfg.Logger.Logf("shutdown requested, stopping")
					return nil
				}
				k.cfg.Logger.Logf("dispatch %s: %v", in.Message.Header.Kind, err)
			}
		}
	}
}

// magicEnv builds the environment administrative commands run in.
func (k *Kernel) magicEnv(count int) magic.Env {
	return magic.Env{
		Evaluator: k.Evaluator(),
		Count:     count,
		Language:  k.cfg.Language,
		Version:   Version,
	}
}
