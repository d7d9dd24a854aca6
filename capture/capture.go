// Package capture redirects the process-wide standard streams around one
// evaluation so the kernel can record what the snippet wrote.
//
// os.Stdout, os.Stderr and os.Stdin are process globals, so redirection is
// inherently exclusive state. A package-level lock enforces the single-writer
// invariant: exactly one capture scope is active at any instant, system-wide.
// Callers that serialize evaluations (the kernel's single-worker dispatch)
// never contend; anything else queues on the lock.
package capture

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// mu guards the global stream handles. One scope at a time.
var mu sync.Mutex

// Capture swaps the process streams, runs body, and restores the originals
// on every exit path including panic. Writes to os.Stdout and os.Stderr
// during body are recorded; when mirroring is enabled for a channel the
// bytes are also forwarded to the original handle. os.Stdin reads EOF for
// the duration so an evaluation can never block on interactive input.
//
// The returned stdout and stderr are complete: copier goroutines are
// drained before Capture returns.
func Capture(mirrorStdout, mirrorStderr bool, body func() error) (stdout, stderr string, err error) {
	mu.Lock()
	defer mu.Unlock()

	origOut, origErr, origIn := os.Stdout, os.Stderr, os.Stdin

	outR, outW, perr := os.Pipe()
	if perr != nil {
		return "", "", fmt.Errorf("capture: stdout pipe: %w", perr)
	}
	errR, errW, perr := os.Pipe()
	if perr != nil {
		outR.Close()
		outW.Close()
		return "", "", fmt.Errorf("capture: stderr pipe: %w", perr)
	}
	in, perr := os.Open(os.DevNull)
	if perr != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return "", "", fmt.Errorf("capture: stdin placeholder: %w", perr)
	}

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var dst io.Writer = &outBuf
		if mirrorStdout {
			dst = io.MultiWriter(&outBuf, origOut)
		}
		io.Copy(dst, outR)
	}()
	go func() {
		defer wg.Done()
		var dst io.Writer = &errBuf
		if mirrorStderr {
			dst = io.MultiWriter(&errBuf, origErr)
		}
		io.Copy(dst, errR)
	}()

	os.Stdout, os.Stderr, os.Stdin = outW, errW, in

	defer func() {
		os.Stdout, os.Stderr, os.Stdin = origOut, origErr, origIn
		outW.Close()
		errW.Close()
		in.Close()
		wg.Wait()
		outR.Close()
		errR.Close()
		stdout = outBuf.String()
		stderr = errBuf.String()
	}()

	err = body()
	return
}
