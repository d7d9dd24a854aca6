// Command quill launches the kernel shell: serve it over a transport,
// install its kernelspec, talk to a running kernel from a console, or
// expose it to agent tooling over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
