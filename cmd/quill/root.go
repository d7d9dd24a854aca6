package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quill",
		Short:         "quill: a notebook kernel shell",
		Long:          "quill serves an interactive-language kernel over the Jupyter messaging convention: multi-socket TCP or single-socket WebSocket transports, a console client, kernelspec installation, and an MCP bridge for agent tooling.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newInstallCmd(),
		newConsoleCmd(),
		newMCPCmd(),
	)

	return rootCmd
}
