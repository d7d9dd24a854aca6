package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillkernel/quill/bridge"
	"github.com/quillkernel/quill/config"
	"github.com/quillkernel/quill/kernel"
)

func newMCPCmd() *cobra.Command {
	var settingsDir string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the kernel as MCP tools on stdio",
		Long:  "mcp runs an embedded kernel behind a Model Context Protocol server speaking on stdin and stdout, so agent hosts can call execute and complete as tools.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings(settingsDir)
			if err != nil {
				return err
			}
			k, err := kernel.NewEmbedded(kernel.Config{
				Language:        settings.Language,
				LanguageVersion: settings.LanguageVersion,
				Banner:          settings.Banner,
			})
			if err != nil {
				return err
			}
			b, err := bridge.New(bridge.Config{Kernel: k})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return b.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&settingsDir, "settings", "", "directory holding quill.yaml")
	return cmd
}
