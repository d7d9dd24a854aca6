package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillkernel/quill/kernel"
	"github.com/quillkernel/quill/wire"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (protocol %s)\n",
				kernel.Implementation, kernel.Version, wire.ProtocolVersion)
			return err
		},
	}
}
