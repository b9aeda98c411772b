package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/spf13/cobra"
)

// NewAdaptersCommand creates the adapters command.
func NewAdaptersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the available subsystem adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutBridge(cmd)
			current := strings.ToLower(cmdCtx.Cfg.Adapter.Type)

			for _, name := range adapter.ListAdapters() {
				marker := " "
				if name == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
