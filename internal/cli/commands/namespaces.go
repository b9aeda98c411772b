package commands

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/spf13/cobra"
)

// NewNamespacesCommand creates the namespaces command.
func NewNamespacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List the namespaces the bridge serves",
		Long: `List the namespaces queries may target.

When the adapter can enumerate its namespaces, the list is those namespaces
that the configured allowlist admits. Otherwise it is the allowlist itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			namespaces, err := cmdCtx.Bridge.Namespaces(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if resolveFormat("", cmdCtx.Cfg.OutputFormat, w) == config.OutputJSON {
				if namespaces == nil {
					namespaces = []core.Namespace{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(namespaces)
			}
			for _, ns := range namespaces {
				_, _ = fmt.Fprintln(w, ns)
			}
			return nil
		},
	}
}
