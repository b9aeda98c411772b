package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <namespace> <class> <file.csv>",
		Short: "Load class instances from a CSV file",
		Long: `Load the rows of a CSV file as the instances of a class.

The header row names the class properties. Empty fields load as NULL and
numeric or boolean text loads as a number or boolean.

Seeding needs an adapter that mirrors a namespace into storage (sqlite,
duckdb, postgres). The memory adapter accepts seeds but keeps them only for
the life of the process.`,
		Example: `  # Mirror a volume inventory into a sqlite namespace mirror
  wqlbridge seed root/cimv2 Win32_Volume volumes.csv --adapter sqlite --adapter-path ./mirror`,
		Args: cobra.ExactArgs(3),
		RunE: runSeed,
	}

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	ns := bridge.ResolveNamespace(args[0])
	class, file := args[1], args[2]

	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("seed file: %w", err)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	seeder, ok := cmdCtx.Adapter.(core.Seeder)
	if !ok {
		return fmt.Errorf("adapter %q cannot load seed data", cmdCtx.Adapter.Name())
	}
	if cmdCtx.Adapter.Name() == "memory" {
		cmdCtx.Logger.Warn("memory adapter seeds last only for this process")
	}

	if err := seeder.LoadCSV(cmd.Context(), ns, class, file); err != nil {
		return fmt.Errorf("failed to seed %s in %s: %w", class, ns, err)
	}
	cmdCtx.Logger.Debug("seed loaded",
		slog.String("namespace", string(ns)),
		slog.String("class", class),
		slog.String("file", file))

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s into %s from %s\n", class, ns, file)
	return nil
}
