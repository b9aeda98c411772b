package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format     string
	Input      string
	Properties []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <namespace> [WQL]",
		Short: "Run a WQL data query",
		Long: `Run a WQL data query against a management namespace.

The query text is passed to the subsystem unmodified. Every record carries
the requested properties (or every property the subsystem reports when
--property is not given); a property the subsystem does not know reads as
NULL.

When invoked without a query on a terminal, enters interactive REPL mode.`,
		Example: `  # All processor properties
  wqlbridge query root/cimv2 "SELECT * FROM Win32_Processor"

  # Only the requested properties, as JSON
  wqlbridge query root/cimv2 "SELECT * FROM Win32_Service" -p Name -p State -f json

  # Read the query from a file
  wqlbridge query root/wmi -i battery.wql

  # Interactive mode
  wqlbridge query root/cimv2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default: --output)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read WQL from file")
	cmd.Flags().StringSliceVarP(&opts.Properties, "property", "p", nil, "Property to return (repeatable, comma-separated)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	namespace := args[0]

	// Determine WQL source
	var wql string
	repl := false
	switch {
	case len(args) > 1:
		wql = strings.Join(args[1:], " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		wql = string(content)
	case !isTerminal(cmd.InOrStdin()):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		wql = string(content)
	default:
		repl = true
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	format := resolveFormat(opts.Format, cmdCtx.Cfg.OutputFormat, cmd.OutOrStdout())
	props := properties(cmd, opts)

	if repl {
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, cmdCtx.Bridge, namespace, props, format)
	}
	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), cmdCtx.Bridge, namespace, strings.TrimSpace(wql), props, format)
}

// properties returns nil when --property was not given, so every property
// is returned.
func properties(cmd *cobra.Command, opts *QueryOptions) any {
	if !cmd.Flags().Changed("property") {
		return nil
	}
	return opts.Properties
}

func executeAndRender(ctx context.Context, w io.Writer, b *bridge.Bridge, namespace, wql string, props any, format string) error {
	rs, err := b.Query(ctx, namespace, wql, props)
	if err != nil {
		return err
	}
	return renderResults(w, rs, format)
}

// resolveFormat picks the output format: the command's --format, then the
// configured output, with auto meaning a table on a terminal and JSON elsewhere.
func resolveFormat(flag, configured string, w io.Writer) string {
	format := strings.ToLower(flag)
	if format == "" {
		format = strings.ToLower(configured)
	}
	switch format {
	case "md":
		return config.OutputMarkdown
	case "", config.OutputAuto:
		if isTerminal(w) {
			return config.OutputTable
		}
		return config.OutputJSON
	}
	return format
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
