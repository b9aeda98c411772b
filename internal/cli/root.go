// Package cli provides the command-line interface for wqlbridge.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/wqlbridge/internal/cli/commands"
	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/spf13/cobra"

	// Register the subsystem adapters.
	_ "github.com/leapstack-labs/wqlbridge/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/wqlbridge/pkg/adapters/memory"
	_ "github.com/leapstack-labs/wqlbridge/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/wqlbridge/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/wqlbridge/pkg/adapters/wmi"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wqlbridge",
		Short: "wqlbridge - WQL query bridge",
		Long: `wqlbridge runs WQL data queries against a management subsystem and
returns uniform records.

A query names a namespace (root/cimv2, root/wmi, ...), the WQL text and
optionally the properties to return. Failures are reported as one of
InvalidArgument, NamespaceError, QueryError or SubsystemFault.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and version commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg)
			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			// Print config file used (if verbose)
			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
				if cfg.Environment != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using environment: %s\n", cfg.Environment)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{.Name}} {{.Version}}
commit %s, built %s
`, GitCommit, BuildDate))

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./wqlbridge.yaml)")
	flags.String("env", "", "Environment from the config file to apply")
	flags.String("adapter", "", "Subsystem adapter (wmi, memory, sqlite, duckdb, postgres)")
	flags.String("adapter-path", "", "Adapter path: fixture file or database location")
	flags.StringSlice("namespaces", nil, "Namespace allowlist (empty allows all the adapter serves)")
	flags.Bool("cache-connections", false, "Reuse one subsystem session per namespace")
	flags.Int("workers", 0, "Bound concurrent subsystem queries (0 runs on the caller)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|table|json|csv|markdown)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("namespaces", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.DefaultNamespaces(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewNamespacesCommand())
	rootCmd.AddCommand(commands.NewAdaptersCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for wqlbridge.

To load completions:

Bash:
  $ source <(wqlbridge completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ wqlbridge completion bash > /etc/bash_completion.d/wqlbridge
  # macOS:
  $ wqlbridge completion bash > $(brew --prefix)/etc/bash_completion.d/wqlbridge

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ wqlbridge completion zsh > "${fpath[1]}/_wqlbridge"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ wqlbridge completion fish | source

  # To load completions for each session, execute once:
  $ wqlbridge completion fish > ~/.config/fish/completions/wqlbridge.fish

PowerShell:
  PS> wqlbridge completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> wqlbridge completion powershell > wqlbridge.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
