package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "wql> "
	replContPrompt = " ...> "
)

// replSession is the mutable state of one REPL: the namespace queries run
// against, the property projection and the output format.
type replSession struct {
	bridge    *bridge.Bridge
	namespace string
	props     any
	format    string
	out       io.Writer
	errOut    io.Writer
}

func runQueryREPL(cmd *cobra.Command, b *bridge.Bridge, namespace string, props any, format string) error {
	ctx := cmd.Context()
	s := &replSession{
		bridge:    b,
		namespace: namespace,
		props:     props,
		format:    format,
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
	}

	// Configure readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     historyFile(),
		AutoComplete:    newREPLCompleter(ctx, b),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Print welcome message
	_, _ = fmt.Fprintf(s.out, "wqlbridge query REPL (namespace: %s)\n", namespace)
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)

	// REPL loop
	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(s.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := s.handleDotCommand(ctx, line); quit {
				break
			}
			rl.SetPrompt(s.prompt())
			continue
		}

		// Accumulate multi-line WQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(s.prompt())

		query := strings.TrimSuffix(multiLineBuffer.String(), ";")
		multiLineBuffer.Reset()

		s.run(ctx, query)
		_, _ = fmt.Fprintln(s.out)
	}

	return nil
}

func (s *replSession) prompt() string {
	return s.namespace + " " + replPrompt
}

// run executes one query and prints either its records or its error.
func (s *replSession) run(ctx context.Context, query string) {
	if err := executeAndRender(ctx, s.out, s.bridge, s.namespace, query, s.props, s.format); err != nil {
		_, _ = fmt.Fprintln(s.errOut, FormatError(err))
	}
}

// handleDotCommand runs a dot-command and reports whether the REPL should exit.
func (s *replSession) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".use":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "namespace: %s\n", s.namespace)
			return false
		}
		s.namespace = parts[1]

	case ".namespaces":
		namespaces, err := s.bridge.Namespaces(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(s.errOut, FormatError(err))
			return false
		}
		for _, ns := range namespaces {
			_, _ = fmt.Fprintln(s.out, ns)
		}

	case ".props":
		switch {
		case len(parts) < 2:
			_, _ = fmt.Fprintf(s.out, "properties: %s\n", describeProps(s.props))
		case parts[1] == "*":
			s.props = nil
		default:
			var props []string
			for _, p := range strings.Split(strings.Join(parts[1:], ""), ",") {
				if p != "" {
					props = append(props, p)
				}
			}
			s.props = props
		}

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "format: %s\n", s.format)
			return false
		}
		format := resolveFormat(parts[1], config.OutputTable, s.out)
		if !slices.Contains(config.OutputFormats, format) {
			_, _ = fmt.Fprintf(s.errOut, "Unknown format: %s\n", parts[1])
			return false
		}
		s.format = format

	case ".clear":
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func describeProps(props any) string {
	list, ok := props.([]string)
	if !ok || len(list) == 0 {
		return "*"
	}
	return strings.Join(list, ", ")
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .use <namespace>   Switch the namespace queries run against
  .namespaces        List the namespaces the bridge serves
  .props <a,b,...>   Return only these properties (.props * for all)
  .format <fmt>      Output format: table, json, csv, md
  .clear             Clear the screen
  .quit / .exit      Exit the REPL

Tips:
  - Queries must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for keywords and namespaces
`
	_, _ = fmt.Fprintln(w, help)
}

// historyFile returns the REPL history path, or "" to keep history in memory.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "wqlbridge")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "query_history")
}

// newREPLCompleter completes WQL keywords, dot-commands and namespaces.
func newREPLCompleter(ctx context.Context, b *bridge.Bridge) *readline.PrefixCompleter {
	var nsItems []readline.PrefixCompleterInterface
	if namespaces, err := b.Namespaces(ctx); err == nil {
		for _, ns := range namespaces {
			nsItems = append(nsItems, readline.PcItem(string(ns)))
		}
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("SELECT"),
		readline.PcItem("FROM"),
		readline.PcItem("WHERE"),
		readline.PcItem(".help"),
		readline.PcItem(".use", nsItems...),
		readline.PcItem(".namespaces"),
		readline.PcItem(".props"),
		readline.PcItem(".format",
			readline.PcItem("table"),
			readline.PcItem("json"),
			readline.PcItem("csv"),
			readline.PcItem("md"),
		),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
