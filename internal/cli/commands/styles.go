package commands

import (
	"errors"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

var (
	kindStyles = map[core.ErrorKind]lipgloss.Style{
		core.InvalidArgument: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		core.NamespaceError:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		core.QueryError:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		core.SubsystemFault:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// FormatError renders err for the terminal. Bridge errors lead with their
// kind; anything else is a plain error line.
func FormatError(err error) string {
	var be *core.BridgeError
	if !errors.As(err, &be) {
		return errorStyle.Render("Error:") + " " + err.Error()
	}
	style, ok := kindStyles[be.Kind]
	if !ok {
		style = errorStyle
	}
	return style.Render(be.Kind.String()+":") + " " + be.Message
}
