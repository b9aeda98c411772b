package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()

	assert.Equal(t, "query <namespace> [WQL]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	// Verify flags exist (output is a global flag on root, not local)
	flags := []string{"format", "input", "property"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "p", cmd.Flags().Lookup("property").Shorthand)
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	for _, flag := range []string{"addr", "watch"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewSeedCommand(t *testing.T) {
	cmd := NewSeedCommand()

	assert.Equal(t, "seed <namespace> <class> <file.csv>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	assert.Error(t, cmd.Args(cmd, []string{"root/cimv2"}))
}

func TestNewNamespacesCommand(t *testing.T) {
	cmd := NewNamespacesCommand()

	assert.Equal(t, "namespaces", cmd.Use)
	assert.NotEmpty(t, cmd.Long, "Long should not be empty")
}

func TestNewAdaptersCommand(t *testing.T) {
	cmd := NewAdaptersCommand()

	assert.Equal(t, "adapters", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}
