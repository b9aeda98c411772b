package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/leapstack-labs/wqlbridge/internal/testutil"
	"github.com/leapstack-labs/wqlbridge/pkg/adapters/memory"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupBridge returns a bridge over the built-in memory fixture.
func setupBridge(t *testing.T) *bridge.Bridge {
	t.Helper()

	a := memory.New(testutil.NewTestLogger(t))
	require.NoError(t, a.Connect(context.Background(), core.AdapterConfig{Type: "memory"}))
	t.Cleanup(func() { _ = a.Close() })

	b, err := bridge.New(bridge.Config{
		Adapter:           a,
		Logger:            testutil.NewTestLogger(t),
		AllowedNamespaces: config.DefaultNamespaces(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func sampleResults() core.ResultSet {
	r1 := core.NewRecord(3)
	r1.Set("Name", core.String("Spooler"))
	r1.Set("State", core.String("Running"))
	r1.Set("ProcessId", core.Int(4312))

	r2 := core.NewRecord(3)
	r2.Set("Name", core.String("Fax, Scanner"))
	r2.Set("State", core.Null())
	r2.Set("ProcessId", core.Int(0))
	return core.ResultSet{r1, r2}
}

func TestRenderResults(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		rs       core.ResultSet
		contains []string
	}{
		{
			name:     "table",
			format:   config.OutputTable,
			rs:       sampleResults(),
			contains: []string{"Name", "Spooler", "NULL", "(2 rows)"},
		},
		{
			name:     "empty table",
			format:   config.OutputTable,
			rs:       core.ResultSet{},
			contains: []string{"(0 rows)"},
		},
		{
			name:     "csv quotes separators",
			format:   config.OutputCSV,
			rs:       sampleResults(),
			contains: []string{"Spooler,Running,4312", `"Fax, Scanner"`},
		},
		{
			name:     "markdown",
			format:   config.OutputMarkdown,
			rs:       sampleResults(),
			contains: []string{"| Spooler | Running | 4312 |"},
		},
		{
			name:     "empty json",
			format:   config.OutputJSON,
			rs:       nil,
			contains: []string{"[]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, renderResults(buf, tt.rs, tt.format))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderResults_CSVRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, sampleResults(), config.OutputCSV))

	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "State", "ProcessId"},
		{"Spooler", "Running", "4312"},
		{"Fax, Scanner", "NULL", "0"},
	}, rows)
}

func TestRenderResults_CSVQuotesEmbeddedQuotes(t *testing.T) {
	rec := core.NewRecord(1)
	rec.Set("Caption", core.String(`HP "LaserJet", 4th floor`))

	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, core.ResultSet{rec}, config.OutputCSV))
	assert.Contains(t, buf.String(), `"HP ""LaserJet"", 4th floor"`)

	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `HP "LaserJet", 4th floor`, rows[1][0])
}

func TestRenderResults_JSONKeepsOrderAndTypes(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, sampleResults(), config.OutputJSON))

	out := buf.String()
	assert.Less(t, strings.Index(out, `"Name"`), strings.Index(out, `"State"`), "properties keep their order")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Nil(t, decoded[1]["State"])
	assert.InDelta(t, 4312, decoded[0]["ProcessId"], 0)
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name       string
		flag       string
		configured string
		want       string
	}{
		{name: "flag wins", flag: "csv", configured: "table", want: "csv"},
		{name: "configured", configured: "markdown", want: "markdown"},
		{name: "md alias", flag: "md", want: "markdown"},
		{name: "auto off a terminal is json", configured: "auto", want: "json"},
		{name: "empty is auto", want: "json"},
		{name: "case folded", flag: "JSON", want: "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveFormat(tt.flag, tt.configured, new(bytes.Buffer)))
		})
	}
}

func TestFormatError(t *testing.T) {
	err := core.NewError(core.QueryError, nil, "query rejected")
	assert.Contains(t, FormatError(err), "QueryError:")
	assert.Contains(t, FormatError(err), "query rejected")

	assert.Contains(t, FormatError(errors.New("boom")), "boom")
}

func TestExecuteAndRender(t *testing.T) {
	b := setupBridge(t)
	buf := new(bytes.Buffer)

	err := executeAndRender(context.Background(), buf, b, "root/cimv2",
		"SELECT * FROM Win32_Processor", []string{"Name", "NumberOfCores"}, config.OutputCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",14")
}

func TestExecuteAndRender_Error(t *testing.T) {
	b := setupBridge(t)
	buf := new(bytes.Buffer)

	err := executeAndRender(context.Background(), buf, b, "root/cimv2", "invalid", nil, config.OutputTable)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.QueryError)
	assert.Empty(t, buf.String(), "nothing is rendered for a failed query")
}

func newTestREPL(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	return &replSession{
		bridge:    setupBridge(t),
		namespace: "root/cimv2",
		format:    config.OutputCSV,
		out:       out,
		errOut:    errOut,
	}, out, errOut
}

func TestREPL_DotCommands(t *testing.T) {
	ctx := context.Background()
	s, out, errOut := newTestREPL(t)

	assert.False(t, s.handleDotCommand(ctx, ".use root/wmi"))
	assert.Equal(t, "root/wmi", s.namespace)

	assert.False(t, s.handleDotCommand(ctx, ".props Name, State"))
	assert.Equal(t, []string{"Name", "State"}, s.props)
	assert.False(t, s.handleDotCommand(ctx, ".props *"))
	assert.Nil(t, s.props)

	assert.False(t, s.handleDotCommand(ctx, ".format md"))
	assert.Equal(t, config.OutputMarkdown, s.format)
	assert.False(t, s.handleDotCommand(ctx, ".format xml"))
	assert.Equal(t, config.OutputMarkdown, s.format)
	assert.Contains(t, errOut.String(), "Unknown format")

	assert.False(t, s.handleDotCommand(ctx, ".namespaces"))
	assert.Contains(t, out.String(), "root/cimv2")

	assert.False(t, s.handleDotCommand(ctx, ".bogus"))
	assert.Contains(t, errOut.String(), "Unknown command")

	assert.True(t, s.handleDotCommand(ctx, ".quit"))
	assert.True(t, s.handleDotCommand(ctx, ".EXIT"))
}

func TestREPL_Run(t *testing.T) {
	ctx := context.Background()
	s, out, errOut := newTestREPL(t)

	s.props = []string{"Name"}
	s.run(ctx, "SELECT * FROM Win32_Service WHERE State = 'Running'")
	assert.Contains(t, out.String(), "Spooler")
	assert.Empty(t, errOut.String())

	s.namespace = "root/nope"
	s.run(ctx, "SELECT * FROM Thing")
	assert.Contains(t, errOut.String(), "NamespaceError:")
}
