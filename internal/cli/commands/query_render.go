package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

func renderResults(w io.Writer, rs core.ResultSet, format string) error {
	cols := rs.Keys()

	switch format {
	case config.OutputJSON:
		return renderJSON(w, rs)
	case config.OutputCSV:
		return renderCSV(w, cols, rs)
	case config.OutputMarkdown:
		return renderMarkdown(w, cols, rs)
	default:
		return renderTable(w, cols, rs)
	}
}

func newTable(w io.Writer, cols []string, rs core.ResultSet) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	// Header
	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	// Rows
	for _, rec := range rs {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(rec, col)
		}
		t.AppendRow(row)
	}
	return t
}

func renderTable(w io.Writer, cols []string, rs core.ResultSet) error {
	if len(rs) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	newTable(w, cols, rs).Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs))
	return nil
}

func renderJSON(w io.Writer, rs core.ResultSet) error {
	if rs == nil {
		rs = core.ResultSet{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rs)
}

func renderCSV(w io.Writer, cols []string, rs core.ResultSet) error {
	if len(cols) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, rec := range rs {
		for i, col := range cols {
			row[i] = formatValue(rec, col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderMarkdown(w io.Writer, cols []string, rs core.ResultSet) error {
	if len(rs) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	newTable(w, cols, rs).RenderMarkdown()
	return nil
}

// formatValue renders a record's property for text output. A property the
// record lacks and a null value both render as NULL.
func formatValue(rec core.Record, col string) string {
	v, ok := rec.Get(col)
	if !ok {
		return core.Null().String()
	}
	return v.String()
}
