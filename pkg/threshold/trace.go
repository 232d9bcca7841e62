package threshold

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Table is one diagnostic table: a header and one row per candidate. Invalid
// or undefined statistics are stored as NaN and rendered as empty cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]float64
}

// NewTable creates an empty table.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// Add appends a row. It panics when the row width does not match the header.
func (t *Table) Add(values ...float64) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("threshold: table %s row has %d values, want %d", t.Name, len(values), len(t.Columns)))
	}
	t.Rows = append(t.Rows, values)
}

// Column returns a copy of the named column, nil if absent.
func (t *Table) Column(name string) []float64 {
	col := -1
	for i, c := range t.Columns {
		if c == name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[col]
	}
	return out
}

// WriteCSV renders the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Trace is the ordered set of diagnostic tables of one search.
type Trace struct {
	Tables []*Table
}

// Table returns the named table, nil if absent.
func (tr *Trace) Table(name string) *Table {
	for _, t := range tr.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (tr *Trace) add(t *Table) *Table {
	tr.Tables = append(tr.Tables, t)
	return t
}
