package models

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-intake/pkg/apperrors"
)

// Record maps a header to the cell value in one row.
type Record map[string]Cell

// Table is one parsed input file: an ordered, unique header list and the
// rows keyed by header. Tables handed to the engine are never mutated.
type Table struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	Rows    []Record `json:"rows"`
}

// NewTable builds a table and rejects duplicate headers.
func NewTable(name string, headers []string, rows []Record) (*Table, error) {
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			return nil, fmt.Errorf("table %q header %q: %w", name, h, apperrors.ErrDuplicateHeader)
		}
		seen[h] = true
	}
	if rows == nil {
		rows = []Record{}
	}
	return &Table{
		Name:    name,
		Headers: append([]string(nil), headers...),
		Rows:    rows,
	}, nil
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// HasHeader reports whether the table has a column with exactly this name.
func (t *Table) HasHeader(header string) bool {
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Cell returns the value at row/column, or a null cell when absent.
func (t *Table) Cell(row int, column string) Cell {
	if row < 0 || row >= len(t.Rows) {
		return NullCell()
	}
	c, ok := t.Rows[row][column]
	if !ok {
		return NullCell()
	}
	return c
}

// Column returns every cell of a column in row order.
func (t *Table) Column(column string) []Cell {
	cells := make([]Cell, len(t.Rows))
	for i, r := range t.Rows {
		if c, ok := r[column]; ok {
			cells[i] = c
		}
	}
	return cells
}

// Sample returns up to n leading rows.
func (t *Table) Sample(n int) []Record {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// RowValues returns the cells of one row in header order.
func (t *Table) RowValues(row int) []Cell {
	values := make([]Cell, len(t.Headers))
	for i, h := range t.Headers {
		values[i] = t.Cell(row, h)
	}
	return values
}
