package adapter

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// Table is a delimited upstream file addressed by header name.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ParseTable reads a header row followed by data rows. Header names are
// matched case-insensitively. Rows may be ragged.
func ParseTable(body []byte, comma rune) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, models.Malformed("table header: %v", err)
	}
	t := NewTable(header, nil)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return t, models.Malformed("table row: %v", err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// NewTable indexes rows under header.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	return t
}

// Has reports whether every named column is present.
func (t *Table) Has(cols ...string) bool {
	for _, c := range cols {
		if _, ok := t.index[strings.ToUpper(c)]; !ok {
			return false
		}
	}
	return true
}

// Get returns the trimmed cell for col, or "" when the row is short or the
// column is absent.
func (t *Table) Get(row []string, col string) string {
	i, ok := t.index[strings.ToUpper(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Float parses the cell for col, tolerating thousands separators.
func (t *Table) Float(row []string, col string) (float64, bool) {
	cell := strings.ReplaceAll(t.Get(row, col), ",", "")
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	return v, err == nil
}
