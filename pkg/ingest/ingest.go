// Package ingest turns uploaded CSV, Excel and JSON files into tables.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-intake/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

var (
	headerPunctuation = regexp.MustCompile(`[^\w\s]`)
	headerSpace       = regexp.MustCompile(`\s+`)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile loads and parses the file at path. The table is named after the
// file's base name.
func ReadFile(path string) (*models.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseFile(filepath.Base(path), data)
}

// ParseFile parses data according to the extension of name. CSV and Excel
// cells are kept as text with blank cells as null; JSON keeps its value
// types. Rows with no non-blank cell are dropped.
func ParseFile(name string, data []byte) (*models.Table, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var (
		headers []string
		rows    []models.Record
		err     error
	)
	switch ext {
	case ".csv":
		headers, rows, err = parseCSV(data)
	case ".xlsx", ".xls":
		headers, rows, err = parseExcel(data)
	case ".json":
		headers, rows, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("%s: extension %q: %w", name, ext, apperrors.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("parse %s: no columns: %w", name, apperrors.ErrEmptyInput)
	}

	return models.NewTable(name, headers, rows)
}

// CleanHeader trims a raw header and drops punctuation and whitespace, so
// "Client-ID" becomes "ClientID".
func CleanHeader(raw string) string {
	h := strings.TrimSpace(raw)
	h = headerPunctuation.ReplaceAllString(h, "")
	return headerSpace.ReplaceAllString(h, "")
}

// cleanHeaders cleans every header, names blank ones Column1, Column2 by
// position and suffixes repeats _2, _3.
func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, r := range raw {
		h := CleanHeader(r)
		if h == "" {
			h = "Column" + strconv.Itoa(i+1)
		}
		name := h
		for n := 2; used[name]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = true
		headers[i] = name
	}
	return headers
}

// recordsFromGrid turns string rows into records keyed by headers. Missing
// trailing cells are null and extra cells are ignored.
func recordsFromGrid(headers []string, grid [][]string) []models.Record {
	rows := make([]models.Record, 0, len(grid))
	for _, line := range grid {
		if isBlankRow(line) {
			continue
		}
		rec := make(models.Record, len(headers))
		for i, h := range headers {
			if i < len(line) && strings.TrimSpace(line[i]) != "" {
				rec[h] = models.TextCell(line[i])
			} else {
				rec[h] = models.NullCell()
			}
		}
		rows = append(rows, rec)
	}
	return rows
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseCSV(data []byte) ([]string, []models.Record, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	grid, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("csv: %w", err)
	}
	if len(grid) == 0 {
		return nil, nil, fmt.Errorf("csv has no header row: %w", apperrors.ErrEmptyInput)
	}

	headers := cleanHeaders(grid[0])
	return headers, recordsFromGrid(headers, grid[1:]), nil
}

func parseExcel(data []byte) ([]string, []models.Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", errors.Join(apperrors.ErrUnsupportedFormat, err))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets: %w", apperrors.ErrEmptyInput)
	}

	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	// Leading blank rows come before the header row.
	for len(grid) > 0 && isBlankRow(grid[0]) {
		grid = grid[1:]
	}
	if len(grid) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty: %w", sheets[0], apperrors.ErrEmptyInput)
	}

	headers := cleanHeaders(grid[0])
	return headers, recordsFromGrid(headers, grid[1:]), nil
}

// parseJSON reads a top-level array of objects. Headers are the object keys
// in the order first seen; nested values are kept as JSON text.
func parseJSON(data []byte) ([]string, []models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, nil, err
	}

	var rawHeaders []string
	cleaned := make(map[string]string)
	var rows []models.Record

	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, nil, err
		}

		rec := make(models.Record)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("json: %w", err)
			}
			key, ok := tok.(string)
			if !ok {
				return nil, nil, fmt.Errorf("json: unexpected object key %v", tok)
			}

			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, nil, fmt.Errorf("json: value of %q: %w", key, err)
			}

			if _, seen := cleaned[key]; !seen {
				rawHeaders = append(rawHeaders, key)
				cleaned[key] = ""
			}
			rec[key] = models.CellFromAny(value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, fmt.Errorf("json: %w", err)
		}
		rows = append(rows, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("json: %w", err)
	}

	headers := cleanHeaders(rawHeaders)
	for i, raw := range rawHeaders {
		cleaned[raw] = headers[i]
	}

	out := make([]models.Record, 0, len(rows))
	for _, raw := range rows {
		rec := make(models.Record, len(headers))
		blank := true
		for _, key := range rawHeaders {
			c, ok := raw[key]
			if !ok {
				c = models.NullCell()
			}
			if !c.IsEmpty() {
				blank = false
			}
			rec[cleaned[key]] = c
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return headers, out, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("json: empty document: %w", apperrors.ErrEmptyInput)
		}
		return fmt.Errorf("json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("json: expected %q, got %v", want, tok)
	}
	return nil
}
