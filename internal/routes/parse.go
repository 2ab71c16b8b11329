// Package routes turns artisan's JSON route list into a table and keeps it
// fresh while someone is looking at it.
package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nholik/sail-sentinel/internal/ui"
)

// Missing is shown for null or absent values.
const Missing = "-"

// Table is the parsed route list.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Render draws the table for a terminal.
func (t Table) Render() string {
	if len(t.Headers) == 0 {
		return ui.Muted("No routes") + "\n"
	}
	return ui.Table(t.Headers, t.Rows) + "\n"
}

// Filter returns the rows with any cell containing term, case-insensitively.
func (t Table) Filter(term string) Table {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return t
	}
	out := Table{Headers: t.Headers}
	for _, row := range t.Rows {
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell), term) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out
}

type field struct {
	key   string
	value string
}

// Parse decodes a JSON array of route objects. Headers are the keys of the
// first record in document order; every row follows that header order.
func Parse(data []byte) (Table, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &records); err != nil {
		return Table{}, fmt.Errorf("decode route list: %w", err)
	}
	if len(records) == 0 {
		return Table{}, nil
	}

	first, err := decodeRecord(records[0])
	if err != nil {
		return Table{}, fmt.Errorf("route 0: %w", err)
	}
	table := Table{Headers: make([]string, 0, len(first))}
	for _, f := range first {
		table.Headers = append(table.Headers, f.key)
	}

	for i, raw := range records {
		fields, err := decodeRecord(raw)
		if err != nil {
			return Table{}, fmt.Errorf("route %d: %w", i, err)
		}
		byKey := make(map[string]string, len(fields))
		for _, f := range fields {
			byKey[f.key] = f.value
		}
		row := make([]string, len(table.Headers))
		for j, header := range table.Headers {
			value, ok := byKey[header]
			if !ok {
				value = Missing
			}
			row[j] = value
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func decodeRecord(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected an object")
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		fields = append(fields, field{key: key, value: cell(value)})
	}
	return fields, nil
}

func cell(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Missing
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	if trimmed[0] == '[' {
		var items []any
		if err := json.Unmarshal(trimmed, &items); err == nil && allStrings(items) {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, item.(string))
			}
			return strings.Join(parts, "\n")
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

func allStrings(items []any) bool {
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}
