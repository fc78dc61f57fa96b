// Package csvio reads the feed CSV extracts into memory.
//
// Feed files are bounded batches, so files are read whole rather than
// streamed. Input is sanitized before parsing: the UTF-8 BOM that Windows
// tools prepend is stripped and invalid UTF-8 sequences are replaced, so a
// single bad byte never aborts a load.
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile reads a CSV file and returns its header row and data rows.
// The header is expected on the first line, as both feeds provide it.
func ReadFile(path string) (header []string, rows [][]string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	records, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}

	return records[0], records[1:], nil
}

// Parse parses raw CSV bytes after BOM stripping and UTF-8 sanitization.
// Rows may have ragged column counts; downstream lookups go through
// HeaderIndex, which tolerates short rows.
func Parse(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character. Returns the input unchanged when it is already valid, which is
// the common case and avoids a copy.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}

// HeaderIndex maps cleaned, lowercased column names to their position.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a CSV header row.
// Call once per file and reuse for all rows.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(CleanCell(h))] = i
	}
	return idx
}

// Value returns the cleaned cell for the named column, or "" when the column
// is absent or the row is too short.
func (idx HeaderIndex) Value(row []string, name string) string {
	pos, ok := idx[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// Has reports whether the named column exists in the header.
func (idx HeaderIndex) Has(name string) bool {
	_, ok := idx[strings.ToLower(name)]
	return ok
}

// CleanCell normalizes a raw CSV cell: trims whitespace and unwraps the
// Excel formula guard (="0123") that spreadsheet exports add to preserve
// leading zeros.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(s)
}

// IsEmptyRow reports whether every cell in the row is blank.
func IsEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
