package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Table is a header plus string rows, every row padded to the header width.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Column returns the index of the first header equal (case-insensitive, trimmed)
// to any of the given names, or -1.
func (t *Table) Column(names ...string) int {
	for _, n := range names {
		want := normalizeHeader(n)
		for i, h := range t.Header {
			if normalizeHeader(h) == want {
				return i
			}
		}
	}
	return -1
}

// Cell returns the trimmed value at row r, column c; out of range yields "".
func (t *Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[r][c])
}

// Markdown renders at most maxRows rows as a pipe table for prompt context.
// maxRows <= 0 renders every row.
func (t *Table) Markdown(maxRows int) string {
	if t == nil || len(t.Header) == 0 {
		return ""
	}
	var b strings.Builder
	if t.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", t.Name))
	}
	b.WriteString("| ")
	for i, h := range t.Header {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(EscapeCell(safeName(h)))
	}
	b.WriteString(" |\n|")
	for range t.Header {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	n := len(t.Rows)
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for _, row := range t.Rows[:n] {
		b.WriteString("| ")
		for i := range t.Header {
			if i > 0 {
				b.WriteString(" | ")
			}
			if i < len(row) {
				b.WriteString(EscapeCell(strings.TrimSpace(row[i])))
			}
		}
		b.WriteString(" |\n")
	}
	if n < len(t.Rows) {
		b.WriteString(fmt.Sprintf("(%d more rows omitted)\n", len(t.Rows)-n))
	}
	return b.String()
}

// ParseNumber parses a spreadsheet cell leniently: full-width digits, a
// trailing %, thousands separators and a decimal comma are accepted.
func ParseNumber(s string) (float64, bool) {
	raw := width.Fold.String(strings.TrimSpace(s))
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	// Decide the decimal separator from the last separator seen.
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	dec := '.'
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			dec = ','
		}
	case cpos >= 0:
		// "1,234" is a thousands group, "12,5" a decimal comma.
		if len(raw)-cpos-1 != 3 {
			dec = ','
		}
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func normalizeHeader(s string) string {
	s = width.Fold.String(strings.TrimSpace(s))
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

// EscapeCell makes s safe inside one pipe-table cell.
func EscapeCell(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	tmp := make([]string, n)
	copy(tmp, row)
	return tmp
}
