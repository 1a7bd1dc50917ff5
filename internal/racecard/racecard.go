// Package racecard turns spreadsheet tables into race entries and loads them
// from a remote URL with a bundled local fallback.
package racecard

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/keiba-ai/internal/sheet"
)

// UnknownName is used when a row has no horse name.
const UnknownName = "不明"

// Entry is one competitor. Metrics holds only catalog metrics whose cells
// parsed as numbers; Marks holds non-empty grade cells.
type Entry struct {
	Number  int
	Name    string
	Metrics map[string]float64
	Marks   map[string]string
	// Row is the 0-based position in the source table.
	Row int
}

// Dataset is the set of entries built from one upload or fetch.
type Dataset struct {
	Source   string
	Fallback bool
	Table    *sheet.Table
	Entries  []Entry
	// Missing lists catalog metric labels with no matching column.
	Missing  []string
	Warnings []string
}

// Lookup finds the entry with the given number.
func (d *Dataset) Lookup(number int) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Number == number {
			return e, true
		}
	}
	return Entry{}, false
}

// Build maps a table's columns onto the catalog. Missing columns and
// unparsable cells become warnings; only an empty table is an error.
func Build(source string, t *sheet.Table) (*Dataset, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, fmt.Errorf("%s: no header row", source)
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", source)
	}
	ds := &Dataset{Source: source, Table: t}

	numCol := t.Column(numberAliases...)
	nameCol := t.Column(nameAliases...)
	if numCol < 0 {
		ds.Warnings = append(ds.Warnings, "馬番 column missing; entries numbered by row order")
	}
	if nameCol < 0 {
		ds.Warnings = append(ds.Warnings, "馬名 column missing")
	}

	metricCols := make(map[string]int, len(Catalog))
	for _, m := range Catalog {
		if idx := t.Column(m.Aliases...); idx >= 0 {
			metricCols[m.Key] = idx
		} else {
			ds.Missing = append(ds.Missing, m.Label)
		}
	}
	if len(metricCols) == 0 {
		ds.Warnings = append(ds.Warnings, "no recognized metric columns; every entry will be unscored")
	}
	markCols := make(map[string]int, len(MarkColumns))
	for _, mc := range MarkColumns {
		if idx := t.Column(mc.Aliases...); idx >= 0 {
			markCols[mc.Key] = idx
		}
	}

	badCells := 0
	for r := range t.Rows {
		e := Entry{
			Number:  r + 1,
			Name:    UnknownName,
			Metrics: make(map[string]float64, len(metricCols)),
			Marks:   make(map[string]string, len(markCols)),
			Row:     r,
		}
		if numCol >= 0 {
			if n, ok := sheet.ParseNumber(t.Cell(r, numCol)); ok && n == float64(int(n)) && n > 0 {
				e.Number = int(n)
			} else {
				badCells++
			}
		}
		if nameCol >= 0 {
			if v := t.Cell(r, nameCol); v != "" {
				e.Name = v
			}
		}
		for key, idx := range metricCols {
			raw := t.Cell(r, idx)
			if raw == "" {
				continue
			}
			if v, ok := sheet.ParseNumber(raw); ok {
				e.Metrics[key] = v
			} else {
				badCells++
			}
		}
		for key, idx := range markCols {
			if v := t.Cell(r, idx); v != "" {
				e.Marks[key] = v
			}
		}
		ds.Entries = append(ds.Entries, e)
	}
	if badCells > 0 {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("%d cells could not be read as numbers and were ignored", badCells))
	}
	return ds, nil
}

// MissingSummary renders Missing for display, or "" when nothing is missing.
func (d *Dataset) MissingSummary() string {
	if len(d.Missing) == 0 {
		return ""
	}
	return "missing columns (accuracy reduced): " + strings.Join(d.Missing, ", ")
}
