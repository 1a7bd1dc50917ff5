// Package sheet reads race cards from spreadsheet and delimited-text files
// into a plain string table.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates a format that cannot be read as a table.
var ErrUnsupported = errors.New("unsupported spreadsheet format")

var zipMagic = []byte("PK\x03\x04")

// Read chooses a reader by extension, falling back to content sniffing for
// names without one (remote URLs often have none).
func Read(name string, data []byte) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(stripQuery(name)))
	switch ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(name, data, "", 1)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls (save as .xlsx or .csv)", ErrUnsupported)
	case ".csv", ".tsv", ".txt":
		return ReadCSV(name, data)
	}
	if bytes.HasPrefix(data, zipMagic) {
		return ReadXLSX(name, data, "", 1)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupported)
	}
	return ReadCSV(name, data)
}

// ReadFile reads a table from disk.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Read(filepath.Base(path), data)
}

func stripQuery(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}
