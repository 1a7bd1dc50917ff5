package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/keiba-ai/internal/predict"
	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

func writeJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// printMeta prints the data source line and any recovered problems.
func printMeta(w io.Writer, m predict.Meta) {
	src := m.Source
	if m.Fallback {
		src += " (bundled sample)"
	}
	if src != "" {
		fmt.Fprintf(w, "Data: %s\n", src)
	}
	for _, warn := range m.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warn)
	}
}

func printRows(w io.Writer, rows []predict.Row) {
	fmt.Fprintf(w, "%-4s %-10s %-4s %-8s %s\n", "#", "Mark", "No", "Score", "Name")
	for _, r := range rows {
		score := "-"
		if r.Composite != nil {
			score = strconv.FormatFloat(*r.Composite, 'f', 2, 64)
		}
		fmt.Fprintf(w, "%-4d %-10s %-4d %-8s %s\n", r.Position, r.Label, r.Number, score, r.Name)
	}
}

func printNarrative(w io.Writer, title, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintf(w, "\n== %s ==\n%s\n", title, text)
}
