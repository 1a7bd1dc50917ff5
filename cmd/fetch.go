package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

var (
	fetchURL    string
	fetchOutput string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the race card from data_url and save it as the local sample",
	Example: `  keiba fetch
  keiba fetch --url https://example.com/arima.xlsx --output data/arima.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config()
		l := newLoader(c, fetchURL)
		if l.URL == "" {
			return fmt.Errorf("no URL: pass --url or run: keiba config set data_url <url>")
		}
		data, err := l.Download(cmd.Context())
		if err != nil {
			return err
		}
		// refuse to overwrite the fallback with something unreadable
		ds, err := racecard.FromUpload(l.URL, data)
		if err != nil {
			return err
		}
		dst := fetchOutput
		if dst == "" {
			dst = c.SamplePath
		}
		if bytes.HasPrefix(data, []byte("PK\x03\x04")) != isWorkbookPath(dst) {
			return fmt.Errorf("downloaded format does not match %s; pass --output with a matching extension", dst)
		}
		if err := utils.SafeWriteFile(dst, data); err != nil {
			return fmt.Errorf("save %s: %w", dst, err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved %s (%d entries, %d bytes)\n", dst, len(ds.Entries), len(data))
		if sum := ds.MissingSummary(); sum != "" {
			fmt.Fprintf(out, "⚠ Warning: %s\n", sum)
		}
		return nil
	},
}

func isWorkbookPath(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "race card URL (overrides data_url)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "destination file (default sample_path)")
}
