package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/KaramelBytes/keiba-ai/internal/signtheory"
)

var (
	signFlags      pipelineFlags
	signEvents     []string
	signEventsFile string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Suggest sign-theory numbers and pairings from notable events",
	Long: `sign turns notable events of the year into horse numbers and pairings.
Events come from --events ("title: 1 7 30"), from --events-file (a YAML list of
{title, numbers} or one "title: numbers" line per event) or from the built-in set.
The race card is optional; when it loads, matching entries are listed.`,
	Example: `  keiba sign
  keiba sign --events "震災から30年: 1 7 30" --events "五輪: 2 4"
  keiba sign --events-file events.yaml --no-llm`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readEvents(signEvents, signEventsFile)
		if err != nil {
			return err
		}
		c := config()
		svc, err := newService(c, &signFlags)
		if err != nil {
			return err
		}
		var ds *racecard.Dataset
		if loaded, err := signFlags.source(c).Load(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: race card unavailable, plan uses a full field: %v\n", err)
		} else {
			ds = loaded
		}
		v, err := svc.Sign(cmd.Context(), ds, events)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if signFlags.jsonOut {
			return writeJSON(out, v)
		}
		printMeta(out, v.Meta)
		for _, s := range v.Plan.Steps {
			fmt.Fprintln(out, s)
		}
		fmt.Fprintln(out, v.Plan.Text())
		if len(v.Matches) > 0 {
			fmt.Fprintln(out)
			printRows(out, v.Matches)
		}
		printNarrative(out, "AI suggestion", v.Narrative)
		return nil
	},
}

// readEvents merges inline and file events; nil means the built-in set.
func readEvents(inline []string, path string) ([]signtheory.Event, error) {
	var out []signtheory.Event
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read events file: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			var evs []signtheory.Event
			if err := yaml.Unmarshal(data, &evs); err != nil {
				return nil, fmt.Errorf("parse events file: %w", err)
			}
			for i, ev := range evs {
				if strings.TrimSpace(ev.Title) == "" || len(ev.Numbers) == 0 {
					return nil, fmt.Errorf("events file entry %d: title and numbers are required", i+1)
				}
			}
			out = append(out, evs...)
		default:
			evs, err := signtheory.ParseEvents(string(data))
			if err != nil {
				return nil, fmt.Errorf("parse events file: %w", err)
			}
			out = append(out, evs...)
		}
	}
	if len(inline) > 0 {
		evs, err := signtheory.ParseEvents(strings.Join(inline, "\n"))
		if err != nil {
			return nil, fmt.Errorf("--events: %w", err)
		}
		out = append(out, evs...)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(signCmd)
	signFlags.register(signCmd)
	signCmd.Flags().StringArrayVar(&signEvents, "events", nil, `event as "title: numbers" (repeatable)`)
	signCmd.Flags().StringVar(&signEventsFile, "events-file", "", "YAML or text file of events")
}
