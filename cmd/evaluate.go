package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var evaluateFlags pipelineFlags

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <number>",
	Short: "Evaluate one horse by number (horse, jockey and course facets)",
	Example: `  keiba evaluate 5
  keiba evaluate 12 --file arima.xlsx --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid horse number %q", args[0])
		}
		c := config()
		svc, err := newService(c, &evaluateFlags)
		if err != nil {
			return err
		}
		ds, err := evaluateFlags.source(c).Load(cmd.Context())
		if err != nil {
			return err
		}
		v, err := svc.Single(cmd.Context(), ds, n)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if evaluateFlags.jsonOut {
			return writeJSON(out, v)
		}
		printMeta(out, v.Meta)
		if !v.Evaluation.Found {
			return nil
		}
		ev := v.Evaluation
		fmt.Fprintf(out, "\n%d %s\n", ev.Number, ev.Name)
		fmt.Fprintf(out, "  overall: %.2f\n  horse:   %.2f\n  jockey:  %.2f\n  course:  %.2f\n", ev.Overall, ev.Horse, ev.Jockey, ev.Course)
		fmt.Fprintf(out, "%s\n", v.Summary)
		printNarrative(out, "AI analysis", v.Narrative)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateFlags.register(evaluateCmd)
}
