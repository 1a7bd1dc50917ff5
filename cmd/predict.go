package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var predictFlags pipelineFlags

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score the race card, assign marks and ask the LLM for a prediction",
	Example: `  keiba predict
  keiba predict --file arima.xlsx --no-llm
  keiba predict --url https://example.com/arima.csv --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config()
		svc, err := newService(c, &predictFlags)
		if err != nil {
			return err
		}
		ds, err := predictFlags.source(c).Load(cmd.Context())
		if err != nil {
			return err
		}
		v, err := svc.Overall(cmd.Context(), ds)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if predictFlags.jsonOut {
			return writeJSON(out, v)
		}
		printMeta(out, v.Meta)
		fmt.Fprintln(out)
		printRows(out, v.Rows)
		if v.Formation != "" {
			fmt.Fprintf(out, "\nFormation: %s\n", v.Formation)
		}
		printNarrative(out, "AI prediction", v.Narrative)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictFlags.register(predictCmd)
}
