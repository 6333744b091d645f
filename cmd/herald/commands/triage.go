package commands

import (
	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/core/pipeline"
)

var (
	triageNumber int
	triageCount  int
)

// triageCmd runs the labeling pipeline.
var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Assign a label to unlabeled open issues",
	Long: `Assign exactly one label from the configured enumeration.

With --number, a single issue is processed. Otherwise up to --count
recent unlabeled open issues are processed one at a time. Issues that
already carry a label are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(pipeline.ModeTriage, triageNumber, triageCount)
	},
}

func init() {
	rootCmd.AddCommand(triageCmd)

	triageCmd.Flags().IntVarP(&triageNumber, "number", "n", 0, "issue number to triage")
	triageCmd.Flags().IntVarP(&triageCount, "count", "c", 0, "batch size (default: config batch_size)")
}
