package commands

import (
	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/core/pipeline"
)

var (
	answerNumber int
	answerCount  int
)

// answerCmd runs the answering pipeline.
var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Post a retrieval-grounded first response",
	Long: `Draft and post one documentation-grounded reply with citations.

With --number, a single issue is processed. Otherwise up to --count
recent open issues are considered; issues that are not questions, have
already been answered, or lack supporting documents are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(pipeline.ModeAnswer, answerNumber, answerCount)
	},
}

func init() {
	rootCmd.AddCommand(answerCmd)

	answerCmd.Flags().IntVarP(&answerNumber, "number", "n", 0, "issue number to answer")
	answerCmd.Flags().IntVarP(&answerCount, "count", "c", 0, "batch size (default: config batch_size)")
}
