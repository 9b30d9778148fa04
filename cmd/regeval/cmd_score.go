package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regeval/internal/format"
	"regeval/internal/similarity"
)

var scoreCmd = &cobra.Command{
	Use:   "score <actual> <expected>",
	Short: "Score one answer against an expected answer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, pass := similarity.Score(args[0], args[1])
		verdict := "FAIL"
		if pass {
			verdict = "PASS"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", format.FmtScore(score), verdict)
		return nil
	},
}
