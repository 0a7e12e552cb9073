// File: cmd/judge.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/assess"
	"github.com/xkilldash9x/intentcheck/internal/manifest"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
)

func newJudgeCmd() *cobra.Command {
	var outPath string

	judgeCmd := &cobra.Command{
		Use:   "judge <manifest> <run.json>",
		Short: "Re-judge a recorded run against a manifest's assertions",
		Long: "judge evaluates a manifest's assertions and guards against the evidence in\n" +
			"a previously recorded run. No browser is launched; the verdict comes purely\n" +
			"from the captured checkpoints.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}

			record := &schemas.RunRecord{}
			if err := reporting.ReadJSON(args[1], record); err != nil {
				return fmt.Errorf("read run record: %w", err)
			}

			verdict := assess.Judge(m.Assertions, m.Guards, record)

			dest := outPath
			if dest == "" {
				dest = filepath.Join(filepath.Dir(args[1]), "intent_verdict.json")
			}
			if err := reporting.WriteJSON(dest, verdict); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), verdict.Verdict)
			return verdictExit(verdict.Verdict)
		},
	}

	judgeCmd.Flags().StringVarP(&outPath, "out", "o", "", "where to write the verdict JSON (default next to the run record)")
	return judgeCmd
}

func init() {
	rootCmd.AddCommand(newJudgeCmd())
}
