// File: cmd/compare.go
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/assess"
	"github.com/xkilldash9x/intentcheck/internal/compare"
	"github.com/xkilldash9x/intentcheck/internal/driver"
	"github.com/xkilldash9x/intentcheck/internal/observability"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

func newCompareCmd() *cobra.Command {
	var baseURL string

	compareCmd := &cobra.Command{
		Use:   "compare <scenario>",
		Short: "Run a scenario twice, before and after a change, and diff the evidence",
		Long: "compare executes the same scenario against a baseline and a modified state\n" +
			"of the site. The between hook (typically a deploy or cache rebuild) runs\n" +
			"after the baseline. The report describes every observed difference; it does\n" +
			"not decide whether a difference is a regression.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if baseURL == "" {
				return fmt.Errorf("--base-url is required")
			}

			instructions, err := scenario.ParseFile(args[0])
			if err != nil {
				return err
			}

			cfg := *appCfg
			cfg.Compare.BeforeCmd = viper.GetString("compare.before_cmd")
			cfg.Compare.BetweenCmd = viper.GetString("compare.between_cmd")
			cfg.Compare.AfterCmd = viper.GetString("compare.after_cmd")
			cfg.Compare.ContinueOnFail = viper.GetBool("compare.continue_on_fail")
			cfg.Compare.Retries = viper.GetInt("compare.retries")

			runDir, err := newRunDir(&cfg, "compare")
			if err != nil {
				return err
			}
			logger.Info("Scenario parsed.",
				zap.String("scenario", args[0]),
				zap.Int("instructions", len(instructions)),
				zap.String("output", runDir))

			var report *schemas.ComparisonReport
			err = withAllocator(ctx, &cfg, logger, func(alloc *driver.Allocator) error {
				run := func(ctx context.Context, session string) (*schemas.RunRecord, error) {
					return executeSession(ctx, alloc, &cfg, baseURL, runDir, session, instructions, cfg.Compare.Retries, logger)
				}
				var cerr error
				report, cerr = compare.Execute(ctx, cfg.Compare, cfg.Timeouts.Probe, run, logger)
				return cerr
			})
			if err != nil {
				return err
			}

			if err := reporting.WriteJSON(filepath.Join(runDir, "comparison_report.json"), report); err != nil {
				return err
			}
			if err := compare.WriteMarkdown(report, filepath.Join(runDir, "comparison_report.md")); err != nil {
				return err
			}

			// The report itself is verdict free; the exit code reflects the
			// worse of the two runs' judged outcomes.
			baseline := assess.Judge(nil, nil, report.Baseline)
			modified := assess.Judge(nil, nil, report.Modified)
			worst := baseline.Verdict
			if modified.Verdict.ExitCode() > worst.ExitCode() {
				worst = modified.Verdict
			}

			fmt.Fprintf(cmd.OutOrStdout(), "baseline: %s\nmodified: %s\nchanged checkpoints: %d\n",
				baseline.Verdict, modified.Verdict, report.Summary.Changed)
			return verdictExit(worst)
		},
	}

	compareCmd.Flags().StringVar(&baseURL, "base-url", "", "site under test, e.g. https://example.local")
	compareCmd.Flags().String("before", "", "shell command to run before the baseline")
	compareCmd.Flags().String("between", "", "shell command to run between the two runs")
	compareCmd.Flags().String("after", "", "shell command to run after the modified run")
	compareCmd.Flags().Bool("continue-on-fail", false, "keep executing after a failed expectation")
	compareCmd.Flags().Int("retries", 0, "retry budget for runs that error out")

	viper.BindPFlag("compare.before_cmd", compareCmd.Flags().Lookup("before"))
	viper.BindPFlag("compare.between_cmd", compareCmd.Flags().Lookup("between"))
	viper.BindPFlag("compare.after_cmd", compareCmd.Flags().Lookup("after"))
	viper.BindPFlag("compare.continue_on_fail", compareCmd.Flags().Lookup("continue-on-fail"))
	viper.BindPFlag("compare.retries", compareCmd.Flags().Lookup("retries"))

	return compareCmd
}

func init() {
	rootCmd.AddCommand(newCompareCmd())
}
