// File: cmd/script.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/assess"
	"github.com/xkilldash9x/intentcheck/internal/driver"
	"github.com/xkilldash9x/intentcheck/internal/observability"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

func newScriptCmd() *cobra.Command {
	var baseURL string
	var retries int

	scriptCmd := &cobra.Command{
		Use:   "script <scenario>",
		Short: "Run a single scenario script against a site",
		Args:  cobra.ExactArgs(1),
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

			runDir, err := newRunDir(appCfg, "script")
			if err != nil {
				return err
			}
			logger.Info("Scenario parsed.",
				zap.String("scenario", args[0]),
				zap.Int("instructions", len(instructions)),
				zap.String("output", runDir))

			var record *schemas.RunRecord
			err = withAllocator(ctx, appCfg, logger, func(alloc *driver.Allocator) error {
				var rerr error
				record, rerr = executeSession(ctx, alloc, appCfg, baseURL, runDir, "single", instructions, retries, logger)
				return rerr
			})
			if err != nil {
				return err
			}

			verdict := assess.Judge(nil, nil, record)
			if err := reporting.WriteJSON(filepath.Join(runDir, "intent_verdict.json"), verdict); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), verdict.Verdict)
			return verdictExit(verdict.Verdict)
		},
	}

	scriptCmd.Flags().StringVar(&baseURL, "base-url", "", "site under test, e.g. https://example.local")
	scriptCmd.Flags().IntVar(&retries, "retries", 0, "retry budget for runs that error out")
	return scriptCmd
}

func init() {
	rootCmd.AddCommand(newScriptCmd())
}
