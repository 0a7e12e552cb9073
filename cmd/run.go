// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/assess"
	"github.com/xkilldash9x/intentcheck/internal/compare"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/driver"
	"github.com/xkilldash9x/intentcheck/internal/manifest"
	"github.com/xkilldash9x/intentcheck/internal/observability"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Execute a test manifest and judge the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}
			instructions, err := m.ToInstructions()
			if err != nil {
				return err
			}

			cfg := *appCfg
			applyManifest(&cfg, m)

			runDir, err := newRunDir(&cfg, "run")
			if err != nil {
				return err
			}
			logger.Info("Manifest loaded.",
				zap.String("manifest", args[0]),
				zap.String("mode", m.Strategy.Mode),
				zap.Int("instructions", len(instructions)),
				zap.String("output", runDir))

			var judged *schemas.RunRecord
			err = withAllocator(ctx, &cfg, logger, func(alloc *driver.Allocator) error {
				switch m.Strategy.Mode {
				case manifest.ModeCompare:
					run := func(ctx context.Context, session string) (*schemas.RunRecord, error) {
						return executeSession(ctx, alloc, &cfg, m.Environment.BaseURL, runDir, session, instructions, cfg.Compare.Retries, logger)
					}
					report, cerr := compare.Execute(ctx, cfg.Compare, cfg.Timeouts.Probe, run, logger)
					if cerr != nil {
						return cerr
					}
					if werr := reporting.WriteJSON(filepath.Join(runDir, "comparison_report.json"), report); werr != nil {
						return werr
					}
					if werr := compare.WriteMarkdown(report, filepath.Join(runDir, "comparison_report.md")); werr != nil {
						return werr
					}
					if m.JudgeRun() == "baseline" {
						judged = report.Baseline
					} else {
						judged = report.Modified
					}
				default:
					record, rerr := executeSession(ctx, alloc, &cfg, m.Environment.BaseURL, runDir, "single", instructions, cfg.Compare.Retries, logger)
					if rerr != nil {
						return rerr
					}
					judged = record
				}
				return nil
			})
			if err != nil {
				return err
			}

			verdict := assess.Judge(m.Assertions, m.Guards, judged)
			if err := reporting.WriteJSON(filepath.Join(runDir, "intent_verdict.json"), verdict); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), verdict.Verdict)
			logger.Info("Judgement written.",
				zap.String("verdict", string(verdict.Verdict)),
				zap.Int("passed", verdict.Passed),
				zap.Int("failed", verdict.Failed),
				zap.Int("errored", verdict.Errored),
				zap.String("path", filepath.Join(runDir, "intent_verdict.json")))
			return verdictExit(verdict.Verdict)
		},
	}
	return runCmd
}

// applyManifest overlays manifest-level settings onto the app configuration
// for this invocation only.
func applyManifest(cfg *config.Config, m *manifest.Manifest) {
	if m.Timeouts.PageLoadMS > 0 {
		cfg.Timeouts.PageLoad = time.Duration(m.Timeouts.PageLoadMS) * time.Millisecond
	}
	if m.Strategy.BeforeCmd != "" {
		cfg.Compare.BeforeCmd = m.Strategy.BeforeCmd
	}
	if m.Strategy.BetweenCmd != "" {
		cfg.Compare.BetweenCmd = m.Strategy.BetweenCmd
	}
	if m.Strategy.AfterCmd != "" {
		cfg.Compare.AfterCmd = m.Strategy.AfterCmd
	}
	if m.Strategy.Retries > 0 {
		cfg.Compare.Retries = m.Strategy.Retries
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
