// File: internal/compare/execute.go
// Description: Paired run orchestration. The baseline run, the between hook
// (typically a deploy or cache rebuild), and the modified run execute in
// strict order; every shell hook's outcome lands in the report.

package compare

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/evidence"
)

// RunFunc executes one full scenario run under the given session name.
// Implementations own session setup and teardown (browser tab, output dir).
type RunFunc func(ctx context.Context, session string) (*schemas.RunRecord, error)

// Execute performs a paired baseline/modified comparison. Shell hooks are
// best effort: a nonzero exit is recorded in the report for the reader to
// weigh, the comparison itself still runs.
func Execute(ctx context.Context, cfg config.CompareConfig, probeTimeout time.Duration, run RunFunc, logger *zap.Logger) (*schemas.ComparisonReport, error) {
	log := logger.Named("compare")
	shell := map[string]*schemas.ProbeResult{}

	runHook(ctx, "before", cfg.BeforeCmd, probeTimeout, shell, log)

	log.Info("Starting baseline run.")
	baseline, err := run(ctx, "baseline")
	if err != nil {
		return nil, fmt.Errorf("baseline run: %w", err)
	}

	runHook(ctx, "between", cfg.BetweenCmd, probeTimeout, shell, log)

	log.Info("Starting modified run.")
	modified, err := run(ctx, "modified")
	if err != nil {
		return nil, fmt.Errorf("modified run: %w", err)
	}

	runHook(ctx, "after", cfg.AfterCmd, probeTimeout, shell, log)

	report := CompareRuns(baseline, modified)
	report.Shell = shell

	log.Info("Comparison complete.",
		zap.Int("checkpoints", report.Summary.CheckpointsTotal),
		zap.Int("changed", report.Summary.Changed),
		zap.Int("missing", report.Summary.Missing),
		zap.Bool("identical", Identical(report)))
	return report, nil
}

func runHook(ctx context.Context, name, cmdline string, timeout time.Duration, shell map[string]*schemas.ProbeResult, log *zap.Logger) {
	if cmdline == "" {
		return
	}
	log.Info("Running shell hook.", zap.String("hook", name), zap.String("command", cmdline))
	result := evidence.RunProbe(ctx, cmdline, "", timeout)
	shell[name] = result
	if result.ExitCode != 0 {
		log.Warn("Shell hook failed; recorded in the report.",
			zap.String("hook", name),
			zap.String("command", cmdline),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stderr", result.Stderr))
	}
}
