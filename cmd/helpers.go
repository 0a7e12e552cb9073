// File: cmd/helpers.go
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/driver"
	"github.com/xkilldash9x/intentcheck/internal/evidence"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
	"github.com/xkilldash9x/intentcheck/internal/runner"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

// newRunDir creates a timestamped directory for this invocation's artifacts.
func newRunDir(cfg *config.Config, label string) (string, error) {
	dir := filepath.Join(cfg.Output.Dir, time.Now().Format("20060102_150405")+"_"+label)
	if err := reporting.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return dir, nil
}

// executeSession runs one scenario in a fresh browser tab and persists the
// run record under runDir/<session>/.
func executeSession(ctx context.Context, alloc *driver.Allocator, cfg *config.Config, baseURL, runDir, session string, instructions []scenario.Instruction, retries int, logger *zap.Logger) (*schemas.RunRecord, error) {
	sess, err := alloc.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			logger.Warn("Failed to close browser session.", zap.String("session", session), zap.Error(cerr))
		}
	}()

	outDir := filepath.Join(runDir, session)
	if err := reporting.EnsureDir(outDir); err != nil {
		return nil, err
	}

	collector := evidence.NewCollector(sess, cfg.Evidence, cfg.Timeouts, outDir, logger)
	r := runner.New(sess, collector, cfg, baseURL, logger)
	record := r.ExecuteWithRetry(ctx, instructions, session, retries)

	if err := reporting.WriteJSON(filepath.Join(outDir, "run.json"), record); err != nil {
		return nil, err
	}
	return record, nil
}

// withAllocator runs fn with a browser allocator, shutting it down afterwards.
func withAllocator(ctx context.Context, cfg *config.Config, logger *zap.Logger, fn func(alloc *driver.Allocator) error) error {
	alloc, err := driver.NewAllocator(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if serr := alloc.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("Browser shutdown incomplete.", zap.Error(serr))
		}
	}()
	return fn(alloc)
}

// verdictExit converts a verdict into the command result: PASS is success,
// anything else carries its exit code.
func verdictExit(v schemas.Verdict) error {
	if v == schemas.VerdictPass {
		return nil
	}
	return exitWithCode(v.ExitCode(), fmt.Sprintf("verdict: %s", v))
}
