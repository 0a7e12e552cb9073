// File: internal/runner/runner.go
// Description: Sequential scenario execution. Each instruction either
// succeeds, records a finding (FAILED), or breaks the tooling (ERRORED);
// findings are evidence and never retried, tool breakage is retry-eligible.

package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/evidence"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

const selectorPollInterval = 250 * time.Millisecond

// Runner executes parsed instructions against one driver session.
type Runner struct {
	driver    schemas.Driver
	collector *evidence.Collector
	cfg       *config.Config
	baseURL   string
	logger    *zap.Logger
}

// New wires a runner to a session, a collector and a base URL.
func New(drv schemas.Driver, collector *evidence.Collector, cfg *config.Config, baseURL string, logger *zap.Logger) *Runner {
	return &Runner{
		driver:    drv,
		collector: collector,
		cfg:       cfg,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.Named("runner"),
	}
}

// Execute runs the instruction list to completion and returns the record.
// The record is always returned, even for failed and errored runs; the caller
// decides what to do with it.
func (r *Runner) Execute(ctx context.Context, instructions []scenario.Instruction, session string) *schemas.RunRecord {
	record := &schemas.RunRecord{
		ID:        uuid.NewString(),
		Session:   session,
		BaseURL:   r.baseURL,
		StartedAt: time.Now().UTC(),
		Status:    schemas.RunRunning,
		Extracts:  map[string]*schemas.ExtractedValue{},
		Probes:    map[string]*schemas.ProbeResult{},
	}

	for i := range instructions {
		ins := &instructions[i]
		if ctx.Err() != nil {
			r.errorRun(record, ins, fmt.Errorf("run cancelled: %w", ctx.Err()))
			break
		}

		if stop := r.step(ctx, record, ins); stop {
			break
		}
	}

	if record.Status == schemas.RunRunning {
		record.Status = schemas.RunCompleted
	}
	record.CompletedAt = time.Now().UTC()

	r.logger.Info("Run finished.",
		zap.String("session", session),
		zap.String("status", string(record.Status)),
		zap.Int("checkpoints", len(record.Checkpoints)),
		zap.Int("assertions", len(record.Assertions)),
		zap.Duration("elapsed", record.Elapsed()))
	return record
}

// ExecuteWithRetry reruns the scenario when the tooling broke. A FAILED run
// is a finding and is returned as-is.
func (r *Runner) ExecuteWithRetry(ctx context.Context, instructions []scenario.Instruction, session string, retries int) *schemas.RunRecord {
	record := r.Execute(ctx, instructions, session)
	for attempt := 1; record.Status == schemas.RunErrored && attempt <= retries; attempt++ {
		r.logger.Warn("Run errored, retrying.",
			zap.String("session", session),
			zap.Int("attempt", attempt),
			zap.String("reason", record.FailureReason))
		record = r.Execute(ctx, instructions, fmt.Sprintf("%s_retry%d", session, attempt))
	}
	return record
}

// step executes one instruction. It returns true when the run must stop.
func (r *Runner) step(ctx context.Context, record *schemas.RunRecord, ins *scenario.Instruction) bool {
	r.logger.Debug("Executing instruction.",
		zap.String("kind", string(ins.Kind)),
		zap.Int("line", ins.Line),
		zap.String("raw", ins.Raw))

	switch ins.Kind {
	case scenario.KindOpen:
		if err := r.driver.Open(ctx, r.resolveURL(ins.Path)); err != nil {
			return r.classify(record, ins, err)
		}
	case scenario.KindWait, scenario.KindExpect:
		if err := r.wait(ctx, ins); err != nil {
			return r.classify(record, ins, err)
		}
	case scenario.KindCheckpoint:
		return r.checkpoint(ctx, record, ins, true)
	case scenario.KindSnapshot:
		return r.checkpoint(ctx, record, ins, false)
	case scenario.KindScreenshot:
		if err := r.screenshot(ctx, ins.Name); err != nil {
			return r.classify(record, ins, err)
		}
	case scenario.KindAssert:
		r.assert(ctx, record, ins)
	case scenario.KindExtract:
		if err := r.extract(ctx, record, ins); err != nil {
			return r.classify(record, ins, err)
		}
	case scenario.KindProbe:
		result := evidence.RunProbeArgvCommand(ctx, ins.ProbeArgv, r.cfg.Evidence.ProbeCwd, r.cfg.Timeouts.Probe)
		record.Probes[ins.Name] = result
	case scenario.KindRaw:
		if err := r.driver.Raw(ctx, ins.Raw); err != nil {
			return r.classify(record, ins, err)
		}
	case scenario.KindAIExplore:
		return r.aiExplore(ctx, record, ins)
	default:
		r.errorRun(record, ins, fmt.Errorf("unsupported instruction kind %q", ins.Kind))
		return true
	}
	return false
}

// resolveURL joins a scenario path onto the base URL. Absolute URLs pass
// through untouched.
func (r *Runner) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return r.baseURL + path
	}
	return r.baseURL + "/" + path
}

func (r *Runner) wait(ctx context.Context, ins *scenario.Instruction) error {
	switch ins.WaitMode {
	case scenario.WaitSleep:
		return sleep(ctx, time.Duration(ins.Seconds*float64(time.Second)))
	case scenario.WaitLoad:
		return r.driver.WaitLoad(ctx, ins.LoadState, r.cfg.Timeouts.PageLoad)
	case scenario.WaitText:
		return r.driver.WaitText(ctx, ins.Text, r.cfg.Timeouts.WaitText)
	case scenario.WaitSelector:
		return r.waitSelector(ctx, ins.Locator.Value, r.cfg.Timeouts.WaitText)
	}
	return fmt.Errorf("unknown wait mode %q", ins.WaitMode)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitSelector polls for a matching element until the timeout elapses.
func (r *Runner) waitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	expr := fmt.Sprintf("!!document.querySelector(%s)", jsonLiteral(selector))
	deadline := time.Now().Add(timeout)
	for {
		var found bool
		if err := r.driver.Eval(ctx, expr, &found); err != nil {
			return err
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return &schemas.TimeoutError{Op: fmt.Sprintf("wait for selector %q", selector), Timeout: timeout}
		}
		if err := sleep(ctx, selectorPollInterval); err != nil {
			return err
		}
	}
}

func (r *Runner) checkpoint(ctx context.Context, record *schemas.RunRecord, ins *scenario.Instruction, full bool) bool {
	// Refuse the name before capturing: a capture persists artifacts under
	// the name, and a duplicate would overwrite the first checkpoint's files.
	if record.Checkpoint(ins.Name) != nil {
		r.errorRun(record, ins, fmt.Errorf("duplicate checkpoint name %q", ins.Name))
		return true
	}
	bundle, err := r.collector.Capture(ctx, ins.Name, full)
	if err != nil {
		return r.classify(record, ins, err)
	}
	if err := record.AddCheckpoint(bundle); err != nil {
		r.errorRun(record, ins, err)
		return true
	}
	return false
}

func (r *Runner) screenshot(ctx context.Context, name string) error {
	data, err := r.driver.Screenshot(ctx)
	if err != nil {
		return err
	}
	return reporting.WriteFile(filepath.Join(r.collector.OutDir(), name), data)
}

func (r *Runner) extract(ctx context.Context, record *schemas.RunRecord, ins *scenario.Instruction) error {
	value := &schemas.ExtractedValue{
		Name:       ins.Name,
		Kind:       ins.ExtractKind,
		CapturedAt: time.Now().UTC(),
	}
	switch ins.ExtractKind {
	case "eval":
		var raw json.RawMessage
		if err := r.driver.Eval(ctx, ins.Expr, &raw); err != nil {
			return err
		}
		value.Value = raw
	case "text":
		text, err := r.driver.Text(ctx, ins.Locator)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(text)
		if err != nil {
			return err
		}
		value.Value = encoded
	default:
		return fmt.Errorf("unknown extract kind %q", ins.ExtractKind)
	}
	record.Extracts[ins.Name] = value
	return nil
}

// classify converts an instruction error into a run state. Timeouts are
// findings; everything else is tool breakage.
func (r *Runner) classify(record *schemas.RunRecord, ins *scenario.Instruction, err error) bool {
	var timeout *schemas.TimeoutError
	if errors.As(err, &timeout) {
		record.Status = schemas.RunFailed
		record.FailedLine = ins.Line
		record.FailureReason = err.Error()
		r.logger.Warn("Expectation not met.",
			zap.Int("line", ins.Line),
			zap.String("instruction", ins.Raw),
			zap.Error(err))
		return !r.cfg.Compare.ContinueOnFail
	}
	r.errorRun(record, ins, err)
	return true
}

func (r *Runner) errorRun(record *schemas.RunRecord, ins *scenario.Instruction, err error) {
	record.Status = schemas.RunErrored
	record.FailedLine = ins.Line
	record.FailureReason = err.Error()
	record.DriverErrors = append(record.DriverErrors, err.Error())
	r.logger.Error("Instruction errored.",
		zap.Int("line", ins.Line),
		zap.String("instruction", ins.Raw),
		zap.Error(err))
}

func jsonLiteral(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(data)
}
