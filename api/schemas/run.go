package schemas

import (
	"fmt"
	"time"
)

// -- Run Record Schemas --

// RunStatus is the terminal (or in-flight) state of one scenario run.
//
// FAILED means an expectation was not met: that is the finding, and the run
// is not retried. ERRORED means the tooling itself broke: the run may be
// retried up to the configured count.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunErrored   RunStatus = "errored"
)

// Severity controls whether a failed assertion blocks an overall PASS.
type Severity string

const (
	SeverityFail Severity = "fail"
	SeverityWarn Severity = "warn"
)

// AssertionResult is the outcome of one evaluated assertion. A false Passed
// is a recorded finding, never an abort.
type AssertionResult struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Severity   Severity `json:"severity"`
	Passed     bool     `json:"passed"`
	Expected   string   `json:"expected,omitempty"`
	Observed   string   `json:"observed,omitempty"`
	Checkpoint string   `json:"checkpoint,omitempty"`
	// Errored marks an assertion that could not be evaluated at all
	// (e.g. its checkpoint does not exist).
	Errored bool `json:"errored,omitempty"`
}

// RunRecord accumulates everything observed during one scenario run or one
// fuzz session. It is owned exclusively by the run that produced it.
type RunRecord struct {
	ID          string    `json:"id"`
	Session     string    `json:"session"`
	BaseURL     string    `json:"base_url"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Status      RunStatus `json:"status"`

	Checkpoints []*EvidenceBundle          `json:"checkpoints"`
	Assertions  []AssertionResult          `json:"assertions"`
	Extracts    map[string]*ExtractedValue `json:"extracts,omitempty"`
	Probes      map[string]*ProbeResult    `json:"probes,omitempty"`

	DriverErrors []string `json:"driver_errors,omitempty"`
	// FailedLine is the scenario line of the instruction that converted the
	// run to FAILED or ERRORED, for diagnosis without rerunning.
	FailedLine    int    `json:"failed_line,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// AddCheckpoint appends a bundle, rejecting duplicate checkpoint names.
// Silent overwrites would collide on disk, so a duplicate is a usage error
// surfaced in the run status rather than ignored.
func (r *RunRecord) AddCheckpoint(b *EvidenceBundle) error {
	for _, existing := range r.Checkpoints {
		if existing.Name == b.Name {
			return fmt.Errorf("duplicate checkpoint name %q", b.Name)
		}
	}
	r.Checkpoints = append(r.Checkpoints, b)
	return nil
}

// Checkpoint returns the named bundle, or nil when absent.
func (r *RunRecord) Checkpoint(name string) *EvidenceBundle {
	for _, b := range r.Checkpoints {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// LastCheckpoint returns the most recent bundle, or nil when none exist.
func (r *RunRecord) LastCheckpoint() *EvidenceBundle {
	if len(r.Checkpoints) == 0 {
		return nil
	}
	return r.Checkpoints[len(r.Checkpoints)-1]
}

// Elapsed is the wall-clock duration of the run.
func (r *RunRecord) Elapsed() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Verdict maps the run's status and assertion results to a process verdict.
type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictFail  Verdict = "FAIL"
	VerdictError Verdict = "ERROR"
)

// ExitCode maps a verdict to the process exit code contract:
// 0 PASS, 1 FAIL (a meaningful finding), 2 ERROR (tooling broke).
func (v Verdict) ExitCode() int {
	switch v {
	case VerdictPass:
		return 0
	case VerdictFail:
		return 1
	default:
		return 2
	}
}
