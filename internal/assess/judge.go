// File: internal/assess/judge.go
// Description: Verdict computation. ERROR outranks FAIL outranks PASS, and a
// warn-severity failure never blocks a PASS.

package assess

import (
	"time"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// JudgeReport is the verdict artifact written next to the run record.
type JudgeReport struct {
	Verdict     schemas.Verdict           `json:"verdict"`
	Run         string                    `json:"run"`
	JudgedAt    time.Time                 `json:"judged_at"`
	Results     []schemas.AssertionResult `json:"results"`
	Passed      int                       `json:"passed"`
	Failed      int                       `json:"failed"`
	Warned      int                       `json:"warned"`
	Errored     int                       `json:"errored"`
	RunStatus   schemas.RunStatus         `json:"run_status"`
	RunFailure  string                    `json:"run_failure,omitempty"`
	ReadyToShip bool                      `json:"ready_to_submit"`
}

// Judge evaluates the manifest's assertions and guards against a run,
// appends the run's own inline assertion results, and derives the verdict.
func Judge(assertions, guards []*schemas.AssertionSpec, run *schemas.RunRecord) *JudgeReport {
	report := &JudgeReport{
		Run:       run.Session,
		JudgedAt:  time.Now().UTC(),
		RunStatus: run.Status,
	}

	for _, spec := range assertions {
		report.Results = append(report.Results, Evaluate(spec, run))
	}
	for _, spec := range guards {
		report.Results = append(report.Results, Evaluate(spec, run))
	}
	report.Results = append(report.Results, run.Assertions...)

	for _, r := range report.Results {
		switch {
		case r.Errored:
			report.Errored++
		case r.Passed:
			report.Passed++
		case r.Severity == schemas.SeverityWarn:
			report.Warned++
		default:
			report.Failed++
		}
	}

	report.Verdict = verdict(report, run)
	report.ReadyToShip = report.Verdict == schemas.VerdictPass
	if run.FailureReason != "" {
		report.RunFailure = run.FailureReason
	}
	return report
}

func verdict(report *JudgeReport, run *schemas.RunRecord) schemas.Verdict {
	if report.Errored > 0 || run.Status == schemas.RunErrored {
		return schemas.VerdictError
	}
	if report.Failed > 0 || run.Status == schemas.RunFailed {
		return schemas.VerdictFail
	}
	return schemas.VerdictPass
}
