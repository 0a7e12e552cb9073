// File: internal/assess/assess_test.go
package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

func runWithCheckpoints(bundles ...*schemas.EvidenceBundle) *schemas.RunRecord {
	run := &schemas.RunRecord{Status: schemas.RunCompleted}
	for _, b := range bundles {
		if err := run.AddCheckpoint(b); err != nil {
			panic(err)
		}
	}
	return run
}

func aiBundle(name, finalAnswer, toolPayload string) *schemas.EvidenceBundle {
	return &schemas.EvidenceBundle{
		Name: name,
		AIExplorer: &schemas.AIExplorerExtract{
			FinalAnswer: finalAnswer,
			ToolPayload: toolPayload,
		},
	}
}

func TestEvaluateTextPresent(t *testing.T) {
	run := runWithCheckpoints(aiBundle("done", "The hero component was updated.", ""))

	spec := &schemas.AssertionSpec{
		ID:       "mentions-hero",
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{`hero\s+component`},
	}
	res := Evaluate(spec, run)
	assert.True(t, res.Passed)
	assert.False(t, res.Errored)
	assert.Contains(t, res.Observed, "hero")
}

func TestEvaluateTextPresentEmptyScopeFails(t *testing.T) {
	run := runWithCheckpoints(&schemas.EvidenceBundle{Name: "bare"})

	present := Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"anything"},
	}, run)
	assert.False(t, present.Passed)
	assert.False(t, present.Errored)

	absent := Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertTextAbsent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"anything"},
	}, run)
	assert.True(t, absent.Passed, "nothing captured means nothing leaked")
}

func TestEvaluateTextUnknownScopeErrors(t *testing.T) {
	run := runWithCheckpoints(aiBundle("cp", "sk-live leaked", ""))

	// A typo'd scope must not turn text_absent into a free pass.
	res := Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertTextAbsent,
		Scope:    "page",
		Patterns: []string{"sk-live"},
	}, run)
	assert.True(t, res.Errored)
	assert.Contains(t, res.Observed, `unknown assertion scope "page"`)
}

func TestEvaluateTextInvalidPatternFallsBackToLiteral(t *testing.T) {
	run := runWithCheckpoints(aiBundle("cp", "raw value [secret( here", ""))

	res := Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertTextAbsent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"[secret("},
	}, run)
	assert.False(t, res.Passed, "unparseable pattern still matches as a substring")
}

func TestEvaluateAgainstNamedCheckpoint(t *testing.T) {
	run := runWithCheckpoints(
		aiBundle("first", "alpha", ""),
		aiBundle("second", "beta", ""),
	)

	res := Evaluate(&schemas.AssertionSpec{
		Type:       schemas.AssertTextPresent,
		Checkpoint: "first",
		Scope:      schemas.ScopeFinalAnswer,
		Patterns:   []string{"alpha"},
	}, run)
	assert.True(t, res.Passed)

	// Empty checkpoint means the most recent one.
	res = Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"beta"},
	}, run)
	assert.True(t, res.Passed)
}

func TestEvaluateMissingCheckpointErrors(t *testing.T) {
	run := runWithCheckpoints(aiBundle("only", "x", ""))

	res := Evaluate(&schemas.AssertionSpec{
		Type:       schemas.AssertTextPresent,
		Checkpoint: "nope",
		Patterns:   []string{"x"},
	}, run)
	assert.True(t, res.Errored)
	assert.Equal(t, "checkpoint not found", res.Observed)
}

func TestEvaluateValueEquals(t *testing.T) {
	payload := "operations:\n  - op: update\n    component: hero\n    weight: 3\n"
	run := runWithCheckpoints(aiBundle("cp", "", payload))

	tests := []struct {
		name     string
		path     string
		expected any
		passed   bool
	}{
		{"string match", "operations[0].component", "hero", true},
		{"int match", "operations[0].weight", 3, true},
		{"numeric coercion", "operations[0].weight", 3.0, true},
		{"mismatch", "operations[0].op", "delete", false},
		{"missing path", "operations[0].missing", "x", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Evaluate(&schemas.AssertionSpec{
				Type:     schemas.AssertValueEquals,
				Path:     tc.path,
				Expected: tc.expected,
			}, run)
			assert.False(t, res.Errored)
			assert.Equal(t, tc.passed, res.Passed)
		})
	}
}

func TestEvaluateValueEqualsWithoutPayloadErrors(t *testing.T) {
	run := runWithCheckpoints(&schemas.EvidenceBundle{Name: "cp"})
	res := Evaluate(&schemas.AssertionSpec{
		Type: schemas.AssertValueEquals,
		Path: "a.b",
	}, run)
	assert.True(t, res.Errored)
}

func TestEvaluateNoConsoleErrors(t *testing.T) {
	clean := runWithCheckpoints(&schemas.EvidenceBundle{Name: "cp"})
	res := Evaluate(&schemas.AssertionSpec{Type: schemas.AssertNoConsoleErrors}, clean)
	assert.True(t, res.Passed)

	dirty := runWithCheckpoints(&schemas.EvidenceBundle{
		Name:     "cp",
		JSErrors: []schemas.RuntimeError{{Text: "TypeError: boom"}},
	})
	res = Evaluate(&schemas.AssertionSpec{Type: schemas.AssertNoConsoleErrors}, dirty)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Observed, "1")
}

func TestEvaluateNoPageMessagesDefaultsToAlert(t *testing.T) {
	run := runWithCheckpoints(&schemas.EvidenceBundle{
		Name: "cp",
		Messages: []schemas.StatusMessage{
			{Role: schemas.MessageStatus, Text: "Saved."},
			{Role: schemas.MessageAlert, Text: "Access denied."},
		},
	})

	res := Evaluate(&schemas.AssertionSpec{Type: schemas.AssertNoPageMessages}, run)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Observed, "Access denied.")

	res = Evaluate(&schemas.AssertionSpec{
		Type:  schemas.AssertNoPageMessages,
		Level: schemas.MessageStatus,
	}, run)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Observed, "Saved.")
}

func TestEvaluateURLContains(t *testing.T) {
	run := runWithCheckpoints(&schemas.EvidenceBundle{
		Name: "cp",
		URL:  "https://example.test/node/42/edit",
	})

	res := Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertURLContains,
		Contains: "/node/42",
	}, run)
	assert.True(t, res.Passed)

	res = Evaluate(&schemas.AssertionSpec{
		Type:     schemas.AssertURLContains,
		Contains: "/admin",
	}, run)
	assert.False(t, res.Passed)
	assert.Equal(t, "https://example.test/node/42/edit", res.Observed)
}

func TestEvaluateUnknownTypeErrors(t *testing.T) {
	run := runWithCheckpoints(&schemas.EvidenceBundle{Name: "cp"})
	res := Evaluate(&schemas.AssertionSpec{Type: "made_up"}, run)
	assert.True(t, res.Errored)
}

func TestGetByPath(t *testing.T) {
	doc := map[string]any{
		"operations": []any{
			map[string]any{"op": "update", "tags": []any{"a", "b"}},
		},
		"meta": map[string]any{"version": 2},
	}

	assert.Equal(t, "update", GetByPath(doc, "operations[0].op"))
	assert.Equal(t, "b", GetByPath(doc, "operations[0].tags[1]"))
	assert.Equal(t, 2, GetByPath(doc, "meta.version"))
	assert.Nil(t, GetByPath(doc, "operations[5].op"))
	assert.Nil(t, GetByPath(doc, "meta.version.deeper"))
	assert.Nil(t, GetByPath(doc, "operations[x]"))
}

func TestJudgeVerdictPrecedence(t *testing.T) {
	run := runWithCheckpoints(aiBundle("cp", "all good", ""))

	pass := Judge([]*schemas.AssertionSpec{{
		ID:       "ok",
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"good"},
	}}, nil, run)
	assert.Equal(t, schemas.VerdictPass, pass.Verdict)
	assert.True(t, pass.ReadyToShip)
	assert.Equal(t, 0, pass.Verdict.ExitCode())

	fail := Judge([]*schemas.AssertionSpec{{
		ID:       "nope",
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"missing"},
	}}, nil, run)
	assert.Equal(t, schemas.VerdictFail, fail.Verdict)
	assert.Equal(t, 1, fail.Verdict.ExitCode())

	errored := Judge([]*schemas.AssertionSpec{{
		ID:         "broken",
		Type:       schemas.AssertTextPresent,
		Checkpoint: "absent-checkpoint",
		Patterns:   []string{"x"},
	}, {
		ID:       "also-failing",
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{"missing"},
	}}, nil, run)
	assert.Equal(t, schemas.VerdictError, errored.Verdict, "ERROR outranks FAIL")
	assert.Equal(t, 2, errored.Verdict.ExitCode())
}

func TestJudgeWarnSeverityDoesNotBlockPass(t *testing.T) {
	run := runWithCheckpoints(aiBundle("cp", "clean", ""))

	report := Judge([]*schemas.AssertionSpec{{
		ID:       "advisory",
		Type:     schemas.AssertTextPresent,
		Scope:    schemas.ScopeFinalAnswer,
		Severity: schemas.SeverityWarn,
		Patterns: []string{"missing"},
	}}, nil, run)
	assert.Equal(t, schemas.VerdictPass, report.Verdict)
	assert.Equal(t, 1, report.Warned)
	assert.Equal(t, 0, report.Failed)
}

func TestJudgeFoldsInRunAssertions(t *testing.T) {
	run := runWithCheckpoints(aiBundle("cp", "clean", ""))
	run.Assertions = []schemas.AssertionResult{{
		ID:       "inline-check",
		Type:     string(schemas.AssertURLContains),
		Severity: schemas.SeverityFail,
		Passed:   false,
	}}

	report := Judge(nil, nil, run)
	assert.Equal(t, schemas.VerdictFail, report.Verdict)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "inline-check", report.Results[0].ID)
}

func TestJudgeRunStatusDrivesVerdict(t *testing.T) {
	failed := runWithCheckpoints(aiBundle("cp", "x", ""))
	failed.Status = schemas.RunFailed
	failed.FailureReason = "wait --text timed out"
	report := Judge(nil, nil, failed)
	assert.Equal(t, schemas.VerdictFail, report.Verdict)
	assert.Equal(t, "wait --text timed out", report.RunFailure)

	errored := runWithCheckpoints(aiBundle("cp", "x", ""))
	errored.Status = schemas.RunErrored
	assert.Equal(t, schemas.VerdictError, Judge(nil, nil, errored).Verdict)
}

func TestJudgeGuardsEvaluated(t *testing.T) {
	run := runWithCheckpoints(aiBundle("cp", "token sk-abc123", ""))

	report := Judge(nil, []*schemas.AssertionSpec{{
		ID:       "no-secret-leak",
		Type:     schemas.AssertTextAbsent,
		Scope:    schemas.ScopeFinalAnswer,
		Patterns: []string{`sk-[a-z0-9]+`},
	}}, run)
	assert.Equal(t, schemas.VerdictFail, report.Verdict)
}
