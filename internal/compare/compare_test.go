// File: internal/compare/compare_test.go
package compare

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
)

func snapshotWith(elements ...schemas.AXNode) *schemas.AXSnapshot {
	root := &schemas.AXNode{Role: "RootWebArea"}
	for i := range elements {
		root.Children = append(root.Children, &elements[i])
	}
	return &schemas.AXSnapshot{Root: root}
}

func runWith(session string, bundles ...*schemas.EvidenceBundle) *schemas.RunRecord {
	run := &schemas.RunRecord{Session: session, Status: schemas.RunCompleted}
	for _, b := range bundles {
		if err := run.AddCheckpoint(b); err != nil {
			panic(err)
		}
	}
	return run
}

func TestCompareRunsIdentical(t *testing.T) {
	mk := func(session string) *schemas.RunRecord {
		return runWith(session, &schemas.EvidenceBundle{
			Name:     "cp",
			URL:      "https://site.test/node/1",
			Snapshot: snapshotWith(schemas.AXNode{Role: "button", Name: "Save"}),
			Console:  []schemas.ConsoleMessage{{Level: "log", Text: "ready"}},
		})
	}

	report := CompareRuns(mk("baseline"), mk("modified"))
	assert.True(t, Identical(report))
	assert.Equal(t, 0, report.Summary.Changed)
	assert.Equal(t, 1, report.Summary.Matching)
	require.Contains(t, report.Checkpoints, "cp")
	assert.False(t, report.Checkpoints["cp"].Changed)
}

func TestCompareRunsIsIdempotent(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{
		Name:     "cp",
		Snapshot: snapshotWith(schemas.AXNode{Role: "button", Name: "Save"}),
	})
	mod := runWith("modified", &schemas.EvidenceBundle{
		Name:     "cp",
		Snapshot: snapshotWith(schemas.AXNode{Role: "button", Name: "Delete"}),
	})

	first := CompareRuns(base, mod)
	second := CompareRuns(base, mod)
	diff := cmp.Diff(first, second,
		cmpopts.IgnoreFields(schemas.ComparisonReport{}, "GeneratedAt"))
	assert.Empty(t, diff, "comparing twice must observe the same differences")
}

func TestCompareRunsElementDiff(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{
		Name: "cp",
		Snapshot: snapshotWith(
			schemas.AXNode{Role: "button", Name: "Save"},
			schemas.AXNode{Role: "link", Name: "Home"},
			schemas.AXNode{Role: "link", Name: "Home"},
		),
	})
	mod := runWith("modified", &schemas.EvidenceBundle{
		Name: "cp",
		Snapshot: snapshotWith(
			schemas.AXNode{Role: "button", Name: "Save"},
			schemas.AXNode{Role: "link", Name: "Home"},
			schemas.AXNode{Role: "button", Name: "Preview"},
		),
	})

	report := CompareRuns(base, mod)
	require.Contains(t, report.Checkpoints, "cp")
	snap := report.Checkpoints["cp"].Snapshot
	require.NotNil(t, snap)
	assert.False(t, snap.Same)
	assert.Equal(t, []schemas.ElementDelta{{Role: "button", Name: "Preview", Count: 1}}, snap.Added)
	assert.Equal(t, []schemas.ElementDelta{{Role: "link", Name: "Home", Count: 1}}, snap.Removed,
		"duplicate occurrences diff by count")
	assert.Equal(t, 3, snap.BaselineCount)
	assert.Equal(t, 3, snap.ModifiedCount)
	assert.Contains(t, snap.DiffLines, "+button | Preview")
	assert.Equal(t, []string{"cp"}, report.ChangedNames)
}

func TestCompareRunsMissingCheckpoints(t *testing.T) {
	base := runWith("baseline",
		&schemas.EvidenceBundle{Name: "shared"},
		&schemas.EvidenceBundle{Name: "only_base"},
	)
	mod := runWith("modified",
		&schemas.EvidenceBundle{Name: "shared"},
		&schemas.EvidenceBundle{Name: "only_mod"},
	)

	report := CompareRuns(base, mod)
	assert.False(t, Identical(report))
	assert.ElementsMatch(t, []schemas.MissingCheckpoint{
		{Name: "only_base", InBaseline: true},
		{Name: "only_mod", InModified: true},
	}, report.MissingCheckpoints)
	assert.Equal(t, 3, report.Summary.CheckpointsTotal)
	assert.Equal(t, 2, report.Summary.Missing)
}

func TestCompareRunsConsoleAndMessages(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{
		Name:    "cp",
		Console: []schemas.ConsoleMessage{{Level: "log", Text: "boot"}},
		Messages: []schemas.StatusMessage{
			{Role: schemas.MessageStatus, Text: "Saved."},
		},
	})
	mod := runWith("modified", &schemas.EvidenceBundle{
		Name: "cp",
		Console: []schemas.ConsoleMessage{
			{Level: "log", Text: "boot"},
			{Level: "error", Text: "fetch failed"},
		},
		Messages: []schemas.StatusMessage{
			{Role: schemas.MessageAlert, Text: "Access denied."},
		},
	})

	report := CompareRuns(base, mod)
	cp := report.Checkpoints["cp"]
	require.NotNil(t, cp)
	assert.True(t, cp.Changed)
	assert.False(t, cp.Console.Same)
	assert.Contains(t, cp.Console.DiffLines, "+error: fetch failed")
	assert.False(t, cp.Messages.Same)
	assert.Contains(t, cp.Messages.DiffLines, "+alert: Access denied.")
	assert.Contains(t, cp.Messages.DiffLines, "-status: Saved.")
}

func TestCompareRunsAIExplorer(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{
		Name:       "cp",
		AIExplorer: &schemas.AIExplorerExtract{FinalAnswer: "Done.", ToolPayload: "operations: []"},
	})
	mod := runWith("modified", &schemas.EvidenceBundle{
		Name:       "cp",
		AIExplorer: &schemas.AIExplorerExtract{FinalAnswer: "Done differently.", ToolPayload: "operations: []"},
	})

	report := CompareRuns(base, mod)
	cp := report.Checkpoints["cp"]
	require.NotNil(t, cp.AI)
	assert.False(t, cp.AI.Same)
	assert.Contains(t, cp.AI.DiffLines, "-Done.")
	assert.Contains(t, cp.AI.DiffLines, "+Done differently.")
	assert.True(t, cp.Changed)
}

func TestCompareRunsAIExplorerAbsentOnBothSides(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{Name: "cp"})
	mod := runWith("modified", &schemas.EvidenceBundle{Name: "cp"})

	report := CompareRuns(base, mod)
	assert.Nil(t, report.Checkpoints["cp"].AI)
	assert.True(t, Identical(report))
}

func TestCompareRunsProbes(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{
		Name:   "cp",
		Probes: []schemas.ProbeResult{{Command: "drush status", ExitCode: 0, Stdout: "ok"}},
	})
	mod := runWith("modified", &schemas.EvidenceBundle{
		Name:   "cp",
		Probes: []schemas.ProbeResult{{Command: "drush status", ExitCode: 1, Stdout: "ok"}},
	})

	report := CompareRuns(base, mod)
	cp := report.Checkpoints["cp"]
	require.Len(t, cp.Probes, 1)
	assert.False(t, cp.Probes[0].Same)
	assert.Equal(t, [2]int{0, 1}, cp.Probes[0].ExitCodes)
	assert.True(t, cp.Changed)
}

func TestCompareRunsExtracts(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{Name: "cp"})
	base.Extracts = map[string]*schemas.ExtractedValue{
		"title": {Name: "title", Kind: "text", Value: json.RawMessage(`"Old title"`), CapturedAt: time.Now()},
	}
	mod := runWith("modified", &schemas.EvidenceBundle{Name: "cp"})
	mod.Extracts = map[string]*schemas.ExtractedValue{
		"title": {Name: "title", Kind: "text", Value: json.RawMessage(`"New title"`), CapturedAt: time.Now().Add(time.Minute)},
	}

	report := CompareRuns(base, mod)
	require.Len(t, report.Extracts, 1)
	assert.False(t, report.Extracts[0].Same)
	assert.False(t, Identical(report))

	// Capture times always differ between runs and must not count.
	mod.Extracts["title"].Value = json.RawMessage(`"Old title"`)
	report = CompareRuns(base, mod)
	require.Len(t, report.Extracts, 1)
	assert.True(t, report.Extracts[0].Same)
	assert.True(t, Identical(report))
}

func TestCompareRunsAssertionChanges(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{Name: "cp"})
	base.Assertions = []schemas.AssertionResult{
		{ID: "check-a", Passed: true},
		{ID: "check-b", Passed: true},
	}
	mod := runWith("modified", &schemas.EvidenceBundle{Name: "cp"})
	mod.Assertions = []schemas.AssertionResult{
		{ID: "check-a", Passed: false},
		{ID: "check-b", Passed: true},
	}

	report := CompareRuns(base, mod)
	require.Len(t, report.AssertionChanges, 1)
	assert.Equal(t, "check-a", report.AssertionChanges[0].ID)
	assert.True(t, report.AssertionChanges[0].BaselinePassed)
	assert.False(t, report.AssertionChanges[0].ModifiedPassed)
	assert.False(t, Identical(report))
}

func TestExecuteRunsHooksInOrder(t *testing.T) {
	var sessions []string
	run := func(ctx context.Context, session string) (*schemas.RunRecord, error) {
		sessions = append(sessions, session)
		return runWith(session, &schemas.EvidenceBundle{Name: "cp"}), nil
	}

	cfg := config.CompareConfig{
		BeforeCmd:  "echo before",
		BetweenCmd: "echo between",
		AfterCmd:   "echo after",
	}
	report, err := Execute(context.Background(), cfg, 10*time.Second, run, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"baseline", "modified"}, sessions)
	assert.True(t, Identical(report))
	require.Contains(t, report.Shell, "between")
	assert.Equal(t, 0, report.Shell["between"].ExitCode)
	assert.Contains(t, report.Shell, "after")
}

func TestExecuteRecordsFailingHook(t *testing.T) {
	run := func(ctx context.Context, session string) (*schemas.RunRecord, error) {
		return runWith(session, &schemas.EvidenceBundle{Name: "cp"}), nil
	}

	cfg := config.CompareConfig{BetweenCmd: "sh -c 'exit 9'"}
	report, err := Execute(context.Background(), cfg, 10*time.Second, run, zap.NewNop())
	require.NoError(t, err, "a failing hook is evidence, not an abort")
	require.Contains(t, report.Shell, "between")
	assert.Equal(t, 9, report.Shell["between"].ExitCode)
}

func TestRenderMarkdown(t *testing.T) {
	base := runWith("baseline", &schemas.EvidenceBundle{
		Name:     "after_save",
		Snapshot: snapshotWith(schemas.AXNode{Role: "button", Name: "Save"}),
	})
	mod := runWith("modified", &schemas.EvidenceBundle{
		Name:     "after_save",
		Snapshot: snapshotWith(schemas.AXNode{Role: "button", Name: "Publish"}),
	})

	report := CompareRuns(base, mod)
	text := RenderMarkdown(report)

	assert.Contains(t, text, "# Comparison Report")
	assert.Contains(t, text, "## Checkpoint `after_save`")
	assert.Contains(t, text, `Added: button "Publish"`)
	assert.Contains(t, text, `Removed: button "Save"`)
	assert.Contains(t, text, "differences observed")
}
