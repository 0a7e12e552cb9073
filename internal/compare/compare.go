// File: internal/compare/compare.go
// Description: Structural comparison of two run records. The comparator
// reports differences; whether a difference is acceptable is decided by the
// assertion layer, never here.

package compare

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// maxElementDeltas bounds the added/removed element lists per checkpoint so
// a page rebuild does not produce an unreadable report.
const maxElementDeltas = 50

// CompareRuns diffs two completed runs checkpoint by checkpoint. Both records
// are read-only inputs; comparing the same pair twice yields the same report.
func CompareRuns(baseline, modified *schemas.RunRecord) *schemas.ComparisonReport {
	report := &schemas.ComparisonReport{
		GeneratedAt: time.Now().UTC(),
		BaseURL:     baseline.BaseURL,
		Baseline:    baseline,
		Modified:    modified,
		Checkpoints: map[string]*schemas.CheckpointDiff{},
	}

	for _, base := range baseline.Checkpoints {
		mod := modified.Checkpoint(base.Name)
		if mod == nil {
			report.MissingCheckpoints = append(report.MissingCheckpoints,
				schemas.MissingCheckpoint{Name: base.Name, InBaseline: true})
			continue
		}
		diff := diffCheckpoint(base, mod)
		report.Checkpoints[base.Name] = diff
		if diff.Changed {
			report.ChangedNames = append(report.ChangedNames, base.Name)
		} else {
			report.MatchingNames = append(report.MatchingNames, base.Name)
		}
	}
	for _, mod := range modified.Checkpoints {
		if baseline.Checkpoint(mod.Name) == nil {
			report.MissingCheckpoints = append(report.MissingCheckpoints,
				schemas.MissingCheckpoint{Name: mod.Name, InModified: true})
		}
	}

	report.Extracts = diffExtracts(baseline.Extracts, modified.Extracts)
	report.AssertionChanges = assertionChanges(baseline.Assertions, modified.Assertions)

	errs := 0
	if baseline.Status == schemas.RunErrored {
		errs++
	}
	if modified.Status == schemas.RunErrored {
		errs++
	}
	report.Summary = schemas.CompareSummary{
		CheckpointsTotal: len(report.Checkpoints) + len(report.MissingCheckpoints),
		Matching:         len(report.MatchingNames),
		Changed:          len(report.ChangedNames),
		Missing:          len(report.MissingCheckpoints),
		Errors:           errs,
	}
	return report
}

// Identical reports whether the comparison observed no differences at all.
func Identical(report *schemas.ComparisonReport) bool {
	if report.Summary.Changed > 0 || report.Summary.Missing > 0 {
		return false
	}
	for _, e := range report.Extracts {
		if !e.Same {
			return false
		}
	}
	return len(report.AssertionChanges) == 0
}

func diffCheckpoint(base, mod *schemas.EvidenceBundle) *schemas.CheckpointDiff {
	d := &schemas.CheckpointDiff{Name: base.Name}

	d.URL = fieldDiff(base.URL, mod.URL)
	d.Snapshot = diffSnapshots(base.Snapshot, mod.Snapshot)
	d.Console = setDiff(consoleLines(base.Console), consoleLines(mod.Console))
	d.JSErrors = setDiff(errorLines(base.JSErrors), errorLines(mod.JSErrors))
	d.Messages = setDiff(messageLines(base.Messages), messageLines(mod.Messages))
	d.AI = diffAIExplorer(base.AIExplorer, mod.AIExplorer)
	d.Probes = diffProbes(base.Probes, mod.Probes)

	d.Changed = !d.URL.Same || !d.Snapshot.Same || !d.Console.Same ||
		!d.JSErrors.Same || !d.Messages.Same || (d.AI != nil && !d.AI.Same)
	for _, p := range d.Probes {
		if !p.Same {
			d.Changed = true
		}
	}
	return d
}

// descriptors flattens a snapshot into normalized entries. Refs are dropped
// on purpose: node IDs renumber between runs and would diff every time.
func descriptors(snap *schemas.AXSnapshot) []schemas.ElementDescriptor {
	if snap == nil || snap.Root == nil {
		return nil
	}
	var out []schemas.ElementDescriptor
	var walk func(n *schemas.AXNode)
	walk = func(n *schemas.AXNode) {
		if n == nil {
			return
		}
		if schemas.InteractiveRoles[n.Role] {
			out = append(out, schemas.ElementDescriptor{Role: n.Role, Name: n.Name, Value: n.Value})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(snap.Root)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func descriptorLines(descs []schemas.ElementDescriptor) []string {
	lines := make([]string, len(descs))
	for i, d := range descs {
		if d.Value != "" {
			lines[i] = fmt.Sprintf("%s | %s | %s", d.Role, d.Name, d.Value)
		} else {
			lines[i] = fmt.Sprintf("%s | %s", d.Role, d.Name)
		}
	}
	return lines
}

type deltaKey struct {
	role, name string
}

func diffSnapshots(base, mod *schemas.AXSnapshot) *schemas.SnapshotDiff {
	baseDescs := descriptors(base)
	modDescs := descriptors(mod)

	diff := &schemas.SnapshotDiff{
		BaselineCount: len(baseDescs),
		ModifiedCount: len(modDescs),
	}

	counts := map[deltaKey]int{}
	for _, d := range baseDescs {
		counts[deltaKey{d.Role, d.Name}]--
	}
	for _, d := range modDescs {
		counts[deltaKey{d.Role, d.Name}]++
	}
	for key, n := range counts {
		switch {
		case n > 0:
			diff.Added = append(diff.Added, schemas.ElementDelta{Role: key.role, Name: key.name, Count: n})
		case n < 0:
			diff.Removed = append(diff.Removed, schemas.ElementDelta{Role: key.role, Name: key.name, Count: -n})
		}
	}
	sortDeltas(diff.Added)
	sortDeltas(diff.Removed)
	if len(diff.Added) > maxElementDeltas {
		diff.Added = diff.Added[:maxElementDeltas]
	}
	if len(diff.Removed) > maxElementDeltas {
		diff.Removed = diff.Removed[:maxElementDeltas]
	}

	baseLines := descriptorLines(baseDescs)
	modLines := descriptorLines(modDescs)
	diff.Same = len(diff.Added) == 0 && len(diff.Removed) == 0 && equalLines(baseLines, modLines)
	if !diff.Same {
		diff.DiffLines = unifiedDiffLines(baseLines, modLines)
	}
	return diff
}

func sortDeltas(deltas []schemas.ElementDelta) {
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].Role != deltas[j].Role {
			return deltas[i].Role < deltas[j].Role
		}
		return deltas[i].Name < deltas[j].Name
	})
}

// setDiff compares two observations as sorted multisets of normalized lines.
func setDiff(base, mod []string) *schemas.FieldDiff {
	sort.Strings(base)
	sort.Strings(mod)
	diff := &schemas.FieldDiff{
		Same:     equalLines(base, mod),
		Baseline: strings.Join(base, "\n"),
		Modified: strings.Join(mod, "\n"),
	}
	if !diff.Same {
		diff.DiffLines = unifiedDiffLines(base, mod)
	}
	return diff
}

func fieldDiff(base, mod string) *schemas.FieldDiff {
	return &schemas.FieldDiff{
		Same:     base == mod,
		Baseline: base,
		Modified: mod,
	}
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func consoleLines(msgs []schemas.ConsoleMessage) []string {
	var lines []string
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Level, strings.TrimSpace(m.Text)))
	}
	return lines
}

func errorLines(errs []schemas.RuntimeError) []string {
	var lines []string
	for _, e := range errs {
		lines = append(lines, strings.TrimSpace(e.Text))
	}
	return lines
}

func messageLines(msgs []schemas.StatusMessage) []string {
	var lines []string
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, strings.TrimSpace(m.Text)))
	}
	return lines
}

// diffAIExplorer compares the extraction texts. Nil on both sides means the
// checkpoint never had AI evidence and the section is omitted.
func diffAIExplorer(base, mod *schemas.AIExplorerExtract) *schemas.FieldDiff {
	if base == nil && mod == nil {
		return nil
	}
	if base == nil {
		base = &schemas.AIExplorerExtract{}
	}
	if mod == nil {
		mod = &schemas.AIExplorerExtract{}
	}

	diff := &schemas.FieldDiff{
		Same: base.FinalAnswer == mod.FinalAnswer &&
			base.ToolPayload == mod.ToolPayload &&
			equalLines(base.PreTexts, mod.PreTexts),
		Baseline: base.FinalAnswer,
		Modified: mod.FinalAnswer,
	}
	if diff.Same {
		return diff
	}
	if base.FinalAnswer != mod.FinalAnswer {
		diff.DiffLines = append(diff.DiffLines,
			unifiedDiffLines(strings.Split(base.FinalAnswer, "\n"), strings.Split(mod.FinalAnswer, "\n"))...)
	}
	if base.ToolPayload != mod.ToolPayload {
		diff.DiffLines = append(diff.DiffLines, "tool payload:")
		diff.DiffLines = append(diff.DiffLines,
			unifiedDiffLines(strings.Split(base.ToolPayload, "\n"), strings.Split(mod.ToolPayload, "\n"))...)
	}
	if !equalLines(base.PreTexts, mod.PreTexts) {
		diff.DiffLines = append(diff.DiffLines,
			fmt.Sprintf("message blocks: %d -> %d", len(base.PreTexts), len(mod.PreTexts)))
	}
	return diff
}

// diffProbes compares probe results positionally; probes are configured, so
// index i means the same command in both runs.
func diffProbes(base, mod []schemas.ProbeResult) []schemas.ProbeDiff {
	var diffs []schemas.ProbeDiff
	n := len(base)
	if len(mod) > n {
		n = len(mod)
	}
	for i := 0; i < n; i++ {
		d := schemas.ProbeDiff{Index: i}
		switch {
		case i >= len(base):
			d.Missing = "baseline"
		case i >= len(mod):
			d.Missing = "modified"
		default:
			d.ExitCodes = [2]int{base[i].ExitCode, mod[i].ExitCode}
			d.Same = base[i].ExitCode == mod[i].ExitCode &&
				base[i].Stdout == mod[i].Stdout &&
				base[i].Stderr == mod[i].Stderr
			if base[i].Stdout != mod[i].Stdout {
				d.StdoutDiff = unifiedDiffLines(
					strings.Split(base[i].Stdout, "\n"), strings.Split(mod[i].Stdout, "\n"))
			}
			if base[i].Stderr != mod[i].Stderr {
				d.StderrDiff = unifiedDiffLines(
					strings.Split(base[i].Stderr, "\n"), strings.Split(mod[i].Stderr, "\n"))
			}
		}
		diffs = append(diffs, d)
	}
	return diffs
}

// diffExtracts compares the named extracted values of both runs. Capture
// timestamps always differ and are not part of the comparison.
func diffExtracts(base, mod map[string]*schemas.ExtractedValue) []schemas.ExtractDiff {
	names := map[string]bool{}
	for name := range base {
		names[name] = true
	}
	for name := range mod {
		names[name] = true
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var out []schemas.ExtractDiff
	for _, name := range ordered {
		b, bok := base[name]
		m, mok := mod[name]
		d := schemas.ExtractDiff{Name: name}
		switch {
		case !bok:
			d.Diff = "only in modified run"
		case !mok:
			d.Diff = "only in baseline run"
		case string(b.Value) == string(m.Value) && b.Kind == m.Kind:
			d.Same = true
		default:
			d.Diff = fmt.Sprintf("baseline: %s\nmodified: %s", b.Value, m.Value)
		}
		out = append(out, d)
	}
	return out
}

// assertionChanges pairs assertion results by ID and reports pass/fail flips.
func assertionChanges(base, mod []schemas.AssertionResult) []schemas.AssertionChange {
	baseByID := map[string]schemas.AssertionResult{}
	for _, r := range base {
		baseByID[r.ID] = r
	}
	var out []schemas.AssertionChange
	for _, m := range mod {
		b, ok := baseByID[m.ID]
		if !ok || b.Passed == m.Passed {
			continue
		}
		out = append(out, schemas.AssertionChange{
			ID:             m.ID,
			BaselinePassed: b.Passed,
			ModifiedPassed: m.Passed,
		})
	}
	return out
}

func unifiedDiffLines(a, b []string) []string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(a),
		B:        withNewlines(b),
		FromFile: "baseline",
		ToFile:   "modified",
		Context:  3,
	})
	if err != nil || text == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line + "\n"
	}
	return out
}
