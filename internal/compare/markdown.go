// File: internal/compare/markdown.go
// Description: Human-readable rendering of a comparison report.

package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
)

// WriteMarkdown renders the report and writes it to path.
func WriteMarkdown(report *schemas.ComparisonReport, path string) error {
	return reporting.WriteFile(path, []byte(RenderMarkdown(report)))
}

// RenderMarkdown produces the markdown text of a comparison report.
func RenderMarkdown(report *schemas.ComparisonReport) string {
	var b strings.Builder

	b.WriteString("# Comparison Report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Site: %s\n", report.BaseURL)
	if report.Baseline != nil {
		fmt.Fprintf(&b, "- Baseline: %s (%s)\n", report.Baseline.Session, report.Baseline.Status)
	}
	if report.Modified != nil {
		fmt.Fprintf(&b, "- Modified: %s (%s)\n", report.Modified.Session, report.Modified.Status)
	}
	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "- Checkpoints: %d\n", report.Summary.CheckpointsTotal)
	fmt.Fprintf(&b, "- Matching: %d\n", report.Summary.Matching)
	fmt.Fprintf(&b, "- Changed: %d\n", report.Summary.Changed)
	fmt.Fprintf(&b, "- Missing: %d\n", report.Summary.Missing)
	if Identical(report) {
		b.WriteString("- Result: no differences observed\n")
	} else {
		b.WriteString("- Result: differences observed\n")
	}
	b.WriteString("\n")

	if len(report.Shell) > 0 {
		b.WriteString("## Shell Hooks\n\n")
		for _, name := range []string{"before", "between", "after"} {
			result, ok := report.Shell[name]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: `%s` (exit %d)\n", name, result.Command, result.ExitCode)
		}
		b.WriteString("\n")
	}

	if len(report.MissingCheckpoints) > 0 {
		b.WriteString("## Missing Checkpoints\n\n")
		for _, m := range report.MissingCheckpoints {
			side := "baseline"
			if m.InBaseline {
				side = "modified"
			}
			fmt.Fprintf(&b, "- `%s` missing from the %s run\n", m.Name, side)
		}
		b.WriteString("\n")
	}

	for _, name := range sortedChanged(report) {
		renderCheckpoint(&b, report.Checkpoints[name])
	}

	extractsChanged := false
	for _, e := range report.Extracts {
		if !e.Same {
			extractsChanged = true
			break
		}
	}
	if extractsChanged {
		b.WriteString("## Extracted Values\n\n")
		for _, e := range report.Extracts {
			if e.Same {
				continue
			}
			fmt.Fprintf(&b, "### `%s`\n\n```\n%s\n```\n\n", e.Name, e.Diff)
		}
	}

	if len(report.AssertionChanges) > 0 {
		b.WriteString("## Assertion Changes\n\n")
		for _, a := range report.AssertionChanges {
			fmt.Fprintf(&b, "- `%s`: passed %v -> %v\n", a.ID, a.BaselinePassed, a.ModifiedPassed)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func sortedChanged(report *schemas.ComparisonReport) []string {
	names := append([]string(nil), report.ChangedNames...)
	sort.Strings(names)
	return names
}

func renderCheckpoint(b *strings.Builder, cp *schemas.CheckpointDiff) {
	if cp == nil {
		return
	}
	fmt.Fprintf(b, "## Checkpoint `%s`\n\n", cp.Name)

	if cp.URL != nil && !cp.URL.Same {
		fmt.Fprintf(b, "- URL: `%s` -> `%s`\n", cp.URL.Baseline, cp.URL.Modified)
	}
	if cp.Snapshot != nil && !cp.Snapshot.Same {
		for _, e := range cp.Snapshot.Added {
			fmt.Fprintf(b, "- Added: %s %q (x%d)\n", e.Role, e.Name, e.Count)
		}
		for _, e := range cp.Snapshot.Removed {
			fmt.Fprintf(b, "- Removed: %s %q (x%d)\n", e.Role, e.Name, e.Count)
		}
	}
	renderFieldLines(b, "Console", cp.Console)
	renderFieldLines(b, "JS errors", cp.JSErrors)
	renderFieldLines(b, "Messages", cp.Messages)
	for _, p := range cp.Probes {
		if p.Same {
			continue
		}
		if p.Missing != "" {
			fmt.Fprintf(b, "- Probe %d missing from the %s run\n", p.Index+1, p.Missing)
			continue
		}
		fmt.Fprintf(b, "- Probe %d exit codes: %d -> %d\n", p.Index+1, p.ExitCodes[0], p.ExitCodes[1])
	}
	b.WriteString("\n")

	if cp.AI != nil && !cp.AI.Same && len(cp.AI.DiffLines) > 0 {
		b.WriteString("### AI Explorer\n\n```diff\n")
		b.WriteString(strings.Join(cp.AI.DiffLines, "\n"))
		b.WriteString("\n```\n\n")
	}
	if cp.Snapshot != nil && len(cp.Snapshot.DiffLines) > 0 {
		b.WriteString("### Element Diff\n\n```diff\n")
		b.WriteString(strings.Join(cp.Snapshot.DiffLines, "\n"))
		b.WriteString("\n```\n\n")
	}
}

func renderFieldLines(b *strings.Builder, label string, diff *schemas.FieldDiff) {
	if diff == nil || diff.Same {
		return
	}
	fmt.Fprintf(b, "- %s changed:\n", label)
	for _, line := range diff.DiffLines {
		fmt.Fprintf(b, "  %s\n", line)
	}
}
