// File: internal/fuzz/report.go
// Description: Fuzz session artifacts: the markdown exploration report and
// the guided-mode session handoff file.

package fuzz

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
)

// historyTail bounds the action table at the end of the markdown report.
const historyTail = 40

// GuidedSession is the handoff file for guided exploration: enough page
// state for an external operator (human or model) to plan the next steps.
type GuidedSession struct {
	BaseURL     string                       `json:"base_url"`
	Goal        string                       `json:"goal"`
	CurrentURL  string                       `json:"current_url"`
	Elements    []schemas.InteractiveElement `json:"interactive_elements"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

// maxGuidedElements keeps the handoff file readable on element-heavy admin
// pages.
const maxGuidedElements = 200

// PrepareGuided captures the current page state into a guided_start
// checkpoint and writes the session handoff file.
func (c *Controller) PrepareGuided(ctx context.Context, record *schemas.RunRecord, baseURL, goal string) error {
	bundle, err := c.collector.Capture(ctx, "guided_start", true)
	if err != nil {
		return err
	}
	if err := record.AddCheckpoint(bundle); err != nil {
		return err
	}

	session := &GuidedSession{
		BaseURL:     baseURL,
		Goal:        goal,
		CurrentURL:  bundle.URL,
		GeneratedAt: time.Now().UTC(),
	}
	if bundle.Snapshot != nil {
		session.Elements = bundle.Snapshot.InteractiveElements()
		if len(session.Elements) > maxGuidedElements {
			session.Elements = session.Elements[:maxGuidedElements]
		}
	}

	path := filepath.Join(c.collector.OutDir(), "exploration_session.json")
	return reporting.WriteJSON(path, session)
}

// WriteReport renders the markdown exploration report next to the session's
// other artifacts.
func (c *Controller) WriteReport(report *Report, baseURL string) error {
	path := filepath.Join(c.collector.OutDir(), "exploration_report.md")
	return reporting.WriteFile(path, []byte(RenderReport(report, baseURL)))
}

// RenderReport produces the markdown text of a fuzz session report.
func RenderReport(report *Report, baseURL string) string {
	var b strings.Builder

	b.WriteString("# Exploration Report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Site: %s\n", baseURL)
	fmt.Fprintf(&b, "- Seed: %d\n", report.Seed)
	fmt.Fprintf(&b, "- Safety: %s\n", report.Safety)
	fmt.Fprintf(&b, "- Duration: %s\n\n", report.Duration.Round(time.Second))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Actions performed: %d\n", report.Actions)
	fmt.Fprintf(&b, "- URLs visited: %d\n", len(report.URLsVisited))
	fmt.Fprintf(&b, "- Issues flagged: %d\n", len(report.Issues))
	fmt.Fprintf(&b, "- Screenshots: %d\n", len(report.Screenshots))
	fmt.Fprintf(&b, "- Checkpoints: %d\n\n", len(report.Checkpoints))

	if len(report.URLsVisited) > 0 {
		b.WriteString("## URLs Visited\n\n")
		for _, url := range report.URLsVisited {
			fmt.Fprintf(&b, "- %s\n", url)
		}
		b.WriteString("\n")
	}

	if len(report.Issues) > 0 {
		b.WriteString("## Issues Flagged\n\n")
		for _, issue := range report.Issues {
			fmt.Fprintf(&b, "### `%s` (after action %d)\n\n", issue.Checkpoint, issue.Iteration)
			fmt.Fprintf(&b, "- URL: %s\n", issue.URL)
			for _, text := range issue.Errors {
				fmt.Fprintf(&b, "- %s\n", text)
			}
			b.WriteString("\n")
		}
	}

	if len(report.Screenshots) > 0 {
		b.WriteString("## Screenshots\n\n")
		for _, name := range report.Screenshots {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	if len(report.Checkpoints) > 0 {
		b.WriteString("## Checkpoints\n\n")
		for _, name := range report.Checkpoints {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	if len(report.History) > 0 {
		history := report.History
		if len(history) > historyTail {
			history = history[len(history)-historyTail:]
		}
		fmt.Fprintf(&b, "## Last %d Actions\n\n", len(history))
		b.WriteString("| # | Action | Role | Name | URL |\n")
		b.WriteString("|---|--------|------|------|-----|\n")
		for _, h := range history {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				h.Index, h.Action, h.Role, mdCell(h.Name), mdCell(h.URL))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
