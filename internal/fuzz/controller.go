// File: internal/fuzz/controller.go
// Description: Seeded exploratory fuzzing. The action sequence is a pure
// function of the seed and the pages the site serves; two sessions against
// identical site states replay identically.

package fuzz

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/evidence"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
)

// ActionLog is one executed fuzz action.
type ActionLog struct {
	Index  int    `json:"index"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Ref    string `json:"ref"`
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
	URL    string `json:"url"`
}

// Issue is a flagged JS error observation, pinned by a forced checkpoint.
type Issue struct {
	Iteration  int      `json:"iteration"`
	URL        string   `json:"url"`
	Errors     []string `json:"errors"`
	Checkpoint string   `json:"checkpoint"`
}

// Report summarizes one fuzz session.
type Report struct {
	Seed        int64         `json:"seed"`
	Safety      string        `json:"safety"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Actions     int           `json:"actions"`
	URLsVisited []string      `json:"urls_visited"`
	Issues      []Issue       `json:"issues"`
	Screenshots []string      `json:"screenshots"`
	Checkpoints []string      `json:"checkpoints"`
	History     []ActionLog   `json:"history"`
}

// Controller drives one fuzz session against a driver session.
type Controller struct {
	driver    schemas.Driver
	collector *evidence.Collector
	cfg       config.FuzzConfig
	rng       *rand.Rand
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New builds a controller. The rand source is owned by this controller and
// never shared; sharing would break replayability.
func New(drv schemas.Driver, collector *evidence.Collector, cfg config.FuzzConfig, logger *zap.Logger) *Controller {
	return &Controller{
		driver:    drv,
		collector: collector,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		limiter:   rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), 1),
		logger:    logger.Named("fuzz"),
	}
}

// Run fuzzes until the configured duration elapses or the context is
// cancelled. The returned record and report are always non-nil.
func (c *Controller) Run(ctx context.Context) (*schemas.RunRecord, *Report) {
	record := &schemas.RunRecord{
		Session:   "fuzz",
		StartedAt: time.Now().UTC(),
		Status:    schemas.RunRunning,
	}
	report := &Report{
		Seed:      c.cfg.Seed,
		Safety:    c.cfg.Safety,
		StartedAt: record.StartedAt,
	}

	c.logger.Info("Fuzz session starting.",
		zap.Int64("seed", c.cfg.Seed),
		zap.String("safety", c.cfg.Safety),
		zap.Duration("duration", c.cfg.Duration))

	deadline := time.Now().Add(c.cfg.Duration)
	seenErrors := 0

	for time.Now().Before(deadline) && ctx.Err() == nil {
		if err := c.limiter.Wait(ctx); err != nil {
			break
		}

		seenErrors = c.scanErrors(ctx, record, report, seenErrors)

		if err := c.act(ctx, record, report); err != nil {
			record.DriverErrors = append(record.DriverErrors, err.Error())
			c.logger.Warn("Fuzz action failed, continuing.", zap.Error(err))
		}

		c.trackURL(ctx, report)
		c.periodicArtifacts(ctx, record, report)
	}

	c.finalCheckpoint(ctx, record, report)
	record.Status = schemas.RunCompleted
	record.CompletedAt = time.Now().UTC()
	report.Duration = record.Elapsed()

	c.logger.Info("Fuzz session finished.",
		zap.Int("actions", report.Actions),
		zap.Int("issues", len(report.Issues)),
		zap.Int("urls", len(report.URLsVisited)))
	return record, report
}

// scanErrors flags newly observed JS errors and pins the page state with a
// forced checkpoint.
func (c *Controller) scanErrors(ctx context.Context, record *schemas.RunRecord, report *Report, seen int) int {
	jsErrors, err := c.driver.Errors(ctx)
	if err != nil || len(jsErrors) <= seen {
		return seen
	}

	var texts []string
	for _, e := range jsErrors[seen:] {
		texts = append(texts, e.Text)
	}
	issue := Issue{
		Iteration:  report.Actions,
		Errors:     texts,
		Checkpoint: fmt.Sprintf("error_%d", len(report.Issues)+1),
	}
	if url, uerr := c.driver.CurrentURL(ctx); uerr == nil {
		issue.URL = url
	}

	c.logger.Warn("JS errors observed, flagging issue.",
		zap.String("checkpoint", issue.Checkpoint),
		zap.Strings("errors", texts))

	if bundle, cerr := c.collector.Capture(ctx, issue.Checkpoint, true); cerr == nil {
		if aerr := record.AddCheckpoint(bundle); aerr == nil {
			report.Checkpoints = append(report.Checkpoints, issue.Checkpoint)
		}
	}
	report.Issues = append(report.Issues, issue)
	return len(jsErrors)
}

// act picks one allowed element deterministically and interacts with it.
func (c *Controller) act(ctx context.Context, record *schemas.RunRecord, report *Report) error {
	snap, err := c.driver.Snapshot(ctx, schemas.SnapshotOptions{InteractiveOnly: true})
	if err != nil {
		return err
	}

	candidates := c.candidates(snap)
	if len(candidates) == 0 {
		// Probably a modal without accessible controls; Escape usually clears it.
		c.logger.Debug("No allowed candidates, pressing Escape.")
		return c.driver.Raw(ctx, `press "body" Escape`)
	}

	pick := candidates[c.rng.Intn(len(candidates))]
	report.Actions++

	entry := ActionLog{
		Index: report.Actions,
		Role:  pick.Role,
		Name:  pick.Name,
		Ref:   pick.Ref,
	}
	if url, uerr := c.driver.CurrentURL(ctx); uerr == nil {
		entry.URL = url
	}

	switch pick.Role {
	case "textbox":
		entry.Action = string(schemas.ActFill)
		entry.Value = fmt.Sprintf("Fuzz %d #%d", c.cfg.Seed, report.Actions)
	default:
		entry.Action = string(schemas.ActClick)
	}
	report.History = append(report.History, entry)

	c.logger.Debug("Fuzz action.",
		zap.Int("n", entry.Index),
		zap.String("role", entry.Role),
		zap.String("name", entry.Name),
		zap.String("action", entry.Action))

	if err := c.driver.Act(ctx, schemas.ElementRef(pick.Ref), schemas.ElementAction(entry.Action), entry.Value); err != nil {
		return err
	}

	// Settling is best effort: a slow page is not a finding here.
	if err := c.driver.WaitLoad(ctx, schemas.LoadNetworkIdle, 10*time.Second); err != nil {
		c.logger.Debug("Page did not settle after action.", zap.Error(err))
	}
	return nil
}

// candidates filters and orders the snapshot's interactive elements. The
// sort makes the rng pick depend only on page content, not traversal order.
func (c *Controller) candidates(snap *schemas.AXSnapshot) []schemas.InteractiveElement {
	var out []schemas.InteractiveElement
	for _, el := range snap.InteractiveElements() {
		if Allowed(el.Name, c.cfg.Safety) {
			out = append(out, el)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Ref < out[j].Ref
	})
	return out
}

func (c *Controller) trackURL(ctx context.Context, report *Report) {
	url, err := c.driver.CurrentURL(ctx)
	if err != nil || url == "" {
		return
	}
	if n := len(report.URLsVisited); n == 0 || report.URLsVisited[n-1] != url {
		report.URLsVisited = append(report.URLsVisited, url)
	}
}

func (c *Controller) periodicArtifacts(ctx context.Context, record *schemas.RunRecord, report *Report) {
	if report.Actions == 0 {
		return
	}
	if c.cfg.ScreenshotEvery > 0 && report.Actions%c.cfg.ScreenshotEvery == 0 {
		name := fmt.Sprintf("%03d_%s.png", report.Actions, safeName(lastURL(report)))
		if data, err := c.driver.Screenshot(ctx); err == nil {
			path := filepath.Join(c.collector.OutDir(), name)
			if werr := reporting.WriteFile(path, data); werr == nil {
				report.Screenshots = append(report.Screenshots, name)
			}
		}
	}
	if c.cfg.CheckpointEvery > 0 && report.Actions%c.cfg.CheckpointEvery == 0 {
		name := fmt.Sprintf("fuzz_%03d", report.Actions)
		if bundle, err := c.collector.Capture(ctx, name, false); err == nil {
			if aerr := record.AddCheckpoint(bundle); aerr == nil {
				report.Checkpoints = append(report.Checkpoints, name)
			}
		}
	}
}

func (c *Controller) finalCheckpoint(ctx context.Context, record *schemas.RunRecord, report *Report) {
	bundle, err := c.collector.Capture(ctx, "fuzz_final", true)
	if err != nil {
		c.logger.Warn("Final checkpoint capture failed.", zap.Error(err))
		return
	}
	if aerr := record.AddCheckpoint(bundle); aerr == nil {
		report.Checkpoints = append(report.Checkpoints, "fuzz_final")
	}
}

func lastURL(report *Report) string {
	if len(report.URLsVisited) == 0 {
		return "start"
	}
	return report.URLsVisited[len(report.URLsVisited)-1]
}

// safeName converts a URL into a filesystem-friendly fragment.
func safeName(url string) string {
	var b strings.Builder
	for _, r := range url {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 40 {
		out = out[:40]
	}
	if out == "" {
		out = "page"
	}
	return out
}
