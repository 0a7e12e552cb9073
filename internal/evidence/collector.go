// File: internal/evidence/collector.go
// Description: Checkpoint capture. Everything is gathered in memory first and
// persisted all or nothing, so an output directory never contains a partial
// checkpoint.

package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
)

// Collector captures evidence bundles against one driver session.
type Collector struct {
	driver   schemas.Driver
	cfg      config.EvidenceConfig
	timeouts config.TimeoutConfig
	outDir   string
	logger   *zap.Logger
}

// NewCollector wires a collector to a session and an output directory.
func NewCollector(drv schemas.Driver, cfg config.EvidenceConfig, timeouts config.TimeoutConfig, outDir string, logger *zap.Logger) *Collector {
	return &Collector{
		driver:   drv,
		cfg:      cfg,
		timeouts: timeouts,
		outDir:   outDir,
		logger:   logger.Named("evidence"),
	}
}

// OutDir returns the directory checkpoint artifacts land in.
func (c *Collector) OutDir() string { return c.outDir }

// Capture gathers a checkpoint's evidence. A full capture includes
// screenshot, page messages, AI-explorer extraction and probes; a snapshot
// capture records the accessibility tree, console and JS errors only.
func (c *Collector) Capture(ctx context.Context, name string, full bool) (*schemas.EvidenceBundle, error) {
	bundle := &schemas.EvidenceBundle{
		Name:       name,
		CapturedAt: time.Now().UTC(),
		Full:       full,
	}

	url, err := c.driver.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	bundle.URL = url

	snap, err := c.driver.Snapshot(ctx, schemas.SnapshotOptions{InteractiveOnly: true})
	if err != nil {
		return nil, err
	}
	bundle.Snapshot = snap

	var screenshot []byte
	if full {
		screenshot, err = c.driver.Screenshot(ctx)
		if err != nil {
			return nil, err
		}
	}

	console, err := c.driver.Console(ctx)
	if err != nil {
		return nil, err
	}
	bundle.Console = console

	jsErrors, err := c.driver.Errors(ctx)
	if err != nil {
		return nil, err
	}
	bundle.JSErrors = jsErrors

	if full {
		messages, err := ExtractMessages(ctx, c.driver)
		if err != nil {
			return nil, err
		}
		bundle.Messages = messages

		if c.cfg.AIExplorer {
			extract, err := c.extractAIExplorer(ctx)
			if err != nil {
				return nil, err
			}
			bundle.AIExplorer = extract
		}

		for _, cmd := range c.cfg.ProbeCmds {
			bundle.Probes = append(bundle.Probes, *RunProbe(ctx, cmd, c.cfg.ProbeCwd, c.timeouts.Probe))
		}
	}

	if err := c.persist(bundle, screenshot); err != nil {
		return nil, err
	}

	c.logger.Info("Checkpoint captured.",
		zap.String("name", name),
		zap.Bool("full", full),
		zap.String("url", url))
	return bundle, nil
}

// persist writes every artifact of the bundle, removing all of them again if
// any single write fails.
func (c *Collector) persist(bundle *schemas.EvidenceBundle, screenshot []byte) (err error) {
	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, path := range written {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				c.logger.Warn("Failed to remove partial artifact.", zap.String("path", path), zap.Error(rmErr))
			}
		}
	}()

	writeJSON := func(suffix string, v any) error {
		path := filepath.Join(c.outDir, bundle.Name+suffix)
		if werr := reporting.WriteJSON(path, v); werr != nil {
			return werr
		}
		written = append(written, path)
		return nil
	}

	if err = writeJSON(".snapshot.json", bundle.Snapshot); err != nil {
		return err
	}
	if err = writeJSON(".console.json", bundle.Console); err != nil {
		return err
	}
	if err = writeJSON(".errors.json", bundle.JSErrors); err != nil {
		return err
	}

	if bundle.Full {
		if screenshot != nil {
			shotPath := filepath.Join(c.outDir, bundle.Name+".screenshot.png")
			if err = reporting.WriteFile(shotPath, screenshot); err != nil {
				return err
			}
			written = append(written, shotPath)
			bundle.ScreenshotPath = shotPath
		}
		if err = writeJSON(".drupal_messages.json", bundle.Messages); err != nil {
			return err
		}
		if bundle.AIExplorer != nil {
			if err = writeJSON(".ai_explorer.json", bundle.AIExplorer); err != nil {
				return err
			}
		}
		for i := range bundle.Probes {
			if err = writeJSON(fmt.Sprintf(".probe.%d.json", i+1), &bundle.Probes[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
