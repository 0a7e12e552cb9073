// File: internal/driver/allocator.go
// Description: Owns the headless Chrome process. Sessions (tabs) are derived
// from the allocator context so the comparator can run baseline and modified
// passes in fully isolated tabs of one browser.

package driver

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/internal/config"
)

// Allocator manages the browser process lifecycle and session creation.
type Allocator struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks open sessions for graceful shutdown.
	wg sync.WaitGroup
}

// NewAllocator launches the browser process and verifies it responds.
func NewAllocator(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Allocator, error) {
	a := &Allocator{
		logger: logger.Named("browser"),
		cfg:    cfg,
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, a.buildAllocatorOptions()...)
	a.allocatorCtx = allocCtx
	a.allocatorCancel = cancel

	// Confirm the browser starts before handing the allocator out.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	defer cancelTest()
	testCtx, cancelTab := chromedp.NewContext(testCtx)
	defer cancelTab()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		a.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	a.logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return a, nil
}

func (a *Allocator) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", a.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", a.cfg.Headless),
	)
	if a.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(a.cfg.UserAgent))
	}

	// Container-friendly flags.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// NewSession opens an isolated tab and starts its event listeners.
func (a *Allocator) NewSession(ctx context.Context) (*Session, error) {
	s, err := newSession(ctx, a.allocatorCtx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.wg.Add(1)
	s.onClose = a.wg.Done
	return s, nil
}

// Shutdown waits for open sessions and terminates the browser process.
func (a *Allocator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Shutdown deadline exceeded, forcing browser termination.", zap.Error(ctx.Err()))
	}

	if a.allocatorCancel != nil {
		a.allocatorCancel()
		<-a.allocatorCtx.Done()
	}
	a.logger.Info("Browser terminated.")
	return nil
}
