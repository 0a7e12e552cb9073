// File: internal/driver/session.go
// Description: One isolated browser tab implementing the Driver capability
// interface. Console output, uncaught exceptions and in-flight network
// requests are harvested continuously through CDP event listeners.

package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
)

var _ schemas.Driver = (*Session)(nil)

// Session is a single browser tab. All methods are safe for use from the one
// goroutine that owns the run; the internal mutex only guards the event
// listener's buffers.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	tabCtx    context.Context
	tabCancel context.CancelFunc

	mu        sync.Mutex
	console   []schemas.ConsoleMessage
	jsErrors  []schemas.RuntimeError
	inflight  map[network.RequestID]struct{}
	quietFrom time.Time

	closed  bool
	onClose func()
}

// ID returns the session's identity for log correlation.
func (s *Session) ID() string { return s.id }

func newSession(ctx context.Context, allocCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &schemas.DriverError{Op: "new session", Err: err}
	}

	id := uuid.New().String()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:        id,
		logger:    logger.With(zap.String("session_id", id[:8])),
		cfg:       cfg,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		inflight:  make(map[network.RequestID]struct{}),
		quietFrom: time.Now(),
	}

	chromedp.ListenTarget(tabCtx, s.handleEvent)

	if err := chromedp.Run(tabCtx, runtime.Enable(), network.Enable()); err != nil {
		tabCancel()
		return nil, &schemas.DriverError{Op: "new session", Err: err}
	}

	s.logger.Debug("Browser session opened.")
	return s, nil
}

func (s *Session) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		s.mu.Lock()
		s.console = append(s.console, schemas.ConsoleMessage{
			Level:     string(ev.Type),
			Text:      formatConsoleArgs(ev.Args),
			Timestamp: time.Now(),
		})
		s.mu.Unlock()
	case *runtime.EventExceptionThrown:
		d := ev.ExceptionDetails
		text := d.Text
		if d.Exception != nil && d.Exception.Description != "" {
			text = d.Exception.Description
		}
		s.mu.Lock()
		s.jsErrors = append(s.jsErrors, schemas.RuntimeError{
			Text:      text,
			URL:       d.URL,
			Line:      d.LineNumber,
			Timestamp: time.Now(),
		})
		s.mu.Unlock()
	case *network.EventRequestWillBeSent:
		s.mu.Lock()
		s.inflight[ev.RequestID] = struct{}{}
		s.mu.Unlock()
	case *network.EventLoadingFinished:
		s.finishRequest(ev.RequestID)
	case *network.EventLoadingFailed:
		s.finishRequest(ev.RequestID)
	}
}

func (s *Session) finishRequest(id network.RequestID) {
	s.mu.Lock()
	delete(s.inflight, id)
	if len(s.inflight) == 0 {
		s.quietFrom = time.Now()
	}
	s.mu.Unlock()
}

func formatConsoleArgs(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		switch {
		case a == nil:
		case a.Value != nil:
			parts = append(parts, strings.Trim(string(a.Value), `"`))
		case a.Description != "":
			parts = append(parts, a.Description)
		default:
			parts = append(parts, string(a.Type))
		}
	}
	return strings.Join(parts, " ")
}

// Open navigates to the given absolute URL.
func (s *Session) Open(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return &schemas.DriverError{Op: fmt.Sprintf("open %s", url), Err: err}
	}
	return nil
}

// CurrentURL reports the tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", &schemas.DriverError{Op: "current url", Err: err}
	}
	return url, nil
}

// Screenshot captures the visible viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, &schemas.DriverError{Op: "screenshot", Err: err}
	}
	return buf, nil
}

// Eval evaluates a JS expression in the page; out may be nil to discard the
// result, otherwise it must be a pointer the result unmarshals into.
func (s *Session) Eval(ctx context.Context, expr string, out any) error {
	if err := s.run(ctx, chromedp.Evaluate(expr, out)); err != nil {
		return &schemas.DriverError{Op: "eval", Err: err}
	}
	return nil
}

// WaitLoad polls the page readiness condition until it holds or the budget
// runs out. Exceeding the budget is a finding, not a tooling error.
func (s *Session) WaitLoad(ctx context.Context, state schemas.LoadState, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready, err := s.loadStateReached(ctx, state)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return &schemas.TimeoutError{Op: fmt.Sprintf("wait --load %s", state), Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return &schemas.DriverError{Op: "wait load", Err: ctx.Err()}
		case <-time.After(100 * time.Millisecond):
		}
	}
}

const networkQuietWindow = 500 * time.Millisecond

func (s *Session) loadStateReached(ctx context.Context, state schemas.LoadState) (bool, error) {
	var readyState string
	if err := s.run(ctx, chromedp.Evaluate("document.readyState", &readyState)); err != nil {
		return false, &schemas.DriverError{Op: "wait load", Err: err}
	}
	switch state {
	case schemas.LoadDOMContentLoaded:
		return readyState == "interactive" || readyState == "complete", nil
	case schemas.LoadComplete:
		return readyState == "complete", nil
	case schemas.LoadNetworkIdle:
		if readyState != "complete" {
			return false, nil
		}
		s.mu.Lock()
		idle := len(s.inflight) == 0 && time.Since(s.quietFrom) >= networkQuietWindow
		s.mu.Unlock()
		return idle, nil
	default:
		return false, &schemas.DriverError{Op: "wait load", Err: fmt.Errorf("unknown load state %q", state)}
	}
}

// WaitText polls the page body for a literal substring.
func (s *Session) WaitText(ctx context.Context, text string, timeout time.Duration) error {
	expr := fmt.Sprintf(
		"!!(document.body && document.body.innerText.includes(%s))", jsString(text))
	deadline := time.Now().Add(timeout)
	for {
		var found bool
		if err := s.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
			return &schemas.DriverError{Op: "wait text", Err: err}
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return &schemas.TimeoutError{Op: fmt.Sprintf("wait --text %q", text), Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return &schemas.DriverError{Op: "wait text", Err: ctx.Err()}
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Console returns a copy of the harvested console messages.
func (s *Session) Console(ctx context.Context) ([]schemas.ConsoleMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ConsoleMessage, len(s.console))
	copy(out, s.console)
	return out, nil
}

// Errors returns a copy of the harvested uncaught JS exceptions.
func (s *Session) Errors(ctx context.Context) ([]schemas.RuntimeError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.RuntimeError, len(s.jsErrors))
	copy(out, s.jsErrors)
	return out, nil
}

// Close tears down the tab. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.tabCancel()
	if s.onClose != nil {
		s.onClose()
	}
	s.logger.Debug("Browser session closed.")
	return nil
}

// run executes chromedp actions against the tab, honoring the caller's
// context cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.tabCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jsString renders a Go string as a quoted JS string literal.
func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}
