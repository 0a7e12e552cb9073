// File: internal/runner/aiexplorer.go
// Description: Deterministic driving of the AI-explorer form: set model and
// prompt, click run, await completion, then wait for the message stream to
// stop growing. The model's output is never interpreted here; checkpoints
// capture it for assessment.

package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

const (
	defaultPromptSelector     = "#edit-prompt"
	defaultModelSelector      = "#edit-model"
	defaultCompletionTimeout  = 10 * time.Minute
	defaultStabilizeTimeout   = 2 * time.Minute
	defaultStableWindow       = 3 * time.Second
	explorerPollInterval      = 500 * time.Millisecond
	explorerPreBlocksSelector = ".explorer-messages pre"
)

var (
	defaultRunButtons      = []string{"Run Agent", "Run"}
	defaultCompletionTexts = []string{"Final Answer", "Ran"}
)

func (r *Runner) aiExplore(ctx context.Context, record *schemas.RunRecord, ins *scenario.Instruction) bool {
	p := ins.AIExplore
	if p == nil || p.Prompt == "" {
		r.errorRun(record, ins, fmt.Errorf("ai explorer step requires a prompt"))
		return true
	}

	if p.Model != "" {
		r.setModel(ctx, p)
	}
	if err := r.setPrompt(ctx, p); err != nil {
		r.errorRun(record, ins, err)
		return true
	}
	if err := r.clickRun(ctx, p); err != nil {
		r.errorRun(record, ins, err)
		return true
	}
	if err := r.awaitCompletion(ctx, p); err != nil {
		return r.classify(record, ins, err)
	}
	r.awaitStableMessages(ctx, p)
	return false
}

// setModel selects the requested model in the explorer form. A missing model
// select is logged, not fatal: the form then runs with its default.
func (r *Runner) setModel(ctx context.Context, p *scenario.AIExploreParams) {
	selector := p.ModelSelector
	if selector == "" {
		selector = defaultModelSelector
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.value = %s;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsonLiteral(selector), jsonLiteral(p.Model))

	var ok bool
	if err := r.driver.Eval(ctx, expr, &ok); err != nil || !ok {
		r.logger.Warn("Could not select model, using the form default.",
			zap.String("model", p.Model),
			zap.String("selector", selector))
	}
}

// setPrompt fills the prompt field, falling back to the first textarea when
// the well-known selector is absent.
func (r *Runner) setPrompt(ctx context.Context, p *scenario.AIExploreParams) error {
	selector := p.PromptSelector
	if selector == "" {
		selector = defaultPromptSelector
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s) || document.querySelector('textarea');
		if (!el) return false;
		el.focus();
		el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsonLiteral(selector), jsonLiteral(p.Prompt))

	var ok bool
	if err := r.driver.Eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no prompt field found (tried %q and 'textarea')", selector)
	}
	return nil
}

// clickRun tries each candidate run button label until one resolves and
// clicks.
func (r *Runner) clickRun(ctx context.Context, p *scenario.AIExploreParams) error {
	buttons := p.RunButtons
	if len(buttons) == 0 {
		buttons = defaultRunButtons
	}
	var lastErr error
	for _, label := range buttons {
		ref, err := r.driver.Find(ctx, schemas.Locator{
			Kind:  schemas.LocatorRole,
			Value: "button",
			Name:  label,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if err := r.driver.Act(ctx, ref, schemas.ActClick, ""); err != nil {
			lastErr = err
			continue
		}
		r.logger.Info("Run button clicked.", zap.String("label", label))
		return nil
	}
	return fmt.Errorf("no run button found (tried %s): %w", strings.Join(buttons, ", "), lastErr)
}

// awaitCompletion polls the page body for any completion marker text.
func (r *Runner) awaitCompletion(ctx context.Context, p *scenario.AIExploreParams) error {
	texts := p.CompletionTexts
	if len(texts) == 0 {
		texts = defaultCompletionTexts
	}
	timeout := defaultCompletionTimeout
	if p.CompletionTimeoutMS > 0 {
		timeout = time.Duration(p.CompletionTimeoutMS) * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	for {
		var body string
		if err := r.driver.Eval(ctx, "document.body ? document.body.innerText : ''", &body); err != nil {
			return err
		}
		for _, marker := range texts {
			if strings.Contains(body, marker) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return &schemas.TimeoutError{
				Op:      fmt.Sprintf("wait for explorer completion (%s)", strings.Join(texts, ", ")),
				Timeout: timeout,
			}
		}
		if err := sleep(ctx, explorerPollInterval); err != nil {
			return err
		}
	}
}

// awaitStableMessages waits for the explorer message stream to stop growing.
// Streams append blocks after the completion marker appears; reading too
// early captures a truncated payload. Running out the stabilize budget is not
// a failure, the stream is simply read as-is.
func (r *Runner) awaitStableMessages(ctx context.Context, p *scenario.AIExploreParams) {
	stableWindow := defaultStableWindow
	if p.StableMS > 0 {
		stableWindow = time.Duration(p.StableMS) * time.Millisecond
	}
	timeout := defaultStabilizeTimeout
	if p.StabilizeTimeoutMS > 0 {
		timeout = time.Duration(p.StabilizeTimeoutMS) * time.Millisecond
	}
	minCount := p.PreMinCount
	if minCount <= 0 {
		minCount = 1
	}

	expr := fmt.Sprintf("document.querySelectorAll(%s).length", jsonLiteral(explorerPreBlocksSelector))
	deadline := time.Now().Add(timeout)
	lastCount := -1
	stableSince := time.Now()

	for time.Now().Before(deadline) {
		var count int
		if err := r.driver.Eval(ctx, expr, &count); err != nil {
			r.logger.Warn("Message stream poll failed.", zap.Error(err))
			return
		}
		if count != lastCount {
			lastCount = count
			stableSince = time.Now()
		} else if count >= minCount && time.Since(stableSince) >= stableWindow {
			return
		}
		if err := sleep(ctx, explorerPollInterval); err != nil {
			return
		}
	}
	r.logger.Warn("Message stream did not stabilize before the deadline.",
		zap.Int("blocks", lastCount))
}
