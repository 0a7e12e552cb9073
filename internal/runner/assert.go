// File: internal/runner/assert.go
// Description: Inline assertion evaluation against the live page. Results are
// recorded on the run; a failed assertion never stops execution.

package runner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/assess"
	"github.com/xkilldash9x/intentcheck/internal/evidence"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

func (r *Runner) assert(ctx context.Context, record *schemas.RunRecord, ins *scenario.Instruction) {
	spec := ins.Assert
	result := schemas.AssertionResult{
		ID:       spec.ID,
		Type:     string(spec.Type),
		Severity: spec.EffectiveSeverity(),
	}
	if result.ID == "" {
		result.ID = fmt.Sprintf("line_%d", ins.Line)
	}

	switch spec.Type {
	case schemas.AssertTextPresent, schemas.AssertTextAbsent:
		r.assertText(ctx, spec, &result)
	case schemas.AssertNoConsoleErrors:
		jsErrors, err := r.driver.Errors(ctx)
		if err != nil {
			markErrored(&result, err)
			break
		}
		result.Passed = len(jsErrors) == 0
		result.Observed = fmt.Sprintf("js errors: %d", len(jsErrors))
	case schemas.AssertNoPageMessages:
		messages, err := evidence.ExtractMessages(ctx, r.driver)
		if err != nil {
			markErrored(&result, err)
			break
		}
		level := spec.Level
		if level == "" {
			level = schemas.MessageAlert
		}
		var texts []string
		for _, m := range messages {
			if m.Role == level {
				texts = append(texts, m.Text)
			}
		}
		result.Passed = len(texts) == 0
		result.Observed = strings.Join(texts, "\n")
		result.Expected = fmt.Sprintf("no %s messages", level)
	case schemas.AssertURLContains:
		url, err := r.driver.CurrentURL(ctx)
		if err != nil {
			markErrored(&result, err)
			break
		}
		result.Passed = strings.Contains(url, spec.Contains)
		result.Expected = spec.Contains
		result.Observed = url
	case schemas.AssertCountEquals:
		expr := fmt.Sprintf("document.querySelectorAll(%s).length", jsonLiteral(spec.Selector))
		var count int
		if err := r.driver.Eval(ctx, expr, &count); err != nil {
			markErrored(&result, err)
			break
		}
		result.Passed = count == spec.Count
		result.Expected = fmt.Sprintf("%d elements matching %q", spec.Count, spec.Selector)
		result.Observed = fmt.Sprintf("%d", count)
	default:
		markErrored(&result, fmt.Errorf("unknown inline assertion type %q", spec.Type))
	}

	record.Assertions = append(record.Assertions, result)
	if !result.Passed && !result.Errored {
		r.logger.Warn("Inline assertion failed.",
			zap.String("id", result.ID),
			zap.String("type", result.Type),
			zap.String("observed", result.Observed))
	}
}

// assertText checks pattern presence against the page body, or element
// existence when a selector was given instead.
func (r *Runner) assertText(ctx context.Context, spec *schemas.AssertionSpec, result *schemas.AssertionResult) {
	wantPresent := spec.Type == schemas.AssertTextPresent

	if spec.Selector != "" {
		expr := fmt.Sprintf("!!document.querySelector(%s)", jsonLiteral(spec.Selector))
		var found bool
		if err := r.driver.Eval(ctx, expr, &found); err != nil {
			markErrored(result, err)
			return
		}
		result.Passed = found == wantPresent
		result.Expected = fmt.Sprintf("selector %q present=%v", spec.Selector, wantPresent)
		result.Observed = fmt.Sprintf("present=%v", found)
		return
	}

	var body string
	if err := r.driver.Eval(ctx, "document.body ? document.body.innerText : ''", &body); err != nil {
		markErrored(result, err)
		return
	}
	hits := assess.MatchPatterns(body, spec.Patterns)
	if wantPresent {
		result.Passed = len(hits) > 0
		result.Expected = "patterns present on page"
	} else {
		result.Passed = len(hits) == 0
		result.Expected = "patterns absent from page"
	}
	if len(hits) > 0 {
		result.Observed = "matched: " + strings.Join(hits, ", ")
	}
}

func markErrored(result *schemas.AssertionResult, err error) {
	result.Errored = true
	result.Observed = err.Error()
}
