// File: internal/evidence/aiexplorer.go
// Description: AI-explorer output extraction and pattern analysis. The
// explorer page renders each message as a <pre> block; the last block is the
// final answer and the first block matching a tool-payload pattern is the
// tool call. The analysis flags raw values and label terms; it records
// evidence only and never decides a verdict.

package evidence

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// defaultToolPayloadPatterns identify a structured tool-call block.
var defaultToolPayloadPatterns = []string{
	`\bset_component_structure\b`,
	`\boperations:`,
	`\bcomponents:`,
}

const explorerJS = `(() => {
	const pres = Array.from(document.querySelectorAll('.explorer-messages pre'))
		.map(p => p.textContent || '');
	const modelSelect = document.querySelector('#edit-model');
	let model = '';
	if (modelSelect && modelSelect.options && modelSelect.selectedIndex >= 0) {
		const opt = modelSelect.options[modelSelect.selectedIndex];
		model = opt ? (opt.value || '') : '';
	}
	return {pre_texts: pres, model: model};
})()`

type explorerPage struct {
	PreTexts []string `json:"pre_texts"`
	Model    string   `json:"model"`
}

func (c *Collector) extractAIExplorer(ctx context.Context) (*schemas.AIExplorerExtract, error) {
	var page explorerPage
	if err := c.driver.Eval(ctx, explorerJS, &page); err != nil {
		return nil, err
	}
	extract := BuildAIExplorerExtract(
		page.PreTexts, page.Model,
		c.cfg.RawValuePatterns, c.cfg.LabelTerms, c.cfg.ToolPayloadPatterns,
		c.logger)
	return extract, nil
}

// BuildAIExplorerExtract derives final answer and tool payload from the
// ordered message blocks and attaches the pattern analysis.
func BuildAIExplorerExtract(preTexts []string, model string, rawValuePatterns, labelTerms, toolPayloadPatterns []string, logger *zap.Logger) *schemas.AIExplorerExtract {
	finalAnswer := ""
	if len(preTexts) > 0 {
		finalAnswer = preTexts[len(preTexts)-1]
	}

	payloadPatterns := toolPayloadPatterns
	if len(payloadPatterns) == 0 {
		payloadPatterns = defaultToolPayloadPatterns
	}
	// The first block matching any payload pattern wins.
	toolPayload := ""
	compiled := compilePatterns(payloadPatterns, logger)
outer:
	for _, text := range preTexts {
		for _, re := range compiled {
			if re.MatchString(text) {
				toolPayload = text
				break outer
			}
		}
	}

	summary := AnalyzeAIOutput(finalAnswer, toolPayload, rawValuePatterns, labelTerms, logger)
	summary.Empty = len(preTexts) == 0
	if summary.Empty {
		summary.EmptyReason = "no message blocks found"
	}

	return &schemas.AIExplorerExtract{
		PreTexts:    preTexts,
		FinalAnswer: finalAnswer,
		ToolPayload: toolPayload,
		Model:       model,
		Summary:     summary,
	}
}

// AnalyzeAIOutput checks the final answer and tool payload against the
// configured raw-value patterns and label terms.
func AnalyzeAIOutput(finalAnswer, toolPayload string, rawValuePatterns, labelTerms []string, logger *zap.Logger) schemas.AIOutputSummary {
	var matchesFinal, matchesTool []string
	for _, re := range compilePatterns(rawValuePatterns, logger) {
		matchesFinal = append(matchesFinal, re.FindAllString(finalAnswer, -1)...)
		matchesTool = append(matchesTool, re.FindAllString(toolPayload, -1)...)
	}
	matchesFinal = sortedUnique(matchesFinal)
	matchesTool = sortedUnique(matchesTool)

	var labelsPresent []string
	lowerFinal := strings.ToLower(finalAnswer)
	for _, term := range labelTerms {
		if term != "" && strings.Contains(lowerFinal, strings.ToLower(term)) {
			labelsPresent = append(labelsPresent, term)
		}
	}

	return schemas.AIOutputSummary{
		FinalAnswerLen:    len(finalAnswer),
		ToolPayloadLen:    len(toolPayload),
		RawInFinalAnswer:  len(matchesFinal) > 0,
		RawInToolPayload:  len(matchesTool) > 0,
		RawMatchesFinal:   matchesFinal,
		RawMatchesTool:    matchesTool,
		LabelTermsPresent: labelsPresent,
	}
}

// compilePatterns compiles the valid patterns and warns about the rest.
func compilePatterns(patterns []string, logger *zap.Logger) []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			if logger != nil {
				logger.Warn("Invalid pattern ignored.", zap.String("pattern", raw), zap.Error(err))
			}
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
