// File: internal/assess/assess.go
// Description: Pure assertion evaluation over recorded evidence. Nothing in
// this package touches a browser; it reads run records and produces results,
// which keeps verdicts reproducible from artifacts alone.

package assess

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// Evaluate checks one declarative assertion against a completed run.
// Assertions that cannot be evaluated (missing checkpoint, unparseable
// payload) come back with Errored set; that converts the verdict to ERROR
// rather than silently passing.
func Evaluate(spec *schemas.AssertionSpec, run *schemas.RunRecord) schemas.AssertionResult {
	result := schemas.AssertionResult{
		ID:         spec.ID,
		Type:       string(spec.Type),
		Severity:   spec.EffectiveSeverity(),
		Checkpoint: spec.Checkpoint,
	}

	cp := resolveCheckpoint(run, spec.Checkpoint)
	if cp == nil {
		result.Errored = true
		result.Observed = "checkpoint not found"
		return result
	}

	switch spec.Type {
	case schemas.AssertTextPresent, schemas.AssertTextAbsent:
		evaluateText(spec, cp, &result)
	case schemas.AssertValueEquals:
		evaluateValue(spec, cp, &result)
	case schemas.AssertNoConsoleErrors:
		count := len(cp.JSErrors)
		result.Passed = count == 0
		result.Observed = fmt.Sprintf("js errors: %d", count)
	case schemas.AssertNoPageMessages:
		level := spec.Level
		if level == "" {
			level = schemas.MessageAlert
		}
		messages := cp.MessagesByRole(level)
		result.Passed = len(messages) == 0
		result.Observed = strings.Join(messages, "\n")
		result.Expected = fmt.Sprintf("no %s messages", level)
	case schemas.AssertURLContains:
		result.Passed = strings.Contains(cp.URL, spec.Contains)
		result.Expected = spec.Contains
		result.Observed = cp.URL
	case schemas.AssertCountEquals:
		// Element counts are observed live by the runner; they cannot be
		// re-derived from recorded evidence.
		result.Errored = true
		result.Observed = "count_equals is only evaluated during a run"
	default:
		result.Errored = true
		result.Observed = fmt.Sprintf("unknown assertion type: %s", spec.Type)
	}
	return result
}

func resolveCheckpoint(run *schemas.RunRecord, name string) *schemas.EvidenceBundle {
	if name == "" {
		return run.LastCheckpoint()
	}
	return run.Checkpoint(name)
}

// scopeText resolves the evidence text an assertion scope names. A known
// scope with no captured evidence resolves to empty text; an unrecognized
// scope name is an error, so a manifest typo surfaces instead of every
// text_absent assertion passing against nothing.
func scopeText(scope string, cp *schemas.EvidenceBundle) (string, error) {
	switch scope {
	case "":
		return "", nil
	case schemas.ScopeFinalAnswer:
		if cp.AIExplorer != nil {
			return cp.AIExplorer.FinalAnswer, nil
		}
		return "", nil
	case schemas.ScopeToolCall:
		if cp.AIExplorer != nil {
			return cp.AIExplorer.ToolPayload, nil
		}
		return "", nil
	case schemas.ScopeStatusMessage:
		return strings.Join(cp.MessagesByRole(schemas.MessageStatus), "\n"), nil
	case schemas.ScopeAlertMessage:
		return strings.Join(cp.MessagesByRole(schemas.MessageAlert), "\n"), nil
	}
	return "", fmt.Errorf("unknown assertion scope %q", scope)
}

func evaluateText(spec *schemas.AssertionSpec, cp *schemas.EvidenceBundle, result *schemas.AssertionResult) {
	text, err := scopeText(spec.Scope, cp)
	if err != nil {
		result.Errored = true
		result.Observed = err.Error()
		return
	}
	hits := MatchPatterns(text, spec.Patterns)

	if spec.Type == schemas.AssertTextPresent {
		result.Passed = len(hits) > 0
		result.Expected = fmt.Sprintf("patterns present in %s", spec.Scope)
	} else {
		result.Passed = len(hits) == 0
		result.Expected = fmt.Sprintf("patterns absent from %s", spec.Scope)
	}
	if len(hits) > 0 {
		result.Observed = "matched: " + strings.Join(hits, ", ")
	}
}

// MatchPatterns returns the patterns that hit. Each pattern is tried as a
// regular expression first; one that does not compile is treated as a literal
// substring instead of being dropped.
func MatchPatterns(text string, patterns []string) []string {
	var hits []string
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			if strings.Contains(text, raw) {
				hits = append(hits, raw)
			}
			continue
		}
		if re.MatchString(text) {
			hits = append(hits, raw)
		}
	}
	return hits
}

func evaluateValue(spec *schemas.AssertionSpec, cp *schemas.EvidenceBundle, result *schemas.AssertionResult) {
	if cp.AIExplorer == nil || cp.AIExplorer.ToolPayload == "" {
		result.Errored = true
		result.Observed = "tool payload not found"
		return
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(cp.AIExplorer.ToolPayload), &parsed); err != nil {
		result.Errored = true
		result.Observed = fmt.Sprintf("tool payload parse error: %v", err)
		return
	}
	actual := GetByPath(parsed, spec.Path)
	result.Passed = valuesEqual(actual, spec.Expected)
	result.Expected = fmt.Sprintf("%v", spec.Expected)
	result.Observed = fmt.Sprintf("%v", actual)
}

// pathPartRe matches one dot-path segment: a key with an optional index,
// e.g. "operations[0]".
var pathPartRe = regexp.MustCompile(`^([\w-]+)(\[(\d+)\])?$`)

// GetByPath walks a parsed document by dot path. Missing keys, bad indices
// and malformed segments all resolve to nil.
func GetByPath(data any, path string) any {
	current := data
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m := pathPartRe.FindStringSubmatch(part)
		if m == nil {
			return nil
		}
		key := m[1]
		switch node := current.(type) {
		case map[string]any:
			current = node[key]
		default:
			return nil
		}
		if m[3] != "" {
			list, ok := current.([]any)
			if !ok {
				return nil
			}
			idx := 0
			fmt.Sscanf(m[3], "%d", &idx)
			if idx >= len(list) {
				return nil
			}
			current = list[idx]
		}
	}
	return current
}

// valuesEqual compares a value from parsed YAML against the manifest's
// expected value, tolerating int/float representation differences.
func valuesEqual(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	return aok && eok && af == ef
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
