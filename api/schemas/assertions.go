package schemas

// -- Assertion Specification Schemas --

// AssertionType enumerates the closed set of declarative assertion kinds.
type AssertionType string

const (
	AssertTextPresent     AssertionType = "text_present"
	AssertTextAbsent      AssertionType = "text_absent"
	AssertNoConsoleErrors AssertionType = "no_console_errors"
	AssertNoPageMessages  AssertionType = "no_drupal_messages"
	AssertURLContains     AssertionType = "url_contains"
	AssertCountEquals     AssertionType = "count_equals"
	AssertValueEquals     AssertionType = "value_equals"
)

// Assertion scopes name the evidence field a text assertion reads.
const (
	ScopeFinalAnswer   = "final_answer"
	ScopeToolCall      = "tool_call"
	ScopeStatusMessage = "drupal_status"
	ScopeAlertMessage  = "drupal_alert"
)

// AssertionSpec is one declarative assertion from a manifest or an inline
// `assert-*` scenario line, parsed eagerly into this typed shape at load
// time.
type AssertionSpec struct {
	ID       string        `json:"id" yaml:"id"`
	Type     AssertionType `json:"type" yaml:"type"`
	Severity Severity      `json:"severity,omitempty" yaml:"severity"`
	// Checkpoint names the evidence bundle to evaluate against; empty means
	// the most recent one.
	Checkpoint string `json:"checkpoint,omitempty" yaml:"checkpoint"`

	// text_present / text_absent
	Scope    string   `json:"scope,omitempty" yaml:"scope"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns"`

	// no_drupal_messages
	Level MessageRole `json:"level,omitempty" yaml:"level"`

	// url_contains
	Contains string `json:"contains,omitempty" yaml:"contains"`

	// count_equals
	Selector string `json:"selector,omitempty" yaml:"selector"`
	Count    int    `json:"count,omitempty" yaml:"count"`

	// value_equals: dot path into the parsed tool payload.
	Path     string `json:"path,omitempty" yaml:"path"`
	Expected any    `json:"expected,omitempty" yaml:"expected"`
}

// EffectiveSeverity defaults to fail when unset.
func (s *AssertionSpec) EffectiveSeverity() Severity {
	if s.Severity == SeverityWarn {
		return SeverityWarn
	}
	return SeverityFail
}
