// File: internal/manifest/manifest.go
// Description: Declarative test manifests. A manifest names the issue under
// test, the target environment, the scripted steps, and the assertions that
// decide the verdict.

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

const (
	ModeSingle  = "single"
	ModeCompare = "compare"

	defaultLoginPath    = "/user/login"
	defaultPageLoadMS   = 120000
	defaultAIResponseMS = 600000
	actionRunAIExplorer = "run_ai_agent_explorer"
)

// Issue identifies what is being verified.
type Issue struct {
	URL   string `yaml:"url" json:"url"`
	Title string `yaml:"title" json:"title"`
}

// Environment describes the site under test.
type Environment struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	AdminUser string `yaml:"admin_user" json:"admin_user"`
	AdminPass string `yaml:"admin_pass" json:"admin_pass"`
	LoginURL  string `yaml:"login_url" json:"login_url"`
}

// Strategy selects single or compare execution.
type Strategy struct {
	Mode       string `yaml:"mode" json:"mode"`
	Retries    int    `yaml:"retries" json:"retries"`
	BeforeCmd  string `yaml:"before_cmd" json:"before_cmd"`
	BetweenCmd string `yaml:"between_cmd" json:"between_cmd"`
	AfterCmd   string `yaml:"after_cmd" json:"after_cmd"`
}

// Timeouts carries the manifest-level wait budgets in milliseconds.
type Timeouts struct {
	PageLoadMS   int `yaml:"page_load_ms" json:"page_load_ms"`
	AIResponseMS int `yaml:"ai_response_ms" json:"ai_response_ms"`
}

// JudgeConfig selects which run of a compare pair the verdict reads.
type JudgeConfig struct {
	Run string `yaml:"run" json:"run"`
}

// Manifest is one fully parsed test manifest.
type Manifest struct {
	Issue           Issue                    `yaml:"issue" json:"issue"`
	IntentStatement string                   `yaml:"intent_statement" json:"intent_statement"`
	Environment     Environment              `yaml:"environment" json:"environment"`
	Strategy        Strategy                 `yaml:"strategy" json:"strategy"`
	Timeouts        Timeouts                 `yaml:"timeouts" json:"timeouts"`
	Steps           []Step                   `yaml:"steps" json:"steps"`
	Assertions      []*schemas.AssertionSpec `yaml:"assertions" json:"assertions"`
	Guards          []*schemas.AssertionSpec `yaml:"guards" json:"guards"`
	ADR             []string                 `yaml:"adr" json:"adr"`
	Judge           JudgeConfig              `yaml:"judge" json:"judge"`
}

// Load reads, parses and normalizes a manifest file. JSON manifests are
// recognized by extension; everything else parses as YAML.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m := &Manifest{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
	}

	m.Normalize()
	return m, nil
}

// Normalize fills in defaults. Called by Load; exported for manifests built
// in code.
func (m *Manifest) Normalize() {
	if m.Strategy.Mode == "" {
		m.Strategy.Mode = ModeSingle
	}
	if m.Timeouts.PageLoadMS <= 0 {
		m.Timeouts.PageLoadMS = defaultPageLoadMS
	}
	if m.Timeouts.AIResponseMS <= 0 {
		m.Timeouts.AIResponseMS = defaultAIResponseMS
	}
	if m.Environment.AdminUser != "" && m.Environment.LoginURL == "" {
		m.Environment.LoginURL = defaultLoginPath
	}
}

// Validate checks the manifest for usability. All problems are collected so
// a broken manifest is fixed in one pass, not one error at a time.
func (m *Manifest) Validate() error {
	var problems []string

	if m.IntentStatement == "" {
		if m.Issue.URL == "" {
			problems = append(problems, "issue.url is required when intent_statement is not set")
		}
		if m.Issue.Title == "" {
			problems = append(problems, "issue.title is required when intent_statement is not set")
		}
	}
	if m.Environment.BaseURL == "" {
		problems = append(problems, "environment.base_url is required")
	}
	switch m.Strategy.Mode {
	case ModeSingle, ModeCompare:
	default:
		problems = append(problems, fmt.Sprintf("strategy.mode must be %q or %q, got %q", ModeSingle, ModeCompare, m.Strategy.Mode))
	}
	if len(m.Steps) == 0 {
		problems = append(problems, "steps must not be empty")
	}
	for i, step := range m.Steps {
		if err := step.check(); err != nil {
			problems = append(problems, fmt.Sprintf("steps[%d]: %v", i, err))
		}
	}
	for i, spec := range m.Assertions {
		if spec == nil || spec.Type == "" {
			problems = append(problems, fmt.Sprintf("assertions[%d]: type is required", i))
		}
	}
	for i, spec := range m.Guards {
		if spec == nil || spec.Type == "" {
			problems = append(problems, fmt.Sprintf("guards[%d]: type is required", i))
		}
	}

	if len(problems) > 0 {
		return &schemas.ValidationError{Problems: problems}
	}
	return nil
}

// JudgeRun resolves which run's record the verdict reads.
func (m *Manifest) JudgeRun() string {
	if m.Judge.Run != "" {
		return m.Judge.Run
	}
	if m.Strategy.Mode == ModeCompare {
		return "modified"
	}
	return "single"
}
