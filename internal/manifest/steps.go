// File: internal/manifest/steps.go
// Description: Manifest steps and their lowering to scenario instructions.
// Steps are a thin declarative layer; everything executable goes through the
// same parser as hand-written scenario scripts.

package manifest

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

// WaitValue accepts either a number of seconds or a wait token
// ("networkidle", a selector) from the manifest.
type WaitValue struct {
	Seconds float64
	Token   string
	IsSet   bool
}

func (w *WaitValue) UnmarshalYAML(node *yaml.Node) error {
	w.IsSet = true
	var f float64
	if err := node.Decode(&f); err == nil {
		w.Seconds = f
		return nil
	}
	return node.Decode(&w.Token)
}

func (w *WaitValue) UnmarshalJSON(data []byte) error {
	w.IsSet = true
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		w.Seconds = f
		return nil
	}
	return json.Unmarshal(data, &w.Token)
}

// Step is one manifest step. Exactly one of the leading fields is set.
type Step struct {
	Open       string    `yaml:"open" json:"open"`
	Wait       WaitValue `yaml:"wait" json:"wait"`
	Checkpoint string    `yaml:"checkpoint" json:"checkpoint"`
	Snapshot   string    `yaml:"snapshot" json:"snapshot"`
	Screenshot string    `yaml:"screenshot" json:"screenshot"`
	Command    string    `yaml:"command" json:"command"`
	Action     string    `yaml:"action" json:"action"`

	// run_ai_agent_explorer parameters
	Prompt          string   `yaml:"prompt" json:"prompt"`
	PromptSelector  string   `yaml:"prompt_selector" json:"prompt_selector"`
	Model           string   `yaml:"model" json:"model"`
	ModelSelector   string   `yaml:"model_selector" json:"model_selector"`
	RunButtons      []string `yaml:"run_buttons" json:"run_buttons"`
	CompletionTexts []string `yaml:"completion_texts" json:"completion_texts"`
	StableMS        int      `yaml:"stable_ms" json:"stable_ms"`
	PreMinCount     int      `yaml:"pre_min_count" json:"pre_min_count"`
}

func (s *Step) check() error {
	set := 0
	for _, present := range []bool{
		s.Open != "", s.Wait.IsSet, s.Checkpoint != "", s.Snapshot != "",
		s.Screenshot != "", s.Command != "", s.Action != "",
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of open/wait/checkpoint/snapshot/screenshot/command/action must be set")
	}
	if s.Action != "" {
		if s.Action != actionRunAIExplorer {
			return fmt.Errorf("unknown action %q", s.Action)
		}
		if s.Prompt == "" {
			return fmt.Errorf("action %s requires a prompt", actionRunAIExplorer)
		}
	}
	return nil
}

// ToInstructions lowers the manifest to executable instructions, prepending
// login steps when admin credentials are configured.
func (m *Manifest) ToInstructions() ([]scenario.Instruction, error) {
	var out []scenario.Instruction
	line := 0

	add := func(raw string) error {
		line++
		ins, err := scenario.ParseLine(line, raw)
		if err != nil {
			return err
		}
		out = append(out, ins)
		return nil
	}

	if m.Environment.AdminUser != "" {
		for _, raw := range loginLines(m.Environment) {
			if err := add(raw); err != nil {
				return nil, err
			}
		}
	}

	for i, step := range m.Steps {
		if err := step.check(); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		switch {
		case step.Open != "":
			if err := add("open " + step.Open); err != nil {
				return nil, err
			}
		case step.Wait.IsSet:
			if err := add(waitLine(step.Wait)); err != nil {
				return nil, err
			}
		case step.Checkpoint != "":
			if err := add(fmt.Sprintf("checkpoint %q", step.Checkpoint)); err != nil {
				return nil, err
			}
		case step.Snapshot != "":
			if err := add(fmt.Sprintf("snapshot %q", step.Snapshot)); err != nil {
				return nil, err
			}
		case step.Screenshot != "":
			if err := add(fmt.Sprintf("screenshot %q", step.Screenshot)); err != nil {
				return nil, err
			}
		case step.Command != "":
			if err := add(step.Command); err != nil {
				return nil, err
			}
		case step.Action != "":
			line++
			out = append(out, m.aiExploreInstruction(line, &step))
		}
	}
	return out, nil
}

func (m *Manifest) aiExploreInstruction(line int, step *Step) scenario.Instruction {
	return scenario.Instruction{
		Kind: scenario.KindAIExplore,
		Line: line,
		Raw:  "action " + actionRunAIExplorer,
		AIExplore: &scenario.AIExploreParams{
			Prompt:              step.Prompt,
			PromptSelector:      step.PromptSelector,
			Model:               step.Model,
			ModelSelector:       step.ModelSelector,
			RunButtons:          step.RunButtons,
			CompletionTexts:     step.CompletionTexts,
			CompletionTimeoutMS: m.Timeouts.AIResponseMS,
			StableMS:            step.StableMS,
			PreMinCount:         step.PreMinCount,
		},
	}
}

func waitLine(w WaitValue) string {
	if w.Token == "" {
		return fmt.Sprintf("wait %g", w.Seconds)
	}
	switch schemas.LoadState(w.Token) {
	case schemas.LoadDOMContentLoaded, schemas.LoadComplete, schemas.LoadNetworkIdle:
		return "wait --load " + w.Token
	}
	return fmt.Sprintf("wait %q", w.Token)
}

// LoginInstructions lowers the admin login sequence on its own, for callers
// that need an authenticated session without a full manifest.
func LoginInstructions(env Environment) ([]scenario.Instruction, error) {
	if env.LoginURL == "" {
		env.LoginURL = defaultLoginPath
	}
	var out []scenario.Instruction
	for i, raw := range loginLines(env) {
		ins, err := scenario.ParseLine(i+1, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, nil
}

// loginLines produces the standard admin login sequence.
func loginLines(env Environment) []string {
	return []string{
		"open " + env.LoginURL,
		"wait --load networkidle",
		fmt.Sprintf("find label \"Username\" fill %q", env.AdminUser),
		fmt.Sprintf("find label \"Password\" fill %q", env.AdminPass),
		`find role button --name "Log in" click`,
		"wait --load networkidle",
	}
}
