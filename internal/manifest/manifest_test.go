// File: internal/manifest/manifest_test.go
package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

const sampleManifest = `
issue:
  url: https://project.example/issues/4521
  title: "Hero block loses its title after AI edit"
environment:
  base_url: https://site.test
  admin_user: admin
  admin_pass: secret
strategy:
  mode: compare
  between_cmd: "drush cr"
timeouts:
  ai_response_ms: 300000
steps:
  - open: /node/1
  - wait: networkidle
  - checkpoint: before
  - action: run_ai_agent_explorer
    prompt: "Rename the hero block title to Welcome"
    model: test-model
  - checkpoint: after
assertions:
  - id: mentions-welcome
    type: text_present
    scope: final_answer
    checkpoint: after
    patterns: ["Welcome"]
guards:
  - id: no-alerts
    type: no_drupal_messages
adr:
  - "Judge only the modified run."
`

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	m, err := Load(writeManifest(t, "intent.yml", sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "https://site.test", m.Environment.BaseURL)
	assert.Equal(t, ModeCompare, m.Strategy.Mode)
	assert.Equal(t, "drush cr", m.Strategy.BetweenCmd)
	require.Len(t, m.Steps, 5)
	require.Len(t, m.Assertions, 1)
	assert.Equal(t, schemas.AssertTextPresent, m.Assertions[0].Type)
	assert.Equal(t, []string{"Welcome"}, m.Assertions[0].Patterns)
	require.Len(t, m.Guards, 1)
	require.NoError(t, m.Validate())
}

func TestLoadJSON(t *testing.T) {
	content := `{
	  "intent_statement": "verify the explorer answers",
	  "environment": {"base_url": "https://site.test"},
	  "steps": [{"open": "/node/1"}, {"wait": 1.5}]
	}`
	m, err := Load(writeManifest(t, "intent.json", content))
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.True(t, m.Steps[1].Wait.IsSet)
	assert.Equal(t, 1.5, m.Steps[1].Wait.Seconds)
}

func TestNormalizeDefaults(t *testing.T) {
	m := &Manifest{
		Environment: Environment{BaseURL: "https://site.test", AdminUser: "admin"},
		Steps:       []Step{{Open: "/"}},
	}
	m.Normalize()

	assert.Equal(t, ModeSingle, m.Strategy.Mode)
	assert.Equal(t, defaultPageLoadMS, m.Timeouts.PageLoadMS)
	assert.Equal(t, defaultAIResponseMS, m.Timeouts.AIResponseMS)
	assert.Equal(t, defaultLoginPath, m.Environment.LoginURL)
}

func TestNormalizeNoLoginURLWithoutAdminUser(t *testing.T) {
	m := &Manifest{Environment: Environment{BaseURL: "https://site.test"}}
	m.Normalize()
	assert.Empty(t, m.Environment.LoginURL)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	m := &Manifest{Strategy: Strategy{Mode: "parallel"}}
	m.Normalize() // mode already set, stays invalid

	err := m.Validate()
	require.Error(t, err)
	var verr *schemas.ValidationError
	require.ErrorAs(t, err, &verr)

	joined := ""
	for _, p := range verr.Problems {
		joined += p + "\n"
	}
	assert.Contains(t, joined, "issue.url is required")
	assert.Contains(t, joined, "issue.title is required")
	assert.Contains(t, joined, "environment.base_url is required")
	assert.Contains(t, joined, "strategy.mode")
	assert.Contains(t, joined, "steps must not be empty")
}

func TestValidateIntentStatementReplacesIssue(t *testing.T) {
	m := &Manifest{
		IntentStatement: "verify the form renders",
		Environment:     Environment{BaseURL: "https://site.test"},
		Steps:           []Step{{Open: "/"}},
	}
	m.Normalize()
	assert.NoError(t, m.Validate())
}

func TestValidateStepShape(t *testing.T) {
	m := &Manifest{
		IntentStatement: "x",
		Environment:     Environment{BaseURL: "https://site.test"},
		Steps: []Step{
			{Open: "/a", Checkpoint: "both"},
			{},
			{Action: "unknown_action", Prompt: "p"},
			{Action: actionRunAIExplorer},
		},
	}
	m.Normalize()

	err := m.Validate()
	require.Error(t, err)
	var verr *schemas.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 4)
}

func TestToInstructionsPrependsLogin(t *testing.T) {
	m, err := Load(writeManifest(t, "intent.yml", sampleManifest))
	require.NoError(t, err)

	instructions, err := m.ToInstructions()
	require.NoError(t, err)

	// 6 login lines + 5 steps
	require.Len(t, instructions, 11)
	assert.Equal(t, scenario.KindOpen, instructions[0].Kind)
	assert.Equal(t, "/user/login", instructions[0].Path)
	assert.Equal(t, scenario.KindWait, instructions[1].Kind)
	assert.Equal(t, scenario.WaitLoad, instructions[1].WaitMode)
	assert.Equal(t, scenario.KindRaw, instructions[2].Kind, "login fills go through the raw driver path")
	assert.Contains(t, instructions[2].Raw, "Username")
	assert.Contains(t, instructions[3].Raw, "Password")
	assert.Contains(t, instructions[4].Raw, "Log in")

	assert.Equal(t, scenario.KindOpen, instructions[6].Kind)
	assert.Equal(t, "/node/1", instructions[6].Path)
	assert.Equal(t, scenario.WaitLoad, instructions[7].WaitMode)
	assert.Equal(t, schemas.LoadNetworkIdle, instructions[7].LoadState)
	assert.Equal(t, scenario.KindCheckpoint, instructions[8].Kind)
	assert.Equal(t, "before", instructions[8].Name)

	ai := instructions[9]
	require.Equal(t, scenario.KindAIExplore, ai.Kind)
	require.NotNil(t, ai.AIExplore)
	assert.Equal(t, "Rename the hero block title to Welcome", ai.AIExplore.Prompt)
	assert.Equal(t, "test-model", ai.AIExplore.Model)
	assert.Equal(t, 300000, ai.AIExplore.CompletionTimeoutMS)

	assert.Equal(t, scenario.KindCheckpoint, instructions[10].Kind)
}

func TestLoginInstructionsDefaultsLoginPath(t *testing.T) {
	instructions, err := LoginInstructions(Environment{
		AdminUser: "admin",
		AdminPass: "secret",
	})
	require.NoError(t, err)
	require.Len(t, instructions, 6)
	assert.Equal(t, scenario.KindOpen, instructions[0].Kind)
	assert.Equal(t, "/user/login", instructions[0].Path)
	assert.Contains(t, instructions[2].Raw, "admin")
}

func TestToInstructionsWithoutAdminSkipsLogin(t *testing.T) {
	m := &Manifest{
		IntentStatement: "x",
		Environment:     Environment{BaseURL: "https://site.test"},
		Steps:           []Step{{Open: "/node/1"}},
	}
	m.Normalize()

	instructions, err := m.ToInstructions()
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	assert.Equal(t, scenario.KindOpen, instructions[0].Kind)
}

func TestToInstructionsWaitForms(t *testing.T) {
	m := &Manifest{
		IntentStatement: "x",
		Environment:     Environment{BaseURL: "https://site.test"},
		Steps: []Step{
			{Wait: WaitValue{IsSet: true, Seconds: 2.5}},
			{Wait: WaitValue{IsSet: true, Token: "networkidle"}},
			{Wait: WaitValue{IsSet: true, Token: "#main-content"}},
		},
	}
	m.Normalize()

	instructions, err := m.ToInstructions()
	require.NoError(t, err)
	require.Len(t, instructions, 3)

	assert.Equal(t, scenario.WaitSleep, instructions[0].WaitMode)
	assert.Equal(t, 2.5, instructions[0].Seconds)
	assert.Equal(t, scenario.WaitLoad, instructions[1].WaitMode)
	assert.Equal(t, scenario.WaitSelector, instructions[2].WaitMode)
	assert.Equal(t, "#main-content", instructions[2].Locator.Value)
}

func TestToInstructionsNamesCarryNoQuotes(t *testing.T) {
	m := &Manifest{
		IntentStatement: "x",
		Environment:     Environment{BaseURL: "https://site.test"},
		Steps: []Step{
			{Checkpoint: "before"},
			{Snapshot: "after save"},
			{Screenshot: "shot"},
		},
	}
	m.Normalize()

	instructions, err := m.ToInstructions()
	require.NoError(t, err)
	require.Len(t, instructions, 3)

	// Names become file names; the quotes from lowering must not survive.
	assert.Equal(t, "before", instructions[0].Name)
	assert.Equal(t, "after save", instructions[1].Name)
	assert.Equal(t, "shot.png", instructions[2].Name)
	for _, in := range instructions {
		assert.NotContains(t, in.Name, `"`)
	}
}

func TestToInstructionsCommandStep(t *testing.T) {
	m := &Manifest{
		IntentStatement: "x",
		Environment:     Environment{BaseURL: "https://site.test"},
		Steps: []Step{
			{Command: `assert-url --contains /node/1`},
			{Command: `find label "Title" fill "Updated"`},
		},
	}
	m.Normalize()

	instructions, err := m.ToInstructions()
	require.NoError(t, err)
	require.Len(t, instructions, 2)
	assert.Equal(t, scenario.KindAssert, instructions[0].Kind)
	assert.Equal(t, scenario.KindRaw, instructions[1].Kind)
}

func TestJudgeRun(t *testing.T) {
	m := &Manifest{}
	m.Normalize()
	assert.Equal(t, "single", m.JudgeRun())

	m.Strategy.Mode = ModeCompare
	assert.Equal(t, "modified", m.JudgeRun())

	m.Judge.Run = "baseline"
	assert.Equal(t, "baseline", m.JudgeRun())
}
