// File: internal/scenario/instruction.go
package scenario

import (
	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// Kind tags the variant of a parsed instruction.
type Kind string

const (
	KindOpen       Kind = "open"
	KindWait       Kind = "wait"
	KindCheckpoint Kind = "checkpoint"
	KindSnapshot   Kind = "snapshot"
	KindScreenshot Kind = "screenshot"
	KindExpect     Kind = "expect"
	KindAssert     Kind = "assert"
	KindExtract    Kind = "extract"
	KindProbe      Kind = "probe"
	// KindRaw is the deliberate escape hatch: the line is forwarded verbatim
	// to the driver and fails loudly at run time if unsupported.
	KindRaw Kind = "raw"
	// KindAIExplore drives the AI-explorer form deterministically (set
	// prompt, click run, await completion). Model prompting stays external.
	KindAIExplore Kind = "ai_explore"
)

// WaitMode distinguishes the three wait forms.
type WaitMode string

const (
	WaitSleep    WaitMode = "sleep"
	WaitLoad     WaitMode = "load"
	WaitText     WaitMode = "text"
	WaitSelector WaitMode = "selector"
)

// Instruction is one parsed scenario step. Immutable once parsed; consumed
// only by the runner.
type Instruction struct {
	Kind Kind
	Line int
	Raw  string

	// open
	Path string

	// wait / expect
	WaitMode  WaitMode
	Seconds   float64
	LoadState schemas.LoadState
	Text      string

	// checkpoint / snapshot / screenshot / extract / probe
	Name string

	// assert-*
	Assert *schemas.AssertionSpec

	// extract
	ExtractKind string // eval | text
	Expr        string
	Locator     schemas.Locator

	// probe
	ProbeArgv []string

	// ai explorer action
	AIExplore *AIExploreParams
}

// AIExploreParams parameterizes the deterministic AI-explorer driving step.
type AIExploreParams struct {
	Prompt              string
	PromptSelector      string
	Model               string
	ModelSelector       string
	RunButtons          []string
	CompletionTexts     []string
	CompletionTimeoutMS int
	StabilizeTimeoutMS  int
	StableMS            int
	PreMinCount         int
}
