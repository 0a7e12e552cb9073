package schemas

import (
	"encoding/json"
	"time"
)

// -- Evidence Schemas --

// MessageRole classifies a page status message by its ARIA role.
type MessageRole string

const (
	MessageStatus MessageRole = "status"
	MessageAlert  MessageRole = "alert"
)

// StatusMessage is one status/alert region's text, recorded verbatim in
// document order.
type StatusMessage struct {
	Role MessageRole `json:"role"`
	Text string      `json:"text"`
}

// ProbeResult captures one opaque backend probe invocation. A nonzero exit
// code is evidence, not an error.
type ProbeResult struct {
	Command  string    `json:"command"`
	Argv     []string  `json:"argv,omitempty"`
	Dir      string    `json:"dir,omitempty"`
	ExitCode int       `json:"exit_code"`
	Stdout   string    `json:"stdout"`
	Stderr   string    `json:"stderr"`
	RanAt    time.Time `json:"ran_at"`
	// Err is set when the command could not be started at all.
	Err string `json:"error,omitempty"`
}

// AIOutputSummary is a pattern-based analysis of AI-explorer output. It is
// attached as evidence; it never decides a verdict by itself.
type AIOutputSummary struct {
	FinalAnswerLen      int      `json:"final_answer_len"`
	ToolPayloadLen      int      `json:"tool_payload_len"`
	RawInFinalAnswer    bool     `json:"raw_in_final_answer"`
	RawInToolPayload    bool     `json:"raw_in_tool_payload"`
	RawMatchesFinal     []string `json:"raw_matches_final_answer,omitempty"`
	RawMatchesTool      []string `json:"raw_matches_tool_payload,omitempty"`
	LabelTermsPresent   []string `json:"label_terms_present_in_final_answer,omitempty"`
	Empty               bool     `json:"empty"`
	EmptyReason         string   `json:"empty_reason,omitempty"`
}

// AIExplorerExtract is the optional AI-explorer text extraction of a
// checkpoint: the ordered message blocks plus derived final answer and tool
// payload.
type AIExplorerExtract struct {
	PreTexts    []string        `json:"pre_texts"`
	FinalAnswer string          `json:"final_answer,omitempty"`
	ToolPayload string          `json:"tool_payload,omitempty"`
	Model       string          `json:"model,omitempty"`
	Summary     AIOutputSummary `json:"summary"`
}

// EvidenceBundle is the immutable artifact set captured at one checkpoint.
// It is written once under the checkpoint name and never mutated afterwards.
type EvidenceBundle struct {
	Name           string             `json:"name"`
	CapturedAt     time.Time          `json:"captured_at"`
	URL            string             `json:"url"`
	Full           bool               `json:"full"`
	Snapshot       *AXSnapshot        `json:"snapshot,omitempty"`
	ScreenshotPath string             `json:"screenshot_path,omitempty"`
	Console        []ConsoleMessage   `json:"console"`
	JSErrors       []RuntimeError     `json:"js_errors"`
	Messages       []StatusMessage    `json:"messages"`
	AIExplorer     *AIExplorerExtract `json:"ai_explorer,omitempty"`
	Probes         []ProbeResult      `json:"probes,omitempty"`
}

// MessagesByRole returns the texts of messages with the given role, in
// document order.
func (b *EvidenceBundle) MessagesByRole(role MessageRole) []string {
	var out []string
	for _, m := range b.Messages {
		if m.Role == role {
			out = append(out, m.Text)
		}
	}
	return out
}

// ExtractedValue is a named value captured by an `extract` instruction.
type ExtractedValue struct {
	Name       string          `json:"name"`
	Kind       string          `json:"kind"` // eval | text
	Value      json.RawMessage `json:"value"`
	CapturedAt time.Time       `json:"captured_at"`
}
