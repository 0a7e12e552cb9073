package schemas

import "time"

// -- Comparison Report Schemas --

// ElementDescriptor is a normalized accessibility-tree entry used for
// low-noise snapshot diffing: refs are discarded because they renumber
// between runs.
type ElementDescriptor struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// ElementDelta counts occurrences of a (role, name) pair added or removed
// between baseline and modified.
type ElementDelta struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SnapshotDiff summarizes how the normalized snapshot changed at one
// checkpoint.
type SnapshotDiff struct {
	Same          bool           `json:"same"`
	BaselineCount int            `json:"baseline_count"`
	ModifiedCount int            `json:"modified_count"`
	Added         []ElementDelta `json:"added,omitempty"`
	Removed       []ElementDelta `json:"removed,omitempty"`
	DiffLines     []string       `json:"diff_lines,omitempty"`
}

// FieldDiff is a generic same/changed record with optional unified-diff
// context.
type FieldDiff struct {
	Same      bool     `json:"same"`
	Baseline  string   `json:"baseline,omitempty"`
	Modified  string   `json:"modified,omitempty"`
	DiffLines []string `json:"diff_lines,omitempty"`
}

// ProbeDiff compares the n-th probe of a checkpoint between runs.
type ProbeDiff struct {
	Index      int      `json:"index"`
	Same       bool     `json:"same"`
	ExitCodes  [2]int   `json:"exit_codes"`
	StdoutDiff []string `json:"stdout_diff,omitempty"`
	StderrDiff []string `json:"stderr_diff,omitempty"`
	Missing    string   `json:"missing,omitempty"` // baseline | modified
}

// CheckpointDiff is the field-by-field comparison of one checkpoint name
// present in both runs.
type CheckpointDiff struct {
	Name     string        `json:"name"`
	Changed  bool          `json:"changed"`
	URL      *FieldDiff    `json:"url,omitempty"`
	Snapshot *SnapshotDiff `json:"snapshot,omitempty"`
	// Messages and console errors compare as sets: ordering of asynchronous
	// status messages is not stable between runs.
	Messages *FieldDiff  `json:"messages,omitempty"`
	Console  *FieldDiff  `json:"console,omitempty"`
	JSErrors *FieldDiff  `json:"js_errors,omitempty"`
	AI       *FieldDiff  `json:"ai_explorer,omitempty"`
	Probes   []ProbeDiff `json:"probes,omitempty"`
}

// MissingCheckpoint records a checkpoint present in only one run. These are
// reported, never silently dropped.
type MissingCheckpoint struct {
	Name       string `json:"name"`
	InBaseline bool   `json:"in_baseline"`
	InModified bool   `json:"in_modified"`
}

// ExtractDiff is a structural diff of one named extracted value.
type ExtractDiff struct {
	Name string `json:"name"`
	Same bool   `json:"same"`
	Diff string `json:"diff,omitempty"`
}

// AssertionChange records an assertion whose pass/fail status changed
// between runs.
type AssertionChange struct {
	ID             string `json:"id"`
	BaselinePassed bool   `json:"baseline_passed"`
	ModifiedPassed bool   `json:"modified_passed"`
}

// CompareSummary aggregates the comparison counters. The comparator reports
// differences only; whether a difference is good or bad is the caller's
// assertion set's decision.
type CompareSummary struct {
	CheckpointsTotal int `json:"checkpoints_total"`
	Matching         int `json:"matching"`
	Changed          int `json:"changed"`
	Missing          int `json:"missing"`
	Errors           int `json:"errors"`
}

// ComparisonReport pairs a baseline and a modified run and their structural
// diff.
type ComparisonReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	BaseURL     string    `json:"base_url"`
	Script      string    `json:"script,omitempty"`

	Baseline *RunRecord `json:"baseline"`
	Modified *RunRecord `json:"modified"`

	// Shell hook results (before/between/after commands). Best-effort: a
	// failed hook is recorded but does not abort the modified run.
	Shell map[string]*ProbeResult `json:"shell,omitempty"`

	Checkpoints        map[string]*CheckpointDiff `json:"checkpoints"`
	MatchingNames      []string                   `json:"matching_checkpoints"`
	ChangedNames       []string                   `json:"changed_checkpoints"`
	MissingCheckpoints []MissingCheckpoint        `json:"missing_checkpoints,omitempty"`
	Extracts           []ExtractDiff              `json:"extracts,omitempty"`
	AssertionChanges   []AssertionChange          `json:"assertion_changes,omitempty"`

	Summary CompareSummary `json:"summary"`
}
