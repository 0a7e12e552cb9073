// File: internal/scenario/parser.go
// Description: Parses the line-oriented scenario language into typed
// instructions. Parsing is fail-fast: a malformed line rejects the whole
// scenario before any browser action is issued.

package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// ParseFile parses a scenario script from disk.
func ParseFile(path string) ([]Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// ParseString parses a scenario held in memory.
func ParseString(text string) ([]Instruction, error) {
	return Parse(strings.NewReader(text))
}

// Parse reads one instruction per line. Blank lines and '#' comments are
// ignored. Unknown keywords become raw passthrough instructions.
func Parse(r io.Reader) ([]Instruction, error) {
	var instrs []Instruction
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		instr, err := parseLine(lineNum, line)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return instrs, nil
}

// ParseLine parses a single instruction line, for manifest `command` steps.
func ParseLine(lineNum int, line string) (Instruction, error) {
	return parseLine(lineNum, strings.TrimSpace(line))
}

func parseLine(lineNum int, line string) (Instruction, error) {
	fail := func(reason string) (Instruction, error) {
		return Instruction{}, &schemas.ParseError{Line: lineNum, Content: line, Reason: reason}
	}

	parts := strings.SplitN(line, " ", 2)
	keyword := strings.ToLower(parts[0])
	rest := ""
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}

	base := Instruction{Line: lineNum, Raw: line}

	switch {
	case keyword == "open":
		if rest == "" {
			return fail("open requires a path")
		}
		tokens, err := splitTokens(rest)
		if err != nil {
			return fail(err.Error())
		}
		if len(tokens) != 1 {
			return fail("open takes exactly one path")
		}
		base.Kind = KindOpen
		base.Path = tokens[0]
		return base, nil

	case keyword == "wait", keyword == "expect":
		instr, err := parseWait(base, rest, keyword == "expect")
		if err != nil {
			return fail(err.Error())
		}
		return instr, nil

	case keyword == "checkpoint", keyword == "snapshot":
		name, err := nameArg(rest)
		if err != nil {
			return fail(err.Error())
		}
		if name == "" {
			return fail(keyword + " requires a name")
		}
		if keyword == "checkpoint" {
			base.Kind = KindCheckpoint
		} else {
			base.Kind = KindSnapshot
		}
		base.Name = name
		return base, nil

	case keyword == "screenshot":
		name, err := nameArg(rest)
		if err != nil {
			return fail(err.Error())
		}
		if name == "" {
			return fail("screenshot requires a file name")
		}
		base.Kind = KindScreenshot
		if !strings.HasSuffix(strings.ToLower(name), ".png") {
			name += ".png"
		}
		base.Name = name
		return base, nil

	case strings.HasPrefix(keyword, "assert-"):
		instr, err := parseAssert(base, keyword, rest)
		if err != nil {
			return fail(err.Error())
		}
		return instr, nil

	case keyword == "extract":
		instr, err := parseExtract(base, rest)
		if err != nil {
			return fail(err.Error())
		}
		return instr, nil

	case keyword == "probe":
		instr, err := parseProbe(base, rest)
		if err != nil {
			return fail(err.Error())
		}
		return instr, nil

	default:
		// Unrecognized lines are forwarded verbatim to the driver.
		base.Kind = KindRaw
		return base, nil
	}
}

// nameArg tokenizes a trailing name argument. Quotes around the name (as
// manifest lowering emits) are stripped; names become file names, so they
// must never carry literal quote characters.
func nameArg(rest string) (string, error) {
	tokens, err := splitTokens(rest)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, " "), nil
}

func parseWait(base Instruction, rest string, isExpect bool) (Instruction, error) {
	base.Kind = KindWait
	if isExpect {
		base.Kind = KindExpect
	}

	if rest == "" {
		if isExpect {
			return Instruction{}, fmt.Errorf("expect requires an argument")
		}
		base.WaitMode = WaitSleep
		base.Seconds = 1.0
		return base, nil
	}

	tokens, err := splitTokens(rest)
	if err != nil {
		return Instruction{}, err
	}

	// Bare numeric form: fixed delay (wait only).
	if !isExpect && len(tokens) == 1 {
		if secs, err := strconv.ParseFloat(tokens[0], 64); err == nil {
			if secs < 0 {
				return Instruction{}, fmt.Errorf("wait duration must not be negative")
			}
			base.WaitMode = WaitSleep
			base.Seconds = secs
			return base, nil
		}
	}

	// Legacy expect spellings: "expect text <t>" / "expect selector <s>".
	if isExpect && len(tokens) >= 2 && !strings.HasPrefix(tokens[0], "--") {
		switch strings.ToLower(tokens[0]) {
		case "text":
			base.WaitMode = WaitText
			base.Text = strings.Join(tokens[1:], " ")
			return base, nil
		case "selector":
			base.WaitMode = WaitSelector
			base.Locator = schemas.Locator{Kind: schemas.LocatorSelector, Value: tokens[1]}
			return base, nil
		}
	}

	var value string
	var ok bool
	tokens, value, ok, err = popFlag(tokens, "--load")
	if err != nil {
		return Instruction{}, err
	}
	if ok {
		state := schemas.LoadState(value)
		switch state {
		case schemas.LoadDOMContentLoaded, schemas.LoadComplete, schemas.LoadNetworkIdle:
		default:
			return Instruction{}, fmt.Errorf("unknown load state %q", value)
		}
		base.WaitMode = WaitLoad
		base.LoadState = state
		return base, nil
	}

	tokens, value, ok, err = popFlag(tokens, "--text")
	if err != nil {
		return Instruction{}, err
	}
	if ok {
		base.WaitMode = WaitText
		base.Text = value
		return base, nil
	}

	// A bare selector is accepted as an element-presence wait.
	if len(tokens) == 1 {
		base.WaitMode = WaitSelector
		base.Locator = schemas.Locator{Kind: schemas.LocatorSelector, Value: tokens[0]}
		return base, nil
	}

	return Instruction{}, fmt.Errorf("unrecognized wait form")
}

func parseAssert(base Instruction, keyword, rest string) (Instruction, error) {
	tokens, err := splitTokens(rest)
	if err != nil {
		return Instruction{}, err
	}

	spec := &schemas.AssertionSpec{Severity: schemas.SeverityFail}

	var id string
	var ok bool
	tokens, id, ok, err = popFlag(tokens, "--id")
	if err != nil {
		return Instruction{}, err
	}
	if ok {
		spec.ID = id
	}
	var sev string
	tokens, sev, ok, err = popFlag(tokens, "--severity")
	if err != nil {
		return Instruction{}, err
	}
	if ok {
		switch schemas.Severity(sev) {
		case schemas.SeverityFail, schemas.SeverityWarn:
			spec.Severity = schemas.Severity(sev)
		default:
			return Instruction{}, fmt.Errorf("unknown severity %q", sev)
		}
	}

	var text, selector string
	var hasText, hasSelector bool
	tokens, text, hasText, err = popFlag(tokens, "--text")
	if err != nil {
		return Instruction{}, err
	}
	tokens, selector, hasSelector, err = popFlag(tokens, "--selector")
	if err != nil {
		return Instruction{}, err
	}

	switch keyword {
	case "assert-present", "assert-absent":
		if keyword == "assert-present" {
			spec.Type = schemas.AssertTextPresent
		} else {
			spec.Type = schemas.AssertTextAbsent
		}
		switch {
		case hasText:
			spec.Patterns = []string{text}
		case hasSelector:
			spec.Selector = selector
		default:
			return Instruction{}, fmt.Errorf("%s requires --text or --selector", keyword)
		}

	case "assert-no-js-errors":
		spec.Type = schemas.AssertNoConsoleErrors

	case "assert-no-drupal-alerts":
		spec.Type = schemas.AssertNoPageMessages
		spec.Level = schemas.MessageAlert

	case "assert-url":
		var contains string
		tokens, contains, ok, err = popFlag(tokens, "--contains")
		if err != nil {
			return Instruction{}, err
		}
		if !ok {
			return Instruction{}, fmt.Errorf("assert-url requires --contains")
		}
		spec.Type = schemas.AssertURLContains
		spec.Contains = contains

	case "assert-count":
		var eq string
		tokens, eq, ok, err = popFlag(tokens, "--eq")
		if err != nil {
			return Instruction{}, err
		}
		if !hasSelector || !ok {
			return Instruction{}, fmt.Errorf("assert-count requires --selector and --eq")
		}
		n, convErr := strconv.Atoi(eq)
		if convErr != nil {
			return Instruction{}, fmt.Errorf("assert-count --eq must be an integer")
		}
		spec.Type = schemas.AssertCountEquals
		spec.Selector = selector
		spec.Count = n

	default:
		return Instruction{}, fmt.Errorf("unknown assertion keyword %q", keyword)
	}

	if len(tokens) > 0 {
		return Instruction{}, fmt.Errorf("unexpected tokens after %s: %s", keyword, strings.Join(tokens, " "))
	}
	base.Kind = KindAssert
	base.Assert = spec
	return base, nil
}

func parseExtract(base Instruction, rest string) (Instruction, error) {
	tokens, err := splitTokens(rest)
	if err != nil {
		return Instruction{}, err
	}
	if len(tokens) < 3 {
		return Instruction{}, fmt.Errorf("extract requires a type, a name and an argument")
	}
	base.Kind = KindExtract
	base.Name = tokens[1]
	switch tokens[0] {
	case "eval":
		base.ExtractKind = "eval"
		base.Expr = strings.Join(tokens[2:], " ")
	case "text":
		base.ExtractKind = "text"
		loc, err := parseLocator(tokens[2:])
		if err != nil {
			return Instruction{}, err
		}
		base.Locator = loc
	default:
		return Instruction{}, fmt.Errorf("unknown extract type %q", tokens[0])
	}
	return base, nil
}

func parseProbe(base Instruction, rest string) (Instruction, error) {
	tokens, err := splitTokens(rest)
	if err != nil {
		return Instruction{}, err
	}
	if len(tokens) < 2 {
		return Instruction{}, fmt.Errorf("probe requires a type and a name")
	}
	kind := tokens[0]
	base.Kind = KindProbe
	base.Name = tokens[1]

	args := tokens[2:]
	for i, tok := range args {
		if tok == "--" {
			args = args[i+1:]
			break
		}
	}
	switch kind {
	case "shell":
		if len(args) == 0 {
			return Instruction{}, fmt.Errorf("probe shell requires a command")
		}
		base.ProbeArgv = args
	case "drush":
		if len(args) == 0 {
			return Instruction{}, fmt.Errorf("probe drush requires arguments")
		}
		base.ProbeArgv = append([]string{"drush"}, args...)
	default:
		return Instruction{}, fmt.Errorf("unknown probe type %q", kind)
	}
	return base, nil
}

// parseLocator reads a locator from tokens: "label <text>", "role <role>
// [--name <n>]", "text <t>", or a bare CSS selector.
func parseLocator(tokens []string) (schemas.Locator, error) {
	if len(tokens) == 0 {
		return schemas.Locator{}, fmt.Errorf("empty locator")
	}
	switch strings.ToLower(tokens[0]) {
	case "label", "text":
		if len(tokens) < 2 {
			return schemas.Locator{}, fmt.Errorf("%s locator requires a value", tokens[0])
		}
		return schemas.Locator{
			Kind:  schemas.LocatorKind(strings.ToLower(tokens[0])),
			Value: strings.Join(tokens[1:], " "),
		}, nil
	case "role":
		if len(tokens) < 2 {
			return schemas.Locator{}, fmt.Errorf("role locator requires a role")
		}
		loc := schemas.Locator{Kind: schemas.LocatorRole, Value: tokens[1]}
		rest, name, ok, err := popFlag(tokens[2:], "--name")
		if err != nil {
			return schemas.Locator{}, err
		}
		if ok {
			loc.Name = name
		}
		if len(rest) > 0 {
			return schemas.Locator{}, fmt.Errorf("unexpected tokens after role locator: %s", strings.Join(rest, " "))
		}
		return loc, nil
	default:
		return schemas.Locator{Kind: schemas.LocatorSelector, Value: strings.Join(tokens, " ")}, nil
	}
}
