// File: internal/driver/raw.go
// Description: Interprets raw passthrough command lines. The supported
// grammar mirrors interactive driving: "find <locator> <action> [value]"
// plus the "click/fill/press <selector>" shorthands. Anything else fails
// loudly so typos in scenarios never pass silently.

package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/scenario"
)

// rawCommand is one parsed raw line.
type rawCommand struct {
	Locator schemas.Locator
	Action  schemas.ElementAction
	Value   string
}

// Raw executes a raw command line against the page.
func (s *Session) Raw(ctx context.Context, line string) error {
	cmd, err := parseRawCommand(line)
	if err != nil {
		return &schemas.DriverError{Op: fmt.Sprintf("raw %q", line), Err: err}
	}
	ref, err := s.Find(ctx, cmd.Locator)
	if err != nil {
		return err
	}
	return s.Act(ctx, ref, cmd.Action, cmd.Value)
}

var rawActions = map[string]schemas.ElementAction{
	"click": schemas.ActClick,
	"fill":  schemas.ActFill,
	"press": schemas.ActPress,
}

func parseRawCommand(line string) (rawCommand, error) {
	tokens, err := scenario.SplitTokens(line)
	if err != nil {
		return rawCommand{}, err
	}
	if len(tokens) == 0 {
		return rawCommand{}, fmt.Errorf("empty command")
	}

	switch tokens[0] {
	case "find":
		return parseRawFind(tokens[1:])
	case "click", "fill", "press":
		if len(tokens) < 2 {
			return rawCommand{}, fmt.Errorf("%s requires a selector", tokens[0])
		}
		cmd := rawCommand{
			Locator: schemas.Locator{Kind: schemas.LocatorSelector, Value: tokens[1]},
			Action:  rawActions[tokens[0]],
			Value:   strings.Join(tokens[2:], " "),
		}
		if cmd.Action != schemas.ActClick && cmd.Value == "" {
			return rawCommand{}, fmt.Errorf("%s requires a value", tokens[0])
		}
		return cmd, nil
	default:
		return rawCommand{}, fmt.Errorf("unsupported command %q", tokens[0])
	}
}

// parseRawFind reads "<locator spec> <action> [value]". The locator spec runs
// up to the first action keyword.
func parseRawFind(tokens []string) (rawCommand, error) {
	actionIdx := -1
	for i, tok := range tokens {
		if _, ok := rawActions[tok]; ok {
			actionIdx = i
			break
		}
	}
	if actionIdx < 0 {
		return rawCommand{}, fmt.Errorf("find requires an action (click, fill or press)")
	}
	if actionIdx == 0 {
		return rawCommand{}, fmt.Errorf("find requires a locator before the action")
	}

	locTokens := tokens[:actionIdx]
	action := rawActions[tokens[actionIdx]]
	valueTokens := tokens[actionIdx+1:]

	// --name may trail the action keyword: "find role button click --name X"
	// and "find role button --name X click" are the same command.
	var trailingName string
	var hasTrailingName bool
	var rest []string
	for i := 0; i < len(valueTokens); i++ {
		if valueTokens[i] == "--name" {
			if i+1 >= len(valueTokens) {
				return rawCommand{}, fmt.Errorf("--name requires a value")
			}
			trailingName = valueTokens[i+1]
			hasTrailingName = true
			i++
			continue
		}
		rest = append(rest, valueTokens[i])
	}
	valueTokens = rest

	loc := schemas.Locator{}
	switch strings.ToLower(locTokens[0]) {
	case "label", "text":
		if len(locTokens) < 2 {
			return rawCommand{}, fmt.Errorf("%s locator requires a value", locTokens[0])
		}
		loc.Kind = schemas.LocatorKind(strings.ToLower(locTokens[0]))
		loc.Value = strings.Join(locTokens[1:], " ")
	case "role":
		if len(locTokens) < 2 {
			return rawCommand{}, fmt.Errorf("role locator requires a role")
		}
		loc.Kind = schemas.LocatorRole
		loc.Value = locTokens[1]
		for i := 2; i+1 < len(locTokens); i++ {
			if locTokens[i] == "--name" {
				loc.Name = locTokens[i+1]
			}
		}
	default:
		loc.Kind = schemas.LocatorSelector
		loc.Value = strings.Join(locTokens, " ")
	}

	if hasTrailingName {
		if loc.Kind != schemas.LocatorRole {
			return rawCommand{}, fmt.Errorf("--name applies to role locators only")
		}
		loc.Name = trailingName
	}

	value := strings.Join(valueTokens, " ")
	if action != schemas.ActClick && value == "" {
		return rawCommand{}, fmt.Errorf("%s requires a value", tokens[actionIdx])
	}
	return rawCommand{Locator: loc, Action: action, Value: value}, nil
}
