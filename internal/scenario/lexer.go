// File: internal/scenario/lexer.go
package scenario

import (
	"fmt"
	"strings"
)

// SplitTokens splits a scenario line into whitespace-separated tokens,
// honoring single and double quotes. The driver reuses it to interpret raw
// passthrough lines with the same quoting rules the parser applies.
func SplitTokens(line string) ([]string, error) {
	return splitTokens(line)
}

// splitTokens honors single and double quotes. A backslash escapes the next
// character inside double quotes and outside quotes. Unterminated quoting is
// an error.
func splitTokens(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inToken := false

	const (
		stateNone = iota
		stateSingle
		stateDouble
	)
	state := stateNone
	escaped := false

	for _, r := range line {
		if escaped {
			cur.WriteRune(r)
			escaped = false
			inToken = true
			continue
		}
		switch state {
		case stateSingle:
			if r == '\'' {
				state = stateNone
			} else {
				cur.WriteRune(r)
			}
		case stateDouble:
			switch r {
			case '"':
				state = stateNone
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		default:
			switch {
			case r == '\'':
				state = stateSingle
				inToken = true
			case r == '"':
				state = stateDouble
				inToken = true
			case r == '\\':
				escaped = true
			case r == ' ' || r == '\t':
				if inToken {
					tokens = append(tokens, cur.String())
					cur.Reset()
					inToken = false
				}
			default:
				cur.WriteRune(r)
				inToken = true
			}
		}
	}

	if state != stateNone {
		return nil, fmt.Errorf("unterminated quote")
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

// popFlag removes "--name value" from tokens and returns the value. The
// second return reports whether the flag was present.
func popFlag(tokens []string, name string) ([]string, string, bool, error) {
	for i, tok := range tokens {
		if tok != name {
			continue
		}
		if i+1 >= len(tokens) {
			return tokens, "", false, fmt.Errorf("%s requires a value", name)
		}
		value := tokens[i+1]
		rest := append(append([]string{}, tokens[:i]...), tokens[i+2:]...)
		return rest, value, true, nil
	}
	return tokens, "", false, nil
}
