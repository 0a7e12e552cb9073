// File: internal/fuzz/safety.go
// Description: Safety filtering for fuzz actions. Matching is lowercase
// substring against the element's accessible name.

package fuzz

import "strings"

// Safety levels. Read-only blocks anything that looks like it mutates state;
// dangerous lifts the destructive and mutating lexicons and belongs on
// throwaway environments only.
const (
	SafetyReadOnly  = "read-only"
	SafetyDangerous = "dangerous"
)

// blockSession covers controls that end the session and strand the fuzzer on
// a login page. It applies in every safety mode: a logged-out fuzzer spends
// the rest of its budget bouncing off the login form.
var blockSession = []string{"log out", "logout", "log off"}

var blockDestructive = []string{
	"delete", "remove", "uninstall", "install", "drop",
	"purge", "rebuild", "clear all", "wipe",
}

var blockMutating = []string{
	"save", "submit", "apply", "create", "add", "update",
}

// blockedTerms returns the lexicon for a safety level. The session terms are
// included unconditionally.
func blockedTerms(safety string) []string {
	if safety == SafetyDangerous {
		return blockSession
	}
	terms := make([]string, 0, len(blockSession)+len(blockDestructive)+len(blockMutating))
	terms = append(terms, blockSession...)
	terms = append(terms, blockDestructive...)
	terms = append(terms, blockMutating...)
	return terms
}

// Allowed reports whether an element with the given accessible name may be
// acted on under the safety level.
func Allowed(name, safety string) bool {
	lower := strings.ToLower(name)
	for _, term := range blockedTerms(safety) {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}
