package sandbox

import (
	"fmt"
	"strings"
)

// SafetyChecker inspects raw script text before execution. When a checker
// is configured on the engine, a rejection blocks execution and is
// reported as an error result; the script never runs.
type SafetyChecker interface {
	Check(code string) (ok bool, reason string)
}

// PatternChecker rejects scripts containing any of a configured set of
// substrings. It is a lightweight lint, not a sandbox: it cannot catch
// obfuscated or dynamically constructed calls.
type PatternChecker struct {
	patterns []string
}

// NewPatternChecker creates a PatternChecker with the given blocked patterns
func NewPatternChecker(patterns []string) *PatternChecker {
	return &PatternChecker{patterns: patterns}
}

// Check reports whether code is free of blocked patterns
func (c *PatternChecker) Check(code string) (bool, string) {
	for _, pattern := range c.patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(code, pattern) {
			return false, fmt.Sprintf("code safety check failed: blocked pattern %q", pattern)
		}
	}

	return true, ""
}
