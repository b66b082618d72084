package sandbox

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/genforge-dev/genforge/internal/validation"
)

// locatedLine matches the common "path:line:col: message" or
// "path:line: message" compiler/test-runner diagnostic shape (Go, Java,
// TypeScript, and most C-family toolchains all emit this).
var locatedLine = regexp.MustCompile(`^([^\s:][^:]*\.\w+):(\d+)(?::(\d+))?:\s*(.+)$`)

// ParseErrors extracts structured diagnostics from combined stdout+stderr
// of a compile/test script, one validation.ParsedError per matching line.
// Lines that don't match the located-diagnostic shape are ignored here;
// the raw text is still preserved verbatim on the Report's Stdout/Stderr
// fields for operator inspection and for signature.ComputeCombined.
func ParseErrors(output string) []validation.ParsedError {
	var errs []validation.ParsedError
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		m := locatedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		errs = append(errs, validation.ParsedError{
			File:     m[1],
			Line:     lineNo,
			Column:   col,
			Message:  strings.TrimSpace(m[4]),
			Severity: severityOf(m[4]),
		})
	}
	return errs
}

// severityOf inspects a diagnostic message for a leading severity keyword,
// defaulting to error since the orchestrator only needs to distinguish
// "counts toward ErrorCount" from "informational".
func severityOf(message string) validation.Severity {
	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(lower, "warning"):
		return validation.SeverityWarning
	case strings.HasPrefix(lower, "note") || strings.HasPrefix(lower, "info"):
		return validation.SeverityInfo
	default:
		return validation.SeverityError
	}
}
