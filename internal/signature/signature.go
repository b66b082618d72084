// Package signature reduces compiler and test-runner output to short, stable
// identifiers so the orchestrator can recognize "the same error again"
// across repair rounds. Determinism is the entire point: two runs of the
// same underlying failure, possibly minutes apart and at different source
// line numbers, must hash to the same signature.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Severity mirrors validation.Severity without importing it, keeping this
// package leaf-level and dependency-free (it is consumed by validation and
// memory alike).
type Severity string

// Severity values recognized in ParsedError.Severity.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParsedError is the minimal shape signature needs from a structured
// validation error. validation.ParsedError satisfies this shape; Compute
// works against it without a direct type dependency.
type ParsedError struct {
	File     string
	Line     int
	Column   int
	Message  string
	Severity Severity
}

// EmptyOutputSignature is returned by Compute/ComputeCombined when the input
// carries no content at all.
const EmptyOutputSignature = "EMPTY_OUTPUT"

// UnknownPrefix prefixes the fallback signature when no catalog pattern matches.
const UnknownPrefix = "UNKNOWN_"

// kindPattern pairs an error-kind label with the regexp that detects it and,
// optionally, the capture group index holding the offending symbol (0 means
// no symbol is captured).
type kindPattern struct {
	kind       string
	re         *regexp.Regexp
	symbolGrp  int
}

// catalog is the fixed, ordered set of error-kind patterns. Order does not
// affect the result (all matches are collected, deduplicated, and sorted)
// but is kept stable for readability and for matching spec.md's enumeration.
var catalog = []kindPattern{
	{"SYMBOL_NOT_FOUND", regexp.MustCompile(`cannot find symbol[^\n]*?(?:\n[^\n]*?)?\bsymbol\s*:\s*\S+\s+(\w+)`), 1},
	{"SYMBOL_NOT_FOUND", regexp.MustCompile(`undefined(?:\s+reference)?\s*:?\s*['"\x60]?(\w+)['"\x60]?`), 1},
	{"SYMBOL_NOT_FOUND", regexp.MustCompile(`cannot find name\s+['"\x60](\w+)['"\x60]`), 1},
	{"INCOMPATIBLE_TYPES", regexp.MustCompile(`incompatible types`), 0},
	{"INCOMPATIBLE_TYPES", regexp.MustCompile(`type mismatch`), 0},
	{"INCOMPATIBLE_TYPES", regexp.MustCompile(`cannot convert.*?to\s+type\s+['"\x60]?(\w+)`), 1},
	{"PACKAGE_NOT_FOUND", regexp.MustCompile(`package\s+([\w.\-/]+)\s+does not exist`), 1},
	{"PACKAGE_NOT_FOUND", regexp.MustCompile(`cannot find (?:package|module)\s+['"\x60]?([\w.\-/]+)`), 1},
	{"METHOD_NOT_APPLICABLE", regexp.MustCompile(`method\s+(\w+)\(.*?\)\s+(?:is undefined for|in class|not applicable)`), 1},
	{"UNREPORTED_EXCEPTION", regexp.MustCompile(`unreported exception\s+([\w.]+)`), 1},
	{"MISSING_RETURN", regexp.MustCompile(`missing return (?:statement|value)`), 0},
	{"SYNTAX_EXPECTED_TOKEN", regexp.MustCompile(`['"\x60]?([\w;{}()]+)['"\x60]?\s+expected`), 1},
	{"ILLEGAL_START", regexp.MustCompile(`illegal start of (\w+)`), 1},
	{"DEPENDENCY_RESOLVE", regexp.MustCompile(`(?:could not resolve dependenc|dependency resolution failed|failed to resolve dependenc)`), 0},
	{"ARTIFACT_NOT_FOUND", regexp.MustCompile(`could not find artifact\s+([\w.\-:]+)`), 1},
	{"ARTIFACT_NOT_FOUND", regexp.MustCompile(`artifact\s+([\w.\-:]+)\s+not found`), 1},
	{"PARENT_POM_ERROR", regexp.MustCompile(`(?:non-resolvable parent pom|problem reading parent pom)`), 0},
	{"PLUGIN_FAILURE", regexp.MustCompile(`plugin\s+([\w.\-:]+)\s+.*?failed`), 1},
}

// humanDescriptions maps each catalog kind to an operator-facing phrase,
// used by Describe.
var humanDescriptions = map[string]string{
	"SYMBOL_NOT_FOUND":       "symbol not found",
	"INCOMPATIBLE_TYPES":     "type mismatch",
	"PACKAGE_NOT_FOUND":      "package not found",
	"METHOD_NOT_APPLICABLE":  "method not applicable",
	"UNREPORTED_EXCEPTION":   "unreported exception",
	"MISSING_RETURN":         "missing return statement",
	"SYNTAX_EXPECTED_TOKEN":  "syntax error: expected token",
	"ILLEGAL_START":          "illegal start of expression",
	"DEPENDENCY_RESOLVE":     "dependency resolution failed",
	"ARTIFACT_NOT_FOUND":     "artifact not found",
	"PARENT_POM_ERROR":       "parent POM error",
	"PLUGIN_FAILURE":         "build plugin failure",
}

// Compute reduces raw compiler/test output to a stable signature.
func Compute(output string) string {
	if strings.TrimSpace(output) == "" {
		return EmptyOutputSignature
	}

	tokens := matchCatalog(output)
	if len(tokens) == 0 {
		return hashFallback(output)
	}
	return hashTokens(tokens)
}

// ComputeParsed reduces a list of structured parsed errors to a stable
// signature, scanning each error's Message field against the same catalog
// used by Compute.
func ComputeParsed(errs []ParsedError) string {
	if len(errs) == 0 {
		return EmptyOutputSignature
	}

	var tokens []string
	for _, e := range errs {
		tokens = append(tokens, matchCatalog(e.Message)...)
	}
	if len(tokens) == 0 {
		// Fall back to hashing the concatenated messages; still deterministic
		// and still normalized (no timestamps/line numbers survive normalize).
		var sb strings.Builder
		for _, e := range errs {
			sb.WriteString(e.Message)
			sb.WriteString("\n")
		}
		return hashFallback(sb.String())
	}
	return hashTokens(tokens)
}

// ComputeCombined prefers the parsedErrors signature when it is non-trivial
// (i.e. not the empty-output constant), falling back to the raw-output
// signature otherwise. This matches spec.md 4.1: structured errors are a
// stronger signal than raw text when both are available.
func ComputeCombined(output string, errs []ParsedError) string {
	if len(errs) > 0 {
		if sig := ComputeParsed(errs); sig != EmptyOutputSignature {
			return sig
		}
	}
	return Compute(output)
}

// Describe returns a short, human-readable description of the error kind(s)
// represented by a signature or raw output. Accepts either a signature
// previously returned by Compute/ComputeCombined in this process, or raw
// output to classify directly.
func Describe(signatureOrOutput string) string {
	if signatureOrOutput == EmptyOutputSignature {
		return "no error output"
	}
	if strings.HasPrefix(signatureOrOutput, UnknownPrefix) {
		return "unrecognized error"
	}
	if desc, ok := described.Load(signatureOrOutput); ok {
		return desc.(string)
	}

	// Try treating the input as raw output first: if any catalog kind
	// matches, describe from there (handles callers passing output directly).
	if kinds := matchKinds(signatureOrOutput); len(kinds) > 0 {
		return describeKinds(kinds)
	}

	return "unrecognized error"
}

// DescribeKind returns the human phrase for a single catalog kind label,
// or "unrecognized error" if the label isn't known.
func DescribeKind(kind string) string {
	base, _, _ := strings.Cut(kind, ":")
	if desc, ok := humanDescriptions[base]; ok {
		return desc
	}
	return "unrecognized error"
}

func describeKinds(kinds []string) string {
	seen := make(map[string]bool)
	var phrases []string
	for _, k := range kinds {
		base, _, _ := strings.Cut(k, ":")
		if seen[base] {
			continue
		}
		seen[base] = true
		phrases = append(phrases, DescribeKind(base))
	}
	sort.Strings(phrases)
	return strings.Join(phrases, ", ")
}

// matchKinds scans output against the catalog and returns every
// "KIND" or "KIND:normalizedSymbol" token found, unsorted and undeduplicated.
func matchKinds(output string) []string {
	return matchCatalog(output)
}

// matchCatalog scans output against every pattern in the catalog, returning
// a token per match: "KIND" when the pattern has no symbol group, or
// "KIND:normalizedSymbol" when it does.
func matchCatalog(output string) []string {
	var tokens []string
	for _, p := range catalog {
		matches := p.re.FindAllStringSubmatch(output, -1)
		for _, m := range matches {
			if p.symbolGrp > 0 && p.symbolGrp < len(m) && m[p.symbolGrp] != "" {
				tokens = append(tokens, p.kind+":"+normalizeSymbol(m[p.symbolGrp]))
			} else {
				tokens = append(tokens, p.kind)
			}
		}
	}
	return tokens
}

// normalizeSymbol strips generic parameters, keeps only the unqualified
// identifier (last segment after '.' or '::'), and lowercases the result.
func normalizeSymbol(sym string) string {
	if idx := strings.IndexByte(sym, '<'); idx >= 0 {
		sym = sym[:idx]
	}
	sym = strings.ReplaceAll(sym, "::", ".")
	if idx := strings.LastIndexByte(sym, '.'); idx >= 0 {
		sym = sym[idx+1:]
	}
	return strings.ToLower(strings.TrimSpace(sym))
}

func hashTokens(tokens []string) string {
	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	sort.Strings(unique)
	joined := strings.Join(unique, "|")
	sig := shortHash(joined)
	described.Store(sig, describeKinds(unique))
	return sig
}

// described maps each catalog signature hashTokens has produced to the
// phrase for its kinds, so Describe can turn a hashed signature back into
// text.
var described sync.Map

func hashFallback(output string) string {
	normalized := normalizeOutput(output)
	return UnknownPrefix + shortHash(normalized)
}

var (
	reTimestamp  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	reLineCol    = regexp.MustCompile(`:\d+:\d+`)
	reAbsPath    = regexp.MustCompile(`(?:/[\w.\-]+)+/([\w.\-]+)`)
)

// normalizeOutput strips timestamps, line/column numbers, and absolute paths
// (keeping only the final path segment) from raw output, then truncates to
// 500 characters. This is what makes the UNKNOWN_ fallback signature stable
// across otherwise-identical reruns.
func normalizeOutput(output string) string {
	s := reTimestamp.ReplaceAllString(output, "<ts>")
	s = reLineCol.ReplaceAllString(s, ":<line>:<col>")
	s = reAbsPath.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
