package policy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

// LintOptions contains the limits a coach reply is checked against.
type LintOptions struct {
	ExampleMaxLines int
	References      []string
}

// LintResult contains the results of linting a coach reply.
type LintResult struct {
	Valid              bool     `json:"valid"`
	CodeBlocks         int      `json:"code_blocks"`
	OversizedBlocks    []int    `json:"oversized_blocks,omitempty"`    // 1-based block indexes
	MissingPlaceholder []int    `json:"missing_placeholder,omitempty"` // 1-based block indexes
	CitedReferences    []string `json:"cited_references,omitempty"`
	UncitedCode        bool     `json:"uncited_code"`
}

// placeholderPattern matches the markers that keep an example from being turnkey.
var placeholderPattern = regexp.MustCompile(`(?i)\bTODO\b|\.\.\.|___|<[a-z_ ]+>|#\s*your code`)

// Lint checks a reply against the example-size and placeholder rules and
// reports which permitted references it cites. Code without any citation is
// flagged. Lint never modifies the reply.
func Lint(reply string, opts LintOptions) *LintResult {
	source := []byte(reply)
	blocks := codeBlocks(source, parse(source))

	result := &LintResult{Valid: true, CodeBlocks: len(blocks)}

	for i, b := range blocks {
		if opts.ExampleMaxLines > 0 && b.Lines > opts.ExampleMaxLines {
			result.OversizedBlocks = append(result.OversizedBlocks, i+1)
		}
		if !placeholderPattern.MatchString(b.Content) {
			result.MissingPlaceholder = append(result.MissingPlaceholder, i+1)
		}
	}

	result.CitedReferences = lo.Filter(opts.References, func(ref string, _ int) bool {
		return citesURL(reply, ref)
	})
	result.UncitedCode = len(blocks) > 0 && len(result.CitedReferences) == 0

	if len(result.OversizedBlocks) > 0 || len(result.MissingPlaceholder) > 0 || result.UncitedCode {
		result.Valid = false
	}
	return result
}

// citesURL reports whether reply contains ref as a whole URL, not merely as
// the prefix of a deeper page.
func citesURL(reply, ref string) bool {
	if ref == "" {
		return false
	}
	for rest := reply; ; {
		i := strings.Index(rest, ref)
		if i < 0 {
			return false
		}
		rest = rest[i+len(ref):]
		if urlEnds(rest) {
			return true
		}
	}
}

// urlEnds reports whether rest, the text after a URL, starts on a URL boundary.
func urlEnds(rest string) bool {
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(")>]\"'`,;:!?", r) || (r == '.' && !continuesPath(rest[1:]))
}

// continuesPath reports whether the text after a '.' still belongs to the URL.
func continuesPath(rest string) bool {
	if rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsSpace(r) && !strings.ContainsRune(")>]\"'`", r)
}
