// Package bundle packages collected files into the one-time context that
// accompanies the first student turn.
package bundle

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/bitcoach/internal/workspace"
)

// ContextHeader separates the student's first message from the workspace files.
const ContextHeader = "\n\n---\n\n**CONTEXT: Student Workspace (.py files)**\n"

// TruncationMarker closes the content of a truncated file block.
const TruncationMarker = "...(truncated)"

// Bundle is the rendered workspace context plus the references sent as metadata.
type Bundle struct {
	records    []workspace.FileRecord
	references []string
	rendered   string
}

// Package renders records in collector order. The result is immutable.
func Package(records []workspace.FileRecord, references []string) *Bundle {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(RenderRecord(rec))
	}
	return &Bundle{
		records:    append([]workspace.FileRecord(nil), records...),
		references: append([]string(nil), references...),
		rendered:   b.String(),
	}
}

// RenderRecord renders one file as a labeled fenced block.
func RenderRecord(rec workspace.FileRecord) string {
	if rec.Truncated {
		return fmt.Sprintf("\n\n### File: %s (truncated)\n```\n%s\n%s\n```\n", rec.Path, rec.Content, TruncationMarker)
	}
	return fmt.Sprintf("\n\n### File: %s\n```\n%s\n```\n", rec.Path, rec.Content)
}

// Render returns the concatenated file blocks.
func (b *Bundle) Render() string {
	return b.rendered
}

// Empty reports whether no file was collected.
func (b *Bundle) Empty() bool {
	return len(b.records) == 0
}

// Inject appends the workspace context to the first student message.
// Without collected files the input is returned unchanged.
func (b *Bundle) Inject(input string) string {
	if b.Empty() {
		return input
	}
	return input + ContextHeader + b.rendered
}

// Files returns the collected paths in order.
func (b *Bundle) Files() []string {
	return lo.Map(b.records, func(rec workspace.FileRecord, _ int) string {
		return rec.Path
	})
}

// TruncatedFiles returns the paths whose content was cut.
func (b *Bundle) TruncatedFiles() []string {
	return lo.FilterMap(b.records, func(rec workspace.FileRecord, _ int) (string, bool) {
		return rec.Path, rec.Truncated
	})
}

// References returns the permitted reference URLs.
func (b *Bundle) References() []string {
	return append([]string(nil), b.references...)
}
