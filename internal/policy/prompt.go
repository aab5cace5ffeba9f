// Package policy builds the tutoring contract sent with every model call
// and checks coach replies against it.
package policy

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Options are the static inputs of the policy prompt.
type Options struct {
	Domain          string   // e.g. "BBC micro:bit MicroPython"
	CoachName       string   // e.g. "Micro:bit Python Coach"
	Extension       string   // student source extension, e.g. ".py"
	References      []string // permitted documentation URLs
	ExampleMaxLines int
}

// DefaultOptions returns the micro:bit coach options with the given references.
func DefaultOptions(references []string, exampleMaxLines int) Options {
	return Options{
		Domain:          "BBC micro:bit MicroPython",
		CoachName:       "Micro:bit Python Coach",
		Extension:       ".py",
		References:      references,
		ExampleMaxLines: exampleMaxLines,
	}
}

// Prompt is the immutable system prompt plus the references it was built with.
type Prompt struct {
	text       string
	references []string
}

// Text returns the system prompt.
func (p Prompt) Text() string { return p.text }

// References returns a copy of the permitted reference URLs.
func (p Prompt) References() []string { return append([]string(nil), p.references...) }

// Build assembles the system prompt. It takes no per-session input.
func Build(opts Options) Prompt {
	n := opts.ExampleMaxLines
	if n <= 0 {
		n = 5
	}
	refs := lo.Uniq(lo.Compact(opts.References))

	var b strings.Builder
	fmt.Fprintf(&b, "You are %q, helping students learn %s.\n\n", opts.CoachName, opts.Domain)

	b.WriteString("Core teaching rules:\n")
	b.WriteString("- Correct errors, explain concepts, and provide small hints. You never produce full programs or assignment solutions.\n")
	fmt.Fprintf(&b, "- When giving code, provide only tiny examples (at most %d lines) that illustrate an idea. Always include a TODO or placeholder so examples are never turnkey.\n", n)
	b.WriteString("- Ask at least one clarifying question, before any code, whenever the request could imply producing a complete solution.\n")
	b.WriteString("- Base explanations on the official documentation listed below and cite a specific page when giving technical advice.\n")
	b.WriteString("- If no listed page supports a claim, say so and point to the closest page. Do not invent APIs or behavior.\n\n")

	b.WriteString("Allowed documentation sources:\n")
	b.WriteString(strings.Join(refs, "\n"))
	b.WriteString("\n\n")

	b.WriteString("Refusal rules:\n")
	fmt.Fprintf(&b, "- If the student requests a full solution, politely refuse, explain why, outline a short plan, give one example of at most %d lines that teaches a single sub-skill, and cite the relevant page.\n", n)
	fmt.Fprintf(&b, "- If the student wants to discuss something outside of %s (homework for other classes, general knowledge, etc.), politely redirect them back to the assignment.\n\n", opts.Domain)

	b.WriteString("Academic integrity:\n")
	b.WriteString("- Promote independent problem solving. Provide hints and reasoning, not completed work.\n\n")

	b.WriteString("Output expectations:\n")
	b.WriteString("- Prefer short reasoning and tiny code snippets over full functions.\n")
	b.WriteString("- Prefer diffs, inline suggestions, small steps, and conceptual guidance.\n")
	fmt.Fprintf(&b, "- Use the student's actual %s files for reference whenever possible.\n", opts.Extension)

	return Prompt{text: b.String(), references: refs}
}
