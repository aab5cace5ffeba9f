package policy

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

func parse(source []byte) ast.Node {
	return md.Parser().Parse(text.NewReader(source))
}

// Excerpt returns the enforcement text of a guidelines document: everything
// after the first level-1 heading up to the next level-2 heading, trimmed.
// Further level-1 heading lines in that span are dropped. Headings inside
// fenced code do not count. Returns "" without a level-1 heading.
func Excerpt(markdown string) string {
	source := []byte(markdown)
	doc := parse(source)

	start, end := -1, len(source)
	var skips [][2]int // level-1 heading lines inside the excerpt
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		pos := h.Lines().At(0).Start
		if start < 0 {
			if h.Level == 1 {
				start = skipSetextUnderline(source, lineEnd(source, pos))
			}
			continue
		}
		if h.Level == 1 {
			skips = append(skips, [2]int{lineStart(source, pos), skipSetextUnderline(source, lineEnd(source, pos))})
			continue
		}
		if h.Level == 2 {
			end = lineStart(source, pos)
			break
		}
	}
	if start < 0 || start >= end {
		return ""
	}

	var buf bytes.Buffer
	at := start
	for _, skip := range skips {
		if skip[0] >= end {
			break
		}
		buf.Write(source[at:skip[0]])
		at = min(skip[1], end)
	}
	buf.Write(source[at:end])
	return strings.TrimSpace(buf.String())
}

// skipSetextUnderline steps over the "===" line that closes a setext level-1 heading.
func skipSetextUnderline(source []byte, pos int) int {
	end := lineEnd(source, pos)
	line := bytes.TrimSpace(source[pos:end])
	if len(line) > 0 && len(bytes.Trim(line, "=")) == 0 {
		return end
	}
	return pos
}

func lineStart(source []byte, pos int) int {
	if pos <= 0 {
		return 0
	}
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

func lineEnd(source []byte, pos int) int {
	if pos < 0 {
		pos = 0
	}
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(source)
}

// codeBlock is a fenced or indented code block of a reply.
type codeBlock struct {
	Lines   int
	Content string
}

func codeBlocks(source []byte, doc ast.Node) []codeBlock {
	var blocks []codeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			var buf bytes.Buffer
			lines := n.Lines()
			nonBlank := 0
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				line := seg.Value(source)
				buf.Write(line)
				if len(bytes.TrimSpace(line)) > 0 {
					nonBlank++
				}
			}
			blocks = append(blocks, codeBlock{Lines: nonBlank, Content: buf.String()})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}
