// Package workspace collects the student's source files from a host file tree.
package workspace

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/moby/patternmatcher"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/bitcoach/internal/logging"
)

// NodeType distinguishes files from directories in a host tree.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// Node is one entry of a host file tree. The root is a directory whose
// name is not part of any collected path.
type Node struct {
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	Children []*Node  `json:"children,omitempty"`
}

// TreeSource returns the workspace tree.
type TreeSource interface {
	Tree(ctx context.Context) (*Node, error)
}

// FileReader returns the content of one workspace file by relative path.
type FileReader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

// Host is the file side of the host environment.
type Host interface {
	TreeSource
	FileReader
}

// FileRecord is one collected source file.
type FileRecord struct {
	Path          string `json:"path"`
	Content       string `json:"-"`
	Truncated     bool   `json:"truncated"`
	OriginalChars int    `json:"original_chars"`
}

// Rules controls which files are relevant.
type Rules struct {
	Extension       string   // matched case-insensitively against the file name
	HiddenPrefix    string   // names starting with it are skipped (files and directories)
	ExcludePatterns []string // gitignore-style patterns on the relative path
}

// Collector gathers FileRecords from a Host.
type Collector struct {
	rules    Rules
	maxChars int
	excludes *patternmatcher.PatternMatcher
	log      *logrus.Entry
}

// NewCollector creates a collector. Invalid exclude patterns are dropped with a warning.
func NewCollector(rules Rules, maxChars int) *Collector {
	c := &Collector{
		rules:    rules,
		maxChars: maxChars,
		log:      logging.NewLogger("workspace"),
	}
	if len(rules.ExcludePatterns) > 0 {
		pm, err := patternmatcher.New(rules.ExcludePatterns)
		if err != nil {
			c.log.WithError(err).Warn("ignoring invalid exclude patterns")
		} else {
			c.excludes = pm
		}
	}
	return c
}

// Collect returns the relevant files in traversal order. It never fails: a
// tree error yields no records and a read error skips that file.
func (c *Collector) Collect(ctx context.Context, host Host) []FileRecord {
	root, err := host.Tree(ctx)
	if err != nil {
		c.log.WithError(err).Warn("file tree unavailable, continuing without code context")
		return nil
	}

	paths := c.filterExcluded(FindRelevant(root, c.rules))

	records := make([]FileRecord, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			c.log.WithError(ctx.Err()).Warn("collection interrupted")
			break
		}
		content, err := host.ReadFile(ctx, path)
		if err != nil {
			c.log.WithError(err).WithField("path", path).Warn("could not read file")
			continue
		}
		records = append(records, Truncate(path, content, c.maxChars))
	}

	c.log.WithFields(logrus.Fields{
		"matched":   len(paths),
		"collected": len(records),
	}).Debug("workspace collected")
	return records
}

func (c *Collector) filterExcluded(paths []string) []string {
	if c.excludes == nil {
		return paths
	}
	return lo.Filter(paths, func(path string, _ int) bool {
		excluded, err := c.excludes.MatchesOrParentMatches(path)
		if err != nil {
			c.log.WithError(err).WithField("path", path).Warn("exclude pattern match failed")
			return true
		}
		return !excluded
	})
}

// FindRelevant walks the tree depth-first in host order and returns the
// slash-joined relative paths of matching files.
func FindRelevant(root *Node, rules Rules) []string {
	if root == nil {
		return nil
	}
	var out []string
	walk(root, "", rules, &out)
	return out
}

func walk(node *Node, prefix string, rules Rules, out *[]string) {
	for _, child := range node.Children {
		if child == nil || isHidden(child.Name, rules.HiddenPrefix) {
			continue
		}
		full := child.Name
		if prefix != "" {
			full = prefix + "/" + child.Name
		}

		switch child.Type {
		case NodeFile:
			if hasExtension(child.Name, rules.Extension) {
				*out = append(*out, full)
			}
		case NodeDirectory:
			walk(child, full, rules, out)
		}
	}
}

func isHidden(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, prefix)
}

func hasExtension(name, ext string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

// Truncate builds a FileRecord, cutting content to maxChars characters.
// A non-positive maxChars disables truncation.
func Truncate(path, content string, maxChars int) FileRecord {
	n := utf8.RuneCountInString(content)
	rec := FileRecord{Path: path, Content: content, OriginalChars: n}
	if maxChars <= 0 || n <= maxChars {
		return rec
	}

	// Cut on a rune boundary.
	i, count := 0, 0
	for i < len(content) && count < maxChars {
		_, size := utf8.DecodeRuneInString(content[i:])
		i += size
		count++
	}
	rec.Content = content[:i]
	rec.Truncated = true
	return rec
}
