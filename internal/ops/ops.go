package ops

import (
	"path/filepath"
	"strings"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// NormalizeWorkspace returns the key transcripts are stored under: the
// absolute, cleaned workspace path. Relative paths resolve against the
// current directory.
func NormalizeWorkspace(workspace string) string {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return ""
	}
	if abs, err := filepath.Abs(workspace); err == nil {
		return abs
	}
	return filepath.Clean(workspace)
}

// optionalWorkspace normalizes an optional workspace filter.
func optionalWorkspace(workspace *string) *string {
	if workspace == nil {
		return nil
	}
	ws := NormalizeWorkspace(*workspace)
	if ws == "" {
		return nil
	}
	return &ws
}
