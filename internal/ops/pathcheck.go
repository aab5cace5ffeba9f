package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/bitcoach/internal/errors"
)

// ExportsDirName is the directory under the base directory that receives exports.
const ExportsDirName = "exports"

// ExportsDir returns baseDir/exports.
func ExportsDir(baseDir string) string {
	return filepath.Join(baseDir, ExportsDirName)
}

// ValidateExportPath checks a destination for a transcript export:
//  1. no ".." components
//  2. a .jsonl extension
//  3. the file sits directly in exportsDir (no subdirectories)
//  4. neither the exports directory nor the file is a symlink
//
// Requiring the file to be directly in exportsDir leaves no intermediate
// directory that could be swapped for a symlink between check and open.
func ValidateExportPath(path, exportsDir string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	allowed, err := filepath.Abs(filepath.Clean(exportsDir))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid exports directory: %v", err))
	}

	parentDir := filepath.Dir(absPath)
	if parentDir != allowed {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in %s (no subdirectories)", allowed))
	}

	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("exports directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}

	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// User input may use forward slashes on any platform
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe to embed in a file name.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	// Drop control characters
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
