package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/bitcoach/internal/db"
	"github.com/hpungsan/bitcoach/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path      string  // optional, default: <base>/exports/<workspace>-<timestamp>.jsonl
	Workspace *string // optional filter by workspace
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	BitcoachExport bool   `json:"_bitcoach_export"`
	SchemaVersion  string `json:"schema_version"`
	ExportedAt     int64  `json:"exported_at"`
}

// Export writes archived transcripts to a JSONL file under baseDir/exports.
func Export(ctx context.Context, database *sql.DB, baseDir string, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()
	exportsDir := ExportsDir(baseDir)
	workspace := optionalWorkspace(input.Workspace)

	exportPath := input.Path
	if exportPath == "" {
		exportPath = defaultExportPath(exportsDir, workspace, now)
	}

	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}
	_ = os.Chmod(exportsDir, 0700)

	if err := ValidateExportPath(exportPath, exportsDir); err != nil {
		return nil, err
	}

	// Write to a temp file, then rename, so an existing file survives a failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	if err := enc.Encode(ExportHeader{
		BitcoachExport: true,
		SchemaVersion:  "1.0",
		ExportedAt:     exportedAt,
	}); err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.StreamForExport(ctx, database, workspace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}

		t, err := db.ScanTranscriptFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Encode(t); err != nil {
			return nil, errors.NewInternal(err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename fails if the destination exists; the existing
	// file is kept rather than deleted first.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}

// defaultExportPath returns <exportsDir>/<workspace>-<timestamp>.jsonl or all-<timestamp>.jsonl.
func defaultExportPath(exportsDir string, workspace *string, now time.Time) string {
	name := "all"
	if workspace != nil {
		name = SanitizeForFilename(filepath.Base(*workspace))
	}
	return filepath.Join(exportsDir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405")))
}
