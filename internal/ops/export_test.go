package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/bitcoach/internal/db"
)

func readExport(t *testing.T, path string) (ExportHeader, []db.Transcript) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var header ExportHeader
	var records []db.Transcript
	for i := 0; scanner.Scan(); i++ {
		if i == 0 {
			if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
				t.Fatalf("header: %v", err)
			}
			continue
		}
		var rec db.Transcript
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		records = append(records, rec)
	}
	return header, records
}

func TestExport_DefaultPath(t *testing.T) {
	database, baseDir := openTestDB(t)
	base := time.Now().Add(-time.Hour)
	recordTestTranscript(t, database, "01E1", "/proj", base)
	recordTestTranscript(t, database, "01E2", "/proj", base.Add(time.Minute))
	recordTestTranscript(t, database, "01E3", "/other", base)

	out, err := Export(context.Background(), database, baseDir, ExportInput{Workspace: stringPtr("/proj")})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.Count != 2 {
		t.Errorf("Count = %d, want 2", out.Count)
	}
	if filepath.Dir(out.Path) != ExportsDir(baseDir) {
		t.Errorf("Path = %q, want under %q", out.Path, ExportsDir(baseDir))
	}
	if !strings.HasPrefix(filepath.Base(out.Path), "proj-") {
		t.Errorf("file name = %q, want proj- prefix", filepath.Base(out.Path))
	}

	header, records := readExport(t, out.Path)
	if !header.BitcoachExport || header.SchemaVersion != "1.0" {
		t.Errorf("header = %+v", header)
	}
	if len(records) != 2 || records[0].ID != "01E1" || len(records[0].Turns) != 2 {
		t.Errorf("records = %+v", records)
	}
}

func TestExport_ExplicitPathOverwrites(t *testing.T) {
	database, baseDir := openTestDB(t)
	recordTestTranscript(t, database, "01E1", "/proj", time.Now())

	path := filepath.Join(ExportsDir(baseDir), "mine.jsonl")
	for i := 0; i < 2; i++ {
		out, err := Export(context.Background(), database, baseDir, ExportInput{Path: path})
		if err != nil {
			t.Fatalf("Export #%d failed: %v", i, err)
		}
		if out.Path != path || out.Count != 1 {
			t.Errorf("Export #%d = %+v", i, out)
		}
	}

	entries, err := os.ReadDir(ExportsDir(baseDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("exports dir has %d entries, want 1 (no temp files left)", len(entries))
	}
}

func TestExport_RejectsOutsidePath(t *testing.T) {
	database, baseDir := openTestDB(t)

	_, err := Export(context.Background(), database, baseDir, ExportInput{Path: filepath.Join(t.TempDir(), "x.jsonl")})
	if err == nil {
		t.Error("export outside the exports dir should fail")
	}
}
