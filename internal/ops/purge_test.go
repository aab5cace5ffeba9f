package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/bitcoach/internal/db"
)

func TestPurge_All(t *testing.T) {
	database, _ := openTestDB(t)
	recordTestTranscript(t, database, "01P1", "/a", time.Now())
	recordTestTranscript(t, database, "01P2", "/b", time.Now())

	out, err := Purge(context.Background(), database, PurgeInput{})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged != 2 {
		t.Errorf("Purged = %d, want 2", out.Purged)
	}
	if out.Message != "Permanently deleted 2 transcripts" {
		t.Errorf("Message = %q", out.Message)
	}
}

func TestPurge_WorkspaceAndAge(t *testing.T) {
	database, _ := openTestDB(t)
	old := time.Now().Add(-30 * 24 * time.Hour)
	recordTestTranscript(t, database, "01OLD", "/a", old)
	recordTestTranscript(t, database, "01NEW", "/a", time.Now())
	recordTestTranscript(t, database, "01B", "/b", old)

	out, err := Purge(context.Background(), database, PurgeInput{
		Workspace:     stringPtr("/a"),
		OlderThanDays: intPtr(7),
	})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged != 1 {
		t.Errorf("Purged = %d, want 1", out.Purged)
	}

	for _, id := range []string{"01NEW", "01B"} {
		if _, err := db.GetByID(database, id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
}

func TestPurge_NothingToPurge(t *testing.T) {
	database, _ := openTestDB(t)

	out, err := Purge(context.Background(), database, PurgeInput{})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged != 0 || out.Message != "No transcripts to purge" {
		t.Errorf("Purge = %+v", out)
	}
}
