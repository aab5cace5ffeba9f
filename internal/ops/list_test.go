package ops

import (
	"testing"
	"time"
)

func TestList_Empty(t *testing.T) {
	database, _ := openTestDB(t)

	out, err := List(database, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Items == nil {
		t.Error("Items should be empty slice, not nil")
	}
	if out.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want %d", out.Pagination.Limit, DefaultListLimit)
	}
	if out.Sort != "ended_at_desc" {
		t.Errorf("Sort = %q, want ended_at_desc", out.Sort)
	}
}

func TestList_PaginationAndFilter(t *testing.T) {
	database, _ := openTestDB(t)
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"01A", "01B", "01C"} {
		recordTestTranscript(t, database, id, "/proj", base.Add(time.Duration(i)*time.Minute))
	}
	recordTestTranscript(t, database, "01OTHER", "/other", base)

	out, err := List(database, ListInput{Workspace: stringPtr("/proj"), Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 || out.Items[0].ID != "01C" {
		t.Errorf("Items = %+v, want 01C first", out.Items)
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("Pagination = %+v, want has_more and total 3", out.Pagination)
	}

	out, err = List(database, ListInput{Workspace: stringPtr("/proj"), Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("last page = %+v", out)
	}

	out, err = List(database, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Total != 4 {
		t.Errorf("Total = %d, want 4", out.Pagination.Total)
	}
}

func TestList_LimitBounds(t *testing.T) {
	database, _ := openTestDB(t)

	out, err := List(database, ListInput{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Limit != MaxListLimit {
		t.Errorf("Limit = %d, want %d", out.Pagination.Limit, MaxListLimit)
	}
	if out.Pagination.Offset != 0 {
		t.Errorf("Offset = %d, want 0", out.Pagination.Offset)
	}
}
