package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddAndRecent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	entries := []Entry{
		{DatasetID: "a", DatasetName: "CASES", Filters: "CITY == Paris", AppliedAt: at, RowsVisible: 2, Success: true},
		{DatasetID: "b", DatasetName: "PAYMENTS", Filters: "AMOUNT > 10", Duration: 3 * time.Millisecond, RowsVisible: 5, Success: true},
		{DatasetID: "a", DatasetName: "CASES", Filters: "CITY == Paris AND FOO == x", Success: false, ErrorMessage: "invalid attribute"},
	}
	for _, e := range entries {
		if err := s.Add(ctx, e); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	all, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Success || all[0].ErrorMessage != "invalid attribute" {
		t.Errorf("expected newest entry first, got %+v", all[0])
	}
	if all[1].Duration != 3*time.Millisecond {
		t.Errorf("expected duration round trip, got %v", all[1].Duration)
	}
	if !all[2].AppliedAt.Equal(at) {
		t.Errorf("expected applied time %v, got %v", at, all[2].AppliedAt)
	}

	cases, err := s.Recent(ctx, "a", 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(cases) != 1 || cases[0].DatasetName != "CASES" {
		t.Errorf("expected latest CASES entry, got %+v", cases)
	}
}

func TestSearch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_ = s.Add(ctx, Entry{DatasetID: "a", DatasetName: "CASES", Filters: "CITY == Paris", Success: true})
	_ = s.Add(ctx, Entry{DatasetID: "a", DatasetName: "CASES", Filters: "AGE > 30", Success: true})

	found, err := s.Search(ctx, "Paris", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 1 || found[0].Filters != "CITY == Paris" {
		t.Errorf("unexpected search result %+v", found)
	}

	none, err := s.Search(ctx, "Lyon", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no results, got %d", len(none))
	}
}
