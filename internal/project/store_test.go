package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rebeliceyang/listinsight/internal/models"
)

func TestOpenCreatesLayout(t *testing.T) {
	root := t.TempDir()

	s, err := Open(root, "audit")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, path := range []string{
		filepath.Join(root, DirName, ProjectFile),
		filepath.Join(root, DirName, ShortlistFile),
		filepath.Join(root, DirName, TaggedFile),
		filepath.Join(root, DirName, ParquetDir),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	if s.Name() != "audit" {
		t.Errorf("expected name audit, got %q", s.Name())
	}
	if len(s.Datasets()) != 0 {
		t.Errorf("expected no datasets, got %d", len(s.Datasets()))
	}
	if got := s.ParquetPath("CASES"); got != filepath.Join(root, DirName, ParquetDir, "CASES.parquet") {
		t.Errorf("unexpected parquet path %q", got)
	}
}

func TestDatasetLifecycle(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "audit")
	if err != nil {
		t.Fatal(err)
	}

	meta := Metadata{ID: "id-1", Name: "CASES", Parquet: s.ParquetPath("CASES")}
	if err := s.AddDataset(meta); err != nil {
		t.Fatalf("AddDataset failed: %v", err)
	}
	if err := s.AddDataset(meta); !errors.Is(err, ErrDuplicateDataset) {
		t.Errorf("expected ErrDuplicateDataset, got %v", err)
	}

	entry, ok := s.Dataset("id-1")
	if !ok {
		t.Fatal("expected dataset to be found")
	}
	if entry.Metadata.PrimaryKey().IsSet() {
		t.Error("expected primary key unset for a new dataset")
	}

	if err := s.SetPrimaryKey("id-1", models.PrimaryKey{Name: "CASE_ID", Index: 0}); err != nil {
		t.Fatalf("SetPrimaryKey failed: %v", err)
	}
	records := []models.FilterRecord{
		{Attribute: "AMOUNT", Operator: models.OpGreaterThan, Value: "100", Enabled: true, Expression: "`AMOUNT` > 100"},
		{Attribute: "CITY", Operator: models.OpEqual, Value: "Paris", Enabled: false, Failed: true, Expression: "`CITY` == 'Paris'"},
	}
	if err := s.SetFilters("id-1", records); err != nil {
		t.Fatalf("SetFilters failed: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := Open(root, "ignored")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.Name() != "audit" {
		t.Errorf("expected stored name, got %q", reopened.Name())
	}
	entry, ok = reopened.Dataset("id-1")
	if !ok {
		t.Fatal("expected dataset after reopen")
	}
	if pk := entry.Metadata.PrimaryKey(); pk.Name != "CASE_ID" || pk.Index != 0 {
		t.Errorf("unexpected primary key %+v", pk)
	}
	if reopened.ResolveParquet(entry.Metadata) != meta.Parquet {
		t.Errorf("unexpected parquet path %q", reopened.ResolveParquet(entry.Metadata))
	}

	got, err := reopened.Filters("id-1")
	if err != nil {
		t.Fatalf("Filters failed: %v", err)
	}
	if len(got) != 2 || got[1] != records[1] || got[0] != records[0] {
		t.Errorf("filters did not round trip: %+v", got)
	}

	if err := reopened.RemoveDataset("id-1"); err != nil {
		t.Fatalf("RemoveDataset failed: %v", err)
	}
	if _, err := reopened.Filters("id-1"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v", err)
	}
	if err := reopened.RemoveDataset("id-1"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{"},
		{"missing name", `{"datasets": []}`},
		{"missing id", `{"project_name": "p", "datasets": [{"metadata": {"dataset_name": "A"}, "filters": []}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, DirName)
			if err := os.MkdirAll(dir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, ProjectFile), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := Open(root, "p")
			if !errors.Is(err, ErrMalformedProject) {
				t.Errorf("expected ErrMalformedProject, got %v", err)
			}
		})
	}
}

func TestOpenEmptyRoot(t *testing.T) {
	if _, err := Open("", "p"); err == nil {
		t.Error("expected error for empty root")
	}
}
