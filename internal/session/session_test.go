package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rebeliceyang/listinsight/internal/config"
	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/events"
	"github.com/rebeliceyang/listinsight/internal/history"
	"github.com/rebeliceyang/listinsight/internal/models"
	"github.com/rebeliceyang/listinsight/internal/project"
	"github.com/rebeliceyang/listinsight/internal/tags"
	"github.com/rebeliceyang/listinsight/internal/view"
)

const casesCSV = "CASE_ID,CITY\n100,Paris\n200,Lyon\n300,Paris\n"

const paymentsCSV = "PAYMENT,CASE_ID,AMOUNT\n1,200,10.5\n2,200,99\n3,100,12\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newSession(t *testing.T, root string, opts ...Option) *Session {
	t.Helper()
	store, err := project.Open(root, "audit")
	if err != nil {
		t.Fatalf("project.Open failed: %v", err)
	}
	s, err := New(store, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func importOne(t *testing.T, s *Session, path string) *view.View {
	t.Helper()
	views, err := s.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 dataset, got %d", len(views))
	}
	return views[0]
}

func TestImportRegistersDataset(t *testing.T) {
	root := t.TempDir()
	s := newSession(t, root)
	t.Cleanup(func() { _ = s.Close() })

	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	ds := v.Dataset()

	if ds.Name() != "CASES" {
		t.Errorf("expected name CASES, got %q", ds.Name())
	}
	if ds.ColumnIndex(dataset.TagsColumn) < 0 {
		t.Error("expected Tags column to be added")
	}

	entry, ok := s.Project().Dataset(ds.ID())
	if !ok {
		t.Fatal("expected dataset registered in project")
	}
	if _, err := os.Stat(s.Project().ResolveParquet(entry.Metadata)); err != nil {
		t.Errorf("expected parquet copy: %v", err)
	}
	if entry.Metadata.PrimaryKeyIndex != -1 {
		t.Errorf("expected unset primary key index, got %d", entry.Metadata.PrimaryKeyIndex)
	}

	again, err := s.Import(context.Background(), writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if len(again) != 0 || len(s.Views()) != 1 {
		t.Errorf("expected already open dataset to be skipped")
	}
}

func TestImportAdoptsExistingTagsColumn(t *testing.T) {
	s := newSession(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })

	v := importOne(t, s, writeFile(t, t.TempDir(), "labels.csv", "ID,tags\n1,old\n2,\n"))
	if names := v.Dataset().ColumnNames(); len(names) != 2 {
		t.Fatalf("expected the tags column to be reused, got %v", names)
	}
	if err := s.SetPrimaryKey(v.Dataset().ID(), "ID"); err != nil {
		t.Fatal(err)
	}
	if err := s.TagRow(context.Background(), v.Dataset().ID(), 0, []string{"new"}); err != nil {
		t.Fatalf("TagRow failed: %v", err)
	}
	if got, _ := s.RowTags(v.Dataset().ID(), 0); !reflect.DeepEqual(got, []string{"old", "new"}) {
		t.Errorf("unexpected row tags %v", got)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	s := newSession(t, root)

	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()

	if err := s.SetPrimaryKey(id, "CASE_ID"); err != nil {
		t.Fatalf("SetPrimaryKey failed: %v", err)
	}
	if _, err := s.AddFilter(ctx, id, "CITY", models.OpEqual, "Paris"); err != nil {
		t.Fatalf("AddFilter failed: %v", err)
	}
	if _, err := s.AddFilter(ctx, id, "CASE_ID", models.OpLessThan, "300"); err != nil {
		t.Fatalf("AddFilter failed: %v", err)
	}
	if _, err := s.ToggleFilter(ctx, id, 1); err != nil {
		t.Fatalf("ToggleFilter failed: %v", err)
	}
	if v.Len() != 2 {
		t.Fatalf("expected 2 Paris rows, got %d", v.Len())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newSession(t, root)
	t.Cleanup(func() { _ = reopened.Close() })
	views, err := reopened.LoadProject(ctx)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 dataset, got %d", len(views))
	}

	got := views[0]
	if got.Dataset().ID() != id || got.Dataset().Name() != "CASES" {
		t.Errorf("unexpected dataset %s %s", got.Dataset().ID(), got.Dataset().Name())
	}
	if pk := got.Dataset().PrimaryKey(); pk.Name != "CASE_ID" || pk.Index != 0 {
		t.Errorf("unexpected primary key %+v", pk)
	}
	fs := got.Filters()
	if fs.Len() != 2 || !fs.At(0).Enabled() || fs.At(1).Enabled() {
		t.Fatalf("filters not restored: %+v", fs.Items())
	}
	if got.Len() != 2 {
		t.Errorf("expected stored filters applied, got %d rows", got.Len())
	}
}

func TestLoadProjectUnresolvedPrimaryKey(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	s := newSession(t, root)

	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()
	if err := s.Project().SetPrimaryKey(id, models.PrimaryKey{Name: "GONE", Index: 4}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newSession(t, root)
	t.Cleanup(func() { _ = reopened.Close() })
	if _, err := reopened.LoadProject(ctx); err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	got, err := reopened.View(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dataset().PrimaryKey().IsSet() {
		t.Error("expected unresolved primary key to be unset")
	}
	entry, _ := reopened.Project().Dataset(id)
	if entry.Metadata.PrimaryKeyName != "" || entry.Metadata.PrimaryKeyIndex != -1 {
		t.Errorf("expected stored primary key cleared, got %+v", entry.Metadata)
	}
}

func TestLoadProjectSkipsMissingParquet(t *testing.T) {
	root := t.TempDir()
	s := newSession(t, root)

	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	entry, _ := s.Project().Dataset(v.Dataset().ID())
	if err := os.Remove(s.Project().ResolveParquet(entry.Metadata)); err != nil {
		t.Fatal(err)
	}

	reopened := newSession(t, root)
	views, err := reopened.LoadProject(context.Background())
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("expected missing dataset to be skipped, got %d", len(views))
	}
}

func TestSetPrimaryKeyUnknownColumn(t *testing.T) {
	s := newSession(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))

	err := s.SetPrimaryKey(v.Dataset().ID(), "NOPE")
	if !errors.Is(err, dataset.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
	if v.Dataset().PrimaryKey().IsSet() {
		t.Error("expected primary key unset")
	}
	if err := s.SetPrimaryKey("missing", "CASE_ID"); !errors.Is(err, ErrDatasetNotOpen) {
		t.Errorf("expected ErrDatasetNotOpen, got %v", err)
	}
}

func TestFilterFailureIsPersisted(t *testing.T) {
	s := newSession(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()

	if _, err := s.AddFilter(ctx, id, "CITY", models.OpEqual, "Lyon"); err != nil {
		t.Fatal(err)
	}
	_, err := s.AddFilter(ctx, id, "FOO", models.OpEqual, "x")
	if !view.IsFilterError(err) {
		t.Fatalf("expected filter error, got %v", err)
	}
	if v.Len() != 1 {
		t.Errorf("expected rows from the previous application, got %d", v.Len())
	}

	records, err := s.Project().Filters(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || !records[1].Failed {
		t.Errorf("expected failed flag persisted, got %+v", records)
	}

	if err := s.RemoveFilter(ctx, id, 1); err != nil {
		t.Fatalf("RemoveFilter failed: %v", err)
	}
	if err := s.UpdateFilter(ctx, id, 0, "CITY", models.OpEqual, "Paris"); err != nil {
		t.Fatalf("UpdateFilter failed: %v", err)
	}
	if v.Len() != 2 {
		t.Errorf("expected 2 Paris rows, got %d", v.Len())
	}
}

func TestValidateFilters(t *testing.T) {
	s := newSession(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()

	v.Filters().Add(v.Filters().Build("FOO", models.OpEqual, "x"))
	v.Filters().Add(v.Filters().Build("CITY", models.OpEqual, "Paris"))

	errs, err := s.ValidateFilters(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 {
		t.Errorf("expected 1 validation error, got %v", errs)
	}
	if !v.Filters().At(0).Failed() || v.Filters().At(1).Failed() {
		t.Error("expected only the unknown column filter to be failed")
	}
	if v.Len() != 3 {
		t.Errorf("validation must not change visible rows, got %d", v.Len())
	}
}

func TestSyncSelection(t *testing.T) {
	s := newSession(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	dir := t.TempDir()

	cases := importOne(t, s, writeFile(t, dir, "cases.csv", casesCSV))
	payments := importOne(t, s, writeFile(t, dir, "payments.csv", paymentsCSV))

	if s.SyncEnabled() {
		t.Error("sync must be disabled before primary keys are set")
	}
	if err := s.SetPrimaryKey(cases.Dataset().ID(), "CASE_ID"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPrimaryKey(payments.Dataset().ID(), "CASE_ID"); err != nil {
		t.Fatal(err)
	}
	if !s.SyncEnabled() {
		t.Fatal("expected sync enabled")
	}

	if err := s.SyncSelection(ctx, cases.Dataset().ID(), 1); err != nil {
		t.Fatalf("SyncSelection failed: %v", err)
	}
	if payments.Len() != 2 {
		t.Errorf("expected 2 payments for case 200, got %d", payments.Len())
	}
	if cases.Len() != 3 {
		t.Errorf("source dataset must keep its rows, got %d", cases.Len())
	}

	if err := s.SyncSelection(ctx, payments.Dataset().ID(), 0); err != nil {
		t.Fatalf("SyncSelection failed: %v", err)
	}
	if cases.Len() != 1 || cases.Mode() != view.ModeKey {
		t.Errorf("expected case 200 only, got %d rows", cases.Len())
	}

	s.ResetAll()
	if cases.Len() != 3 || payments.Len() != 3 {
		t.Errorf("expected full datasets after reset, got %d and %d", cases.Len(), payments.Len())
	}

	if err := s.SyncSelection(ctx, cases.Dataset().ID(), 7); !errors.Is(err, dataset.ErrInvalidRow) {
		t.Errorf("expected ErrInvalidRow, got %v", err)
	}
}

func TestTagRowAndShortlist(t *testing.T) {
	root := t.TempDir()
	settings, err := config.NewSettings(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	bus := events.NewBus()
	var kinds []events.Kind
	bus.Subscribe(func(e events.Event) { kinds = append(kinds, e.Kind) })

	s := newSession(t, root, WithSettings(settings), WithBus(bus))
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()

	if err := s.TagRow(ctx, id, 0, []string{"fraud"}); !errors.Is(err, ErrNoPrimaryKey) {
		t.Fatalf("expected ErrNoPrimaryKey, got %v", err)
	}
	if err := s.SetPrimaryKey(id, "CASE_ID"); err != nil {
		t.Fatal(err)
	}

	if err := s.TagRow(ctx, id, 0, []string{"fraud", "review"}); err != nil {
		t.Fatalf("TagRow failed: %v", err)
	}
	if err := s.TagRow(ctx, id, 0, []string{"fraud"}); err != nil {
		t.Fatalf("TagRow failed: %v", err)
	}

	rowTags, err := s.RowTags(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rowTags, []string{"fraud", "review"}) {
		t.Errorf("unexpected row tags %v", rowTags)
	}
	if got := s.Tags().Keys("fraud"); !reflect.DeepEqual(got, []string{"100"}) {
		t.Errorf("unexpected tagged keys %v", got)
	}
	if !reflect.DeepEqual(settings.Tags, []string{"fraud", "review"}) {
		t.Errorf("expected tag names remembered, got %v", settings.Tags)
	}

	matches, err := v.Dataset().Select(ctx, "str_contains(`Tags`, 'fraud')")
	if err != nil || len(matches) != 1 || matches[0] != 0 {
		t.Errorf("expected tags queryable, got %v %v", matches, err)
	}

	item, err := s.ShortlistRow(id, 0, "", "large cash deposit")
	if err != nil {
		t.Fatalf("ShortlistRow failed: %v", err)
	}
	if item.Title != "CASES 100" || !reflect.DeepEqual(item.Tags, []string{"fraud", "review"}) {
		t.Errorf("unexpected shortlist item %+v", item)
	}
	if _, err := s.ShortlistRow(id, 0, "", "again"); err == nil {
		t.Error("expected duplicate title to be rejected")
	}

	var sawTags, sawShortlist bool
	for _, k := range kinds {
		sawTags = sawTags || k == events.TagsChanged
		sawShortlist = sawShortlist || k == events.ShortlistChanged
	}
	if !sawTags || !sawShortlist {
		t.Errorf("expected tag and shortlist events, got %v", kinds)
	}
}

func TestSetRowTagsRemovesDroppedTags(t *testing.T) {
	root := t.TempDir()
	s := newSession(t, root)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()
	if err := s.SetPrimaryKey(id, "CASE_ID"); err != nil {
		t.Fatal(err)
	}

	if err := s.TagRow(ctx, id, 0, []string{"fraud", "review"}); err != nil {
		t.Fatalf("TagRow failed: %v", err)
	}
	if err := s.SetRowTags(ctx, id, 0, []string{"review", "closed"}); err != nil {
		t.Fatalf("SetRowTags failed: %v", err)
	}

	rowTags, err := s.RowTags(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rowTags, []string{"review", "closed"}) {
		t.Errorf("unexpected row tags %v", rowTags)
	}
	if s.Tags().Has("fraud", "100") {
		t.Error("expected fraud to no longer list the row")
	}
	if !s.Tags().Has("closed", "100") || !s.Tags().Has("review", "100") {
		t.Error("expected remaining tags to list the row")
	}

	saved, err := tags.Load(s.Project().TaggedPath())
	if err != nil {
		t.Fatal(err)
	}
	if saved.Has("fraud", "100") {
		t.Error("expected removal to be saved")
	}

	if err := s.SetRowTags(ctx, id, 0, nil); err != nil {
		t.Fatalf("SetRowTags failed: %v", err)
	}
	if rowTags, _ := s.RowTags(id, 0); len(rowTags) != 0 {
		t.Errorf("expected no tags, got %v", rowTags)
	}
	if cell, _ := v.Dataset().Cell(0, "Tags"); cell != nil {
		t.Errorf("expected cleared cell, got %v", cell)
	}
}

func TestRemoveDataset(t *testing.T) {
	s := newSession(t, t.TempDir())
	t.Cleanup(func() { _ = s.Close() })
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()

	if err := s.RemoveDataset(id); err != nil {
		t.Fatalf("RemoveDataset failed: %v", err)
	}
	if len(s.Views()) != 0 {
		t.Error("expected no open views")
	}
	if _, ok := s.Project().Dataset(id); ok {
		t.Error("expected dataset removed from project")
	}
}

func TestFilterHistory(t *testing.T) {
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s := newSession(t, t.TempDir(), WithHistory(store))
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	v := importOne(t, s, writeFile(t, t.TempDir(), "cases.csv", casesCSV))
	id := v.Dataset().ID()

	if _, err := s.AddFilter(ctx, id, "CITY", models.OpEqual, "Paris"); err != nil {
		t.Fatal(err)
	}
	_, _ = s.AddFilter(ctx, id, "FOO", models.OpEqual, "x")

	entries, err := store.Recent(ctx, id, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Success || entries[0].Filters != "CITY == Paris AND FOO == x" {
		t.Errorf("unexpected failed entry %+v", entries[0])
	}
	if !entries[1].Success || entries[1].RowsVisible != 2 {
		t.Errorf("unexpected successful entry %+v", entries[1])
	}
}
