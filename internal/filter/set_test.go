package filter

import (
	"errors"
	"testing"

	"github.com/rebeliceyang/listinsight/internal/events"
	"github.com/rebeliceyang/listinsight/internal/models"
)

type fakeSchema map[string]models.ColumnType

func (s fakeSchema) ColumnType(name string) (models.ColumnType, bool) {
	t, ok := s[name]
	return t, ok
}

var testSchema = fakeSchema{
	"AGE":  models.TypeNumeric,
	"CITY": models.TypeText,
}

func TestSetAddRemove(t *testing.T) {
	s := NewSet("ds-1", testSchema)

	if pos := s.Add(s.Build("AGE", models.OpGreaterThan, "30")); pos != 0 {
		t.Errorf("expected position 0, got %d", pos)
	}
	if pos := s.Add(s.Build("CITY", models.OpEqual, "Paris")); pos != 1 {
		t.Errorf("expected position 1, got %d", pos)
	}
	if pos := s.Add(s.Build("CITY", models.OpEqual, "Paris")); pos != 2 {
		t.Errorf("duplicates must be accepted, got position %d", pos)
	}

	s.RemoveAt(5)
	s.RemoveAt(-1)
	if s.Len() != 3 {
		t.Fatalf("out of range removal must be a no-op, have %d filters", s.Len())
	}

	s.RemoveAt(0)
	if s.Len() != 2 || s.At(0).Attribute() != "CITY" {
		t.Errorf("unexpected filters after removal: %v", s.Items())
	}
}

func TestSetBuildUsesSchemaType(t *testing.T) {
	s := NewSet("ds-1", testSchema)
	f := s.Build("AGE", models.OpEqual, "5")

	if f.Expression() != "`AGE` == 5" {
		t.Errorf("expected numeric expression, got %s", f.Expression())
	}
	if !f.Enabled() || f.Failed() {
		t.Error("new filters must be enabled and not failed")
	}
}

func TestSetUpdateRebuildsAndClearsFailed(t *testing.T) {
	s := NewSet("ds-1", testSchema)
	s.Add(s.Build("CITY", models.OpEqual, "Paris"))
	s.SetFailed(0, true)

	if err := s.Update(0, "AGE", models.OpLessThan, "40"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	f := s.At(0)
	if f.Failed() {
		t.Error("expected failed flag to be cleared")
	}
	if f.Expression() != "`AGE` < 40" {
		t.Errorf("expected rebuilt expression, got %s", f.Expression())
	}

	if err := s.Update(0, "AGE", models.OpLessThan, "forty"); !errors.Is(err, ErrTypeCoercion) {
		t.Errorf("expected ErrTypeCoercion, got %v", err)
	}
	if s.At(0).Value() != "forty" {
		t.Error("update must be kept even when the value does not fit")
	}

	if err := s.Update(3, "AGE", models.OpEqual, "1"); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("expected ErrPositionOutOfRange, got %v", err)
	}
}

func TestSetToggleKeepsExpression(t *testing.T) {
	s := NewSet("ds-1", testSchema)
	s.Add(s.Build("CITY", models.OpEqual, "Paris"))
	before := s.At(0).Expression()

	if s.Toggle(0) {
		t.Error("expected toggle to disable")
	}
	if s.At(0).Expression() != before {
		t.Error("toggle must not rebuild the expression")
	}
	if len(s.Enabled()) != 0 {
		t.Errorf("expected no enabled filters, got %v", s.Enabled())
	}
	if !s.Toggle(0) {
		t.Error("expected toggle to enable")
	}
}

func TestSetPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	var kinds []events.Kind
	bus.Subscribe(func(e events.Event) {
		if e.DatasetID != "ds-1" {
			t.Errorf("unexpected dataset id %s", e.DatasetID)
		}
		kinds = append(kinds, e.Kind)
	})

	s := NewSet("ds-1", testSchema)
	s.SetBus(bus)
	s.Add(s.Build("CITY", models.OpEqual, "Paris"))
	s.Toggle(0)
	s.RemoveAt(0)

	want := []events.Kind{events.FiltersChanged, events.FilterToggled, events.FiltersChanged}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestSetValidateMarksMissingAttributes(t *testing.T) {
	s := NewSet("ds-1", testSchema)
	s.Add(s.Build("FOO", models.OpEqual, "x"))
	s.Add(s.Build("CITY", models.OpEqual, "Paris"))

	errs := s.Validate()
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidAttribute) {
		t.Fatalf("expected one ErrInvalidAttribute, got %v", errs)
	}
	if !s.At(0).Failed() {
		t.Error("expected missing attribute to be marked failed")
	}
	if s.At(1).Failed() {
		t.Error("valid filter must not be marked failed")
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	s := NewSet("ds-1", testSchema)
	s.Add(s.Build("AGE", models.OpGreaterThan, "30"))
	s.Add(s.Build("CITY", models.OpIn, "Paris, Lyon"))
	s.Toggle(1)
	s.SetFailed(0, true)

	records := s.Records()
	if !records[0].Failed {
		t.Error("records must carry the failed flag")
	}

	restored := FromRecords("ds-1", testSchema, records)
	if restored.Len() != s.Len() {
		t.Fatalf("expected %d filters, got %d", s.Len(), restored.Len())
	}
	for i, f := range restored.Filters() {
		orig := s.At(i)
		if f.Attribute() != orig.Attribute() || f.Operator() != orig.Operator() ||
			f.Value() != orig.Value() || f.Enabled() != orig.Enabled() {
			t.Errorf("filter %d not restored: %v vs %v", i, f.Record(), orig.Record())
		}
		if f.Expression() != orig.Expression() {
			t.Errorf("filter %d expression changed: %s vs %s", i, f.Expression(), orig.Expression())
		}
		if f.Failed() {
			t.Errorf("filter %d: failed flag must reset on load", i)
		}
	}
}

func TestFromRecordsRebuildsMissingExpression(t *testing.T) {
	records := []models.FilterRecord{{Attribute: "AGE", Operator: models.OpEqual, Value: "7", Enabled: true}}

	s := FromRecords("ds-1", testSchema, records)
	if got := s.At(0).Expression(); got != "`AGE` == 7" {
		t.Errorf("expected rebuilt expression, got %s", got)
	}
}

func TestFromRecordsIgnoresStoredExpression(t *testing.T) {
	records := []models.FilterRecord{{
		Attribute:  "CITY",
		Operator:   models.OpEqual,
		Value:      "Paris",
		Enabled:    true,
		Expression: "1 = 1 OR `CITY` IS NULL",
	}}

	s := FromRecords("ds-1", testSchema, records)
	if got := s.At(0).Expression(); got != "`CITY` == 'Paris'" {
		t.Errorf("expected expression rebuilt from the record fields, got %s", got)
	}
}

func TestItems(t *testing.T) {
	s := NewSet("ds-1", testSchema)
	s.Add(s.Build("CITY", models.OpContains, "ar"))
	s.SetFailed(0, true)

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Text != "CITY contains ar" || !items[0].Checked || !items[0].Failed {
		t.Errorf("unexpected item %+v", items[0])
	}
}
