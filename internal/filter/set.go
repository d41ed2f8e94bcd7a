// Package filter builds row filters for datasets and keeps the ordered set of
// filters attached to each dataset.
package filter

import (
	"fmt"

	"github.com/rebeliceyang/listinsight/internal/events"
	"github.com/rebeliceyang/listinsight/internal/models"
)

// Schema resolves declared column types. *dataset.Dataset implements it.
type Schema interface {
	ColumnType(name string) (models.ColumnType, bool)
}

// Item is one row of the checkbox list presented for a filter set
type Item struct {
	Index   int
	Text    string
	Checked bool
	Failed  bool
}

// Set is the ordered list of filters owned by one dataset. Filters are
// combined with AND, so order only affects display.
type Set struct {
	datasetID string
	schema    Schema
	filters   []*Filter
	bus       *events.Bus
}

// NewSet creates an empty filter set. schema may be nil until the dataset is
// opened; filters built without one are typed as text.
func NewSet(datasetID string, schema Schema) *Set {
	return &Set{datasetID: datasetID, schema: schema}
}

// FromRecords restores a filter set from persisted records. Expressions are
// rebuilt from attribute, operator and value rather than trusted from the
// record. Failure flags are not restored since they are only meaningful
// after re-evaluation.
func FromRecords(datasetID string, schema Schema, records []models.FilterRecord) *Set {
	s := NewSet(datasetID, schema)
	for _, r := range records {
		f := &Filter{enabled: r.Enabled}
		f.set(r.Attribute, r.Operator, r.Value, s.columnType(r.Attribute))
		s.filters = append(s.filters, f)
	}
	return s
}

// DatasetID returns the identifier of the owning dataset
func (s *Set) DatasetID() string { return s.datasetID }

// Schema returns the schema filters are resolved against
func (s *Set) Schema() Schema { return s.schema }

// Bind attaches the schema of a newly opened dataset
func (s *Set) Bind(schema Schema) { s.schema = schema }

// SetBus routes change notifications to bus
func (s *Set) SetBus(bus *events.Bus) { s.bus = bus }

func (s *Set) columnType(attribute string) models.ColumnType {
	if s.schema == nil {
		return models.TypeText
	}
	typ, _ := s.schema.ColumnType(attribute)
	return typ
}

func (s *Set) publish(kind events.Kind, index int) {
	s.bus.Publish(events.Event{Kind: kind, DatasetID: s.datasetID, Index: index})
}

// Build creates an enabled filter typed by the set's schema
func (s *Set) Build(attribute string, op models.FilterOperator, value string) *Filter {
	return New(attribute, op, value, s.columnType(attribute))
}

// Add appends f and returns its position
func (s *Set) Add(f *Filter) int {
	s.filters = append(s.filters, f)
	pos := len(s.filters) - 1
	s.publish(events.FiltersChanged, pos)
	return pos
}

// RemoveAt deletes the filter at pos. Out of range positions are ignored.
func (s *Set) RemoveAt(pos int) {
	if pos < 0 || pos >= len(s.filters) {
		return
	}
	s.filters = append(s.filters[:pos], s.filters[pos+1:]...)
	s.publish(events.FiltersChanged, pos)
}

// Update replaces the condition of the filter at pos, rebuilds its
// expression and clears its failure flag. The returned error reports a value
// that does not fit the column type; the update is kept regardless.
func (s *Set) Update(pos int, attribute string, op models.FilterOperator, value string) error {
	if pos < 0 || pos >= len(s.filters) {
		return fmt.Errorf("%w: %d", ErrPositionOutOfRange, pos)
	}
	f := s.filters[pos]
	f.set(attribute, op, value, s.columnType(attribute))
	f.failed = false
	s.publish(events.FiltersChanged, pos)
	return f.buildErr
}

// Toggle flips the enabled state of the filter at pos and returns the new
// state. The expression is left untouched.
func (s *Set) Toggle(pos int) bool {
	if pos < 0 || pos >= len(s.filters) {
		return false
	}
	f := s.filters[pos]
	f.enabled = !f.enabled
	s.publish(events.FilterToggled, pos)
	return f.enabled
}

// SetFailed records the outcome of evaluating the filter at pos
func (s *Set) SetFailed(pos int, failed bool) {
	if pos < 0 || pos >= len(s.filters) {
		return
	}
	s.filters[pos].failed = failed
}

// At returns the filter at pos, or nil
func (s *Set) At(pos int) *Filter {
	if pos < 0 || pos >= len(s.filters) {
		return nil
	}
	return s.filters[pos]
}

// Len returns the number of filters
func (s *Set) Len() int { return len(s.filters) }

// Filters returns the filters in order
func (s *Set) Filters() []*Filter {
	return append([]*Filter(nil), s.filters...)
}

// Enabled returns the positions of enabled filters in order
func (s *Set) Enabled() []int {
	var positions []int
	for i, f := range s.filters {
		if f.enabled {
			positions = append(positions, i)
		}
	}
	return positions
}

// Validate checks every filter against the schema. Filters that cannot be
// compiled are marked failed and reported; the rest are left as they are.
func (s *Set) Validate() []error {
	var errs []error
	for i, f := range s.filters {
		if _, err := f.Compile(s.schema); err != nil {
			f.failed = true
			errs = append(errs, fmt.Errorf("filter %d (%s): %w", i, f, err))
		}
	}
	if len(errs) > 0 {
		s.publish(events.FiltersChanged, -1)
	}
	return errs
}

// Records returns the persisted form of every filter in order
func (s *Set) Records() []models.FilterRecord {
	records := make([]models.FilterRecord, len(s.filters))
	for i, f := range s.filters {
		records[i] = f.Record()
	}
	return records
}

// Items returns the checkbox list view of the set
func (s *Set) Items() []Item {
	items := make([]Item, len(s.filters))
	for i, f := range s.filters {
		items[i] = Item{Index: i, Text: f.String(), Checked: f.enabled, Failed: f.failed}
	}
	return items
}
