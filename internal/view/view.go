// Package view derives the visible rows of a dataset from its unfiltered
// snapshot, its filter set and selection sync requests.
package view

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/events"
	"github.com/rebeliceyang/listinsight/internal/filter"
)

// Mode tells which operation produced the visible rows
type Mode int

const (
	ModeAll Mode = iota
	ModeFiltered
	ModeKey
)

// ApplyError reports the filter that stopped an application
type ApplyError struct {
	Index  int
	Filter string
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("filter %d (%s): %v", e.Index, e.Filter, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// View is the currently visible subset of one dataset
type View struct {
	dataset *dataset.Dataset
	filters *filter.Set
	visible []int
	mode    Mode
	bus     *events.Bus
	logger  *zap.SugaredLogger
}

// Option configures a View
type Option func(*View)

// WithBus routes RowsChanged notifications to bus
func WithBus(bus *events.Bus) Option {
	return func(v *View) { v.bus = bus }
}

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(v *View) { v.logger = logger }
}

// New creates a view showing every row of ds. A nil set is replaced by an
// empty one bound to ds.
func New(ds *dataset.Dataset, set *filter.Set, opts ...Option) *View {
	if set == nil {
		set = filter.NewSet(ds.ID(), ds)
	}
	set.Bind(ds)

	v := &View{
		dataset: ds,
		filters: set,
		visible: ds.All(),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Dataset returns the underlying dataset
func (v *View) Dataset() *dataset.Dataset { return v.dataset }

// Filters returns the filter set
func (v *View) Filters() *filter.Set { return v.filters }

// Mode returns how the current rows were produced
func (v *View) Mode() Mode { return v.mode }

// Visible returns the snapshot positions of the visible rows
func (v *View) Visible() []int {
	return append([]int(nil), v.visible...)
}

// Len returns the number of visible rows
func (v *View) Len() int { return len(v.visible) }

// Rows returns the visible rows
func (v *View) Rows() []dataset.Row {
	rows := make([]dataset.Row, 0, len(v.visible))
	for _, pos := range v.visible {
		row, err := v.dataset.Row(pos)
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// Position maps a visible row index to its snapshot position
func (v *View) Position(i int) (int, error) {
	if i < 0 || i >= len(v.visible) {
		return -1, fmt.Errorf("%w: %d", dataset.ErrInvalidRow, i)
	}
	return v.visible[i], nil
}

// Apply recomputes the visible rows from the unfiltered snapshot and every
// enabled filter, in list order. The first filter that fails to compile or
// evaluate is marked failed and the visible rows are left as they were.
func (v *View) Apply(ctx context.Context) error {
	result := v.dataset.All()
	var evaluated []int

	for _, pos := range v.filters.Enabled() {
		f := v.filters.At(pos)

		expr, err := f.Compile(v.dataset)
		if err == nil {
			var matches []int
			matches, err = v.dataset.Select(ctx, expr)
			if err == nil {
				result = intersect(result, matches)
				evaluated = append(evaluated, pos)
				continue
			}
		}

		v.filters.SetFailed(pos, true)
		v.logger.Warnw("filter failed",
			"dataset", v.dataset.Name(),
			"index", pos,
			"filter", f.String(),
			"error", err)
		return &ApplyError{Index: pos, Filter: f.String(), Err: err}
	}

	for _, pos := range evaluated {
		v.filters.SetFailed(pos, false)
	}

	v.logger.Debugw("filters applied",
		"dataset", v.dataset.Name(),
		"filters", len(evaluated),
		"rows", len(result))
	v.setVisible(result, ModeFiltered)
	return nil
}

// FilterByKey shows only the rows whose primary key equals value, searched in
// the unfiltered snapshot. It does nothing when no primary key is set.
func (v *View) FilterByKey(ctx context.Context, value string) error {
	pk := v.dataset.PrimaryKey()
	if !pk.IsSet() {
		return nil
	}

	typ, ok := v.dataset.ColumnType(pk.Name)
	if !ok {
		return fmt.Errorf("%w: %s", filter.ErrInvalidAttribute, pk.Name)
	}

	matches, err := v.dataset.Select(ctx, filter.BuildKeyExpression(pk.Name, typ, value))
	if err != nil {
		v.logger.Warnw("key filter failed", "dataset", v.dataset.Name(), "key", pk.Name, "error", err)
		return err
	}

	v.setVisible(matches, ModeKey)
	return nil
}

// Reset shows every row of the unfiltered snapshot. The filter set is not
// reapplied; call Apply for that.
func (v *View) Reset() {
	v.setVisible(v.dataset.All(), ModeAll)
}

func (v *View) setVisible(rows []int, mode Mode) {
	if rows == nil {
		rows = []int{}
	}
	v.visible = rows
	v.mode = mode
	v.bus.Publish(events.Event{Kind: events.RowsChanged, DatasetID: v.dataset.ID(), Index: -1})
}

// IsFilterError reports whether err came from a filter that could not be applied
func IsFilterError(err error) bool {
	var applyErr *ApplyError
	return errors.As(err, &applyErr)
}

// intersect returns the elements of a also present in b. Both are ascending.
func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
