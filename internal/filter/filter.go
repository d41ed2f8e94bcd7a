package filter

import (
	"fmt"

	"github.com/rebeliceyang/listinsight/internal/models"
)

// Filter is a single user-defined row condition over one column
type Filter struct {
	attribute  string
	operator   models.FilterOperator
	value      string
	enabled    bool
	failed     bool
	columnType models.ColumnType
	expression string
	buildErr   error
}

// New creates an enabled filter and derives its expression
func New(attribute string, op models.FilterOperator, value string, typ models.ColumnType) *Filter {
	f := &Filter{enabled: true}
	f.set(attribute, op, value, typ)
	return f
}

// set replaces the condition and rebuilds the expression
func (f *Filter) set(attribute string, op models.FilterOperator, value string, typ models.ColumnType) {
	f.attribute = attribute
	f.operator = op
	f.value = value
	f.columnType = typ
	f.expression, f.buildErr = BuildExpression(attribute, op, value, typ)
}

func (f *Filter) Attribute() string               { return f.attribute }
func (f *Filter) Operator() models.FilterOperator { return f.operator }
func (f *Filter) Value() string                   { return f.value }
func (f *Filter) Enabled() bool                   { return f.enabled }
func (f *Filter) Failed() bool                    { return f.failed }
func (f *Filter) Expression() string              { return f.expression }

// Err returns the error from the last expression build, if any
func (f *Filter) Err() error { return f.buildErr }

// String returns the display text shown in filter lists
func (f *Filter) String() string {
	return fmt.Sprintf("%s %s %s", f.attribute, f.operator, f.value)
}

// Compile resolves the attribute against schema and returns the expression to
// evaluate. A column whose declared type changed since the filter was built
// causes a rebuild.
func (f *Filter) Compile(schema Schema) (string, error) {
	if schema == nil {
		return f.expression, fmt.Errorf("%w: %s", ErrInvalidAttribute, f.attribute)
	}
	typ, ok := schema.ColumnType(f.attribute)
	if !ok {
		return f.expression, fmt.Errorf("%w: %s", ErrInvalidAttribute, f.attribute)
	}
	if typ != f.columnType || f.expression == "" {
		f.set(f.attribute, f.operator, f.value, typ)
	}
	return f.expression, f.buildErr
}

// Record returns the persisted form of the filter
func (f *Filter) Record() models.FilterRecord {
	return models.FilterRecord{
		Attribute:  f.attribute,
		Operator:   f.operator,
		Value:      f.value,
		Enabled:    f.enabled,
		Failed:     f.failed,
		Expression: f.expression,
	}
}
