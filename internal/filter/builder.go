package filter

import (
	"fmt"
	"strings"

	"github.com/rebeliceyang/listinsight/internal/dataset"
	"github.com/rebeliceyang/listinsight/internal/models"
)

// BuildExpression compiles (attribute, operator, value) into a query engine
// expression for a column of the given type. The expression is always
// returned, even when err reports a type coercion failure, so callers can
// display what would run.
func BuildExpression(attribute string, op models.FilterOperator, value string, typ models.ColumnType) (string, error) {
	column := dataset.QuoteIdentifier(attribute)

	if op.IsStringMethod() {
		if typ == models.TypeNumeric {
			column = "CAST(" + column + " AS TEXT)"
		}
		return fmt.Sprintf("%s(%s, %s)", stringFunction(op), column, dataset.QuoteLiteral(value)), nil
	}

	switch {
	case op == models.OpIn && typ == models.TypeNumeric:
		return buildNumericIn(column, value)
	case op == models.OpIn:
		items := splitList(value)
		quoted := make([]string, len(items))
		for i, item := range items {
			quoted[i] = dataset.QuoteLiteral(item)
		}
		return column + " IN (" + strings.Join(quoted, ", ") + ")", nil
	case op.IsComparison() && typ == models.TypeNumeric:
		literal, ok := numericLiteral(value)
		if !ok {
			return column + " " + string(op) + " " + dataset.QuoteLiteral(value),
				fmt.Errorf("%w: %s %s %q", ErrTypeCoercion, attribute, op, value)
		}
		return column + " " + string(op) + " " + literal, nil
	case op.IsComparison():
		return column + " " + string(op) + " " + dataset.QuoteLiteral(value), nil
	default:
		return column + " == " + dataset.QuoteLiteral(value),
			fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
}

func buildNumericIn(column, value string) (string, error) {
	items := splitList(value)
	literals := make([]string, len(items))
	var bad []string

	for i, item := range items {
		literal, ok := numericLiteral(item)
		if !ok {
			bad = append(bad, item)
			literal = dataset.QuoteLiteral(item)
		}
		literals[i] = literal
	}

	expr := column + " IN (" + strings.Join(literals, ", ") + ")"
	if len(bad) > 0 {
		return expr, fmt.Errorf("%w: %s", ErrTypeCoercion, strings.Join(bad, ", "))
	}
	return expr, nil
}

// BuildKeyExpression compiles the primary key point filter. Numeric keys are
// compared numerically when the value parses, otherwise by their text form.
func BuildKeyExpression(column string, typ models.ColumnType, value string) string {
	quoted := dataset.QuoteIdentifier(column)

	if typ == models.TypeNumeric {
		if literal, ok := numericLiteral(value); ok {
			return quoted + " == " + literal
		}
		return "CAST(" + quoted + " AS TEXT) == " + dataset.QuoteLiteral(value)
	}
	return quoted + " == " + dataset.QuoteLiteral(value)
}

func stringFunction(op models.FilterOperator) string {
	switch op {
	case models.OpStartsWith:
		return "str_startswith"
	case models.OpEndsWith:
		return "str_endswith"
	default:
		return "str_contains"
	}
}

// numericLiteral renders value as a canonical number literal
func numericLiteral(value string) (string, bool) {
	v, ok := dataset.ParseNumber(value)
	if !ok {
		return "", false
	}
	return dataset.FormatValue(v), true
}

// splitList parses a comma separated list, trimming items and dropping
// empty ones
func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
