package models

import (
	"fmt"
	"strings"
)

// FilterOperator represents a filter comparison operator
type FilterOperator string

const (
	OpEqual          FilterOperator = "=="
	OpNotEqual       FilterOperator = "!="
	OpGreaterThan    FilterOperator = ">"
	OpLessThan       FilterOperator = "<"
	OpGreaterOrEqual FilterOperator = ">="
	OpLessOrEqual    FilterOperator = "<="
	OpIn             FilterOperator = "in"
	OpContains       FilterOperator = "contains"
	OpStartsWith     FilterOperator = "startswith"
	OpEndsWith       FilterOperator = "endswith"
)

// Operators returns every supported operator in menu order
func Operators() []FilterOperator {
	return []FilterOperator{
		OpEqual, OpNotEqual,
		OpGreaterThan, OpLessThan,
		OpGreaterOrEqual, OpLessOrEqual,
		OpIn,
		OpContains, OpStartsWith, OpEndsWith,
	}
}

// ParseOperator converts user input into a FilterOperator.
// "=" is accepted as an alias for "==".
func ParseOperator(s string) (FilterOperator, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "=" {
		return OpEqual, nil
	}
	for _, op := range Operators() {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unsupported operator: %q", s)
}

// IsStringMethod reports whether the operator matches against the text form of a value
func (op FilterOperator) IsStringMethod() bool {
	switch op {
	case OpContains, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// IsComparison reports whether the operator is a binary comparison
func (op FilterOperator) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

// OperatorsForType returns the operators offered for a column type.
// Numeric columns accept the string methods too; they match against the
// column's text representation.
func OperatorsForType(t ColumnType) []FilterOperator {
	switch t {
	case TypeNumeric, TypeText:
		return Operators()
	default:
		return []FilterOperator{OpEqual, OpNotEqual}
	}
}

// FilterRecord is the persisted form of a single filter
type FilterRecord struct {
	Attribute  string         `json:"attr"`
	Operator   FilterOperator `json:"oper"`
	Value      string         `json:"value"`
	Enabled    bool           `json:"enabled"`
	Failed     bool           `json:"failed"`
	Expression string         `json:"expression"`
}
