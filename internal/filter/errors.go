package filter

import "errors"

var (
	// ErrInvalidAttribute is returned when a filter names a column the dataset does not have.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrTypeCoercion is returned when a value cannot be read as the column's type.
	ErrTypeCoercion = errors.New("value does not match column type")

	// ErrInvalidOperator is returned for operators outside the supported set.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrPositionOutOfRange is returned when a filter position does not exist.
	ErrPositionOutOfRange = errors.New("filter position out of range")
)
