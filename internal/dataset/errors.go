package dataset

import "errors"

// Common errors returned by the dataset package.
var (
	// ErrColumnNotFound is returned when a column name is not part of the dataset.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidRow is returned when a row index is out of range.
	ErrInvalidRow = errors.New("invalid row index")

	// ErrUnsupportedFile is returned for file types that cannot be imported.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrEmptyData is returned when a file holds no header row.
	ErrEmptyData = errors.New("data is empty")

	// ErrUnknownEncoding is returned for fallback encodings that cannot be resolved.
	ErrUnknownEncoding = errors.New("unknown text encoding")

	// ErrClosed is returned when querying a dataset after Close.
	ErrClosed = errors.New("dataset is closed")
)
