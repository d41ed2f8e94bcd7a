package session

import "errors"

var (
	ErrDatasetNotOpen = errors.New("dataset is not open")
	ErrNoPrimaryKey   = errors.New("dataset has no primary key")
)
