package models

import "fmt"

// ColumnType is the declared type of a dataset column.
// Filtering only distinguishes numeric from text.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeNumeric
)

// String returns the string representation of a ColumnType
func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Column describes a dataset column
type Column struct {
	Name string
	Type ColumnType
}

// PrimaryKey is the column used to correlate rows across datasets
type PrimaryKey struct {
	Name  string
	Index int
}

// NoPrimaryKey is the unset primary key
var NoPrimaryKey = PrimaryKey{Name: "", Index: -1}

// IsSet reports whether a primary key column is selected and resolved
func (pk PrimaryKey) IsSet() bool {
	return pk.Name != "" && pk.Index >= 0
}

// ShortlistItem is a row of interest with the analyst's notes
type ShortlistItem struct {
	Title   string   `json:"-"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags"`
	Finding bool     `json:"finding"`
}
