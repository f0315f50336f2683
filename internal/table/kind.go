// Package table is a small typed, columnar, in-memory table used between the
// parsers, the trip normalizer and the chunked loader.
//
// A Table is an ordered list of equally long Series. Every cell may be null.
// Timestamp series carry an optional zone name; an empty zone means the values
// are naive wall-clock times stored in UTC.
package table

import "fmt"

// Kind is the logical type of a Series.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field names and types one column of a Schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered column layout of a Table.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Equal reports whether both schemas have the same names and kinds in the
// same order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}
