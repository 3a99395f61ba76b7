package vm

import (
	"math"
	"strconv"
)

type (
	// Kind tells which of the fields of a Value is meaningful.
	Kind int

	// Value is the result of evaluating an expression: a number, a string, or
	// a note literal such as "C#4".
	Value struct {
		Kind Kind
		Num  float64
		Str  string
	}
)

const (
	NumberKind Kind = iota
	StringKind
	NoteKind
)

func Number(f float64) Value { return Value{Kind: NumberKind, Num: f} }
func String(s string) Value  { return Value{Kind: StringKind, Str: s} }
func Note(s string) Value    { return Value{Kind: NoteKind, Str: s} }

func (k Kind) String() string {
	switch k {
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case NoteKind:
		return "note"
	}
	return "unknown"
}

// Float returns the numeric value; strings and notes are 0.
func (v Value) Float() float64 {
	if v.Kind == NumberKind {
		return v.Num
	}
	return 0
}

// Truthy reports whether the value counts as true in a condition: a number
// other than 0 and NaN, or a non-empty string or note.
func (v Value) Truthy() bool {
	if v.Kind == NumberKind {
		return v.Num != 0 && !math.IsNaN(v.Num)
	}
	return v.Str != ""
}

func (v Value) String() string {
	if v.Kind == NumberKind {
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	}
	return v.Str
}

func boolean(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}
