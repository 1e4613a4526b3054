package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the declared or inferred type of a column.
type Type int

const (
	TypeString Type = iota
	TypeNumber
	TypeBool
	TypeDate
)

// DateLayout is the canonical date format for date-typed cells.
const DateLayout = "2006-01-02"

func (t Type) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	default:
		return "string"
	}
}

// ParseType maps a type name to a Type. Used by schema definitions.
func ParseType(s string) (Type, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "string", "":
		return TypeString, nil
	case "number", "numeric", "float":
		return TypeNumber, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "date":
		return TypeDate, nil
	default:
		return TypeString, fmt.Errorf("unknown column type %q", s)
	}
}

// Value is one typed scalar cell. The zero Value is a null string cell.
type Value struct {
	typ  Type
	set  bool
	s    string
	n    float64
	b    bool
	when time.Time
}

// Null returns a null cell for the given column type.
func Null(t Type) Value {
	return Value{typ: t}
}

func String(s string) Value {
	return Value{typ: TypeString, set: true, s: s}
}

func Number(n float64) Value {
	return Value{typ: TypeNumber, set: true, n: n}
}

func Bool(b bool) Value {
	return Value{typ: TypeBool, set: true, b: b}
}

func Date(t time.Time) Value {
	return Value{typ: TypeDate, set: true, when: t.Truncate(24 * time.Hour)}
}

func (v Value) Type() Type   { return v.typ }
func (v Value) IsNull() bool { return !v.set }

// StringValue returns the cell as a string. Null cells report ok=false.
func (v Value) StringValue() (string, bool) {
	if !v.set {
		return "", false
	}
	return v.Format(), true
}

// NumberValue returns the numeric cell value. Non-numeric and null cells
// report ok=false.
func (v Value) NumberValue() (float64, bool) {
	if !v.set || v.typ != TypeNumber {
		return 0, false
	}
	return v.n, true
}

func (v Value) BoolValue() (bool, bool) {
	if !v.set || v.typ != TypeBool {
		return false, false
	}
	return v.b, true
}

func (v Value) DateValue() (time.Time, bool) {
	if !v.set || v.typ != TypeDate {
		return time.Time{}, false
	}
	return v.when, true
}

// Format renders the cell for delimited output. Null cells render empty.
func (v Value) Format() string {
	if !v.set {
		return ""
	}
	switch v.typ {
	case TypeNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeDate:
		return v.when.Format(DateLayout)
	default:
		return v.s
	}
}

// Equal reports whether two cells hold the same typed value.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.set != o.set {
		return false
	}
	if !v.set {
		return true
	}
	switch v.typ {
	case TypeNumber:
		return v.n == o.n
	case TypeBool:
		return v.b == o.b
	case TypeDate:
		return v.when.Equal(o.when)
	default:
		return v.s == o.s
	}
}

// Parse coerces a raw string into a cell of type t. Empty input is null.
func Parse(raw string, t Type) (Value, error) {
	if raw == "" {
		return Null(t), nil
	}
	switch t {
	case TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Null(t), fmt.Errorf("parse number %q: %w", raw, err)
		}
		return Number(n), nil
	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(raw)))
		if err != nil {
			return Null(t), fmt.Errorf("parse bool %q: %w", raw, err)
		}
		return Bool(b), nil
	case TypeDate:
		when, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
		if err != nil {
			return Null(t), fmt.Errorf("parse date %q: %w", raw, err)
		}
		return Date(when), nil
	default:
		return String(raw), nil
	}
}

// InferType picks the narrowest type that parses every non-empty sample.
// Columns with no non-empty samples stay string.
func InferType(samples []string) Type {
	seen := false
	isNumber, isBool, isDate := true, true, true
	for _, raw := range samples {
		if raw == "" {
			continue
		}
		seen = true
		raw = strings.TrimSpace(raw)
		if isNumber {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				isNumber = false
			}
		}
		if isBool {
			if _, err := strconv.ParseBool(strings.ToLower(raw)); err != nil {
				isBool = false
			}
		}
		if isDate {
			if _, err := time.ParseInLocation(DateLayout, raw, time.UTC); err != nil {
				isDate = false
			}
		}
	}
	if !seen {
		return TypeString
	}
	switch {
	case isNumber:
		return TypeNumber
	case isBool:
		return TypeBool
	case isDate:
		return TypeDate
	default:
		return TypeString
	}
}
