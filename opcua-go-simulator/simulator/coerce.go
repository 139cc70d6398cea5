// Package simulator implements the configuration-driven address-space builder
// and the periodic engine that drives variable values over time.
package simulator

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType is the declared type of a variable. The zero value is TypeFloat,
// the schema default.
type ValueType int

const (
	TypeFloat ValueType = iota
	TypeBool
	TypeInt
	TypeString
)

func (t ValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	default:
		return "float"
	}
}

// ParseType maps a declared type string onto a ValueType. An empty string is
// the schema default (float); anything unrecognized degrades to string.
func ParseType(s string) ValueType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float", "double", "number":
		return TypeFloat
	case "bool", "boolean":
		return TypeBool
	case "int", "integer", "int32", "int64", "uint16", "uint32":
		return TypeInt
	default:
		return TypeString
	}
}

var truthy = map[string]bool{"1": true, "true": true, "yes": true, "on": true}

// ToBool interprets an arbitrary scalar as a boolean: booleans pass through,
// numbers are nonzero-tested, everything else is stringified and matched
// against the truthy set.
func ToBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return toFloat(v) != 0
	default:
		return truthy[strings.TrimSpace(strings.ToLower(fmt.Sprintf("%v", v)))]
	}
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case nil:
		return 0
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprintf("%v", v)), 64)
		if err != nil {
			return 0
		}
		return f
	}
}

// Coerce normalizes a raw value to the declared type. It never fails: integer
// coercion widens to float then truncates toward zero, and unrecognized
// boolean strings become false. This is the single normalization point before
// any value is written to a node.
func Coerce(t ValueType, v interface{}) interface{} {
	switch t {
	case TypeBool:
		return ToBool(v)
	case TypeInt:
		return int64(toFloat(v))
	case TypeFloat:
		return toFloat(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
