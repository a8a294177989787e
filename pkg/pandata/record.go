package pandata

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Record is a single loaded JSON object. Values are whatever encoding/json
// produces for an untyped decode: string, float64, bool, nil,
// map[string]any or []any.
type Record map[string]any

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the probe value that matches a field missing from a record.
// A nil probe only matches a field that is present and set to JSON null.
var Undefined any = undefined{}

// Field returns the value stored under key, or Undefined when the record
// has no such field.
func (r Record) Field(key string) any {
	v, ok := r[key]
	if !ok {
		return Undefined
	}
	return v
}

// StrictEqual reports whether a and b are the same value without any
// cross-type coercion. Numbers of any Go numeric kind compare by value,
// strings and bools compare by value, and maps and slices compare by
// identity rather than content. Empty slices with no backing array carry
// no identity in Go, so they never equal anything, not even themselves.
func StrictEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case undefined:
		_, ok := b.(undefined)
		return ok
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	return sameReference(a, b)
}

func sameReference(a, b any) bool {
	if b == nil {
		return false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}

	switch ra.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		if ra.Cap() == 0 || rb.Cap() == 0 {
			return false
		}
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	case reflect.Func:
		return false
	}

	if ra.Type().Comparable() {
		return comparableEqual(a, b)
	}
	return false
}

// comparableEqual is a == b for types that are comparable but may still
// hold an uncomparable dynamic value, such as a struct with an any field.
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// toFloat normalizes the numeric kinds a caller may probe with.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	}
	return 0, false
}

// toNumber coerces a field value the way the default sort comparator
// expects: missing and null are 0, bools are 0 or 1, strings are parsed as
// numbers (blank is 0) and anything else is NaN. An array counts as the
// number its text form parses to, so [] is 0, [5] is 5 and [1, 2] is NaN.
func toNumber(v any) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}

	switch t := v.(type) {
	case nil, undefined:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		return parseNumber(t)
	case []any:
		switch len(t) {
		case 0:
			return 0
		case 1:
			switch e := t[0].(type) {
			case nil:
				return 0
			case bool:
				// "true" and "false" are not numbers
				return math.NaN()
			case string, []any:
				return toNumber(e)
			}
			if f, ok := toFloat(t[0]); ok {
				return f
			}
		}
	}

	return math.NaN()
}

// parseNumber reads a numeric string: decimal with optional sign and
// exponent, "Infinity" with optional sign, or an unsigned 0x, 0o or 0b
// integer. Surrounding whitespace is ignored and blank is 0.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, ok := new(big.Int).SetString(s[2:], base)
			if !ok {
				return math.NaN()
			}
			f, _ := new(big.Float).SetInt(n).Float64()
			return f
		}
	}

	unsigned := strings.TrimLeft(s, "+-")
	if len(s)-len(unsigned) > 1 {
		return math.NaN()
	}
	if unsigned == "Infinity" {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	if strings.IndexFunc(unsigned, notDecimal) >= 0 {
		return math.NaN()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

func notDecimal(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return false
	case r == '.', r == 'e', r == 'E', r == '+', r == '-':
		return false
	}
	return true
}

// ParseValue interprets s as a JSON literal so that "1" probes the number
// 1, "true" the bool and "null" a JSON null. Input that is not valid JSON
// is returned unchanged as a string.
func ParseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// kindOf names the JSON kind of a decoded value.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return reflect.TypeOf(v).String()
}
