// Package marshal converts between raw little-endian PLC buffers and Go
// values using built data-type trees.
package marshal

import (
	"fmt"
	"reflect"
	"strings"
)

// baseTypeSizes maps PLC base type names to their storage width in bytes.
// STRING and WSTRING are absent: their size comes from the declaration.
var baseTypeSizes = map[string]uint32{
	"BOOL":           1,
	"BIT":            1,
	"BYTE":           1,
	"SINT":           1,
	"USINT":          1,
	"WORD":           2,
	"INT":            2,
	"UINT":           2,
	"DWORD":          4,
	"DINT":           4,
	"UDINT":          4,
	"REAL":           4,
	"TIME":           4,
	"TOD":            4,
	"TIME_OF_DAY":    4,
	"DATE":           4,
	"DT":             4,
	"DATE_AND_TIME":  4,
	"LWORD":          8,
	"LINT":           8,
	"ULINT":          8,
	"LREAL":          8,
	"LTIME":          8,
	"LTOD":           8,
	"LDATE":          8,
	"LDT":            8,
	"LDATE_AND_TIME": 8,
	"FILETIME":       8,
}

// BaseTypeSize returns the storage width of a PLC base type name, or false
// if the name is not a fixed-size base type. STRING(n)/WSTRING(n) report
// true with size 0 (declaration-sized).
func BaseTypeSize(name string) (uint32, bool) {
	upper := normalizeTypeName(name)
	if size, ok := baseTypeSizes[upper]; ok {
		return size, true
	}
	if upper == "STRING" || upper == "WSTRING" {
		return 0, true
	}
	return 0, false
}

// IsBaseType reports whether name is a final PLC base type.
func IsBaseType(name string) bool {
	_, ok := BaseTypeSize(name)
	return ok
}

// normalizeTypeName uppercases the name and strips a "(n)" size suffix
// (STRING(80) → STRING).
func normalizeTypeName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.IndexByte(upper, '('); idx >= 0 {
		upper = strings.TrimSpace(upper[:idx])
	}
	return upper
}

// StringCapacity extracts the declared capacity of a STRING(n)/WSTRING(n)
// type name. Plain STRING defaults to 81 bytes (80 chars + NUL) per IEC.
func StringCapacity(name string, declaredSize uint32) uint32 {
	if declaredSize > 0 {
		return declaredSize
	}
	upper := strings.ToUpper(name)
	start := strings.IndexByte(upper, '(')
	end := strings.IndexByte(upper, ')')
	if start >= 0 && end > start {
		var n uint32
		if _, err := fmt.Sscanf(upper[start+1:end], "%d", &n); err == nil {
			if strings.HasPrefix(upper, "WSTRING") {
				return (n + 1) * 2
			}
			return n + 1
		}
	}
	if strings.HasPrefix(upper, "WSTRING") {
		return 162
	}
	return 81
}

// IsPseudoType reports whether name is a pointer-width placeholder that
// resolves to a concrete integer type (POINTER TO, REFERENCE TO, PVOID,
// UXINT, XINT, XWORD).
func IsPseudoType(name string) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(upper, "POINTER TO "):
		return true
	case strings.HasPrefix(upper, "REFERENCE TO "):
		return true
	case upper == "PVOID", upper == "UXINT", upper == "XINT", upper == "XWORD", upper == "__XINT", upper == "__UXINT", upper == "__XWORD":
		return true
	}
	return false
}

// ResolvePseudoType maps a pseudo-type to the base integer type whose width
// matches the declared size.
func ResolvePseudoType(name string, size uint32) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	signed := upper == "XINT" || upper == "__XINT"

	switch size {
	case 4:
		if signed {
			return "DINT", nil
		}
		return "UDINT", nil
	case 8:
		if signed {
			return "LINT", nil
		}
		return "ULINT", nil
	case 2:
		if signed {
			return "INT", nil
		}
		return "UINT", nil
	default:
		return "", fmt.Errorf("marshal: pseudo type %q has unsupported size %d", name, size)
	}
}

// toInt64 coerces any Go numeric (or bool) to int64.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// toFloat64 coerces any Go numeric to float64.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	if i, ok := toInt64(value); ok {
		return float64(i), true
	}
	return 0, false
}

// toSlice converts any slice or array value to []any.
func toSlice(value any) ([]any, bool) {
	if s, ok := value.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toMap converts map-shaped values to map[string]any.
func toMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	for _, k := range rv.MapKeys() {
		out[k.String()] = rv.MapIndex(k).Interface()
	}
	return out, true
}
