package marshal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/symbols"
)

// Options control value conversion behaviour.
type Options struct {
	// ObjectifyEnumerations returns enumeration values as EnumValue records
	// instead of bare numbers.
	ObjectifyEnumerations bool

	// ConvertDates converts DATE/DT values to time.Time instead of raw
	// seconds.
	ConvertDates bool

	// Encoding selects the byte encoding of STRING content.
	Encoding StringEncoding
}

// Codec converts between raw buffers and Go values using built type trees.
type Codec struct {
	Options
}

// EnumValue is an objectified enumeration value. Name is empty when the
// numeric value matches no declared entry.
type EnumValue struct {
	Name  string
	Value any
}

func (e EnumValue) String() string {
	return fmt.Sprintf("%s (%v)", e.Name, e.Value)
}

// MissingMemberError reports a struct member absent from the value passed
// to Encode. Callers use it to trigger the autoFill path.
type MissingMemberError struct {
	Member string
	Type   string
}

func (e *MissingMemberError) Error() string {
	return fmt.Sprintf("marshal: value for member %q of %q missing", e.Member, e.Type)
}

// TotalSize returns the buffer size a value of the given built type
// occupies: element size times the product of all array dimensions.
func TotalSize(dt *symbols.DataType) uint32 {
	return dt.Size * dt.ElementCount()
}

// Decode converts a raw buffer to a Go value. Structures become
// map[string]any, arrays become nested []any (zero-based, dense),
// enumerations become EnumValue (when objectified) and primitives their
// natural Go type.
func (c *Codec) Decode(buf []byte, dt *symbols.DataType) (any, error) {
	return c.decode(buf, dt, false)
}

func (c *Codec) decode(buf []byte, dt *symbols.DataType, arrayElement bool) (any, error) {
	if dt.IsArray() && !arrayElement {
		return c.decodeArray(buf, dt, dt.ArrayInfos)
	}
	if len(dt.SubItems) > 0 {
		return c.decodeStruct(buf, dt)
	}
	if dt.IsEnum() {
		return c.decodeEnum(buf, dt)
	}
	if dt.IsBitValue() {
		return c.decodeBit(buf, dt.Offset)
	}
	if isEmptyRecord(dt) {
		if dt.Size == 0 {
			return map[string]any{}, nil
		}
		return c.decodePointerWidth(buf, dt)
	}
	return c.decodePrimitive(buf, dt)
}

func (c *Codec) decodeArray(buf []byte, dt *symbols.DataType, dims []symbols.ArrayInfo) (any, error) {
	if len(dims) == 0 {
		return c.decode(buf, dt, true)
	}

	stride := int(dt.Size)
	for _, dim := range dims[1:] {
		stride *= int(dim.Length)
	}

	out := make([]any, dims[0].Length)
	for i := range out {
		start := i * stride
		end := start + stride
		if end > len(buf) {
			return nil, fmt.Errorf("marshal: array element %d of %q out of buffer range", i, dt.Type)
		}
		elem, err := c.decodeArray(buf[start:end], dt, dims[1:])
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

func (c *Codec) decodeStruct(buf []byte, dt *symbols.DataType) (any, error) {
	out := make(map[string]any, len(dt.SubItems))
	for _, sub := range dt.SubItems {
		if sub.IsBitValue() {
			v, err := c.decodeBit(buf, sub.Offset)
			if err != nil {
				return nil, fmt.Errorf("marshal: member %q of %q: %w", sub.Name, dt.Type, err)
			}
			out[sub.Name] = v
			continue
		}

		start := int(sub.Offset)
		end := start + int(TotalSize(sub))
		if end > len(buf) {
			return nil, fmt.Errorf("marshal: member %q of %q out of buffer range", sub.Name, dt.Type)
		}
		v, err := c.decode(buf[start:end], sub, false)
		if err != nil {
			return nil, fmt.Errorf("marshal: member %q of %q: %w", sub.Name, dt.Type, err)
		}
		out[sub.Name] = v
	}
	return out, nil
}

// decodeBit extracts a single BIT whose offset is given in bits.
func (c *Codec) decodeBit(buf []byte, bitOffset uint32) (bool, error) {
	byteOff := int(bitOffset / 8)
	bit := bitOffset % 8
	if byteOff >= len(buf) {
		return false, fmt.Errorf("bit offset %d out of buffer range", bitOffset)
	}
	return (buf[byteOff]>>bit)&1 != 0, nil
}

func (c *Codec) decodeEnum(buf []byte, dt *symbols.DataType) (any, error) {
	numeric, err := c.decodePrimitive(buf, dt)
	if err != nil {
		return nil, err
	}
	if !c.ObjectifyEnumerations {
		return numeric, nil
	}

	if int(dt.Size) <= len(buf) {
		raw := buf[:dt.Size]
		for _, entry := range dt.Enums {
			if bytes.Equal(entry.Value, raw) {
				return EnumValue{Name: entry.Name, Value: numeric}, nil
			}
		}
	}
	return EnumValue{Name: "", Value: numeric}, nil
}

func (c *Codec) decodePointerWidth(buf []byte, dt *symbols.DataType) (any, error) {
	switch dt.Size {
	case 4:
		if len(buf) < 4 {
			return nil, fmt.Errorf("marshal: %q requires 4 bytes, got %d", dt.Type, len(buf))
		}
		return binary.LittleEndian.Uint32(buf), nil
	case 8:
		if len(buf) < 8 {
			return nil, fmt.Errorf("marshal: %q requires 8 bytes, got %d", dt.Type, len(buf))
		}
		return binary.LittleEndian.Uint64(buf), nil
	default:
		return nil, fmt.Errorf("marshal: %q has unsupported pointer width %d", dt.Type, dt.Size)
	}
}

func isEmptyRecord(dt *symbols.DataType) bool {
	if len(dt.SubItems) > 0 || len(dt.Enums) > 0 {
		return false
	}
	if IsBaseType(dt.Type) {
		return false
	}
	return dt.DataTypeID == ads.DataTypeBigType || (dt.DataTypeID == ads.DataTypeVoid && dt.Size == 0)
}

func (c *Codec) need(buf []byte, n int, name string) error {
	if len(buf) < n {
		return fmt.Errorf("marshal: %q requires %d bytes, got %d", name, n, len(buf))
	}
	return nil
}

func (c *Codec) decodePrimitive(buf []byte, dt *symbols.DataType) (any, error) {
	name := normalizeTypeName(dt.Type)

	switch name {
	case "BOOL", "BIT":
		if err := c.need(buf, 1, name); err != nil {
			return nil, err
		}
		return buf[0] != 0, nil
	case "BYTE", "USINT":
		if err := c.need(buf, 1, name); err != nil {
			return nil, err
		}
		return buf[0], nil
	case "SINT":
		if err := c.need(buf, 1, name); err != nil {
			return nil, err
		}
		return int8(buf[0]), nil
	case "WORD", "UINT":
		if err := c.need(buf, 2, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(buf), nil
	case "INT":
		if err := c.need(buf, 2, name); err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(buf)), nil
	case "DWORD", "UDINT":
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(buf), nil
	case "DINT":
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(buf)), nil
	case "LWORD", "ULINT":
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(buf), nil
	case "LINT":
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(buf)), nil
	case "REAL":
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
	case "LREAL":
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	case "STRING":
		return decodeString(buf, c.Encoding)
	case "WSTRING":
		return decodeWString(buf)
	case "TIME", "TOD", "TIME_OF_DAY":
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		// Milliseconds; kept numeric (durations, not wall-clock).
		return binary.LittleEndian.Uint32(buf), nil
	case "DATE", "DT", "DATE_AND_TIME":
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		secs := binary.LittleEndian.Uint32(buf)
		if c.ConvertDates {
			return time.Unix(int64(secs), 0).UTC(), nil
		}
		return secs, nil
	case "LTIME":
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(buf), nil
	case "LDT", "LDATE", "LDATE_AND_TIME", "FILETIME":
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		ns := binary.LittleEndian.Uint64(buf)
		if c.ConvertDates && name != "FILETIME" {
			return time.Unix(0, int64(ns)).UTC(), nil
		}
		return ns, nil
	}

	// Fall back on the primitive-kind tag for aliased base types.
	switch dt.DataTypeID {
	case ads.DataTypeInt8:
		if err := c.need(buf, 1, name); err != nil {
			return nil, err
		}
		return int8(buf[0]), nil
	case ads.DataTypeUInt8:
		if err := c.need(buf, 1, name); err != nil {
			return nil, err
		}
		return buf[0], nil
	case ads.DataTypeInt16:
		if err := c.need(buf, 2, name); err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(buf)), nil
	case ads.DataTypeUInt16:
		if err := c.need(buf, 2, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(buf), nil
	case ads.DataTypeInt32:
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(buf)), nil
	case ads.DataTypeUInt32:
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(buf), nil
	case ads.DataTypeInt64:
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(buf)), nil
	case ads.DataTypeUInt64:
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(buf), nil
	case ads.DataTypeReal32:
		if err := c.need(buf, 4, name); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
	case ads.DataTypeReal64:
		if err := c.need(buf, 8, name); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	case ads.DataTypeString:
		return decodeString(buf, c.Encoding)
	case ads.DataTypeWString:
		return decodeWString(buf)
	case ads.DataTypeBit:
		if err := c.need(buf, 1, name); err != nil {
			return nil, err
		}
		return buf[0] != 0, nil
	}

	return nil, fmt.Errorf("marshal: unknown data type %q (kind %s)", dt.Type, dt.DataTypeID)
}

// Encode converts a Go value to a fresh raw buffer. All struct members must
// be present; a missing member yields *MissingMemberError.
func (c *Codec) Encode(value any, dt *symbols.DataType) ([]byte, error) {
	buf := make([]byte, TotalSize(dt))
	if err := c.encode(value, dt, buf, false, true); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeInto merges a (possibly partial) value into an existing buffer.
// Missing struct members keep their current bytes; BIT members are
// read-modify-written so adjacent bits survive.
func (c *Codec) EncodeInto(value any, dt *symbols.DataType, buf []byte) error {
	if len(buf) < int(TotalSize(dt)) {
		return fmt.Errorf("marshal: buffer too small for %q: need %d bytes, got %d", dt.Type, TotalSize(dt), len(buf))
	}
	return c.encode(value, dt, buf, false, false)
}

func (c *Codec) encode(value any, dt *symbols.DataType, buf []byte, arrayElement bool, requireAll bool) error {
	if dt.IsArray() && !arrayElement {
		return c.encodeArray(value, dt, dt.ArrayInfos, buf, requireAll)
	}
	if len(dt.SubItems) > 0 {
		return c.encodeStruct(value, dt, buf, requireAll)
	}
	if dt.IsEnum() {
		return c.encodeEnum(value, dt, buf)
	}
	if dt.IsBitValue() {
		return c.encodeBit(value, dt.Offset, buf)
	}
	if isEmptyRecord(dt) {
		if dt.Size == 0 {
			return nil
		}
		return c.encodePointerWidth(value, dt, buf)
	}
	return c.encodePrimitive(value, dt, buf)
}

func (c *Codec) encodeArray(value any, dt *symbols.DataType, dims []symbols.ArrayInfo, buf []byte, requireAll bool) error {
	if len(dims) == 0 {
		return c.encode(value, dt, buf, true, requireAll)
	}

	slice, ok := toSlice(value)
	if !ok {
		return fmt.Errorf("marshal: %q expects an array value, got %T", dt.Type, value)
	}
	if uint32(len(slice)) != dims[0].Length {
		return fmt.Errorf("marshal: %q expects %d elements, got %d", dt.Type, dims[0].Length, len(slice))
	}

	stride := int(dt.Size)
	for _, dim := range dims[1:] {
		stride *= int(dim.Length)
	}

	for i, elem := range slice {
		if err := c.encodeArray(elem, dt, dims[1:], buf[i*stride:(i+1)*stride], requireAll); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeStruct(value any, dt *symbols.DataType, buf []byte, requireAll bool) error {
	m, ok := toMap(value)
	if !ok {
		return fmt.Errorf("marshal: %q expects a struct value, got %T", dt.Type, value)
	}

	for _, sub := range dt.SubItems {
		v, found := structMember(m, sub.Name)
		if !found {
			if requireAll {
				return &MissingMemberError{Member: sub.Name, Type: dt.Type}
			}
			continue
		}

		if sub.IsBitValue() {
			if err := c.encodeBit(v, sub.Offset, buf); err != nil {
				return fmt.Errorf("marshal: member %q of %q: %w", sub.Name, dt.Type, err)
			}
			continue
		}

		start := int(sub.Offset)
		end := start + int(TotalSize(sub))
		if end > len(buf) {
			return fmt.Errorf("marshal: member %q of %q out of buffer range", sub.Name, dt.Type)
		}
		if err := c.encode(v, sub, buf[start:end], false, requireAll); err != nil {
			return err
		}
	}
	return nil
}

// structMember looks up a user-provided key case-sensitively first, then
// case-insensitively.
func structMember(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// encodeBit read-modify-writes a single bit so adjacent BIT members are
// preserved.
func (c *Codec) encodeBit(value any, bitOffset uint32, buf []byte) error {
	byteOff := int(bitOffset / 8)
	bit := bitOffset % 8
	if byteOff >= len(buf) {
		return fmt.Errorf("bit offset %d out of buffer range", bitOffset)
	}

	set := false
	switch v := value.(type) {
	case bool:
		set = v
	default:
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("invalid BIT value %T", value)
		}
		set = n != 0
	}

	if set {
		buf[byteOff] |= 1 << bit
	} else {
		buf[byteOff] &^= 1 << bit
	}
	return nil
}

func (c *Codec) encodeEnum(value any, dt *symbols.DataType, buf []byte) error {
	// Unwrap objectified inputs.
	switch v := value.(type) {
	case EnumValue:
		if v.Name != "" {
			value = v.Name
		} else {
			value = v.Value
		}
	case map[string]any:
		if name, ok := structMember(v, "name"); ok {
			value = name
		} else if num, ok := structMember(v, "value"); ok {
			value = num
		} else {
			return fmt.Errorf("marshal: enum %q record needs a name or value member", dt.Type)
		}
	}

	if name, ok := value.(string); ok {
		for _, entry := range dt.Enums {
			if strings.EqualFold(entry.Name, name) {
				copy(buf, entry.Value)
				return nil
			}
		}
		return fmt.Errorf("marshal: %q is not a member of enumeration %q", name, dt.Type)
	}

	// Any numeric value is accepted, matching PLC semantics.
	return c.encodePrimitive(value, dt, buf)
}

func (c *Codec) encodePointerWidth(value any, dt *symbols.DataType, buf []byte) error {
	n, ok := toInt64(value)
	if !ok {
		// Tolerate record placeholders for opaque blocks; leave zeros.
		if _, isMap := toMap(value); isMap || value == nil {
			return nil
		}
		return fmt.Errorf("marshal: %q expects a numeric value, got %T", dt.Type, value)
	}
	switch dt.Size {
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(buf, uint64(n))
	default:
		return fmt.Errorf("marshal: %q has unsupported pointer width %d", dt.Type, dt.Size)
	}
	return nil
}

func (c *Codec) encodePrimitive(value any, dt *symbols.DataType, buf []byte) error {
	name := normalizeTypeName(dt.Type)

	writeUint := func(width int, v uint64) error {
		if err := c.need(buf, width, name); err != nil {
			return err
		}
		switch width {
		case 1:
			buf[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(buf, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(buf, uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(buf, v)
		}
		return nil
	}

	switch name {
	case "BOOL", "BIT":
		switch v := value.(type) {
		case bool:
			if v {
				return writeUint(1, 1)
			}
			return writeUint(1, 0)
		default:
			n, ok := toInt64(value)
			if !ok {
				return fmt.Errorf("marshal: invalid BOOL value %T", value)
			}
			if n != 0 {
				return writeUint(1, 1)
			}
			return writeUint(1, 0)
		}
	case "BYTE", "USINT", "SINT":
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %s value %T", name, value)
		}
		return writeUint(1, uint64(n))
	case "WORD", "UINT", "INT":
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %s value %T", name, value)
		}
		return writeUint(2, uint64(n))
	case "DWORD", "UDINT", "DINT":
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %s value %T", name, value)
		}
		return writeUint(4, uint64(n))
	case "LWORD", "ULINT", "LINT":
		switch v := value.(type) {
		case uint64:
			return writeUint(8, v)
		default:
			n, ok := toInt64(v)
			if !ok {
				return fmt.Errorf("marshal: invalid %s value %T", name, value)
			}
			return writeUint(8, uint64(n))
		}
	case "REAL":
		f, ok := toFloat64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid REAL value %T", value)
		}
		return writeUint(4, uint64(math.Float32bits(float32(f))))
	case "LREAL":
		f, ok := toFloat64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid LREAL value %T", value)
		}
		return writeUint(8, math.Float64bits(f))
	case "STRING":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("marshal: invalid STRING value %T", value)
		}
		encoded, err := encodeString(s, StringCapacity(dt.Type, dt.Size), c.Encoding)
		if err != nil {
			return err
		}
		copy(buf, encoded)
		return nil
	case "WSTRING":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("marshal: invalid WSTRING value %T", value)
		}
		encoded, err := encodeWString(s, StringCapacity(dt.Type, dt.Size))
		if err != nil {
			return err
		}
		copy(buf, encoded)
		return nil
	case "TIME", "TOD", "TIME_OF_DAY":
		switch v := value.(type) {
		case time.Duration:
			return writeUint(4, uint64(v.Milliseconds()))
		default:
			n, ok := toInt64(value)
			if !ok {
				return fmt.Errorf("marshal: invalid %s value %T", name, value)
			}
			return writeUint(4, uint64(n))
		}
	case "DATE", "DT", "DATE_AND_TIME":
		switch v := value.(type) {
		case time.Time:
			return writeUint(4, uint64(v.Unix()))
		default:
			n, ok := toInt64(value)
			if !ok {
				return fmt.Errorf("marshal: invalid %s value %T", name, value)
			}
			return writeUint(4, uint64(n))
		}
	case "LTIME":
		switch v := value.(type) {
		case time.Duration:
			return writeUint(8, uint64(v.Nanoseconds()))
		default:
			n, ok := toInt64(value)
			if !ok {
				return fmt.Errorf("marshal: invalid LTIME value %T", value)
			}
			return writeUint(8, uint64(n))
		}
	case "LDT", "LDATE", "LDATE_AND_TIME", "FILETIME":
		switch v := value.(type) {
		case time.Time:
			return writeUint(8, uint64(v.UnixNano()))
		default:
			n, ok := toInt64(value)
			if !ok {
				return fmt.Errorf("marshal: invalid %s value %T", name, value)
			}
			return writeUint(8, uint64(n))
		}
	}

	// Fall back on the primitive-kind tag for aliased base types.
	switch dt.DataTypeID {
	case ads.DataTypeInt8, ads.DataTypeUInt8:
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		return writeUint(1, uint64(n))
	case ads.DataTypeInt16, ads.DataTypeUInt16:
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		return writeUint(2, uint64(n))
	case ads.DataTypeInt32, ads.DataTypeUInt32:
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		return writeUint(4, uint64(n))
	case ads.DataTypeInt64, ads.DataTypeUInt64:
		n, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		return writeUint(8, uint64(n))
	case ads.DataTypeReal32:
		f, ok := toFloat64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		return writeUint(4, uint64(math.Float32bits(float32(f))))
	case ads.DataTypeReal64:
		f, ok := toFloat64(value)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		return writeUint(8, math.Float64bits(f))
	case ads.DataTypeString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("marshal: invalid %q value %T", dt.Type, value)
		}
		encoded, err := encodeString(s, StringCapacity(dt.Type, dt.Size), c.Encoding)
		if err != nil {
			return err
		}
		copy(buf, encoded)
		return nil
	case ads.DataTypeBit:
		return c.encodeBit(value, 0, buf)
	}

	return fmt.Errorf("marshal: unknown data type %q (kind %s)", dt.Type, dt.DataTypeID)
}

// DefaultValue returns the zero-initialised value of a built type, used to
// seed autoFill merges when the current PLC value is unavailable.
func (c *Codec) DefaultValue(dt *symbols.DataType) (any, error) {
	return c.Decode(make([]byte, TotalSize(dt)), dt)
}
