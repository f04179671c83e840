package marshal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/symbols"
)

func newCodec() *Codec {
	return &Codec{Options: Options{
		ObjectifyEnumerations: true,
		ConvertDates:          true,
		Encoding:              EncodingCP1252,
	}}
}

func intType() *symbols.DataType {
	return &symbols.DataType{Type: "INT", Size: 2, DataTypeID: ads.DataTypeInt16}
}

func TestDecodeInt(t *testing.T) {
	c := newCodec()
	// 0xFF 0x7F little-endian is 32767.
	v, err := c.Decode([]byte{0xFF, 0x7F}, intType())
	require.NoError(t, err)
	assert.Equal(t, int16(32767), v)
}

func TestPrimitiveRoundTrips(t *testing.T) {
	c := newCodec()
	tests := []struct {
		dt    *symbols.DataType
		value any
		raw   []byte
	}{
		{&symbols.DataType{Type: "BOOL", Size: 1}, true, []byte{1}},
		{&symbols.DataType{Type: "BYTE", Size: 1}, uint8(0xAB), []byte{0xAB}},
		{&symbols.DataType{Type: "SINT", Size: 1}, int8(-2), []byte{0xFE}},
		{&symbols.DataType{Type: "UINT", Size: 2}, uint16(513), []byte{0x01, 0x02}},
		{&symbols.DataType{Type: "DINT", Size: 4}, int32(-1), []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{&symbols.DataType{Type: "UDINT", Size: 4}, uint32(1), []byte{1, 0, 0, 0}},
		{&symbols.DataType{Type: "LINT", Size: 8}, int64(1), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{&symbols.DataType{Type: "REAL", Size: 4}, float32(1.0), []byte{0, 0, 0x80, 0x3F}},
		{&symbols.DataType{Type: "LREAL", Size: 8}, float64(1.0), []byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}},
	}

	for _, tt := range tests {
		got, err := c.Decode(tt.raw, tt.dt)
		require.NoError(t, err, tt.dt.Type)
		assert.Equal(t, tt.value, got, "decode %s", tt.dt.Type)

		raw, err := c.Encode(tt.value, tt.dt)
		require.NoError(t, err, tt.dt.Type)
		assert.Equal(t, tt.raw, raw, "encode %s", tt.dt.Type)
	}
}

// Any non-zero byte reads back as true.
func TestBoolNonZeroIsTrue(t *testing.T) {
	c := newCodec()
	dt := &symbols.DataType{Type: "BOOL", Size: 1}

	for _, b := range []byte{0x01, 0x02, 0xFF} {
		v, err := c.Decode([]byte{b}, dt)
		require.NoError(t, err)
		assert.Equal(t, true, v, "byte 0x%02X", b)
	}
	v, err := c.Decode([]byte{0x00}, dt)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	// Numeric write inputs follow the same rule.
	raw, err := c.Encode(7, dt)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, raw)
}

// A string write is truncated to the declared byte size minus one so the
// terminator always fits: STRING(80) occupies 81 bytes and keeps 80 characters.
func TestStringTruncation(t *testing.T) {
	c := newCodec()
	dt := &symbols.DataType{Type: "STRING(80)", Size: 81, DataTypeID: ads.DataTypeString}

	long := make([]byte, 0, 85)
	for i := 0; i < 85; i++ {
		long = append(long, byte('A'+i%26))
	}

	raw, err := c.Encode(string(long), dt)
	require.NoError(t, err)
	require.Len(t, raw, 81)
	assert.Equal(t, byte(0), raw[80], "terminator")
	assert.NotEqual(t, byte(0), raw[79], "payload fills up to index 79")

	decoded, err := c.Decode(raw, dt)
	require.NoError(t, err)
	assert.Equal(t, string(long[:80]), decoded)
}

func TestWStringRoundTrip(t *testing.T) {
	c := newCodec()
	dt := &symbols.DataType{Type: "WSTRING(10)", Size: 22, DataTypeID: ads.DataTypeWString}

	raw, err := c.Encode("héllo", dt)
	require.NoError(t, err)
	require.Len(t, raw, 22)

	decoded, err := c.Decode(raw, dt)
	require.NoError(t, err)
	assert.Equal(t, "héllo", decoded)
}

func TestCP1252RoundTrip(t *testing.T) {
	c := newCodec()
	dt := &symbols.DataType{Type: "STRING(20)", Size: 21, DataTypeID: ads.DataTypeString}

	raw, err := c.Encode("grüße", dt)
	require.NoError(t, err)
	decoded, err := c.Decode(raw, dt)
	require.NoError(t, err)
	assert.Equal(t, "grüße", decoded)
}

func structType() *symbols.DataType {
	return &symbols.DataType{
		Type: "ST_Status",
		Size: 8,
		SubItems: []*symbols.DataType{
			{Name: "Active", Type: "BOOL", Size: 1, Offset: 0},
			{Name: "Count", Type: "INT", Size: 2, Offset: 2, DataTypeID: ads.DataTypeInt16},
			{Name: "Level", Type: "REAL", Size: 4, Offset: 4, DataTypeID: ads.DataTypeReal32},
		},
	}
}

func TestStructRoundTrip(t *testing.T) {
	c := newCodec()
	dt := structType()

	raw := []byte{1, 0xCC, 0x05, 0x00, 0, 0, 0x80, 0x3F}
	v, err := c.Decode(raw, dt)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, m["Active"])
	assert.Equal(t, int16(5), m["Count"])
	assert.Equal(t, float32(1.0), m["Level"])

	// Keys are matched case-insensitively on the way back; padding byte 1
	// (0xCC in the source) is not reproduced.
	out, err := c.Encode(map[string]any{"active": true, "COUNT": 5, "Level": 1.0}, dt)
	require.NoError(t, err)
	expected := []byte{1, 0x00, 0x05, 0x00, 0, 0, 0x80, 0x3F}
	assert.Equal(t, expected, out)
}

func TestStructMissingMember(t *testing.T) {
	c := newCodec()
	_, err := c.Encode(map[string]any{"Active": true}, structType())
	require.Error(t, err)

	var missing *MissingMemberError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Count", missing.Member)
}

func TestEncodeIntoPartialMerge(t *testing.T) {
	c := newCodec()
	dt := structType()

	base := []byte{1, 0, 0x05, 0x00, 0, 0, 0x80, 0x3F}
	require.NoError(t, c.EncodeInto(map[string]any{"Count": 9}, dt, base))

	// Only Count changed; the rest of the buffer is untouched.
	assert.Equal(t, []byte{1, 0, 0x09, 0x00, 0, 0, 0x80, 0x3F}, base)
}

func bitStructType() *symbols.DataType {
	bit := func(name string, bitOffset uint32) *symbols.DataType {
		return &symbols.DataType{
			Name: name, Type: "BIT", Size: 1, Offset: bitOffset,
			DataTypeID: ads.DataTypeBit, Flags: ads.DataTypeFlagBitValues,
		}
	}
	return &symbols.DataType{
		Type: "ST_Bits",
		Size: 1,
		SubItems: []*symbols.DataType{
			bit("B0", 0), bit("B1", 1), bit("B5", 5),
		},
	}
}

func TestBitFieldDecode(t *testing.T) {
	c := newCodec()
	v, err := c.Decode([]byte{0b0010_0010}, bitStructType())
	require.NoError(t, err)

	m := v.(map[string]any)
	assert.Equal(t, false, m["B0"])
	assert.Equal(t, true, m["B1"])
	assert.Equal(t, true, m["B5"])
}

// BIT members are read-modify-written so adjacent bits survive a partial
// update.
func TestBitFieldReadModifyWrite(t *testing.T) {
	c := newCodec()
	buf := []byte{0b0010_0010}
	require.NoError(t, c.EncodeInto(map[string]any{"B0": true}, bitStructType(), buf))
	assert.Equal(t, byte(0b0010_0011), buf[0])

	require.NoError(t, c.EncodeInto(map[string]any{"B5": false}, bitStructType(), buf))
	assert.Equal(t, byte(0b0000_0011), buf[0])
}

func enumType() *symbols.DataType {
	return &symbols.DataType{
		Type: "INT", Size: 2, DataTypeID: ads.DataTypeInt16,
		Flags: ads.DataTypeFlagEnumInfos,
		Enums: []symbols.EnumInfo{
			{Name: "Idle", Value: []byte{0x00, 0x00}},
			{Name: "Running", Value: []byte{0x01, 0x00}},
			{Name: "Fault", Value: []byte{0x63, 0x00}},
		},
	}
}

func TestEnumDecode(t *testing.T) {
	c := newCodec()
	v, err := c.Decode([]byte{0x01, 0x00}, enumType())
	require.NoError(t, err)
	assert.Equal(t, EnumValue{Name: "Running", Value: int16(1)}, v)

	// Unmatched numeric values keep an empty name.
	v, err = c.Decode([]byte{0x40, 0x00}, enumType())
	require.NoError(t, err)
	assert.Equal(t, EnumValue{Name: "", Value: int16(64)}, v)

	// Without objectification the bare numeric comes back.
	plain := &Codec{Options: Options{ObjectifyEnumerations: false}}
	v, err = plain.Decode([]byte{0x01, 0x00}, enumType())
	require.NoError(t, err)
	assert.Equal(t, int16(1), v)
}

func TestEnumEncodeInputs(t *testing.T) {
	c := newCodec()
	dt := enumType()

	// By name, case-insensitively.
	raw, err := c.Encode("running", dt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00}, raw)

	// By number: any numeric is accepted, matching PLC semantics.
	raw, err = c.Encode(64, dt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x00}, raw)

	// As record.
	raw, err = c.Encode(EnumValue{Name: "Fault"}, dt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x63, 0x00}, raw)

	raw, err = c.Encode(map[string]any{"value": 1}, dt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00}, raw)

	// Unknown names are rejected.
	_, err = c.Encode("Sprinting", dt)
	assert.Error(t, err)
}

func arrayType() *symbols.DataType {
	return &symbols.DataType{
		Type: "INT", Size: 2, DataTypeID: ads.DataTypeInt16,
		ArrayInfos: []symbols.ArrayInfo{{StartIndex: -2, Length: 3}},
	}
}

func TestArrayRoundTrip(t *testing.T) {
	c := newCodec()
	raw := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}

	v, err := c.Decode(raw, arrayType())
	require.NoError(t, err)
	// Host representation is zero-based and dense regardless of the PLC
	// start index.
	assert.Equal(t, []any{int16(1), int16(2), int16(3)}, v)

	out, err := c.Encode([]any{int16(1), int16(2), int16(3)}, arrayType())
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = c.Encode([]any{int16(1)}, arrayType())
	assert.Error(t, err, "length mismatch must be rejected")
}

func TestMultiDimensionalArrayLayout(t *testing.T) {
	c := newCodec()
	dt := &symbols.DataType{
		Type: "INT", Size: 2, DataTypeID: ads.DataTypeInt16,
		ArrayInfos: []symbols.ArrayInfo{{StartIndex: 0, Length: 2}, {StartIndex: 0, Length: 3}},
	}

	// Row-major: element [i][j] at offset (i*3 + j) * 2.
	raw := make([]byte, 12)
	for i := 0; i < 6; i++ {
		raw[i*2] = byte(i + 1)
	}

	v, err := c.Decode(raw, dt)
	require.NoError(t, err)
	rows := v.([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{int16(1), int16(2), int16(3)}, rows[0])
	assert.Equal(t, []any{int16(4), int16(5), int16(6)}, rows[1])

	out, err := c.Encode(rows, dt)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestArrayOfStructs(t *testing.T) {
	c := newCodec()
	dt := structType()
	dt.ArrayInfos = []symbols.ArrayInfo{{StartIndex: 1, Length: 2}}

	raw := make([]byte, 16)
	raw[0] = 1        // [0].Active
	raw[8+2] = 0x07   // [1].Count low byte

	v, err := c.Decode(raw, dt)
	require.NoError(t, err)
	elems := v.([]any)
	require.Len(t, elems, 2)
	assert.Equal(t, true, elems[0].(map[string]any)["Active"])
	assert.Equal(t, int16(7), elems[1].(map[string]any)["Count"])
}

func TestEmptyRecord(t *testing.T) {
	c := newCodec()

	empty := &symbols.DataType{Type: "ST_Empty", Size: 0, DataTypeID: ads.DataTypeBigType}
	v, err := c.Decode(nil, empty)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, v)

	// Empty function blocks carry a pointer-width payload.
	fb := &symbols.DataType{Type: "FB_Empty", Size: 8, DataTypeID: ads.DataTypeBigType}
	v, err = c.Decode([]byte{1, 0, 0, 0, 0, 0, 0, 0}, fb)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestDateConversion(t *testing.T) {
	c := newCodec()
	dt := &symbols.DataType{Type: "DT", Size: 4, DataTypeID: ads.DataTypeUInt32}

	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	raw, err := c.Encode(want, dt)
	require.NoError(t, err)

	v, err := c.Decode(raw, dt)
	require.NoError(t, err)
	assert.Equal(t, want, v)

	// With conversion off, raw seconds come back.
	plain := &Codec{Options: Options{}}
	v, err = plain.Decode(raw, dt)
	require.NoError(t, err)
	assert.Equal(t, uint32(want.Unix()), v)
}

func TestConvertRoundTripByteEquality(t *testing.T) {
	c := newCodec()
	dt := structType()

	raw := []byte{1, 0x00, 0x2A, 0x00, 0, 0, 0x80, 0x3F}
	v, err := c.Decode(raw, dt)
	require.NoError(t, err)

	out, err := c.Encode(v, dt)
	require.NoError(t, err)
	// ST_Status has a padding hole at byte 1; the source kept it zero, so
	// the round trip is byte-equal.
	assert.Equal(t, raw, out)
}

func TestUnknownTypeRejected(t *testing.T) {
	c := newCodec()
	_, err := c.Decode([]byte{0}, &symbols.DataType{Type: "ST_Mystery", Size: 1, DataTypeID: ads.DataTypeMaxType})
	assert.Error(t, err)
}

func TestDefaultValue(t *testing.T) {
	c := newCodec()
	v, err := c.DefaultValue(structType())
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, false, m["Active"])
	assert.Equal(t, int16(0), m["Count"])
	assert.Equal(t, float32(0), m["Level"])
}
