package symbols

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plcbus/adsclient/internal/ads"
)

// entryBuilder assembles binary upload entries for tests.
type entryBuilder struct {
	bytes.Buffer
}

func (b *entryBuilder) u8(v uint8)   { b.WriteByte(v) }
func (b *entryBuilder) u16(v uint16) { binary.Write(b, binary.LittleEndian, v) }
func (b *entryBuilder) u32(v uint32) { binary.Write(b, binary.LittleEndian, v) }
func (b *entryBuilder) i32(v int32)  { binary.Write(b, binary.LittleEndian, v) }
func (b *entryBuilder) str(s string) { b.WriteString(s); b.WriteByte(0) }

// withLength prefixes the accumulated body with its total entry length.
func (b *entryBuilder) withLength() []byte {
	body := b.Bytes()
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(4+len(body)))
	copy(out[4:], body)
	return out
}

func buildSymbolEntry(name, typeName, comment string, flags uint16, arrayInfos []ArrayInfo, tail func(*entryBuilder)) []byte {
	var b entryBuilder
	b.u32(0x4020)               // index group
	b.u32(0x0100)               // index offset
	b.u32(2)                    // size
	b.u32(uint32(ads.DataTypeInt16))
	b.u16(flags)
	b.u16(uint16(len(arrayInfos)))
	b.u16(uint16(len(name)))
	b.u16(uint16(len(typeName)))
	b.u16(uint16(len(comment)))
	b.str(name)
	b.str(typeName)
	b.str(comment)
	for _, ai := range arrayInfos {
		b.i32(ai.StartIndex)
		b.u32(ai.Length)
	}
	if tail != nil {
		tail(&b)
	}
	return b.withLength()
}

func TestParseSymbolEntry(t *testing.T) {
	entry := buildSymbolEntry("GVL.Counter", "INT", "cycle counter", 0, nil, nil)

	p := &Parser{}
	sym, err := p.ParseSymbolEntry(entry)
	require.NoError(t, err)

	assert.Equal(t, "GVL.Counter", sym.Name)
	assert.Equal(t, "INT", sym.Type)
	assert.Equal(t, "cycle counter", sym.Comment)
	assert.Equal(t, uint32(0x4020), sym.IndexGroup)
	assert.Equal(t, uint32(0x0100), sym.IndexOffset)
	assert.Equal(t, uint32(2), sym.Size)
	assert.Equal(t, ads.DataTypeInt16, sym.DataTypeID)
	assert.Empty(t, sym.ArrayInfos)
}

func TestParseSymbolEntryWithArrayAndAttributes(t *testing.T) {
	arrayInfos := []ArrayInfo{{StartIndex: -5, Length: 11}, {StartIndex: 0, Length: 3}}
	flags := uint16(ads.SymbolFlagAttributes | ads.SymbolFlagTypeGUID)

	entry := buildSymbolEntry("GVL.Matrix", "ARRAY [-5..5, 0..2] OF INT", "", flags, arrayInfos, func(b *entryBuilder) {
		// Type GUID block.
		b.Write(bytes.Repeat([]byte{0xAA}, 16))
		// Attributes: count-prefixed {u8 nameLen, u8 valueLen, name\0, value\0}.
		b.u16(1)
		b.u8(uint8(len("OPC.UA.DA")))
		b.u8(uint8(len("1")))
		b.str("OPC.UA.DA")
		b.str("1")
	})

	p := &Parser{}
	sym, err := p.ParseSymbolEntry(entry)
	require.NoError(t, err)

	// Negative start indices are preserved verbatim.
	require.Len(t, sym.ArrayInfos, 2)
	assert.Equal(t, int32(-5), sym.ArrayInfos[0].StartIndex)
	assert.Equal(t, uint32(11), sym.ArrayInfos[0].Length)

	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 16), sym.TypeGUID)
	require.Len(t, sym.Attributes, 1)
	assert.Equal(t, "OPC.UA.DA", sym.Attributes[0].Name)
	assert.Equal(t, "1", sym.Attributes[0].Value)
}

func TestParseSymbolEntryKeepsTrailingBytes(t *testing.T) {
	entry := buildSymbolEntry("GVL.X", "INT", "", 0, nil, func(b *entryBuilder) {
		b.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	})

	p := &Parser{}
	sym, err := p.ParseSymbolEntry(entry)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, sym.Reserved)
}

func TestParseSymbolsSequence(t *testing.T) {
	data := append(buildSymbolEntry("GVL.A", "INT", "", 0, nil, nil),
		buildSymbolEntry("GVL.B", "BOOL", "", 0, nil, nil)...)

	p := &Parser{}
	syms, err := p.ParseSymbols(data)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "GVL.A", syms[0].Name)
	assert.Equal(t, "GVL.B", syms[1].Name)
}

func buildDataTypeEntry(name, typeName string, size, offset uint32, id ads.DataTypeID, flags uint32, arrayInfos []ArrayInfo, subItems [][]byte, tail func(*entryBuilder)) []byte {
	var b entryBuilder
	b.u32(1)  // version
	b.u32(0)  // hash value
	b.u32(0)  // type hash value
	b.u32(size)
	b.u32(offset)
	b.u32(uint32(id))
	b.u32(flags)
	b.u16(uint16(len(name)))
	b.u16(uint16(len(typeName)))
	b.u16(0) // comment length
	b.u16(uint16(len(arrayInfos)))
	b.u16(uint16(len(subItems)))
	b.str(name)
	b.str(typeName)
	b.str("")
	for _, ai := range arrayInfos {
		b.i32(ai.StartIndex)
		b.u32(ai.Length)
	}
	for _, sub := range subItems {
		b.Write(sub)
	}
	if tail != nil {
		tail(&b)
	}
	return b.withLength()
}

func TestParseDataTypeEntryStruct(t *testing.T) {
	subA := buildDataTypeEntry("Active", "BOOL", 1, 0, ads.DataTypeUInt8, 0, nil, nil, nil)
	subB := buildDataTypeEntry("Count", "INT", 2, 2, ads.DataTypeInt16, 0, nil, nil, nil)
	entry := buildDataTypeEntry("ST_Status", "", 4, 0, ads.DataTypeBigType, 0, nil, [][]byte{subA, subB}, nil)

	p := &Parser{}
	dt, err := p.ParseDataTypeEntry(entry)
	require.NoError(t, err)

	assert.Equal(t, "ST_Status", dt.Name)
	assert.Equal(t, uint32(4), dt.Size)
	require.Len(t, dt.SubItems, 2)
	assert.Equal(t, "Active", dt.SubItems[0].Name)
	assert.Equal(t, "BOOL", dt.SubItems[0].Type)
	assert.Equal(t, uint32(0), dt.SubItems[0].Offset)
	assert.Equal(t, "Count", dt.SubItems[1].Name)
	assert.Equal(t, uint32(2), dt.SubItems[1].Offset)
}

func TestParseDataTypeEntryEnum(t *testing.T) {
	entry := buildDataTypeEntry("E_Mode", "INT", 2, 0, ads.DataTypeInt16,
		ads.DataTypeFlagEnumInfos, nil, nil, func(b *entryBuilder) {
			// Enum infos: u16 count, then {u8 nameLen, name\0, value[size]}.
			b.u16(2)
			b.u8(uint8(len("Idle")))
			b.str("Idle")
			b.Write([]byte{0x00, 0x00})
			b.u8(uint8(len("Running")))
			b.str("Running")
			b.Write([]byte{0x01, 0x00})
		})

	p := &Parser{}
	dt, err := p.ParseDataTypeEntry(entry)
	require.NoError(t, err)
	require.Len(t, dt.Enums, 2)
	assert.Equal(t, "Idle", dt.Enums[0].Name)
	assert.Equal(t, []byte{0x00, 0x00}, dt.Enums[0].Value)
	assert.Equal(t, "Running", dt.Enums[1].Name)
	assert.Equal(t, []byte{0x01, 0x00}, dt.Enums[1].Value)
	assert.True(t, dt.IsEnum())
}

func TestParseDataTypeEntryMethods(t *testing.T) {
	// One method "Add" with two inputs and one output, returning INT.
	var param1 entryBuilder
	param1.u32(2)                         // size
	param1.u32(2)                         // align size
	param1.u32(uint32(ads.DataTypeInt16)) // data type
	param1.u32(RPCParamFlagIn)            // flags
	param1.u32(0)                         // reserved
	param1.Write(make([]byte, 16))        // type guid
	param1.u16(0)                         // length-is-parameter index
	param1.u16(uint16(len("a")))
	param1.u16(uint16(len("INT")))
	param1.u16(0)
	param1.str("a")
	param1.str("INT")
	param1.str("")

	var param2 entryBuilder
	param2.u32(2)
	param2.u32(2)
	param2.u32(uint32(ads.DataTypeInt16))
	param2.u32(RPCParamFlagOut)
	param2.u32(0)
	param2.Write(make([]byte, 16))
	param2.u16(0)
	param2.u16(uint16(len("c")))
	param2.u16(uint16(len("INT")))
	param2.u16(0)
	param2.str("c")
	param2.str("INT")
	param2.str("")

	var method entryBuilder
	method.u32(1)                  // version
	method.u32(0)                  // vtable index
	method.u32(2)                  // return size
	method.u32(2)                  // return align size
	method.u32(0)                  // reserved
	method.Write(make([]byte, 16)) // return type guid
	method.u32(uint32(ads.DataTypeInt16))
	method.u32(0) // flags
	method.u16(uint16(len("Add")))
	method.u16(uint16(len("INT")))
	method.u16(0)
	method.u16(2) // parameter count
	method.str("Add")
	method.str("INT")
	method.str("")
	method.Write(param1.withLength())
	method.Write(param2.withLength())

	entry := buildDataTypeEntry("FB_Calc", "", 8, 0, ads.DataTypeBigType,
		ads.DataTypeFlagMethodInfos, nil, nil, func(b *entryBuilder) {
			b.u16(1)
			b.Write(method.withLength())
		})

	p := &Parser{}
	dt, err := p.ParseDataTypeEntry(entry)
	require.NoError(t, err)
	require.Len(t, dt.Methods, 1)

	m := dt.Methods[0]
	assert.Equal(t, "Add", m.Name)
	assert.Equal(t, "INT", m.ReturnType)
	assert.Equal(t, uint32(2), m.ReturnSize)
	require.Len(t, m.Parameters, 2)
	assert.True(t, m.Parameters[0].IsInput())
	assert.True(t, m.Parameters[1].IsOutput())
	assert.Equal(t, "c", m.Parameters[1].Name)

	assert.NotNil(t, dt.FindMethod("add"), "method lookup is case-insensitive")
}

func TestParseDataTypeEntryUnknownExtensionWarns(t *testing.T) {
	entry := buildDataTypeEntry("ST_Odd", "", 4, 0, ads.DataTypeBigType,
		ads.DataTypeFlagSpLevels, nil, nil, func(b *entryBuilder) {
			b.Write([]byte{1, 2, 3, 4})
		})

	var warned bool
	p := &Parser{Warn: func(string, ...any) { warned = true }}
	dt, err := p.ParseDataTypeEntry(entry)
	require.NoError(t, err)
	assert.True(t, warned, "unknown extension flags should warn")
	assert.Equal(t, []byte{1, 2, 3, 4}, dt.Reserved)
}

func TestParseDataTypeEntryCopyMaskSkipped(t *testing.T) {
	entry := buildDataTypeEntry("ST_Masked", "", 4, 0, ads.DataTypeBigType,
		ads.DataTypeFlagCopyMask, nil, nil, func(b *entryBuilder) {
			b.Write([]byte{0xFF, 0xFF, 0x00, 0x00}) // one mask byte per data byte
		})

	p := &Parser{}
	dt, err := p.ParseDataTypeEntry(entry)
	require.NoError(t, err)
	assert.Empty(t, dt.Reserved, "copy mask bytes are consumed, not retained")
}

func TestTableCaseInsensitive(t *testing.T) {
	table := NewTable()
	table.PutSymbol(&Symbol{Name: "GVL.Temperature", Type: "REAL"})

	assert.NotNil(t, table.Symbol("gvl.temperature"))
	assert.NotNil(t, table.Symbol("GVL.TEMPERATURE"))
	assert.NotNil(t, table.Symbol(".GVL.Temperature"), "leading dot is ignored")
	assert.Nil(t, table.Symbol("GVL.Other"))

	table.PutDataType(&DataType{Name: "ST_Status"})
	assert.NotNil(t, table.DataType("st_status"))

	table.Clear()
	assert.Nil(t, table.Symbol("GVL.Temperature"))
	assert.Nil(t, table.DataType("ST_Status"))
	assert.False(t, table.HasAllSymbols())
}

func TestUploadInfoUnmarshal(t *testing.T) {
	var b entryBuilder
	b.u32(120)   // symbol count
	b.u32(14000) // symbol length
	b.u32(85)    // data type count
	b.u32(52000) // data type length
	b.u32(0)
	b.u32(0)

	var info UploadInfo
	require.NoError(t, info.UnmarshalBinary(b.Bytes()))
	assert.Equal(t, uint32(120), info.SymbolCount)
	assert.Equal(t, uint32(14000), info.SymbolLength)
	assert.Equal(t, uint32(85), info.DataTypeCount)
	assert.Equal(t, uint32(52000), info.DataTypeLength)

	assert.Error(t, info.UnmarshalBinary([]byte{1, 2, 3}))
}
