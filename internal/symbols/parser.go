package symbols

import (
	"encoding/binary"
	"fmt"

	"github.com/plcbus/adsclient/internal/ads"
)

// Parser decodes the binary symbol and data-type upload format. Warn, when
// set, receives non-fatal findings such as unknown extension flags.
type Parser struct {
	Warn func(format string, args ...any)
}

func (p *Parser) warnf(format string, args ...any) {
	if p != nil && p.Warn != nil {
		p.Warn(format, args...)
	}
}

// reader is a bounds-checked little-endian cursor over one entry.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return fmt.Errorf("symbols: truncated entry: need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v, nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// cstring reads length content bytes followed by one NUL terminator.
func (r *reader) cstring(length int) (string, error) {
	if err := r.need(length + 1); err != nil {
		return "", err
	}
	raw := r.data[r.pos : r.pos+length]
	r.pos += length + 1
	// Tolerate embedded terminators from sloppy targets.
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i]), nil
		}
	}
	return string(raw), nil
}

func (r *reader) arrayInfos(dim int) ([]ArrayInfo, error) {
	if dim == 0 {
		return nil, nil
	}
	infos := make([]ArrayInfo, dim)
	for i := 0; i < dim; i++ {
		start, err := r.i32()
		if err != nil {
			return nil, err
		}
		length, err := r.u32()
		if err != nil {
			return nil, err
		}
		infos[i] = ArrayInfo{StartIndex: start, Length: length}
	}
	return infos, nil
}

// attributes reads a u16-count-prefixed list of {u8 nameLen, u8 valueLen,
// name\0, value\0} records.
func (r *reader) attributes() ([]Attribute, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		valueLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		name, err := r.cstring(int(nameLen))
		if err != nil {
			return nil, err
		}
		value, err := r.cstring(int(valueLen))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Name: name, Value: value})
	}
	return attrs, nil
}

// ParseSymbols parses a bulk symbol upload: a sequence of length-prefixed
// symbol entries.
func (p *Parser) ParseSymbols(data []byte) ([]*Symbol, error) {
	var syms []*Symbol
	offset := 0

	for offset+4 <= len(data) {
		entryLength := int(binary.LittleEndian.Uint32(data[offset:]))
		if entryLength == 0 {
			break
		}
		if offset+entryLength > len(data) {
			return nil, fmt.Errorf("symbols: invalid symbol entry length %d at offset %d", entryLength, offset)
		}

		sym, err := p.ParseSymbolEntry(data[offset : offset+entryLength])
		if err != nil {
			return nil, fmt.Errorf("symbols: parse symbol at offset %d: %w", offset, err)
		}
		syms = append(syms, sym)
		offset += entryLength
	}
	return syms, nil
}

// ParseSymbolEntry parses one symbol entry including its length prefix.
// Trailing bytes not consumed by known blocks are kept verbatim.
func (p *Parser) ParseSymbolEntry(data []byte) (*Symbol, error) {
	r := &reader{data: data}

	if _, err := r.u32(); err != nil { // entry length, already sliced
		return nil, err
	}

	sym := &Symbol{}
	var err error
	if sym.IndexGroup, err = r.u32(); err != nil {
		return nil, err
	}
	if sym.IndexOffset, err = r.u32(); err != nil {
		return nil, err
	}
	if sym.Size, err = r.u32(); err != nil {
		return nil, err
	}
	dt, err := r.u32()
	if err != nil {
		return nil, err
	}
	sym.DataTypeID = ads.DataTypeID(dt)
	if sym.Flags, err = r.u16(); err != nil {
		return nil, err
	}
	if sym.ArrayDim, err = r.u16(); err != nil {
		return nil, err
	}

	nameLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	typeLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	commentLen, err := r.u16()
	if err != nil {
		return nil, err
	}

	if sym.Name, err = r.cstring(int(nameLen)); err != nil {
		return nil, err
	}
	if sym.Type, err = r.cstring(int(typeLen)); err != nil {
		return nil, err
	}
	if sym.Comment, err = r.cstring(int(commentLen)); err != nil {
		return nil, err
	}

	if sym.ArrayInfos, err = r.arrayInfos(int(sym.ArrayDim)); err != nil {
		return nil, err
	}

	if sym.HasFlag(ads.SymbolFlagTypeGUID) {
		if sym.TypeGUID, err = r.bytes(16); err != nil {
			return nil, err
		}
	}
	if sym.HasFlag(ads.SymbolFlagAttributes) {
		if sym.Attributes, err = r.attributes(); err != nil {
			return nil, err
		}
	}
	if sym.HasFlag(ads.SymbolFlagExtendedFlags) {
		if sym.ExtendedFlags, err = r.u32(); err != nil {
			return nil, err
		}
	}

	if r.remaining() > 0 {
		sym.Reserved, _ = r.bytes(r.remaining())
	}
	return sym, nil
}

// ParseDataTypes parses a bulk data-type upload: a sequence of
// length-prefixed data-type entries.
func (p *Parser) ParseDataTypes(data []byte) ([]*DataType, error) {
	var types []*DataType
	offset := 0

	for offset+4 <= len(data) {
		entryLength := int(binary.LittleEndian.Uint32(data[offset:]))
		if entryLength == 0 {
			break
		}
		if offset+entryLength > len(data) {
			return nil, fmt.Errorf("symbols: invalid data type entry length %d at offset %d", entryLength, offset)
		}

		dt, err := p.ParseDataTypeEntry(data[offset : offset+entryLength])
		if err != nil {
			return nil, fmt.Errorf("symbols: parse data type at offset %d: %w", offset, err)
		}
		types = append(types, dt)
		offset += entryLength
	}
	return types, nil
}

// ParseDataTypeEntry parses one data-type entry including its length prefix.
// Sub-items are parsed recursively; each is itself a length-prefixed entry.
func (p *Parser) ParseDataTypeEntry(data []byte) (*DataType, error) {
	r := &reader{data: data}

	if _, err := r.u32(); err != nil { // entry length, already sliced
		return nil, err
	}

	dt := &DataType{}
	var err error
	if dt.Version, err = r.u32(); err != nil {
		return nil, err
	}
	if dt.HashValue, err = r.u32(); err != nil {
		return nil, err
	}
	if dt.TypeHashValue, err = r.u32(); err != nil {
		return nil, err
	}
	if dt.Size, err = r.u32(); err != nil {
		return nil, err
	}
	if dt.Offset, err = r.u32(); err != nil {
		return nil, err
	}
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	dt.DataTypeID = ads.DataTypeID(id)
	if dt.Flags, err = r.u32(); err != nil {
		return nil, err
	}

	nameLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	typeLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	commentLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	arrayDim, err := r.u16()
	if err != nil {
		return nil, err
	}
	subItemCount, err := r.u16()
	if err != nil {
		return nil, err
	}

	if dt.Name, err = r.cstring(int(nameLen)); err != nil {
		return nil, err
	}
	if dt.Type, err = r.cstring(int(typeLen)); err != nil {
		return nil, err
	}
	if dt.Comment, err = r.cstring(int(commentLen)); err != nil {
		return nil, err
	}

	if dt.ArrayInfos, err = r.arrayInfos(int(arrayDim)); err != nil {
		return nil, err
	}

	for i := 0; i < int(subItemCount); i++ {
		if err := r.need(4); err != nil {
			return nil, fmt.Errorf("symbols: sub-item %d of %q: %w", i, dt.Name, err)
		}
		subLen := int(binary.LittleEndian.Uint32(r.data[r.pos:]))
		if subLen < 4 || r.remaining() < subLen {
			return nil, fmt.Errorf("symbols: invalid sub-item length %d in %q", subLen, dt.Name)
		}
		sub, err := p.ParseDataTypeEntry(r.data[r.pos : r.pos+subLen])
		if err != nil {
			return nil, fmt.Errorf("symbols: sub-item %d of %q: %w", i, dt.Name, err)
		}
		dt.SubItems = append(dt.SubItems, sub)
		r.pos += subLen
	}

	if dt.HasFlag(ads.DataTypeFlagTypeGUID) {
		if dt.TypeGUID, err = r.bytes(16); err != nil {
			return nil, err
		}
	}
	if dt.HasFlag(ads.DataTypeFlagCopyMask) {
		// Copy mask carries one byte per data byte; nothing to keep.
		if err = r.skip(int(dt.Size)); err != nil {
			return nil, err
		}
	}
	if dt.HasFlag(ads.DataTypeFlagMethodInfos) {
		if dt.Methods, err = p.parseMethods(r); err != nil {
			return nil, err
		}
	}
	if dt.HasFlag(ads.DataTypeFlagAttributes) {
		if dt.Attributes, err = r.attributes(); err != nil {
			return nil, err
		}
	}
	if dt.HasFlag(ads.DataTypeFlagEnumInfos) {
		if dt.Enums, err = p.parseEnums(r, int(dt.Size)); err != nil {
			return nil, err
		}
	}
	if dt.HasFlag(ads.DataTypeFlagExtendedFlags) {
		if dt.ExtendedFlags, err = r.u32(); err != nil {
			return nil, err
		}
	}

	if dt.Flags&(ads.DataTypeFlagSpLevels|ads.DataTypeFlagRefactorInfo|ads.DataTypeFlagExtendedEnumInfos) != 0 {
		p.warnf("data type %q carries unsupported extension flags 0x%08X, keeping %d raw bytes", dt.Name, dt.Flags, r.remaining())
	}
	if r.remaining() > 0 {
		dt.Reserved, _ = r.bytes(r.remaining())
	}
	return dt, nil
}

func (p *Parser) parseEnums(r *reader, valueSize int) ([]EnumInfo, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	enums := make([]EnumInfo, 0, count)
	for i := 0; i < int(count); i++ {
		nameLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		name, err := r.cstring(int(nameLen))
		if err != nil {
			return nil, err
		}
		value, err := r.bytes(valueSize)
		if err != nil {
			return nil, err
		}
		enums = append(enums, EnumInfo{Name: name, Value: value})
	}
	return enums, nil
}

func (p *Parser) parseMethods(r *reader) ([]RPCMethod, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	methods := make([]RPCMethod, 0, count)
	for i := 0; i < int(count); i++ {
		if err := r.need(4); err != nil {
			return nil, err
		}
		entryLen := int(binary.LittleEndian.Uint32(r.data[r.pos:]))
		if entryLen < 4 || r.remaining() < entryLen {
			return nil, fmt.Errorf("symbols: invalid method entry length %d", entryLen)
		}
		method, err := p.parseMethodEntry(r.data[r.pos : r.pos+entryLen])
		if err != nil {
			return nil, err
		}
		methods = append(methods, *method)
		r.pos += entryLen
	}
	return methods, nil
}

func (p *Parser) parseMethodEntry(data []byte) (*RPCMethod, error) {
	r := &reader{data: data}

	if _, err := r.u32(); err != nil { // entry length, already sliced
		return nil, err
	}

	m := &RPCMethod{}
	var err error
	if m.Version, err = r.u32(); err != nil {
		return nil, err
	}
	if m.VTableIndex, err = r.u32(); err != nil {
		return nil, err
	}
	if m.ReturnSize, err = r.u32(); err != nil {
		return nil, err
	}
	if m.ReturnAlignSize, err = r.u32(); err != nil {
		return nil, err
	}
	if m.Reserved, err = r.u32(); err != nil {
		return nil, err
	}
	if m.ReturnTypeGUID, err = r.bytes(16); err != nil {
		return nil, err
	}
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.ReturnDataType = ads.DataTypeID(id)
	if m.Flags, err = r.u32(); err != nil {
		return nil, err
	}

	nameLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	typeLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	commentLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	paramCount, err := r.u16()
	if err != nil {
		return nil, err
	}

	if m.Name, err = r.cstring(int(nameLen)); err != nil {
		return nil, err
	}
	if m.ReturnType, err = r.cstring(int(typeLen)); err != nil {
		return nil, err
	}
	if m.Comment, err = r.cstring(int(commentLen)); err != nil {
		return nil, err
	}

	for i := 0; i < int(paramCount); i++ {
		param, err := p.parseMethodParameter(r)
		if err != nil {
			return nil, fmt.Errorf("symbols: method %q parameter %d: %w", m.Name, i, err)
		}
		m.Parameters = append(m.Parameters, *param)
	}
	return m, nil
}

func (p *Parser) parseMethodParameter(r *reader) (*RPCMethodParameter, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	entryLen := int(binary.LittleEndian.Uint32(r.data[r.pos:]))
	if entryLen < 4 || r.remaining() < entryLen {
		return nil, fmt.Errorf("symbols: invalid method parameter length %d", entryLen)
	}
	pr := &reader{data: r.data[r.pos : r.pos+entryLen]}
	r.pos += entryLen

	if _, err := pr.u32(); err != nil { // entry length
		return nil, err
	}

	param := &RPCMethodParameter{}
	var err error
	if param.Size, err = pr.u32(); err != nil {
		return nil, err
	}
	if param.AlignSize, err = pr.u32(); err != nil {
		return nil, err
	}
	id, err := pr.u32()
	if err != nil {
		return nil, err
	}
	param.DataTypeID = ads.DataTypeID(id)
	if param.Flags, err = pr.u32(); err != nil {
		return nil, err
	}
	if param.Reserved, err = pr.u32(); err != nil {
		return nil, err
	}
	if param.TypeGUID, err = pr.bytes(16); err != nil {
		return nil, err
	}
	if param.LengthIsParameterIndex, err = pr.u16(); err != nil {
		return nil, err
	}

	nameLen, err := pr.u16()
	if err != nil {
		return nil, err
	}
	typeLen, err := pr.u16()
	if err != nil {
		return nil, err
	}
	commentLen, err := pr.u16()
	if err != nil {
		return nil, err
	}

	if param.Name, err = pr.cstring(int(nameLen)); err != nil {
		return nil, err
	}
	if param.Type, err = pr.cstring(int(typeLen)); err != nil {
		return nil, err
	}
	if param.Comment, err = pr.cstring(int(commentLen)); err != nil {
		return nil, err
	}
	return param, nil
}
