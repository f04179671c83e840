// Package symbols implements parsing and caching of the self-describing
// symbol and data-type tables uploaded from an ADS target.
package symbols

import (
	"strings"

	"github.com/plcbus/adsclient/internal/ads"
)

// ArrayInfo describes one array dimension: PLC-declared start index and
// element count. Start indices may be negative and are preserved verbatim.
type ArrayInfo struct {
	StartIndex int32
	Length     uint32
}

// Attribute is one {name, value} pair attached to a symbol, type, member or
// RPC method by a PLC pragma.
type Attribute struct {
	Name  string
	Value string
}

// EnumInfo is one enumeration entry. Value holds the raw little-endian value
// bytes in the width of the enumeration's base type.
type EnumInfo struct {
	Name  string
	Value []byte
}

// Symbol describes one top-level PLC variable as uploaded from the target.
type Symbol struct {
	IndexGroup  uint32
	IndexOffset uint32
	Size        uint32
	DataTypeID  ads.DataTypeID
	Flags       uint16
	ArrayDim    uint16

	Name    string
	Type    string
	Comment string

	ArrayInfos    []ArrayInfo
	TypeGUID      []byte
	Attributes    []Attribute
	ExtendedFlags uint32

	// Reserved holds any trailing bytes of the entry that were not consumed
	// by known blocks.
	Reserved []byte
}

// HasFlag reports whether the given symbol flag is set.
func (s *Symbol) HasFlag(flag uint32) bool {
	return uint32(s.Flags)&flag != 0
}

// RPCMethodParameter describes one parameter of an RPC method.
type RPCMethodParameter struct {
	Size       uint32
	AlignSize  uint32
	DataTypeID ads.DataTypeID
	Flags      uint32
	Reserved   uint32
	TypeGUID   []byte
	LengthIsParameterIndex uint16

	Name    string
	Type    string
	Comment string
}

// RPC method parameter flags.
const (
	RPCParamFlagIn          uint32 = 0x0001
	RPCParamFlagOut         uint32 = 0x0002
	RPCParamFlagByReference uint32 = 0x0004
)

// IsInput reports whether the parameter is passed to the method.
func (p *RPCMethodParameter) IsInput() bool {
	return p.Flags&RPCParamFlagIn != 0
}

// IsOutput reports whether the parameter is returned by the method.
func (p *RPCMethodParameter) IsOutput() bool {
	return p.Flags&RPCParamFlagOut != 0
}

// RPCMethod describes one callable method of a function block.
type RPCMethod struct {
	Version         uint32
	VTableIndex     uint32
	ReturnSize      uint32
	ReturnAlignSize uint32
	Reserved        uint32
	ReturnTypeGUID  []byte
	ReturnDataType  ads.DataTypeID
	Flags           uint32

	Name       string
	ReturnType string
	Comment    string

	Parameters []RPCMethodParameter
}

// DataType is one self-describing type node. A node parsed from the upload
// is flat (sub-items reference their types by name); the type builder turns
// declarations into complete trees by recursing the declared type names.
type DataType struct {
	Version       uint32
	HashValue     uint32
	TypeHashValue uint32
	Size          uint32

	// Offset is the byte offset of this member within its parent structure.
	// When the BitValues flag is set it is a bit offset instead.
	Offset uint32

	DataTypeID ads.DataTypeID
	Flags      uint32

	// Name is the member (or declaration) name; Type is the declared type
	// name. At the root of a built tree Name is empty and Type carries the
	// declared type name.
	Name    string
	Type    string
	Comment string

	ArrayInfos []ArrayInfo
	SubItems   []*DataType
	Enums      []EnumInfo
	Methods    []RPCMethod
	Attributes []Attribute

	TypeGUID      []byte
	ExtendedFlags uint32
	Reserved      []byte
}

// HasFlag reports whether the given data-type flag is set.
func (d *DataType) HasFlag(flag uint32) bool {
	return d.Flags&flag != 0
}

// IsBitValue reports whether Offset is a bit offset (single BIT member).
func (d *DataType) IsBitValue() bool {
	return d.HasFlag(ads.DataTypeFlagBitValues)
}

// IsEnum reports whether the node declares enumeration entries.
func (d *DataType) IsEnum() bool {
	return d.HasFlag(ads.DataTypeFlagEnumInfos) && len(d.Enums) > 0
}

// IsArray reports whether the node declares array dimensions.
func (d *DataType) IsArray() bool {
	return len(d.ArrayInfos) > 0
}

// ElementCount returns the total number of array elements across all
// dimensions (1 for non-arrays).
func (d *DataType) ElementCount() uint32 {
	count := uint32(1)
	for _, dim := range d.ArrayInfos {
		count *= dim.Length
	}
	return count
}

// FindSubItem returns the sub-item whose name matches key, first
// case-sensitively, then case-insensitively. Returns nil if absent.
func (d *DataType) FindSubItem(key string) *DataType {
	for _, item := range d.SubItems {
		if item.Name == key {
			return item
		}
	}
	for _, item := range d.SubItems {
		if strings.EqualFold(item.Name, key) {
			return item
		}
	}
	return nil
}

// FindMethod returns the RPC method with the given name (case-insensitive).
func (d *DataType) FindMethod(name string) *RPCMethod {
	for i := range d.Methods {
		if strings.EqualFold(d.Methods[i].Name, name) {
			return &d.Methods[i]
		}
	}
	return nil
}
