package ads

// Reserved index groups used by the symbol and type services.
const (
	IndexGroupSymbolTable           uint32 = 0xF000
	IndexGroupSymbolName            uint32 = 0xF001
	IndexGroupSymbolValue           uint32 = 0xF002
	IndexGroupSymbolHandleByName    uint32 = 0xF003
	IndexGroupSymbolValueByName     uint32 = 0xF004
	IndexGroupSymbolValueByHandle   uint32 = 0xF005
	IndexGroupSymbolReleaseHandle   uint32 = 0xF006
	IndexGroupSymbolInfoByName      uint32 = 0xF007
	IndexGroupSymbolVersion         uint32 = 0xF008
	IndexGroupSymbolInfoByNameEx    uint32 = 0xF009
	IndexGroupSymbolDownload        uint32 = 0xF00A
	IndexGroupSymbolUpload          uint32 = 0xF00B
	IndexGroupSymbolUploadInfo      uint32 = 0xF00C
	IndexGroupSymbolDataTypeUpload  uint32 = 0xF00E
	IndexGroupSymbolUploadInfo2     uint32 = 0xF00F
	IndexGroupSymbolNote            uint32 = 0xF010
	IndexGroupDataTypeInfoByNameEx  uint32 = 0xF011
	IndexGroupIOImageRWIB           uint32 = 0xF020
	IndexGroupIOImageRWIX           uint32 = 0xF021
	IndexGroupIOImageRWOB           uint32 = 0xF030
	IndexGroupIOImageRWOX           uint32 = 0xF031
	IndexGroupSumCommandRead        uint32 = 0xF080
	IndexGroupSumCommandWrite       uint32 = 0xF081
	IndexGroupSumCommandReadWrite   uint32 = 0xF082
	IndexGroupSumCommandReadEx      uint32 = 0xF083
	IndexGroupSumCommandReadEx2     uint32 = 0xF084
	IndexGroupSumCommandAddDevNote  uint32 = 0xF085
	IndexGroupSumCommandDelDevNote  uint32 = 0xF086
	IndexGroupDeviceData            uint32 = 0xF100
	IndexGroupPLCMemory             uint32 = 0x4020
	IndexGroupPLCMemoryBit          uint32 = 0x4021
)

// ReadLengthUnknown requests "whatever the target has" from the by-name
// info index groups; the target replies with the actual length.
const ReadLengthUnknown uint32 = 0xFFFFFFFF

// Symbol flags (AdsSymbolEntry.flags).
const (
	SymbolFlagPersistent       uint32 = 0x0001
	SymbolFlagBitValue         uint32 = 0x0002
	SymbolFlagReferenceTo      uint32 = 0x0004
	SymbolFlagTypeGUID         uint32 = 0x0008
	SymbolFlagTComInterfacePtr uint32 = 0x0010
	SymbolFlagReadOnly         uint32 = 0x0020
	SymbolFlagItfMethodAccess  uint32 = 0x0040
	SymbolFlagMethodDeref      uint32 = 0x0080
	SymbolFlagContextMask      uint32 = 0x0F00
	SymbolFlagAttributes       uint32 = 0x1000
	SymbolFlagStatic           uint32 = 0x2000
	SymbolFlagInitOnReset      uint32 = 0x4000
	SymbolFlagExtendedFlags    uint32 = 0x8000
)

// Data type flags (AdsDatatypeEntry.flags).
const (
	DataTypeFlagDataType           uint32 = 0x00000001
	DataTypeFlagDataItem           uint32 = 0x00000002
	DataTypeFlagReferenceTo        uint32 = 0x00000004
	DataTypeFlagMethodDeref        uint32 = 0x00000008
	DataTypeFlagOversample         uint32 = 0x00000010
	DataTypeFlagBitValues          uint32 = 0x00000020
	DataTypeFlagPropItem           uint32 = 0x00000040
	DataTypeFlagTypeGUID           uint32 = 0x00000080
	DataTypeFlagPersistent         uint32 = 0x00000100
	DataTypeFlagCopyMask           uint32 = 0x00000200
	DataTypeFlagTComInterfacePtr   uint32 = 0x00000400
	DataTypeFlagMethodInfos        uint32 = 0x00000800
	DataTypeFlagAttributes         uint32 = 0x00001000
	DataTypeFlagEnumInfos          uint32 = 0x00002000
	DataTypeFlagAligned            uint32 = 0x00010000
	DataTypeFlagStatic             uint32 = 0x00020000
	DataTypeFlagSpLevels           uint32 = 0x00040000
	DataTypeFlagIgnorePersist      uint32 = 0x00080000
	DataTypeFlagAnySizeArray       uint32 = 0x00100000
	DataTypeFlagPersistantDatatype uint32 = 0x00200000
	DataTypeFlagInitOnResult       uint32 = 0x00400000
	DataTypeFlagRefactorInfo       uint32 = 0x00800000
	DataTypeFlagExtendedEnumInfos  uint32 = 0x01000000
	DataTypeFlagExtendedFlags      uint32 = 0x80000000
)

// DataTypeID is the primitive-kind tag carried by symbols and data types
// (ADST_* values).
type DataTypeID uint32

const (
	DataTypeVoid    DataTypeID = 0
	DataTypeInt16   DataTypeID = 2
	DataTypeInt32   DataTypeID = 3
	DataTypeReal32  DataTypeID = 4
	DataTypeReal64  DataTypeID = 5
	DataTypeInt8    DataTypeID = 16
	DataTypeUInt8   DataTypeID = 17
	DataTypeUInt16  DataTypeID = 18
	DataTypeUInt32  DataTypeID = 19
	DataTypeInt64   DataTypeID = 20
	DataTypeUInt64  DataTypeID = 21
	DataTypeString  DataTypeID = 30
	DataTypeWString DataTypeID = 31
	DataTypeReal80  DataTypeID = 32
	DataTypeBit     DataTypeID = 33
	DataTypeBigType DataTypeID = 65
	DataTypeMaxType DataTypeID = 67
)

func (dt DataTypeID) String() string {
	switch dt {
	case DataTypeVoid:
		return "VOID"
	case DataTypeInt8:
		return "SINT"
	case DataTypeUInt8:
		return "USINT"
	case DataTypeInt16:
		return "INT"
	case DataTypeUInt16:
		return "UINT"
	case DataTypeInt32:
		return "DINT"
	case DataTypeUInt32:
		return "UDINT"
	case DataTypeInt64:
		return "LINT"
	case DataTypeUInt64:
		return "ULINT"
	case DataTypeReal32:
		return "REAL"
	case DataTypeReal64:
		return "LREAL"
	case DataTypeString:
		return "STRING"
	case DataTypeWString:
		return "WSTRING"
	case DataTypeReal80:
		return "REAL80"
	case DataTypeBit:
		return "BIT"
	case DataTypeBigType:
		return "BIGTYPE"
	default:
		return "UNKNOWN"
	}
}
