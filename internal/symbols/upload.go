package symbols

import (
	"encoding/binary"
	"fmt"
)

// UploadInfo is the reply of the SymbolUploadInfo2 index group: entry counts
// and exact byte lengths for the bulk symbol and data-type uploads.
type UploadInfo struct {
	SymbolCount    uint32
	SymbolLength   uint32
	DataTypeCount  uint32
	DataTypeLength uint32
	ExtraCount     uint32
	ExtraLength    uint32
}

// UnmarshalBinary decodes the 24-byte upload info block.
func (u *UploadInfo) UnmarshalBinary(data []byte) error {
	if len(data) < 24 {
		return fmt.Errorf("symbols: upload info requires 24 bytes, got %d", len(data))
	}
	u.SymbolCount = binary.LittleEndian.Uint32(data[0:4])
	u.SymbolLength = binary.LittleEndian.Uint32(data[4:8])
	u.DataTypeCount = binary.LittleEndian.Uint32(data[8:12])
	u.DataTypeLength = binary.LittleEndian.Uint32(data[12:16])
	u.ExtraCount = binary.LittleEndian.Uint32(data[16:20])
	u.ExtraLength = binary.LittleEndian.Uint32(data[20:24])
	return nil
}
