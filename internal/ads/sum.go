package ads

import (
	"encoding/binary"
	"fmt"
)

// Sum commands batch N address-targeted operations into a single ReadWrite
// round-trip. The outer request goes to one of the SumCommand* index groups
// with the sub-command count as index offset; per-element results come back
// concatenated.

// SumReadItem is one sub-read of a SumCommandRead.
type SumReadItem struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
}

// SumWriteItem is one sub-write of a SumCommandWrite.
type SumWriteItem struct {
	IndexGroup  uint32
	IndexOffset uint32
	Data        []byte
}

// SumResult is the per-element outcome of a sum command.
type SumResult struct {
	Result Error
	Data   []byte
}

// MarshalSumReadRequest encodes the write payload of a SumCommandRead.
func MarshalSumReadRequest(items []SumReadItem) []byte {
	buf := make([]byte, 12*len(items))
	for i, item := range items {
		off := i * 12
		binary.LittleEndian.PutUint32(buf[off:off+4], item.IndexGroup)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], item.IndexOffset)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], item.Length)
	}
	return buf
}

// UnmarshalSumReadResponse decodes a SumCommandRead reply: N error codes
// followed by the concatenated data regions in request order.
func UnmarshalSumReadResponse(data []byte, items []SumReadItem) ([]SumResult, error) {
	n := len(items)
	if len(data) < 4*n {
		return nil, fmt.Errorf("ads: sum read response requires %d result bytes, got %d", 4*n, len(data))
	}

	results := make([]SumResult, n)
	for i := range items {
		results[i].Result = Error(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}

	offset := 4 * n
	for i, item := range items {
		end := offset + int(item.Length)
		if end > len(data) {
			return nil, fmt.Errorf("ads: sum read response data region %d overruns payload", i)
		}
		results[i].Data = make([]byte, item.Length)
		copy(results[i].Data, data[offset:end])
		offset = end
	}
	return results, nil
}

// MarshalSumWriteRequest encodes the write payload of a SumCommandWrite:
// N headers followed by the concatenated data regions.
func MarshalSumWriteRequest(items []SumWriteItem) []byte {
	total := 12 * len(items)
	for _, item := range items {
		total += len(item.Data)
	}

	buf := make([]byte, total)
	for i, item := range items {
		off := i * 12
		binary.LittleEndian.PutUint32(buf[off:off+4], item.IndexGroup)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], item.IndexOffset)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(len(item.Data)))
	}
	offset := 12 * len(items)
	for _, item := range items {
		copy(buf[offset:], item.Data)
		offset += len(item.Data)
	}
	return buf
}

// UnmarshalSumWriteResponse decodes a SumCommandWrite reply: N error codes.
func UnmarshalSumWriteResponse(data []byte, count int) ([]SumResult, error) {
	if len(data) < 4*count {
		return nil, fmt.Errorf("ads: sum write response requires %d result bytes, got %d", 4*count, len(data))
	}
	results := make([]SumResult, count)
	for i := 0; i < count; i++ {
		results[i].Result = Error(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return results, nil
}

// SumReadWriteItem is one sub-operation of a SumCommandReadWrite.
type SumReadWriteItem struct {
	IndexGroup  uint32
	IndexOffset uint32
	ReadLength  uint32
	Data        []byte
}

// MarshalSumReadWriteRequest encodes the write payload of a
// SumCommandReadWrite: N headers followed by the concatenated write data.
func MarshalSumReadWriteRequest(items []SumReadWriteItem) []byte {
	total := 16 * len(items)
	for _, item := range items {
		total += len(item.Data)
	}

	buf := make([]byte, total)
	for i, item := range items {
		off := i * 16
		binary.LittleEndian.PutUint32(buf[off:off+4], item.IndexGroup)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], item.IndexOffset)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], item.ReadLength)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], uint32(len(item.Data)))
	}
	offset := 16 * len(items)
	for _, item := range items {
		copy(buf[offset:], item.Data)
		offset += len(item.Data)
	}
	return buf
}

// UnmarshalSumReadWriteResponse decodes a SumCommandReadWrite reply:
// N {error, returnLength} headers followed by the concatenated variable
// length data regions.
func UnmarshalSumReadWriteResponse(data []byte, count int) ([]SumResult, error) {
	if len(data) < 8*count {
		return nil, fmt.Errorf("ads: sum read/write response requires %d header bytes, got %d", 8*count, len(data))
	}

	results := make([]SumResult, count)
	lengths := make([]uint32, count)
	for i := 0; i < count; i++ {
		off := i * 8
		results[i].Result = Error(binary.LittleEndian.Uint32(data[off : off+4]))
		lengths[i] = binary.LittleEndian.Uint32(data[off+4 : off+8])
	}

	offset := 8 * count
	for i := 0; i < count; i++ {
		end := offset + int(lengths[i])
		if end > len(data) {
			return nil, fmt.Errorf("ads: sum read/write response data region %d overruns payload", i)
		}
		results[i].Data = make([]byte, lengths[i])
		copy(results[i].Data, data[offset:end])
		offset = end
	}
	return results, nil
}
