package ads

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSumReadRoundTrip(t *testing.T) {
	items := []SumReadItem{
		{IndexGroup: 0x4020, IndexOffset: 0, Length: 2},
		{IndexGroup: 0x4020, IndexOffset: 8, Length: 4},
	}
	req := MarshalSumReadRequest(items)
	if len(req) != 24 {
		t.Fatalf("request length = %d, want 24", len(req))
	}

	// Response: two error codes, then the concatenated data regions.
	var resp bytes.Buffer
	binary.Write(&resp, binary.LittleEndian, uint32(0))
	binary.Write(&resp, binary.LittleEndian, uint32(0x0710))
	resp.Write([]byte{0xFF, 0x7F})       // item 0 data
	resp.Write([]byte{0, 0, 0, 0})       // item 1 data (error, zero-filled)

	results, err := UnmarshalSumReadResponse(resp.Bytes(), items)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if results[0].Result != ErrNoError || !bytes.Equal(results[0].Data, []byte{0xFF, 0x7F}) {
		t.Errorf("result 0 = %+v", results[0])
	}
	if results[1].Result != ErrDeviceSymbolNotFound {
		t.Errorf("result 1 = %+v", results[1])
	}
}

func TestSumWriteRoundTrip(t *testing.T) {
	items := []SumWriteItem{
		{IndexGroup: 0x4020, IndexOffset: 0, Data: []byte{1, 2}},
		{IndexGroup: 0x4020, IndexOffset: 4, Data: []byte{3}},
	}
	req := MarshalSumWriteRequest(items)
	if len(req) != 24+3 {
		t.Fatalf("request length = %d", len(req))
	}
	// Headers first, data concatenated after.
	if !bytes.Equal(req[24:], []byte{1, 2, 3}) {
		t.Errorf("data region = % X", req[24:])
	}

	var resp bytes.Buffer
	binary.Write(&resp, binary.LittleEndian, uint32(0))
	binary.Write(&resp, binary.LittleEndian, uint32(0x0702))

	results, err := UnmarshalSumWriteResponse(resp.Bytes(), 2)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if results[0].Result != ErrNoError || results[1].Result != ErrDeviceInvalidGroup {
		t.Errorf("results = %+v", results)
	}
}

func TestSumReadWriteRoundTrip(t *testing.T) {
	items := []SumReadWriteItem{
		{IndexGroup: 0xF003, IndexOffset: 0, ReadLength: 4, Data: []byte("GVL.A\x00")},
		{IndexGroup: 0xF003, IndexOffset: 0, ReadLength: 4, Data: []byte("GVL.B\x00")},
	}
	req := MarshalSumReadWriteRequest(items)
	if len(req) != 32+12 {
		t.Fatalf("request length = %d", len(req))
	}

	var resp bytes.Buffer
	binary.Write(&resp, binary.LittleEndian, uint32(0)) // result 0
	binary.Write(&resp, binary.LittleEndian, uint32(4)) // length 0
	binary.Write(&resp, binary.LittleEndian, uint32(0x0710))
	binary.Write(&resp, binary.LittleEndian, uint32(0))
	binary.Write(&resp, binary.LittleEndian, uint32(0x12345678)) // handle of item 0

	results, err := UnmarshalSumReadWriteResponse(resp.Bytes(), 2)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if results[0].Result != ErrNoError {
		t.Errorf("result 0 = %+v", results[0])
	}
	if binary.LittleEndian.Uint32(results[0].Data) != 0x12345678 {
		t.Errorf("handle = % X", results[0].Data)
	}
	if results[1].Result != ErrDeviceSymbolNotFound || len(results[1].Data) != 0 {
		t.Errorf("result 1 = %+v", results[1])
	}
}

func TestSumResponseTooShort(t *testing.T) {
	if _, err := UnmarshalSumWriteResponse([]byte{0, 0}, 1); err == nil {
		t.Error("expected error for short sum write response")
	}
	if _, err := UnmarshalSumReadResponse([]byte{0, 0, 0, 0},
		[]SumReadItem{{Length: 8}}); err == nil {
		t.Error("expected error for short sum read data region")
	}
}
