package ads

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestReadRequestMarshal(t *testing.T) {
	req := ReadRequest{IndexGroup: 0x4020, IndexOffset: 0x10, Length: 2}
	buf, err := req.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(buf) != 12 {
		t.Fatalf("length = %d, want 12", len(buf))
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != 0x4020 {
		t.Errorf("index group mismatch")
	}
	if binary.LittleEndian.Uint32(buf[8:12]) != 2 {
		t.Errorf("read length mismatch")
	}
}

func TestReadResponseUnmarshal(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x00, 0x00, // result
		0x02, 0x00, 0x00, 0x00, // length
		0xFF, 0x7F, // data
	}
	var resp ReadResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Result != 0 || resp.Length != 2 {
		t.Errorf("result=%d length=%d", resp.Result, resp.Length)
	}
	if !bytes.Equal(resp.Data, []byte{0xFF, 0x7F}) {
		t.Errorf("data = % X", resp.Data)
	}
}

// Some low-end targets omit the length field entirely when the result is an
// error. The decoder must not fail on the 4-byte form.
func TestReadResponseShortErrorForm(t *testing.T) {
	payload := []byte{0x10, 0x07, 0x00, 0x00} // symbol not found
	var resp ReadResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if Error(resp.Result) != ErrDeviceSymbolNotFound {
		t.Errorf("result = 0x%04X", resp.Result)
	}
	if resp.Length != 0 || len(resp.Data) != 0 {
		t.Errorf("expected empty payload, got length=%d data=% X", resp.Length, resp.Data)
	}
}

func TestReadWriteResponseShortErrorForm(t *testing.T) {
	payload := []byte{0x05, 0x07, 0x00, 0x00}
	var resp ReadWriteResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Result != 0x0705 || len(resp.Data) != 0 {
		t.Errorf("result=0x%04X data=% X", resp.Result, resp.Data)
	}
}

func TestWriteRequestMarshal(t *testing.T) {
	req := WriteRequest{IndexGroup: 0xF003, IndexOffset: 0, Length: 3, Data: []byte{1, 2, 3}}
	buf, _ := req.MarshalBinary()
	if len(buf) != 15 {
		t.Fatalf("length = %d, want 15", len(buf))
	}
	if !bytes.Equal(buf[12:], []byte{1, 2, 3}) {
		t.Errorf("data region mismatch")
	}
}

func TestReadDeviceInfoResponse(t *testing.T) {
	payload := make([]byte, 24)
	payload[4] = 3  // major
	payload[5] = 1  // minor
	binary.LittleEndian.PutUint16(payload[6:8], 4024)
	copy(payload[8:], "PLC_TEST\x00garbage")

	var resp ReadDeviceInfoResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.DeviceName != "PLC_TEST" {
		t.Errorf("device name = %q", resp.DeviceName)
	}
	if resp.MajorVersion != 3 || resp.MinorVersion != 1 || resp.VersionBuild != 4024 {
		t.Errorf("version = %d.%d.%d", resp.MajorVersion, resp.MinorVersion, resp.VersionBuild)
	}
}

func TestReadStateResponse(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x05, 0x00, // Run
		0x01, 0x00,
	}
	var resp ReadStateResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ADSState != StateRun {
		t.Errorf("state = %s", resp.ADSState)
	}
	if resp.DeviceState != 1 {
		t.Errorf("device state = %d", resp.DeviceState)
	}
}

func TestWriteControlRequestMarshal(t *testing.T) {
	req := WriteControlRequest{ADSState: StateReset, DeviceState: 3}
	buf, _ := req.MarshalBinary()
	if len(buf) != 8 {
		t.Fatalf("length = %d, want 8", len(buf))
	}
	if binary.LittleEndian.Uint16(buf[0:2]) != uint16(StateReset) {
		t.Errorf("ads state mismatch")
	}
	if binary.LittleEndian.Uint16(buf[2:4]) != 3 {
		t.Errorf("device state mismatch")
	}
}

func TestErrorStrings(t *testing.T) {
	if ErrDeviceSymbolNotFound.Error() != "ADS error 0x0710: Symbol not found" {
		t.Errorf("unexpected message: %s", ErrDeviceSymbolNotFound.Error())
	}
	if !ErrDeviceSymbolNotFound.IsError() {
		t.Error("0x710 should be an error")
	}
	if ErrNoError.IsError() {
		t.Error("0 should not be an error")
	}
	// Unknown codes still render numerically.
	if Error(0xABCD).Error() == "" {
		t.Error("unknown code should render")
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		name string
		want State
	}{
		{"Run", StateRun},
		{"run", StateRun},
		{"CONFIG", StateConfig},
		{"reconfig", StateReconfig},
		{"stop", StateStop},
	}
	for _, tt := range tests {
		got, err := ParseState(tt.name)
		if err != nil {
			t.Errorf("ParseState(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseState(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if _, err := ParseState("warp-speed"); err == nil {
		t.Error("expected error for unknown state name")
	}
}
