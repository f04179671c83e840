// Package ads implements ADS (Automation Device Specification) command
// payload encoding and decoding.
package ads

import (
	"encoding/binary"
	"fmt"
)

type CommandID uint16

const (
	CmdInvalid               CommandID = 0x0000
	CmdReadDeviceInfo        CommandID = 0x0001
	CmdRead                  CommandID = 0x0002
	CmdWrite                 CommandID = 0x0003
	CmdReadState             CommandID = 0x0004
	CmdWriteControl          CommandID = 0x0005
	CmdAddDeviceNotification CommandID = 0x0006
	CmdDelDeviceNotification CommandID = 0x0007
	CmdDeviceNotification    CommandID = 0x0008
	CmdReadWrite             CommandID = 0x0009
)

func (c CommandID) String() string {
	switch c {
	case CmdReadDeviceInfo:
		return "ReadDeviceInfo"
	case CmdRead:
		return "Read"
	case CmdWrite:
		return "Write"
	case CmdReadState:
		return "ReadState"
	case CmdWriteControl:
		return "WriteControl"
	case CmdAddDeviceNotification:
		return "AddDeviceNotification"
	case CmdDelDeviceNotification:
		return "DeleteDeviceNotification"
	case CmdDeviceNotification:
		return "DeviceNotification"
	case CmdReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Command(0x%04X)", uint16(c))
	}
}

type ReadRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
}

func (r *ReadRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	return buf, nil
}

type ReadResponse struct {
	Result uint32
	Length uint32
	Data   []byte
}

// UnmarshalBinary decodes a Read response. Some low-end targets omit the
// length field when Result != 0; short responses decode to an empty payload
// with the error code preserved.
func (r *ReadResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: read response requires at least 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	if len(data) < 8 {
		r.Length = 0
		r.Data = nil
		return nil
	}
	r.Length = binary.LittleEndian.Uint32(data[4:8])
	r.Data = make([]byte, r.Length)
	copy(r.Data, data[8:])
	return nil
}

type WriteRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
	Data        []byte
}

func (w *WriteRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12+len(w.Data))
	binary.LittleEndian.PutUint32(buf[0:4], w.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], w.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], w.Length)
	copy(buf[12:], w.Data)
	return buf, nil
}

type WriteResponse struct {
	Result uint32
}

func (w *WriteResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: write response requires 4 bytes, got %d", len(data))
	}
	w.Result = binary.LittleEndian.Uint32(data[0:4])
	return nil
}

type ReadWriteRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	ReadLength  uint32
	WriteLength uint32
	Data        []byte
}

func (r *ReadWriteRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 16+len(r.Data))
	binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.ReadLength)
	binary.LittleEndian.PutUint32(buf[12:16], r.WriteLength)
	copy(buf[16:], r.Data)
	return buf, nil
}

type ReadWriteResponse struct {
	Result uint32
	Length uint32
	Data   []byte
}

// UnmarshalBinary decodes a ReadWrite response with the same short-response
// tolerance as ReadResponse.
func (r *ReadWriteResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: read/write response requires at least 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	if len(data) < 8 {
		r.Length = 0
		r.Data = nil
		return nil
	}
	r.Length = binary.LittleEndian.Uint32(data[4:8])
	r.Data = make([]byte, r.Length)
	copy(r.Data, data[8:])
	return nil
}

type ReadStateRequest struct{}

func (r *ReadStateRequest) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

type ReadStateResponse struct {
	Result      uint32
	ADSState    State
	DeviceState uint16
}

func (r *ReadStateResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: read state response requires at least 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	if len(data) < 8 {
		return nil
	}
	r.ADSState = State(binary.LittleEndian.Uint16(data[4:6]))
	r.DeviceState = binary.LittleEndian.Uint16(data[6:8])
	return nil
}

type ReadDeviceInfoRequest struct{}

func (r *ReadDeviceInfoRequest) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

type ReadDeviceInfoResponse struct {
	Result       uint32
	MajorVersion uint8
	MinorVersion uint8
	VersionBuild uint16
	DeviceName   string
}

func (r *ReadDeviceInfoResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: read device info response requires at least 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	if len(data) < 24 {
		return nil
	}
	r.MajorVersion = data[4]
	r.MinorVersion = data[5]
	r.VersionBuild = binary.LittleEndian.Uint16(data[6:8])

	// Device name is a 16-byte zero-terminated field.
	nameBytes := data[8:24]
	nameLen := len(nameBytes)
	for i, b := range nameBytes {
		if b == 0 {
			nameLen = i
			break
		}
	}
	r.DeviceName = string(nameBytes[:nameLen])
	return nil
}

type WriteControlRequest struct {
	ADSState    State
	DeviceState uint16
	Length      uint32
	Data        []byte
}

func (w *WriteControlRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+len(w.Data))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(w.ADSState))
	binary.LittleEndian.PutUint16(buf[2:4], w.DeviceState)
	binary.LittleEndian.PutUint32(buf[4:8], w.Length)
	copy(buf[8:], w.Data)
	return buf, nil
}

type WriteControlResponse struct {
	Result uint32
}

func (w *WriteControlResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: write control response requires 4 bytes, got %d", len(data))
	}
	w.Result = binary.LittleEndian.Uint32(data[0:4])
	return nil
}
