package ams

import (
	"encoding/binary"
	"fmt"
)

// TCPHeader represents the 6-byte AMS/TCP packet header that precedes every
// frame on the socket. Command selects ADS traffic (0) or a router control
// command; Length is the size of the remainder of the frame.
type TCPHeader struct {
	Command uint16
	Length  uint32
}

// MarshalBinary encodes the TCPHeader into a 6-byte slice (little-endian).
func (h *TCPHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], h.Command)
	binary.LittleEndian.PutUint32(buf[2:6], h.Length)
	return buf, nil
}

// UnmarshalBinary decodes a 6-byte slice into the TCPHeader (little-endian).
func (h *TCPHeader) UnmarshalBinary(data []byte) error {
	if len(data) < 6 {
		return fmt.Errorf("ams: TCP header requires 6 bytes, got %d", len(data))
	}
	h.Command = binary.LittleEndian.Uint16(data[0:2])
	h.Length = binary.LittleEndian.Uint32(data[2:6])
	return nil
}

// HeaderSize is the size of the AMS header in bytes.
const HeaderSize = 32

// Header represents the 32-byte AMS header that follows the AMS/TCP header
// on ADS command frames. All multi-byte fields are little-endian.
type Header struct {
	TargetNetID NetID  // Destination AMS NetID (6 bytes, offset 0)
	TargetPort  Port   // Destination AMS port (2 bytes, offset 6)
	SourceNetID NetID  // Source AMS NetID (6 bytes, offset 8)
	SourcePort  Port   // Source AMS port (2 bytes, offset 14)
	CommandID   uint16 // ADS command ID (2 bytes, offset 16)
	StateFlags  uint16 // Request/response and protocol flags (2 bytes, offset 18)
	DataLength  uint32 // Size of ADS data in bytes (4 bytes, offset 20)
	ErrorCode   uint32 // AMS error number (4 bytes, offset 24)
	InvokeID    uint32 // Free usable ID for request/response matching (4 bytes, offset 28)
}

// Target returns the destination address of the header.
func (h *Header) Target() Address {
	return Address{NetID: h.TargetNetID, Port: h.TargetPort}
}

// Source returns the sender address of the header.
func (h *Header) Source() Address {
	return Address{NetID: h.SourceNetID, Port: h.SourcePort}
}

// MarshalBinary encodes the AMS header into a 32-byte slice (little-endian).
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)

	copy(buf[0:6], h.TargetNetID[:])
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.TargetPort))
	copy(buf[8:14], h.SourceNetID[:])
	binary.LittleEndian.PutUint16(buf[14:16], uint16(h.SourcePort))
	binary.LittleEndian.PutUint16(buf[16:18], h.CommandID)
	binary.LittleEndian.PutUint16(buf[18:20], h.StateFlags)
	binary.LittleEndian.PutUint32(buf[20:24], h.DataLength)
	binary.LittleEndian.PutUint32(buf[24:28], h.ErrorCode)
	binary.LittleEndian.PutUint32(buf[28:32], h.InvokeID)

	return buf, nil
}

// UnmarshalBinary decodes a 32-byte slice into the AMS header (little-endian).
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("ams: header requires %d bytes, got %d", HeaderSize, len(data))
	}

	copy(h.TargetNetID[:], data[0:6])
	h.TargetPort = Port(binary.LittleEndian.Uint16(data[6:8]))
	copy(h.SourceNetID[:], data[8:14])
	h.SourcePort = Port(binary.LittleEndian.Uint16(data[14:16]))
	h.CommandID = binary.LittleEndian.Uint16(data[16:18])
	h.StateFlags = binary.LittleEndian.Uint16(data[18:20])
	h.DataLength = binary.LittleEndian.Uint32(data[20:24])
	h.ErrorCode = binary.LittleEndian.Uint32(data[24:28])
	h.InvokeID = binary.LittleEndian.Uint32(data[28:32])

	return nil
}

// IsRequest returns true if the StateFlags indicate this is a request packet.
func (h *Header) IsRequest() bool {
	return (h.StateFlags & StateFlagResponse) == 0
}

// IsResponse returns true if the StateFlags indicate this is a response packet.
func (h *Header) IsResponse() bool {
	return (h.StateFlags & StateFlagResponse) != 0
}
