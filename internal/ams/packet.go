package ams

import (
	"fmt"
	"io"
)

// Packet represents one complete AMS/TCP frame. For ADS command frames
// (TCPHeader.Command == TCPCommandADS) Header is populated and Data holds
// the ADS payload. For router control frames Header is zero and Data holds
// the raw control payload.
type Packet struct {
	TCPHeader TCPHeader
	Header    Header
	Data      []byte
}

// IsControl returns true for router control frames (port connect/close,
// router notifications) that carry no AMS header.
func (p *Packet) IsControl() bool {
	return p.TCPHeader.Command != TCPCommandADS
}

// NewRequestPacket creates a new ADS request packet with the given parameters.
func NewRequestPacket(target, source Address, commandID uint16, invokeID uint32, data []byte) *Packet {
	return &Packet{
		TCPHeader: TCPHeader{
			Command: TCPCommandADS,
			Length:  HeaderSize + uint32(len(data)),
		},
		Header: Header{
			TargetNetID: target.NetID,
			TargetPort:  target.Port,
			SourceNetID: source.NetID,
			SourcePort:  source.Port,
			CommandID:   commandID,
			StateFlags:  StateFlagsTCPRequest,
			DataLength:  uint32(len(data)),
			ErrorCode:   0,
			InvokeID:    invokeID,
		},
		Data: data,
	}
}

// NewControlPacket creates a router control frame (no AMS header).
func NewControlPacket(command uint16, payload []byte) *Packet {
	return &Packet{
		TCPHeader: TCPHeader{
			Command: command,
			Length:  uint32(len(payload)),
		},
		Data: payload,
	}
}

// MarshalBinary encodes the complete frame (TCP header [+ AMS header] + data).
func (p *Packet) MarshalBinary() ([]byte, error) {
	tcpBuf, err := p.TCPHeader.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ams: marshal TCP header: %w", err)
	}

	if p.IsControl() {
		buf := make([]byte, len(tcpBuf)+len(p.Data))
		copy(buf, tcpBuf)
		copy(buf[len(tcpBuf):], p.Data)
		return buf, nil
	}

	amsBuf, err := p.Header.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ams: marshal AMS header: %w", err)
	}

	buf := make([]byte, len(tcpBuf)+len(amsBuf)+len(p.Data))
	offset := 0
	copy(buf[offset:], tcpBuf)
	offset += len(tcpBuf)
	copy(buf[offset:], amsBuf)
	offset += len(amsBuf)
	copy(buf[offset:], p.Data)

	return buf, nil
}

// ParsePayload decodes the frame payload (everything after the 6-byte TCP
// header). For ADS frames the AMS header is parsed and the ADS data sliced
// out; control payloads are kept verbatim.
func (p *Packet) ParsePayload(payload []byte) error {
	if uint32(len(payload)) < p.TCPHeader.Length {
		return fmt.Errorf("ams: frame payload mismatch: expected %d bytes, got %d", p.TCPHeader.Length, len(payload))
	}
	payload = payload[:p.TCPHeader.Length]

	if p.IsControl() {
		p.Data = payload
		return nil
	}

	if len(payload) < HeaderSize {
		return fmt.Errorf("ams: ADS frame requires at least %d bytes, got %d", HeaderSize, len(payload))
	}
	if err := p.Header.UnmarshalBinary(payload[:HeaderSize]); err != nil {
		return fmt.Errorf("ams: unmarshal AMS header: %w", err)
	}

	if p.Header.DataLength > 0 {
		if uint32(len(payload)) < HeaderSize+p.Header.DataLength {
			return fmt.Errorf("ams: insufficient data: expected %d bytes, got %d", HeaderSize+p.Header.DataLength, len(payload))
		}
		p.Data = payload[HeaderSize : HeaderSize+p.Header.DataLength]
	} else {
		p.Data = nil
	}

	return nil
}

// UnmarshalBinary decodes a complete frame from a byte slice.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) < 6 {
		return fmt.Errorf("ams: packet requires at least 6 bytes, got %d", len(data))
	}
	if err := p.TCPHeader.UnmarshalBinary(data[0:6]); err != nil {
		return fmt.Errorf("ams: unmarshal TCP header: %w", err)
	}
	return p.ParsePayload(data[6:])
}

// ReadPacket reads one complete AMS/TCP frame from an io.Reader. It first
// reads the TCP header to determine the frame size, then reads the rest.
func ReadPacket(r io.Reader) (*Packet, error) {
	tcpBuf := make([]byte, 6)
	if _, err := io.ReadFull(r, tcpBuf); err != nil {
		return nil, fmt.Errorf("ams: read TCP header: %w", err)
	}

	var p Packet
	if err := p.TCPHeader.UnmarshalBinary(tcpBuf); err != nil {
		return nil, fmt.Errorf("ams: unmarshal TCP header: %w", err)
	}

	payload := make([]byte, p.TCPHeader.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("ams: read frame payload: %w", err)
	}

	if err := p.ParsePayload(payload); err != nil {
		return nil, err
	}
	return &p, nil
}

// WritePacket writes one complete AMS/TCP frame to an io.Writer.
func WritePacket(w io.Writer, p *Packet) error {
	buf, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("ams: marshal packet: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("ams: write packet: %w", err)
	}
	return nil
}
