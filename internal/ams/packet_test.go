package ams

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		TargetNetID: NetID{192, 168, 1, 100, 1, 1},
		TargetPort:  851,
		SourceNetID: NetID{192, 168, 1, 50, 1, 1},
		SourcePort:  32905,
		CommandID:   0x0002,
		StateFlags:  StateFlagsTCPRequest,
		DataLength:  12,
		ErrorCode:   0,
		InvokeID:    42,
	}

	buf, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(buf) != HeaderSize {
		t.Fatalf("header size = %d, want %d", len(buf), HeaderSize)
	}

	var decoded Header
	if err := decoded.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != h {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, h)
	}
	if !decoded.IsRequest() || decoded.IsResponse() {
		t.Error("request flags misreported")
	}
}

func TestRequestPacketRoundTrip(t *testing.T) {
	target := Address{NetID: NetID{10, 0, 0, 1, 1, 1}, Port: 851}
	source := Address{NetID: NetID{10, 0, 0, 2, 1, 1}, Port: 32905}
	data := []byte{0x01, 0x02, 0x03, 0x04}

	p := NewRequestPacket(target, source, 0x0002, 7, data)
	if p.TCPHeader.Command != TCPCommandADS {
		t.Fatalf("TCP command = %d", p.TCPHeader.Command)
	}
	if p.TCPHeader.Length != HeaderSize+uint32(len(data)) {
		t.Fatalf("TCP length = %d", p.TCPHeader.Length)
	}

	buf, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := ReadPacket(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	if decoded.Header.Target() != target || decoded.Header.Source() != source {
		t.Errorf("address mismatch: %+v", decoded.Header)
	}
	if decoded.Header.InvokeID != 7 {
		t.Errorf("invoke ID = %d", decoded.Header.InvokeID)
	}
	if !bytes.Equal(decoded.Data, data) {
		t.Errorf("data = % X, want % X", decoded.Data, data)
	}
}

func TestControlPacketRoundTrip(t *testing.T) {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, 39999)

	p := NewControlPacket(TCPCommandPortConnect, payload)
	buf, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(buf) != 8 {
		t.Fatalf("control frame length = %d, want 8", len(buf))
	}

	decoded, err := ReadPacket(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	if !decoded.IsControl() {
		t.Fatal("expected control frame")
	}
	if decoded.TCPHeader.Command != TCPCommandPortConnect {
		t.Errorf("command = 0x%04X", decoded.TCPHeader.Command)
	}
	if !bytes.Equal(decoded.Data, payload) {
		t.Errorf("payload = % X", decoded.Data)
	}
}

func TestReadPacketShortInput(t *testing.T) {
	if _, err := ReadPacket(bytes.NewReader([]byte{0x00, 0x00, 0x05})); err == nil {
		t.Error("expected error for truncated TCP header")
	}

	// TCP header promising more payload than present.
	var h TCPHeader
	h.Command = TCPCommandADS
	h.Length = 100
	buf, _ := h.MarshalBinary()
	if _, err := ReadPacket(bytes.NewReader(buf)); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestUnmarshalBinaryADS(t *testing.T) {
	target := Address{NetID: NetID{127, 0, 0, 1, 1, 1}, Port: 10000}
	source := Address{NetID: NetID{127, 0, 0, 1, 1, 1}, Port: 33000}
	p := NewRequestPacket(target, source, 0x0004, 1, nil)

	buf, _ := p.MarshalBinary()

	var decoded Packet
	if err := decoded.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Header.CommandID != 0x0004 {
		t.Errorf("command = %d", decoded.Header.CommandID)
	}
	if len(decoded.Data) != 0 {
		t.Errorf("data length = %d", len(decoded.Data))
	}
}
