package marshal

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// StringEncoding selects the byte encoding of PLC STRING content.
type StringEncoding int

const (
	// EncodingCP1252 is the TwinCAT default codepage.
	EncodingCP1252 StringEncoding = iota
	// EncodingUTF8 is used by targets compiled with UTF-8 string support.
	EncodingUTF8
)

func (e StringEncoding) String() string {
	switch e {
	case EncodingCP1252:
		return "cp1252"
	case EncodingUTF8:
		return "utf-8"
	default:
		return "unknown"
	}
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeString converts a NUL-terminated STRING buffer to a Go string.
func decodeString(buf []byte, enc StringEncoding) (string, error) {
	if idx := bytes.IndexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}
	if enc == EncodingUTF8 {
		return string(buf), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("marshal: decode cp1252 string: %w", err)
	}
	return string(decoded), nil
}

// encodeString fills a buffer of capacity bytes with the encoded value,
// truncated to capacity-1 bytes so the terminating NUL is always present.
func encodeString(value string, capacity uint32, enc StringEncoding) ([]byte, error) {
	var raw []byte
	if enc == EncodingUTF8 {
		raw = []byte(value)
	} else {
		encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("marshal: encode cp1252 string: %w", err)
		}
		raw = encoded
	}

	buf := make([]byte, capacity)
	max := int(capacity) - 1
	if max < 0 {
		max = 0
	}
	if len(raw) > max {
		raw = raw[:max]
	}
	copy(buf, raw)
	return buf, nil
}

// decodeWString converts a UTF-16LE buffer to a Go string, stopping at the
// first 16-bit NUL.
func decodeWString(buf []byte) (string, error) {
	end := len(buf) &^ 1
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0 && buf[i+1] == 0 {
			end = i
			break
		}
	}
	decoded, err := utf16le.NewDecoder().Bytes(buf[:end])
	if err != nil {
		return "", fmt.Errorf("marshal: decode utf-16le string: %w", err)
	}
	return string(decoded), nil
}

// encodeWString fills a buffer of capacity bytes with the UTF-16LE encoded
// value, truncated so the two terminator bytes are always present.
func encodeWString(value string, capacity uint32) ([]byte, error) {
	raw, err := utf16le.NewEncoder().Bytes([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("marshal: encode utf-16le string: %w", err)
	}

	buf := make([]byte, capacity)
	max := (int(capacity) - 2) &^ 1
	if max < 0 {
		max = 0
	}
	if len(raw) > max {
		raw = raw[:max]
	}
	copy(buf, raw)
	return buf, nil
}
