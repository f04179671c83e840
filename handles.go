package adsclient

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/plcbus/adsclient/internal/ads"
)

// VariableHandle is a PLC-side shortcut to one variable's address. It is a
// target resource and must be released with DeleteVariableHandle.
type VariableHandle struct {
	Handle uint32
	// Size and Type are filled when the target returns the extended reply.
	Size uint32
	Type string
}

// CreateVariableHandle acquires a handle for the variable path. Paths may
// carry a trailing "^" to address the pointee of a POINTER variable.
func (c *Client) CreateVariableHandle(ctx context.Context, path string, opts ...RequestOption) (VariableHandle, error) {
	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSymbolHandleByName, 0,
		ads.ReadLengthUnknown, cString(path), opts...)
	if err != nil {
		return VariableHandle{}, err
	}
	handle, err := parseVariableHandle(data)
	if err != nil {
		return VariableHandle{}, protocolError("create variable handle", err)
	}
	return handle, nil
}

// parseVariableHandle tolerates both the plain 4-byte reply and the
// extended reply carrying size and data-type name.
func parseVariableHandle(data []byte) (VariableHandle, error) {
	if len(data) < 4 {
		return VariableHandle{}, fmt.Errorf("handle reply requires 4 bytes, got %d", len(data))
	}
	h := VariableHandle{Handle: binary.LittleEndian.Uint32(data[0:4])}

	if len(data) >= 8 {
		h.Size = binary.LittleEndian.Uint32(data[4:8])
	}
	if len(data) >= 10 {
		nameLen := int(binary.LittleEndian.Uint16(data[8:10]))
		if 10+nameLen <= len(data) {
			raw := data[10 : 10+nameLen]
			for i, b := range raw {
				if b == 0 {
					raw = raw[:i]
					break
				}
			}
			h.Type = string(raw)
		}
	}
	return h, nil
}

// DeleteVariableHandle releases a handle on the target.
func (c *Client) DeleteVariableHandle(ctx context.Context, handle VariableHandle, opts ...RequestOption) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, handle.Handle)
	return c.WriteRaw(ctx, ads.IndexGroupSymbolReleaseHandle, 0, buf, opts...)
}

// ReadRawByHandle reads size bytes through a variable handle.
func (c *Client) ReadRawByHandle(ctx context.Context, handle VariableHandle, size uint32, opts ...RequestOption) ([]byte, error) {
	if size == 0 {
		size = handle.Size
	}
	return c.ReadRaw(ctx, ads.IndexGroupSymbolValueByHandle, handle.Handle, size, opts...)
}

// WriteRawByHandle writes raw bytes through a variable handle.
func (c *Client) WriteRawByHandle(ctx context.Context, handle VariableHandle, data []byte, opts ...RequestOption) error {
	return c.WriteRaw(ctx, ads.IndexGroupSymbolValueByHandle, handle.Handle, data, opts...)
}
