package adsclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/marshal"
)

// Value is the result of a typed read: the converted value plus the raw
// bytes and the metadata it was converted with.
type Value struct {
	Value  any
	Raw    []byte
	Type   *DataType
	Symbol *Symbol
}

// ReadValue reads a PLC variable by path and converts it to a Go value
// using the target's own type description. A trailing "^" dereferences a
// POINTER variable on the target (never automatically during conversion).
func (c *Client) ReadValue(ctx context.Context, path string, opts ...RequestOption) (*Value, error) {
	if strings.HasSuffix(path, "^") {
		return c.readDereferenced(ctx, path, opts)
	}

	sym, err := c.GetSymbol(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	dt, err := c.GetDataType(ctx, sym.Type, opts...)
	if err != nil {
		return nil, err
	}

	raw, err := c.ReadRaw(ctx, sym.IndexGroup, sym.IndexOffset, sym.Size, opts...)
	if err != nil {
		return nil, err
	}

	value, err := c.codec.Decode(raw, dt)
	if err != nil {
		return nil, marshalError("read value", err)
	}
	return &Value{Value: value, Raw: raw, Type: dt, Symbol: sym}, nil
}

// readDereferenced reads the pointee of a POINTER variable. The handle by
// name resolves the "^" suffix on the target side.
func (c *Client) readDereferenced(ctx context.Context, path string, opts []RequestOption) (*Value, error) {
	base := strings.TrimSuffix(path, "^")

	sym, err := c.GetSymbol(ctx, base, opts...)
	if err != nil {
		return nil, err
	}
	pointee, err := pointeeTypeName(sym.Type)
	if err != nil {
		return nil, marshalError("read value", err)
	}
	dt, err := c.GetDataType(ctx, pointee, opts...)
	if err != nil {
		return nil, err
	}

	handle, err := c.CreateVariableHandle(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := c.DeleteVariableHandle(ctx, handle, opts...); derr != nil {
			c.logger.Debug("releasing dereference handle failed", "error", derr)
		}
	}()

	raw, err := c.ReadRawByHandle(ctx, handle, marshal.TotalSize(dt), opts...)
	if err != nil {
		return nil, err
	}

	value, err := c.codec.Decode(raw, dt)
	if err != nil {
		return nil, marshalError("read value", err)
	}
	return &Value{Value: value, Raw: raw, Type: dt, Symbol: sym}, nil
}

func pointeeTypeName(typeName string) (string, error) {
	upper := strings.ToUpper(typeName)
	if strings.HasPrefix(upper, "POINTER TO ") {
		return typeName[len("POINTER TO "):], nil
	}
	return "", fmt.Errorf("%q is not a POINTER type", typeName)
}

// WriteValue converts a Go value using the target's type description and
// writes it. For structures every member must be supplied; use
// WriteValueAutoFill to merge a partial value over the current PLC state.
func (c *Client) WriteValue(ctx context.Context, path string, value any, opts ...RequestOption) error {
	return c.writeValue(ctx, path, value, false, opts)
}

// WriteValueAutoFill writes a possibly partial structure value: the current
// PLC value is read first (a zero-initialised default when unreadable) and
// the supplied members are deep-merged over it, matched case-insensitively.
func (c *Client) WriteValueAutoFill(ctx context.Context, path string, value any, opts ...RequestOption) error {
	return c.writeValue(ctx, path, value, true, opts)
}

func (c *Client) writeValue(ctx context.Context, path string, value any, autoFill bool, opts []RequestOption) error {
	sym, err := c.GetSymbol(ctx, path, opts...)
	if err != nil {
		return err
	}
	dt, err := c.GetDataType(ctx, sym.Type, opts...)
	if err != nil {
		return err
	}

	raw, err := c.encodeValue(ctx, value, dt, autoFill, sym, opts)
	if err != nil {
		return err
	}
	return c.WriteRaw(ctx, sym.IndexGroup, sym.IndexOffset, raw, opts...)
}

// encodeValue runs the strict conversion first and falls back to the
// read-merge-write path when autoFill is allowed and members are missing.
func (c *Client) encodeValue(ctx context.Context, value any, dt *DataType, autoFill bool, sym *Symbol, opts []RequestOption) ([]byte, error) {
	raw, err := c.codec.Encode(value, dt)
	if err == nil {
		return raw, nil
	}

	var missing *marshal.MissingMemberError
	if !errors.As(err, &missing) || !autoFill {
		return nil, marshalError("write value", err)
	}

	// Merge over the current PLC value; fall back to zeros when the read
	// fails (e.g. output-only variables during startup).
	base := make([]byte, marshal.TotalSize(dt))
	if sym != nil {
		if current, rerr := c.ReadRaw(ctx, sym.IndexGroup, sym.IndexOffset, sym.Size, opts...); rerr == nil {
			copy(base, current)
		} else {
			c.logger.Debug("autoFill base read failed, using zero default", "error", rerr)
		}
	}
	if err := c.codec.EncodeInto(value, dt, base); err != nil {
		return nil, marshalError("write value", err)
	}
	return base, nil
}

// ReadValueBySymbol reads and converts using an already resolved symbol.
func (c *Client) ReadValueBySymbol(ctx context.Context, sym *Symbol, opts ...RequestOption) (*Value, error) {
	if sym == nil {
		return nil, marshalError("read value", fmt.Errorf("nil symbol"))
	}
	dt, err := c.GetDataType(ctx, sym.Type, opts...)
	if err != nil {
		return nil, err
	}
	raw, err := c.ReadRaw(ctx, sym.IndexGroup, sym.IndexOffset, sym.Size, opts...)
	if err != nil {
		return nil, err
	}
	value, err := c.codec.Decode(raw, dt)
	if err != nil {
		return nil, marshalError("read value", err)
	}
	return &Value{Value: value, Raw: raw, Type: dt, Symbol: sym}, nil
}

// WriteValueBySymbol converts and writes using an already resolved symbol.
func (c *Client) WriteValueBySymbol(ctx context.Context, sym *Symbol, value any, opts ...RequestOption) error {
	if sym == nil {
		return marshalError("write value", fmt.Errorf("nil symbol"))
	}
	dt, err := c.GetDataType(ctx, sym.Type, opts...)
	if err != nil {
		return err
	}
	raw, err := c.encodeValue(ctx, value, dt, false, sym, opts)
	if err != nil {
		return err
	}
	return c.WriteRaw(ctx, sym.IndexGroup, sym.IndexOffset, raw, opts...)
}

// ReadRawByName reads a variable's raw value by path in one ReadWrite
// round-trip (SymbolValueByName); no handle or symbol lookup is needed.
func (c *Client) ReadRawByName(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	return c.ReadWriteRaw(ctx, ads.IndexGroupSymbolValueByName, 0,
		ads.ReadLengthUnknown, cString(path), opts...)
}

// ConvertFromRaw converts raw bytes to a Go value using the named type's
// description from the target.
func (c *Client) ConvertFromRaw(ctx context.Context, data []byte, typeName string, opts ...RequestOption) (any, error) {
	dt, err := c.GetDataType(ctx, typeName, opts...)
	if err != nil {
		return nil, err
	}
	value, err := c.codec.Decode(data, dt)
	if err != nil {
		return nil, marshalError("convert from raw", err)
	}
	return value, nil
}

// ConvertToRaw converts a Go value to raw bytes using the named type's
// description from the target.
func (c *Client) ConvertToRaw(ctx context.Context, value any, typeName string, opts ...RequestOption) ([]byte, error) {
	dt, err := c.GetDataType(ctx, typeName, opts...)
	if err != nil {
		return nil, err
	}
	raw, err := c.codec.Encode(value, dt)
	if err != nil {
		return nil, marshalError("convert to raw", err)
	}
	return raw, nil
}

// DefaultPlcValue returns the zero-initialised Go value of the named type,
// e.g. to seed partial writes.
func (c *Client) DefaultPlcValue(ctx context.Context, typeName string, opts ...RequestOption) (any, error) {
	dt, err := c.GetDataType(ctx, typeName, opts...)
	if err != nil {
		return nil, err
	}
	value, err := c.codec.DefaultValue(dt)
	if err != nil {
		return nil, marshalError("default value", err)
	}
	return value, nil
}
