package adsclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/symbols"
)

// RPCMethodResult carries the return value and the output parameters of an
// invoked function block method.
type RPCMethodResult struct {
	ReturnValue any
	Outputs     map[string]any
}

// errShortHandleReply is shared with the sum-command handle path.
var errShortHandleReply = fmt.Errorf("handle reply requires 4 bytes")

// InvokeRPCMethod calls a function block method on the target. The method
// must be exported for RPC ({attribute 'TcRpcEnable'}). Inputs are matched
// by parameter name case-insensitively; outputs and the return value are
// converted with their declared types.
//
// The call acquires a variable handle for "path#method"; the handle is
// released on every exit path, including conversion failures.
func (c *Client) InvokeRPCMethod(ctx context.Context, path, method string, parameters map[string]any, opts ...RequestOption) (*RPCMethodResult, error) {
	const op = "invoke rpc method"

	sym, err := c.GetSymbol(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	fbType, err := c.GetDataType(ctx, sym.Type, opts...)
	if err != nil {
		return nil, err
	}

	m := fbType.FindMethod(method)
	if m == nil {
		return nil, marshalError(op, fmt.Errorf("type %q has no RPC method %q", sym.Type, method))
	}

	writeData, err := c.encodeRPCInputs(ctx, m, parameters, opts)
	if err != nil {
		return nil, err
	}

	readLength := m.ReturnSize
	for i := range m.Parameters {
		if m.Parameters[i].IsOutput() {
			readLength += m.Parameters[i].Size
		}
	}

	handle, err := c.CreateVariableHandle(ctx, path+"#"+method, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := c.DeleteVariableHandle(ctx, handle, opts...); derr != nil {
			c.logger.Debug("releasing rpc method handle failed", "error", derr)
		}
	}()

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSymbolValueByHandle, handle.Handle,
		readLength, writeData, opts...)
	if err != nil {
		return nil, err
	}

	return c.decodeRPCResult(ctx, m, data, opts)
}

func (c *Client) encodeRPCInputs(ctx context.Context, m *symbols.RPCMethod, parameters map[string]any, opts []RequestOption) ([]byte, error) {
	const op = "invoke rpc method"

	var writeData []byte
	for i := range m.Parameters {
		param := &m.Parameters[i]
		if !param.IsInput() {
			continue
		}

		value, ok := rpcParameter(parameters, param.Name)
		if !ok {
			return nil, marshalError(op, fmt.Errorf("input parameter %q missing", param.Name))
		}

		pdt, err := c.GetDataType(ctx, param.Type, opts...)
		if err != nil {
			return nil, err
		}
		raw, err := c.codec.Encode(value, pdt)
		if err != nil {
			return nil, marshalError(op, fmt.Errorf("parameter %q: %w", param.Name, err))
		}
		// Parameter slots are padded to their declared size.
		if uint32(len(raw)) < param.Size {
			padded := make([]byte, param.Size)
			copy(padded, raw)
			raw = padded
		}
		writeData = append(writeData, raw...)
	}
	return writeData, nil
}

func (c *Client) decodeRPCResult(ctx context.Context, m *symbols.RPCMethod, data []byte, opts []RequestOption) (*RPCMethodResult, error) {
	const op = "invoke rpc method"

	result := &RPCMethodResult{Outputs: make(map[string]any)}
	cursor := uint32(0)

	if m.ReturnSize > 0 && m.ReturnType != "" {
		if uint32(len(data)) < m.ReturnSize {
			return nil, protocolError(op, fmt.Errorf("reply too short for return value"))
		}
		rdt, err := c.GetDataType(ctx, m.ReturnType, opts...)
		if err != nil {
			return nil, err
		}
		value, err := c.codec.Decode(data[:m.ReturnSize], rdt)
		if err != nil {
			return nil, marshalError(op, fmt.Errorf("return value: %w", err))
		}
		result.ReturnValue = value
		cursor = m.ReturnSize
	}

	for i := range m.Parameters {
		param := &m.Parameters[i]
		if !param.IsOutput() {
			continue
		}
		if uint32(len(data)) < cursor+param.Size {
			return nil, protocolError(op, fmt.Errorf("reply too short for output %q", param.Name))
		}
		pdt, err := c.GetDataType(ctx, param.Type, opts...)
		if err != nil {
			return nil, err
		}
		value, err := c.codec.Decode(data[cursor:cursor+param.Size], pdt)
		if err != nil {
			return nil, marshalError(op, fmt.Errorf("output %q: %w", param.Name, err))
		}
		result.Outputs[param.Name] = value
		cursor += param.Size
	}
	return result, nil
}

func rpcParameter(parameters map[string]any, name string) (any, bool) {
	if v, ok := parameters[name]; ok {
		return v, true
	}
	for k, v := range parameters {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}
