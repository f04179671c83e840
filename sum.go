package adsclient

import (
	"context"
	"encoding/binary"

	"github.com/plcbus/adsclient/internal/ads"
)

// RawReadCommand is one sub-read of a batched ReadRawMulti.
type RawReadCommand struct {
	IndexGroup  uint32
	IndexOffset uint32
	Size        uint32
}

// RawWriteCommand is one sub-write of a batched WriteRawMulti.
type RawWriteCommand struct {
	IndexGroup  uint32
	IndexOffset uint32
	Data        []byte
}

// MultiResult is the per-element outcome of a sum command. The batch itself
// succeeds at the transport level whenever any ADS response is received;
// failures are reported per entry.
type MultiResult struct {
	Success bool
	Error   error
	Data    []byte
}

func sumResultToMulti(op string, r ads.SumResult) MultiResult {
	m := MultiResult{Data: r.Data, Success: r.Result == 0}
	if r.Result != 0 {
		m.Error = adsError(op, r.Result)
	}
	return m
}

// ReadRawMulti batches N address-targeted reads into one round-trip.
func (c *Client) ReadRawMulti(ctx context.Context, commands []RawReadCommand, opts ...RequestOption) ([]MultiResult, error) {
	const op = "sum read"
	if len(commands) == 0 {
		return nil, nil
	}

	items := make([]ads.SumReadItem, len(commands))
	readLength := uint32(4 * len(commands))
	for i, cmd := range commands {
		items[i] = ads.SumReadItem{IndexGroup: cmd.IndexGroup, IndexOffset: cmd.IndexOffset, Length: cmd.Size}
		readLength += cmd.Size
	}

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSumCommandRead, uint32(len(commands)),
		readLength, ads.MarshalSumReadRequest(items), opts...)
	if err != nil {
		return nil, err
	}

	results, err := ads.UnmarshalSumReadResponse(data, items)
	if err != nil {
		return nil, protocolError(op, err)
	}

	out := make([]MultiResult, len(results))
	for i, r := range results {
		out[i] = sumResultToMulti(op, r)
	}
	return out, nil
}

// WriteRawMulti batches N address-targeted writes into one round-trip.
func (c *Client) WriteRawMulti(ctx context.Context, commands []RawWriteCommand, opts ...RequestOption) ([]MultiResult, error) {
	const op = "sum write"
	if len(commands) == 0 {
		return nil, nil
	}

	items := make([]ads.SumWriteItem, len(commands))
	for i, cmd := range commands {
		items[i] = ads.SumWriteItem{IndexGroup: cmd.IndexGroup, IndexOffset: cmd.IndexOffset, Data: cmd.Data}
	}

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSumCommandWrite, uint32(len(commands)),
		uint32(4*len(commands)), ads.MarshalSumWriteRequest(items), opts...)
	if err != nil {
		return nil, err
	}

	results, err := ads.UnmarshalSumWriteResponse(data, len(commands))
	if err != nil {
		return nil, protocolError(op, err)
	}

	out := make([]MultiResult, len(results))
	for i, r := range results {
		out[i] = sumResultToMulti(op, r)
	}
	return out, nil
}

// HandleMultiResult is the per-path outcome of CreateVariableHandleMulti.
type HandleMultiResult struct {
	Path    string
	Handle  VariableHandle
	Success bool
	Error   error
}

// CreateVariableHandleMulti acquires handles for several paths in one
// round-trip. Every successfully created handle must still be released.
func (c *Client) CreateVariableHandleMulti(ctx context.Context, paths []string, opts ...RequestOption) ([]HandleMultiResult, error) {
	const op = "sum create handle"
	if len(paths) == 0 {
		return nil, nil
	}

	items := make([]ads.SumReadWriteItem, len(paths))
	readLength := uint32(0)
	for i, path := range paths {
		items[i] = ads.SumReadWriteItem{
			IndexGroup: ads.IndexGroupSymbolHandleByName,
			ReadLength: 4,
			Data:       cString(path),
		}
		readLength += 8 + items[i].ReadLength
	}

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSumCommandReadWrite, uint32(len(paths)),
		readLength, ads.MarshalSumReadWriteRequest(items), opts...)
	if err != nil {
		return nil, err
	}

	results, err := ads.UnmarshalSumReadWriteResponse(data, len(paths))
	if err != nil {
		return nil, protocolError(op, err)
	}

	out := make([]HandleMultiResult, len(results))
	for i, r := range results {
		out[i] = HandleMultiResult{Path: paths[i], Success: r.Result == 0}
		if r.Result != 0 {
			out[i].Error = adsError(op, r.Result)
			continue
		}
		if len(r.Data) >= 4 {
			out[i].Handle = VariableHandle{Handle: binary.LittleEndian.Uint32(r.Data)}
		} else {
			out[i].Success = false
			out[i].Error = protocolError(op, errShortHandleReply)
		}
	}
	return out, nil
}

// DeleteVariableHandleMulti releases several handles in one round-trip.
func (c *Client) DeleteVariableHandleMulti(ctx context.Context, handles []VariableHandle, opts ...RequestOption) ([]MultiResult, error) {
	const op = "sum delete handle"
	if len(handles) == 0 {
		return nil, nil
	}

	items := make([]ads.SumWriteItem, len(handles))
	for i, h := range handles {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, h.Handle)
		items[i] = ads.SumWriteItem{IndexGroup: ads.IndexGroupSymbolReleaseHandle, Data: buf}
	}

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSumCommandWrite, uint32(len(handles)),
		uint32(4*len(handles)), ads.MarshalSumWriteRequest(items), opts...)
	if err != nil {
		return nil, err
	}

	results, err := ads.UnmarshalSumWriteResponse(data, len(handles))
	if err != nil {
		return nil, protocolError(op, err)
	}

	out := make([]MultiResult, len(results))
	for i, r := range results {
		out[i] = sumResultToMulti(op, r)
	}
	return out, nil
}

// ReadValueMulti reads several variables by path in one round-trip, each
// converted with its own type tree.
func (c *Client) ReadValueMulti(ctx context.Context, paths []string, opts ...RequestOption) ([]ValueMultiResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	// Per-element outcomes: a path that fails to resolve does not abort the
	// batch, it is reported in its own result entry.
	out := make([]ValueMultiResult, len(paths))
	var commands []RawReadCommand
	var resolved []int
	types := make([]*DataType, len(paths))
	syms := make([]*Symbol, len(paths))

	for i, path := range paths {
		out[i] = ValueMultiResult{Path: path}
		sym, err := c.GetSymbol(ctx, path, opts...)
		if err != nil {
			out[i].Error = err
			continue
		}
		dt, err := c.GetDataType(ctx, sym.Type, opts...)
		if err != nil {
			out[i].Error = err
			continue
		}
		types[i] = dt
		syms[i] = sym
		commands = append(commands, RawReadCommand{
			IndexGroup:  sym.IndexGroup,
			IndexOffset: sym.IndexOffset,
			Size:        sym.Size,
		})
		resolved = append(resolved, i)
	}

	if len(commands) > 0 {
		raws, err := c.ReadRawMulti(ctx, commands, opts...)
		if err != nil {
			return nil, err
		}
		for n, r := range raws {
			i := resolved[n]
			out[i].Success = r.Success
			out[i].Error = r.Error
			if !r.Success {
				continue
			}
			value, derr := c.codec.Decode(r.Data, types[i])
			if derr != nil {
				out[i].Success = false
				out[i].Error = marshalError("sum read value", derr)
				continue
			}
			out[i].Value = &Value{Value: value, Raw: r.Data, Type: types[i], Symbol: syms[i]}
		}
	}
	return out, nil
}

// ValueMultiResult is the per-path outcome of ReadValueMulti.
type ValueMultiResult struct {
	Path    string
	Value   *Value
	Success bool
	Error   error
}
