package adsclient

import (
	"context"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
)

// RequestOption adjusts a single request, e.g. to address a different
// target than the configured one. Requests with an overridden target bypass
// the symbol and data-type caches on both the read and the write side.
type RequestOption func(*requestConfig) error

type requestConfig struct {
	target     ams.Address
	overridden bool
}

// Target overrides the destination of one request ("192.168.5.1.1.1", 10000).
func Target(netID string, port uint16) RequestOption {
	return func(r *requestConfig) error {
		parsed, err := ams.ParseNetID(netID)
		if err != nil {
			return err
		}
		r.target = ams.Address{NetID: parsed, Port: ams.Port(port)}
		r.overridden = true
		return nil
	}
}

// TargetPort overrides only the ADS port, keeping the configured NetID.
// Useful for addressing the system service (port 10000) of the same system.
func TargetPort(port uint16) RequestOption {
	return func(r *requestConfig) error {
		r.target.Port = ams.Port(port)
		r.overridden = true
		return nil
	}
}

func (c *Client) resolveTarget(opts []RequestOption) (ams.Address, bool, error) {
	cfg := requestConfig{target: c.target}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return ams.Address{}, false, err
		}
	}
	return cfg.target, cfg.overridden, nil
}

// ReadRaw reads length bytes from the given index group and offset.
func (c *Client) ReadRaw(ctx context.Context, indexGroup, indexOffset, length uint32, opts ...RequestOption) ([]byte, error) {
	const op = "read"
	target, _, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	req := ads.ReadRequest{IndexGroup: indexGroup, IndexOffset: indexOffset, Length: length}
	reqData, _ := req.MarshalBinary()

	packet, err := c.sendCommand(ctx, target, ads.CmdRead, reqData, op)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return nil, protocolError(op, err)
	}
	if resp.Result != 0 {
		return nil, adsError(op, ads.Error(resp.Result))
	}
	return resp.Data, nil
}

// WriteRaw writes data to the given index group and offset.
func (c *Client) WriteRaw(ctx context.Context, indexGroup, indexOffset uint32, data []byte, opts ...RequestOption) error {
	const op = "write"
	target, _, err := c.resolveTarget(opts)
	if err != nil {
		return err
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	req := ads.WriteRequest{IndexGroup: indexGroup, IndexOffset: indexOffset, Length: uint32(len(data)), Data: data}
	reqData, _ := req.MarshalBinary()

	packet, err := c.sendCommand(ctx, target, ads.CmdWrite, reqData, op)
	if err != nil {
		return err
	}

	var resp ads.WriteResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return protocolError(op, err)
	}
	if resp.Result != 0 {
		return adsError(op, ads.Error(resp.Result))
	}
	return nil
}

// ReadWriteRaw writes data and reads up to readLength bytes in a single
// round-trip.
func (c *Client) ReadWriteRaw(ctx context.Context, indexGroup, indexOffset, readLength uint32, data []byte, opts ...RequestOption) ([]byte, error) {
	const op = "readwrite"
	target, _, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	req := ads.ReadWriteRequest{
		IndexGroup:  indexGroup,
		IndexOffset: indexOffset,
		ReadLength:  readLength,
		WriteLength: uint32(len(data)),
		Data:        data,
	}
	reqData, _ := req.MarshalBinary()

	packet, err := c.sendCommand(ctx, target, ads.CmdReadWrite, reqData, op)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadWriteResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return nil, protocolError(op, err)
	}
	if resp.Result != 0 {
		return nil, adsError(op, ads.Error(resp.Result))
	}
	return resp.Data, nil
}

// ReadDeviceInfo reads the device name and version of the target.
func (c *Client) ReadDeviceInfo(ctx context.Context, opts ...RequestOption) (*DeviceInfo, error) {
	const op = "read device info"
	target, _, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	packet, err := c.sendCommand(ctx, target, ads.CmdReadDeviceInfo, nil, op)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadDeviceInfoResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return nil, protocolError(op, err)
	}
	if resp.Result != 0 {
		return nil, adsError(op, ads.Error(resp.Result))
	}
	return &DeviceInfo{
		Name:         resp.DeviceName,
		MajorVersion: resp.MajorVersion,
		MinorVersion: resp.MinorVersion,
		VersionBuild: resp.VersionBuild,
	}, nil
}

// ReadState reads the ADS and device state of the target runtime.
func (c *Client) ReadState(ctx context.Context, opts ...RequestOption) (*DeviceState, error) {
	const op = "read state"
	target, _, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	packet, err := c.sendCommand(ctx, target, ads.CmdReadState, nil, op)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadStateResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return nil, protocolError(op, err)
	}
	if resp.Result != 0 {
		return nil, adsError(op, ads.Error(resp.Result))
	}
	return &DeviceState{ADSState: resp.ADSState, DeviceState: resp.DeviceState}, nil
}

// ReadTcSystemState reads the TwinCAT system service state (port 10000).
func (c *Client) ReadTcSystemState(ctx context.Context) (*DeviceState, error) {
	return c.ReadState(ctx, TargetPort(PortSystemService))
}

// WriteControl requests an ADS state transition on the target. The device
// state is passed through opaquely.
func (c *Client) WriteControl(ctx context.Context, adsState AdsState, deviceState uint16, data []byte, opts ...RequestOption) error {
	const op = "write control"
	target, _, err := c.resolveTarget(opts)
	if err != nil {
		return err
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	req := ads.WriteControlRequest{
		ADSState:    adsState,
		DeviceState: deviceState,
		Length:      uint32(len(data)),
		Data:        data,
	}
	reqData, _ := req.MarshalBinary()

	packet, err := c.sendCommand(ctx, target, ads.CmdWriteControl, reqData, op)
	if err != nil {
		return err
	}

	var resp ads.WriteControlResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return protocolError(op, err)
	}
	if resp.Result != 0 {
		return adsError(op, ads.Error(resp.Result))
	}
	return nil
}

// WriteControlByName requests a state transition by case-insensitive state
// name ("Run", "Stop", "Reconfig", ...).
func (c *Client) WriteControlByName(ctx context.Context, stateName string, deviceState uint16, opts ...RequestOption) error {
	state, err := ParseAdsState(stateName)
	if err != nil {
		return marshalError("write control", err)
	}
	return c.WriteControl(ctx, state, deviceState, nil, opts...)
}

// setPlcState reads the current state so the opaque device state is
// preserved, then requests the transition.
func (c *Client) setPlcState(ctx context.Context, state AdsState, opts ...RequestOption) error {
	current, err := c.ReadState(ctx, opts...)
	if err != nil {
		return err
	}
	return c.WriteControl(ctx, state, current.DeviceState, nil, opts...)
}

// StartPlc sets the PLC runtime to Run.
func (c *Client) StartPlc(ctx context.Context, opts ...RequestOption) error {
	return c.setPlcState(ctx, AdsStateRun, opts...)
}

// StopPlc sets the PLC runtime to Stop.
func (c *Client) StopPlc(ctx context.Context, opts ...RequestOption) error {
	return c.setPlcState(ctx, AdsStateStop, opts...)
}

// ResetPlc resets the PLC runtime (cold reset of the active project).
func (c *Client) ResetPlc(ctx context.Context, opts ...RequestOption) error {
	return c.setPlcState(ctx, AdsStateReset, opts...)
}

// RestartPlc stops and starts the PLC runtime again.
func (c *Client) RestartPlc(ctx context.Context, opts ...RequestOption) error {
	if err := c.StopPlc(ctx, opts...); err != nil {
		return err
	}
	return c.StartPlc(ctx, opts...)
}

// SetTcSystemToRun sets the TwinCAT system service to Reset, which restarts
// the system into Run mode. The connection drops and is re-established by
// the auto-reconnect path.
func (c *Client) SetTcSystemToRun(ctx context.Context) error {
	current, err := c.ReadTcSystemState(ctx)
	if err != nil {
		return err
	}
	return c.WriteControl(ctx, AdsStateReset, current.DeviceState, nil, TargetPort(PortSystemService))
}

// SetTcSystemToConfig sets the TwinCAT system service to Reconfig, which
// restarts the system into Config mode.
func (c *Client) SetTcSystemToConfig(ctx context.Context) error {
	current, err := c.ReadTcSystemState(ctx)
	if err != nil {
		return err
	}
	return c.WriteControl(ctx, AdsStateReconfig, current.DeviceState, nil, TargetPort(PortSystemService))
}

// RestartTcSystem restarts the whole TwinCAT system (same as
// SetTcSystemToRun).
func (c *Client) RestartTcSystem(ctx context.Context) error {
	return c.SetTcSystemToRun(ctx)
}

// ReadPlcRuntimeState reads the runtime state of the configured target and
// refreshes the metadata copy.
func (c *Client) ReadPlcRuntimeState(ctx context.Context) (*DeviceState, error) {
	state, err := c.ReadState(ctx)
	if err != nil {
		return nil, err
	}
	c.metaMu.Lock()
	c.meta.PlcRuntimeState = state
	c.metaMu.Unlock()
	return state, nil
}
