package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plcbus/adsclient"
)

// Gateway provides JSON-based operations over one adsclient connection.
type Gateway struct {
	client    *adsclient.Client
	config    *Config
	subs      *SubscriptionManager
	startTime time.Time
}

// NewGateway creates a gateway around an already constructed client.
func NewGateway(client *adsclient.Client, config *Config) *Gateway {
	g := &Gateway{
		client:    client,
		config:    config,
		startTime: time.Now(),
	}
	g.subs = NewSubscriptionManager(client, config)
	return g
}

// Client exposes the wrapped ADS client.
func (g *Gateway) Client() *adsclient.Client {
	return g.client
}

// ReadValue reads a single variable.
func (g *Gateway) ReadValue(ctx context.Context, symbol string) *ValueResponse {
	result, err := g.client.ReadValue(ctx, symbol)
	if err != nil {
		return &ValueResponse{Success: false, Symbol: symbol, Error: err.Error()}
	}
	return &ValueResponse{
		Success: true,
		Symbol:  symbol,
		Value:   result.Value,
		Type:    result.Type.Type,
	}
}

// BatchRead reads multiple variables in one ADS sum command round-trip.
func (g *Gateway) BatchRead(ctx context.Context, symbols []string) (*BatchReadResponse, error) {
	if len(symbols) > g.config.Gateway.MaxBatchSize {
		return nil, NewBatchSizeExceededError(len(symbols), g.config.Gateway.MaxBatchSize)
	}

	results, err := g.client.ReadValueMulti(ctx, symbols)
	if err != nil {
		return nil, fromClientError(err)
	}

	resp := &BatchReadResponse{
		Data:   make(map[string]any),
		Errors: make(map[string]string),
	}
	for _, r := range results {
		if r.Success {
			resp.Data[r.Path] = r.Value.Value
		} else {
			resp.Errors[r.Path] = r.Error.Error()
		}
	}
	resp.Success = len(resp.Errors) == 0
	return resp, nil
}

// WriteValue writes a single variable, optionally auto-filling partial
// structure values.
func (g *Gateway) WriteValue(ctx context.Context, symbol string, value any, autoFill bool) *WriteValueResponse {
	var err error
	if autoFill {
		err = g.client.WriteValueAutoFill(ctx, symbol, value)
	} else {
		err = g.client.WriteValue(ctx, symbol, value)
	}
	if err != nil {
		return &WriteValueResponse{Success: false, Symbol: symbol, Error: err.Error()}
	}
	return &WriteValueResponse{Success: true, Symbol: symbol}
}

// BatchWrite writes multiple variables.
func (g *Gateway) BatchWrite(ctx context.Context, writes map[string]any, autoFill bool) (*BatchWriteResponse, error) {
	if len(writes) > g.config.Gateway.MaxBatchSize {
		return nil, NewBatchSizeExceededError(len(writes), g.config.Gateway.MaxBatchSize)
	}

	resp := &BatchWriteResponse{
		Results: make(map[string]bool),
		Errors:  make(map[string]string),
	}
	for symbol, value := range writes {
		var err error
		if autoFill {
			err = g.client.WriteValueAutoFill(ctx, symbol, value)
		} else {
			err = g.client.WriteValue(ctx, symbol, value)
		}
		if err != nil {
			resp.Results[symbol] = false
			resp.Errors[symbol] = err.Error()
		} else {
			resp.Results[symbol] = true
		}
	}
	resp.Success = len(resp.Errors) == 0
	return resp, nil
}

// GetSymbolTable retrieves all symbols from the target.
func (g *Gateway) GetSymbolTable(ctx context.Context) (*SymbolTableResponse, error) {
	syms, err := g.client.GetSymbols(ctx)
	if err != nil {
		return &SymbolTableResponse{Success: false, Error: err.Error()}, nil
	}

	infos := make([]SymbolInfo, len(syms))
	for i, sym := range syms {
		infos[i] = SymbolInfo{
			Name:        sym.Name,
			Type:        sym.Type,
			Size:        sym.Size,
			IndexGroup:  sym.IndexGroup,
			IndexOffset: sym.IndexOffset,
			Comment:     sym.Comment,
		}
	}
	return &SymbolTableResponse{Success: true, Count: len(infos), Symbols: infos}, nil
}

// GetSymbolInfo retrieves metadata for one variable.
func (g *Gateway) GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	sym, err := g.client.GetSymbol(ctx, symbol)
	if err != nil {
		if adsclient.IsSymbolNotFound(err) {
			return nil, NewSymbolNotFoundError(symbol)
		}
		return nil, fromClientError(err)
	}
	return &SymbolInfo{
		Name:        sym.Name,
		Type:        sym.Type,
		Size:        sym.Size,
		IndexGroup:  sym.IndexGroup,
		IndexOffset: sym.IndexOffset,
		Comment:     sym.Comment,
	}, nil
}

// GetHealth returns the health status.
func (g *Gateway) GetHealth() *HealthResponse {
	status := "ok"
	if !g.client.IsConnected() {
		status = "degraded"
	}
	return &HealthResponse{
		Status:    status,
		Connected: g.client.IsConnected(),
		Timestamp: time.Now(),
	}
}

// GetInfo returns gateway and connection information.
func (g *Gateway) GetInfo() *InfoResponse {
	meta := g.client.Metadata()
	info := &InfoResponse{
		TargetNetID:   g.config.PLC.TargetNetID,
		TargetPort:    g.config.PLC.TargetPort,
		RouterAddress: g.config.PLC.RouterAddress,
		Connected:     g.client.IsConnected(),
		SymbolVersion: meta.SymbolVersion,
		ServerUptime:  time.Since(g.startTime).String(),
	}
	if meta.DeviceInfo != nil {
		info.DeviceName = meta.DeviceInfo.Name
	}
	return info
}

// GetState retrieves the PLC runtime and TwinCAT system states.
func (g *Gateway) GetState(ctx context.Context) *StateResponse {
	state, err := g.client.ReadState(ctx)
	if err != nil {
		return &StateResponse{Success: false, Error: err.Error()}
	}
	resp := &StateResponse{
		Success:      true,
		ADSState:     uint16(state.ADSState),
		ADSStateName: state.ADSState.String(),
		DeviceState:  state.DeviceState,
	}
	if sysState, err := g.client.ReadTcSystemState(ctx); err == nil {
		resp.SystemState = uint16(sysState.ADSState)
		resp.SystemStateName = sysState.ADSState.String()
	}
	return resp
}

// Control executes a PLC or TwinCAT system control command.
func (g *Gateway) Control(ctx context.Context, command string) *ControlResponse {
	var err error
	switch strings.ToLower(command) {
	case "start", "run":
		err = g.client.StartPlc(ctx)
	case "stop":
		err = g.client.StopPlc(ctx)
	case "reset":
		err = g.client.ResetPlc(ctx)
	case "restart":
		err = g.client.RestartPlc(ctx)
	case "system-run":
		err = g.client.SetTcSystemToRun(ctx)
	case "system-config":
		err = g.client.SetTcSystemToConfig(ctx)
	default:
		err = fmt.Errorf("unknown command %q (supported: start, stop, reset, restart, system-run, system-config)", command)
	}

	if err != nil {
		return &ControlResponse{Success: false, Command: command, Error: err.Error()}
	}
	return &ControlResponse{Success: true, Command: command}
}
