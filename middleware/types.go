package middleware

import "time"

// ValueResponse represents a single variable read response.
type ValueResponse struct {
	Success bool   `json:"success"`
	Symbol  string `json:"symbol"`
	Value   any    `json:"value"`
	Type    string `json:"type,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchReadRequest represents a request to read multiple variables.
type BatchReadRequest struct {
	Symbols []string `json:"symbols" example:"GVL.Temperature,GVL.Counter"`
}

// BatchReadResponse represents a batch read response. Reads are issued as
// one ADS sum command; per-variable failures land in Errors.
type BatchReadResponse struct {
	Success bool              `json:"success"`
	Data    map[string]any    `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// WriteValueRequest represents a single variable write request. When
// AutoFill is set, structure values may be partial and are merged over the
// current PLC state.
type WriteValueRequest struct {
	Value    any  `json:"value" example:"25.5"`
	AutoFill bool `json:"auto_fill,omitempty"`
}

// WriteValueResponse represents a single variable write response.
type WriteValueResponse struct {
	Success bool   `json:"success"`
	Symbol  string `json:"symbol"`
	Error   string `json:"error,omitempty"`
}

// BatchWriteRequest represents a request to write multiple variables.
type BatchWriteRequest struct {
	Writes   map[string]any `json:"writes"`
	AutoFill bool           `json:"auto_fill,omitempty"`
}

// BatchWriteResponse represents a batch write response.
type BatchWriteResponse struct {
	Success bool              `json:"success"`
	Results map[string]bool   `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// SymbolInfo represents metadata about one PLC variable.
type SymbolInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        uint32 `json:"size"`
	IndexGroup  uint32 `json:"index_group"`
	IndexOffset uint32 `json:"index_offset"`
	Comment     string `json:"comment,omitempty"`
}

// SymbolTableResponse represents the symbol table response.
type SymbolTableResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Symbols []SymbolInfo `json:"symbols"`
	Error   string       `json:"error,omitempty"`
}

// SubscribeMessage is the client-to-server WebSocket request.
type SubscribeMessage struct {
	Type        string `json:"type"` // "subscribe", "unsubscribe"
	RequestID   string `json:"request_id,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	CycleTimeMs int    `json:"cycle_time_ms,omitempty"`
	Cyclic      bool   `json:"cyclic,omitempty"`
}

// UpdateMessage is the server-to-client WebSocket sample or error frame.
type UpdateMessage struct {
	Type      string    `json:"type"` // "data", "subscribed", "unsubscribed", "error"
	RequestID string    `json:"request_id,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Value     any       `json:"value,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Connected bool      `json:"connected"`
	Timestamp time.Time `json:"timestamp"`
}

// InfoResponse represents gateway and connection information.
type InfoResponse struct {
	TargetNetID   string `json:"target_net_id"`
	TargetPort    uint16 `json:"target_port"`
	RouterAddress string `json:"router_address"`
	Connected     bool   `json:"connected"`
	DeviceName    string `json:"device_name,omitempty"`
	SymbolVersion uint8  `json:"symbol_version"`
	ServerUptime  string `json:"server_uptime"`
}

// StateResponse represents PLC and TwinCAT system state information.
type StateResponse struct {
	Success         bool   `json:"success"`
	ADSState        uint16 `json:"ads_state"`
	ADSStateName    string `json:"ads_state_name"`
	DeviceState     uint16 `json:"device_state"`
	SystemState     uint16 `json:"system_state,omitempty"`
	SystemStateName string `json:"system_state_name,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ControlRequest represents a PLC control operation request.
type ControlRequest struct {
	Command string `json:"command"` // start, stop, reset, restart, system-run, system-config
}

// ControlResponse represents the result of a control operation.
type ControlResponse struct {
	Success bool   `json:"success"`
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
