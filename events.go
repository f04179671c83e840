package adsclient

import (
	"sync"

	"github.com/plcbus/adsclient/internal/ams"
)

// ConnectionInfo is the payload of the connect event.
type ConnectionInfo struct {
	LocalAddress  string
	TargetAddress string
	DeviceInfo    *DeviceInfo
}

// eventHandlers stores the registered callbacks for every public event.
// Handlers for one event kind run sequentially on the goroutine that
// produced the event.
type eventHandlers struct {
	mu sync.RWMutex

	connect         []func(ConnectionInfo)
	disconnect      []func(isReconnecting bool)
	reconnect       []func(allRestored bool, failedTargets []string)
	connectionLost  []func(socketFailure bool)
	symbolVersion   []func(newVersion, previousVersion uint8)
	plcRuntimeState []func(newState, previousState DeviceState)
	tcSystemState   []func(newState, previousState DeviceState)
	routerState     []func(newState, previousState RouterState)
	warning         []func(message string)
	clientError     []func(err error)
}

// RouterState re-exports the router state for event payloads.
type RouterState = ams.RouterState

// OnConnect registers a callback fired after every successful connect,
// including reconnections.
func (c *Client) OnConnect(fn func(ConnectionInfo)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.connect = append(c.events.connect, fn)
}

// OnDisconnect registers a callback fired exactly once per successful
// connect when the connection ends. isReconnecting is true when an
// automatic reconnection follows.
func (c *Client) OnDisconnect(fn func(isReconnecting bool)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.disconnect = append(c.events.disconnect, fn)
}

// OnReconnect registers a callback fired after an automatic reconnection
// with the subscription restore outcome.
func (c *Client) OnReconnect(fn func(allRestored bool, failedTargets []string)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.reconnect = append(c.events.reconnect, fn)
}

// OnConnectionLost registers a callback fired when the connection is lost.
// socketFailure distinguishes socket-level failures from state-derived ones.
func (c *Client) OnConnectionLost(fn func(socketFailure bool)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.connectionLost = append(c.events.connectionLost, fn)
}

// OnSymbolVersionChange registers a callback fired when the PLC symbol
// version changes (PLC download).
func (c *Client) OnSymbolVersionChange(fn func(newVersion, previousVersion uint8)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.symbolVersion = append(c.events.symbolVersion, fn)
}

// OnPlcRuntimeStateChange registers a callback for PLC runtime state
// transitions.
func (c *Client) OnPlcRuntimeStateChange(fn func(newState, previousState DeviceState)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.plcRuntimeState = append(c.events.plcRuntimeState, fn)
}

// OnTcSystemStateChange registers a callback for TwinCAT system state
// transitions.
func (c *Client) OnTcSystemStateChange(fn func(newState, previousState DeviceState)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.tcSystemState = append(c.events.tcSystemState, fn)
}

// OnRouterStateChange registers a callback for router state transitions.
func (c *Client) OnRouterStateChange(fn func(newState, previousState RouterState)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.routerState = append(c.events.routerState, fn)
}

// OnWarning registers a callback for non-fatal warnings.
func (c *Client) OnWarning(fn func(message string)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.warning = append(c.events.warning, fn)
}

// OnClientError registers a callback for non-fatal background errors such
// as notification parse failures.
func (c *Client) OnClientError(fn func(err error)) {
	c.events.mu.Lock()
	defer c.events.mu.Unlock()
	c.events.clientError = append(c.events.clientError, fn)
}

func (c *Client) emitConnect(info ConnectionInfo) {
	c.events.mu.RLock()
	handlers := append([]func(ConnectionInfo){}, c.events.connect...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(info)
	}
}

func (c *Client) emitDisconnect(isReconnecting bool) {
	c.events.mu.RLock()
	handlers := append([]func(bool){}, c.events.disconnect...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(isReconnecting)
	}
}

func (c *Client) emitReconnect(allRestored bool, failedTargets []string) {
	c.events.mu.RLock()
	handlers := append([]func(bool, []string){}, c.events.reconnect...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(allRestored, failedTargets)
	}
}

func (c *Client) emitConnectionLost(socketFailure bool) {
	c.events.mu.RLock()
	handlers := append([]func(bool){}, c.events.connectionLost...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(socketFailure)
	}
}

func (c *Client) emitSymbolVersionChange(newVersion, previousVersion uint8) {
	c.events.mu.RLock()
	handlers := append([]func(uint8, uint8){}, c.events.symbolVersion...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(newVersion, previousVersion)
	}
}

func (c *Client) emitPlcRuntimeStateChange(newState, previousState DeviceState) {
	c.events.mu.RLock()
	handlers := append([]func(DeviceState, DeviceState){}, c.events.plcRuntimeState...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(newState, previousState)
	}
}

func (c *Client) emitTcSystemStateChange(newState, previousState DeviceState) {
	c.events.mu.RLock()
	handlers := append([]func(DeviceState, DeviceState){}, c.events.tcSystemState...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(newState, previousState)
	}
}

func (c *Client) emitRouterStateChange(newState, previousState RouterState) {
	c.events.mu.RLock()
	handlers := append([]func(RouterState, RouterState){}, c.events.routerState...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(newState, previousState)
	}
}

// warn logs a warning and fans it out to the warning handlers.
func (c *Client) warn(message string, args ...any) {
	c.logger.Warn(message, args...)

	c.events.mu.RLock()
	handlers := append([]func(string){}, c.events.warning...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(message)
	}
}

// clientError reports a non-fatal background error.
func (c *Client) clientError(err error) {
	c.logger.Error("background error", "error", err)

	c.events.mu.RLock()
	handlers := append([]func(error){}, c.events.clientError...)
	c.events.mu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}
