package adsclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
	"github.com/plcbus/adsclient/internal/marshal"
	"github.com/plcbus/adsclient/internal/symbols"
	"github.com/plcbus/adsclient/internal/transport"
)

// DeviceInfo describes an ADS device as returned by ReadDeviceInfo.
type DeviceInfo struct {
	Name         string
	MajorVersion uint8
	MinorVersion uint8
	VersionBuild uint16
}

func (d *DeviceInfo) String() string {
	if d == nil {
		return "unknown"
	}
	return fmt.Sprintf("%s v%d.%d.%d", d.Name, d.MajorVersion, d.MinorVersion, d.VersionBuild)
}

// DeviceState is the ADS and device state pair returned by ReadState.
type DeviceState struct {
	ADSState    AdsState
	DeviceState uint16
}

// ConnectionMetadata mirrors what the client currently knows about the
// target: router and system states, device info, symbol version and the
// upload info of the symbol/type tables.
type ConnectionMetadata struct {
	RouterState     RouterState
	TcSystemState   *DeviceState
	PlcRuntimeState *DeviceState
	DeviceInfo      *DeviceInfo
	SymbolVersion   uint8
	UploadInfo      *UploadInfo
}

// Client is an ADS client connection to one router. Create it with New,
// open it with Connect. All exported methods are safe for concurrent use.
type Client struct {
	settings Settings
	logger   Logger
	metrics  Metrics

	target ams.Address

	connMu sync.RWMutex
	conn   *transport.Conn

	connected atomic.Bool

	table  *symbols.Table
	codec  *marshal.Codec
	parser *symbols.Parser

	meta   ConnectionMetadata
	metaMu sync.RWMutex

	subs   map[subscriptionKey]*Subscription
	subsMu sync.RWMutex

	// subBackups holds descriptors of non-internal subscriptions across a
	// reconnect or symbol-version change.
	subBackups []subscriptionBackup

	// warnedUnknown tracks stale handles already warned about so the
	// drop-and-log policy logs once per handle.
	warnedUnknown map[subscriptionKey]struct{}

	events eventHandlers

	// Reconnect bookkeeping: only one reconnect timer may run; stale timers
	// detect replacement through the incrementing ID.
	reconnectMu      sync.Mutex
	reconnectTimerID uint64
	reconnectActive  bool

	pollerCancel context.CancelFunc
	pollerDone   chan struct{}

	// halfOpen records that the last connect tolerated a target out of Run.
	halfOpen atomic.Bool
}

// New creates a client with the given options. The connection is not opened
// until Connect.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{settings: defaultSettings()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	s := cfg.settings
	if s.TargetNetID == "" {
		return nil, fmt.Errorf("adsclient: target AMS NetID is required")
	}
	if s.TargetPort == 0 {
		return nil, fmt.Errorf("adsclient: target ADS port is required")
	}
	targetNetID, err := ams.ParseNetID(s.TargetNetID)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		if s.HideConsoleWarnings {
			logger = DefaultLogger
		} else {
			logger = newConsoleWarnLogger()
		}
	}
	metrics := cfg.metrics
	if metrics == nil {
		metrics = DefaultMetrics
	}

	c := &Client{
		settings: s,
		logger:   logger,
		metrics:  metrics,
		target:   ams.Address{NetID: targetNetID, Port: ams.Port(s.TargetPort)},
		table:    symbols.NewTable(),
		codec: &marshal.Codec{Options: marshal.Options{
			ObjectifyEnumerations: s.ObjectifyEnumerations,
			ConvertDates:          s.ConvertDatesToGo,
			Encoding:              s.StringEncoding,
		}},
		subs: make(map[subscriptionKey]*Subscription),
	}
	c.parser = &symbols.Parser{Warn: func(format string, args ...any) {
		c.warn(fmt.Sprintf(format, args...))
	}}

	return c, nil
}

// Settings returns a copy of the active settings.
func (c *Client) Settings() Settings {
	return c.settings
}

// Target returns the configured target address as "netid:port".
func (c *Client) Target() string {
	return c.target.String()
}

// IsConnected reports whether the client currently holds a registered,
// usable connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Metadata returns a snapshot of the connection metadata.
func (c *Client) Metadata() ConnectionMetadata {
	c.metaMu.RLock()
	defer c.metaMu.RUnlock()
	return c.meta
}

// Connect dials the router, registers an AMS port and, unless the client is
// configured as a raw client, performs the PLC startup sequence: system
// state check, internal state subscriptions, device info and metadata reads
// and optional symbol/type pre-caching.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return fmt.Errorf("adsclient: already connected")
	}
	return c.connect(ctx, false)
}

func (c *Client) connect(ctx context.Context, isReconnect bool) error {
	c.metrics.ConnectionAttempts()

	address := fmt.Sprintf("%s:%d", c.settings.RouterAddress, c.settings.RouterTCPPort)
	localTCP := ""
	if c.settings.LocalTCPAddress != "" || c.settings.LocalTCPPort != 0 {
		localTCP = fmt.Sprintf("%s:%d", c.settings.LocalTCPAddress, c.settings.LocalTCPPort)
	}
	conn, err := transport.DialLocal(ctx, address, localTCP, c.settings.TimeoutDelay)
	if err != nil {
		c.metrics.ConnectionFailures()
		return transportError("connect", err)
	}
	conn.Logf = func(format string, args ...any) {
		c.logger.Debug(fmt.Sprintf(format, args...))
	}
	conn.SetNotificationHandler(c.handleNotificationFrame)
	conn.SetRouterStateHandler(c.handleRouterState)
	conn.SetLostHandler(func(err error) {
		c.logger.Debug("socket failure", "error", err)
		c.onConnectionLost(true)
	})

	// Register the AMS port, or synthesise the response when the local
	// address was configured manually.
	if c.settings.LocalNetID != "" && c.settings.LocalPort != 0 {
		localNetID, err := ams.ParseNetID(c.settings.LocalNetID)
		if err != nil {
			conn.Close()
			c.metrics.ConnectionFailures()
			return err
		}
		conn.SetLocalAddress(ams.Address{NetID: localNetID, Port: ams.Port(c.settings.LocalPort)})
	} else {
		if _, err := conn.RegisterPort(ctx, ams.Port(c.settings.LocalPort)); err != nil {
			conn.Close()
			c.metrics.ConnectionFailures()
			return transportError("register port", err)
		}
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	if !c.settings.RawClient {
		if err := c.setupPlcConnection(ctx); err != nil {
			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			conn.Close()
			c.metrics.ConnectionFailures()
			return err
		}
	}

	c.connected.Store(true)
	c.metrics.ConnectionSuccesses()
	c.metrics.ConnectionActive(true)

	if !c.settings.RawClient {
		c.startStatePoller()
	}

	c.metaMu.RLock()
	info := c.meta.DeviceInfo
	c.metaMu.RUnlock()
	c.emitConnect(ConnectionInfo{
		LocalAddress:  conn.LocalAddress().String(),
		TargetAddress: c.target.String(),
		DeviceInfo:    info,
	})
	c.logger.Info("connected", "local", conn.LocalAddress().String(), "target", c.target.String())
	return nil
}

// setupPlcConnection runs the PLC-specific part of the connect sequence.
func (c *Client) setupPlcConnection(ctx context.Context) error {
	sysState, err := c.ReadTcSystemState(ctx)
	if err != nil {
		return fmt.Errorf("adsclient: reading TwinCAT system state failed: %w", err)
	}
	c.metaMu.Lock()
	c.meta.TcSystemState = sysState
	c.metaMu.Unlock()

	if sysState.ADSState != AdsStateRun {
		if !c.settings.AllowHalfOpen {
			return fmt.Errorf("adsclient: TwinCAT system is in %s, not Run (set AllowHalfOpen to tolerate)", sysState.ADSState)
		}
		c.halfOpen.Store(true)
		c.warn(fmt.Sprintf("TwinCAT system is in %s; continuing half-open without runtime services", sysState.ADSState))
		return nil
	}
	c.halfOpen.Store(false)

	info, err := c.ReadDeviceInfo(ctx)
	if err != nil {
		return fmt.Errorf("adsclient: reading device info failed: %w", err)
	}
	runtimeState, err := c.ReadState(ctx)
	if err != nil {
		return fmt.Errorf("adsclient: reading PLC runtime state failed: %w", err)
	}
	uploadInfo, err := c.ReadUploadInfo(ctx)
	if err != nil {
		return fmt.Errorf("adsclient: reading upload info failed: %w", err)
	}
	symbolVersion, err := c.ReadSymbolVersion(ctx)
	if err != nil {
		return fmt.Errorf("adsclient: reading symbol version failed: %w", err)
	}

	c.metaMu.Lock()
	c.meta.DeviceInfo = info
	c.meta.PlcRuntimeState = runtimeState
	c.meta.UploadInfo = uploadInfo
	c.meta.SymbolVersion = symbolVersion
	c.metaMu.Unlock()

	// Internal subscription on the runtime state block.
	if _, err := c.subscribeInternal(ctx, ads.IndexGroupDeviceData, 0, 4, c.handleRuntimeStateNotification); err != nil {
		return fmt.Errorf("adsclient: subscribing to runtime state failed: %w", err)
	}

	// Internal subscription on the symbol version byte (PLC download
	// detection).
	if c.settings.MonitorSymbolVersion {
		if _, err := c.subscribeInternal(ctx, ads.IndexGroupSymbolVersion, 0, 1, c.handleSymbolVersionNotification); err != nil {
			return fmt.Errorf("adsclient: subscribing to symbol version failed: %w", err)
		}
	}

	if c.settings.ReadAndCacheSymbols {
		if _, err := c.GetSymbols(ctx); err != nil {
			return fmt.Errorf("adsclient: pre-caching symbols failed: %w", err)
		}
	}
	if c.settings.ReadAndCacheDataTypes {
		if _, err := c.GetDataTypes(ctx); err != nil {
			return fmt.Errorf("adsclient: pre-caching data types failed: %w", err)
		}
	}
	return nil
}

// Disconnect closes the connection gracefully: all subscriptions owned by
// this client are deleted on the target, the AMS port is released and the
// socket closed. On timeout or socket error the connection is force-closed.
func (c *Client) Disconnect(ctx context.Context) error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}

	c.stopStatePoller()
	c.cancelReconnect()

	var firstErr error
	if err := c.unsubscribeAllLocked(ctx); err != nil {
		firstErr = err
		c.warn(fmt.Sprintf("unsubscribing during disconnect failed: %v", err))
	}

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		if err := conn.UnregisterPort(); err != nil {
			c.logger.Debug("port unregister failed", "error", err)
		}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	c.metrics.ConnectionActive(false)
	c.emitDisconnect(false)
	c.logger.Info("disconnected")
	return firstErr
}

// ForceDisconnect closes the socket without deleting subscriptions or
// releasing the AMS port. The PLC keeps the orphaned notification handles
// until it cleans them up itself; prefer Disconnect.
func (c *Client) ForceDisconnect() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	c.warn("force disconnect: subscriptions are not deleted on the target and leak PLC-side resources")

	c.stopStatePoller()
	c.cancelReconnect()
	c.clearSubscriptions()

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.metrics.ConnectionActive(false)
	c.emitDisconnect(false)
	return err
}

// activeConn returns the live transport or a state error.
func (c *Client) activeConn() (*transport.Conn, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// sendCommand transmits one ADS command to the given target and surfaces
// AMS-level errors.
func (c *Client) sendCommand(ctx context.Context, target ams.Address, cmd ads.CommandID, data []byte, op string) (*ams.Packet, error) {
	conn, err := c.activeConn()
	if err != nil {
		return nil, stateError(op)
	}

	start := time.Now()
	packet := ams.NewRequestPacket(target, conn.LocalAddress(), uint16(cmd), conn.NextInvokeID(), data)

	resp, err := conn.SendRequest(ctx, packet)
	c.metrics.OperationCompleted(op, time.Since(start), err)
	if err != nil {
		return nil, transportError(op, err)
	}
	c.metrics.BytesSent(int64(len(data)))
	c.metrics.BytesReceived(int64(len(resp.Data)))

	if resp.Header.ErrorCode != 0 {
		return nil, amsError(op, ads.Error(resp.Header.ErrorCode))
	}
	return resp, nil
}

// withDefaultTimeout applies the configured TimeoutDelay when the caller's
// context has no earlier deadline.
func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= c.settings.TimeoutDelay {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.settings.TimeoutDelay)
}

// --- connection supervision ---------------------------------------------

func (c *Client) startStatePoller() {
	ctx, cancel := context.WithCancel(context.Background())
	c.pollerCancel = cancel
	done := make(chan struct{})
	c.pollerDone = done
	go c.statePoller(ctx, done)
}

func (c *Client) stopStatePoller() {
	if c.pollerCancel != nil {
		c.pollerCancel()
		c.pollerCancel = nil
	}
	if c.pollerDone != nil {
		<-c.pollerDone
		c.pollerDone = nil
	}
}

// statePoller reads the TwinCAT system state on a fixed cadence, emits
// transition events and decides when a non-Run target counts as a lost
// connection.
func (c *Client) statePoller(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.settings.ConnectionCheckInterval)
	defer ticker.Stop()

	var downSince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		opCtx, cancel := context.WithTimeout(ctx, c.settings.TimeoutDelay)
		state, err := c.ReadTcSystemState(opCtx)
		cancel()
		if err != nil {
			// Socket failures surface through the transport's lost handler;
			// a single failed poll is not itself a verdict.
			c.logger.Debug("system state poll failed", "error", err)
			continue
		}

		c.metaMu.Lock()
		prev := c.meta.TcSystemState
		changed := prev == nil || prev.ADSState != state.ADSState
		c.meta.TcSystemState = state
		c.metaMu.Unlock()

		if changed {
			var prevState DeviceState
			if prev != nil {
				prevState = *prev
			}
			c.emitTcSystemStateChange(*state, prevState)
		}

		if state.ADSState != AdsStateRun {
			if downSince.IsZero() {
				downSince = time.Now()
			} else if time.Since(downSince) >= c.settings.ConnectionDownDelay {
				c.warn(fmt.Sprintf("TwinCAT system stayed in %s longer than %s, treating connection as lost",
					state.ADSState, c.settings.ConnectionDownDelay))
				go c.onConnectionLost(false)
				return
			}
			continue
		}
		downSince = time.Time{}

		// Half-open connect, target is back in Run: rebuild the runtime
		// services through a reconnect unless one is already scheduled.
		if c.halfOpen.Load() && changed && !c.reconnectPending() {
			c.logger.Info("target entered Run, re-establishing runtime services")
			go c.onConnectionLost(false)
			return
		}
	}
}

func (c *Client) handleRouterState(state ams.RouterState) {
	c.metaMu.Lock()
	prev := c.meta.RouterState
	c.meta.RouterState = state
	c.metaMu.Unlock()

	c.logger.Info("router state changed", "from", prev.String(), "to", state.String())
	c.emitRouterStateChange(state, prev)

	// A router transitioning to Start dropped all registered ports.
	if state == ams.RouterStateStart && c.IsConnected() {
		go c.onConnectionLost(false)
	}
}

// onConnectionLost runs the lost-connection path exactly once per
// connection: back up subscriptions, drop the socket, and schedule
// reconnection when enabled.
func (c *Client) onConnectionLost(socketFailure bool) {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}

	c.stopStatePoller()
	c.backupSubscriptions()
	c.clearSubscriptions()

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}

	c.metrics.ConnectionActive(false)
	c.logger.Warn("connection lost", "socketFailure", socketFailure)
	c.emitConnectionLost(socketFailure)
	c.emitDisconnect(c.settings.AutoReconnect)

	if c.settings.AutoReconnect {
		c.scheduleReconnect()
	}
}

// scheduleReconnect starts the single reconnect timer. A newer timer
// invalidates older ones through the incrementing ID.
func (c *Client) scheduleReconnect() {
	c.reconnectMu.Lock()
	c.reconnectTimerID++
	id := c.reconnectTimerID
	c.reconnectActive = true
	c.reconnectMu.Unlock()

	go func() {
		ticker := time.NewTicker(c.settings.ReconnectInterval)
		defer ticker.Stop()

		for range ticker.C {
			c.reconnectMu.Lock()
			stale := id != c.reconnectTimerID || !c.reconnectActive
			c.reconnectMu.Unlock()
			if stale {
				return
			}

			if err := c.tryReconnect(); err != nil {
				c.logger.Debug("reconnect attempt failed", "error", err)
				continue
			}
			return
		}
	}()
}

func (c *Client) cancelReconnect() {
	c.reconnectMu.Lock()
	c.reconnectTimerID++
	c.reconnectActive = false
	c.reconnectMu.Unlock()
}

func (c *Client) reconnectPending() bool {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	return c.reconnectActive
}

// tryReconnect re-runs the connect sequence and restores the backed-up
// subscriptions.
func (c *Client) tryReconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.settings.TimeoutDelay)
	defer cancel()

	if err := c.connect(ctx, true); err != nil {
		return err
	}

	c.reconnectMu.Lock()
	c.reconnectActive = false
	c.reconnectMu.Unlock()

	c.metrics.Reconnections()

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), c.settings.TimeoutDelay)
	defer cancelRestore()
	failed := c.restoreSubscriptions(restoreCtx)

	c.emitReconnect(len(failed) == 0, failed)
	c.logger.Info("reconnected", "restoredAll", len(failed) == 0, "failed", failed)
	return nil
}

// --- internal notification targets --------------------------------------

// handleRuntimeStateNotification tracks the 4-byte DeviceData block.
func (c *Client) handleRuntimeStateNotification(data []byte, _ time.Time) {
	if len(data) < 4 {
		c.clientError(protocolError("runtime state notification", fmt.Errorf("short payload (%d bytes)", len(data))))
		return
	}
	state := &DeviceState{
		ADSState:    AdsState(uint16(data[0]) | uint16(data[1])<<8),
		DeviceState: uint16(data[2]) | uint16(data[3])<<8,
	}

	c.metaMu.Lock()
	prev := c.meta.PlcRuntimeState
	changed := prev == nil || prev.ADSState != state.ADSState || prev.DeviceState != state.DeviceState
	c.meta.PlcRuntimeState = state
	c.metaMu.Unlock()

	if changed {
		var prevState DeviceState
		if prev != nil {
			prevState = *prev
		}
		c.logger.Debug("PLC runtime state changed", "from", prevState.ADSState.String(), "to", state.ADSState.String())
		c.emitPlcRuntimeStateChange(*state, prevState)
	}
}

// handleSymbolVersionNotification reacts to PLC downloads: caches are
// cleared before any dependent subscription restore is attempted, and the
// reconnect event is not emitted on this path.
func (c *Client) handleSymbolVersionNotification(data []byte, _ time.Time) {
	if len(data) < 1 {
		return
	}
	newVersion := data[0]

	c.metaMu.Lock()
	prev := c.meta.SymbolVersion
	if newVersion == prev {
		c.metaMu.Unlock()
		return
	}
	c.meta.SymbolVersion = newVersion
	c.metaMu.Unlock()

	c.logger.Info("PLC symbol version changed", "from", prev, "to", newVersion)
	c.emitSymbolVersionChange(newVersion, prev)

	// Caches are cleared before any dependent restore runs.
	c.table.Clear()
	c.metaMu.Lock()
	c.meta.UploadInfo = nil
	c.metaMu.Unlock()

	// The rebuild performs ADS round-trips; it must leave the dispatch
	// goroutine this handler runs on, or the responses could never be
	// delivered.
	go c.refreshAfterSymbolVersionChange()
}

func (c *Client) refreshAfterSymbolVersionChange() {
	ctx, cancel := context.WithTimeout(context.Background(), 4*c.settings.TimeoutDelay)
	defer cancel()

	if info, err := c.ReadUploadInfo(ctx); err == nil {
		c.metaMu.Lock()
		c.meta.UploadInfo = info
		c.metaMu.Unlock()
	} else {
		c.clientError(fmt.Errorf("adsclient: refreshing upload info after download: %w", err))
	}

	if c.settings.ReadAndCacheSymbols {
		if _, err := c.GetSymbols(ctx); err != nil {
			c.clientError(fmt.Errorf("adsclient: re-caching symbols after download: %w", err))
		}
	}
	if c.settings.ReadAndCacheDataTypes {
		if _, err := c.GetDataTypes(ctx); err != nil {
			c.clientError(fmt.Errorf("adsclient: re-caching data types after download: %w", err))
		}
	}

	// Re-resolve every user subscription against the new symbol table. The
	// reconnect event is not emitted on this path.
	c.backupUserSubscriptions(ctx, true)
	failed := c.restoreSubscriptions(ctx)
	if len(failed) > 0 {
		c.warn(fmt.Sprintf("restoring subscriptions after PLC download failed for: %v", failed))
	}
}
