// Package transport owns the TCP connection to the ADS router: framing,
// invoke-ID correlation, AMS/TCP control commands and notification routing.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
)

// ConnectionState represents the state of the connection.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnecting
	StateClosed
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrRequestTimeout   = errors.New("request timeout")
)

// NotificationHandler receives DeviceNotification push frames.
type NotificationHandler func(*ams.Packet)

// RouterStateHandler receives router state notifications.
type RouterStateHandler func(ams.RouterState)

// LostHandler is invoked once when the connection fails outside a graceful
// close.
type LostHandler func(err error)

// Conn is one TCP connection to an ADS router. All reads happen on the
// readLoop goroutine; dispatching to waiters happens on the dispatchLoop
// goroutine so the receive path never blocks on user code.
type Conn struct {
	conn    net.Conn
	writeMu sync.Mutex
	state   atomic.Int32 // ConnectionState
	timeout time.Duration

	invokeID  atomic.Uint32
	pending   map[uint32]chan *ams.Packet
	pendingMu sync.Mutex

	// controlCh receives replies to the single in-flight AMS/TCP control
	// request (port connect).
	controlCh   chan *ams.Packet
	controlMu   sync.Mutex
	controlWait atomic.Bool

	localAddr   ams.Address
	localAddrMu sync.RWMutex

	notificationHandler NotificationHandler
	routerStateHandler  RouterStateHandler
	lostHandler         LostHandler
	handlerMu           sync.RWMutex

	frames chan *inboundFrame

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	closeOnce      sync.Once

	lastError error
	errorMu   sync.RWMutex

	// Logf, when set, receives diagnostic messages about dropped frames.
	Logf func(format string, args ...any)
}

type inboundFrame struct {
	packet *ams.Packet
	err    error
}

// Dial opens a TCP connection to the router. The timeout applies to the
// dial and to the register handshake; per-request deadlines are armed in
// SendRequest.
func Dial(ctx context.Context, address string, timeout time.Duration) (*Conn, error) {
	return DialLocal(ctx, address, "", timeout)
}

// DialLocal opens a TCP connection bound to a specific local address
// ("host:port"; either part may be empty for auto-selection).
func DialLocal(ctx context.Context, address, localAddress string, timeout time.Duration) (*Conn, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	if localAddress != "" {
		local, err := net.ResolveTCPAddr("tcp", localAddress)
		if err != nil {
			return nil, fmt.Errorf("transport: resolve local address %s: %w", localAddress, err)
		}
		dialer.LocalAddr = local
	}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}

	if tcpConn, ok := netConn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: failed to set nodelay: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	conn := &Conn{
		conn:           netConn,
		timeout:        timeout,
		pending:        make(map[uint32]chan *ams.Packet),
		controlCh:      make(chan *ams.Packet, 1),
		frames:         make(chan *inboundFrame, 64),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	conn.state.Store(int32(StateConnected))

	go conn.readLoop()
	go conn.dispatchLoop()

	return conn, nil
}

func (c *Conn) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// State returns the current connection state.
func (c *Conn) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Conn) setError(err error) {
	c.errorMu.Lock()
	if c.lastError == nil {
		c.lastError = err
	}
	c.errorMu.Unlock()
	c.state.Store(int32(StateError))
}

// Err returns the first error observed on the connection.
func (c *Conn) Err() error {
	c.errorMu.RLock()
	defer c.errorMu.RUnlock()
	return c.lastError
}

// NextInvokeID issues the next invoke ID from the monotonically increasing
// counter (wrapping at the uint32 ceiling).
func (c *Conn) NextInvokeID() uint32 {
	return c.invokeID.Add(1)
}

// LocalAddress returns the AMS address assigned by the port registration.
func (c *Conn) LocalAddress() ams.Address {
	c.localAddrMu.RLock()
	defer c.localAddrMu.RUnlock()
	return c.localAddr
}

// SetLocalAddress overrides the local address (manual configuration skips
// the register round-trip).
func (c *Conn) SetLocalAddress(addr ams.Address) {
	c.localAddrMu.Lock()
	c.localAddr = addr
	c.localAddrMu.Unlock()
}

// SetNotificationHandler sets the handler for DeviceNotification frames.
func (c *Conn) SetNotificationHandler(handler NotificationHandler) {
	c.handlerMu.Lock()
	c.notificationHandler = handler
	c.handlerMu.Unlock()
}

// SetRouterStateHandler sets the handler for router state notifications.
func (c *Conn) SetRouterStateHandler(handler RouterStateHandler) {
	c.handlerMu.Lock()
	c.routerStateHandler = handler
	c.handlerMu.Unlock()
}

// SetLostHandler sets the handler invoked when the connection fails.
func (c *Conn) SetLostHandler(handler LostHandler) {
	c.handlerMu.Lock()
	c.lostHandler = handler
	c.handlerMu.Unlock()
}

// RegisterPort registers an AMS port with the router and records the
// assigned local address. Port 0 requests a router-assigned port.
func (c *Conn) RegisterPort(ctx context.Context, requested ams.Port) (ams.Address, error) {
	c.controlMu.Lock()
	defer c.controlMu.Unlock()

	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(requested))
	packet := ams.NewControlPacket(ams.TCPCommandPortConnect, payload)

	c.controlWait.Store(true)
	defer c.controlWait.Store(false)

	if err := c.write(packet); err != nil {
		return ams.Address{}, fmt.Errorf("transport: register port: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-c.controlCh:
		if len(reply.Data) < 8 {
			return ams.Address{}, fmt.Errorf("transport: register port: short reply (%d bytes)", len(reply.Data))
		}
		var addr ams.Address
		copy(addr.NetID[:], reply.Data[0:6])
		addr.Port = ams.Port(binary.LittleEndian.Uint16(reply.Data[6:8]))
		c.SetLocalAddress(addr)
		return addr, nil
	case <-ctx.Done():
		return ams.Address{}, ctx.Err()
	case <-c.shutdownCtx.Done():
		return ams.Address{}, ErrConnectionClosed
	case <-timer.C:
		return ams.Address{}, fmt.Errorf("transport: register port: %w", ErrRequestTimeout)
	}
}

// UnregisterPort tells the router to release the registered port. Sent
// best-effort during shutdown; the router does not reply.
func (c *Conn) UnregisterPort() error {
	addr := c.LocalAddress()
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(addr.Port))
	return c.write(ams.NewControlPacket(ams.TCPCommandPortClose, payload))
}

// write sends one frame atomically.
func (c *Conn) write(packet *ams.Packet) error {
	if c.State() != StateConnected {
		if err := c.Err(); err != nil {
			return fmt.Errorf("transport: connection %s: %w", c.State(), err)
		}
		return ErrConnectionClosed
	}

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			c.fail(fmt.Errorf("set write deadline: %w", err))
			return err
		}
	}

	c.writeMu.Lock()
	err := ams.WritePacket(c.conn, packet)
	c.writeMu.Unlock()

	if err != nil {
		c.fail(fmt.Errorf("write failed: %w", err))
		return err
	}
	return nil
}

// SendRequest transmits an ADS request and blocks until its response
// arrives, the context is cancelled, or the per-request timeout elapses.
// Exactly one caller observes each response; the pending entry is removed
// before the caller resumes.
func (c *Conn) SendRequest(ctx context.Context, req *ams.Packet) (*ams.Packet, error) {
	invokeID := req.Header.InvokeID
	respCh := make(chan *ams.Packet, 1)

	c.pendingMu.Lock()
	if _, exists := c.pending[invokeID]; exists {
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("transport: invoke ID %d already in flight", invokeID)
	}
	c.pending[invokeID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, invokeID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		if resp == nil {
			if err := c.Err(); err != nil {
				return nil, fmt.Errorf("transport: connection lost: %w", err)
			}
			return nil, ErrConnectionClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.shutdownCtx.Done():
		return nil, ErrConnectionClosed
	case <-timer.C:
		return nil, ErrRequestTimeout
	}
}

// Close shuts the connection down gracefully. Pending requests observe
// ErrConnectionClosed. Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDisconnecting))
		c.shutdownCancel()

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()

		err = c.conn.Close()
		c.state.Store(int32(StateClosed))
	})
	return err
}

// fail records an error and notifies the lost handler unless the failure
// happened during a graceful close.
func (c *Conn) fail(err error) {
	if !c.state.CompareAndSwap(int32(StateConnected), int32(StateError)) {
		return
	}
	c.setError(err)

	c.handlerMu.RLock()
	handler := c.lostHandler
	c.handlerMu.RUnlock()
	if handler != nil {
		go handler(err)
	}
}

func (c *Conn) readLoop() {
	defer close(c.frames)

	for {
		select {
		case <-c.shutdownCtx.Done():
			return
		default:
		}

		packet, err := ams.ReadPacket(c.conn)
		if err != nil {
			select {
			case <-c.shutdownCtx.Done():
				// Graceful close tore down the socket under us.
			default:
				c.frames <- &inboundFrame{err: err}
			}
			return
		}

		c.frames <- &inboundFrame{packet: packet}
	}
}

func (c *Conn) dispatchLoop() {
	for frame := range c.frames {
		if frame.err != nil {
			c.fail(fmt.Errorf("read packet failed: %w", frame.err))

			// Unblock all waiters.
			c.pendingMu.Lock()
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.pendingMu.Unlock()
			return
		}

		packet := frame.packet
		if packet.IsControl() {
			c.dispatchControl(packet)
			continue
		}
		c.dispatchADS(packet)
	}
}

func (c *Conn) dispatchControl(packet *ams.Packet) {
	switch packet.TCPHeader.Command {
	case ams.TCPCommandPortConnect:
		if c.controlWait.Load() {
			select {
			case c.controlCh <- packet:
			default:
			}
		} else {
			c.logf("unexpected port connect reply dropped")
		}
	case ams.TCPCommandRouterNote:
		if len(packet.Data) < 4 {
			c.logf("short router notification dropped (%d bytes)", len(packet.Data))
			return
		}
		state := ams.RouterState(binary.LittleEndian.Uint32(packet.Data))

		c.handlerMu.RLock()
		handler := c.routerStateHandler
		c.handlerMu.RUnlock()
		if handler != nil {
			handler(state)
		}
	default:
		c.logf("unknown AMS/TCP control command 0x%04X dropped", packet.TCPHeader.Command)
	}
}

func (c *Conn) dispatchADS(packet *ams.Packet) {
	// Drop frames addressed to neither our registered NetID nor loopback.
	local := c.LocalAddress()
	target := packet.Header.TargetNetID
	if !local.NetID.IsZero() && target != local.NetID && target != ams.Loopback {
		c.logf("dropping frame for foreign NetID %s (ours %s)", target, local.NetID)
		return
	}

	// Server-push notification frames are requests, not responses.
	if packet.Header.CommandID == uint16(ads.CmdDeviceNotification) {
		c.handlerMu.RLock()
		handler := c.notificationHandler
		c.handlerMu.RUnlock()
		if handler != nil {
			handler(packet)
		}
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[packet.Header.InvokeID]
	if ok {
		delete(c.pending, packet.Header.InvokeID)
	}
	c.pendingMu.Unlock()

	if !ok {
		// Late response after timeout eviction, or a misrouted frame.
		c.logf("response with unknown invoke ID %d dropped (command %s)",
			packet.Header.InvokeID, ads.CommandID(packet.Header.CommandID))
		return
	}
	ch <- packet
}
