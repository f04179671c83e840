package adsclient

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
)

// testRouter emulates the AMS router and a minimal PLC target: it registers
// ports and answers the ADS commands the connect sequence and the tests
// exercise.
type testRouter struct {
	t        *testing.T
	listener net.Listener

	mu           sync.Mutex
	conn         net.Conn
	nextHandle   uint32
	deleted      []uint32
	assignedAddr ams.Address
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	tr := &testRouter{
		t:            t,
		listener:     listener,
		nextHandle:   100,
		assignedAddr: ams.Address{NetID: ams.NetID{192, 168, 5, 20, 1, 1}, Port: 32905},
	}
	t.Cleanup(func() { tr.Close() })

	go tr.serve()
	return tr
}

func (tr *testRouter) Close() {
	tr.listener.Close()
	tr.mu.Lock()
	if tr.conn != nil {
		tr.conn.Close()
	}
	tr.mu.Unlock()
}

func (tr *testRouter) hostPort() (string, uint16) {
	addr := tr.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", uint16(addr.Port)
}

func (tr *testRouter) deletedHandles() []uint32 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]uint32{}, tr.deleted...)
}

func (tr *testRouter) serve() {
	conn, err := tr.listener.Accept()
	if err != nil {
		return
	}
	tr.mu.Lock()
	tr.conn = conn
	tr.mu.Unlock()

	for {
		packet, err := ams.ReadPacket(conn)
		if err != nil {
			return
		}

		if packet.IsControl() {
			if packet.TCPHeader.Command == ams.TCPCommandPortConnect {
				payload := make([]byte, 8)
				copy(payload[0:6], tr.assignedAddr.NetID[:])
				binary.LittleEndian.PutUint16(payload[6:8], uint16(tr.assignedAddr.Port))
				tr.send(ams.NewControlPacket(ams.TCPCommandPortConnect, payload))
			}
			continue
		}

		tr.respond(packet, tr.handle(packet))
	}
}

// handle builds the ADS response payload for one request.
func (tr *testRouter) handle(req *ams.Packet) []byte {
	le := binary.LittleEndian

	switch ads.CommandID(req.Header.CommandID) {
	case ads.CmdReadState:
		resp := make([]byte, 8)
		le.PutUint16(resp[4:6], uint16(ads.StateRun))
		return resp

	case ads.CmdReadDeviceInfo:
		resp := make([]byte, 24)
		resp[4] = 3
		resp[5] = 1
		le.PutUint16(resp[6:8], 4024)
		copy(resp[8:], "Plc30 App")
		return resp

	case ads.CmdRead:
		group := le.Uint32(req.Data[0:4])
		length := le.Uint32(req.Data[8:12])
		switch group {
		case ads.IndexGroupSymbolUploadInfo2:
			resp := make([]byte, 8+24)
			le.PutUint32(resp[4:8], 24)
			le.PutUint32(resp[8:12], 10)     // symbol count
			le.PutUint32(resp[12:16], 1400)  // symbol length
			le.PutUint32(resp[16:20], 5)     // data type count
			le.PutUint32(resp[20:24], 5200)  // data type length
			return resp
		case ads.IndexGroupSymbolVersion:
			resp := make([]byte, 8+1)
			le.PutUint32(resp[4:8], 1)
			resp[8] = 7
			return resp
		default:
			resp := make([]byte, 8+length)
			le.PutUint32(resp[4:8], length)
			for i := range resp[8:] {
				resp[8+i] = byte(i + 1)
			}
			return resp
		}

	case ads.CmdWrite:
		return make([]byte, 4)

	case ads.CmdWriteControl:
		return make([]byte, 4)

	case ads.CmdAddDeviceNotification:
		tr.mu.Lock()
		tr.nextHandle++
		handle := tr.nextHandle
		tr.mu.Unlock()
		resp := make([]byte, 8)
		le.PutUint32(resp[4:8], handle)
		return resp

	case ads.CmdDelDeviceNotification:
		handle := le.Uint32(req.Data[0:4])
		tr.mu.Lock()
		tr.deleted = append(tr.deleted, handle)
		tr.mu.Unlock()
		return make([]byte, 4)

	case ads.CmdReadWrite:
		// Unknown by-name lookups report "symbol not found".
		resp := make([]byte, 8)
		le.PutUint32(resp[0:4], uint32(ads.ErrDeviceSymbolNotFound))
		return resp

	default:
		resp := make([]byte, 4)
		le.PutUint32(resp, uint32(ads.ErrDeviceSrvNotSupported))
		return resp
	}
}

func (tr *testRouter) respond(req *ams.Packet, data []byte) {
	resp := &ams.Packet{
		TCPHeader: ams.TCPHeader{Command: ams.TCPCommandADS, Length: ams.HeaderSize + uint32(len(data))},
		Header: ams.Header{
			TargetNetID: req.Header.SourceNetID,
			TargetPort:  req.Header.SourcePort,
			SourceNetID: req.Header.TargetNetID,
			SourcePort:  req.Header.TargetPort,
			CommandID:   req.Header.CommandID,
			StateFlags:  ams.StateFlagsTCPResponse,
			DataLength:  uint32(len(data)),
			InvokeID:    req.Header.InvokeID,
		},
		Data: data,
	}
	tr.send(resp)
}

func (tr *testRouter) send(packet *ams.Packet) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.conn == nil {
		return
	}
	if err := ams.WritePacket(tr.conn, packet); err != nil {
		tr.t.Logf("test router write: %v", err)
	}
}

// pushNotification pushes one sample for one handle, addressed from the
// given source to the client's registered address.
func (tr *testRouter) pushNotification(source ams.Address, handle uint32, sample []byte) {
	data := make([]byte, 8+12+8+len(sample))
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(data[4:8], 1)
	binary.LittleEndian.PutUint64(data[8:16], ads.TimeToFiletime(time.Now()))
	binary.LittleEndian.PutUint32(data[16:20], 1)
	binary.LittleEndian.PutUint32(data[20:24], handle)
	binary.LittleEndian.PutUint32(data[24:28], uint32(len(sample)))
	copy(data[28:], sample)

	packet := &ams.Packet{
		TCPHeader: ams.TCPHeader{Command: ams.TCPCommandADS, Length: ams.HeaderSize + uint32(len(data))},
		Header: ams.Header{
			TargetNetID: tr.assignedAddr.NetID,
			TargetPort:  tr.assignedAddr.Port,
			SourceNetID: source.NetID,
			SourcePort:  source.Port,
			CommandID:   uint16(ads.CmdDeviceNotification),
			StateFlags:  ams.StateFlagsTCPRequest,
			DataLength:  uint32(len(data)),
		},
		Data: data,
	}
	tr.send(packet)
}

func newTestClient(t *testing.T, tr *testRouter, opts ...Option) *Client {
	t.Helper()
	host, port := tr.hostPort()

	base := []Option{
		WithTarget("127.0.0.1.1.1", 851),
		WithRouterAddress(host),
		WithRouterTCPPort(port),
		WithTimeout(500 * time.Millisecond),
		WithAutoReconnect(false),
		WithConnectionCheckInterval(time.Hour),
		WithHiddenConsoleWarnings(true),
	}
	client, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func TestConnectDisconnect(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	ctx := context.Background()
	var connected, disconnected bool
	client.OnConnect(func(info ConnectionInfo) {
		connected = true
		if info.DeviceInfo == nil || info.DeviceInfo.Name != "Plc30 App" {
			t.Errorf("connect event device info = %+v", info.DeviceInfo)
		}
	})
	client.OnDisconnect(func(isReconnecting bool) {
		disconnected = true
		if isReconnecting {
			t.Error("graceful disconnect must not report reconnecting")
		}
	})

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("client should report connected")
	}
	if !connected {
		t.Error("connect event not emitted")
	}

	meta := client.Metadata()
	if meta.DeviceInfo == nil || meta.DeviceInfo.Name != "Plc30 App" {
		t.Errorf("device info = %+v", meta.DeviceInfo)
	}
	if meta.SymbolVersion != 7 {
		t.Errorf("symbol version = %d", meta.SymbolVersion)
	}
	if meta.UploadInfo == nil || meta.UploadInfo.SymbolCount != 10 {
		t.Errorf("upload info = %+v", meta.UploadInfo)
	}
	if meta.TcSystemState == nil || meta.TcSystemState.ADSState != AdsStateRun {
		t.Errorf("system state = %+v", meta.TcSystemState)
	}

	if err := client.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if client.IsConnected() {
		t.Error("client should report disconnected")
	}
	if !disconnected {
		t.Error("disconnect event not emitted")
	}

	// The two internal subscriptions (runtime state, symbol version) were
	// deleted on the target during the graceful disconnect.
	if got := len(tr.deletedHandles()); got != 2 {
		t.Errorf("deleted handles = %d, want 2", got)
	}
}

func TestReadRaw(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	data, err := client.ReadRaw(ctx, 0x4020, 0x10, 2)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if len(data) != 2 || data[0] != 1 || data[1] != 2 {
		t.Errorf("data = % X", data)
	}
}

func TestOperationsWhileDisconnected(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	_, err := client.ReadRaw(context.Background(), 0x4020, 0, 2)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}

	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindState {
		t.Errorf("expected state-kind client error, got %v", err)
	}
}

func TestSymbolNotFoundSurfaced(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	_, err := client.GetSymbol(ctx, "GVL.DoesNotExist")
	if err == nil {
		t.Fatal("expected symbol lookup to fail")
	}
	if !IsSymbolNotFound(err) {
		t.Errorf("expected symbol-not-found, got %v", err)
	}
}

func TestSubscribeRawDelivery(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	samples := make(chan []byte, 4)
	sub, err := client.SubscribeRaw(ctx, 0x4020, 0, 2,
		func(data *SubscriptionData, _ *Subscription) {
			samples <- data.Raw
		}, SubscriptionSettings{CycleTime: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	target := ams.Address{NetID: ams.NetID{127, 0, 0, 1, 1, 1}, Port: 851}
	tr.pushNotification(target, sub.Handle(), []byte{0xFF, 0x7F})

	select {
	case raw := <-samples:
		if len(raw) != 2 || raw[0] != 0xFF || raw[1] != 0x7F {
			t.Errorf("sample = % X", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("sample not delivered")
	}

	if err := sub.Unsubscribe(ctx); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	// After unsubscribing no further callbacks arrive for the handle.
	tr.pushNotification(target, sub.Handle(), []byte{0x01, 0x00})
	select {
	case <-samples:
		t.Error("callback invoked after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnknownNotificationDeleted(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	before := len(tr.deletedHandles())

	// A notification for a handle nobody owns, from the configured target:
	// the default policy reclaims it.
	target := ams.Address{NetID: ams.NetID{127, 0, 0, 1, 1, 1}, Port: 851}
	tr.pushNotification(target, 9999, []byte{0x01})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, h := range tr.deletedHandles()[before:] {
			if h == 9999 {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("stale handle was not deleted on the target")
}

func TestRawClientSkipsPlcSetup(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr, WithRawClient(true))

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	meta := client.Metadata()
	if meta.DeviceInfo != nil {
		t.Error("raw client must not read device info during connect")
	}
	tr.mu.Lock()
	created := tr.nextHandle - 100
	tr.mu.Unlock()
	if created != 0 {
		t.Errorf("raw client created %d subscriptions", created)
	}
}

func TestWriteControlByName(t *testing.T) {
	tr := newTestRouter(t)
	client := newTestClient(t, tr)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.WriteControlByName(ctx, "run", 0); err != nil {
		t.Errorf("write control by name: %v", err)
	}
	if err := client.WriteControlByName(ctx, "definitely-not-a-state", 0); err == nil {
		t.Error("unknown state name must be rejected")
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := defaultSettings()
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"RouterAddress", s.RouterAddress, "127.0.0.1"},
		{"RouterTCPPort", s.RouterTCPPort, uint16(48898)},
		{"TimeoutDelay", s.TimeoutDelay, 2 * time.Second},
		{"AutoReconnect", s.AutoReconnect, true},
		{"ReconnectInterval", s.ReconnectInterval, 2 * time.Second},
		{"ConnectionCheckInterval", s.ConnectionCheckInterval, time.Second},
		{"ConnectionDownDelay", s.ConnectionDownDelay, 5 * time.Second},
		{"ObjectifyEnumerations", s.ObjectifyEnumerations, true},
		{"ConvertDatesToGo", s.ConvertDatesToGo, true},
		{"MonitorSymbolVersion", s.MonitorSymbolVersion, true},
		{"DeleteUnknownSubscriptions", s.DeleteUnknownSubscriptions, true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("missing target must be rejected")
	}
	if _, err := New(WithTarget("not-a-netid", 851)); err == nil {
		t.Error("malformed NetID must be rejected")
	}
	if _, err := New(WithTarget("10.0.0.1.1.1", 0)); err == nil {
		t.Error("missing ADS port must be rejected")
	}
	if _, err := New(WithTarget("10.0.0.1.1.1", 851), WithTimeout(0)); err == nil {
		t.Error("non-positive timeout must be rejected")
	}

	client, err := New(WithTarget("localhost", 851))
	if err != nil {
		t.Fatalf("localhost target: %v", err)
	}
	if client.Target() != "127.0.0.1.1.1:"+strconv.Itoa(851) {
		t.Errorf("localhost canonicalisation: %s", client.Target())
	}
}
