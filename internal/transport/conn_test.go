package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
)

// fakeRouter is a scripted AMS router on a loopback listener. It registers
// ports and answers ADS requests through a configurable handler.
type fakeRouter struct {
	t        *testing.T
	listener net.Listener

	mu   sync.Mutex
	conn net.Conn

	assignedNetID ams.NetID
	assignedPort  ams.Port

	// handler builds the ADS response payload for a request, or returns
	// nil to swallow the request.
	handler func(req *ams.Packet) []byte
}

func newFakeRouter(t *testing.T) *fakeRouter {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	fr := &fakeRouter{
		t:             t,
		listener:      listener,
		assignedNetID: ams.NetID{192, 168, 5, 1, 1, 1},
		assignedPort:  32905,
	}
	t.Cleanup(func() { fr.Close() })

	go fr.serve()
	return fr
}

func (fr *fakeRouter) Addr() string {
	return fr.listener.Addr().String()
}

func (fr *fakeRouter) Close() {
	fr.listener.Close()
	fr.mu.Lock()
	if fr.conn != nil {
		fr.conn.Close()
	}
	fr.mu.Unlock()
}

func (fr *fakeRouter) serve() {
	conn, err := fr.listener.Accept()
	if err != nil {
		return
	}
	fr.mu.Lock()
	fr.conn = conn
	fr.mu.Unlock()

	for {
		packet, err := ams.ReadPacket(conn)
		if err != nil {
			return
		}

		if packet.IsControl() {
			switch packet.TCPHeader.Command {
			case ams.TCPCommandPortConnect:
				payload := make([]byte, 8)
				copy(payload[0:6], fr.assignedNetID[:])
				binary.LittleEndian.PutUint16(payload[6:8], uint16(fr.assignedPort))
				fr.send(ams.NewControlPacket(ams.TCPCommandPortConnect, payload))
			case ams.TCPCommandPortClose:
				// No reply.
			}
			continue
		}

		fr.mu.Lock()
		handler := fr.handler
		fr.mu.Unlock()
		if handler == nil {
			continue
		}
		respData := handler(packet)
		if respData == nil {
			continue
		}
		fr.respond(packet, respData)
	}
}

func (fr *fakeRouter) setHandler(handler func(req *ams.Packet) []byte) {
	fr.mu.Lock()
	fr.handler = handler
	fr.mu.Unlock()
}

// respond echoes a response frame for the given request.
func (fr *fakeRouter) respond(req *ams.Packet, data []byte) {
	resp := &ams.Packet{
		TCPHeader: ams.TCPHeader{
			Command: ams.TCPCommandADS,
			Length:  ams.HeaderSize + uint32(len(data)),
		},
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
	fr.send(resp)
}

func (fr *fakeRouter) send(packet *ams.Packet) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.conn == nil {
		return
	}
	if err := ams.WritePacket(fr.conn, packet); err != nil {
		fr.t.Logf("fake router write: %v", err)
	}
}

// pushNotification sends an unsolicited DeviceNotification frame for one
// handle with one sample.
func (fr *fakeRouter) pushNotification(target, source ams.Address, handle uint32, sample []byte) {
	data := make([]byte, 8+12+8+len(sample))
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(data[4:8], 1) // stamp count
	binary.LittleEndian.PutUint64(data[8:16], ads.TimeToFiletime(time.Now()))
	binary.LittleEndian.PutUint32(data[16:20], 1) // sample count
	binary.LittleEndian.PutUint32(data[20:24], handle)
	binary.LittleEndian.PutUint32(data[24:28], uint32(len(sample)))
	copy(data[28:], sample)

	packet := &ams.Packet{
		TCPHeader: ams.TCPHeader{Command: ams.TCPCommandADS, Length: ams.HeaderSize + uint32(len(data))},
		Header: ams.Header{
			TargetNetID: target.NetID,
			TargetPort:  target.Port,
			SourceNetID: source.NetID,
			SourcePort:  source.Port,
			CommandID:   uint16(ads.CmdDeviceNotification),
			StateFlags:  ams.StateFlagsTCPRequest,
			DataLength:  uint32(len(data)),
			InvokeID:    0,
		},
		Data: data,
	}
	fr.send(packet)
}

func dialFake(t *testing.T, fr *fakeRouter, timeout time.Duration) *Conn {
	t.Helper()
	conn, err := Dial(context.Background(), fr.Addr(), timeout)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRegisterPort(t *testing.T) {
	fr := newFakeRouter(t)
	conn := dialFake(t, fr, time.Second)

	addr, err := conn.RegisterPort(context.Background(), 0)
	if err != nil {
		t.Fatalf("register port: %v", err)
	}
	if addr.NetID != fr.assignedNetID || addr.Port != fr.assignedPort {
		t.Errorf("assigned address = %s", addr)
	}
	if conn.LocalAddress() != addr {
		t.Errorf("local address not recorded")
	}
}

func TestSendRequestCorrelatesInvokeIDs(t *testing.T) {
	fr := newFakeRouter(t)

	// Respond to every Read with its own index offset as payload so the
	// callers can verify they got their own response.
	fr.setHandler(func(req *ams.Packet) []byte {
		offset := binary.LittleEndian.Uint32(req.Data[4:8])
		resp := make([]byte, 12)
		binary.LittleEndian.PutUint32(resp[4:8], 4)
		binary.LittleEndian.PutUint32(resp[8:12], offset)
		return resp
	})

	conn := dialFake(t, fr, time.Second)
	if _, err := conn.RegisterPort(context.Background(), 0); err != nil {
		t.Fatalf("register port: %v", err)
	}

	target := ams.Address{NetID: ams.NetID{10, 0, 0, 1, 1, 1}, Port: 851}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(offset uint32) {
			defer wg.Done()

			req := ads.ReadRequest{IndexGroup: 0x4020, IndexOffset: offset, Length: 4}
			reqData, _ := req.MarshalBinary()
			packet := ams.NewRequestPacket(target, conn.LocalAddress(), uint16(ads.CmdRead), conn.NextInvokeID(), reqData)

			resp, err := conn.SendRequest(context.Background(), packet)
			if err != nil {
				t.Errorf("request %d: %v", offset, err)
				return
			}
			var parsed ads.ReadResponse
			if err := parsed.UnmarshalBinary(resp.Data); err != nil {
				t.Errorf("request %d: parse: %v", offset, err)
				return
			}
			if got := binary.LittleEndian.Uint32(parsed.Data); got != offset {
				t.Errorf("request %d received response for %d", offset, got)
			}
		}(uint32(i))
	}
	wg.Wait()
}

func TestSendRequestTimeout(t *testing.T) {
	fr := newFakeRouter(t)
	// Handler swallows everything.
	fr.setHandler(func(req *ams.Packet) []byte { return nil })

	conn := dialFake(t, fr, 200*time.Millisecond)
	if _, err := conn.RegisterPort(context.Background(), 0); err != nil {
		t.Fatalf("register port: %v", err)
	}

	target := ams.Address{NetID: ams.NetID{10, 0, 0, 1, 1, 1}, Port: 851}
	packet := ams.NewRequestPacket(target, conn.LocalAddress(), uint16(ads.CmdReadState), conn.NextInvokeID(), nil)

	_, err := conn.SendRequest(context.Background(), packet)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestNotificationRouting(t *testing.T) {
	fr := newFakeRouter(t)
	conn := dialFake(t, fr, time.Second)

	local, err := conn.RegisterPort(context.Background(), 0)
	if err != nil {
		t.Fatalf("register port: %v", err)
	}

	received := make(chan *ams.Packet, 1)
	conn.SetNotificationHandler(func(p *ams.Packet) {
		received <- p
	})

	source := ams.Address{NetID: ams.NetID{10, 0, 0, 1, 1, 1}, Port: 851}
	fr.pushNotification(local, source, 77, []byte{0x01, 0x02})

	select {
	case p := <-received:
		var notif ads.DeviceNotificationRequest
		if err := notif.UnmarshalBinary(p.Data); err != nil {
			t.Fatalf("parse notification: %v", err)
		}
		if notif.Stamps[0].Samples[0].NotificationHandle != 77 {
			t.Errorf("handle = %d", notif.Stamps[0].Samples[0].NotificationHandle)
		}
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

// Frames addressed to a foreign NetID are dropped before dispatch.
func TestForeignTargetFiltered(t *testing.T) {
	fr := newFakeRouter(t)
	conn := dialFake(t, fr, time.Second)

	if _, err := conn.RegisterPort(context.Background(), 0); err != nil {
		t.Fatalf("register port: %v", err)
	}

	received := make(chan *ams.Packet, 1)
	conn.SetNotificationHandler(func(p *ams.Packet) {
		received <- p
	})

	foreign := ams.Address{NetID: ams.NetID{172, 16, 0, 9, 1, 1}, Port: 33000}
	source := ams.Address{NetID: ams.NetID{10, 0, 0, 1, 1, 1}, Port: 851}
	fr.pushNotification(foreign, source, 1, []byte{0x01})

	select {
	case <-received:
		t.Fatal("foreign-targeted frame must be dropped")
	case <-time.After(300 * time.Millisecond):
	}

	// Loopback-targeted frames pass the filter.
	loopback := ams.Address{NetID: ams.Loopback, Port: 33000}
	fr.pushNotification(loopback, source, 2, []byte{0x01})
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("loopback-targeted frame must be delivered")
	}
}

func TestRouterStateNotification(t *testing.T) {
	fr := newFakeRouter(t)
	conn := dialFake(t, fr, time.Second)

	states := make(chan ams.RouterState, 1)
	conn.SetRouterStateHandler(func(state ams.RouterState) {
		states <- state
	})

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(ams.RouterStateStart))
	fr.send(ams.NewControlPacket(ams.TCPCommandRouterNote, payload))

	select {
	case state := <-states:
		if state != ams.RouterStateStart {
			t.Errorf("state = %s", state)
		}
	case <-time.After(time.Second):
		t.Fatal("router state not delivered")
	}
}

func TestConnectionLostHandler(t *testing.T) {
	fr := newFakeRouter(t)
	conn := dialFake(t, fr, time.Second)

	lost := make(chan error, 1)
	conn.SetLostHandler(func(err error) {
		lost <- err
	})

	fr.Close()

	select {
	case err := <-lost:
		if err == nil {
			t.Error("expected a failure reason")
		}
	case <-time.After(time.Second):
		t.Fatal("lost handler not invoked")
	}
}

func TestCloseUnblocksPending(t *testing.T) {
	fr := newFakeRouter(t)
	fr.setHandler(func(req *ams.Packet) []byte { return nil })

	conn := dialFake(t, fr, 5*time.Second)
	if _, err := conn.RegisterPort(context.Background(), 0); err != nil {
		t.Fatalf("register port: %v", err)
	}

	target := ams.Address{NetID: ams.NetID{10, 0, 0, 1, 1, 1}, Port: 851}
	done := make(chan error, 1)
	go func() {
		packet := ams.NewRequestPacket(target, conn.LocalAddress(), uint16(ads.CmdReadState), conn.NextInvokeID(), nil)
		_, err := conn.SendRequest(context.Background(), packet)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	conn.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error after close")
		}
	case <-time.After(time.Second):
		t.Fatal("pending request not unblocked by close")
	}
}
