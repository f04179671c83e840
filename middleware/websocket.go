package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plcbus/adsclient"
)

// SubscriptionManager bridges ADS device notifications to WebSocket
// connections. Unlike a polling bridge, every sample the PLC pushes is
// forwarded as soon as the client delivers it.
type SubscriptionManager struct {
	client *adsclient.Client
	config *Config

	mu   sync.RWMutex
	subs map[string]*wsSubscription
}

type wsSubscription struct {
	id     string
	symbol string
	conn   *wsConn
	ads    *adsclient.Subscription
}

// wsConn serialises writes to one websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeControl(messageType int, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(messageType, nil, deadline)
}

// NewSubscriptionManager creates a new subscription manager.
func NewSubscriptionManager(client *adsclient.Client, config *Config) *SubscriptionManager {
	return &SubscriptionManager{
		client: client,
		config: config,
		subs:   make(map[string]*wsSubscription),
	}
}

// Subscribe registers a device notification for the symbol and streams
// every delivered sample to the connection.
func (sm *SubscriptionManager) Subscribe(ctx context.Context, conn *wsConn, requestID, symbol string, cycleTime time.Duration, cyclic bool) error {
	sm.mu.Lock()
	if len(sm.subs) >= sm.config.Gateway.MaxSubscriptions {
		sm.mu.Unlock()
		return NewSubscriptionLimitError(sm.config.Gateway.MaxSubscriptions)
	}
	if _, exists := sm.subs[requestID]; exists {
		sm.mu.Unlock()
		return NewInvalidRequestError("subscription ID already exists")
	}
	// Reserve the slot before the ADS round-trip.
	sm.subs[requestID] = nil
	sm.mu.Unlock()

	if cycleTime <= 0 {
		cycleTime = sm.config.SubscriptionCycle()
	}

	callback := func(data *adsclient.SubscriptionData, _ *adsclient.Subscription) {
		msg := UpdateMessage{
			Type:      "data",
			RequestID: requestID,
			Symbol:    symbol,
			Value:     data.Value,
			Timestamp: data.Timestamp,
		}
		if err := conn.writeJSON(msg); err != nil {
			// Broken socket; the read loop tears the subscription down.
			return
		}
	}

	sub, err := sm.client.Subscribe(ctx, symbol, callback, adsclient.SubscriptionSettings{
		CycleTime: cycleTime,
		Cyclic:    cyclic,
	})
	if err != nil {
		sm.mu.Lock()
		delete(sm.subs, requestID)
		sm.mu.Unlock()
		return err
	}

	sm.mu.Lock()
	sm.subs[requestID] = &wsSubscription{id: requestID, symbol: symbol, conn: conn, ads: sub}
	sm.mu.Unlock()
	return nil
}

// Unsubscribe deletes one subscription.
func (sm *SubscriptionManager) Unsubscribe(ctx context.Context, requestID string) error {
	sm.mu.Lock()
	sub, exists := sm.subs[requestID]
	delete(sm.subs, requestID)
	sm.mu.Unlock()

	if !exists || sub == nil {
		return NewInvalidRequestError("subscription not found")
	}
	return sub.ads.Unsubscribe(ctx)
}

// UnsubscribeConn deletes every subscription owned by one connection.
func (sm *SubscriptionManager) UnsubscribeConn(ctx context.Context, conn *wsConn) {
	sm.mu.Lock()
	var owned []*wsSubscription
	for id, sub := range sm.subs {
		if sub != nil && sub.conn == conn {
			owned = append(owned, sub)
			delete(sm.subs, id)
		}
	}
	sm.mu.Unlock()

	for _, sub := range owned {
		if err := sub.ads.Unsubscribe(ctx); err != nil {
			// Best effort; the client's stale-handle policy reclaims leftovers.
			continue
		}
	}
}

// Count returns the number of active subscriptions.
func (sm *SubscriptionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subs)
}

// HandleWebSocket runs one WebSocket session: subscribe/unsubscribe
// requests in, sample streams out.
func (g *Gateway) HandleWebSocket(raw *websocket.Conn) {
	conn := &wsConn{conn: raw}
	defer raw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), g.config.Timeout())
		defer cleanupCancel()
		g.subs.UnsubscribeConn(cleanupCtx, conn)
	}()

	raw.SetReadDeadline(time.Now().Add(60 * time.Second))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keepalive pings.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.writeControl(websocket.PingMessage, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg SubscribeMessage
		if err := raw.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			if msg.Symbol == "" || msg.RequestID == "" {
				conn.writeJSON(UpdateMessage{
					Type: "error", RequestID: msg.RequestID,
					Error: "symbol and request_id are required", Timestamp: time.Now(),
				})
				continue
			}
			opCtx, opCancel := context.WithTimeout(ctx, g.config.Timeout())
			err := g.subs.Subscribe(opCtx, conn, msg.RequestID, msg.Symbol,
				time.Duration(msg.CycleTimeMs)*time.Millisecond, msg.Cyclic)
			opCancel()
			if err != nil {
				conn.writeJSON(UpdateMessage{
					Type: "error", RequestID: msg.RequestID, Symbol: msg.Symbol,
					Error: err.Error(), Timestamp: time.Now(),
				})
				continue
			}
			conn.writeJSON(UpdateMessage{
				Type: "subscribed", RequestID: msg.RequestID, Symbol: msg.Symbol,
				Timestamp: time.Now(),
			})

		case "unsubscribe":
			opCtx, opCancel := context.WithTimeout(ctx, g.config.Timeout())
			err := g.subs.Unsubscribe(opCtx, msg.RequestID)
			opCancel()
			if err != nil {
				conn.writeJSON(UpdateMessage{
					Type: "error", RequestID: msg.RequestID,
					Error: err.Error(), Timestamp: time.Now(),
				})
				continue
			}
			conn.writeJSON(UpdateMessage{
				Type: "unsubscribed", RequestID: msg.RequestID, Timestamp: time.Now(),
			})

		default:
			conn.writeJSON(UpdateMessage{
				Type: "error", RequestID: msg.RequestID,
				Error: fmt.Sprintf("unknown message type %q", msg.Type), Timestamp: time.Now(),
			})
		}
	}
}
