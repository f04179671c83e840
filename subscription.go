package adsclient

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
)

// SubscriptionSettings configure a device notification.
type SubscriptionSettings struct {
	// CycleTime is how often the target samples the value. Default 200 ms.
	CycleTime time.Duration
	// MaxDelay is how long the target may batch samples before pushing.
	MaxDelay time.Duration
	// Cyclic pushes every sample instead of only changes. The default
	// (false) is on-change mode, for which the target always pushes the
	// current value once right after accepting the subscription.
	Cyclic bool
}

const defaultCycleTime = 200 * time.Millisecond

func (s SubscriptionSettings) transmissionMode() ads.TransmissionMode {
	if s.Cyclic {
		return ads.TransServerCycle
	}
	return ads.TransServerOnChange
}

// SubscriptionData is one delivered sample.
type SubscriptionData struct {
	// Value is the converted value for typed subscriptions, nil for raw.
	Value any
	// Raw holds the sample bytes as pushed by the target.
	Raw []byte
	// Timestamp is the target-side capture time (converted from FILETIME).
	Timestamp time.Time
	// Symbol is the variable path for typed subscriptions.
	Symbol string
}

// SubscriptionCallback receives delivered samples. Callbacks run on the
// client's dispatch goroutine in the order the PLC packed them
// (stamp-major, then sample-major); block briefly or hand off.
type SubscriptionCallback func(data *SubscriptionData, sub *Subscription)

// internalHandler is the callback shape of client-internal subscriptions.
type internalHandler func(data []byte, timestamp time.Time)

// Subscription is one active notification handle plus local bookkeeping.
type Subscription struct {
	client *Client

	remote ams.Address
	handle uint32

	symbolName  string // empty for raw subscriptions
	indexGroup  uint32
	indexOffset uint32
	size        uint32

	settings SubscriptionSettings
	callback SubscriptionCallback
	decode   func(raw []byte, ts time.Time) (*SubscriptionData, error)

	internal   bool
	overridden bool
	targetOpts []RequestOption

	closed atomic.Bool
}

// Handle returns the notification handle assigned by the target.
func (s *Subscription) Handle() uint32 {
	return s.handle
}

// Symbol returns the variable path of a typed subscription ("" for raw).
func (s *Subscription) Symbol() string {
	return s.symbolName
}

// Target returns the address the notification handle lives on.
func (s *Subscription) Target() string {
	return s.remote.String()
}

// subscriptionKey indexes the registry. Notifications are matched by the
// address that SENT them (the remote target), not by our own address.
type subscriptionKey struct {
	addr   string
	handle uint32
}

// subscriptionBackup is the restartable descriptor of a user subscription.
type subscriptionBackup struct {
	symbolName  string
	indexGroup  uint32
	indexOffset uint32
	size        uint32
	settings    SubscriptionSettings
	callback    SubscriptionCallback
	raw         bool
	targetOpts  []RequestOption
}

func (b *subscriptionBackup) describe() string {
	if b.raw {
		return fmt.Sprintf("raw:0x%X:0x%X", b.indexGroup, b.indexOffset)
	}
	return b.symbolName
}

// Subscribe registers a typed notification on a variable path. Samples are
// converted with the variable's own type tree before delivery.
func (c *Client) Subscribe(ctx context.Context, path string, callback SubscriptionCallback, settings SubscriptionSettings, opts ...RequestOption) (*Subscription, error) {
	sym, err := c.GetSymbol(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	dt, err := c.GetDataType(ctx, sym.Type, opts...)
	if err != nil {
		return nil, err
	}

	decode := func(raw []byte, ts time.Time) (*SubscriptionData, error) {
		value, err := c.codec.Decode(raw, dt)
		if err != nil {
			return nil, err
		}
		return &SubscriptionData{Value: value, Raw: raw, Timestamp: ts, Symbol: path}, nil
	}

	return c.addSubscription(ctx, sym.IndexGroup, sym.IndexOffset, sym.Size,
		path, decode, callback, settings, false, opts)
}

// SubscribeRaw registers a notification on a raw index group/offset.
// Samples are delivered without conversion.
func (c *Client) SubscribeRaw(ctx context.Context, indexGroup, indexOffset, size uint32, callback SubscriptionCallback, settings SubscriptionSettings, opts ...RequestOption) (*Subscription, error) {
	decode := func(raw []byte, ts time.Time) (*SubscriptionData, error) {
		return &SubscriptionData{Raw: raw, Timestamp: ts}, nil
	}
	return c.addSubscription(ctx, indexGroup, indexOffset, size,
		"", decode, callback, settings, false, opts)
}

// subscribeInternal registers a client-owned subscription (runtime state,
// symbol version). Internal subscriptions are excluded from backup/restore
// and from UnsubscribeAll; the connect sequence recreates them.
func (c *Client) subscribeInternal(ctx context.Context, indexGroup, indexOffset, size uint32, handler internalHandler) (*Subscription, error) {
	decode := func(raw []byte, ts time.Time) (*SubscriptionData, error) {
		handler(raw, ts)
		return nil, nil
	}
	sub, err := c.addSubscription(ctx, indexGroup, indexOffset, size,
		"", decode, nil, SubscriptionSettings{}, true, nil)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) addSubscription(ctx context.Context, indexGroup, indexOffset, size uint32, symbolName string, decode func([]byte, time.Time) (*SubscriptionData, error), callback SubscriptionCallback, settings SubscriptionSettings, internal bool, opts []RequestOption) (*Subscription, error) {
	const op = "subscribe"

	target, overridden, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	if settings.CycleTime == 0 {
		settings.CycleTime = defaultCycleTime
	}

	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	req := ads.AddDeviceNotificationRequest{
		IndexGroup:       indexGroup,
		IndexOffset:      indexOffset,
		Length:           size,
		TransmissionMode: settings.transmissionMode(),
		MaxDelay:         ads.DurationTo100ns(settings.MaxDelay),
		CycleTime:        ads.DurationTo100ns(settings.CycleTime),
	}
	reqData, _ := req.MarshalBinary()

	packet, err := c.sendCommand(ctx, target, ads.CmdAddDeviceNotification, reqData, op)
	if err != nil {
		return nil, err
	}

	var resp ads.AddDeviceNotificationResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return nil, protocolError(op, err)
	}
	if resp.Result != 0 {
		return nil, adsError(op, ads.Error(resp.Result))
	}

	sub := &Subscription{
		client:      c,
		remote:      target,
		handle:      resp.NotificationHandle,
		symbolName:  symbolName,
		indexGroup:  indexGroup,
		indexOffset: indexOffset,
		size:        size,
		settings:    settings,
		callback:    callback,
		decode:      decode,
		internal:    internal,
		overridden:  overridden,
		targetOpts:  opts,
	}

	c.subsMu.Lock()
	c.subs[subscriptionKey{addr: target.String(), handle: sub.handle}] = sub
	count := len(c.subs)
	c.subsMu.Unlock()
	c.metrics.SubscriptionsActive(count)

	c.logger.Debug("subscription added", "target", target.String(), "handle", sub.handle, "symbol", symbolName)
	return sub, nil
}

// Unsubscribe deletes the notification handle on the target and removes the
// local bookkeeping. Safe to call more than once.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.client.removeSubscription(s.remote, s.handle)
	return s.client.deleteNotificationHandle(ctx, s.remote, s.handle, s.targetOpts)
}

func (c *Client) removeSubscription(remote ams.Address, handle uint32) {
	c.subsMu.Lock()
	delete(c.subs, subscriptionKey{addr: remote.String(), handle: handle})
	count := len(c.subs)
	c.subsMu.Unlock()
	c.metrics.SubscriptionsActive(count)
}

func (c *Client) deleteNotificationHandle(ctx context.Context, target ams.Address, handle uint32, opts []RequestOption) error {
	const op = "unsubscribe"

	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	req := ads.DeleteDeviceNotificationRequest{NotificationHandle: handle}
	reqData, _ := req.MarshalBinary()

	packet, err := c.sendCommand(ctx, target, ads.CmdDelDeviceNotification, reqData, op)
	if err != nil {
		return err
	}
	var resp ads.DeleteDeviceNotificationResponse
	if err := resp.UnmarshalBinary(packet.Data); err != nil {
		return protocolError(op, err)
	}
	if resp.Result != 0 {
		return adsError(op, ads.Error(resp.Result))
	}
	return nil
}

// UnsubscribeAll deletes every user subscription. Internal client
// subscriptions (runtime state, symbol version) stay active.
func (c *Client) UnsubscribeAll(ctx context.Context) error {
	return c.unsubscribeWhere(ctx, func(s *Subscription) bool { return !s.internal })
}

// unsubscribeAllLocked deletes every subscription including the internal
// ones; used by the graceful disconnect.
func (c *Client) unsubscribeAllLocked(ctx context.Context) error {
	return c.unsubscribeWhere(ctx, func(s *Subscription) bool { return true })
}

func (c *Client) unsubscribeWhere(ctx context.Context, match func(*Subscription) bool) error {
	c.subsMu.RLock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		if match(sub) {
			subs = append(subs, sub)
		}
	}
	c.subsMu.RUnlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Unsubscribe(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// clearSubscriptions drops the local bookkeeping without target calls
// (the connection is already gone).
func (c *Client) clearSubscriptions() {
	c.subsMu.Lock()
	c.subs = make(map[subscriptionKey]*Subscription)
	c.subsMu.Unlock()
	c.metrics.SubscriptionsActive(0)
}

// backupSubscriptions snapshots every user subscription descriptor for a
// later restore. Used on the lost-connection path; no target calls happen.
func (c *Client) backupSubscriptions() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.subBackups = c.subBackups[:0]
	for _, sub := range c.subs {
		if sub.internal {
			continue
		}
		c.subBackups = append(c.subBackups, subscriptionBackup{
			symbolName:  sub.symbolName,
			indexGroup:  sub.indexGroup,
			indexOffset: sub.indexOffset,
			size:        sub.size,
			settings:    sub.settings,
			callback:    sub.callback,
			raw:         sub.symbolName == "",
			targetOpts:  sub.targetOpts,
		})
	}
}

// backupUserSubscriptions snapshots user subscriptions and optionally
// deletes their (now stale) handles on the target. Used on the
// symbol-version path where the connection itself is still healthy.
func (c *Client) backupUserSubscriptions(ctx context.Context, deleteOnTarget bool) {
	c.backupSubscriptions()

	c.subsMu.Lock()
	stale := make([]*Subscription, 0, len(c.subs))
	for key, sub := range c.subs {
		if sub.internal {
			continue
		}
		stale = append(stale, sub)
		delete(c.subs, key)
	}
	count := len(c.subs)
	c.subsMu.Unlock()
	c.metrics.SubscriptionsActive(count)

	if !deleteOnTarget {
		return
	}
	for _, sub := range stale {
		sub.closed.Store(true)
		if err := c.deleteNotificationHandle(ctx, sub.remote, sub.handle, sub.targetOpts); err != nil {
			c.logger.Debug("deleting stale notification handle failed", "handle", sub.handle, "error", err)
		}
	}
}

// restoreSubscriptions re-issues every backed-up subscription, re-resolving
// paths by name against the fresh symbol table. It returns the descriptors
// that failed to restore.
func (c *Client) restoreSubscriptions(ctx context.Context) []string {
	backups := c.subBackups
	c.subBackups = nil

	var failed []string
	for i := range backups {
		b := &backups[i]
		var err error
		if b.raw {
			_, err = c.SubscribeRaw(ctx, b.indexGroup, b.indexOffset, b.size, b.callback, b.settings, b.targetOpts...)
		} else {
			_, err = c.Subscribe(ctx, b.symbolName, b.callback, b.settings, b.targetOpts...)
		}
		if err != nil {
			c.logger.Warn("restoring subscription failed", "target", b.describe(), "error", err)
			failed = append(failed, b.describe())
		}
	}
	return failed
}

// --- notification dispatch ----------------------------------------------

// handleNotificationFrame routes one DeviceNotification frame. It runs on
// the transport dispatch goroutine; samples are delivered in wire order.
func (c *Client) handleNotificationFrame(packet *ams.Packet) {
	var notif ads.DeviceNotificationRequest
	if err := notif.UnmarshalBinary(packet.Data); err != nil {
		c.clientError(protocolError("device notification", err))
		return
	}

	source := packet.Header.Source()
	sourceKey := source.String()

	for _, stamp := range notif.Stamps {
		ts := stamp.Time()
		for _, sample := range stamp.Samples {
			c.subsMu.RLock()
			sub := c.subs[subscriptionKey{addr: sourceKey, handle: sample.NotificationHandle}]
			c.subsMu.RUnlock()

			if sub == nil {
				c.handleUnknownNotification(source, sample.NotificationHandle)
				continue
			}

			c.metrics.NotificationReceived()
			data, err := sub.decode(sample.Data, ts)
			if err != nil {
				c.metrics.NotificationDropped()
				c.clientError(fmt.Errorf("adsclient: parsing notification for %s (handle %d): %w",
					sub.Target(), sub.handle, err))
				continue
			}
			if data != nil && sub.callback != nil {
				sub.callback(data, sub)
			}
		}
	}
}

// handleUnknownNotification applies the stale-handle policy: delete the
// handle on the configured target (default), or warn once and drop. No
// callback is ever invoked for unknown handles.
func (c *Client) handleUnknownNotification(source ams.Address, handle uint32) {
	c.metrics.NotificationDropped()

	if c.settings.DeleteUnknownSubscriptions && source == c.target {
		c.logger.Debug("deleting unknown notification handle", "source", source.String(), "handle", handle)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.settings.TimeoutDelay)
			defer cancel()
			if err := c.deleteNotificationHandle(ctx, source, handle, nil); err != nil {
				c.logger.Debug("deleting unknown notification handle failed", "handle", handle, "error", err)
			}
		}()
		return
	}

	key := subscriptionKey{addr: source.String(), handle: handle}
	c.subsMu.Lock()
	if c.warnedUnknown == nil {
		c.warnedUnknown = make(map[subscriptionKey]struct{})
	}
	_, warned := c.warnedUnknown[key]
	if !warned {
		c.warnedUnknown[key] = struct{}{}
	}
	c.subsMu.Unlock()

	if !warned {
		c.warn(fmt.Sprintf("notification for unknown handle %d from %s dropped", handle, source))
	}
}
