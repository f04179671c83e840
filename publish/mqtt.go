// Package publish streams PLC subscription values to an MQTT broker.
// Every delivered device notification sample is published as one JSON
// message on "<root>/<plc>/<variable>".
package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/plcbus/adsclient"
)

// Config configures one MQTT publisher.
type Config struct {
	// Broker is the broker URL, e.g. "tcp://broker:1883" or "ssl://broker:8883".
	Broker   string
	ClientID string
	Username string
	Password string
	// RootTopic prefixes every published topic. Default "plc".
	RootTopic string
	// PlcName names this PLC in the topic path. Default "default".
	PlcName string
	// QoS for published messages (0..2).
	QoS byte
	// Retain marks published samples as retained.
	Retain bool
	// TLSInsecureSkipVerify disables certificate verification for ssl://
	// brokers. For test benches only.
	TLSInsecureSkipVerify bool
	// CycleTime is the notification cycle requested from the PLC.
	// Default 200 ms.
	CycleTime time.Duration
}

// TagMessage is the JSON structure published to MQTT.
type TagMessage struct {
	Topic     string `json:"topic"`
	Plc       string `json:"plc"`
	Variable  string `json:"variable"`
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Publisher bridges adsclient subscriptions to a single MQTT broker.
type Publisher struct {
	config Config
	client *adsclient.Client

	mqtt pahomqtt.Client

	mu      sync.Mutex
	subs    map[string]*adsclient.Subscription
	running bool
}

// NewPublisher creates a publisher over an existing (connected) client.
func NewPublisher(client *adsclient.Client, config Config) *Publisher {
	if config.RootTopic == "" {
		config.RootTopic = "plc"
	}
	if config.PlcName == "" {
		config.PlcName = "default"
	}
	if config.CycleTime == 0 {
		config.CycleTime = 200 * time.Millisecond
	}
	return &Publisher{
		config: config,
		client: client,
		subs:   make(map[string]*adsclient.Subscription),
	}
}

// Start connects to the broker.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	if strings.HasPrefix(p.config.Broker, "ssl://") || strings.HasPrefix(p.config.Broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: p.config.TLSInsecureSkipVerify})
	}

	p.mqtt = pahomqtt.NewClient(opts)
	token := p.mqtt.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish: connect to %s timed out", p.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: connect to %s: %w", p.config.Broker, err)
	}

	p.running = true
	return nil
}

// Stop unsubscribes every bridged variable and disconnects from the broker.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	subs := make([]*adsclient.Subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.subs = make(map[string]*adsclient.Subscription)
	running := p.running
	p.running = false
	p.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Unsubscribe(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if running && p.mqtt != nil {
		p.mqtt.Disconnect(250)
	}
	return firstErr
}

// AddVariable subscribes to a PLC variable and publishes every delivered
// sample.
func (p *Publisher) AddVariable(ctx context.Context, path string) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("publish: publisher not started")
	}
	if _, exists := p.subs[strings.ToLower(path)]; exists {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	topic := p.topicFor(path)
	callback := func(data *adsclient.SubscriptionData, _ *adsclient.Subscription) {
		p.publishSample(topic, path, data)
	}

	sub, err := p.client.Subscribe(ctx, path, callback, adsclient.SubscriptionSettings{
		CycleTime: p.config.CycleTime,
	})
	if err != nil {
		return fmt.Errorf("publish: subscribe %s: %w", path, err)
	}

	p.mu.Lock()
	p.subs[strings.ToLower(path)] = sub
	p.mu.Unlock()
	return nil
}

// RemoveVariable stops publishing a variable.
func (p *Publisher) RemoveVariable(ctx context.Context, path string) error {
	p.mu.Lock()
	sub, exists := p.subs[strings.ToLower(path)]
	delete(p.subs, strings.ToLower(path))
	p.mu.Unlock()

	if !exists {
		return nil
	}
	return sub.Unsubscribe(ctx)
}

// Variables returns the currently bridged variable paths.
func (p *Publisher) Variables() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.subs))
	for _, sub := range p.subs {
		paths = append(paths, sub.Symbol())
	}
	return paths
}

func (p *Publisher) topicFor(path string) string {
	sanitized := strings.ReplaceAll(path, ".", "/")
	return fmt.Sprintf("%s/%s/%s", p.config.RootTopic, p.config.PlcName, sanitized)
}

func (p *Publisher) publishSample(topic, path string, data *adsclient.SubscriptionData) {
	if p.mqtt == nil || !p.mqtt.IsConnected() {
		return
	}

	msg := TagMessage{
		Topic:     topic,
		Plc:       p.config.PlcName,
		Variable:  path,
		Value:     data.Value,
		Timestamp: data.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.mqtt.Publish(topic, p.config.QoS, p.config.Retain, payload)
}
