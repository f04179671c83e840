// Package adsclient provides a Go client library for the Beckhoff ADS/AMS
// protocol over TCP. It registers an AMS port with a local or remote router
// and exposes request/response and publish/subscribe operations against a
// TwinCAT PLC runtime or any other ADS-capable endpoint.
package adsclient

import (
	"fmt"
	"time"

	"github.com/plcbus/adsclient/internal/ams"
	"github.com/plcbus/adsclient/internal/marshal"
)

// Settings holds the full client configuration. Zero values are replaced by
// the documented defaults in New; TargetNetID and TargetPort are required.
type Settings struct {
	// TargetNetID is the AMS NetID of the target system (required).
	TargetNetID string
	// TargetPort is the ADS port of the target runtime (required, e.g. 851).
	TargetPort uint16

	// RouterAddress is the host the AMS router listens on. Default
	// "127.0.0.1" (never "localhost"; binding to it fails on some runtimes).
	RouterAddress string
	// RouterTCPPort is the router's TCP port. Default 48898.
	RouterTCPPort uint16

	// LocalNetID and LocalPort configure the local AMS address manually.
	// When both are set the AMS/TCP port registration round-trip is skipped.
	LocalNetID string
	LocalPort  uint16

	// LocalTCPAddress and LocalTCPPort bind the TCP socket to a specific
	// local interface and port. Empty/zero selects automatically.
	LocalTCPAddress string
	LocalTCPPort    uint16

	// TimeoutDelay bounds every request including the register handshake.
	// Default 2 s.
	TimeoutDelay time.Duration

	// AutoReconnect re-establishes a lost connection and restores
	// subscriptions. Default true.
	AutoReconnect bool
	// ReconnectInterval is the delay between reconnection attempts.
	// Default 2 s.
	ReconnectInterval time.Duration
	// ConnectionCheckInterval is the system-state poller cadence. Default 1 s.
	ConnectionCheckInterval time.Duration
	// ConnectionDownDelay is how long the target may stay out of Run before
	// the connection counts as lost. Default 5 s.
	ConnectionDownDelay time.Duration

	// ObjectifyEnumerations returns enumeration values as {name, value}
	// records. Default true.
	ObjectifyEnumerations bool
	// ConvertDatesToGo converts DATE/DT values to time.Time. Default true.
	ConvertDatesToGo bool
	// StringEncoding selects the STRING codec (cp1252 default, UTF-8 for
	// targets compiled with UTF-8 support).
	StringEncoding marshal.StringEncoding

	// ReadAndCacheSymbols uploads the full symbol table during connect.
	// Default false.
	ReadAndCacheSymbols bool
	// ReadAndCacheDataTypes uploads the full data-type table during connect.
	// Default false.
	ReadAndCacheDataTypes bool
	// DisableCaching turns the symbol and data-type caches off entirely:
	// every lookup goes to the target, even when the request targets the
	// configured system. Default false.
	DisableCaching bool
	// MonitorSymbolVersion subscribes to the PLC symbol version to detect
	// downloads. Default true.
	MonitorSymbolVersion bool

	// RawClient skips every PLC-specific startup step (state poller,
	// internal subscriptions, device info). Use it for bare ADS endpoints
	// such as I/O terminals. Default false.
	RawClient bool
	// AllowHalfOpen tolerates a target in Config mode or without a loaded
	// runtime; connect succeeds with a warning. Default false.
	AllowHalfOpen bool

	// HideConsoleWarnings suppresses the fallback stderr warning logger.
	// Default false.
	HideConsoleWarnings bool
	// DeleteUnknownSubscriptions reclaims notification handles that arrive
	// for the configured target but are unknown to this client. Default true.
	DeleteUnknownSubscriptions bool
}

// Option mutates the client configuration during New.
type Option func(*clientConfig) error

type clientConfig struct {
	settings Settings
	logger   Logger
	metrics  Metrics
}

func defaultSettings() Settings {
	return Settings{
		RouterAddress:              "127.0.0.1",
		RouterTCPPort:              ams.DefaultRouterTCPPort,
		TimeoutDelay:               2 * time.Second,
		AutoReconnect:              true,
		ReconnectInterval:          2 * time.Second,
		ConnectionCheckInterval:    time.Second,
		ConnectionDownDelay:        5 * time.Second,
		ObjectifyEnumerations:      true,
		ConvertDatesToGo:           true,
		MonitorSymbolVersion:       true,
		DeleteUnknownSubscriptions: true,
	}
}

// WithTarget sets the target AMS NetID and ADS port (required).
func WithTarget(netID string, port uint16) Option {
	return func(c *clientConfig) error {
		if netID == "" {
			return fmt.Errorf("adsclient: target AMS NetID cannot be empty")
		}
		c.settings.TargetNetID = netID
		c.settings.TargetPort = port
		return nil
	}
}

// WithRouterAddress sets the router host (default 127.0.0.1).
func WithRouterAddress(address string) Option {
	return func(c *clientConfig) error {
		if address == "" {
			return fmt.Errorf("adsclient: router address cannot be empty")
		}
		c.settings.RouterAddress = address
		return nil
	}
}

// WithRouterTCPPort sets the router TCP port (default 48898).
func WithRouterTCPPort(port uint16) Option {
	return func(c *clientConfig) error {
		c.settings.RouterTCPPort = port
		return nil
	}
}

// WithLocalAddress sets the local AMS NetID and port manually, skipping the
// router port registration.
func WithLocalAddress(netID string, port uint16) Option {
	return func(c *clientConfig) error {
		c.settings.LocalNetID = netID
		c.settings.LocalPort = port
		return nil
	}
}

// WithLocalTCP binds the TCP socket to a local interface and port.
// Use an explicit IP rather than "localhost"; binding to the hostname
// fails on some runtimes.
func WithLocalTCP(address string, port uint16) Option {
	return func(c *clientConfig) error {
		c.settings.LocalTCPAddress = address
		c.settings.LocalTCPPort = port
		return nil
	}
}

// WithTimeout sets the per-request timeout (default 2 s).
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("adsclient: timeout must be positive")
		}
		c.settings.TimeoutDelay = timeout
		return nil
	}
}

// WithAutoReconnect toggles automatic reconnection (default on).
func WithAutoReconnect(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.AutoReconnect = enabled
		return nil
	}
}

// WithReconnectInterval sets the retry cadence after a lost connection.
func WithReconnectInterval(interval time.Duration) Option {
	return func(c *clientConfig) error {
		if interval <= 0 {
			return fmt.Errorf("adsclient: reconnect interval must be positive")
		}
		c.settings.ReconnectInterval = interval
		return nil
	}
}

// WithConnectionCheckInterval sets the system-state poller cadence.
func WithConnectionCheckInterval(interval time.Duration) Option {
	return func(c *clientConfig) error {
		if interval <= 0 {
			return fmt.Errorf("adsclient: connection check interval must be positive")
		}
		c.settings.ConnectionCheckInterval = interval
		return nil
	}
}

// WithConnectionDownDelay sets how long the target may stay out of Run
// before the connection counts as lost.
func WithConnectionDownDelay(delay time.Duration) Option {
	return func(c *clientConfig) error {
		c.settings.ConnectionDownDelay = delay
		return nil
	}
}

// WithObjectifyEnumerations toggles {name, value} enumeration records.
func WithObjectifyEnumerations(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.ObjectifyEnumerations = enabled
		return nil
	}
}

// WithConvertDates toggles DATE/DT conversion to time.Time.
func WithConvertDates(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.ConvertDatesToGo = enabled
		return nil
	}
}

// WithStringEncoding selects the STRING codec of the target.
func WithStringEncoding(enc marshal.StringEncoding) Option {
	return func(c *clientConfig) error {
		c.settings.StringEncoding = enc
		return nil
	}
}

// WithCachedSymbols uploads the full symbol table during connect.
func WithCachedSymbols(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.ReadAndCacheSymbols = enabled
		return nil
	}
}

// WithCachedDataTypes uploads the full data-type table during connect.
func WithCachedDataTypes(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.ReadAndCacheDataTypes = enabled
		return nil
	}
}

// WithDisabledCaching turns the symbol and data-type caches off.
func WithDisabledCaching(disabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.DisableCaching = disabled
		return nil
	}
}

// WithSymbolVersionMonitoring toggles PLC download detection (default on).
func WithSymbolVersionMonitoring(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.MonitorSymbolVersion = enabled
		return nil
	}
}

// WithRawClient disables PLC-specific startup steps for bare ADS endpoints.
func WithRawClient(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.RawClient = enabled
		return nil
	}
}

// WithAllowHalfOpen tolerates a target that is not in Run during connect.
func WithAllowHalfOpen(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.AllowHalfOpen = enabled
		return nil
	}
}

// WithHiddenConsoleWarnings suppresses the fallback stderr warning logger.
func WithHiddenConsoleWarnings(hidden bool) Option {
	return func(c *clientConfig) error {
		c.settings.HideConsoleWarnings = hidden
		return nil
	}
}

// WithDeleteUnknownSubscriptions toggles reclaiming of stale notification
// handles (default on).
func WithDeleteUnknownSubscriptions(enabled bool) Option {
	return func(c *clientConfig) error {
		c.settings.DeleteUnknownSubscriptions = enabled
		return nil
	}
}

// WithSettings replaces the whole settings block at once. Options applied
// after it still override individual fields.
func WithSettings(settings Settings) Option {
	return func(c *clientConfig) error {
		c.settings = settings
		return nil
	}
}
