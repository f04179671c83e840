package adsclient

import (
	"errors"
	"fmt"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/transport"
)

// ErrorKind classifies client errors by layer.
type ErrorKind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown ErrorKind = iota

	// KindTransport covers socket errors, unexpected EOF, write failures
	// and request timeouts.
	KindTransport

	// KindAMS is a non-zero AMS error code in a response header.
	KindAMS

	// KindADS is a non-zero ADS error code in a response payload.
	KindADS

	// KindProtocol covers protocol misuse: unknown invoke IDs, unknown
	// command codes, malformed descriptors.
	KindProtocol

	// KindMarshal covers value conversion failures: missing struct members,
	// invalid enum inputs, unknown data type names.
	KindMarshal

	// KindState marks operations invoked while not connected.
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAMS:
		return "ams"
	case KindADS:
		return "ads"
	case KindProtocol:
		return "protocol"
	case KindMarshal:
		return "marshal"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// ClientError is the typed error every command method fails with. It
// carries the layer, the failing operation, and for AMS/ADS failures the
// raw numeric code.
type ClientError struct {
	Kind      ErrorKind
	Operation string
	Err       error

	// Code is the raw AMS/ADS error code when Kind is KindAMS or KindADS.
	Code ads.Error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("adsclient: %s failed (%s): %v", e.Operation, e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the error is a local request timeout.
func (e *ClientError) IsTimeout() bool {
	return errors.Is(e.Err, transport.ErrRequestTimeout)
}

// ErrNotConnected is returned by operations invoked before Connect or after
// the connection was lost.
var ErrNotConnected = errors.New("adsclient: not connected")

func stateError(op string) error {
	return &ClientError{Kind: KindState, Operation: op, Err: ErrNotConnected}
}

func transportError(op string, err error) error {
	return &ClientError{Kind: KindTransport, Operation: op, Err: err}
}

func amsError(op string, code ads.Error) error {
	return &ClientError{Kind: KindAMS, Operation: op, Err: code, Code: code}
}

func adsError(op string, code ads.Error) error {
	return &ClientError{Kind: KindADS, Operation: op, Err: code, Code: code}
}

func protocolError(op string, err error) error {
	return &ClientError{Kind: KindProtocol, Operation: op, Err: err}
}

func marshalError(op string, err error) error {
	return &ClientError{Kind: KindMarshal, Operation: op, Err: err}
}

// IsSymbolNotFound reports whether the error chain carries the target's
// "symbol not found" code (1808).
func IsSymbolNotFound(err error) bool {
	return adsCode(err) == ads.ErrDeviceSymbolNotFound
}

// adsCode extracts the raw ADS error code from an error chain, or 0.
func adsCode(err error) ads.Error {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var code ads.Error
	if errors.As(err, &code) {
		return code
	}
	return ads.ErrNoError
}
