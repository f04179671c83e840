package adsclient

import (
	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/ams"
	"github.com/plcbus/adsclient/internal/marshal"
	"github.com/plcbus/adsclient/internal/symbols"
)

// Re-exported protocol types so callers never import internal packages.

// AdsState is the ADS state of a device.
type AdsState = ads.State

// ADS states.
const (
	AdsStateInvalid  = ads.StateInvalid
	AdsStateIdle     = ads.StateIdle
	AdsStateReset    = ads.StateReset
	AdsStateInit     = ads.StateInit
	AdsStateStart    = ads.StateStart
	AdsStateRun      = ads.StateRun
	AdsStateStop     = ads.StateStop
	AdsStateConfig   = ads.StateConfig
	AdsStateReconfig = ads.StateReconfig
	AdsStateError    = ads.StateError
	AdsStateShutdown = ads.StateShutdown
)

// ParseAdsState resolves an ADS state name case-insensitively ("Run",
// "config", ...).
func ParseAdsState(name string) (AdsState, error) {
	return ads.ParseState(name)
}

// AdsError is the raw numeric error code of the AMS/ADS layers.
type AdsError = ads.Error

// TransmissionMode selects how the target samples a subscription.
type TransmissionMode = ads.TransmissionMode

// Transmission modes.
const (
	TransServerCycle    = ads.TransServerCycle
	TransServerOnChange = ads.TransServerOnChange
)

// Router states.
const (
	RouterStateStop    = ams.RouterStateStop
	RouterStateStart   = ams.RouterStateStart
	RouterStateRemoved = ams.RouterStateRemoved
)

// Symbol is one top-level PLC variable descriptor.
type Symbol = symbols.Symbol

// DataType is a built, self-describing type tree node.
type DataType = symbols.DataType

// UploadInfo carries the symbol/type table counts and byte lengths.
type UploadInfo = symbols.UploadInfo

// EnumValue is an objectified enumeration value.
type EnumValue = marshal.EnumValue

// StringEncoding selects the STRING codec of the target.
type StringEncoding = marshal.StringEncoding

// String encodings.
const (
	EncodingCP1252 = marshal.EncodingCP1252
	EncodingUTF8   = marshal.EncodingUTF8
)

// Reserved ADS ports of interest.
const (
	PortSystemService uint16 = 10000
	PortTc2Plc1       uint16 = 801
	PortTc3Plc1       uint16 = 851
	PortTc3Plc2       uint16 = 852
)
