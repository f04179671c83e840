package ads

import "fmt"

// Error is an ADS/AMS error code as returned in an AMS header or at the
// start of an ADS response payload. The zero value means success.
type Error uint32

// General and router errors.
const (
	ErrNoError               Error = 0x0000
	ErrInternal              Error = 0x0001
	ErrNoRuntime             Error = 0x0002
	ErrAllocLockedMem        Error = 0x0003
	ErrInsertMailbox         Error = 0x0004
	ErrWrongHMsg             Error = 0x0005
	ErrTargetPortNotFound    Error = 0x0006
	ErrTargetMachineNotFound Error = 0x0007
	ErrUnknownCmdID          Error = 0x0008
	ErrBadTaskID             Error = 0x0009
	ErrNoIO                  Error = 0x000A
	ErrUnknownAmsCmd         Error = 0x000B
	ErrWin32Error            Error = 0x000C
	ErrPortNotConnected      Error = 0x000D
	ErrInvalidAmsLength      Error = 0x000E
	ErrInvalidAmsNetID       Error = 0x000F
	ErrLowInstLevel          Error = 0x0010
	ErrNoDebugAvailable      Error = 0x0011
	ErrPortDisabled          Error = 0x0012
	ErrPortAlreadyConnected  Error = 0x0013
	ErrAmsSyncW32Error       Error = 0x0014
	ErrAmsSyncTimeout        Error = 0x0015
	ErrAmsSyncAmsError       Error = 0x0016
	ErrAmsSyncNoIndexMap     Error = 0x0017
	ErrInvalidAmsPort        Error = 0x0018
	ErrNoMemory              Error = 0x0019
	ErrTCPSend               Error = 0x001A
	ErrHostUnreachable       Error = 0x001B
	ErrInvalidAmsFragment    Error = 0x001C
	ErrTLSSend               Error = 0x001D
	ErrAccessDenied          Error = 0x001E

	ErrRouterNoLockedMem      Error = 0x0500
	ErrRouterResizeMem        Error = 0x0501
	ErrRouterMailboxFull      Error = 0x0502
	ErrRouterDebugboxFull     Error = 0x0503
	ErrRouterUnknownPortType  Error = 0x0504
	ErrRouterNotInitialized   Error = 0x0505
	ErrRouterPortRemoved      Error = 0x0506
	ErrRouterPortNotOpen      Error = 0x0507
	ErrRouterPortOpen         Error = 0x0508
	ErrRouterPortConnected    Error = 0x0509
	ErrRouterPortNotConnected Error = 0x050A
	ErrRouterNoSendQueue      Error = 0x050B
)

// Device errors (returned by the ADS target itself).
const (
	ErrDeviceError               Error = 0x0700
	ErrDeviceSrvNotSupported     Error = 0x0701
	ErrDeviceInvalidGroup        Error = 0x0702
	ErrDeviceInvalidOffset       Error = 0x0703
	ErrDeviceInvalidAccess       Error = 0x0704
	ErrDeviceInvalidSize         Error = 0x0705
	ErrDeviceInvalidData         Error = 0x0706
	ErrDeviceNotReady            Error = 0x0707
	ErrDeviceBusy                Error = 0x0708
	ErrDeviceInvalidContext      Error = 0x0709
	ErrDeviceNoMemory            Error = 0x070A
	ErrDeviceInvalidParam        Error = 0x070B
	ErrDeviceNotFound            Error = 0x070C
	ErrDeviceSyntax              Error = 0x070D
	ErrDeviceIncompatible        Error = 0x070E
	ErrDeviceExists              Error = 0x070F
	ErrDeviceSymbolNotFound      Error = 0x0710
	ErrDeviceSymbolVersionMisuse Error = 0x0711
	ErrDeviceInvalidState        Error = 0x0712
	ErrDeviceTransModeNotSupp    Error = 0x0713
	ErrDeviceNotifyHandleInvalid Error = 0x0714
	ErrDeviceClientUnknown       Error = 0x0715
	ErrDeviceNoMoreHandles       Error = 0x0716
	ErrDeviceInvalidWatchSize    Error = 0x0717
	ErrDeviceNotInitialized      Error = 0x0718
	ErrDeviceTimeout             Error = 0x0719
	ErrDeviceNoInterface         Error = 0x071A
	ErrDeviceInvalidInterface    Error = 0x071B
	ErrDeviceInvalidClsID        Error = 0x071C
	ErrDeviceInvalidObjID        Error = 0x071D
	ErrDevicePending             Error = 0x071E
	ErrDeviceAborted             Error = 0x071F
	ErrDeviceWarning             Error = 0x0720
	ErrDeviceInvalidArrayIdx     Error = 0x0721
	ErrDeviceSymbolNotActive     Error = 0x0722
	ErrDeviceAccessDenied        Error = 0x0723
	ErrDeviceException           Error = 0x072D
)

// Client-local sentinel codes. These never appear on the wire; they are
// synthesised by the dispatcher for local failures.
const (
	ErrClientError          Error = 0x0F00
	ErrClientInvalidParam   Error = 0x0F01
	ErrClientListEmpty      Error = 0x0F02
	ErrClientVarUsed        Error = 0x0F03
	ErrClientDuplicateInvok Error = 0x0F04
	ErrClientSyncTimeout    Error = 0x0F05
	ErrClientW32Error       Error = 0x0F06
	ErrClientTimeoutInvalid Error = 0x0F07
	ErrClientPortNotOpen    Error = 0x0F08
	ErrClientNoAmsAddr      Error = 0x0F09
)

var errorNames = map[Error]string{
	ErrNoError:               "No error",
	ErrInternal:              "Internal error",
	ErrNoRuntime:             "No real-time runtime",
	ErrAllocLockedMem:        "Allocation of locked memory failed",
	ErrInsertMailbox:         "Mailbox full, message could not be inserted",
	ErrWrongHMsg:             "Wrong HMSG",
	ErrTargetPortNotFound:    "Target port not found",
	ErrTargetMachineNotFound: "Target machine not found",
	ErrUnknownCmdID:          "Unknown command ID",
	ErrBadTaskID:             "Invalid task ID",
	ErrNoIO:                  "No IO",
	ErrUnknownAmsCmd:         "Unknown AMS command",
	ErrWin32Error:            "Win32 error",
	ErrPortNotConnected:      "Port not connected",
	ErrInvalidAmsLength:      "Invalid AMS length",
	ErrInvalidAmsNetID:       "Invalid AMS NetID",
	ErrLowInstLevel:          "Installation level too low",
	ErrNoDebugAvailable:      "No debugging available",
	ErrPortDisabled:          "Port disabled",
	ErrPortAlreadyConnected:  "Port already connected",
	ErrAmsSyncW32Error:       "AMS sync Win32 error",
	ErrAmsSyncTimeout:        "AMS sync timeout",
	ErrAmsSyncAmsError:       "AMS sync error",
	ErrAmsSyncNoIndexMap:     "No index map for AMS sync available",
	ErrInvalidAmsPort:        "Invalid AMS port",
	ErrNoMemory:              "No memory",
	ErrTCPSend:               "TCP send error",
	ErrHostUnreachable:       "Host unreachable",
	ErrInvalidAmsFragment:    "Invalid AMS fragment",
	ErrTLSSend:               "TLS send error",
	ErrAccessDenied:          "Access denied",

	ErrRouterNoLockedMem:      "Router: no locked memory",
	ErrRouterResizeMem:        "Router: memory resize failed",
	ErrRouterMailboxFull:      "Router: mailbox full",
	ErrRouterDebugboxFull:     "Router: debug mailbox full",
	ErrRouterUnknownPortType:  "Router: unknown port type",
	ErrRouterNotInitialized:   "Router: not initialized",
	ErrRouterPortRemoved:      "Router: port removed",
	ErrRouterPortNotOpen:      "Router: port not open",
	ErrRouterPortOpen:         "Router: port already open",
	ErrRouterPortConnected:    "Router: port already connected",
	ErrRouterPortNotConnected: "Router: port not connected",
	ErrRouterNoSendQueue:      "Router: no send queue",

	ErrDeviceError:               "Device error",
	ErrDeviceSrvNotSupported:     "Service not supported by device",
	ErrDeviceInvalidGroup:        "Invalid index group",
	ErrDeviceInvalidOffset:       "Invalid index offset",
	ErrDeviceInvalidAccess:       "Reading or writing not permitted",
	ErrDeviceInvalidSize:         "Invalid parameter size",
	ErrDeviceInvalidData:         "Invalid data values",
	ErrDeviceNotReady:            "Device not in a ready state",
	ErrDeviceBusy:                "Device busy",
	ErrDeviceInvalidContext:      "Invalid context",
	ErrDeviceNoMemory:            "Out of memory",
	ErrDeviceInvalidParam:        "Invalid parameter values",
	ErrDeviceNotFound:            "Not found (files, ...)",
	ErrDeviceSyntax:              "Syntax error in command or file",
	ErrDeviceIncompatible:        "Objects do not match",
	ErrDeviceExists:              "Object already exists",
	ErrDeviceSymbolNotFound:      "Symbol not found",
	ErrDeviceSymbolVersionMisuse: "Symbol version invalid, create a new handle",
	ErrDeviceInvalidState:        "Device in invalid state",
	ErrDeviceTransModeNotSupp:    "AdsTransMode not supported",
	ErrDeviceNotifyHandleInvalid: "Notification handle invalid",
	ErrDeviceClientUnknown:       "Notification client not registered",
	ErrDeviceNoMoreHandles:       "No more notification handles",
	ErrDeviceInvalidWatchSize:    "Notification size too large",
	ErrDeviceNotInitialized:      "Device not initialized",
	ErrDeviceTimeout:             "Device has a timeout",
	ErrDeviceNoInterface:         "Query interface failed",
	ErrDeviceInvalidInterface:    "Wrong interface required",
	ErrDeviceInvalidClsID:        "Class ID invalid",
	ErrDeviceInvalidObjID:        "Object ID invalid",
	ErrDevicePending:             "Request pending",
	ErrDeviceAborted:             "Request aborted",
	ErrDeviceWarning:             "Signal warning",
	ErrDeviceInvalidArrayIdx:     "Invalid array index",
	ErrDeviceSymbolNotActive:     "Symbol not active, release handle and try again",
	ErrDeviceAccessDenied:        "Access denied",
	ErrDeviceException:           "Exception in device occurred",

	ErrClientError:          "Client error",
	ErrClientSyncTimeout:    "Timeout elapsed",
	ErrClientPortNotOpen:    "Port not opened",
	ErrClientNoAmsAddr:      "No AMS address",
	ErrClientInvalidParam:   "Invalid parameter",
	ErrClientListEmpty:      "List is empty",
	ErrClientVarUsed:        "Variable connection already in use",
	ErrClientDuplicateInvok: "Invoke ID in use",
	ErrClientW32Error:       "Internal error in ADS sync",
	ErrClientTimeoutInvalid: "Timeout value not valid",
}

func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return fmt.Sprintf("ADS error 0x%04X: %s", uint32(e), name)
	}
	return fmt.Sprintf("ADS error 0x%04X", uint32(e))
}

// IsError returns true for any non-success code.
func (e Error) IsError() bool {
	return e != ErrNoError
}
