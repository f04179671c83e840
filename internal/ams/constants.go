package ams

// AMS/TCP header command values. Every frame on the socket starts with a
// 6-byte AMS/TCP header whose command selects between ADS traffic and the
// router control protocol.
const (
	// TCPCommandADS carries an AMS header plus ADS payload.
	TCPCommandADS uint16 = 0x0000

	// TCPCommandPortClose releases the registered AMS port.
	TCPCommandPortClose uint16 = 0x0001

	// TCPCommandPortConnect registers an AMS port with the router.
	// Payload: requested port (u16, 0 = router-assigned). The reply carries
	// the assigned NetID (6 bytes) and port (u16).
	TCPCommandPortConnect uint16 = 0x1000

	// TCPCommandRouterNote is an unsolicited router state notification.
	// Payload: router state (u32).
	TCPCommandRouterNote uint16 = 0x1001

	// TCPCommandGetLocalNetID requests the router's local NetID.
	TCPCommandGetLocalNetID uint16 = 0x1002
)

// RouterState represents the state of the local AMS router.
type RouterState uint32

const (
	RouterStateStop    RouterState = 0
	RouterStateStart   RouterState = 1
	RouterStateRemoved RouterState = 2
)

func (s RouterState) String() string {
	switch s {
	case RouterStateStop:
		return "stop"
	case RouterStateStart:
		return "start"
	case RouterStateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// State flag bits for the StateFlags field in the AMS header.
const (
	// StateFlagResponse indicates a response packet (bit 0).
	// 0 = Request, 1 = Response
	StateFlagResponse uint16 = 0x0001

	// StateFlagADS must be set for ADS commands (bit 2).
	StateFlagADS uint16 = 0x0004

	// StateFlagUDP indicates UDP protocol (bit 7).
	StateFlagUDP uint16 = 0x0080
)

// Predefined state flag combinations for common use cases.
const (
	// StateFlagsTCPRequest represents a TCP request (0x0004).
	StateFlagsTCPRequest = StateFlagADS

	// StateFlagsTCPResponse represents a TCP response (0x0005).
	StateFlagsTCPResponse = StateFlagADS | StateFlagResponse
)

// Common AMS port numbers used by TwinCAT runtimes.
const (
	PortRouter        Port = 1     // AMS Router
	PortLogger        Port = 100   // Logger
	PortEventLogger   Port = 110   // EventLogger
	PortIO            Port = 300   // I/O
	PortNC            Port = 500   // NC
	PortTC2PLC1       Port = 801   // TwinCAT 2 PLC runtime 1
	PortTC2PLC2       Port = 811   // TwinCAT 2 PLC runtime 2
	PortPLCRuntime1   Port = 851   // TwinCAT 3 PLC runtime 1
	PortPLCRuntime2   Port = 852   // TwinCAT 3 PLC runtime 2
	PortPLCRuntime3   Port = 853   // TwinCAT 3 PLC runtime 3
	PortPLCRuntime4   Port = 854   // TwinCAT 3 PLC runtime 4
	PortSystemService Port = 10000 // System Service
)

// DefaultRouterTCPPort is the TCP port the AMS router listens on.
const DefaultRouterTCPPort = 48898
