// Package ams implements AMS (Automation Message Specification) addressing
// and header handling for the AMS/TCP wire protocol.
package ams

import (
	"fmt"
	"strconv"
	"strings"
)

// NetID represents a 6-byte AMS NetID address (e.g., 192.168.1.100.1.1).
// Each byte is stored separately and has no direct relation to IP addresses.
type NetID [6]byte

// Loopback is the AMS loopback NetID. Frames addressed to it are always
// accepted regardless of the locally registered NetID.
var Loopback = NetID{127, 0, 0, 1, 1, 1}

// String returns the dot-separated string representation of the NetID.
func (n NetID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d", n[0], n[1], n[2], n[3], n[4], n[5])
}

// IsZero returns true if the NetID is all zeros.
func (n NetID) IsZero() bool {
	return n == NetID{}
}

// ParseNetID parses a dot-separated AMS NetID string ("a.b.c.d.e.f").
// The hostname "localhost" is canonicalised to 127.0.0.1.1.1.
func ParseNetID(s string) (NetID, error) {
	var netID NetID

	if s == "" {
		return netID, fmt.Errorf("ams: empty AMS NetID")
	}
	if strings.EqualFold(s, "localhost") {
		return Loopback, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return netID, fmt.Errorf("ams: invalid AMS NetID format: %q (expected a.b.c.d.e.f)", s)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netID, fmt.Errorf("ams: invalid AMS NetID component %q: %w", part, err)
		}
		netID[i] = byte(val)
	}

	return netID, nil
}

// NetIDFromIP creates an AMS NetID from an IPv4 address using the common
// IP.1.1 convention (e.g., 192.168.1.100.1.1). A trailing ":port" is ignored.
func NetIDFromIP(ip string) (NetID, error) {
	var netID NetID

	if idx := strings.Index(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return netID, fmt.Errorf("ams: invalid IP address: %q", ip)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netID, fmt.Errorf("ams: invalid IP address component: %w", err)
		}
		netID[i] = byte(val)
	}

	netID[4] = 1
	netID[5] = 1

	return netID, nil
}

// Port represents a 2-byte AMS port identifier.
type Port uint16

// Address combines an AMS NetID and an ADS port. It identifies one endpoint
// in the AMS space and is used as the key for routing notifications.
type Address struct {
	NetID NetID
	Port  Port
}

// String returns "a.b.c.d.e.f:port".
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.NetID, a.Port)
}
