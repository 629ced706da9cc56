package modem

import (
	"fmt"

	"i4.energy/across/espgw/at"
)

// StateKind enumerates the handler states.
type StateKind uint8

const (
	StateInitial StateKind = iota
	StateSetStationMode
	StateConnectingToAP
	StateQueryIP
	StateSetMux
	StateMakeConnection // Link is being opened
	StateSending        // Link is receiving the send buffer
	StateRequestListen  // Port is being opened for listening
	StateDisconnecting  // Link is being closed
	StateError
	StateIdle
)

var stateNames = [...]string{
	StateInitial:        "Initial",
	StateSetStationMode: "SetStationMode",
	StateConnectingToAP: "ConnectingToAP",
	StateQueryIP:        "QueryIP",
	StateSetMux:         "SetMux",
	StateMakeConnection: "MakeConnection",
	StateSending:        "Sending",
	StateRequestListen:  "RequestListen",
	StateDisconnecting:  "Disconnecting",
	StateError:          "Error",
	StateIdle:           "Idle",
}

func (k StateKind) String() string {
	if int(k) < len(stateNames) {
		return stateNames[k]
	}
	return fmt.Sprintf("StateKind(%d)", uint8(k))
}

// State is the handler state together with the link or port it concerns.
type State struct {
	Kind StateKind
	Link uint32
	Port uint16
}

func (s State) String() string {
	switch s.Kind {
	case StateMakeConnection, StateSending, StateDisconnecting:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Link)
	case StateRequestListen:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Port)
	}
	return s.Kind.String()
}

// WifiState tracks the association with the access point. It changes on
// WIFI status lines in any handler state.
type WifiState uint8

const (
	WifiUnknown WifiState = iota
	WifiDisconnected
	WifiConnected
	WifiGotIP
)

func (w WifiState) String() string {
	switch w {
	case WifiUnknown:
		return "unknown"
	case WifiDisconnected:
		return "disconnected"
	case WifiConnected:
		return "connected"
	case WifiGotIP:
		return "got-ip"
	}
	return fmt.Sprintf("WifiState(%d)", uint8(w))
}

// Snapshot is a copy of the handler's observable state.
type Snapshot struct {
	State    State
	Wifi     WifiState
	IP       at.IPv4
	HasIP    bool
	MAC      at.MAC
	HasMAC   bool
	Links    [MaxLinks]bool
	Buffered int
}
