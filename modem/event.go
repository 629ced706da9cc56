package modem

import (
	"fmt"

	"i4.energy/across/espgw/at"
)

type EventType int

const (
	EvReady                 EventType = iota // Handshake finished, handler idle
	EvError                                  // Joining the AP or configuring the modem failed
	EvInitError                              // The initial AT was rejected
	EvConnectionEstablished                  // Link
	EvConnectionFailed                       // Link
	EvData                                   // Link, Data
	EvConnectionClosed                       // Link
	EvSendComplete                           // Link
	EvSendFailed                             // Link
	EvListenSuccess                          // IP, Port
	EvListenFailed                           // Port
	EvDisconnectFailed                       // Link
)

var eventNames = [...]string{
	EvReady:                 "Ready",
	EvError:                 "Error",
	EvInitError:             "InitError",
	EvConnectionEstablished: "ConnectionEstablished",
	EvConnectionFailed:      "ConnectionFailed",
	EvData:                  "Data",
	EvConnectionClosed:      "ConnectionClosed",
	EvSendComplete:          "SendComplete",
	EvSendFailed:            "SendFailed",
	EvListenSuccess:         "ListenSuccess",
	EvListenFailed:          "ListenFailed",
	EvDisconnectFailed:      "DisconnectFailed",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is reported to the application by the handler. Only the fields
// listed next to the event type are set.
//
// Data aliases the receive buffer when delivered by Handler.Message and is
// only valid during the callback. Modem copies it before queueing.
type Event struct {
	Type EventType
	Link uint32
	Data []byte
	IP   at.IPv4
	Port uint16
}
