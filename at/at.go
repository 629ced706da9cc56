// Package at implements the wire format spoken by ESP8266/ESP8285 AT firmware:
// an incremental frame scanner for the modem's output and encoders for the
// commands sent to it.
package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "

	// DataTag starts a binary +IPD frame: +IPD,<link>,<len>:<payload>
	DataTag = "+IPD"
)

// Commands sent by the network handler.
const (
	CmdAt          = "AT\r\n"
	CmdEchoOff     = "ATE0\r\n"
	CmdStationMode = "AT+CWMODE_CUR=1\r\n"
	CmdQueryIP     = "AT+CIFSR\r\n"
	CmdMux         = "AT+CIPMUX=1\r\n"

	cmdJoin   = "AT+CWJAP_CUR="
	cmdStart  = "AT+CIPSTART="
	cmdSend   = "AT+CIPSEND="
	cmdServer = "AT+CIPSERVER=1,"
	cmdClose  = "AT+CIPCLOSE="
)

// ConnectionType selects the protocol of a multiplexed link.
type ConnectionType uint8

const (
	TCP ConnectionType = iota
	UDP
	SSL
)

func (t ConnectionType) String() string {
	switch t {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	case SSL:
		return "SSL"
	}
	return "UNKNOWN"
}

// ParseConnectionType maps "TCP", "UDP" or "SSL" to a ConnectionType.
func ParseConnectionType(s string) (ConnectionType, bool) {
	switch s {
	case "TCP", "tcp":
		return TCP, true
	case "UDP", "udp":
		return UDP, true
	case "SSL", "ssl":
		return SSL, true
	}
	return 0, false
}
