package at

import "fmt"

// Response is a single frame produced by Scan. The set of implementations is
// closed; switch on the concrete type to dispatch:
//
//	Empty, Generic, Status, RecvBytes, Connect, Closed,
//	NoAP, Mode, JoinState, JoinInfo, StationIP, StationMAC, ConnStatus,
//	AlreadyConnected, NoChange, Data, Echo, RecvPrompt
//
// Byte slices inside a Response alias the buffer that was scanned.
type Response interface {
	response()
}

// Empty is a bare CRLF.
type Empty struct{}

// Generic is a final result code terminating a command.
type Generic uint8

const (
	OK Generic = iota
	Error
	Fail
	BusySending    // busy s...
	BusyProcessing // busy p...
)

func (g Generic) String() string {
	switch g {
	case OK:
		return "OK"
	case Error:
		return "ERROR"
	case Fail:
		return "FAIL"
	case BusySending:
		return "busy s..."
	case BusyProcessing:
		return "busy p..."
	}
	return fmt.Sprintf("Generic(%d)", uint8(g))
}

// Status is an asynchronous status line without arguments.
type Status uint8

const (
	StatusReady Status = iota
	StatusWifiDisconnect
	StatusWifiConnected
	StatusWifiGotIP
	StatusSendOK
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusWifiDisconnect:
		return "WIFI DISCONNECT"
	case StatusWifiConnected:
		return "WIFI CONNECTED"
	case StatusWifiGotIP:
		return "WIFI GOT IP"
	case StatusSendOK:
		return "SEND OK"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// RecvBytes reports how many bytes the modem accepted after a send prompt.
type RecvBytes struct {
	N uint32
}

// Connect reports that a link was opened.
type Connect struct {
	Link uint32
}

// Closed reports that a link was closed.
type Closed struct {
	Link uint32
}

// NoAP answers a join query when no access point is joined.
type NoAP struct{}

// Mode is the +CWMODE query result.
type Mode struct {
	Mode uint32
}

// JoinState is the +CWJAP:<n> error code of a failed join.
type JoinState struct {
	Code uint32
}

// JoinInfo is the +CWJAP_CUR query result. SSID and BSSID keep their
// backslash escapes.
type JoinInfo struct {
	SSID    []byte
	BSSID   []byte
	RSSI    int32
	Channel int32
}

// StationIP is the station address reported by +CIFSR.
type StationIP struct {
	IP IPv4
}

// StationMAC is the station hardware address reported by +CIFSR.
type StationMAC struct {
	MAC MAC
}

// ConnStatus is the STATUS:<n> line of +CIPSTATUS.
type ConnStatus struct {
	Code uint32
}

// AlreadyConnected is returned by +CIPSTART on a busy link id.
type AlreadyConnected struct{}

// NoChange is returned by +CIPSERVER when the server is already in the
// requested mode.
type NoChange struct{}

// Data is a +IPD frame.
type Data struct {
	Link    uint32
	Payload []byte
}

// Echo is a command line echoed back by the modem, without its CR.
type Echo struct {
	Line []byte
}

// RecvPrompt is the "> " prompt requesting the payload of a send.
type RecvPrompt struct{}

func (Empty) response()            {}
func (Generic) response()          {}
func (Status) response()           {}
func (RecvBytes) response()        {}
func (Connect) response()          {}
func (Closed) response()           {}
func (NoAP) response()             {}
func (Mode) response()             {}
func (JoinState) response()        {}
func (JoinInfo) response()         {}
func (StationIP) response()        {}
func (StationMAC) response()       {}
func (ConnStatus) response()       {}
func (AlreadyConnected) response() {}
func (NoChange) response()         {}
func (Data) response()             {}
func (Echo) response()             {}
func (RecvPrompt) response()       {}

// IPv4 is an IPv4 address in network order.
type IPv4 [4]byte

func (ip IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// MAC is a 48-bit hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
