package modem

import (
	"fmt"
	"io"
	"log/slog"

	"i4.energy/across/espgw/at"
)

const (
	// SendBufferSize is the largest payload a single AT+CIPSEND accepts.
	SendBufferSize = 2048
	// MaxLinks is the number of multiplexed connections.
	MaxLinks = 5
)

// Handler drives an ESP8266/ESP8285 modem through AP association and
// multiplexed connections. It consumes scanned frames via Message and writes
// commands to the modem.
//
// Three pieces of state are tracked independently: the handler State, which
// only moves on final results of the command in flight; the WifiState; and
// the table of links in use, which follows the modem's CONNECT and CLOSED
// lines.
//
// A Handler is not safe for concurrent use. Message and the operations must
// be called from the same goroutine; Modem provides that goroutine.
type Handler struct {
	w      io.Writer
	logger *slog.Logger

	state State
	wifi  WifiState

	ip     at.IPv4
	hasIP  bool
	mac    at.MAC
	hasMAC bool

	// Borrowed credentials
	apName []byte
	apPass []byte

	txbuf [SendBufferSize]byte
	txn   int

	links   [MaxLinks]bool
	reserve bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger receiving the wire trace and state changes.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLinkReservation marks a link as used as soon as Connect issues the
// command rather than when the modem reports <link>,CONNECT. The link is
// released again on ConnectionFailed.
func WithLinkReservation() HandlerOption {
	return func(h *Handler) {
		h.reserve = true
	}
}

// NewHandler creates a handler writing commands to w. apName and apPass are
// retained, not copied.
func NewHandler(w io.Writer, apName, apPass []byte, opts ...HandlerOption) *Handler {
	h := &Handler{
		w:      w,
		logger: slog.New(slog.DiscardHandler),
		apName: apName,
		apPass: apPass,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins the handshake by checking that the modem responds. With echo
// false the first command is ATE0, which also disables command echo.
//
// Start is valid in the Initial and Idle states, and in Error to restart a
// failed handshake. From Initial and Error the handler returns to Initial and
// runs the full handshake. From Idle only the command is written: the modem is
// checked for liveness, the state stays Idle and the reply is ignored.
func (h *Handler) Start(echo bool) error {
	switch h.state.Kind {
	case StateInitial, StateIdle, StateError:
	default:
		return h.invalid("start")
	}

	cmd := at.CmdEchoOff
	if echo {
		cmd = at.CmdAt
	}
	if err := h.writeCommand("start", []byte(cmd)); err != nil {
		return err
	}
	if h.state.Kind != StateIdle {
		h.setState(State{Kind: StateInitial})
	}
	return nil
}

// Message handles one frame from the modem. emit is called synchronously for
// every event the frame produces; it may be nil.
//
// The returned error is always a *WriteError from a command the frame
// triggered.
func (h *Handler) Message(resp at.Response, emit func(Event)) error {
	if emit == nil {
		emit = func(Event) {}
	}
	h.trace(resp)

	if err := h.step(resp, emit); err != nil {
		return err
	}
	h.observe(resp, emit)
	return nil
}

// step advances the handshake or the operation in flight.
func (h *Handler) step(resp at.Response, emit func(Event)) error {
	ok := resp == at.OK
	failed := resp == at.Error || resp == at.Fail

	switch h.state.Kind {
	case StateInitial:
		switch {
		case ok:
			h.logger.Info("modem responding, configuring station mode")
			if err := h.writeCommand("set station mode", []byte(at.CmdStationMode)); err != nil {
				return err
			}
			h.setState(State{Kind: StateSetStationMode})
		case failed:
			h.logger.Error("initial AT failed", "response", resp)
			h.setState(State{Kind: StateError})
			emit(Event{Type: EvInitError})
		}

	case StateSetStationMode:
		switch {
		case ok:
			h.logger.Info("station mode set, joining access point", "ssid", string(h.apName))
			if err := h.writeCommand("join access point", at.JoinCommand(h.apName, h.apPass)); err != nil {
				return err
			}
			h.setState(State{Kind: StateConnectingToAP})
		case failed:
			h.fail("set station mode", resp, emit)
		}

	case StateConnectingToAP:
		switch {
		case ok:
			if h.wifi != WifiGotIP {
				h.logger.Warn("joined access point without an IP yet", "wifi", h.wifi)
			}
			h.logger.Info("joined access point, querying address")
			if err := h.writeCommand("query address", []byte(at.CmdQueryIP)); err != nil {
				return err
			}
			h.setState(State{Kind: StateQueryIP})
		case failed:
			h.fail("join access point", resp, emit)
		}

	case StateQueryIP:
		switch {
		case ok:
			if err := h.writeCommand("enable multiplexing", []byte(at.CmdMux)); err != nil {
				return err
			}
			h.setState(State{Kind: StateSetMux})
		case failed:
			h.fail("query address", resp, emit)
		}

	case StateSetMux:
		switch {
		case ok:
			h.logger.Info("modem ready", "ip", h.ip, "mac", h.mac)
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvReady})
		case failed:
			h.fail("enable multiplexing", resp, emit)
		}

	case StateMakeConnection:
		link := h.state.Link
		switch {
		case ok:
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvConnectionEstablished, Link: link})
		case failed:
			if h.reserve {
				h.links[link] = false
			}
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvConnectionFailed, Link: link})
		}

	case StateSending:
		link := h.state.Link
		switch {
		case failed:
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvSendFailed, Link: link})
		case resp == at.RecvPrompt{}:
			if _, err := h.w.Write(h.txbuf[:h.txn]); err != nil {
				return &WriteError{Op: "send payload", Err: err}
			}
			h.logger.Debug("payload written", "link", link, "bytes", h.txn)
			h.txn = 0
		case resp == at.StatusSendOK:
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvSendComplete, Link: link})
		}

	case StateRequestListen:
		port := h.state.Port
		switch {
		case ok:
			if !h.hasIP {
				h.logger.Warn("listening without a known address", "port", port)
			}
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvListenSuccess, IP: h.ip, Port: port})
		case failed:
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvListenFailed, Port: port})
		}

	case StateDisconnecting:
		link := h.state.Link
		switch {
		case ok:
			h.setState(State{Kind: StateIdle})
		case failed:
			h.setState(State{Kind: StateIdle})
			emit(Event{Type: EvDisconnectFailed, Link: link})
		}
	}
	return nil
}

// observe applies the updates that hold in every state.
func (h *Handler) observe(resp at.Response, emit func(Event)) {
	switch r := resp.(type) {
	case at.Status:
		switch r {
		case at.StatusWifiDisconnect:
			h.logger.Info("disconnected from access point")
			h.wifi = WifiDisconnected
			h.hasIP = false
			h.hasMAC = false
		case at.StatusWifiConnected:
			h.logger.Info("connected to access point")
			h.wifi = WifiConnected
		case at.StatusWifiGotIP:
			h.logger.Info("got IP")
			h.wifi = WifiGotIP
		}

	case at.Connect:
		if !validLink(r.Link) {
			h.logger.Warn("ignoring CONNECT for unknown link", "link", r.Link)
			return
		}
		h.links[r.Link] = true

	case at.Closed:
		if !validLink(r.Link) {
			h.logger.Warn("ignoring CLOSED for unknown link", "link", r.Link)
			return
		}
		h.links[r.Link] = false
		emit(Event{Type: EvConnectionClosed, Link: r.Link})

	case at.StationIP:
		h.ip, h.hasIP = r.IP, true
		h.logger.Info("queried IP", "ip", r.IP)

	case at.StationMAC:
		h.mac, h.hasMAC = r.MAC, true
		h.logger.Info("queried MAC", "mac", r.MAC)

	case at.Data:
		emit(Event{Type: EvData, Link: r.Link, Data: r.Payload})
	}
}

// Connect opens a connection to host:port on the lowest free link id and
// returns that id. The outcome is reported as ConnectionEstablished or
// ConnectionFailed.
//
// Link ids are taken from the table maintained from the modem's CONNECT
// lines, which arrive asynchronously. Two Connect calls made before the first
// CONNECT is seen may pick the same id unless the handler was created with
// WithLinkReservation.
func (h *Handler) Connect(typ at.ConnectionType, host []byte, port uint16) (uint32, error) {
	if err := h.expectIdle("connect"); err != nil {
		return 0, err
	}
	link, ok := h.freeLink()
	if !ok {
		return 0, ErrNoFreeLink
	}

	if err := h.writeCommand("connect", at.StartCommand(link, typ, host, port)); err != nil {
		return 0, err
	}
	if h.reserve {
		h.links[link] = true
	}
	h.setState(State{Kind: StateMakeConnection, Link: link})
	return link, nil
}

// Write appends p to the send buffer. It fails without buffering anything if
// p does not fit in the remaining space.
func (h *Handler) Write(p []byte) (int, error) {
	if err := h.expectIdle("write"); err != nil {
		return 0, err
	}
	if h.txn+len(p) > SendBufferSize {
		return 0, ErrSendBufferFull
	}
	h.txn += copy(h.txbuf[h.txn:], p)
	return len(p), nil
}

// Reset discards the send buffer.
func (h *Handler) Reset() error {
	if err := h.expectIdle("reset"); err != nil {
		return err
	}
	h.txn = 0
	return nil
}

// Send transmits the send buffer on link. The buffer is written when the
// modem prompts for it; the outcome is reported as SendComplete or
// SendFailed.
func (h *Handler) Send(link uint32) error {
	if err := h.expectIdle("send"); err != nil {
		return err
	}
	if !validLink(link) {
		return fmt.Errorf("send on link %d: %w", link, ErrInvalidLink)
	}

	if err := h.writeCommand("send", at.SendCommand(link, h.txn)); err != nil {
		return err
	}
	h.setState(State{Kind: StateSending, Link: link})
	return nil
}

// Listen starts a server on port. The outcome is reported as ListenSuccess,
// carrying the last queried station address, or ListenFailed.
func (h *Handler) Listen(port uint16) error {
	if err := h.expectIdle("listen"); err != nil {
		return err
	}

	if err := h.writeCommand("listen", at.ServerCommand(port)); err != nil {
		return err
	}
	h.setState(State{Kind: StateRequestListen, Port: port})
	return nil
}

// Disconnect closes link. Success is reported by the modem's CLOSED line as
// ConnectionClosed; a rejected close as DisconnectFailed.
func (h *Handler) Disconnect(link uint32) error {
	if err := h.expectIdle("disconnect"); err != nil {
		return err
	}
	if !validLink(link) {
		return fmt.Errorf("disconnect link %d: %w", link, ErrInvalidLink)
	}

	if err := h.writeCommand("disconnect", at.CloseCommand(link)); err != nil {
		return err
	}
	h.setState(State{Kind: StateDisconnecting, Link: link})
	return nil
}

// State returns the current handler state.
func (h *Handler) State() State {
	return h.state
}

// Wifi returns the access point association state.
func (h *Handler) Wifi() WifiState {
	return h.wifi
}

// IP returns the last queried station address.
func (h *Handler) IP() (at.IPv4, bool) {
	return h.ip, h.hasIP
}

// MAC returns the last queried station hardware address.
func (h *Handler) MAC() (at.MAC, bool) {
	return h.mac, h.hasMAC
}

// Links returns which link ids are in use.
func (h *Handler) Links() [MaxLinks]bool {
	return h.links
}

// Buffered returns the number of bytes waiting in the send buffer.
func (h *Handler) Buffered() int {
	return h.txn
}

// Snapshot returns a copy of the observable state.
func (h *Handler) Snapshot() Snapshot {
	return Snapshot{
		State:    h.state,
		Wifi:     h.wifi,
		IP:       h.ip,
		HasIP:    h.hasIP,
		MAC:      h.mac,
		HasMAC:   h.hasMAC,
		Links:    h.links,
		Buffered: h.txn,
	}
}

func (h *Handler) fail(step string, resp at.Response, emit func(Event)) {
	h.logger.Error("handshake failed", "step", step, "response", resp)
	h.setState(State{Kind: StateError})
	emit(Event{Type: EvError})
}

func (h *Handler) freeLink() (uint32, bool) {
	for i, used := range h.links {
		if !used {
			return uint32(i), true
		}
	}
	return 0, false
}

func (h *Handler) expectIdle(op string) error {
	if h.state.Kind != StateIdle {
		return h.invalid(op)
	}
	return nil
}

func (h *Handler) invalid(op string) error {
	return fmt.Errorf("%s in state %s: %w", op, h.state, ErrInvalidState)
}

func (h *Handler) writeCommand(op string, cmd []byte) error {
	if _, err := h.w.Write(cmd); err != nil {
		return &WriteError{Op: op, Err: err}
	}
	return nil
}

func (h *Handler) setState(s State) {
	if s != h.state {
		h.logger.Debug("state change", "from", h.state, "to", s)
	}
	h.state = s
}

func (h *Handler) trace(resp at.Response) {
	switch r := resp.(type) {
	case at.Echo:
		h.logger.Debug("→", "echo", string(r.Line))
	case at.Data:
		h.logger.Debug("←", "data", r.Link, "bytes", len(r.Payload))
	case at.Empty:
	default:
		h.logger.Debug("←", "response", resp)
	}
}

func validLink(link uint32) bool {
	return link < MaxLinks
}
