package at

import (
	"bytes"
	"errors"
	"slices"
	"strconv"
)

var (
	// ErrIncomplete is returned by Scan when the input is a proper prefix of
	// some frame. The caller should keep every byte and scan again once more
	// input has arrived.
	ErrIncomplete = errors.New("at: incomplete frame")

	// ErrUnparseable is returned by Scan when no frame can start with the
	// input. The caller has to drop bytes to resynchronize, conventionally up
	// to and including the next '\n'.
	ErrUnparseable = errors.New("at: unparseable frame")
)

// Scan parses the frame at the start of data and returns the number of bytes
// it occupies. On error no bytes are consumed and the error is either
// ErrIncomplete or ErrUnparseable.
//
// Frames are tried in order: CRLF-terminated lines, +IPD data frames, the
// "> " send prompt and a bare CRLF. A +IPD frame is length-prefixed, so a
// CRLF inside its payload is never taken for a line end.
func Scan(data []byte) (int, Response, error) {
	return alt(data, frames)
}

type parser func(data []byte) (int, Response, error)

// alt returns the result of the first parser that does not reject data.
// An incomplete result ends the search: the frame it might become is
// undecided until more bytes arrive.
func alt(data []byte, parsers []parser) (int, Response, error) {
	for _, p := range parsers {
		n, resp, err := p(data)
		if err != ErrUnparseable {
			return n, resp, err
		}
	}
	return 0, nil, ErrUnparseable
}

var frames = []parser{
	scanLine,
	scanData,
	literals(
		literal{Prompt, RecvPrompt{}},
		literal{CRLF, Empty{}},
	),
}

var lines = slices.Concat(
	[]parser{literals(
		literal{"OK", OK},
		literal{"ERROR", Error},
		literal{"FAIL", Fail},
		literal{"busy s...", BusySending},
		literal{"busy p...", BusyProcessing},
	)},
	statusLines,
	commandLines,
	[]parser{prefixed("AT", echo)},
)

var statusLines = []parser{
	literals(
		literal{"ready", StatusReady},
		literal{"WIFI DISCONNECT", StatusWifiDisconnect},
		literal{"WIFI CONNECTED", StatusWifiConnected},
		literal{"WIFI GOT IP", StatusWifiGotIP},
		literal{"SEND OK", StatusSendOK},
	),
	prefixed("Recv ", recvBytes),
	prefixed("", linkStatus),
}

var commandLines = []parser{
	literals(literal{"No AP", NoAP{}}),
	prefixed("+CWJAP_CUR:", joinInfo),
	prefixed("+CWMODE:", func(c *cursor) (Response, error) {
		v, err := c.uint(32)
		return Mode{Mode: uint32(v)}, err
	}),
	prefixed("+CWJAP:", func(c *cursor) (Response, error) {
		v, err := c.uint(32)
		return JoinState{Code: uint32(v)}, err
	}),
	prefixed("+CIFSR:STAIP,", func(c *cursor) (Response, error) {
		ip, err := c.ipv4()
		return StationIP{IP: ip}, err
	}),
	prefixed("+CIFSR:STAMAC,", func(c *cursor) (Response, error) {
		mac, err := c.mac()
		return StationMAC{MAC: mac}, err
	}),
	prefixed("STATUS:", func(c *cursor) (Response, error) {
		v, err := c.uint(32)
		return ConnStatus{Code: uint32(v)}, err
	}),
	literals(
		literal{"ALREADY CONNECTED", AlreadyConnected{}},
		literal{"no change", NoChange{}},
	),
}

// scanLine parses a CRLF-terminated line frame.
func scanLine(data []byte) (int, Response, error) {
	n, resp, err := alt(data, lines)
	if err != nil {
		return 0, nil, err
	}
	c := cursor{data: data, off: n}
	if err := c.tag(CRLF); err != nil {
		return 0, nil, err
	}
	return c.off, resp, nil
}

// scanData parses +IPD,<link>,<len>:<payload>.
func scanData(data []byte) (int, Response, error) {
	c := cursor{data: data}
	if err := c.tag(DataTag + ","); err != nil {
		return 0, nil, err
	}
	link, err := c.uint(32)
	if err != nil {
		return 0, nil, err
	}
	if err := c.tag(","); err != nil {
		return 0, nil, err
	}
	size, err := c.uint(32)
	if err != nil {
		return 0, nil, err
	}
	if err := c.tag(":"); err != nil {
		return 0, nil, err
	}
	if uint64(len(c.rest())) < size {
		return 0, nil, ErrIncomplete
	}
	payload := c.rest()[:size]
	c.off += int(size)
	return c.off, Data{Link: uint32(link), Payload: payload}, nil
}

func recvBytes(c *cursor) (Response, error) {
	n, err := c.uint(32)
	if err != nil {
		return nil, err
	}
	if err := c.tag(" bytes"); err != nil {
		return nil, err
	}
	return RecvBytes{N: uint32(n)}, nil
}

// linkStatus parses <link>,CONNECT and <link>,CLOSED.
func linkStatus(c *cursor) (Response, error) {
	link, err := c.uint(32)
	if err != nil {
		return nil, err
	}
	if err := c.tag(","); err != nil {
		return nil, err
	}
	switch err := c.tag("CONNECT"); err {
	case nil:
		return Connect{Link: uint32(link)}, nil
	case ErrIncomplete:
		return nil, err
	}
	if err := c.tag("CLOSED"); err != nil {
		return nil, err
	}
	return Closed{Link: uint32(link)}, nil
}

func joinInfo(c *cursor) (Response, error) {
	var info JoinInfo
	var err error
	if info.SSID, err = c.quoted(); err != nil {
		return nil, err
	}
	if err := c.tag(","); err != nil {
		return nil, err
	}
	if info.BSSID, err = c.quoted(); err != nil {
		return nil, err
	}
	if err := c.tag(","); err != nil {
		return nil, err
	}
	if info.RSSI, err = c.int32(); err != nil {
		return nil, err
	}
	if err := c.tag(","); err != nil {
		return nil, err
	}
	if info.Channel, err = c.int32(); err != nil {
		return nil, err
	}
	return info, nil
}

// echo takes the rest of an echoed command line up to its CR.
func echo(c *cursor) (Response, error) {
	i := bytes.IndexByte(c.rest(), '\r')
	if i < 0 {
		return nil, ErrIncomplete
	}
	c.off += i
	return Echo{Line: c.data[:c.off]}, nil
}

type literal struct {
	tag  string
	resp Response
}

func literals(table ...literal) parser {
	return func(data []byte) (int, Response, error) {
		for _, l := range table {
			c := cursor{data: data}
			switch err := c.tag(l.tag); err {
			case nil:
				return c.off, l.resp, nil
			case ErrIncomplete:
				return 0, nil, err
			}
		}
		return 0, nil, ErrUnparseable
	}
}

// prefixed matches tag and hands the remainder to body.
func prefixed(tag string, body func(c *cursor) (Response, error)) parser {
	return func(data []byte) (int, Response, error) {
		c := cursor{data: data}
		if err := c.tag(tag); err != nil {
			return 0, nil, err
		}
		resp, err := body(&c)
		if err != nil {
			return 0, nil, err
		}
		return c.off, resp, nil
	}
}

// cursor is a read position in a partially received frame. Every method
// either consumes what it matched or leaves off untouched and reports
// ErrIncomplete or ErrUnparseable.
type cursor struct {
	data []byte
	off  int
}

func (c *cursor) rest() []byte {
	return c.data[c.off:]
}

func (c *cursor) tag(lit string) error {
	rest := c.rest()
	n := min(len(rest), len(lit))
	if string(rest[:n]) != lit[:n] {
		return ErrUnparseable
	}
	if n < len(lit) {
		return ErrIncomplete
	}
	c.off += n
	return nil
}

// run consumes one or more bytes accepted by fn. A run that reaches the end
// of the input is incomplete since the next byte may extend it.
func (c *cursor) run(fn func(byte) bool) ([]byte, error) {
	rest := c.rest()
	i := 0
	for i < len(rest) && fn(rest[i]) {
		i++
	}
	switch {
	case i == len(rest):
		return nil, ErrIncomplete
	case i == 0:
		return nil, ErrUnparseable
	}
	c.off += i
	return rest[:i], nil
}

func (c *cursor) uint(bits int) (uint64, error) {
	start := c.off
	digits, err := c.run(isDigit)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(digits), 10, bits)
	if err != nil {
		c.off = start
		return 0, ErrUnparseable
	}
	return v, nil
}

func (c *cursor) int32() (int32, error) {
	rest := c.rest()
	if len(rest) == 0 {
		return 0, ErrIncomplete
	}
	start := c.off
	if rest[0] == '-' {
		c.off++
	}
	if _, err := c.run(isDigit); err != nil {
		c.off = start
		return 0, err
	}
	v, err := strconv.ParseInt(string(c.data[start:c.off]), 10, 32)
	if err != nil {
		c.off = start
		return 0, ErrUnparseable
	}
	return int32(v), nil
}

func (c *cursor) hexByte() (byte, error) {
	start := c.off
	digits, err := c.run(isHexDigit)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(digits), 16, 8)
	if err != nil {
		c.off = start
		return 0, ErrUnparseable
	}
	return byte(v), nil
}

// quoted consumes a double-quoted string and returns its content with the
// backslash escapes left in place. Only \" and \\ are accepted.
func (c *cursor) quoted() ([]byte, error) {
	start := c.off
	if err := c.tag(`"`); err != nil {
		return nil, err
	}
	body := c.off
	for i := body; ; {
		if i >= len(c.data) {
			c.off = start
			return nil, ErrIncomplete
		}
		switch c.data[i] {
		case '"':
			c.off = i + 1
			return c.data[body:i], nil
		case '\\':
			if i+1 >= len(c.data) {
				c.off = start
				return nil, ErrIncomplete
			}
			if next := c.data[i+1]; next != '"' && next != '\\' {
				c.off = start
				return nil, ErrUnparseable
			}
			i += 2
		default:
			i++
		}
	}
}

func (c *cursor) ipv4() (IPv4, error) {
	var ip IPv4
	if err := c.tag(`"`); err != nil {
		return ip, err
	}
	for i := range ip {
		if i > 0 {
			if err := c.tag("."); err != nil {
				return ip, err
			}
		}
		v, err := c.uint(8)
		if err != nil {
			return ip, err
		}
		ip[i] = byte(v)
	}
	return ip, c.tag(`"`)
}

func (c *cursor) mac() (MAC, error) {
	var mac MAC
	if err := c.tag(`"`); err != nil {
		return mac, err
	}
	for i := range mac {
		if i > 0 {
			if err := c.tag(":"); err != nil {
				return mac, err
			}
		}
		b, err := c.hexByte()
		if err != nil {
			return mac, err
		}
		mac[i] = b
	}
	return mac, c.tag(`"`)
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || 'a' <= b && b <= 'f' || 'A' <= b && b <= 'F'
}
