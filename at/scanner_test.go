package at_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/espgw/at"
)

var frameTests = []struct {
	name  string
	input string
	want  at.Response
}{
	{name: "OK", input: "OK\r\n", want: at.OK},
	{name: "ERROR", input: "ERROR\r\n", want: at.Error},
	{name: "FAIL", input: "FAIL\r\n", want: at.Fail},
	{name: "busy sending", input: "busy s...\r\n", want: at.BusySending},
	{name: "busy processing", input: "busy p...\r\n", want: at.BusyProcessing},
	{name: "ready", input: "ready\r\n", want: at.StatusReady},
	{name: "wifi disconnect", input: "WIFI DISCONNECT\r\n", want: at.StatusWifiDisconnect},
	{name: "wifi connected", input: "WIFI CONNECTED\r\n", want: at.StatusWifiConnected},
	{name: "wifi got ip", input: "WIFI GOT IP\r\n", want: at.StatusWifiGotIP},
	{name: "send ok", input: "SEND OK\r\n", want: at.StatusSendOK},
	{name: "recv bytes", input: "Recv 1460 bytes\r\n", want: at.RecvBytes{N: 1460}},
	{name: "link connect", input: "3,CONNECT\r\n", want: at.Connect{Link: 3}},
	{name: "link closed", input: "4,CLOSED\r\n", want: at.Closed{Link: 4}},
	{name: "mode", input: "+CWMODE:1\r\n", want: at.Mode{Mode: 1}},
	{name: "join state", input: "+CWJAP:3\r\n", want: at.JoinState{Code: 3}},
	{
		name:  "join info keeps escapes",
		input: `+CWJAP_CUR:"my\"ap\\","aa:bb:cc:dd:ee:ff",-62,11` + "\r\n",
		want: at.JoinInfo{
			SSID:    []byte(`my\"ap\\`),
			BSSID:   []byte("aa:bb:cc:dd:ee:ff"),
			RSSI:    -62,
			Channel: 11,
		},
	},
	{
		name:  "station ip",
		input: `+CIFSR:STAIP,"192.168.4.17"` + "\r\n",
		want:  at.StationIP{IP: at.IPv4{192, 168, 4, 17}},
	},
	{
		name:  "station mac",
		input: `+CIFSR:STAMAC,"5c:cf:7f:0a:1B:ff"` + "\r\n",
		want:  at.StationMAC{MAC: at.MAC{0x5c, 0xcf, 0x7f, 0x0a, 0x1b, 0xff}},
	},
	{name: "connection status", input: "STATUS:2\r\n", want: at.ConnStatus{Code: 2}},
	{name: "no ap", input: "No AP\r\n", want: at.NoAP{}},
	{name: "already connected", input: "ALREADY CONNECTED\r\n", want: at.AlreadyConnected{}},
	{name: "no change", input: "no change\r\n", want: at.NoChange{}},
	{name: "echo", input: "AT+CIPMUX=1\r\n", want: at.Echo{Line: []byte("AT+CIPMUX=1")}},
	{name: "bare AT echo", input: "AT\r\n", want: at.Echo{Line: []byte("AT")}},
	{
		name:  "data with embedded line breaks",
		input: "+IPD,0,7:ab\r\ncd\n",
		want:  at.Data{Link: 0, Payload: []byte("ab\r\ncd\n")},
	},
	{name: "empty data", input: "+IPD,2,0:", want: at.Data{Link: 2, Payload: []byte{}}},
	{name: "send prompt", input: "> ", want: at.RecvPrompt{}},
	{name: "empty line", input: "\r\n", want: at.Empty{}},
}

func TestScanFrames(t *testing.T) {
	for _, tt := range frameTests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp, err := at.Scan([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), n)
			assert.Equal(t, tt.want, resp)
		})
	}
}

func TestScanTruncatedFramesAreIncomplete(t *testing.T) {
	for _, tt := range frameTests {
		t.Run(tt.name, func(t *testing.T) {
			for k := 0; k < len(tt.input); k++ {
				n, resp, err := at.Scan([]byte(tt.input[:k]))
				require.ErrorIsf(t, err, at.ErrIncomplete, "prefix %q", tt.input[:k])
				assert.Zero(t, n)
				assert.Nil(t, resp)
			}
		})
	}
}

func TestScanConsumesOnlyOneFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  at.Response
	}{
		{name: "line followed by line", input: "OK\r\nready\r\n", n: 4, want: at.OK},
		{
			name:  "data followed by line",
			input: "+IPD,1,2:hiOK\r\n",
			n:     len("+IPD,1,2:hi"),
			want:  at.Data{Link: 1, Payload: []byte("hi")},
		},
		{name: "prompt followed by status", input: "> SEND OK\r\n", n: 2, want: at.RecvPrompt{}},
		{name: "partial frame after complete one", input: "ERROR\r\nWIFI", n: 7, want: at.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp, err := at.Scan([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.n, n)
			assert.Equal(t, tt.want, resp)
		})
	}
}

func TestScanUnparseable(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown line", input: "XJUNK\r\n"},
		{name: "literal with trailing garbage", input: "OKAY\r\n"},
		{name: "octet out of range", input: `+CIFSR:STAIP,"256.1.1.1"` + "\r\n"},
		{name: "mac byte out of range", input: `+CIFSR:STAMAC,"5cf:cf:7f:0a:1b:ff"` + "\r\n"},
		{name: "invalid escape", input: `+CWJAP_CUR:"a\n","b",1,1` + "\r\n"},
		{name: "connect fail suffix", input: "0,CONNECT FAIL\r\n"},
		{name: "link id overflow", input: "99999999999,CLOSED\r\n"},
		{name: "echo without LF", input: "ATE0\rX"},
		{name: "data without link", input: "+IPD,:"},
		{name: "case mismatch", input: "ok\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp, err := at.Scan([]byte(tt.input))
			require.ErrorIs(t, err, at.ErrUnparseable)
			assert.Zero(t, n)
			assert.Nil(t, resp)
		})
	}
}

func TestScanDataPayloadAliasesInput(t *testing.T) {
	buf := []byte("+IPD,0,3:abc")
	_, resp, err := at.Scan(buf)
	require.NoError(t, err)

	data, ok := resp.(at.Data)
	require.True(t, ok)
	buf[9] = 'x'
	assert.Equal(t, []byte("xbc"), data.Payload)
}

func TestAddressStrings(t *testing.T) {
	assert.Equal(t, "10.0.0.254", at.IPv4{10, 0, 0, 254}.String())
	assert.Equal(t, "5c:cf:7f:0a:1b:ff", at.MAC{0x5c, 0xcf, 0x7f, 0x0a, 0x1b, 0xff}.String())
}
