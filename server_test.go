package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/modem"
)

// fakeGateway records calls and returns canned results.
type fakeGateway struct {
	calls    []string
	link     uint32
	err      error
	snapshot modem.Snapshot
}

func (g *fakeGateway) Connect(_ context.Context, typ at.ConnectionType, host string, port uint16) (uint32, error) {
	g.calls = append(g.calls, fmt.Sprintf("connect %s %s %d", typ, host, port))
	return g.link, g.err
}

func (g *fakeGateway) Send(_ context.Context, link uint32, payload []byte) error {
	g.calls = append(g.calls, fmt.Sprintf("send %d %q", link, payload))
	return g.err
}

func (g *fakeGateway) Listen(_ context.Context, port uint16) error {
	g.calls = append(g.calls, fmt.Sprintf("listen %d", port))
	return g.err
}

func (g *fakeGateway) Disconnect(_ context.Context, link uint32) error {
	g.calls = append(g.calls, fmt.Sprintf("disconnect %d", link))
	return g.err
}

func (g *fakeGateway) Status(context.Context) (modem.Snapshot, error) {
	g.calls = append(g.calls, "status")
	return g.snapshot, g.err
}

func serve(gw Gateway, method, path, body string) *httptest.ResponseRecorder {
	s := &Server{Logger: slog.New(slog.DiscardHandler), Modem: gw}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServerOperations(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCall   string
		wantBody   string
	}{
		{
			name:       "connect defaults to TCP",
			path:       "/connect",
			body:       `{"host":"example.com","port":80}`,
			wantStatus: http.StatusAccepted,
			wantCall:   "connect TCP example.com 80",
			wantBody:   `{"link":3}`,
		},
		{
			name:       "connect UDP",
			path:       "/connect",
			body:       `{"type":"udp","host":"10.0.0.1","port":53}`,
			wantStatus: http.StatusAccepted,
			wantCall:   "connect UDP 10.0.0.1 53",
			wantBody:   `{"link":3}`,
		},
		{
			name:       "send to link zero",
			path:       "/send",
			body:       `{"link":0,"data":"hello"}`,
			wantStatus: http.StatusAccepted,
			wantCall:   `send 0 "hello"`,
		},
		{
			name:       "listen",
			path:       "/listen",
			body:       `{"port":8080}`,
			wantStatus: http.StatusAccepted,
			wantCall:   "listen 8080",
		},
		{
			name:       "disconnect",
			path:       "/disconnect",
			body:       `{"link":4}`,
			wantStatus: http.StatusAccepted,
			wantCall:   "disconnect 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{link: 3}
			rec := serve(gw, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, []string{tt.wantCall}, gw.calls)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{name: "malformed json", path: "/connect", body: `{`},
		{name: "connect without host", path: "/connect", body: `{"port":80}`, message: "both 'host' and 'port' fields are required"},
		{name: "connect bad type", path: "/connect", body: `{"type":"sctp","host":"h","port":1}`, message: "'type' must be one of TCP, UDP, SSL"},
		{name: "port out of range", path: "/listen", body: `{"port":70000}`},
		{name: "listen without port", path: "/listen", body: `{}`, message: "'port' field is required"},
		{name: "send without link", path: "/send", body: `{"data":"x"}`, message: "'link' field is required"},
		{name: "disconnect without link", path: "/disconnect", body: `{}`, message: "'link' field is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			rec := serve(gw, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, gw.calls)

			var resp struct {
				Message string `json:"message"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			} else {
				assert.NotEmpty(t, resp.Message)
			}
		})
	}
}

func TestServerMapsModemErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("connect in state Sending(0): %w", modem.ErrInvalidState), want: http.StatusConflict},
		{err: modem.ErrNoFreeLink, want: http.StatusServiceUnavailable},
		{err: modem.ErrInvalidLink, want: http.StatusBadRequest},
		{err: modem.ErrSendBufferFull, want: http.StatusBadRequest},
		{err: fmt.Errorf("send cancelled before dispatch: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{err: &modem.WriteError{Op: "send", Err: fmt.Errorf("broken pipe")}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := serve(&fakeGateway{err: tt.err}, http.MethodPost, "/send", `{"link":1,"data":"x"}`)

			assert.Equal(t, tt.want, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, tt.err.Error()), rec.Body.String())
		})
	}
}

func TestServerStatus(t *testing.T) {
	gw := &fakeGateway{snapshot: modem.Snapshot{
		State:    modem.State{Kind: modem.StateSending, Link: 2},
		Wifi:     modem.WifiGotIP,
		IP:       at.IPv4{192, 168, 4, 2},
		HasIP:    true,
		Links:    [modem.MaxLinks]bool{false, false, true},
		Buffered: 12,
	}}

	rec := serve(gw, http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"state": "Sending(2)",
		"wifi": "got-ip",
		"ip": "192.168.4.2",
		"links": [false, false, true, false, false],
		"buffered": 12
	}`, rec.Body.String())
}

func TestServerMethodNotAllowed(t *testing.T) {
	rec := serve(&fakeGateway{}, http.MethodGet, "/send", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
