package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/modem"
)

// Gateway is the part of modem.Modem the HTTP server drives.
type Gateway interface {
	Connect(ctx context.Context, typ at.ConnectionType, host string, port uint16) (uint32, error)
	Send(ctx context.Context, link uint32, payload []byte) error
	Listen(ctx context.Context, port uint16) error
	Disconnect(ctx context.Context, link uint32) error
	Status(ctx context.Context) (modem.Snapshot, error)
}

// Server handles incoming HTTP requests for interacting with the
// configured modem instance. Operations return once the command was written
// to the modem; their outcome is reported as a modem event.
type Server struct {
	Logger *slog.Logger
	Modem  Gateway
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("POST /listen", s.handleListen)
	mux.HandleFunc("POST /disconnect", s.handleDisconnect)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to encode response", "error", err)
	}
}

// sendModemError maps modem errors to HTTP status codes
func (s *Server) sendModemError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, modem.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, modem.ErrNoFreeLink):
		status = http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrInvalidLink), errors.Is(err, modem.ErrSendBufferFull):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		s.Logger.Error("Modem operation failed", "op", op, "error", err)
	} else {
		s.Logger.Warn("Modem operation rejected", "op", op, "error", err)
	}
	s.sendError(w, err.Error(), status)
}

// StatusResponse is the JSON form of a modem.Snapshot
type StatusResponse struct {
	State    string `json:"state"`
	Wifi     string `json:"wifi"`
	IP       string `json:"ip,omitempty"`
	MAC      string `json:"mac,omitempty"`
	Links    []bool `json:"links"`
	Buffered int    `json:"buffered"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Modem.Status(r.Context())
	if err != nil {
		s.sendModemError(w, "status", err)
		return
	}

	resp := StatusResponse{
		State:    snap.State.String(),
		Wifi:     snap.Wifi.String(),
		Links:    snap.Links[:],
		Buffered: snap.Buffered,
	}
	if snap.HasIP {
		resp.IP = snap.IP.String()
	}
	if snap.HasMAC {
		resp.MAC = snap.MAC.String()
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	type ConnectRequest struct {
		Type string `json:"type"`
		Host string `json:"host"`
		Port uint16 `json:"port"`
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Host == "" || req.Port == 0 {
		s.sendError(w, "both 'host' and 'port' fields are required", http.StatusBadRequest)
		return
	}

	typ := at.TCP
	if req.Type != "" {
		var ok bool
		if typ, ok = at.ParseConnectionType(req.Type); !ok {
			s.sendError(w, "'type' must be one of TCP, UDP, SSL", http.StatusBadRequest)
			return
		}
	}

	link, err := s.Modem.Connect(r.Context(), typ, req.Host, req.Port)
	if err != nil {
		s.sendModemError(w, "connect", err)
		return
	}

	s.Logger.Info("Connection requested", "link", link, "type", typ, "host", req.Host, "port", req.Port)
	type ConnectResponse struct {
		Link uint32 `json:"link"`
	}
	s.sendJSON(w, ConnectResponse{Link: link}, http.StatusAccepted)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	type SendRequest struct {
		Link *uint32 `json:"link"`
		Data string  `json:"data"`
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Link == nil {
		s.sendError(w, "'link' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.Send(r.Context(), *req.Link, []byte(req.Data)); err != nil {
		s.sendModemError(w, "send", err)
		return
	}

	s.Logger.Info("Send requested", "link", *req.Link, "bytes", len(req.Data))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	type ListenRequest struct {
		Port uint16 `json:"port"`
	}

	var req ListenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Port == 0 {
		s.sendError(w, "'port' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.Listen(r.Context(), req.Port); err != nil {
		s.sendModemError(w, "listen", err)
		return
	}

	s.Logger.Info("Listen requested", "port", req.Port)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	type DisconnectRequest struct {
		Link *uint32 `json:"link"`
	}

	var req DisconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Link == nil {
		s.sendError(w, "'link' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.Disconnect(r.Context(), *req.Link); err != nil {
		s.sendModemError(w, "disconnect", err)
		return
	}

	s.Logger.Info("Disconnect requested", "link", *req.Link)
	w.WriteHeader(http.StatusAccepted)
}
