package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/vhome-bridge/internal/bridge/coordinator"
	"github.com/nerrad567/vhome-bridge/internal/bridge/pairing"
)

// StartPairingRequest is the body of POST /pairing.
type StartPairingRequest struct {
	Flow pairing.Flow `json:"flow"`
}

// StartPairingResponse reports the pairing session and whether this
// request started it.
type StartPairingResponse struct {
	Session pairing.Session `json:"session"`
	Started bool            `json:"started"`
}

// handleStatus returns the bridge status snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.bridge.Status(r.Context())
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListDevices returns the registered device records.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.bridge.Devices(r.Context())
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	if devices == nil {
		devices = []coordinator.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleGetPairing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.PairingSession())
}

// handleStartPairing starts a pairing flow. A flow already in progress is
// returned with 200 instead of 202.
func (s *Server) handleStartPairing(w http.ResponseWriter, r *http.Request) {
	var req StartPairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Flow == "" {
		req.Flow = pairing.FlowQR
	}
	if !req.Flow.Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, `flow must be "qr" or "lan"`)
		return
	}

	session, started := s.bridge.StartPairing(req.Flow)
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, StartPairingResponse{Session: session, Started: started})
}

func (s *Server) handleCancelPairing(w http.ResponseWriter, _ *http.Request) {
	s.bridge.CancelPairing()
	writeJSON(w, http.StatusOK, s.bridge.PairingSession())
}

func (s *Server) writeBridgeError(w http.ResponseWriter, err error) {
	if errors.Is(err, coordinator.ErrNotRunning) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "bridge is not running")
		return
	}
	s.logger.Error("bridge request failed", "error", err)
	writeInternalError(w, "bridge request failed")
}
