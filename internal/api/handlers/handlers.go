// Package handlers implements the HTTP handlers for the onboarding gateway.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Hazard-House/openclaw/internal/onboard"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/rs/zerolog/log"
)

// maxFrameBytes bounds one RPC request body.
const maxFrameBytes = 1 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Onboard *onboard.Service
}

// New creates a new Handlers instance.
func New(svc *onboard.Service) *Handlers {
	return &Handlers{Onboard: svc}
}

// ── RPC ──────────────────────────────────────────────────────

// RPC handles POST /rpc. A well-formed frame always gets 200; the frame's
// ok and error fields carry the outcome. Only an unreadable frame is a 400.
func (h *Handlers) RPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondFrameError(w, http.StatusRequestEntityTooLarge, "", "request body too large")
			return
		}
		respondFrameError(w, http.StatusBadRequest, "", "failed to read request body")
		return
	}

	var req models.RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondFrameError(w, http.StatusBadRequest, "", "invalid JSON: "+err.Error())
		return
	}
	req.Method = strings.TrimSpace(req.Method)
	if req.Method == "" {
		respondFrameError(w, http.StatusBadRequest, req.ID, "method is required")
		return
	}

	log.Debug().Str("id", req.ID).Str("method", req.Method).Msg("RPC request")
	respondJSON(w, http.StatusOK, h.Onboard.Handle(r.Context(), &req))
}

// ListMethods handles GET /rpc/methods.
func (h *Handlers) ListMethods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"methods": h.Onboard.Methods()})
}

// ── Helpers ──────────────────────────────────────────────────

func respondFrameError(w http.ResponseWriter, status int, id, message string) {
	respondJSON(w, status, &models.RPCResponse{
		ID:    id,
		OK:    false,
		Error: &models.RPCError{Code: models.ErrorCodeInvalidRequest, Message: message},
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
