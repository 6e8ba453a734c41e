package onboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Hazard-House/openclaw/internal/connections"
	"github.com/Hazard-House/openclaw/internal/provision"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/rs/zerolog/log"
)

// RPC method names.
const (
	MethodRecipes         = "onboard.recipes"
	MethodAuthInitiate    = "onboard.auth.initiate"
	MethodAuthStatus      = "onboard.auth.status"
	MethodSimple          = "onboard.simple"
	MethodConnectionsList = "connections.list"
	MethodConnectMultiple = "connections.connectMultiple"
	MethodDisconnect      = "connections.disconnect"
	MethodExecute         = "connections.execute"
	MethodAgentsList      = "agents.list"
)

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// handle adapts a typed operation to a handlerFunc that decodes params strictly.
func handle[P any, R any](op func(context.Context, P) (R, error)) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return op(ctx, p)
	}
}

func (s *Service) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		// ── Onboarding ───────────────────────────────────
		MethodRecipes:      handle(s.Recipes),
		MethodAuthInitiate: handle(s.AuthInitiate),
		MethodAuthStatus:   handle(s.AuthStatus),
		MethodSimple:       handle(s.Simple),

		// ── Connections ──────────────────────────────────
		MethodConnectionsList: handle(s.ListConnections),
		MethodConnectMultiple: handle(s.ConnectMultiple),
		MethodDisconnect:      handle(s.Disconnect),
		MethodExecute:         handle(s.Execute),

		// ── Registry ─────────────────────────────────────
		MethodAgentsList: handle(s.Agents),
	}
}

// Methods returns the supported RPC method names, sorted.
func (s *Service) Methods() []string {
	h := s.handlers()
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle dispatches one RPC request. It never returns nil.
func (s *Service) Handle(ctx context.Context, req *models.RPCRequest) *models.RPCResponse {
	h, ok := s.handlers()[req.Method]
	if !ok {
		return failure(req.ID, models.ErrorCodeInvalidRequest, fmt.Sprintf("unknown method: %s", req.Method))
	}

	payload, err := h(ctx, req.Params)
	if err != nil {
		code, msg := Classify(err)
		ev := log.Debug()
		if code == models.ErrorCodeUnavailable {
			ev = log.Warn()
		}
		ev.Err(err).Str("method", req.Method).Str("code", string(code)).Msg("RPC request failed")
		return failure(req.ID, code, msg)
	}

	return &models.RPCResponse{ID: req.ID, OK: true, Payload: payload}
}

func failure(id string, code models.ErrorCode, msg string) *models.RPCResponse {
	return &models.RPCResponse{
		ID:    id,
		OK:    false,
		Error: &models.RPCError{Code: code, Message: msg},
	}
}

// Classify maps an operation error to its RPC code and message. Local
// validation failures are INVALID_REQUEST and everything else is UNAVAILABLE.
func Classify(err error) (models.ErrorCode, string) {
	var invalid *connections.InvalidRequestError
	switch {
	case errors.As(err, &invalid),
		errors.Is(err, provision.ErrInvalidInput),
		errors.Is(err, provision.ErrUnknownRecipe),
		errors.Is(err, provision.ErrReservedIdentifier),
		errors.Is(err, provision.ErrDuplicateAgent):
		return models.ErrorCodeInvalidRequest, err.Error()
	default:
		return models.ErrorCodeUnavailable, err.Error()
	}
}

// decodeParams decodes raw into v, rejecting unknown fields. Absent or null
// params decode as an empty object.
func decodeParams(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &connections.InvalidRequestError{Message: "invalid params: " + err.Error()}
	}
	return nil
}
