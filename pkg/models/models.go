package models

import (
	"encoding/json"
	"time"
)

// DefaultEntityID is used when neither the request nor the caller's resolver
// names an entity.
const DefaultEntityID = "default"

// DefaultAgentID is the platform's built-in agent. It is never assignable
// through onboarding.
const DefaultAgentID = "main"

// DefaultModel is applied to every agent created by onboarding.
const DefaultModel = "minimax/MiniMax-M2.5"

// ── Connected Accounts ───────────────────────────────────────

// AccountStatus is the broker-reported lifecycle state of a connected account.
// Values are passed through verbatim; this package never infers transitions.
type AccountStatus string

const (
	AccountStatusInitiated AccountStatus = "INITIATED"
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusExpired   AccountStatus = "EXPIRED"
	AccountStatusFailed    AccountStatus = "FAILED"
)

// Known reports whether s is one of the documented broker states.
func (s AccountStatus) Known() bool {
	switch s {
	case AccountStatusInitiated, AccountStatusActive, AccountStatusExpired, AccountStatusFailed:
		return true
	}
	return false
}

// ConnectedAccount is a read-through view of a broker-managed account.
type ConnectedAccount struct {
	ID        string        `json:"id"`
	AppName   string        `json:"appName"`
	Status    AccountStatus `json:"status"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

// ConnectionRequest is the input to initiating a connection. Not persisted.
type ConnectionRequest struct {
	EntityID    string `json:"entityId"`
	AppName     string `json:"appName"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

// InitiateResult is returned by the broker when a connection is started.
// An empty RedirectURL means no interactive step is required.
type InitiateResult struct {
	ConnectedAccountID string `json:"connectedAccountId"`
	RedirectURL        string `json:"redirectUrl"`
}

// ExecuteRequest asks the broker to run an action for an entity.
type ExecuteRequest struct {
	EntityID           string         `json:"entityId"`
	ActionName         string         `json:"actionName"`
	Params             map[string]any `json:"params"`
	ConnectedAccountID string         `json:"connectedAccountId,omitempty"`
}

// ── Recipes ──────────────────────────────────────────────────

// Recipe is an immutable persona template used to seed an agent workspace.
type Recipe struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Emoji       string `json:"emoji" yaml:"emoji"`
	Soul        string `json:"-" yaml:"soul"`
	Agents      string `json:"-" yaml:"agents"`
	Tools       string `json:"-" yaml:"tools,omitempty"`
}

// RecipeSummary is the public listing shape of a recipe.
type RecipeSummary struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// Summary drops the free-text bodies.
func (r Recipe) Summary() RecipeSummary {
	return RecipeSummary{ID: r.ID, Label: r.Label, Description: r.Description, Emoji: r.Emoji}
}

// ── Agents ───────────────────────────────────────────────────

// AgentConfigEntry is one agent in the persisted configuration document.
type AgentConfigEntry struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Workspace       string `json:"workspace,omitempty"`
	AgentDir        string `json:"agentDir,omitempty"`
	Model           string `json:"model,omitempty"`
	ComposioEnabled *bool  `json:"composioEnabled,omitempty"`
}

// ── RPC Protocol Types ───────────────────────────────────────

// RPCRequest is a single request frame on the onboarding surface.
type RPCRequest struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCResponse answers an RPCRequest. Exactly one of Payload and Error is set.
type RPCResponse struct {
	ID      string    `json:"id,omitempty"`
	OK      bool      `json:"ok"`
	Payload any       `json:"payload,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// ErrorCode is a stable machine-readable failure code.
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnavailable    ErrorCode = "UNAVAILABLE"
)

// RPCError carries a failure code and a human-readable message.
type RPCError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
