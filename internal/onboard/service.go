// Package onboard is the request surface of the onboarding flow. It validates
// params, calls the connection orchestrator or the provisioning pipeline, and
// shapes results and failures for RPC callers.
package onboard

import (
	"context"

	"github.com/Hazard-House/openclaw/internal/agentconfig"
	"github.com/Hazard-House/openclaw/internal/broker"
	"github.com/Hazard-House/openclaw/internal/connections"
	"github.com/Hazard-House/openclaw/internal/provision"
	"github.com/Hazard-House/openclaw/internal/recipes"
	"github.com/Hazard-House/openclaw/pkg/contracts"
	"github.com/Hazard-House/openclaw/pkg/middleware"
	"github.com/Hazard-House/openclaw/pkg/models"
)

// Options wire a Service.
type Options struct {
	Store       *agentconfig.Store
	Recipes     *recipes.Catalog
	Brokers     *broker.Provider
	Connections *connections.Orchestrator
	Pipeline    *provision.Pipeline
	// BrokerBaseURL is used when the config document names no base URL.
	BrokerBaseURL string
}

// Service implements the onboarding operations.
type Service struct {
	store         *agentconfig.Store
	recipes       *recipes.Catalog
	brokers       *broker.Provider
	conns         *connections.Orchestrator
	pipeline      *provision.Pipeline
	brokerBaseURL string
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		store:         opts.Store,
		recipes:       opts.Recipes,
		brokers:       opts.Brokers,
		conns:         opts.Connections,
		pipeline:      opts.Pipeline,
		brokerBaseURL: opts.BrokerBaseURL,
	}
	if s.recipes == nil {
		s.recipes = recipes.Default()
	}
	if s.brokers == nil {
		s.brokers = broker.NewProvider()
	}
	if s.conns == nil {
		s.conns = connections.New(connections.Options{Resolver: middleware.EntityFromContext})
	}
	return s
}

// ── Params and results ──────────────────────────────────────

// RecipesResult lists the available recipes.
type RecipesResult struct {
	OK      bool                   `json:"ok"`
	Recipes []models.RecipeSummary `json:"recipes"`
}

// AuthInitiateParams are the params of onboard.auth.initiate.
type AuthInitiateParams struct {
	AppName     string `json:"appName"`
	EntityID    string `json:"entityId"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

// AuthInitiateResult is the result of onboard.auth.initiate.
type AuthInitiateResult struct {
	OK                 bool   `json:"ok"`
	AppName            string `json:"appName"`
	RedirectURL        string `json:"redirectUrl"`
	ConnectedAccountID string `json:"connectedAccountId"`
}

// AuthStatusParams are the params of onboard.auth.status.
type AuthStatusParams struct {
	ConnectedAccountID string `json:"connectedAccountId"`
}

// AuthStatusResult is the result of onboard.auth.status.
type AuthStatusResult struct {
	OK                 bool                 `json:"ok"`
	ConnectedAccountID string               `json:"connectedAccountId"`
	Status             models.AccountStatus `json:"status"`
	AppName            string               `json:"appName,omitempty"`
}

// SimpleParams are the params of onboard.simple.
type SimpleParams struct {
	UserName string `json:"userName"`
	BotName  string `json:"botName"`
	RecipeID string `json:"recipeId"`
	EntityID string `json:"entityId,omitempty"`
}

// SimpleResult is the result of onboard.simple.
type SimpleResult struct {
	OK bool `json:"ok"`
	provision.Result
}

// ListParams are the params of connections.list.
type ListParams struct {
	EntityID string `json:"entityId,omitempty"`
}

// ListResult is the result of connections.list.
type ListResult struct {
	OK bool `json:"ok"`
	connections.ListResult
}

// ConnectMultipleParams are the params of connections.connectMultiple.
type ConnectMultipleParams struct {
	EntityID    string   `json:"entityId,omitempty"`
	AppNames    []string `json:"appNames"`
	RedirectURI string   `json:"redirectUri,omitempty"`
}

// ConnectMultipleResult is the result of connections.connectMultiple.
type ConnectMultipleResult struct {
	OK      bool                    `json:"ok"`
	Results []connections.BatchItem `json:"results"`
}

// DisconnectParams are the params of connections.disconnect.
type DisconnectParams struct {
	ConnectedAccountID string `json:"connectedAccountId"`
}

// DisconnectResult is the result of connections.disconnect.
type DisconnectResult struct {
	OK bool `json:"ok"`
	connections.DisconnectResult
}

// ExecuteParams are the params of connections.execute.
type ExecuteParams struct {
	EntityID           string         `json:"entityId,omitempty"`
	ActionName         string         `json:"actionName"`
	Params             map[string]any `json:"params,omitempty"`
	ConnectedAccountID string         `json:"connectedAccountId,omitempty"`
}

// ExecuteResult is the result of connections.execute.
type ExecuteResult struct {
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result"`
}

// AgentsResult is the result of agents.list.
type AgentsResult struct {
	OK     bool                      `json:"ok"`
	Agents []models.AgentConfigEntry `json:"agents"`
}

// ── Operations ──────────────────────────────────────────────

// Recipes lists the recipe catalog.
func (s *Service) Recipes(_ context.Context, _ struct{}) (*RecipesResult, error) {
	return &RecipesResult{OK: true, Recipes: s.recipes.Summaries()}, nil
}

// AuthInitiate starts a connection for one app.
func (s *Service) AuthInitiate(ctx context.Context, p AuthInitiateParams) (*AuthInitiateResult, error) {
	b, cfg, err := s.broker()
	if err != nil {
		return nil, err
	}
	res, err := s.conns.Connect(ctx, b, models.ConnectionRequest{
		EntityID:    s.explicitEntity(ctx, p.EntityID, cfg),
		AppName:     p.AppName,
		RedirectURI: p.RedirectURI,
	})
	if err != nil {
		return nil, err
	}
	return &AuthInitiateResult{
		OK:                 true,
		AppName:            res.AppName,
		RedirectURL:        res.RedirectURL,
		ConnectedAccountID: res.ConnectedAccountID,
	}, nil
}

// AuthStatus reports the broker's current status for an account.
func (s *Service) AuthStatus(ctx context.Context, p AuthStatusParams) (*AuthStatusResult, error) {
	b, _, err := s.broker()
	if err != nil {
		return nil, err
	}
	acc, err := s.conns.Status(ctx, b, p.ConnectedAccountID)
	if err != nil {
		return nil, err
	}
	return &AuthStatusResult{
		OK:                 true,
		ConnectedAccountID: acc.ID,
		Status:             acc.Status,
		AppName:            acc.AppName,
	}, nil
}

// Simple provisions a new agent from a recipe.
func (s *Service) Simple(ctx context.Context, p SimpleParams) (*SimpleResult, error) {
	res, err := s.pipeline.Run(ctx, provision.Request{
		UserName: p.UserName,
		BotName:  p.BotName,
		RecipeID: p.RecipeID,
		EntityID: p.EntityID,
	})
	if err != nil {
		return nil, err
	}
	return &SimpleResult{OK: true, Result: *res}, nil
}

// ListConnections lists the entity's connected accounts.
func (s *Service) ListConnections(ctx context.Context, p ListParams) (*ListResult, error) {
	b, cfg, err := s.broker()
	if err != nil {
		return nil, err
	}
	res, err := s.conns.ListConnections(ctx, b, s.explicitEntity(ctx, p.EntityID, cfg))
	if err != nil {
		return nil, err
	}
	return &ListResult{OK: true, ListResult: *res}, nil
}

// ConnectMultiple starts connections for several apps at once.
func (s *Service) ConnectMultiple(ctx context.Context, p ConnectMultipleParams) (*ConnectMultipleResult, error) {
	b, cfg, err := s.broker()
	if err != nil {
		return nil, err
	}
	items, err := s.conns.ConnectMultiple(ctx, b, s.explicitEntity(ctx, p.EntityID, cfg), p.AppNames, p.RedirectURI)
	if err != nil {
		return nil, err
	}
	return &ConnectMultipleResult{OK: true, Results: items}, nil
}

// Disconnect removes a connected account at the broker.
func (s *Service) Disconnect(ctx context.Context, p DisconnectParams) (*DisconnectResult, error) {
	b, _, err := s.broker()
	if err != nil {
		return nil, err
	}
	res, err := s.conns.Disconnect(ctx, b, p.ConnectedAccountID)
	if err != nil {
		return nil, err
	}
	return &DisconnectResult{OK: true, DisconnectResult: *res}, nil
}

// Execute runs a broker action.
func (s *Service) Execute(ctx context.Context, p ExecuteParams) (*ExecuteResult, error) {
	b, cfg, err := s.broker()
	if err != nil {
		return nil, err
	}
	out, err := s.conns.Execute(ctx, b, models.ExecuteRequest{
		EntityID:           s.explicitEntity(ctx, p.EntityID, cfg),
		ActionName:         p.ActionName,
		Params:             p.Params,
		ConnectedAccountID: p.ConnectedAccountID,
	})
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{OK: true, Result: out}, nil
}

// Agents lists the registered agents.
func (s *Service) Agents(_ context.Context, _ struct{}) (*AgentsResult, error) {
	doc, _, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return &AgentsResult{OK: true, Agents: doc.Agents()}, nil
}

// ── Broker resolution ───────────────────────────────────────

// broker resolves the broker from the current config document. A nil
// Broker with a nil error means the integration is not configured.
func (s *Service) broker() (contracts.Broker, agentconfig.BrokerConfig, error) {
	doc, _, err := s.store.Load()
	if err != nil {
		return nil, agentconfig.BrokerConfig{}, err
	}
	cfg := doc.Broker()
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = s.brokerBaseURL
	}

	client := s.brokers.Get(broker.Settings{APIKey: cfg.APIKey, BaseURL: baseURL})
	if client == nil {
		return nil, cfg, nil
	}
	return client, cfg, nil
}

// explicitEntity applies the document's default entity when neither the
// request nor the caller context names one.
func (s *Service) explicitEntity(ctx context.Context, requested string, cfg agentconfig.BrokerConfig) string {
	if requested != "" || middleware.GetEntity(ctx) != "" {
		return requested
	}
	return cfg.DefaultEntityID
}
