// Package connections composes broker calls into entity-scoped results.
//
// Every operation takes the broker capability explicitly; a nil broker means
// the integration is not configured and yields ErrBrokerUnavailable before any
// network I/O. Broker failures are wrapped in *UpstreamError and never retried.
package connections

import (
	"context"
	"strings"

	"github.com/Hazard-House/openclaw/internal/telemetry"
	"github.com/Hazard-House/openclaw/pkg/contracts"
	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxAppsPerBatch is the ceiling on ConnectMultiple batch size.
const DefaultMaxAppsPerBatch = 20

// Options configure an Orchestrator.
type Options struct {
	// Resolver supplies the entity when a request names none.
	Resolver contracts.EntityResolver
	// DefaultEntityID is used when the resolver yields nothing.
	DefaultEntityID string
	// MaxAppsPerBatch caps ConnectMultiple. Zero selects DefaultMaxAppsPerBatch.
	MaxAppsPerBatch int
}

// Orchestrator implements the connection lifecycle operations.
type Orchestrator struct {
	resolver      contracts.EntityResolver
	defaultEntity string
	maxBatch      int
	tracer        trace.Tracer
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		resolver:      opts.Resolver,
		defaultEntity: opts.DefaultEntityID,
		maxBatch:      opts.MaxAppsPerBatch,
		tracer:        telemetry.Tracer("connections"),
	}
	if o.defaultEntity == "" {
		o.defaultEntity = models.DefaultEntityID
	}
	if o.maxBatch <= 0 {
		o.maxBatch = DefaultMaxAppsPerBatch
	}
	return o
}

// MaxAppsPerBatch returns the configured batch ceiling.
func (o *Orchestrator) MaxAppsPerBatch() int { return o.maxBatch }

// ResolveEntity picks the entity for one call: explicit, then resolver, then default.
func (o *Orchestrator) ResolveEntity(ctx context.Context, explicit string) string {
	if e := strings.TrimSpace(explicit); e != "" {
		return e
	}
	if o.resolver != nil {
		if e := strings.TrimSpace(o.resolver(ctx)); e != "" {
			return e
		}
	}
	return o.defaultEntity
}

// ── Results ─────────────────────────────────────────────────

// ListResult is the set of accounts linked to an entity.
type ListResult struct {
	EntityID string                    `json:"entityId"`
	Accounts []models.ConnectedAccount `json:"accounts"`
	// Hint is set when Accounts is empty.
	Hint string `json:"hint,omitempty"`
}

// ConnectResult is an initiated connection plus the normalized app name.
type ConnectResult struct {
	AppName string `json:"appName"`
	models.InitiateResult
}

// BatchItem is the outcome of one app in ConnectMultiple. On failure the
// account id and redirect URL are null and Error carries the message.
type BatchItem struct {
	AppName            string  `json:"appName"`
	ConnectedAccountID *string `json:"connectedAccountId"`
	RedirectURL        *string `json:"redirectUrl"`
	Error              *string `json:"error"`
}

// Failed reports whether this item's connection could not be initiated.
func (b BatchItem) Failed() bool { return b.Error != nil }

// DisconnectResult confirms a deleted account.
type DisconnectResult struct {
	Deleted            bool   `json:"deleted"`
	ConnectedAccountID string `json:"connectedAccountId"`
}

// ── Operations ──────────────────────────────────────────────

// ListConnections returns the entity's connected accounts. An empty list is
// a success carrying a hint, distinct from a broker failure.
func (o *Orchestrator) ListConnections(ctx context.Context, b contracts.Broker, entityID string) (res *ListResult, err error) {
	entity := o.ResolveEntity(ctx, entityID)
	ctx, span := o.start(ctx, "connections.List", telemetry.AttrEntity.String(entity))
	defer func() { telemetry.End(span, err) }()

	if b == nil {
		return nil, ErrBrokerUnavailable
	}

	accounts, err := b.ListForEntity(ctx, entity)
	if err != nil {
		return nil, upstream("list", err)
	}

	res = &ListResult{EntityID: entity, Accounts: accounts}
	if len(accounts) == 0 {
		res.Accounts = []models.ConnectedAccount{}
		res.Hint = "no connected accounts for entity " + entity + "; use connect to link an app"
	}
	return res, nil
}

// Connect initiates a connection for one app.
func (o *Orchestrator) Connect(ctx context.Context, b contracts.Broker, req models.ConnectionRequest) (res *ConnectResult, err error) {
	entity := o.ResolveEntity(ctx, req.EntityID)
	app := normalizeName(req.AppName)
	ctx, span := o.start(ctx, "connections.Connect",
		telemetry.AttrEntity.String(entity),
		attribute.String("app", app),
	)
	defer func() { telemetry.End(span, err) }()

	if app == "" {
		return nil, invalidf("appName is required")
	}
	if b == nil {
		return nil, ErrBrokerUnavailable
	}

	initiated, err := b.Initiate(ctx, models.ConnectionRequest{
		EntityID:    entity,
		AppName:     app,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		return nil, upstream("initiate", err)
	}

	log.Info().
		Str("entity", entity).
		Str("app", app).
		Str("connected_account", initiated.ConnectedAccountID).
		Bool("interactive", initiated.RedirectURL != "").
		Msg("Connection initiated")

	return &ConnectResult{AppName: app, InitiateResult: *initiated}, nil
}

// ConnectMultiple initiates one connection per app concurrently. Results keep
// input order and each item succeeds or fails on its own.
func (o *Orchestrator) ConnectMultiple(ctx context.Context, b contracts.Broker, entityID string, appNames []string, redirectURI string) (items []BatchItem, err error) {
	entity := o.ResolveEntity(ctx, entityID)
	ctx, span := o.start(ctx, "connections.ConnectMultiple",
		telemetry.AttrEntity.String(entity),
		attribute.Int("apps", len(appNames)),
	)
	defer func() { telemetry.End(span, err) }()

	if len(appNames) == 0 {
		return nil, invalidf("appNames must contain at least one app")
	}
	if len(appNames) > o.maxBatch {
		return nil, invalidf("too many apps in one batch: %d (max %d)", len(appNames), o.maxBatch)
	}
	if b == nil {
		return nil, ErrBrokerUnavailable
	}

	items = make([]BatchItem, len(appNames))
	var g errgroup.Group
	for i, name := range appNames {
		i, name := i, name
		g.Go(func() error {
			items[i] = o.connectOne(ctx, b, entity, name, redirectURI)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if it.Failed() {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	log.Info().
		Str("entity", entity).
		Int("apps", len(items)).
		Int("failed", failed).
		Msg("Batch connection finished")

	return items, nil
}

func (o *Orchestrator) connectOne(ctx context.Context, b contracts.Broker, entity, name, redirectURI string) BatchItem {
	app := normalizeName(name)
	if app == "" {
		return failedItem(name, "appName is required")
	}

	res, err := b.Initiate(ctx, models.ConnectionRequest{
		EntityID:    entity,
		AppName:     app,
		RedirectURI: redirectURI,
	})
	if err != nil {
		log.Warn().Err(err).Str("entity", entity).Str("app", app).Msg("Batch item failed")
		return failedItem(app, err.Error())
	}

	id, url := res.ConnectedAccountID, res.RedirectURL
	return BatchItem{AppName: app, ConnectedAccountID: &id, RedirectURL: &url}
}

func failedItem(app, msg string) BatchItem {
	return BatchItem{AppName: app, Error: &msg}
}

// Status returns the account as the broker reports it right now.
func (o *Orchestrator) Status(ctx context.Context, b contracts.Broker, connectedAccountID string) (acc *models.ConnectedAccount, err error) {
	id := strings.TrimSpace(connectedAccountID)
	ctx, span := o.start(ctx, "connections.Status", telemetry.AttrConnectedAccount.String(id))
	defer func() { telemetry.End(span, err) }()

	if id == "" {
		return nil, invalidf("connectedAccountId is required")
	}
	if b == nil {
		return nil, ErrBrokerUnavailable
	}

	acc, err = b.Get(ctx, id)
	if err != nil {
		return nil, upstream("get", err)
	}
	return acc, nil
}

// Disconnect deletes the account at the broker. No local existence check is
// made, so deleting an unknown id surfaces the broker's error.
func (o *Orchestrator) Disconnect(ctx context.Context, b contracts.Broker, connectedAccountID string) (res *DisconnectResult, err error) {
	id := strings.TrimSpace(connectedAccountID)
	ctx, span := o.start(ctx, "connections.Disconnect", telemetry.AttrConnectedAccount.String(id))
	defer func() { telemetry.End(span, err) }()

	if id == "" {
		return nil, invalidf("connectedAccountId is required")
	}
	if b == nil {
		return nil, ErrBrokerUnavailable
	}

	if err := b.Delete(ctx, id); err != nil {
		return nil, upstream("delete", err)
	}

	log.Info().Str("connected_account", id).Msg("Connection deleted")
	return &DisconnectResult{Deleted: true, ConnectedAccountID: id}, nil
}

// Execute runs a broker action and returns its raw result.
func (o *Orchestrator) Execute(ctx context.Context, b contracts.Broker, req models.ExecuteRequest) (out map[string]any, err error) {
	entity := o.ResolveEntity(ctx, req.EntityID)
	action := normalizeName(req.ActionName)
	ctx, span := o.start(ctx, "connections.Execute",
		telemetry.AttrEntity.String(entity),
		attribute.String("action", action),
	)
	defer func() { telemetry.End(span, err) }()

	if action == "" {
		return nil, invalidf("actionName is required")
	}
	if b == nil {
		return nil, ErrBrokerUnavailable
	}

	params := req.Params
	if params == nil {
		params = map[string]any{}
	}

	out, err = b.Execute(ctx, models.ExecuteRequest{
		EntityID:           entity,
		ActionName:         action,
		Params:             params,
		ConnectedAccountID: strings.TrimSpace(req.ConnectedAccountID),
	})
	if err != nil {
		return nil, upstream("execute", err)
	}
	return out, nil
}

// ── Helpers ─────────────────────────────────────────────────

func normalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func upstream(op string, err error) error {
	log.Warn().Err(err).Str("op", op).Msg("Broker call failed")
	return &UpstreamError{Op: op, Cause: err}
}

func (o *Orchestrator) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
