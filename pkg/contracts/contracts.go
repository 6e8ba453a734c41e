// Package contracts defines the service interfaces shared across the
// onboarding control plane.
//
// The Broker interface is the boundary between the connection orchestrator
// and the external connection broker. internal/broker ships the HTTP
// implementation; tests substitute an in-process fake.
package contracts

import (
	"context"

	"github.com/Hazard-House/openclaw/pkg/models"
)

// ── Connection Broker ───────────────────────────────────────

// Broker is the consumed capability of the external connection broker.
// Implementations perform no retries; transport reliability is the broker's concern.
type Broker interface {
	// Initiate starts an OAuth connection for an entity and app.
	Initiate(ctx context.Context, req models.ConnectionRequest) (*models.InitiateResult, error)

	// Get returns the broker's current record for a connected account.
	Get(ctx context.Context, connectedAccountID string) (*models.ConnectedAccount, error)

	// Delete removes a connected account at the broker.
	Delete(ctx context.Context, connectedAccountID string) error

	// Execute runs an action and returns the broker's raw result mapping.
	Execute(ctx context.Context, req models.ExecuteRequest) (map[string]any, error)

	// ListForEntity returns all connected accounts of an entity.
	ListForEntity(ctx context.Context, entityID string) ([]models.ConnectedAccount, error)
}

// ── Entity Resolution ───────────────────────────────────────

// EntityResolver supplies an entity id when a request does not carry one.
// Returning "" defers to models.DefaultEntityID.
type EntityResolver func(ctx context.Context) string
