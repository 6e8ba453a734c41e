// Package middleware provides shared context helpers for the onboarding
// control plane.
//
// This package lives in pkg/ (not internal/) so that embedders can set the
// calling entity on a context before invoking the onboarding service.
package middleware

import "context"

type contextKey string

const entityKey contextKey = "entity"

// GetEntity extracts the entity id from the context.
// Returns "" if no entity is set; callers fall back to their own default.
func GetEntity(ctx context.Context) string {
	if v, ok := ctx.Value(entityKey).(string); ok {
		return v
	}
	return ""
}

// SetEntity stores the entity id in the context.
func SetEntity(ctx context.Context, entity string) context.Context {
	return context.WithValue(ctx, entityKey, entity)
}

// EntityFromContext is a contracts.EntityResolver backed by SetEntity.
func EntityFromContext(ctx context.Context) string {
	return GetEntity(ctx)
}
