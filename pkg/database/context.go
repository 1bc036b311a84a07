package database

import (
	"context"

	"github.com/google/uuid"
)

type tenantScopeKey struct{}

// GetTenantScope returns the tenant-scoped connection stored in ctx.
// ok is false when the context carries no open scope.
func GetTenantScope(ctx context.Context) (scope *TenantScope, ok bool) {
	scope, _ = ctx.Value(tenantScopeKey{}).(*TenantScope)
	return scope, scope != nil && scope.Conn != nil
}

// SetTenantScope returns a copy of ctx carrying scope.
func SetTenantScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, tenantScopeKey{}, scope)
}

// TenantScopeProvider opens tenant scopes outside of an HTTP request,
// for maintenance scripts and other background work.
type TenantScopeProvider struct {
	db *DB
}

// NewTenantScopeProvider creates a TenantScopeProvider for db.
func NewTenantScopeProvider(db *DB) *TenantScopeProvider {
	return &TenantScopeProvider{db: db}
}

// WithTenantScope returns a context scoped to projectID and the cleanup that
// releases the connection. cleanup must always be called.
func (p *TenantScopeProvider) WithTenantScope(ctx context.Context, projectID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.WithTenant(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return SetTenantScope(ctx, scope), scope.Close, nil
}
