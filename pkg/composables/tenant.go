package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/iota-import/pkg/constants"
)

var ErrNoTenant = errors.New("no tenant found in context")

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantKey, tenantID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	v, ok := ctx.Value(constants.TenantKey).(uuid.UUID)
	if !ok || v == uuid.Nil {
		return uuid.Nil, ErrNoTenant
	}
	return v, nil
}
