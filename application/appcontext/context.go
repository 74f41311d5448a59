// Package appcontext carries request-scoped identity through the call chain.
package appcontext

import (
	"context"

	"analyst-backend/domain/core/valueobjects"
	pkgerrors "analyst-backend/pkg/errors"
)

type contextKey string

const ownerKey contextKey = "owner"

// WithOwner stamps the authenticated owner onto the context
func WithOwner(ctx context.Context, owner valueobjects.Owner) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFrom extracts the authenticated owner, failing when none was stamped
func OwnerFrom(ctx context.Context) (valueobjects.Owner, error) {
	owner, ok := ctx.Value(ownerKey).(valueobjects.Owner)
	if !ok || owner.IsEmpty() {
		return valueobjects.Owner{}, pkgerrors.NewAccessDenied("no authenticated owner on context")
	}
	return owner, nil
}
