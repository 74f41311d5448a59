// Package middleware holds the HTTP middleware chain: caller identity,
// request logging and panic recovery.
package middleware

import (
	"net/http"

	"analyst-backend/application/appcontext"
	"analyst-backend/domain/core/valueobjects"
	"analyst-backend/pkg/api"
)

// OwnerHeader carries the authenticated caller identity. The gateway in
// front of this service validates credentials and forwards the resolved
// user id; requests arriving without it are rejected.
const OwnerHeader = "X-User-ID"

// Identity extracts the caller identity from the request headers and stamps
// it onto the request context. Handlers read it back with appcontext.OwnerFrom.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(OwnerHeader)
		if raw == "" {
			api.JSON(w, http.StatusUnauthorized, api.ErrorResponse{
				Error: "missing caller identity",
				Code:  "UNAUTHORIZED",
			})
			return
		}

		owner, err := valueobjects.NewOwner(raw)
		if err != nil {
			api.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(appcontext.WithOwner(r.Context(), owner)))
	})
}
