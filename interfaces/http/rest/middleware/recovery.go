package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"analyst-backend/pkg/api"
)

// Recovery turns handler panics into 500 responses instead of dropped
// connections.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					api.JSON(w, http.StatusInternalServerError, api.ErrorResponse{
						Error: "internal error",
						Code:  "INTERNAL",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
