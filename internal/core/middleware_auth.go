package core

import (
	"errors"
	"net/http"
	"strings"

	"pantrynotify/internal/types"
)

// authPublicPaths bypass AuthMiddleware.
var authPublicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware requires a bearer token on every non-public route and stores
// the resolved Actor in the context. Without an Authenticator it passes
// through, which is only used by tests.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil || authPublicPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Bearer token is required", nil))
			return
		}

		actor, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			var appErr *types.AppError
			if !errors.As(err, &appErr) || appErr.Code.HTTPStatus() != http.StatusUnauthorized {
				s.Logger.ErrorContext(r.Context(), "token resolution failed", "error", err)
				err = types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid authentication token", err)
			}
			Error(w, r, err)
			return
		}
		if actor == nil {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid authentication token", nil))
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithActor(r.Context(), *actor)))
	})
}

// extractBearerToken parses "Bearer <token>" with a case-insensitive scheme.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
