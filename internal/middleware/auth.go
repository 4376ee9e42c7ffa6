package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spatialdeez/microstore/internal/api/httpx"
	"github.com/spatialdeez/microstore/internal/auth"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

// PrincipalLoader reloads a user so the admin flag is always current.
type PrincipalLoader interface {
	Principal(ctx context.Context, userID int64) (*auth.Principal, error)
}

type AuthMiddleware struct {
	TM       *auth.TokenManager
	Sessions *auth.Sessions
	Users    PrincipalLoader
}

func NewAuthMiddleware(tm *auth.TokenManager, s *auth.Sessions, users PrincipalLoader) *AuthMiddleware {
	return &AuthMiddleware{TM: tm, Sessions: s, Users: users}
}

// Authenticate attaches the caller to the request context. A bearer access
// token wins over the session cookie. Requests without credentials pass
// through anonymously; a bad bearer token is rejected.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			uid int64
			ok  bool
		)
		if ah := r.Header.Get("Authorization"); ah != "" {
			if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token", nil)
				return
			}
			claims, err := m.TM.ParseAccess(strings.TrimSpace(ah[len("Bearer "):]))
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid access token", nil)
				return
			}
			uid, ok = claims.UserID, true
		} else if m.Sessions != nil {
			uid, ok = m.Sessions.UserID(r)
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		p, err := m.Users.Principal(r.Context(), uid)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			// deleted user with a stale token or cookie
			next.ServeHTTP(w, r)
			return
		case err != nil:
			slog.Error("load principal", "err", err, "user_id", uid)
			httpx.WriteError(w, http.StatusServiceUnavailable, "persistence_failure", "temporary storage failure, retry", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
