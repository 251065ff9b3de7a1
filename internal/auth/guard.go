package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"vendosync/internal/logger"
)

// Guard middleware ограничения доступа по роли
type Guard struct {
	auth *Authenticator
}

func NewGuard(a *Authenticator) *Guard {
	return &Guard{auth: a}
}

// Require пропускает запрос, только если роль сотрудника не ниже min.
// 401 без валидного токена, 403 при недостаточной роли.
func (g *Guard) Require(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context())

			actor, err := g.auth.Authenticate(BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				log.Debug("Authentication failed", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "auth/unauthenticated", "Authentication required.")
				return
			}

			if !actor.Role.AtLeast(min) {
				log.Debug("Insufficient role",
					zap.String("uid", actor.UID),
					zap.Stringer("role", actor.Role),
					zap.Stringer("required", min),
				)
				writeError(w, http.StatusForbidden, "auth/invalid-position", "Your position does not allow this action.")
				return
			}

			ctx := WithActor(r.Context(), actor)
			ctx = logger.WithContext(ctx, log.With(zap.String("uid", actor.UID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
