package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/web"
)

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated user.
func WithPrincipal(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

// PrincipalFrom returns the authenticated user, if any.
func PrincipalFrom(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(principalKey{}).(*entity.User)
	return u, ok && u != nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Authenticator resolves a bearer access token to the current user record and
// attaches it to the request. Requests with a missing, invalid or expired
// token continue anonymously.
func Authenticator(codec *TokenCodec, users Principals, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := codec.Decode(token)
			if err != nil {
				logger.Debugw("bearer token rejected", "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if claims.Type != TokenAccess || !codec.live(claims) {
				logger.Debugw("bearer token not usable", "path", r.URL.Path, "type", claims.Type)
				next.ServeHTTP(w, r)
				return
			}
			u, err := users.GetByUsername(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				web.WriteError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), u)))
		})
	}
}
