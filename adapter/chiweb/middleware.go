package chiweb

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gopanel/gopanel/auth"
	"github.com/gopanel/gopanel/web"
)

// Auth verifies the panel session token from the Authorization header or
// the gopanel_token cookie and stashes the identity on the request
// context.
func Auth(secret string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r.Header.Get("Authorization"))
			if tokenStr == "" {
				if cookie, err := r.Cookie("gopanel_token"); err == nil {
					tokenStr = cookie.Value
				}
			}
			if tokenStr == "" {
				http.Error(w, "missing session token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(secret, tokenStr)
			if err != nil {
				log.Debug("token parse error", zap.Error(err))
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey(web.CtxUserID), claims.UserID)
			ctx = context.WithValue(ctx, ctxKey(web.CtxUserRepr), claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return token
}
