package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
	"github.com/rpattn/auditdesk/internal/logging"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Session, error)
}

// SessionMiddleware resolves the bearer token, when one is sent, and stores the
// session on the context. Requests without a token pass through anonymous and
// are rejected by the services that need a session.
func SessionMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			session, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Info("bearer token rejected", zap.Error(err))
				render.Unauthorized(w, err)
				return
			}

			ctx := auth.ContextWithSession(r.Context(), session)
			logger := logging.FromContext(ctx).With(
				zap.String("actor_id", session.UserID.String()),
				zap.String("actor_role", string(session.Role)),
			)
			ctx = logging.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
