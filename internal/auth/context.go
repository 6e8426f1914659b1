package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the authenticated actor for one request or CLI invocation.
type Session struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Role     domain.Role
	Token    string
}

// ContextWithSession returns a new context that carries the authenticated session.
func ContextWithSession(ctx context.Context, session Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves the authenticated session from the context, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	session, ok := ctx.Value(sessionKey).(Session)
	if !ok || session.UserID == uuid.Nil {
		return Session{}, false
	}
	return session, true
}

// RequireSession returns the session or a PermissionError when the context is anonymous.
func RequireSession(ctx context.Context, op string) (Session, error) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return Session{}, domain.PermissionError(op, "authentication required")
	}
	return session, nil
}
