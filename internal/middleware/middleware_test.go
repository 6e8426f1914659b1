package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/logging"
	"github.com/rpattn/auditdesk/internal/mapview"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/repository/memstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuthenticator struct {
	sessions map[string]auth.Session
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (auth.Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return auth.Session{}, domain.PermissionError("users.Authenticate", "session expired or invalid")
	}
	return session, nil
}

func TestSessionMiddlewareAttachesSession(t *testing.T) {
	userID := uuid.New()
	authn := stubAuthenticator{sessions: map[string]auth.Session{
		"good": {UserID: userID, Role: domain.RoleAdmin},
	}}

	var seen *auth.Session
	handler := SessionMiddleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := auth.SessionFromContext(r.Context()); ok {
			seen = &s
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if seen == nil || seen.UserID != userID {
		t.Fatalf("expected session for %s, got %+v", userID, seen)
	}
}

func TestSessionMiddlewareRejectsUnknownToken(t *testing.T) {
	called := false
	handler := SessionMiddleware(stubAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler should not run for a rejected token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddlewareAnonymousPassesThrough(t *testing.T) {
	hasSession := true
	handler := SessionMiddleware(stubAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSession = auth.SessionFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if hasSession {
		t.Fatal("anonymous request should carry no session")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		got, _ := bearerToken(req)
		if got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestLoggingMiddlewareLogsRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	var ctxLogger *zap.Logger
	r := chi.NewRouter()
	r.Use(LoggingMiddleware(logger, metrics.New()))
	r.Get("/facilities/{id}", func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = logging.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/facilities/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if ctxLogger == nil || !ctxLogger.Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected a request logger on the context")
	}
	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("unexpected status field %v", fields["status"])
	}
	if fields["path"] != "/facilities/abc" {
		t.Fatalf("unexpected path field %v", fields["path"])
	}
}

func TestDataLoaderMiddlewareAttachesLoader(t *testing.T) {
	store := memstore.New()
	var loader *mapview.AnswerLoader
	handler := DataLoaderMiddleware(store.Audits())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loader = mapview.AnswerLoaderFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if loader == nil {
		t.Fatal("expected an answer loader on the request context")
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := routePattern(req); got != "unmatched" {
		t.Fatalf("unexpected pattern %q", got)
	}
}
