package middleware

import (
	"net/http"

	"github.com/rpattn/auditdesk/internal/mapview"
	"github.com/rpattn/auditdesk/internal/repository"
)

// DataLoaderMiddleware attaches a fresh answer loader to each request so
// batching never leaks results across requests.
func DataLoaderMiddleware(repo repository.AuditRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := mapview.NewAnswerLoader(repo)
			ctx := mapview.WithAnswerLoader(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
