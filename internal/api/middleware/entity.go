package middleware

import (
	"net/http"
	"strings"

	pkgmw "github.com/Hazard-House/openclaw/pkg/middleware"
)

// EntityHeader names the broker entity a request acts for.
const EntityHeader = "X-Openclaw-Entity"

// EntityExtractor stores the caller's entity on the request context. It
// checks the X-Openclaw-Entity header, then the entity query parameter.
// When neither is set the context is left alone and the orchestrator falls
// back to its default entity.
func EntityExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entity := entityOf(r)
		if entity == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(pkgmw.SetEntity(r.Context(), entity)))
	})
}

func entityOf(r *http.Request) string {
	if entity := strings.TrimSpace(r.Header.Get(EntityHeader)); entity != "" {
		return entity
	}
	return strings.TrimSpace(r.URL.Query().Get("entity"))
}
