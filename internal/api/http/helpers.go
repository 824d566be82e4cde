package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/brightpath/brightpath-lms/internal/rbac"
	"github.com/brightpath/brightpath-lms/internal/session"
)

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// identityFromContext builds the injected identity the session engine is
// constructed with; handlers never look the current user up ad hoc.
func identityFromContext(r *http.Request) (session.Identity, bool) {
	id := session.Identity{
		ID:   rbac.SubjectFromContext(r.Context()),
		Role: rbac.RoleFromContext(r.Context()),
	}
	return id, id.ID != ""
}
