package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/AdventureEngine/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Auth holds basic-auth credentials. The zero value disables authentication.
type Auth struct {
	AdminUser    string
	AdminPass    string
	OperatorUser string
	OperatorPass string
}

// AuthFromEnv loads credentials from environment variables or files.
// Supports *_FILE convention: if ADVENTURE_ADMIN_USER_FILE is set, reads from that file.
// If none are set, authentication is disabled (dev-friendly).
func AuthFromEnv() (*Auth, error) {
	a := &Auth{}
	for _, f := range []struct {
		env string
		dst *string
	}{
		{"ADVENTURE_ADMIN_USER", &a.AdminUser},
		{"ADVENTURE_ADMIN_PASS", &a.AdminPass},
		{"ADVENTURE_OPERATOR_USER", &a.OperatorUser},
		{"ADVENTURE_OPERATOR_PASS", &a.OperatorPass},
	} {
		v, err := config.ResolveSecret(f.env)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f.env, err)
		}
		*f.dst = v
	}
	return a, nil
}

// Enabled returns true if admin credentials are configured.
func (a *Auth) Enabled() bool {
	return a != nil && a.AdminUser != "" && a.AdminPass != ""
}

// authenticate checks basic auth credentials and returns the role if valid.
// Returns empty string if credentials are invalid.
func (a *Auth) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin // No auth configured = full access
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if secureCompare(user, a.AdminUser) && secureCompare(pass, a.AdminPass) {
		return RoleAdmin
	}

	if a.OperatorUser != "" && a.OperatorPass != "" {
		if secureCompare(user, a.OperatorUser) && secureCompare(pass, a.OperatorPass) {
			return RoleOperator
		}
	}

	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Adventure Engine"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// Require returns middleware admitting only the given roles.
func (a *Auth) Require(allowedRoles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := a.authenticate(r)
			if role == "" {
				requireAuth(w)
				return
			}

			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// RequireAnyRole admits admin or operator.
func (a *Auth) RequireAnyRole() func(http.Handler) http.Handler {
	return a.Require(RoleAdmin, RoleOperator)
}

// RequireAdmin admits admin only.
func (a *Auth) RequireAdmin() func(http.Handler) http.Handler {
	return a.Require(RoleAdmin)
}
