package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/userhub/user-service/internal/core/domain"
)

// Context keys set by Auth.
const (
	CallerKey = "caller"
	RoleKey   = "role"
)

const msRoleClaim = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

var (
	subjectClaims = []string{"sub", "user_id", "uid"}
	roleClaims    = []string{"role", "roles", msRoleClaim}
)

// callerFromClaims builds a CallerContext from whichever subject and role
// aliases the issuer used. A token without a subject yields an empty
// ExternalAuthID.
func callerFromClaims(claims jwt.MapClaims) domain.CallerContext {
	var caller domain.CallerContext

	for _, key := range subjectClaims {
		if s := claimString(claims[key]); s != "" {
			caller.ExternalAuthID = s
			break
		}
	}

	for _, key := range roleClaims {
		if r := claimRole(claims[key]); r != domain.RoleNone {
			caller.Role = r
			return caller
		}
	}
	// Keycloak nests realm roles under realm_access.roles.
	if realm, ok := claims["realm_access"].(map[string]any); ok {
		caller.Role = claimRole(realm["roles"])
	}
	return caller
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// claimRole accepts a single role or a list; admin wins when listed.
func claimRole(v any) domain.Role {
	switch t := v.(type) {
	case string:
		return domain.ParseRole(strings.ToLower(strings.TrimSpace(t)))
	case []any:
		found := domain.RoleNone
		for _, item := range t {
			switch claimRole(item) {
			case domain.RoleAdmin:
				return domain.RoleAdmin
			case domain.RoleUser:
				found = domain.RoleUser
			}
		}
		return found
	}
	return domain.RoleNone
}
