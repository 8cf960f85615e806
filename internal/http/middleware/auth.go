package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pqrs_dashboard/backend/internal/access"
	"github.com/pqrs_dashboard/backend/internal/auth"
)

const (
	EntityHeader = "X-Entity-Id"

	principalKey = "auth.principal"
	entityKey    = "auth.entity"
)

type TokenVerifier interface {
	Verify(raw string) (auth.Principal, error)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": nil,
		},
	})
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(auth.CookieName); err == nil {
		return cookie
	}
	return ""
}

// Auth resolves the session token and the entity in effect for the call.
// The entity defaults to the caller's own; X-Entity-Id selects another one
// and is only honoured for roles allowed to switch entities.
func Auth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		p, err := tokens.Verify(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session")
			return
		}

		entity := p.EntityID
		if requested := strings.TrimSpace(c.GetHeader(EntityHeader)); requested != "" && requested != p.EntityID {
			if !access.Has(p.Role, access.SwitchEntity) {
				abort(c, http.StatusForbidden, "FORBIDDEN", "Entity selection not allowed")
				return
			}
			entity = requested
		}

		c.Set(principalKey, p)
		c.Set(entityKey, entity)
		c.Next()
	}
}

// Require rejects callers whose role lacks the capability.
func Require(need access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !access.Has(p.Role, need) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func EntityFrom(c *gin.Context) string {
	return c.GetString(entityKey)
}
