package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pqrs_dashboard/backend/internal/access"
	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/models"
)

func newTestRouter(tokens *auth.Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/whoami", Auth(tokens), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": p.UserID, "entity": EntityFrom(c)})
	})
	r.GET("/areas", Auth(tokens), Require(access.ManageAreas), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func issue(t *testing.T, tokens *auth.Tokens, role models.Role) string {
	t.Helper()
	raw, _, err := tokens.Issue(auth.Principal{UserID: "u1", Role: role, EntityID: "e1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return raw
}

func TestAuthRequiresToken(t *testing.T) {
	r := newTestRouter(auth.NewTokens("k", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAuthAcceptsCookie(t *testing.T) {
	tokens := auth.NewTokens("k", time.Hour)
	r := newTestRouter(tokens)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: issue(t, tokens, models.RoleEmployee)})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEntityHeader(t *testing.T) {
	tokens := auth.NewTokens("k", time.Hour)
	r := newTestRouter(tokens)

	cases := []struct {
		role models.Role
		want int
	}{
		{models.RoleSuperAdmin, http.StatusOK},
		{models.RoleAdmin, http.StatusForbidden},
		{models.RoleEmployee, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, tokens, tc.role))
		req.Header.Set(EntityHeader, "e2")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.role, tc.want, w.Code)
		}
	}

	// sending one's own entity is always fine
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, models.RoleEmployee))
	req.Header.Set(EntityHeader, "e1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for own entity, got %d", w.Code)
	}
}

func TestRequireCapability(t *testing.T) {
	tokens := auth.NewTokens("k", time.Hour)
	r := newTestRouter(tokens)
	for role, want := range map[models.Role]int{
		models.RoleAdmin:    http.StatusNoContent,
		models.RoleEmployee: http.StatusForbidden,
		models.RoleClient:   http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/areas", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, tokens, role))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", role, want, w.Code)
		}
	}
}
