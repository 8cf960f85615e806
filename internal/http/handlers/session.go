package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pqrs_dashboard/backend/internal/access"
	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/http/middleware"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Directory.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	token, exp, err := h.Tokens.Issue(auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, EntityID: u.EntityID})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.Tokens.TTL.Seconds()), "/", "", h.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp, "user": u})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.SecureCookie, true)
	c.Status(http.StatusNoContent)
}

// @Summary Current session
// @Description Principal, entity in effect, capabilities and menu entries
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/me [get]
func (h *Handler) Me(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"user":         p,
		"entityId":     middleware.EntityFrom(c),
		"capabilities": access.Capabilities(p.Role),
		"menu":         access.Menu(p.Role),
	})
}

func (h *Handler) ProfileGet(c *gin.Context) {
	u, err := h.Directory.Profile(c.Request.Context(), actor(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type ProfileRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

func (h *Handler) ProfileUpdate(c *gin.Context) {
	var req ProfileRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Directory.UpdateProfile(c.Request.Context(), actor(c), req.FirstName, req.LastName)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
