package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/service"
)

type UserRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	FirstName    string `json:"firstName" validate:"required,max=100"`
	LastName     string `json:"lastName" validate:"max=100"`
	Phone        string `json:"phone" validate:"max=30"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId"`
}

type EntityRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Code        string `json:"code" validate:"required,max=10"`
	Consecutive int64  `json:"consecutive" validate:"gte=0"`
}

// @Summary List staff
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Router /api/users [get]
func (h *Handler) UsersList(c *gin.Context) {
	items, err := h.Directory.ListUsers(c.Request.Context(), actor(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Create staff user
// @Tags users
// @Accept json
// @Produce json
// @Param body body UserRequest true "User"
// @Success 201 {object} models.User
// @Failure 409 {object} map[string]any
// @Router /api/users [post]
func (h *Handler) UsersCreate(c *gin.Context) {
	var req UserRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Directory.CreateUser(c.Request.Context(), actor(c), service.UserInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         models.Role(strings.ToUpper(strings.TrimSpace(req.Role))),
		DepartmentID: strings.TrimSpace(req.DepartmentID),
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// @Summary Active employees of an entity
// @Tags users
// @Produce json
// @Param id path string true "Entity id"
// @Success 200 {array} models.User
// @Router /api/entities/{id}/employees [get]
func (h *Handler) EntityEmployees(c *gin.Context) {
	items, err := h.Directory.ListEmployees(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary List entities
// @Tags entities
// @Produce json
// @Success 200 {array} models.Entity
// @Router /api/entities [get]
func (h *Handler) EntitiesList(c *gin.Context) {
	items, err := h.Directory.ListEntities(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Create entity
// @Tags entities
// @Accept json
// @Produce json
// @Param body body EntityRequest true "Entity"
// @Success 201 {object} models.Entity
// @Failure 409 {object} map[string]any
// @Router /api/entities [post]
func (h *Handler) EntitiesCreate(c *gin.Context) {
	var req EntityRequest
	if !h.bind(c, &req) {
		return
	}
	e, err := h.Directory.CreateEntity(c.Request.Context(), service.EntityInput{
		Name:        req.Name,
		Email:       req.Email,
		Code:        req.Code,
		Consecutive: req.Consecutive,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}
