package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pqrs_dashboard/backend/internal/service"
)

type AreaRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=1000"`
	MaxResponseTime int    `json:"maxResponseTime" validate:"gte=0,lte=365"`
}

type AreaConfigRequest struct {
	MaxResponseTime int `json:"maxResponseTime" validate:"required,gt=0,lte=365"`
}

// @Summary List areas
// @Tags areas
// @Produce json
// @Success 200 {array} models.Department
// @Router /api/area [get]
func (h *Handler) AreaList(c *gin.Context) {
	items, err := h.Directory.ListDepartments(c.Request.Context(), actor(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Create area
// @Tags areas
// @Accept json
// @Produce json
// @Param body body AreaRequest true "Area"
// @Success 201 {object} models.Department
// @Router /api/area [post]
func (h *Handler) AreaCreate(c *gin.Context) {
	var req AreaRequest
	if !h.bind(c, &req) {
		return
	}
	dept, err := h.Directory.CreateDepartment(c.Request.Context(), actor(c), service.DepartmentInput{
		Name:            req.Name,
		Description:     req.Description,
		MaxResponseTime: req.MaxResponseTime,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dept)
}

// @Summary Update area response time
// @Tags areas
// @Accept json
// @Produce json
// @Param id path string true "Area id"
// @Param body body AreaConfigRequest true "Days"
// @Success 200 {object} models.PQRConfig
// @Router /api/area/{id}/config [patch]
func (h *Handler) AreaConfigUpdate(c *gin.Context) {
	var req AreaConfigRequest
	if !h.bind(c, &req) {
		return
	}
	cfg, err := h.Directory.UpdateDepartmentConfig(c.Request.Context(), actor(c), c.Param("id"), req.MaxResponseTime)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
