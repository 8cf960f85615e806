package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/files"
	"github.com/pqrs_dashboard/backend/internal/http/middleware"
	"github.com/pqrs_dashboard/backend/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Store        Pinger
	Lifecycle    *service.Lifecycle
	Intake       *service.Intake
	Directory    *service.Directory
	Dashboard    *service.Dashboard
	Files        *files.Local
	Tokens       *auth.Tokens
	Validator    *validator.Validate
	Logger       zerolog.Logger
	MaxUploadMB  int64
	SecureCookie bool
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func actor(c *gin.Context) service.Actor {
	p, _ := middleware.PrincipalFrom(c)
	return service.Actor{UserID: p.UserID, Role: p.Role, EntityID: middleware.EntityFrom(c)}
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var nerr *service.NotificationError
	switch {
	case errors.As(err, &nerr):
		h.logger(c).Error().Err(err).Str("pqr_id", nerr.PQR.ID).Msg("notification after commit failed")
		writeError(c, http.StatusInternalServerError, "NOTIFICATION_FAILED",
			"The request was saved but the notification could not be sent",
			gin.H{"pqrId": nerr.PQR.ID, "consecutiveCode": nerr.PQR.ConsecutiveCode, "error": nerr.Err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrConfigurationMissing):
		writeError(c, http.StatusBadRequest, "CONFIGURATION_MISSING", "Configuration not found", err.Error())
	case errors.Is(err, service.ErrNoOp):
		writeError(c, http.StatusBadRequest, "STATUS_UNCHANGED", "Status is already set to this value", nil)
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(c, http.StatusBadRequest, "INVALID_STATUS", "Invalid status", nil)
	case errors.Is(err, service.ErrDepartmentMismatch):
		writeError(c, http.StatusBadRequest, "DEPARTMENT_MISMATCH", "Employee does not belong to the request department", nil)
	case errors.Is(err, service.ErrValidation):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(c, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil)
	default:
		h.logger(c).Error().Err(err).Str("path", c.FullPath()).Msg("internal error")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

func (h *Handler) logger(c *gin.Context) *zerolog.Logger {
	l := zerolog.Ctx(c.Request.Context())
	if l.GetLevel() == zerolog.Disabled {
		return &h.Logger
	}
	return l
}
