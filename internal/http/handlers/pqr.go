package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pqrs_dashboard/backend/internal/files"
	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/service"
	"github.com/pqrs_dashboard/backend/internal/utils"
)

type CustomFieldDTO struct {
	Name        string `json:"name" validate:"required,max=200"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
}

type AttachmentDTO struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required"`
	Type string `json:"type"`
	Size int64  `json:"size" validate:"gte=0"`
}

type CreatePQRRequest struct {
	Type         string           `json:"type" validate:"required"`
	DepartmentID string           `json:"departmentId" validate:"required"`
	EntityID     string           `json:"entityId"`
	IsAnonymous  bool             `json:"isAnonymous"`
	IsPrivate    bool             `json:"isPrivate"`
	Subject      string           `json:"subject" validate:"max=300"`
	Description  string           `json:"description"`
	CustomFields []CustomFieldDTO `json:"customFields" validate:"dive"`
	Attachments  []AttachmentDTO  `json:"attachments" validate:"dive"`
}

func (r CreatePQRRequest) input() service.CreateInput {
	in := service.CreateInput{
		Type:         models.PQRType(strings.ToUpper(strings.TrimSpace(r.Type))),
		DepartmentID: r.DepartmentID,
		EntityID:     r.EntityID,
		Anonymous:    r.IsAnonymous,
		Private:      r.IsPrivate,
		Subject:      r.Subject,
		Description:  r.Description,
	}
	for _, f := range r.CustomFields {
		in.CustomFields = append(in.CustomFields, service.CustomFieldInput{
			Name: f.Name, Value: f.Value, Type: f.Type, Placeholder: f.Placeholder, Required: f.Required,
		})
	}
	for _, a := range r.Attachments {
		in.Attachments = append(in.Attachments, service.AttachmentInput{Name: a.Name, URL: a.URL, Type: a.Type, Size: a.Size})
	}
	return in
}

func parseFilter(c *gin.Context) (models.PQRFilter, bool) {
	f := models.PQRFilter{
		DepartmentID: strings.TrimSpace(c.Query("departmentId")),
		Status:       models.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Type:         models.PQRType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
	}
	var err error
	if f.StartDate, err = utils.ParseDateParam(c.Query("startDate"), false); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid startDate", err.Error())
		return f, false
	}
	if f.EndDate, err = utils.ParseDateParam(c.Query("endDate"), true); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid endDate", err.Error())
		return f, false
	}
	return f, true
}

// @Summary List PQRS
// @Tags pqr
// @Produce json
// @Param departmentId query string false "Department"
// @Param startDate query string false "From (YYYY-MM-DD or RFC3339)"
// @Param endDate query string false "To (YYYY-MM-DD or RFC3339)"
// @Param status query string false "PENDING, IN_PROGRESS, RESOLVED, CLOSED"
// @Param type query string false "PETITION, COMPLAINT, CLAIM, SUGGESTION, REPORT"
// @Success 200 {array} models.PQRS
// @Router /api/pqr [get]
func (h *Handler) PQRList(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	items, err := h.Lifecycle.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Dashboard metrics
// @Tags pqr
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Router /api/pqr/stats [get]
func (h *Handler) PQRStats(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	stats, err := h.Dashboard.Stats(c.Request.Context(), actor(c), filter)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) PQRDetails(c *gin.Context) {
	p, err := h.Lifecycle.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Create PQRS
// @Description Multipart form: "data" holds the JSON payload, "files" the uploads. A plain JSON body is accepted too.
// @Tags pqr
// @Accept multipart/form-data
// @Produce json
// @Param data formData string true "JSON payload"
// @Param files formData file false "Attachments"
// @Success 201 {object} models.PQRS
// @Failure 400 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /api/pqr [post]
func (h *Handler) PQRCreate(c *gin.Context) {
	if h.MaxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadMB<<20)
	}

	var req CreatePQRRequest
	multipartBody := strings.HasPrefix(c.ContentType(), "multipart/")
	if multipartBody {
		raw := c.PostForm("data")
		if raw == "" {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "data field required", nil)
			return
		}
		dec := json.NewDecoder(bytes.NewBufferString(raw))
		if err := dec.Decode(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid data payload", err.Error())
			return
		}
		if err := h.Validator.Struct(req); err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
			return
		}
	} else if !h.bind(c, &req) {
		return
	}

	in := req.input()
	var uploads []files.Stored
	if multipartBody && h.Files != nil {
		form, err := c.MultipartForm()
		if err == nil {
			for _, fh := range form.File["files"] {
				stored, err := h.Files.Save(c.Request.Context(), fh)
				if err != nil {
					h.discardUploads(c, uploads)
					h.writeServiceError(c, err)
					return
				}
				uploads = append(uploads, stored)
				in.Attachments = append(in.Attachments, service.AttachmentInput{
					Name: stored.Name, URL: stored.URL, Type: stored.Type, Size: stored.Size,
				})
			}
		}
	}

	p, err := h.Intake.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		// A notification failure happens after commit, so the attachments
		// belong to a stored request and must stay.
		var nerr *service.NotificationError
		if !errors.As(err, &nerr) {
			h.discardUploads(c, uploads)
		}
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) discardUploads(c *gin.Context, uploads []files.Stored) {
	if len(uploads) == 0 {
		return
	}
	if err := h.Files.RemoveAll(uploads); err != nil {
		h.logger(c).Warn().Err(err).Int("files", len(uploads)).Msg("discard uploads")
	}
}

// @Summary Status history
// @Tags pqr
// @Produce json
// @Param id path string true "PQR id"
// @Success 200 {array} models.StatusHistoryEntry
// @Failure 404 {object} map[string]any
// @Router /api/pqr/{id}/status [get]
func (h *Handler) PQRHistory(c *gin.Context) {
	items, err := h.Lifecycle.History(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type StatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment" validate:"max=2000"`
}

// @Summary Change status
// @Tags pqr
// @Accept json
// @Produce json
// @Param id path string true "PQR id"
// @Param body body StatusRequest true "New status"
// @Success 200 {object} service.TransitionResult
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/pqr/{id}/status [patch]
func (h *Handler) PQRTransition(c *gin.Context) {
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Lifecycle.Transition(c.Request.Context(), actor(c), c.Param("id"),
		models.Status(strings.ToUpper(strings.TrimSpace(req.Status))), strings.TrimSpace(req.Comment))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary List responses
// @Tags pqr
// @Produce json
// @Param id path string true "PQR id"
// @Success 200 {array} models.PQRComment
// @Failure 404 {object} map[string]any
// @Router /api/pqr/{id}/comments [get]
func (h *Handler) PQRComments(c *gin.Context) {
	items, err := h.Lifecycle.ListComments(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// @Summary Add a response
// @Tags pqr
// @Accept json
// @Produce json
// @Param id path string true "PQR id"
// @Param body body CommentRequest true "Response text"
// @Success 201 {object} models.PQRComment
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/pqr/{id}/comments [post]
func (h *Handler) PQRCommentCreate(c *gin.Context) {
	var req CommentRequest
	if !h.bind(c, &req) {
		return
	}
	comment, err := h.Lifecycle.AddComment(c.Request.Context(), actor(c), c.Param("id"), req.Text)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// nullableID tells an explicit null apart from a missing field.
type nullableID struct {
	Set   bool
	Value *string
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type AssignRequest struct {
	AssignedToID nullableID `json:"assignedToId"`
}

// @Summary Assign or unassign
// @Description assignedToId null clears the assignment and returns the request to PENDING
// @Tags pqr
// @Accept json
// @Produce json
// @Param id path string true "PQR id"
// @Success 200 {object} models.PQRS
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/pqr/{id}/assign [patch]
func (h *Handler) PQRAssign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !req.AssignedToID.Set {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "assignedToId is required, use null to unassign", nil)
		return
	}
	p, err := h.Lifecycle.Assign(c.Request.Context(), actor(c), c.Param("id"), req.AssignedToID.Value)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
