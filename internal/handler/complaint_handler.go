package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/service"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/response"
)

// ComplaintHandler exposes complaint endpoints.
type ComplaintHandler struct {
	complaints *service.ComplaintService
}

// NewComplaintHandler constructs ComplaintHandler.
func NewComplaintHandler(complaints *service.ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints}
}

// List godoc
// @Summary List complaints visible to the caller
// @Tags Complaints
// @Produce json
// @Param status query string false "Filter by status"
// @Param courseId query string false "Filter by course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ComplaintFilter
	if status := c.Query("status"); status != "" {
		s := models.ComplaintStatus(status)
		filter.Status = &s
	}
	if courseID := c.Query("courseId"); courseID != "" {
		filter.CourseID = &courseID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	complaints, pagination, err := h.complaints.List(c.Request.Context(), id, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaints, pagination)
}

// Get godoc
// @Summary Get complaint detail
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.complaints.Get(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Create godoc
// @Summary File a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body models.CreateComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	complaint, err := h.complaints.Create(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// Resolve godoc
// @Summary Resolve a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body models.ResolveComplaintRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/resolve [post]
func (h *ComplaintHandler) Resolve(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.ResolveComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	complaint, err := h.complaints.Resolve(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}
