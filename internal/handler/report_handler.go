package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/service"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/response"
)

// ReportHandler exposes the lecture report lifecycle.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List godoc
// @Summary List reports visible to the caller
// @Tags Reports
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param week query int false "Filter by reporting week"
// @Param search query string false "Search topic"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ReportFilter
	if courseID := c.Query("courseId"); courseID != "" {
		filter.CourseID = &courseID
	}
	if classID := c.Query("classId"); classID != "" {
		filter.ClassID = &classID
	}
	if status := c.Query("status"); status != "" {
		s := models.ReportStatus(status)
		filter.Status = &s
	}
	if week, err := strconv.Atoi(c.Query("week")); err == nil {
		filter.Week = &week
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	reports, pagination, err := h.reports.List(c.Request.Context(), id, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// Get godoc
// @Summary Get report detail
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.reports.Get(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Feedback godoc
// @Summary List review feedback for a report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/feedback [get]
func (h *ReportHandler) Feedback(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	feedback, err := h.reports.ListFeedback(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feedback, nil)
}

// Create godoc
// @Summary Submit a lecture report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body models.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.Create(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Update godoc
// @Summary Edit a pending report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body models.UpdateReportRequest true "Report payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [put]
func (h *ReportHandler) Update(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.Update(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Delete godoc
// @Summary Delete a pending report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 204
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.reports.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Review godoc
// @Summary Review a report
// @Description Append feedback and/or advance the report status
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body models.ReviewReportRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/review [post]
func (h *ReportHandler) Review(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.ReviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.Review(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
