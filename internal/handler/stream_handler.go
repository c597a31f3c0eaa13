package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/service"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/response"
)

// StreamHandler exposes stream administration endpoints.
type StreamHandler struct {
	streams *service.StreamService
}

// NewStreamHandler constructs StreamHandler.
func NewStreamHandler(streams *service.StreamService) *StreamHandler {
	return &StreamHandler{streams: streams}
}

// List godoc
// @Summary List streams
// @Tags Streams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /streams [get]
func (h *StreamHandler) List(c *gin.Context) {
	streams, err := h.streams.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, streams, nil)
}

// Get godoc
// @Summary Get stream detail
// @Tags Streams
// @Produce json
// @Param id path string true "Stream ID"
// @Success 200 {object} response.Envelope
// @Router /streams/{id} [get]
func (h *StreamHandler) Get(c *gin.Context) {
	stream, err := h.streams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stream, nil)
}

// Create godoc
// @Summary Create stream
// @Tags Streams
// @Accept json
// @Produce json
// @Param payload body models.CreateStreamRequest true "Stream payload"
// @Success 201 {object} response.Envelope
// @Router /streams [post]
func (h *StreamHandler) Create(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stream, err := h.streams.Create(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stream)
}

// Update godoc
// @Summary Update stream
// @Tags Streams
// @Accept json
// @Produce json
// @Param id path string true "Stream ID"
// @Param payload body models.UpdateStreamRequest true "Stream payload"
// @Success 200 {object} response.Envelope
// @Router /streams/{id} [put]
func (h *StreamHandler) Update(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stream, err := h.streams.Update(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stream, nil)
}

// Delete godoc
// @Summary Delete stream
// @Tags Streams
// @Produce json
// @Param id path string true "Stream ID"
// @Success 204
// @Router /streams/{id} [delete]
func (h *StreamHandler) Delete(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.streams.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
