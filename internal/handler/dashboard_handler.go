package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-reporting-api/internal/service"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/response"
)

// DashboardHandler serves the role-scoped landing summary.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Role-scoped dashboard summary
// @Description Counts computed through the same scoped filters as the list endpoints
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, cached, err := h.dashboard.Summary(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cached": cached})
}
