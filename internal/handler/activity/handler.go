package activity

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/churchdesk/admin-api/internal/handler"
	activityService "github.com/churchdesk/admin-api/internal/service/activity"
)

type Handler struct {
	service activityService.ActivityServicer
}

func NewHandler(service activityService.ActivityServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/activity", h.Recent)
}

func (h *Handler) Recent(c *gin.Context) {
	limit, err := handler.IntQuery(c, "limit")
	if err != nil {
		_ = c.Error(err)
		return
	}

	entries, err := h.service.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}
