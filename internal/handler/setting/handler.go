package setting

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/churchdesk/admin-api/internal/handler"
	"github.com/churchdesk/admin-api/internal/model"
	settingService "github.com/churchdesk/admin-api/internal/service/setting"
	"github.com/churchdesk/admin-api/pkg/errors"
)

type Handler struct {
	service settingService.SettingServicer
}

func NewHandler(service settingService.SettingServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	settings := r.Group("/settings")
	{
		settings.GET("/:type", h.GetSettings)
		settings.PUT("/:type", h.UpdateSettings)
		settings.POST("/:type/test", h.TestSend)
	}
}

type updateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required"`
}

type testSendRequest struct {
	Destination string `json:"destination" binding:"required"`
}

func (h *Handler) GetSettings(c *gin.Context) {
	values, err := h.service.GetSettings(c.Request.Context(), model.SettingType(c.Param("type")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(values))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.InvalidRequest("settings object is required"))
		return
	}

	if err := h.service.UpdateSettings(c.Request.Context(), model.SettingType(c.Param("type")), req.Settings); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("settings updated"))
}

// TestSend reports provider failures with 200 and success=false so the
// settings screen can show the provider's message.
func (h *Handler) TestSend(c *gin.Context) {
	var req testSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.InvalidRequest("destination is required"))
		return
	}

	out, err := h.service.TestSend(c.Request.Context(), model.SettingType(c.Param("type")), req.Destination)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, out)
}
