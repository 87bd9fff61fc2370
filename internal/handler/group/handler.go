package group

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/churchdesk/admin-api/internal/handler"
	groupService "github.com/churchdesk/admin-api/internal/service/group"
	"github.com/churchdesk/admin-api/pkg/errors"
)

type Handler struct {
	service groupService.GroupServicer
}

func NewHandler(service groupService.GroupServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	groups := r.Group("/groups")
	{
		groups.GET("", h.ListGroups)
		groups.POST("", h.CreateGroup)
		// ?group_id= is kept for the existing admin screens
		groups.DELETE("", h.DeleteGroup)
		groups.DELETE("/:id", h.DeleteGroup)
	}
}

type createGroupRequest struct {
	Name        string  `json:"group_name" binding:"required"`
	Description string  `json:"description"`
	Type        string  `json:"group_type" binding:"omitempty,oneof=static dynamic"`
	MemberIDs   []int64 `json:"member_ids"`
}

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(groups))
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.InvalidRequest("group_name is required and group_type must be static or dynamic"))
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), groupService.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		MemberIDs:   req.MemberIDs,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &handler.Response{
		Success: true,
		Message: "group created",
		Data:    group,
	})
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.Query("group_id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errors.InvalidRequest("group_id must be a positive integer"))
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("group deleted"))
}
