package communication

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/churchdesk/admin-api/internal/channel"
	"github.com/churchdesk/admin-api/internal/dispatch"
	"github.com/churchdesk/admin-api/internal/handler"
	"github.com/churchdesk/admin-api/internal/middleware"
	"github.com/churchdesk/admin-api/internal/model"
	messageService "github.com/churchdesk/admin-api/internal/service/message"
	"github.com/churchdesk/admin-api/pkg/errors"
)

type Handler struct {
	dispatcher dispatch.DispatchServicer
	messages   messageService.MessageServicer
	validation middleware.ValidationConfig
}

func NewHandler(dispatcher dispatch.DispatchServicer, messages messageService.MessageServicer) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		messages:   messages,
		validation: middleware.DefaultValidationConfig(),
	}
}

// RegisterRoutes mounts the communication endpoints on r, which is expected
// to be the /communication group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/send", h.Send)
	r.GET("/stats", h.Stats)
	r.GET("/sms/info", h.SMSInfo)
	r.GET("/recipients", h.Recipients)

	messages := r.Group("/messages")
	{
		messages.GET("", h.ListMessages)
		messages.GET("/:id", h.GetMessage)
		messages.DELETE("/:id", h.DeleteMessage)
		messages.POST("/:id/resume", h.ResumeMessage)
	}

	r.DELETE("/scheduled/:messageID", h.CancelSchedule)
}

type sendRequest struct {
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	MessageType   string          `json:"message_type"`
	Channels      []model.Channel `json:"delivery_channels" binding:"dive,channel"`
	AudienceType  string          `json:"audience_type" binding:"audience"`
	AudienceValue string          `json:"audience_value"`
	GroupID       *int64          `json:"group_id"`
	MemberIDs     []int64         `json:"member_ids"`
	Action        string          `json:"action"`
	ScheduledAt   string          `json:"scheduled_at"`
}

type sendResponse struct {
	Success bool `json:"success"`
	*dispatch.Result
}

func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(h.bindError(err))
		return
	}

	res, err := h.dispatcher.Dispatch(c.Request.Context(), dispatch.Request{
		Title:         req.Title,
		Content:       req.Content,
		MessageType:   req.MessageType,
		Channels:      req.Channels,
		AudienceType:  req.AudienceType,
		AudienceValue: req.AudienceValue,
		GroupID:       req.GroupID,
		MemberIDs:     req.MemberIDs,
		Action:        dispatch.Action(req.Action),
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sendResponse{Success: true, Result: res})
}

// bindError keeps the audience failure distinct from other malformed input.
func (h *Handler) bindError(err error) error {
	fields := middleware.DescribeValidation(err, h.validation)
	if fields == nil {
		return errors.InvalidRequest("invalid request body: " + err.Error())
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if fe.Tag() == "audience" {
				return errors.InvalidAudience(fmt.Sprintf("unknown audience type: %v", fe.Value()))
			}
		}
	}

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return errors.InvalidRequest(strings.Join(msgs, "; "))
}

func (h *Handler) ListMessages(c *gin.Context) {
	limit, err := handler.IntQuery(c, "limit")
	if err != nil {
		_ = c.Error(err)
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) GetMessage(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	detail, err := h.messages.GetMessage(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(detail))
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.messages.DeleteMessage(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("message deleted"))
}

func (h *Handler) ResumeMessage(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.dispatcher.ResumePending(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sendResponse{Success: true, Result: res})
}

func (h *Handler) CancelSchedule(c *gin.Context) {
	id, err := handler.UUIDParam(c, "messageID")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.messages.CancelSchedule(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("scheduled message cancelled"))
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.messages.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

func (h *Handler) SMSInfo(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(channel.EstimateSMS(c.Query("text"))))
}

type recipientView struct {
	model.RecipientIdentity
	Name string `json:"name"`
}

type recipientsResponse struct {
	Success    bool            `json:"success"`
	Recipients []recipientView `json:"recipients"`
	Count      int             `json:"count"`
}

// Recipients previews who an audience selection would reach.
func (h *Handler) Recipients(c *gin.Context) {
	sel := dispatch.Audience{
		Type:  c.Query("audience_type"),
		Value: c.Query("audience_value"),
	}

	if raw := c.Query("group_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			_ = c.Error(errors.InvalidRequest("group_id must be an integer"))
			return
		}
		sel.GroupID = &id
	}
	if raw := c.Query("member_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				_ = c.Error(errors.InvalidRequest("member_ids must be comma-separated integers"))
				return
			}
			sel.MemberIDs = append(sel.MemberIDs, id)
		}
	}

	found, err := h.dispatcher.Recipients(c.Request.Context(), sel)
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]recipientView, 0, len(found))
	for _, r := range found {
		views = append(views, recipientView{RecipientIdentity: r, Name: r.FullName()})
	}
	c.JSON(http.StatusOK, recipientsResponse{Success: true, Recipients: views, Count: len(views)})
}
