package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messageboard/internal/app"
	"messageboard/internal/transport/http/response"
)

const messageNotFound = "Message not found"

type MessageHandler struct {
	messageService *app.MessageService
}

type CreateMessageRequest struct {
	Body     *string `json:"body"`
	Username *string `json:"username"`
}

type UpdateMessageRequest struct {
	Body     *string `json:"body"`
	Username *string `json:"username"`
}

func NewMessageHandler(messageService *app.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.messageService.ListMessages(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list messages failed")
		return
	}
	response.OK(c, messages)
}

func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, messageNotFound)
		return
	}

	message, err := h.messageService.GetMessage(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get message failed")
		return
	}
	response.OK(c, message)
}

func (h *MessageHandler) Create(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	message, err := h.messageService.CreateMessage(c.Request.Context(), app.CreateMessageInput{
		Body:     req.Body,
		Username: req.Username,
	})
	if err != nil {
		h.fail(c, err, "create message failed")
		return
	}
	response.OK(c, message)
}

func (h *MessageHandler) Update(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, messageNotFound)
		return
	}

	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	message, err := h.messageService.UpdateMessage(c.Request.Context(), id, app.UpdateMessageInput{
		Body:     req.Body,
		Username: req.Username,
	})
	if err != nil {
		h.fail(c, err, "update message failed")
		return
	}
	response.OK(c, message)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		response.Error(c, http.StatusNotFound, messageNotFound)
		return
	}

	if err := h.messageService.DeleteMessage(c.Request.Context(), id); err != nil {
		h.fail(c, err, "delete message failed")
		return
	}
	response.OK(c, gin.H{"deleted_message_id": id})
}

func (h *MessageHandler) fail(c *gin.Context, err error, fallback string) {
	var vErr *app.ValidationError
	switch {
	case errors.Is(err, app.ErrMessageNotFound):
		response.Error(c, http.StatusNotFound, messageNotFound)
	case errors.As(err, &vErr):
		response.ValidationError(c, vErr.Error(), vErr.Fields)
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, fallback)
	}
}

// messageID parses the :id path segment. Anything that is not a positive
// integer cannot name a message.
func messageID(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}
