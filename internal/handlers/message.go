package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/internal/storage"
)

type MessageHandler struct {
	guard        *services.RoleGuard
	pipeline     *services.MessagePipeline
	paginator    *services.Paginator
	messages     *services.MessageService
	blobs        storage.BlobStore
	maxUpload    int64
	defaultLimit int
}

func NewMessageHandler(
	guard *services.RoleGuard,
	pipeline *services.MessagePipeline,
	paginator *services.Paginator,
	messages *services.MessageService,
	blobs storage.BlobStore,
	maxUpload int64,
	defaultLimit int,
) *MessageHandler {
	if defaultLimit < 1 {
		defaultLimit = services.DefaultPageLimit
	}
	return &MessageHandler{
		guard:        guard,
		pipeline:     pipeline,
		paginator:    paginator,
		messages:     messages,
		blobs:        blobs,
		maxUpload:    maxUpload,
		defaultLimit: defaultLimit,
	}
}

// channelScope проверяет членство вызывающего и находит текстовый канал из пути
func (h *MessageHandler) channelScope(c *gin.Context) (*models.Membership, *models.Channel, bool) {
	userID, ok := caller(c)
	if !ok {
		return nil, nil, false
	}
	groupID, ok := uuidParam(c, "groupID")
	if !ok {
		return nil, nil, false
	}
	channelID, ok := uuidParam(c, "channelID")
	if !ok {
		return nil, nil, false
	}

	membership, channel, err := h.guard.AuthorizeTextChannel(c.Request.Context(), userID, groupID, channelID)
	if err != nil {
		writeError(c, err)
		return nil, nil, false
	}
	return membership, channel, true
}

// Create публикует сообщение. multipart: content, reply_to, attachments[]; либо JSON без вложений.
func (h *MessageHandler) Create(c *gin.Context) {
	membership, channel, ok := h.channelScope(c)
	if !ok {
		return
	}

	in := services.PublishInput{Channel: channel, Author: membership}
	var replyTo string

	if isMultipart(c) {
		if err := parseMultipart(c, h.maxUpload); err != nil {
			writeUploadError(c, err)
			return
		}
		defer c.Request.MultipartForm.RemoveAll()

		attachments, closeFiles, err := openFiles(c, "attachments")
		if err != nil {
			writeUploadError(c, err)
			return
		}
		defer closeFiles()

		in.Content = c.PostForm("content")
		in.Attachments = attachments
		replyTo = c.PostForm("reply_to")
	} else {
		var req dto.CreateMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in.Content = req.Content
		if req.ReplyTo != nil {
			replyTo = *req.ReplyTo
		}
	}

	if replyTo != "" {
		id, err := uuid.Parse(replyTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reply_to"})
			return
		}
		in.ReplyTo = &id
	}

	message, err := h.pipeline.Publish(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, renderMessage(c.Request.Context(), h.blobs, message))
}

// List история канала от новых к старым: ?limit=&before=&before_id=
func (h *MessageHandler) List(c *gin.Context) {
	_, channel, ok := h.channelScope(c)
	if !ok {
		return
	}

	limit := h.defaultLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	page, err := h.paginator.List(c.Request.Context(), channel, limit, services.PageQuery{
		Before:   c.Query("before"),
		BeforeID: c.Query("before_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.MessagePage{
		Messages:   make([]dto.MessageResponse, 0, len(page.Messages)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Messages {
		resp.Messages = append(resp.Messages, renderMessage(c.Request.Context(), h.blobs, &page.Messages[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) Get(c *gin.Context) {
	_, channel, ok := h.channelScope(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "messageID")
	if !ok {
		return
	}

	message, err := h.messages.Get(c.Request.Context(), channel, messageID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderMessage(c.Request.Context(), h.blobs, message))
}

// Delete мягкое удаление; ?hard=true удаляет запись и вложения насовсем
func (h *MessageHandler) Delete(c *gin.Context) {
	membership, channel, ok := h.channelScope(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "messageID")
	if !ok {
		return
	}

	if hard, _ := strconv.ParseBool(c.Query("hard")); hard {
		if err := h.messages.HardDelete(c.Request.Context(), membership, channel, messageID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	message, err := h.messages.SoftDelete(c.Request.Context(), membership, channel, messageID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderMessage(c.Request.Context(), h.blobs, message))
}
