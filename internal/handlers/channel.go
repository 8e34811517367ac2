package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/services"
)

type ChannelHandler struct {
	groups   *GroupHandler
	channels *services.ChannelService
}

func NewChannelHandler(groups *GroupHandler, channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{groups: groups, channels: channels}
}

func (h *ChannelHandler) Create(c *gin.Context) {
	membership, ok := h.groups.groupScope(c)
	if !ok {
		return
	}

	var req dto.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, err := h.channels.Create(c.Request.Context(), membership, services.ChannelInput{
		Name:     req.Name,
		Type:     req.Type,
		Topic:    req.Topic,
		Position: req.Position,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, renderChannel(channel))
}

func (h *ChannelHandler) List(c *gin.Context) {
	membership, ok := h.groups.groupScope(c)
	if !ok {
		return
	}

	channels, err := h.channels.List(c.Request.Context(), membership.GroupID)
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]gin.H, len(channels))
	for i := range channels {
		result[i] = renderChannel(&channels[i])
	}

	c.JSON(http.StatusOK, gin.H{"channels": result})
}

func (h *ChannelHandler) Get(c *gin.Context) {
	membership, ok := h.groups.groupScope(c)
	if !ok {
		return
	}
	channelID, ok := uuidParam(c, "channelID")
	if !ok {
		return
	}

	channel, err := h.channels.Get(c.Request.Context(), membership.GroupID, channelID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderChannel(channel))
}

func (h *ChannelHandler) Update(c *gin.Context) {
	membership, ok := h.groups.groupScope(c)
	if !ok {
		return
	}
	channelID, ok := uuidParam(c, "channelID")
	if !ok {
		return
	}

	var req dto.UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, err := h.channels.Update(c.Request.Context(), membership, channelID, services.ChannelPatch{
		Name:     req.Name,
		Type:     req.Type,
		Topic:    req.Topic,
		Position: req.Position,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderChannel(channel))
}

func (h *ChannelHandler) Delete(c *gin.Context) {
	membership, ok := h.groups.groupScope(c)
	if !ok {
		return
	}
	channelID, ok := uuidParam(c, "channelID")
	if !ok {
		return
	}

	if err := h.channels.Delete(c.Request.Context(), membership, channelID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
