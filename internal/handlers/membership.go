package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/services"
)

type MembershipHandler struct {
	groups      *GroupHandler
	memberships *services.MembershipService
}

func NewMembershipHandler(groups *GroupHandler, memberships *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{groups: groups, memberships: memberships}
}

// Join вступление вызывающего в группу
func (h *MembershipHandler) Join(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "groupID")
	if !ok {
		return
	}

	membership, err := h.memberships.Join(c.Request.Context(), userID, groupID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, renderMembership(membership))
}

func (h *MembershipHandler) List(c *gin.Context) {
	self, ok := h.groups.groupScope(c)
	if !ok {
		return
	}

	members, err := h.memberships.List(c.Request.Context(), self.GroupID)
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]gin.H, len(members))
	for i := range members {
		result[i] = renderMembership(&members[i])
	}

	c.JSON(http.StatusOK, gin.H{"members": result})
}

func (h *MembershipHandler) Get(c *gin.Context) {
	self, ok := h.groups.groupScope(c)
	if !ok {
		return
	}
	memberID, ok := uuidParam(c, "memberID")
	if !ok {
		return
	}

	member, err := h.memberships.Get(c.Request.Context(), self.GroupID, memberID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderMembership(member))
}

// Self членство вызывающего
func (h *MembershipHandler) Self(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "groupID")
	if !ok {
		return
	}

	member, err := h.memberships.Self(c.Request.Context(), userID, groupID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderMembership(member))
}

func (h *MembershipHandler) Update(c *gin.Context) {
	self, ok := h.groups.groupScope(c)
	if !ok {
		return
	}
	memberID, ok := uuidParam(c, "memberID")
	if !ok {
		return
	}

	var req dto.UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.memberships.Update(c.Request.Context(), self, memberID, services.MembershipPatch{
		Nickname: req.Nickname,
		Role:     req.Role,
		IsMuted:  req.IsMuted,
		IsBanned: req.IsBanned,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderMembership(member))
}

// UpdateNickname участник меняет свой ник
func (h *MembershipHandler) UpdateNickname(c *gin.Context) {
	self, ok := h.groups.groupScope(c)
	if !ok {
		return
	}

	var req dto.UpdateNicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.memberships.UpdateNickname(c.Request.Context(), self, req.Nickname)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderMembership(member))
}

func (h *MembershipHandler) Remove(c *gin.Context) {
	self, ok := h.groups.groupScope(c)
	if !ok {
		return
	}
	memberID, ok := uuidParam(c, "memberID")
	if !ok {
		return
	}

	if err := h.memberships.Remove(c.Request.Context(), self, memberID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MembershipHandler) Leave(c *gin.Context) {
	self, ok := h.groups.groupScope(c)
	if !ok {
		return
	}

	if err := h.memberships.Leave(c.Request.Context(), self); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
