package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/services"
)

type GroupHandler struct {
	guard     *services.RoleGuard
	groups    *services.GroupService
	maxUpload int64
}

func NewGroupHandler(guard *services.RoleGuard, groups *services.GroupService, maxUpload int64) *GroupHandler {
	return &GroupHandler{guard: guard, groups: groups, maxUpload: maxUpload}
}

// groupScope членство вызывающего в группе из пути
func (h *GroupHandler) groupScope(c *gin.Context, roles ...models.Role) (*models.Membership, bool) {
	userID, ok := caller(c)
	if !ok {
		return nil, false
	}
	groupID, ok := uuidParam(c, "groupID")
	if !ok {
		return nil, false
	}

	membership, err := h.guard.Authorize(c.Request.Context(), userID, groupID, roles...)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return membership, true
}

// Create создаёт группу; JSON или multipart с полем avatar
func (h *GroupHandler) Create(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req dto.CreateGroupRequest
	var avatar *services.Attachment

	if isMultipart(c) {
		if err := parseMultipart(c, h.maxUpload); err != nil {
			writeUploadError(c, err)
			return
		}
		defer c.Request.MultipartForm.RemoveAll()

		files, closeFiles, err := openFiles(c, "avatar")
		if err != nil {
			writeUploadError(c, err)
			return
		}
		defer closeFiles()
		if len(files) > 0 {
			avatar = &files[0]
		}
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), userID, services.GroupInput{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      avatar,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, renderGroup(group))
}

// ListMine группы, в которых состоит пользователь
func (h *GroupHandler) ListMine(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	groups, err := h.groups.ListMine(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]gin.H, len(groups))
	for i := range groups {
		result[i] = renderGroup(&groups[i])
	}

	c.JSON(http.StatusOK, gin.H{"groups": result})
}

func (h *GroupHandler) Get(c *gin.Context) {
	membership, ok := h.groupScope(c)
	if !ok {
		return
	}

	group, err := h.groups.Get(c.Request.Context(), membership.GroupID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderGroup(group))
}

func (h *GroupHandler) Update(c *gin.Context) {
	membership, ok := h.groupScope(c, models.RoleOwner)
	if !ok {
		return
	}

	var req dto.UpdateGroupRequest
	patch := services.GroupPatch{}

	if isMultipart(c) {
		if err := parseMultipart(c, h.maxUpload); err != nil {
			writeUploadError(c, err)
			return
		}
		defer c.Request.MultipartForm.RemoveAll()

		files, closeFiles, err := openFiles(c, "avatar")
		if err != nil {
			writeUploadError(c, err)
			return
		}
		defer closeFiles()
		if len(files) > 0 {
			patch.Avatar = &files[0]
		}
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch.Name = req.Name
	patch.Description = req.Description

	group, err := h.groups.Update(c.Request.Context(), membership, patch)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, renderGroup(group))
}

func (h *GroupHandler) Delete(c *gin.Context) {
	membership, ok := h.groupScope(c, models.RoleOwner)
	if !ok {
		return
	}

	if err := h.groups.Delete(c.Request.Context(), membership); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
