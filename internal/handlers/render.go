package handlers

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/handlers/dto"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/services"
	"github.com/thereayou/guildchat/internal/storage"
)

// renderMessage скрывает содержимое и вложения удалённых сообщений,
// остальным подписывает ссылки на вложения
func renderMessage(ctx context.Context, blobs storage.BlobStore, msg *models.Message) dto.MessageResponse {
	resp := dto.MessageResponse{
		ID:             msg.ID,
		ChannelID:      msg.ChannelID,
		AuthorID:       msg.AuthorID,
		Content:        msg.Content,
		Attachments:    msg.AttachmentKeys(),
		AttachmentURLs: []string{},
		ReplyTo:        msg.ReplyToID,
		CreatedAt:      msg.CreatedAt,
		EditedAt:       msg.EditedAt,
		IsDeleted:      msg.IsDeleted,
		DeletedAt:      msg.DeletedAt,
	}

	if msg.IsDeleted {
		resp.Content = dto.DeletedMessageContent
		resp.Attachments = []string{}
		return resp
	}

	for _, key := range resp.Attachments {
		url, err := blobs.SignedURL(ctx, key)
		if err != nil {
			log.Printf("Failed to sign attachment %s: %v", key, err)
			continue
		}
		resp.AttachmentURLs = append(resp.AttachmentURLs, url)
	}

	return resp
}

func renderGroup(g *services.GroupView) gin.H {
	return gin.H{
		"id":          g.ID,
		"name":        g.Name,
		"description": g.Description,
		"avatar_url":  g.AvatarURL,
		"created_at":  g.CreatedAt,
	}
}

func renderChannel(ch *models.Channel) gin.H {
	return gin.H{
		"id":         ch.ID,
		"group_id":   ch.GroupID,
		"name":       ch.Name,
		"type":       ch.Type,
		"topic":      ch.Topic,
		"position":   ch.Position,
		"created_at": ch.CreatedAt,
	}
}

func renderMembership(m *models.Membership) gin.H {
	resp := gin.H{
		"id":         m.ID,
		"user_id":    m.UserID,
		"group_id":   m.GroupID,
		"nickname":   m.Nickname,
		"role":       m.Role,
		"is_muted":   m.IsMuted,
		"is_banned":  m.IsBanned,
		"created_at": m.CreatedAt,
	}

	// Если загружена информация о пользователе
	if m.User.Username != "" {
		resp["username"] = m.User.Username
	}

	return resp
}
