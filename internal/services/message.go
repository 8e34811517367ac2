package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/broadcast"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/storage"
)

// MessageService чтение и удаление сообщений. Создание идёт только через MessagePipeline.
type MessageService struct {
	messages    MessageStore
	blobs       storage.BlobStore
	broadcaster EventBroadcaster
	now         func() time.Time
}

func NewMessageService(messages MessageStore, blobs storage.BlobStore, broadcaster EventBroadcaster) *MessageService {
	return &MessageService{messages: messages, blobs: blobs, broadcaster: broadcaster, now: time.Now}
}

func (s *MessageService) Get(ctx context.Context, channel *models.Channel, id uuid.UUID) (*models.Message, error) {
	message, err := s.messages.GetMessage(ctx, channel.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("message not found")
	}
	return message, err
}

// SoftDelete скрывает содержимое, сохраняя место сообщения в истории.
// Удалять может автор или Admin/Owner; забаненные не удаляют ничего.
func (s *MessageService) SoftDelete(ctx context.Context, actor *models.Membership, channel *models.Channel, id uuid.UUID) (*models.Message, error) {
	message, err := s.Get(ctx, channel, id)
	if err != nil {
		return nil, err
	}

	if actor.IsBanned {
		return nil, forbidden("banned members cannot delete messages")
	}
	if message.AuthorID != actor.UserID && !actor.HasRole(models.RoleAdmin, models.RoleOwner) {
		return nil, forbidden("you can only delete your own messages")
	}

	if message.IsDeleted {
		return message, nil
	}

	message, err = s.messages.SoftDeleteMessage(ctx, channel.ID, id, s.now())
	if err != nil {
		return nil, newError(ErrPersistence, "failed to delete message", err)
	}

	s.notifyDeleted(ctx, message)

	return message, nil
}

// HardDelete удаляет запись навсегда и освобождает вложения. Только Owner.
func (s *MessageService) HardDelete(ctx context.Context, actor *models.Membership, channel *models.Channel, id uuid.UUID) error {
	if !actor.HasRole(models.RoleOwner) {
		return forbidden("only owners can purge messages")
	}

	message, err := s.messages.HardDeleteMessage(ctx, channel.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("message not found")
	}
	if err != nil {
		return newError(ErrPersistence, "failed to delete message", err)
	}

	reclaimBlobs(ctx, s.blobs, message.AttachmentKeys())
	s.notifyDeleted(ctx, message)

	return nil
}

func (s *MessageService) notifyDeleted(ctx context.Context, message *models.Message) {
	payload, err := broadcast.EncodeEvent(broadcast.EventMessageDeleted, message.ChannelID, map[string]uuid.UUID{
		"message_id": message.ID,
	})
	if err != nil {
		log.Printf("Failed to encode delete event: %v", err)
		return
	}

	if err := s.broadcaster.Broadcast(context.WithoutCancel(ctx), message.ChannelID, payload); err != nil {
		log.Printf("Delete of message %s not broadcast: %v", message.ID, err)
	}
}
