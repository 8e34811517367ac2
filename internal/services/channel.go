package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/storage"
)

const (
	maxChannelNameLen  = 100
	maxChannelTopicLen = 1024
)

type ChannelService struct {
	channels ChannelStore
	blobs    storage.BlobStore
}

func NewChannelService(channels ChannelStore, blobs storage.BlobStore) *ChannelService {
	return &ChannelService{channels: channels, blobs: blobs}
}

type ChannelInput struct {
	Name     string
	Type     string
	Topic    string
	Position int
}

// ChannelPatch частичное изменение канала. Type присутствует, чтобы отклонить попытку его сменить.
type ChannelPatch struct {
	Name     *string
	Type     *string
	Topic    *string
	Position *int
}

func (s *ChannelService) Create(ctx context.Context, actor *models.Membership, in ChannelInput) (*models.Channel, error) {
	if !actor.HasRole(models.RoleOwner) {
		return nil, forbidden("only owners can manage channels")
	}

	name, err := channelName(in.Name)
	if err != nil {
		return nil, err
	}

	channelType := models.ChannelText
	if in.Type != "" {
		t, ok := models.ParseChannelType(in.Type)
		if !ok {
			return nil, validation("invalid channel type")
		}
		channelType = t
	}

	if utf8.RuneCountInString(in.Topic) > maxChannelTopicLen {
		return nil, validation("channel topic is too long")
	}

	taken, err := s.channels.ChannelNameTaken(ctx, actor.GroupID, name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflict("channel name already exists in this group")
	}

	channel := &models.Channel{
		GroupID:  actor.GroupID,
		Name:     name,
		Type:     channelType,
		Topic:    strings.TrimSpace(in.Topic),
		Position: in.Position,
	}
	if err := s.channels.CreateChannel(ctx, channel); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, conflict("channel name already exists in this group")
		}
		return nil, newError(ErrPersistence, "could not create channel", err)
	}

	return channel, nil
}

func (s *ChannelService) Get(ctx context.Context, groupID, channelID uuid.UUID) (*models.Channel, error) {
	channel, err := s.channels.GetChannel(ctx, groupID, channelID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("channel not found")
	}
	return channel, err
}

func (s *ChannelService) List(ctx context.Context, groupID uuid.UUID) ([]models.Channel, error) {
	return s.channels.ListChannels(ctx, groupID)
}

func (s *ChannelService) Update(ctx context.Context, actor *models.Membership, channelID uuid.UUID, patch ChannelPatch) (*models.Channel, error) {
	if !actor.HasRole(models.RoleOwner) {
		return nil, forbidden("only owners can manage channels")
	}

	channel, err := s.Get(ctx, actor.GroupID, channelID)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil && models.ChannelType(*patch.Type) != channel.Type {
		return nil, validation("channel type cannot be changed")
	}

	if patch.Name != nil {
		name, err := channelName(*patch.Name)
		if err != nil {
			return nil, err
		}

		taken, err := s.channels.ChannelNameTaken(ctx, actor.GroupID, name, channel.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflict("channel name already exists in this group")
		}
		channel.Name = name
	}
	if patch.Topic != nil {
		if utf8.RuneCountInString(*patch.Topic) > maxChannelTopicLen {
			return nil, validation("channel topic is too long")
		}
		channel.Topic = strings.TrimSpace(*patch.Topic)
	}
	if patch.Position != nil {
		channel.Position = *patch.Position
	}

	if err := s.channels.UpdateChannel(ctx, channel); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, conflict("channel name already exists in this group")
		}
		return nil, newError(ErrPersistence, "could not update channel", err)
	}

	return channel, nil
}

// Delete удаляет канал с историей; вложения освобождаются после фиксации транзакции
func (s *ChannelService) Delete(ctx context.Context, actor *models.Membership, channelID uuid.UUID) error {
	if !actor.HasRole(models.RoleOwner) {
		return forbidden("only owners can manage channels")
	}

	keys, err := s.channels.DeleteChannel(ctx, actor.GroupID, channelID)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("channel not found")
	}
	if err != nil {
		return newError(ErrPersistence, "could not delete channel", err)
	}

	reclaimBlobs(ctx, s.blobs, keys)
	return nil
}

func channelName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", validation("channel name is required")
	}
	if utf8.RuneCountInString(name) > maxChannelNameLen {
		return "", validation("channel name is too long")
	}
	return name, nil
}
