package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
)

// Хранилища, которыми пользуются сервисы. *database.Database реализует все.

type MessageStore interface {
	InsertMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, channelID, id uuid.UUID) (*models.Message, error)
	ListMessages(ctx context.Context, channelID uuid.UUID, limit int, before *database.Cursor) ([]models.Message, error)
	SoftDeleteMessage(ctx context.Context, channelID, id uuid.UUID, at time.Time) (*models.Message, error)
	HardDeleteMessage(ctx context.Context, channelID, id uuid.UUID) (*models.Message, error)
}

type MembershipStore interface {
	CreateMembership(ctx context.Context, membership *models.Membership) error
	GetMembership(ctx context.Context, userID, groupID uuid.UUID) (*models.Membership, error)
	GetMembershipByID(ctx context.Context, groupID, id uuid.UUID) (*models.Membership, error)
	ListMemberships(ctx context.Context, groupID uuid.UUID) ([]models.Membership, error)
	UpdateMembership(ctx context.Context, groupID, actorID, targetID uuid.UUID, change database.MembershipChange) (*models.Membership, error)
	DeleteMembership(ctx context.Context, groupID, actorID, targetID uuid.UUID, check func(actor, target *models.Membership) error) error
}

type ChannelStore interface {
	CreateChannel(ctx context.Context, channel *models.Channel) error
	GetChannel(ctx context.Context, groupID, channelID uuid.UUID) (*models.Channel, error)
	GetChannelByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error)
	ListChannels(ctx context.Context, groupID uuid.UUID) ([]models.Channel, error)
	ChannelNameTaken(ctx context.Context, groupID uuid.UUID, name string, except uuid.UUID) (bool, error)
	UpdateChannel(ctx context.Context, channel *models.Channel) error
	DeleteChannel(ctx context.Context, groupID, channelID uuid.UUID) ([]string, error)
}

type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group, owner *models.Membership) error
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	GetUserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id uuid.UUID) ([]string, error)
}

// EventBroadcaster доставка событий подписчикам канала (broadcast.Broadcaster)
type EventBroadcaster interface {
	Broadcast(ctx context.Context, topic uuid.UUID, payload []byte) error
}

// Attachment загружаемый файл
type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

var (
	_ MessageStore    = (*database.Database)(nil)
	_ MembershipStore = (*database.Database)(nil)
	_ ChannelStore    = (*database.Database)(nil)
	_ GroupStore      = (*database.Database)(nil)
)
