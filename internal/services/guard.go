package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
)

// RoleGuard единая точка проверки членства и роли перед операциями группы.
// Это грубый фильтр: правила вида "админ не трогает админа" проверяет сама операция
// по возвращённому Membership.
type RoleGuard struct {
	memberships MembershipStore
	channels    ChannelStore
}

func NewRoleGuard(memberships MembershipStore, channels ChannelStore) *RoleGuard {
	return &RoleGuard{memberships: memberships, channels: channels}
}

// Authorize возвращает членство вызывающего в группе. Без ролей допускается любой участник;
// иначе роль должна точно совпасть с одной из перечисленных.
func (g *RoleGuard) Authorize(ctx context.Context, caller, groupID uuid.UUID, roles ...models.Role) (*models.Membership, error) {
	membership, err := g.memberships.GetMembership(ctx, caller, groupID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, forbidden("you are not a member of this group")
	}
	if err != nil {
		return nil, err
	}

	if len(roles) > 0 && !membership.HasRole(roles...) {
		return nil, forbidden("insufficient role")
	}

	return membership, nil
}

// AuthorizeTextChannel Authorize + поиск текстового канала группы
func (g *RoleGuard) AuthorizeTextChannel(ctx context.Context, caller, groupID, channelID uuid.UUID, roles ...models.Role) (*models.Membership, *models.Channel, error) {
	membership, err := g.Authorize(ctx, caller, groupID, roles...)
	if err != nil {
		return nil, nil, err
	}

	channel, err := g.channels.GetChannel(ctx, groupID, channelID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, notFound("channel not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if !channel.IsText() {
		return nil, nil, notFound("channel is not a text channel")
	}

	return membership, channel, nil
}

// AuthorizeSubscription право слушать канал по websocket: любой участник группы канала
func (g *RoleGuard) AuthorizeSubscription(ctx context.Context, userID, channelID uuid.UUID) error {
	channel, err := g.channels.GetChannelByID(ctx, channelID)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("channel not found")
	}
	if err != nil {
		return err
	}
	if !channel.IsText() {
		return notFound("channel is not a text channel")
	}

	_, err = g.Authorize(ctx, userID, channel.GroupID)
	return err
}
