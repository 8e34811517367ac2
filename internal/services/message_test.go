package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/guildchat/internal/broadcast"
	"github.com/thereayou/guildchat/internal/models"
)

func TestSoftDeleteByAuthorIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.member(t, "author", models.RoleMember)
	msg := f.post(t, author, "oops")

	first, err := f.messages.SoftDelete(ctx, author, f.channel, msg.ID)
	require.NoError(t, err)
	assert.True(t, first.IsDeleted)
	require.NotNil(t, first.DeletedAt)

	second, err := f.messages.SoftDelete(ctx, author, f.channel, msg.ID)
	require.NoError(t, err)
	assert.True(t, second.DeletedAt.Equal(*first.DeletedAt))

	events := f.publisher.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, broadcast.EventMessageDeleted, events[1].Type)
}

func TestSoftDeletePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := f.member(t, "author", models.RoleMember)
	bystander := f.member(t, "bystander", models.RoleMember)
	admin := f.member(t, "admin", models.RoleAdmin)

	msg := f.post(t, author, "hello")

	_, err := f.messages.SoftDelete(ctx, bystander, f.channel, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	banned := *author
	banned.IsBanned = true
	_, err = f.messages.SoftDelete(ctx, &banned, f.channel, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	muted := *author
	muted.IsMuted = true
	_, err = f.messages.SoftDelete(ctx, &muted, f.channel, msg.ID)
	assert.NoError(t, err)

	other := f.post(t, author, "second")
	_, err = f.messages.SoftDelete(ctx, admin, f.channel, other.ID)
	assert.NoError(t, err)

	_, err = f.messages.SoftDelete(ctx, admin, f.channel, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHardDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "admin", models.RoleAdmin)

	msg, err := f.pipeline.Publish(ctx, PublishInput{
		Channel:     f.channel,
		Author:      f.owner,
		Content:     "files",
		Attachments: []Attachment{file("a.txt", "a"), file("b.txt", "b")},
	})
	require.NoError(t, err)
	reply, err := f.pipeline.Publish(ctx, PublishInput{Channel: f.channel, Author: f.owner, Content: "re", ReplyTo: &msg.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, f.messages.HardDelete(ctx, admin, f.channel, msg.ID), ErrForbidden)

	require.NoError(t, f.messages.HardDelete(ctx, f.owner, f.channel, msg.ID))
	assert.Empty(t, f.blobs.keys())

	_, err = f.messages.Get(ctx, f.channel, msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.messages.Get(ctx, f.channel, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReplyToID)

	assert.ErrorIs(t, f.messages.HardDelete(ctx, f.owner, f.channel, msg.ID), ErrNotFound)
}

func TestGetMessageScopedToChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.channels.Create(ctx, f.owner, ChannelInput{Name: "other"})
	require.NoError(t, err)
	msg := f.post(t, f.owner, "here")

	_, err = f.messages.Get(ctx, other, msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.messages.Get(ctx, f.channel, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "here", got.Content)
}
