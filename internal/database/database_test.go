package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/guildchat/internal/models"
	"gorm.io/datatypes"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db := &Database{}
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	require.NoError(t, db.Connect("sqlite", dsn))
	t.Cleanup(func() { db.Close() })

	return db
}

func seedChannel(t *testing.T, db *Database) (*models.Group, *models.Membership, *models.Channel) {
	t.Helper()
	ctx := context.Background()

	user := &models.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x"}
	require.NoError(t, db.SaveUser(ctx, user))

	group := &models.Group{Name: "Test group"}
	owner := &models.Membership{UserID: user.ID}
	require.NoError(t, db.CreateGroup(ctx, group, owner))

	channel := &models.Channel{GroupID: group.ID, Name: "general", Type: models.ChannelText}
	require.NoError(t, db.CreateChannel(ctx, channel))

	return group, owner, channel
}

func insertAt(t *testing.T, db *Database, channelID, authorID uuid.UUID, at time.Time, keys ...string) *models.Message {
	t.Helper()

	msg := &models.Message{
		ChannelID:   channelID,
		AuthorID:    authorID,
		Content:     "hello",
		Attachments: datatypes.JSONSlice[string](keys),
		CreatedAt:   at,
	}
	require.NoError(t, db.InsertMessage(context.Background(), msg))
	return msg
}

func TestCreateGroupMakesCreatorOwner(t *testing.T) {
	db := newTestDB(t)
	group, owner, _ := seedChannel(t, db)

	assert.Equal(t, group.ID, owner.GroupID)
	assert.Equal(t, models.RoleOwner, owner.Role)

	got, err := db.GetMembership(context.Background(), owner.UserID, group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, got.Role)
}

func TestListMessagesOrderAndCursor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, owner, channel := seedChannel(t, db)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m1 := insertAt(t, db, channel.ID, owner.UserID, base)
	m2 := insertAt(t, db, channel.ID, owner.UserID, base.Add(time.Second))
	m3 := insertAt(t, db, channel.ID, owner.UserID, base.Add(time.Second))

	page, err := db.ListMessages(ctx, channel.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, []uuid.UUID{m3.ID, m2.ID, m1.ID}, []uuid.UUID{page[0].ID, page[1].ID, page[2].ID})

	// Граница внутри пары с одинаковым временем
	cursor := CursorOf(&page[0])
	page, err = db.ListMessages(ctx, channel.ID, 10, &cursor)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, m2.ID, page[0].ID)
	assert.Equal(t, m1.ID, page[1].ID)

	// Граница только по времени исключает всё в эту секунду
	page, err = db.ListMessages(ctx, channel.ID, 10, &Cursor{CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, m1.ID, page[0].ID)
}

func TestListMessagesScopedToChannel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, channel := seedChannel(t, db)

	other := &models.Channel{GroupID: group.ID, Name: "random", Type: models.ChannelText}
	require.NoError(t, db.CreateChannel(ctx, other))

	insertAt(t, db, channel.ID, owner.UserID, time.Now())
	insertAt(t, db, other.ID, owner.UserID, time.Now())

	page, err := db.ListMessages(ctx, channel.ID, 10, nil)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, owner, channel := seedChannel(t, db)
	msg := insertAt(t, db, channel.ID, owner.UserID, time.Now(), "k1")

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := db.SoftDeleteMessage(ctx, channel.ID, msg.ID, first)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedAt)

	again, err := db.SoftDeleteMessage(ctx, channel.ID, msg.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, again.DeletedAt.Equal(first))
	assert.Equal(t, []string{"k1"}, again.AttachmentKeys())

	_, err = db.SoftDeleteMessage(ctx, channel.ID, uuid.New(), first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHardDeleteDetachesReplies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, owner, channel := seedChannel(t, db)

	parent := insertAt(t, db, channel.ID, owner.UserID, time.Now(), "a", "b")
	reply := &models.Message{ChannelID: channel.ID, AuthorID: owner.UserID, Content: "re", ReplyToID: &parent.ID}
	require.NoError(t, db.InsertMessage(ctx, reply))

	removed, err := db.HardDeleteMessage(ctx, channel.ID, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, removed.AttachmentKeys())

	_, err = db.GetMessage(ctx, channel.ID, parent.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := db.GetMessage(ctx, channel.ID, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReplyToID)
}

func TestMembershipUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, _ := seedChannel(t, db)

	err := db.CreateMembership(ctx, &models.Membership{UserID: owner.UserID, GroupID: group.ID})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func countOwners(t *testing.T, db *Database, groupID uuid.UUID) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.db.Model(&models.Membership{}).
		Where("group_id = ? AND role = ?", groupID, models.RoleOwner).
		Count(&n).Error)
	return n
}

func setColumns(changes map[string]interface{}) MembershipChange {
	return func(_, _ *models.Membership) (map[string]interface{}, error) {
		return changes, nil
	}
}

func TestLastOwnerProtected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, _ := seedChannel(t, db)
	demote := setColumns(map[string]interface{}{"role": models.RoleMember})

	_, err := db.UpdateMembership(ctx, group.ID, owner.ID, owner.ID, demote)
	assert.ErrorIs(t, err, ErrLastOwner)
	assert.ErrorIs(t, db.DeleteMembership(ctx, group.ID, owner.ID, owner.ID, nil), ErrLastOwner)

	second := &models.Membership{UserID: uuid.New(), GroupID: group.ID, Role: models.RoleOwner}
	require.NoError(t, db.CreateMembership(ctx, second))

	updated, err := db.UpdateMembership(ctx, group.ID, owner.ID, owner.ID, demote)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, updated.Role)
	assert.EqualValues(t, 1, countOwners(t, db, group.ID))

	_, err = db.UpdateMembership(ctx, group.ID, second.ID, second.ID, demote)
	assert.ErrorIs(t, err, ErrLastOwner)
	assert.EqualValues(t, 1, countOwners(t, db, group.ID))
}

func TestUpdateMembershipKeepsConcurrentChanges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, _ := seedChannel(t, db)

	member := &models.Membership{UserID: uuid.New(), GroupID: group.ID, Role: models.RoleAdmin}
	require.NoError(t, db.CreateMembership(ctx, member))
	stale := *member

	_, err := db.UpdateMembership(ctx, group.ID, owner.ID, member.ID, setColumns(map[string]interface{}{
		"role":      models.RoleMember,
		"is_banned": true,
	}))
	require.NoError(t, err)

	updated, err := db.UpdateMembership(ctx, group.ID, stale.ID, stale.ID, setColumns(map[string]interface{}{
		"nickname": "nick",
	}))
	require.NoError(t, err)
	require.NotNil(t, updated.Nickname)
	assert.Equal(t, "nick", *updated.Nickname)
	assert.Equal(t, models.RoleMember, updated.Role)
	assert.True(t, updated.IsBanned)
}

func TestUpdateMembershipDoesNotRecreateRemoved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, _ := seedChannel(t, db)

	member := &models.Membership{UserID: uuid.New(), GroupID: group.ID}
	require.NoError(t, db.CreateMembership(ctx, member))

	require.NoError(t, db.DeleteMembership(ctx, group.ID, owner.ID, member.ID, nil))

	_, err := db.UpdateMembership(ctx, group.ID, member.ID, member.ID, setColumns(map[string]interface{}{
		"nickname": "ghost",
	}))
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = db.UpdateMembership(ctx, group.ID, owner.ID, member.ID, setColumns(map[string]interface{}{
		"is_muted": true,
	}))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetMembership(ctx, member.UserID, group.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertMessageIntoDeletedChannel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, channel := seedChannel(t, db)

	_, err := db.DeleteChannel(ctx, group.ID, channel.ID)
	require.NoError(t, err)

	msg := &models.Message{ChannelID: channel.ID, AuthorID: owner.UserID, Content: "late"}
	assert.ErrorIs(t, db.InsertMessage(ctx, msg), ErrNotFound)

	var count int64
	require.NoError(t, db.db.Model(&models.Message{}).Where("channel_id = ?", channel.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestChannelNameCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, _, channel := seedChannel(t, db)

	taken, err := db.ChannelNameTaken(ctx, group.ID, "GENERAL", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = db.ChannelNameTaken(ctx, group.ID, "General", channel.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	err = db.CreateChannel(ctx, &models.Channel{GroupID: group.ID, Name: "General", Type: models.ChannelText})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDeleteGroupCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	group, owner, channel := seedChannel(t, db)

	insertAt(t, db, channel.ID, owner.UserID, time.Now(), "x")
	insertAt(t, db, channel.ID, owner.UserID, time.Now(), "y", "z")

	keys, err := db.DeleteGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y", "z"}, keys)

	_, err = db.GetChannel(ctx, group.ID, channel.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetMembership(ctx, owner.UserID, group.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.DeleteGroup(ctx, group.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
