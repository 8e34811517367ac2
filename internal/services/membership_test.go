package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/guildchat/internal/models"
)

func TestJoinTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "alice")

	m, err := f.memberships.Join(ctx, userID, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	_, err = f.memberships.Join(ctx, userID, f.group.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.memberships.Join(ctx, f.owner.UserID, f.group.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConcurrentJoinCreatesOneMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t, "racer")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.memberships.Join(ctx, userID, f.group.ID)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	members, err := f.memberships.List(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestUpdateRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.member(t, "admin", models.RoleAdmin)
	other := f.member(t, "other-admin", models.RoleAdmin)
	member := f.member(t, "member", models.RoleMember)

	role := func(r models.Role) *string { s := string(r); return &s }
	yes := true

	_, err := f.memberships.Update(ctx, member, admin.ID, MembershipPatch{IsMuted: &yes})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.memberships.Update(ctx, admin, other.ID, MembershipPatch{IsMuted: &yes})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.memberships.Update(ctx, admin, f.owner.ID, MembershipPatch{IsBanned: &yes})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.memberships.Update(ctx, admin, member.ID, MembershipPatch{Role: role(models.RoleOwner)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.memberships.Update(ctx, admin, member.ID, MembershipPatch{Role: role("Superuser")})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.memberships.Update(ctx, admin, member.ID, MembershipPatch{IsMuted: &yes})
	require.NoError(t, err)
	assert.True(t, updated.IsMuted)

	promoted, err := f.memberships.Update(ctx, f.owner, member.ID, MembershipPatch{Role: role(models.RoleOwner)})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, promoted.Role)
}

func TestLastOwnerCannotStepDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := string(models.RoleMember)

	_, err := f.memberships.Update(ctx, f.owner, f.owner.ID, MembershipPatch{Role: &role})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, f.memberships.Leave(ctx, f.owner), ErrForbidden)
	assert.ErrorIs(t, f.memberships.Remove(ctx, f.owner, f.owner.ID), ErrForbidden)

	second := f.member(t, "heir", models.RoleOwner)

	require.NoError(t, f.memberships.Leave(ctx, f.owner))

	_, err = f.guard.Authorize(ctx, f.owner.UserID, f.group.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, f.memberships.Leave(ctx, second), ErrForbidden)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.member(t, "admin", models.RoleAdmin)
	member := f.member(t, "member", models.RoleMember)

	assert.ErrorIs(t, f.memberships.Remove(ctx, admin, member.ID), ErrForbidden)
	require.NoError(t, f.memberships.Remove(ctx, f.owner, member.ID))

	_, err := f.memberships.Get(ctx, f.group.ID, member.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateNickname(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.member(t, "member", models.RoleMember)

	updated, err := f.memberships.UpdateNickname(ctx, member, "  Neo  ")
	require.NoError(t, err)
	require.NotNil(t, updated.Nickname)
	assert.Equal(t, "Neo", *updated.Nickname)

	self, err := f.memberships.Self(ctx, member.UserID, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Neo", *self.Nickname)
	assert.Equal(t, "member", self.User.Username)

	cleared, err := f.memberships.UpdateNickname(ctx, member, " ")
	require.NoError(t, err)
	assert.Nil(t, cleared.Nickname)
}

func TestNicknameEditKeepsBanAndDemotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.member(t, "admin", models.RoleAdmin)
	stale, err := f.guard.Authorize(ctx, admin.UserID, f.group.ID)
	require.NoError(t, err)

	role := string(models.RoleMember)
	yes := true
	_, err = f.memberships.Update(ctx, f.owner, admin.ID, MembershipPatch{Role: &role, IsBanned: &yes})
	require.NoError(t, err)

	updated, err := f.memberships.UpdateNickname(ctx, stale, "nick")
	require.NoError(t, err)
	require.NotNil(t, updated.Nickname)
	assert.Equal(t, "nick", *updated.Nickname)

	current, err := f.guard.Authorize(ctx, admin.UserID, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, current.Role)
	assert.True(t, current.IsBanned)
}

func TestRemovedMemberCannotComeBackThroughStaleWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.member(t, "member", models.RoleMember)
	stale, err := f.guard.Authorize(ctx, member.UserID, f.group.ID)
	require.NoError(t, err)

	require.NoError(t, f.memberships.Remove(ctx, f.owner, member.ID))

	_, err = f.memberships.UpdateNickname(ctx, stale, "ghost")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.memberships.Leave(ctx, stale), ErrForbidden)

	_, err = f.guard.Authorize(ctx, member.UserID, f.group.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDemotedAdminLosesRightsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.member(t, "admin", models.RoleAdmin)
	member := f.member(t, "member", models.RoleMember)

	role := string(models.RoleMember)
	_, err := f.memberships.Update(ctx, f.owner, admin.ID, MembershipPatch{Role: &role})
	require.NoError(t, err)

	// admin всё ещё держит запись с ролью Admin
	yes := true
	_, err = f.memberships.Update(ctx, admin, member.ID, MembershipPatch{IsBanned: &yes})
	assert.ErrorIs(t, err, ErrForbidden)

	current, err := f.memberships.Get(ctx, f.group.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, current.IsBanned)
}

func TestOwnersDemotingEachOtherKeepOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := f.member(t, "second", models.RoleOwner)
	role := string(models.RoleMember)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]*models.Membership{{f.owner, second}, {second, f.owner}} {
		wg.Add(1)
		go func(i int, actor, target *models.Membership) {
			defer wg.Done()
			_, errs[i] = f.memberships.Update(ctx, actor, target.ID, MembershipPatch{Role: &role})
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrForbidden)
	}
	assert.Equal(t, 1, ok)

	members, err := f.memberships.List(ctx, f.group.ID)
	require.NoError(t, err)
	var owners int
	for _, m := range members {
		if m.Role == models.RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
}
