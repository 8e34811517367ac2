package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
)

type MembershipService struct {
	memberships MembershipStore
	groups      GroupStore
}

func NewMembershipService(memberships MembershipStore, groups GroupStore) *MembershipService {
	return &MembershipService{memberships: memberships, groups: groups}
}

// MembershipPatch изменения участника; nil означает "не менять"
type MembershipPatch struct {
	Nickname *string
	Role     *string
	IsMuted  *bool
	IsBanned *bool
}

// Join вступление в группу с ролью Member. Повторное вступление даёт Conflict,
// в том числе при гонке двух запросов (срабатывает уникальный индекс).
func (s *MembershipService) Join(ctx context.Context, userID, groupID uuid.UUID) (*models.Membership, error) {
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("group not found")
		}
		return nil, err
	}

	_, err := s.memberships.GetMembership(ctx, userID, groupID)
	if err == nil {
		return nil, conflict("already a member")
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	membership := &models.Membership{
		UserID:  userID,
		GroupID: groupID,
		Role:    models.RoleMember,
	}
	if err := s.memberships.CreateMembership(ctx, membership); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, conflict("already a member")
		}
		return nil, newError(ErrPersistence, "could not create membership", err)
	}

	return membership, nil
}

func (s *MembershipService) Get(ctx context.Context, groupID, memberID uuid.UUID) (*models.Membership, error) {
	membership, err := s.memberships.GetMembershipByID(ctx, groupID, memberID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("membership not found")
	}
	return membership, err
}

// Self членство вызывающего в группе
func (s *MembershipService) Self(ctx context.Context, userID, groupID uuid.UUID) (*models.Membership, error) {
	membership, err := s.memberships.GetMembership(ctx, userID, groupID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("you are not a member of this group")
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, groupID, membership.ID)
}

func (s *MembershipService) List(ctx context.Context, groupID uuid.UUID) ([]models.Membership, error) {
	return s.memberships.ListMemberships(ctx, groupID)
}

// Update изменение участника администратором или владельцем.
// Admin не действует на Admin/Owner; назначать и снимать Owner может только Owner;
// последнего Owner понизить нельзя. Права проверяются по записям, перечитанным при записи.
func (s *MembershipService) Update(ctx context.Context, actor *models.Membership, memberID uuid.UUID, patch MembershipPatch) (*models.Membership, error) {
	if !actor.HasRole(models.RoleAdmin, models.RoleOwner) {
		return nil, forbidden("insufficient role")
	}

	var role models.Role
	if patch.Role != nil {
		var ok bool
		if role, ok = models.ParseRole(*patch.Role); !ok {
			return nil, validation("invalid role type")
		}
	}

	updated, err := s.memberships.UpdateMembership(ctx, actor.GroupID, actor.ID, memberID,
		func(actor, target *models.Membership) (map[string]interface{}, error) {
			if !actor.HasRole(models.RoleAdmin, models.RoleOwner) {
				return nil, forbidden("insufficient role")
			}
			if actor.Role == models.RoleAdmin && target.HasRole(models.RoleAdmin, models.RoleOwner) {
				return nil, forbidden("admins cannot modify admins or owners")
			}

			changes := make(map[string]interface{})
			if patch.Role != nil {
				if (role == models.RoleOwner || target.Role == models.RoleOwner) && actor.Role != models.RoleOwner {
					return nil, forbidden("only owners can grant or revoke ownership")
				}
				changes["role"] = role
			}
			if patch.Nickname != nil {
				changes["nickname"] = normalizeNickname(*patch.Nickname)
			}
			if patch.IsMuted != nil {
				changes["is_muted"] = *patch.IsMuted
			}
			if patch.IsBanned != nil {
				changes["is_banned"] = *patch.IsBanned
			}
			return changes, nil
		})
	if err != nil {
		return nil, membershipWriteError(err, "the last owner cannot be demoted")
	}

	return updated, nil
}

// UpdateNickname участник меняет только свой ник; остальные поля не трогаются
func (s *MembershipService) UpdateNickname(ctx context.Context, self *models.Membership, nickname string) (*models.Membership, error) {
	updated, err := s.memberships.UpdateMembership(ctx, self.GroupID, self.ID, self.ID,
		func(_, _ *models.Membership) (map[string]interface{}, error) {
			return map[string]interface{}{"nickname": normalizeNickname(nickname)}, nil
		})
	if err != nil {
		return nil, membershipWriteError(err, "the last owner cannot be demoted")
	}
	return updated, nil
}

// Remove исключение участника владельцем. Последний Owner не удаляется.
func (s *MembershipService) Remove(ctx context.Context, actor *models.Membership, memberID uuid.UUID) error {
	if !actor.HasRole(models.RoleOwner) {
		return forbidden("only owners can remove members")
	}

	err := s.memberships.DeleteMembership(ctx, actor.GroupID, actor.ID, memberID,
		func(actor, _ *models.Membership) error {
			if !actor.HasRole(models.RoleOwner) {
				return forbidden("only owners can remove members")
			}
			return nil
		})
	if err != nil {
		return membershipWriteError(err, "the last owner cannot be removed")
	}
	return nil
}

// Leave выход из группы. Последний Owner выйти не может.
func (s *MembershipService) Leave(ctx context.Context, self *models.Membership) error {
	if err := s.memberships.DeleteMembership(ctx, self.GroupID, self.ID, self.ID, nil); err != nil {
		return membershipWriteError(err, "the last owner cannot leave")
	}
	return nil
}

// membershipWriteError ошибки записи участника в ошибки сервиса
func membershipWriteError(err error, lastOwner string) error {
	var serr *Error
	switch {
	case errors.As(err, &serr):
		return err
	case errors.Is(err, database.ErrNotMember):
		return forbidden("you are not a member of this group")
	case errors.Is(err, database.ErrNotFound):
		return notFound("membership not found")
	case errors.Is(err, database.ErrLastOwner):
		return forbidden(lastOwner)
	}
	return newError(ErrPersistence, "could not save membership", err)
}

const maxNicknameLen = 32

func normalizeNickname(nickname string) *string {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil
	}
	if r := []rune(nickname); len(r) > maxNicknameLen {
		nickname = string(r[:maxNicknameLen])
	}
	return &nickname
}
