package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/storage"
)

const (
	minGroupNameLen        = 4
	maxGroupNameLen        = 100
	maxGroupDescriptionLen = 150
)

type GroupService struct {
	groups GroupStore
	blobs  storage.BlobStore
}

func NewGroupService(groups GroupStore, blobs storage.BlobStore) *GroupService {
	return &GroupService{groups: groups, blobs: blobs}
}

type GroupInput struct {
	Name        string
	Description *string
	Avatar      *Attachment
}

type GroupPatch struct {
	Name        *string
	Description *string
	Avatar      *Attachment
}

// GroupView группа с временной ссылкой на аватар
type GroupView struct {
	*models.Group
	AvatarURL *string
}

// Create создаёт группу; создатель становится Owner. Аватар загружается до записи
// и удаляется, если запись не удалась.
func (s *GroupService) Create(ctx context.Context, creator uuid.UUID, in GroupInput) (*GroupView, error) {
	name, err := groupName(in.Name)
	if err != nil {
		return nil, err
	}
	description, err := groupDescription(in.Description)
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
	}

	var avatarURL *string
	if in.Avatar != nil {
		key, url, err := s.uploadAvatar(ctx, group.ID, in.Avatar)
		if err != nil {
			return nil, err
		}
		group.AvatarKey = &key
		avatarURL = &url
	}

	owner := &models.Membership{UserID: creator}
	if err := s.groups.CreateGroup(ctx, group, owner); err != nil {
		log.Printf("Failed to create group: %v", err)
		if group.AvatarKey != nil {
			reclaimBlobs(ctx, s.blobs, []string{*group.AvatarKey})
		}
		return nil, newError(ErrPersistence, "could not create group", err)
	}

	return &GroupView{Group: group, AvatarURL: avatarURL}, nil
}

func (s *GroupService) Get(ctx context.Context, groupID uuid.UUID) (*GroupView, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("group not found")
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, group), nil
}

func (s *GroupService) ListMine(ctx context.Context, userID uuid.UUID) ([]GroupView, error) {
	groups, err := s.groups.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]GroupView, 0, len(groups))
	for i := range groups {
		views = append(views, *s.view(ctx, &groups[i]))
	}
	return views, nil
}

// Update изменение группы владельцем. Старый аватар удаляется после записи нового.
func (s *GroupService) Update(ctx context.Context, actor *models.Membership, patch GroupPatch) (*GroupView, error) {
	if !actor.HasRole(models.RoleOwner) {
		return nil, forbidden("only owners can update the group")
	}

	group, err := s.groups.GetGroup(ctx, actor.GroupID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("group not found")
	}
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name, err := groupName(*patch.Name)
		if err != nil {
			return nil, err
		}
		group.Name = name
	}
	if patch.Description != nil {
		description, err := groupDescription(patch.Description)
		if err != nil {
			return nil, err
		}
		group.Description = description
	}

	oldAvatar := group.AvatarKey
	if patch.Avatar != nil {
		key, _, err := s.uploadAvatar(ctx, group.ID, patch.Avatar)
		if err != nil {
			return nil, err
		}
		group.AvatarKey = &key
	}

	if err := s.groups.UpdateGroup(ctx, group); err != nil {
		if patch.Avatar != nil {
			reclaimBlobs(ctx, s.blobs, []string{*group.AvatarKey})
		}
		return nil, newError(ErrPersistence, "could not update group", err)
	}

	if patch.Avatar != nil && oldAvatar != nil {
		reclaimBlobs(ctx, s.blobs, []string{*oldAvatar})
	}

	return s.view(ctx, group), nil
}

// Delete удаляет группу со всем содержимым и освобождает аватар и вложения
func (s *GroupService) Delete(ctx context.Context, actor *models.Membership) error {
	if !actor.HasRole(models.RoleOwner) {
		return forbidden("only owners can delete the group")
	}

	group, err := s.groups.GetGroup(ctx, actor.GroupID)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("group not found")
	}
	if err != nil {
		return err
	}

	keys, err := s.groups.DeleteGroup(ctx, group.ID)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("group not found")
	}
	if err != nil {
		return newError(ErrPersistence, "could not delete group", err)
	}

	if group.AvatarKey != nil {
		keys = append(keys, *group.AvatarKey)
	}
	reclaimBlobs(ctx, s.blobs, keys)

	return nil
}

func (s *GroupService) uploadAvatar(ctx context.Context, groupID uuid.UUID, avatar *Attachment) (string, string, error) {
	if avatar.Body == nil {
		return "", "", validation("empty avatar")
	}

	key := storage.AvatarKey(groupID, avatar.Filename)
	body, contentType := sniffContentType(*avatar)
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", validation("avatar must be an image")
	}

	url, err := s.blobs.Put(ctx, key, body, contentType)
	if err != nil {
		log.Printf("Avatar upload failed for %s: %v", key, err)
		reclaimBlobs(ctx, s.blobs, []string{key})
		return "", "", newError(ErrUpload, "failed to upload avatar", err)
	}

	return key, url, nil
}

func (s *GroupService) view(ctx context.Context, group *models.Group) *GroupView {
	view := &GroupView{Group: group}
	if group.AvatarKey == nil {
		return view
	}

	url, err := s.blobs.SignedURL(ctx, *group.AvatarKey)
	if err != nil {
		log.Printf("Failed to sign avatar url for group %s: %v", group.ID, err)
		return view
	}
	view.AvatarURL = &url
	return view
}

func groupName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) < minGroupNameLen {
		return "", validation("group name must be at least 4 characters")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLen {
		return "", validation("group name is too long")
	}
	return name, nil
}

func groupDescription(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	description := strings.TrimSpace(*raw)
	if description == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(description) > maxGroupDescriptionLen {
		return nil, validation("description must be at most 150 characters")
	}
	return &description, nil
}
