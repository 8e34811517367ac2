package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role роль участника группы. Иерархии нет: каждая операция сама решает, какие роли допускать.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleOwner, RoleAdmin, RoleMember:
		return r, true
	}
	return "", false
}

// Membership связывает пользователя с группой. Пара (UserID, GroupID) уникальна на уровне БД.
type Membership struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_group"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_group;index"`
	Nickname  *string
	Role      Role `gorm:"type:varchar(16);not null;default:'Member'"`
	IsMuted   bool `gorm:"not null;default:false"`
	IsBanned  bool `gorm:"not null;default:false"`
	CreatedAt time.Time

	// Связи
	User User `gorm:"foreignKey:UserID"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Role == "" {
		m.Role = RoleMember
	}
	return nil
}

func (m *Membership) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if m.Role == r {
			return true
		}
	}
	return false
}
