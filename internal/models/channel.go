package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

func ParseChannelType(s string) (ChannelType, bool) {
	switch t := ChannelType(s); t {
	case ChannelText, ChannelVoice:
		return t, true
	}
	return "", false
}

// Channel принадлежит одной группе. Имя уникально в группе без учёта регистра (NameKey).
type Channel struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	GroupID   uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_channel_group_name"`
	Name      string      `gorm:"not null"`
	NameKey   string      `gorm:"not null;uniqueIndex:idx_channel_group_name"`
	Type      ChannelType `gorm:"type:varchar(8);not null;default:'text'"`
	Topic     string
	Position  int `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// ChannelNameKey casefold-ключ имени канала
func ChannelNameKey(name string) string {
	return cases.Fold().String(name)
}

func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Channel) BeforeSave(tx *gorm.DB) error {
	c.NameKey = ChannelNameKey(c.Name)
	return nil
}

func (c *Channel) IsText() bool {
	return c.Type == ChannelText
}
