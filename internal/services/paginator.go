package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// PageQuery граница страницы. Before: непрозрачный курсор или время RFC3339;
// BeforeID: id сообщения канала. Если заданы оба, используется Before.
type PageQuery struct {
	Before   string
	BeforeID string
}

type Page struct {
	Messages   []models.Message
	NextCursor *string
}

// Paginator листает историю канала от новых к старым по ключу (created_at, seq)
type Paginator struct {
	messages MessageStore
	maxLimit int
}

func NewPaginator(messages MessageStore, maxLimit int) *Paginator {
	if maxLimit < 1 {
		maxLimit = MaxPageLimit
	}
	return &Paginator{messages: messages, maxLimit: maxLimit}
}

func (p *Paginator) List(ctx context.Context, channel *models.Channel, limit int, q PageQuery) (*Page, error) {
	if channel == nil || !channel.IsText() {
		return nil, notFound("channel not found or not a text channel")
	}
	if limit < 1 {
		return nil, validation("limit must be at least 1")
	}
	if limit > p.maxLimit {
		return nil, validation(fmt.Sprintf("limit must be at most %d", p.maxLimit))
	}

	before, err := p.resolveCursor(ctx, channel.ID, q)
	if err != nil {
		return nil, err
	}

	messages, err := p.messages.ListMessages(ctx, channel.ID, limit, before)
	if err != nil {
		return nil, err
	}

	page := &Page{Messages: messages}
	if len(messages) == limit {
		next := EncodeCursor(database.CursorOf(&messages[len(messages)-1]))
		page.NextCursor = &next
	}

	return page, nil
}

func (p *Paginator) resolveCursor(ctx context.Context, channelID uuid.UUID, q PageQuery) (*database.Cursor, error) {
	if q.Before != "" {
		if c, ok := DecodeCursor(q.Before); ok {
			return &c, nil
		}
		t, err := time.Parse(time.RFC3339Nano, q.Before)
		if err != nil {
			return nil, validation("invalid before cursor")
		}
		return &database.Cursor{CreatedAt: t}, nil
	}

	if q.BeforeID != "" {
		id, err := uuid.Parse(q.BeforeID)
		if err != nil {
			return nil, validation("invalid before_id")
		}
		message, err := p.messages.GetMessage(ctx, channelID, id)
		if errors.Is(err, database.ErrNotFound) {
			return nil, validation("before_id does not reference a message in this channel")
		}
		if err != nil {
			return nil, err
		}
		c := database.CursorOf(message)
		return &c, nil
	}

	return nil, nil
}

// EncodeCursor непрозрачное представление ключа (created_at, seq)
func EncodeCursor(c database.Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMicro(), 10) + ":" + strconv.FormatInt(c.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (database.Cursor, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return database.Cursor{}, false
	}

	micros, seq, ok := strings.Cut(string(raw), ":")
	if !ok {
		return database.Cursor{}, false
	}
	us, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return database.Cursor{}, false
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 1 {
		return database.Cursor{}, false
	}

	return database.Cursor{CreatedAt: time.UnixMicro(us).UTC(), Seq: n}, true
}
