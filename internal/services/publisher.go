package services

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/broadcast"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/storage"
)

const (
	MaxContentLength = 4000
	MaxAttachments   = 10

	// Сколько байт читать для определения типа файла
	sniffLen = 3072
)

type PublishInput struct {
	Channel     *models.Channel
	Author      *models.Membership
	Content     string
	ReplyTo     *uuid.UUID
	Attachments []Attachment
}

// MessagePipeline публикует сообщения: загрузка вложений, запись, рассылка.
// Загрузка и запись атомарны для вызывающего: при ошибке не остаётся ни записи, ни объектов.
type MessagePipeline struct {
	messages    MessageStore
	blobs       storage.BlobStore
	broadcaster EventBroadcaster
}

func NewMessagePipeline(messages MessageStore, blobs storage.BlobStore, broadcaster EventBroadcaster) *MessagePipeline {
	return &MessagePipeline{messages: messages, blobs: blobs, broadcaster: broadcaster}
}

// MessageEvent payload рассылки: поля записи + временные ссылки на вложения
type MessageEvent struct {
	ID             uuid.UUID  `json:"id"`
	ChannelID      uuid.UUID  `json:"channel"`
	AuthorID       uuid.UUID  `json:"author"`
	Content        string     `json:"content"`
	Attachments    []string   `json:"attachments"`
	AttachmentURLs []string   `json:"attachment_urls"`
	ReplyTo        *uuid.UUID `json:"reply_to"`
	CreatedAt      time.Time  `json:"created_at"`
	IsDeleted      bool       `json:"is_deleted"`
}

func (p *MessagePipeline) Publish(ctx context.Context, in PublishInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)

	if err := p.validate(ctx, in, content); err != nil {
		return nil, err
	}

	keys, urls, err := p.upload(ctx, in)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ChannelID:   in.Channel.ID,
		AuthorID:    in.Author.UserID,
		Content:     content,
		Attachments: keys,
		ReplyToID:   in.ReplyTo,
	}

	if err := p.messages.InsertMessage(ctx, message); err != nil {
		reclaimBlobs(ctx, p.blobs, keys)
		// Канал удалили после проверки прав
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("channel not found")
		}
		log.Printf("Failed to save message: %v", err)
		return nil, newError(ErrPersistence, "failed to save message", err)
	}

	p.broadcast(ctx, message, urls)

	return message, nil
}

func (p *MessagePipeline) validate(ctx context.Context, in PublishInput, content string) error {
	if in.Channel == nil || !in.Channel.IsText() {
		return notFound("channel not found or not a text channel")
	}
	if in.Author == nil || in.Author.GroupID != in.Channel.GroupID {
		return forbidden("you are not a member of this group")
	}
	if in.Author.IsBanned {
		return forbidden("banned members cannot post messages")
	}
	if in.Author.IsMuted {
		return forbidden("muted members cannot post messages")
	}

	if content == "" && len(in.Attachments) == 0 {
		return validation("missing message content")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return validation("message content is too long")
	}
	if len(in.Attachments) > MaxAttachments {
		return validation("too many attachments")
	}
	for _, a := range in.Attachments {
		if a.Body == nil {
			return validation("empty attachment")
		}
	}

	if in.ReplyTo != nil {
		_, err := p.messages.GetMessage(ctx, in.Channel.ID, *in.ReplyTo)
		if errors.Is(err, database.ErrNotFound) {
			return validation("reply_to message not found in this channel")
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// upload загружает вложения по порядку. При первой ошибке остальные не загружаются,
// а уже загруженные удаляются.
func (p *MessagePipeline) upload(ctx context.Context, in PublishInput) ([]string, []string, error) {
	keys := make([]string, 0, len(in.Attachments))
	urls := make([]string, 0, len(in.Attachments))

	for _, a := range in.Attachments {
		key := storage.AttachmentKey(in.Channel.GroupID, in.Channel.ID, a.Filename)
		body, contentType := sniffContentType(a)

		url, err := p.blobs.Put(ctx, key, body, contentType)
		if err != nil {
			log.Printf("Blob upload failed for %s: %v", key, err)
			reclaimBlobs(ctx, p.blobs, append(keys, key))
			return nil, nil, newError(ErrUpload, "failed to upload attachments", err)
		}

		keys = append(keys, key)
		urls = append(urls, url)
	}

	return keys, urls, nil
}

// broadcast рассылает событие; ошибка рассылки не влияет на результат публикации
func (p *MessagePipeline) broadcast(ctx context.Context, message *models.Message, urls []string) {
	payload, err := broadcast.EncodeEvent(broadcast.EventMessageCreated, message.ChannelID, NewMessageEvent(message, urls))
	if err != nil {
		log.Printf("Failed to encode message event: %v", err)
		return
	}

	if err := p.broadcaster.Broadcast(context.WithoutCancel(ctx), message.ChannelID, payload); err != nil {
		log.Printf("Message %s saved, broadcast skipped: %v", message.ID, err)
	}
}

func NewMessageEvent(message *models.Message, urls []string) MessageEvent {
	attachments := message.AttachmentKeys()
	if urls == nil {
		urls = []string{}
	}
	return MessageEvent{
		ID:             message.ID,
		ChannelID:      message.ChannelID,
		AuthorID:       message.AuthorID,
		Content:        message.Content,
		Attachments:    attachments,
		AttachmentURLs: urls,
		ReplyTo:        message.ReplyToID,
		CreatedAt:      message.CreatedAt,
		IsDeleted:      message.IsDeleted,
	}
}

func sniffContentType(a Attachment) (io.Reader, string) {
	if a.ContentType != "" && a.ContentType != "application/octet-stream" {
		return a.Body, a.ContentType
	}

	br := bufio.NewReaderSize(a.Body, sniffLen)
	head, _ := br.Peek(sniffLen)
	return br, mimetype.Detect(head).String()
}
