package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/guildchat/internal/broadcast"
	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/storage"
)

var errBlobBackend = errors.New("blob backend unavailable")

// fakeBlobs хранилище в памяти; failOnPut > 0 ломает n-ю загрузку
type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	puts      int
	failOnPut int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeBlobs) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts++
	if f.failOnPut > 0 && f.puts == f.failOnPut {
		return "", errBlobBackend
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	f.types[key] = contentType
	return "https://blobs.test/" + key, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.objects[key]; !ok {
		return storage.ErrBlobNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) SignedURL(ctx context.Context, key string) (string, error) {
	return "https://blobs.test/" + key + "?sig=1", nil
}

func (f *fakeBlobs) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys
}

// recordingPublisher запоминает события; err заставляет каждую попытку падать
type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
	calls  int
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic uuid.UUID, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return p.err
	}

	var ev broadcast.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) recorded() []broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broadcast.Event(nil), p.events...)
}

type fixture struct {
	db        *database.Database
	blobs     *fakeBlobs
	publisher *recordingPublisher

	guard       *RoleGuard
	pipeline    *MessagePipeline
	paginator   *Paginator
	messages    *MessageService
	memberships *MembershipService
	channels    *ChannelService
	groups      *GroupService

	group   *models.Group
	owner   *models.Membership
	channel *models.Channel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := &database.Database{}
	require.NoError(t, db.Connect("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000"))
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:        db,
		blobs:     newFakeBlobs(),
		publisher: &recordingPublisher{},
	}

	broadcaster := broadcast.NewBroadcaster(f.publisher, broadcast.RetryPolicy{
		Attempts:  2,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
		Budget:    time.Second,
	})

	f.guard = NewRoleGuard(db, db)
	f.pipeline = NewMessagePipeline(db, f.blobs, broadcaster)
	f.paginator = NewPaginator(db, MaxPageLimit)
	f.messages = NewMessageService(db, f.blobs, broadcaster)
	f.memberships = NewMembershipService(db, db)
	f.channels = NewChannelService(db, f.blobs)
	f.groups = NewGroupService(db, f.blobs)

	ownerID := f.user(t, "owner")
	view, err := f.groups.Create(context.Background(), ownerID, GroupInput{Name: "Test group"})
	require.NoError(t, err)
	f.group = view.Group

	f.owner, err = f.guard.Authorize(context.Background(), ownerID, f.group.ID)
	require.NoError(t, err)

	f.channel, err = f.channels.Create(context.Background(), f.owner, ChannelInput{Name: "general"})
	require.NoError(t, err)

	return f
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()

	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.db.SaveUser(context.Background(), u))
	return u.ID
}

// member новый участник группы с ролью role
func (f *fixture) member(t *testing.T, name string, role models.Role) *models.Membership {
	t.Helper()
	ctx := context.Background()

	m, err := f.memberships.Join(ctx, f.user(t, name), f.group.ID)
	require.NoError(t, err)

	if role != models.RoleMember {
		r := string(role)
		m, err = f.memberships.Update(ctx, f.owner, m.ID, MembershipPatch{Role: &r})
		require.NoError(t, err)
	}
	return m
}

func (f *fixture) post(t *testing.T, author *models.Membership, content string) *models.Message {
	t.Helper()

	msg, err := f.pipeline.Publish(context.Background(), PublishInput{
		Channel: f.channel,
		Author:  author,
		Content: content,
	})
	require.NoError(t, err)
	return msg
}

func file(name, body string) Attachment {
	return Attachment{Filename: name, ContentType: "text/plain", Body: strings.NewReader(body)}
}

func pngFile(name string) Attachment {
	header := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return Attachment{Filename: name, Body: bytes.NewReader(header)}
}
