package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType определяет типы служебных кадров
type MessageType string

const (
	// Системные типы
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"

	// Подписки на каналы
	TypeSubscribe    MessageType = "subscribe"
	TypeUnsubscribe  MessageType = "unsubscribe"
	TypeSubscribed   MessageType = "subscribed"
	TypeChannelUsers MessageType = "channel_users"
)

type Message struct {
	Type      MessageType     `json:"type"`
	ChannelID *uuid.UUID      `json:"channel_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Conn     Conn
	Send     chan []byte
	Channels map[uuid.UUID]bool
	Hub      *Hub
	mu       sync.RWMutex
}

// Hub держит подключения и подписки на каналы (топики).
// Реализует broadcast.Publisher для одного инстанса и broadcast.Deliverer для релеев.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Подписчики по каналам
	topics map[uuid.UUID]map[uuid.UUID]*Client

	// Каналы для регистрации/отмены регистрации
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		topics:     make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, id)
	}
	h.topics = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	log.Printf("Client registered: %s (User: %s)", client.ID, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		for channelID := range client.channelsSnapshot() {
			h.removeFromTopicUnsafe(client, channelID)
		}

		delete(h.clients, client.ID)
		close(client.Send)

		log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)
	}
}

// Subscribe подписывает клиента на канал. Права проверяются до вызова.
func (h *Hub) Subscribe(client *Client, channelID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if _, ok := h.topics[channelID]; !ok {
		h.topics[channelID] = make(map[uuid.UUID]*Client)
	}

	h.topics[channelID][client.ID] = client
	client.mu.Lock()
	client.Channels[channelID] = true
	client.mu.Unlock()

	// Отправляем список подписчиков новому клиенту
	h.sendChannelUsers(client, channelID)
}

// Unsubscribe отписывает клиента от канала
func (h *Hub) Unsubscribe(client *Client, channelID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromTopicUnsafe(client, channelID)
}

func (h *Hub) removeFromTopicUnsafe(client *Client, channelID uuid.UUID) {
	if topic, ok := h.topics[channelID]; ok {
		if _, ok := topic[client.ID]; ok {
			delete(topic, client.ID)
			client.mu.Lock()
			delete(client.Channels, channelID)
			client.mu.Unlock()

			if len(topic) == 0 {
				delete(h.topics, channelID)
			}
		}
	}
}

// Publish раздаёт payload подписчикам канала на этом инстансе
func (h *Hub) Publish(ctx context.Context, topic uuid.UUID, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.ctx.Err() != nil {
		return ErrHubStopped
	}

	h.Deliver(topic, payload)
	return nil
}

// Deliver отправляет payload всем подписчикам канала; переполненные очереди пропускаются
func (h *Hub) Deliver(topic uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subscribers, ok := h.topics[topic]; ok {
		for _, client := range subscribers {
			select {
			case client.Send <- payload:
			default:
				log.Printf("Client %s send channel full", client.ID)
			}
		}
	}
}

func (h *Hub) sendChannelUsers(client *Client, channelID uuid.UUID) {
	users := h.topicUsersUnsafe(channelID)

	msg := Message{
		Type:      TypeChannelUsers,
		ChannelID: &channelID,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(users); err == nil {
		msg.Data = data
		if msgData, err := json.Marshal(msg); err == nil {
			select {
			case client.Send <- msgData:
			default:
				log.Printf("Failed to send channel users to client %s", client.ID)
			}
		}
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := Message{
		Type:      TypePing,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(msg); err == nil {
		for _, client := range h.clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

// GetChannelUsers возвращает пользователей, подписанных на канал
func (h *Hub) GetChannelUsers(channelID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.topicUsersUnsafe(channelID)
}

func (h *Hub) topicUsersUnsafe(channelID uuid.UUID) []uuid.UUID {
	userMap := make(map[uuid.UUID]bool)
	if topic, ok := h.topics[channelID]; ok {
		for _, client := range topic {
			userMap[client.UserID] = true
		}
	}

	users := make([]uuid.UUID, 0, len(userMap))
	for userID := range userMap {
		users = append(users, userID)
	}
	return users
}
