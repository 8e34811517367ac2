package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего кадра. Клиент только управляет подписками.
	maxMessageSize = 4 * 1024

	// Время на проверку прав при подписке
	authorizeTimeout = 5 * time.Second
)

// Conn часть *websocket.Conn, которой пользуется клиент
type Conn interface {
	ReadJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// SubscriptionAuthorizer решает, может ли пользователь слушать канал
type SubscriptionAuthorizer interface {
	AuthorizeSubscription(ctx context.Context, userID, channelID uuid.UUID) error
}

func NewClient(hub *Hub, conn Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Channels: make(map[uuid.UUID]bool),
		Hub:      hub,
	}
}

// ReadPump читает кадры подписки от клиента
func (c *Client) ReadPump(auth SubscriptionAuthorizer) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.handle(auth, &msg)
	}
}

func (c *Client) handle(auth SubscriptionAuthorizer, msg *Message) {
	switch msg.Type {
	case TypePong:
		return

	case TypeSubscribe:
		if msg.ChannelID == nil {
			c.SendError(ErrInvalidMessage.Error())
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
		err := auth.AuthorizeSubscription(ctx, c.UserID, *msg.ChannelID)
		cancel()
		if err != nil {
			c.SendError(err.Error())
			return
		}

		c.Hub.Subscribe(c, *msg.ChannelID)
		c.SendMessage(TypeSubscribed, map[string]uuid.UUID{"channel_id": *msg.ChannelID})

	case TypeUnsubscribe:
		if msg.ChannelID != nil {
			c.Hub.Unsubscribe(c, *msg.ChannelID)
		}

	default:
		c.SendError(ErrInvalidMessage.Error())
	}
}

// WritePump отправляет кадры клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Отправляем все накопившиеся кадры
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendMessage(msgType MessageType, data interface{}) error {
	msg := Message{
		Type:      msgType,
		Timestamp: time.Now(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = jsonData
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- msgData:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(errorMsg string) {
	c.SendMessage(TypeError, map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) IsSubscribed(channelID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Channels[channelID]
}

func (c *Client) channelsSnapshot() map[uuid.UUID]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels := make(map[uuid.UUID]bool, len(c.Channels))
	for id := range c.Channels {
		channels[id] = true
	}
	return channels
}
