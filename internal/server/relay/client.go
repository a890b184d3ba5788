package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 64 << 10
)

// Client is a single relay connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, h.sendBuffer),
		rooms:  map[string]struct{}{},
		done:   make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the buffer is full or the
// client is gone.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug(ctx, "relay read error", "user_id", c.userID, "error", err)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError("Malformed frame")
			continue
		}
		c.handle(ctx, f)
	}
}

func (c *Client) handle(ctx context.Context, f Frame) {
	c.hub.metrics.RelayFrames.WithLabelValues(eventLabel(f.Event)).Inc()

	switch f.Event {
	case EventJoinChat:
		chatID, ok := decodeChatID(f.Data)
		if !ok {
			c.sendError("chatId is required")
			return
		}
		if err := c.hub.join(ctx, c, chatID); err != nil {
			c.hub.logger.Debug(ctx, "relay join rejected", "user_id", c.userID, "chat_id", chatID, "error", err)
			c.sendError(joinErrorMessage(err))
		}

	case EventLeaveChat:
		chatID, ok := decodeChatID(f.Data)
		if !ok {
			c.sendError("chatId is required")
			return
		}
		c.hub.leave(c, chatID)

	case EventSendMessage:
		var msg SendMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil || strings.TrimSpace(msg.ChatID) == "" {
			c.sendError("chatId is required")
			return
		}
		if !c.hub.joined(c, msg.ChatID) {
			c.sendError("Join the chat before sending messages")
			return
		}
		frame, err := encodeFrame(EventReceiveMessage, f.Data)
		if err != nil {
			c.sendError("Malformed frame")
			return
		}
		c.hub.broadcast(c, msg.ChatID, frame)

	default:
		c.sendError("Unknown event")
	}
}

func (c *Client) sendError(message string) {
	frame, err := encodeFrame(EventError, ErrorData{Message: message})
	if err != nil {
		return
	}
	if !c.enqueue(frame) {
		c.hub.metrics.RelayFramesDropped.Inc()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func decodeChatID(data json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj SendMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", false
		}
		id = obj.ChatID
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}

func joinErrorMessage(err error) string {
	var me *common.MessageError
	if errors.As(err, &me) {
		return me.Message
	}
	return "Unable to join chat"
}
