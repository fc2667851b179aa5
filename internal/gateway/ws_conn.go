package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eleven-am/voice-bridge/internal/audiocodes"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DownstreamConn is one VoiceAI Connect websocket. Writes go through a single
// pump so messages reach the peer in the order Send was called.
type DownstreamConn struct {
	id     string
	ws     *websocket.Conn
	logger *slog.Logger
	send   chan []byte
	done   chan struct{}

	closeOnce sync.Once
}

func NewDownstreamConn(ws *websocket.Conn, logger *slog.Logger) *DownstreamConn {
	id := uuid.NewString()
	return &DownstreamConn{
		id:     id,
		ws:     ws,
		logger: logger.With("conn_id", id),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *DownstreamConn) ID() string {
	return c.id
}

func (c *DownstreamConn) Done() <-chan struct{} {
	return c.done
}

// Send queues msg for delivery. It blocks while the buffer is full and fails
// with audiocodes.ErrClosed once the connection is closed.
func (c *DownstreamConn) Send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal downstream message: %w", err)
	}

	select {
	case <-c.done:
		return audiocodes.ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return audiocodes.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the connection. The write pump flushes messages already queued,
// sends a close frame and releases the socket.
func (c *DownstreamConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *DownstreamConn) flush() {
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump hands each text frame to onMessage until the peer goes away or
// onMessage returns false.
func (c *DownstreamConn) readPump(ctx context.Context, onMessage func([]byte) bool) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}

		msgType, message, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					c.logger.Error("websocket read error", "error", err)
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "frame_type", msgType)
			continue
		}

		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if !onMessage(message) {
			return
		}
	}
}

func (c *DownstreamConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.flush()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
