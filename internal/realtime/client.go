package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrMissingAPIKey = errors.New("openai api key is required")

const maxFrameSize = 4 * 1024 * 1024

// Callbacks run on client goroutines and must not call Close.
type ConnectionObserver interface {
	OnConnectionLost(id string)
	OnConnectionRestored(id string)
}

type DropObserver interface {
	OnAudioDropped(id string, n int)
}

type link struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	pong   chan struct{}
}

type Client struct {
	id     string
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer
	queue  *AudioQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	link         *link
	active       bool
	closing      bool
	exhausted    bool
	attempts     int
	lastActivity time.Time
	observer     ConnectionObserver

	writeMu      sync.Mutex
	reconnectMu  sync.Mutex
	reconnecting atomic.Bool
}

func NewClient(id string, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		cfg:    cfg,
		logger: logger.With("component", "realtime_client", "conversation_id", id),
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.ConnectTimeout,
			EnableCompression: false,
		},
		queue:  NewAudioQueue(cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) SetObserver(o ConnectionObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Terminated is true once closed or out of reconnect attempts.
func (c *Client) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing || c.exhausted
}

func (c *Client) Closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Client) QueueLen() int {
	return c.queue.Len()
}

func (c *Client) endpoint() string {
	q := url.Values{}
	q.Set("model", c.cfg.Model)
	sep := "?"
	if strings.Contains(c.cfg.URL, "?") {
		sep = "&"
	}
	return c.cfg.URL + sep + q.Encode()
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.cfg.APIKey)
	h.Set("OpenAI-Beta", "realtime=v1")
	return h
}

func (c *Client) Connect(ctx context.Context) bool {
	if c.dial(ctx) {
		return true
	}
	c.scheduleReconnect()
	return false
}

func (c *Client) dial(ctx context.Context) bool {
	if c.Closing() {
		return false
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	ws, resp, err := c.dialer.DialContext(dialCtx, c.endpoint(), c.headers())
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.logger.Error("upstream connect failed", "error", err, "status", status)
		return false
	}
	ws.SetReadLimit(maxFrameSize)

	lctx, lcancel := context.WithCancel(c.ctx)
	l := &link{ws: ws, cancel: lcancel, pong: make(chan struct{}, 1)}

	_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		select {
		case l.pong <- struct{}{}:
		default:
		}
		return nil
	})

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		lcancel()
		_ = ws.Close()
		return false
	}
	old := c.link
	c.link = l
	c.active = true
	restored := c.attempts > 0
	c.attempts = 0
	c.exhausted = false
	c.lastActivity = time.Now()
	observer := c.observer
	c.wg.Add(2)
	c.mu.Unlock()

	if old != nil {
		old.cancel()
		_ = old.ws.Close()
	}

	go func() {
		defer c.wg.Done()
		if c.receiveLoop(lctx, l) {
			c.connectionLost(l)
		}
	}()
	go func() {
		defer c.wg.Done()
		if c.heartbeatLoop(lctx, l) {
			c.connectionLost(l)
		}
	}()

	c.logger.Info("upstream connected", "model", c.cfg.Model)
	if restored && observer != nil {
		observer.OnConnectionRestored(c.id)
	}
	return true
}

func (c *Client) Reconnect(ctx context.Context) bool {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return false
	}
	if c.active {
		c.mu.Unlock()
		return true
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.exhausted = true
		c.mu.Unlock()
		return false
	}
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	delay := time.Duration(attempt) * c.cfg.ReconnectDelay
	c.logger.Info("reconnecting to upstream",
		"attempt", attempt,
		"max_attempts", c.cfg.MaxReconnectAttempts,
		"delay", delay)

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-c.ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
	}

	if c.dial(ctx) {
		return true
	}

	if attempt >= c.cfg.MaxReconnectAttempts {
		c.mu.Lock()
		c.exhausted = true
		c.mu.Unlock()
		c.logger.Error("upstream reconnect attempts exhausted", "attempts", attempt)
	}
	return false
}

func (c *Client) SendAudioChunk(ctx context.Context, chunk []byte) bool {
	if c.Closing() {
		return false
	}

	l := c.currentLink()
	if l == nil {
		if c.reconnecting.Load() || !c.Reconnect(ctx) {
			c.logger.Debug("upstream not connected, dropping audio", "bytes", len(chunk))
			return false
		}
		if l = c.currentLink(); l == nil {
			return false
		}
	}

	err := c.write(l, chunk)
	if err == nil {
		c.touch()
		return true
	}
	c.logger.Warn("upstream send failed", "error", err)
	c.markLost(l)

	if c.reconnecting.Load() || !c.Reconnect(ctx) {
		c.scheduleReconnect()
		return false
	}
	if l = c.currentLink(); l == nil {
		return false
	}
	if err := c.write(l, chunk); err != nil {
		c.logger.Error("upstream send retry failed", "error", err)
		c.connectionLost(l)
		return false
	}
	c.touch()
	return true
}

func (c *Client) ReceiveAudioChunk(ctx context.Context) []byte {
	if chunk, ok := c.queue.TryPop(); ok {
		return chunk
	}
	if !c.Active() {
		return nil
	}
	chunk, _ := c.queue.Pop(ctx, c.cfg.ReceiveWait)
	return chunk
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.active = false
	l := c.link
	c.link = nil
	c.mu.Unlock()

	c.cancel()
	if l != nil {
		l.cancel()
		_ = l.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = l.ws.Close()
	}

	c.wg.Wait()
	c.queue.Reset()
	c.logger.Info("upstream client closed")
}

func (c *Client) currentLink() *link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActivity)
}

func (c *Client) write(l *link, chunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = l.ws.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout))
	return l.ws.WriteMessage(websocket.BinaryMessage, chunk)
}

func (c *Client) markLost(l *link) bool {
	c.mu.Lock()
	if l == nil || c.link != l {
		c.mu.Unlock()
		return false
	}
	c.link = nil
	c.active = false
	closing := c.closing
	observer := c.observer
	c.mu.Unlock()

	l.cancel()
	_ = l.ws.Close()

	if closing {
		return false
	}
	c.logger.Warn("upstream connection lost")
	if observer != nil {
		observer.OnConnectionLost(c.id)
	}
	return true
}

func (c *Client) connectionLost(l *link) {
	if c.markLost(l) {
		c.scheduleReconnect()
	}
}

func (c *Client) scheduleReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	if c.closing || c.exhausted {
		c.mu.Unlock()
		c.reconnecting.Store(false)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.reconnecting.Store(false)
		for {
			if c.Reconnect(c.ctx) {
				return
			}
			if c.ctx.Err() != nil || c.Terminated() {
				return
			}
		}
	}()
}

type serverEvent struct {
	Type       string          `json:"type"`
	AudioChunk string          `json:"audioChunk,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

func (c *Client) receiveLoop(ctx context.Context, l *link) bool {
	for {
		msgType, data, err := l.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.Closing() {
				return false
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("upstream read error", "error", err)
			} else {
				c.logger.Info("upstream connection closed", "error", err)
			}
			return true
		}

		_ = l.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.touch()

		switch msgType {
		case websocket.BinaryMessage:
			c.enqueue(data)
		case websocket.TextMessage:
			c.handleEvent(data)
		}
	}
}

func (c *Client) handleEvent(data []byte) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn("invalid upstream message", "error", err)
		return
	}

	switch ev.Type {
	case "error":
		c.logger.Error("upstream error event", "detail", string(ev.Error))
	case "playStream.chunk":
		if ev.AudioChunk == "" {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(ev.AudioChunk)
		if err != nil {
			c.logger.Warn("invalid upstream audio chunk", "error", err)
			return
		}
		c.enqueue(audio)
	default:
		c.logger.Debug("ignoring upstream event", "type", ev.Type)
	}
}

func (c *Client) enqueue(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	evicted := c.queue.Push(chunk)
	if evicted == 0 {
		return
	}
	c.logger.Debug("audio queue full, dropped oldest chunk", "dropped", evicted)

	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if d, ok := observer.(DropObserver); ok {
		d.OnAudioDropped(c.id, evicted)
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, l *link) bool {
	keepalive := time.NewTicker(c.cfg.KeepaliveInterval)
	defer keepalive.Stop()
	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return false

		case <-keepalive.C:
			if err := c.ping(l); err != nil {
				if ctx.Err() != nil {
					return false
				}
				c.logger.Warn("upstream keepalive ping failed", "error", err)
				return true
			}

		case <-heartbeat.C:
			if c.idleFor() <= c.cfg.IdleThreshold {
				continue
			}

			select {
			case <-l.pong:
			default:
			}

			if err := c.ping(l); err != nil {
				if ctx.Err() != nil {
					return false
				}
				c.logger.Warn("upstream heartbeat ping failed", "error", err)
				return true
			}

			timer := time.NewTimer(c.cfg.PingTimeout)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-l.pong:
				timer.Stop()
				c.touch()
			case <-timer.C:
				c.logger.Warn("upstream heartbeat timed out", "timeout", c.cfg.PingTimeout)
				return true
			}
		}
	}
}

func (c *Client) ping(l *link) error {
	return l.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.PingTimeout))
}
