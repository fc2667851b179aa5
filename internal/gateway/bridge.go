package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/voice-bridge/internal/audiocodes"
	"github.com/eleven-am/voice-bridge/internal/observability"
	"github.com/eleven-am/voice-bridge/internal/realtime"
)

var (
	ErrMissingCredentials = errors.New("openai api key is not configured")
	ErrBridgeClosed       = errors.New("bridge is closed")
)

const (
	defaultStopTimeout = 2 * time.Second
	defaultIdlePoll    = 100 * time.Millisecond
	statsTimeout       = 2 * time.Second
)

type Upstream interface {
	Connect(ctx context.Context) bool
	SendAudioChunk(ctx context.Context, chunk []byte) bool
	ReceiveAudioChunk(ctx context.Context) []byte
	SetObserver(o realtime.ConnectionObserver)
	Active() bool
	Terminated() bool
	Closing() bool
	Close()
}

type UpstreamFactory func(conversationID, model string) (Upstream, error)

func RealtimeFactory(cfg realtime.Config, logger *slog.Logger) UpstreamFactory {
	return func(conversationID, model string) (Upstream, error) {
		c := cfg
		if model != "" {
			c.Model = model
		}
		client, err := realtime.NewClient(conversationID, c, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

type CallStats interface {
	IncrementReconnects(ctx context.Context) error
	IncrementUpstreamFailures(ctx context.Context) error
	RecordLatency(ctx context.Context, total time.Duration, count int64) error
}

type FailureHandler interface {
	OnUpstreamFailed(conversationID string)
}

type BridgeConfig struct {
	APIKey      string
	Model       string
	StopTimeout time.Duration
	IdlePoll    time.Duration
}

type latencyStats struct {
	count int64
	total time.Duration
	max   time.Duration
	last  time.Duration
}

type conversation struct {
	id         string
	client     Upstream
	downstream audiocodes.Sender
	format     audiocodes.MediaFormat
	cancel     context.CancelFunc
	done       chan struct{}

	mu        sync.Mutex
	streamSeq int
	streamID  string
	latency   latencyStats
}

func (c *conversation) nextStream() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamSeq++
	c.streamID = strconv.Itoa(c.streamSeq)
	return c.streamID
}

func (c *conversation) currentStream() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamID
}

func (c *conversation) recordLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency.count++
	c.latency.total += d
	c.latency.last = d
	if d > c.latency.max {
		c.latency.max = d
	}
}

func (c *conversation) latencySnapshot() latencyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

type ConversationInfo struct {
	ConversationID string        `json:"conversation_id"`
	StreamID       string        `json:"stream_id,omitempty"`
	MediaFormat    string        `json:"media_format"`
	UpstreamActive bool          `json:"upstream_active"`
	Chunks         int64         `json:"chunks"`
	LastLatency    time.Duration `json:"last_latency_ns"`
}

type Bridge struct {
	cfg     BridgeConfig
	factory UpstreamFactory
	metrics *observability.Metrics
	stats   CallStats
	logger  *slog.Logger
	locks   *keyedMutex

	mu            sync.RWMutex
	conversations map[string]*conversation
	failure       FailureHandler
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBridge(cfg BridgeConfig, factory UpstreamFactory, metrics *observability.Metrics, stats CallStats, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = defaultIdlePoll
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:           cfg,
		factory:       factory,
		metrics:       metrics,
		stats:         stats,
		logger:        logger.With("component", "bridge"),
		locks:         newKeyedMutex(),
		conversations: make(map[string]*conversation),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (b *Bridge) SetFailureHandler(h FailureHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = h
}

func (b *Bridge) CreateClient(ctx context.Context, conversationID string, downstream audiocodes.Sender, format audiocodes.MediaFormat, model string) error {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		b.logger.Error("cannot create upstream client", "conversation_id", conversationID, "error", ErrMissingCredentials)
		return ErrMissingCredentials
	}
	if model == "" {
		model = b.cfg.Model
	}

	unlock := b.locks.Lock(conversationID)
	defer unlock()

	seq := 0
	if old := b.detach(conversationID); old != nil {
		b.logger.Info("replacing upstream client", "conversation_id", conversationID)
		b.teardown(old)
		old.mu.Lock()
		seq = old.streamSeq
		old.mu.Unlock()
	}

	client, err := b.factory(conversationID, model)
	if err != nil {
		return fmt.Errorf("create upstream client: %w", err)
	}
	client.SetObserver(b)

	if !client.Connect(ctx) {
		b.logger.Warn("initial upstream connect failed", "conversation_id", conversationID)
	}

	fctx, cancel := context.WithCancel(b.ctx)
	conv := &conversation{
		id:         conversationID,
		client:     client,
		downstream: downstream,
		format:     format,
		cancel:     cancel,
		done:       make(chan struct{}),
		streamSeq:  seq,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		client.Close()
		return ErrBridgeClosed
	}
	b.conversations[conversationID] = conv
	b.wg.Add(1)
	b.mu.Unlock()

	b.metrics.ConversationOpened()
	go b.forward(fctx, conv)

	b.logger.Info("upstream client created", "conversation_id", conversationID, "model", model, "media_format", format)
	return nil
}

func (b *Bridge) SendAudioChunk(ctx context.Context, conversationID, payload string) {
	conv := b.get(conversationID)
	if conv == nil {
		b.logger.Warn("no upstream client for conversation", "conversation_id", conversationID)
		return
	}

	start := time.Now()
	audio, err := audiocodes.DecodeAudio(payload)
	if err != nil {
		b.logger.Warn("dropping malformed audio chunk", "conversation_id", conversationID, "error", err)
		return
	}
	if len(audio) == 0 {
		return
	}

	if !conv.client.SendAudioChunk(ctx, audio) {
		b.logger.Debug("upstream did not accept audio chunk", "conversation_id", conversationID)
		return
	}

	elapsed := time.Since(start)
	conv.recordLatency(elapsed)
	b.metrics.ObserveForwardLatency(elapsed)
}

func (b *Bridge) StopStream(ctx context.Context, conversationID string) error {
	conv := b.get(conversationID)
	if conv == nil || conv.downstream == nil {
		return nil
	}
	streamID := conv.currentStream()
	if streamID == "" {
		return nil
	}
	return b.send(ctx, conv, audiocodes.NewPlayStreamStop(conv.id, streamID))
}

func (b *Bridge) CloseClient(conversationID string) {
	unlock := b.locks.Lock(conversationID)
	defer unlock()

	conv := b.detach(conversationID)
	if conv == nil {
		return
	}
	b.teardown(conv)
	b.logger.Info("upstream client closed", "conversation_id", conversationID)
}

func (b *Bridge) HasClient(conversationID string) bool {
	return b.get(conversationID) != nil
}

func (b *Bridge) ClientAlive(conversationID string) bool {
	conv := b.get(conversationID)
	return conv != nil && !conv.client.Terminated()
}

func (b *Bridge) ActiveCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conversations)
}

func (b *Bridge) Conversations() []ConversationInfo {
	b.mu.RLock()
	convs := make([]*conversation, 0, len(b.conversations))
	for _, c := range b.conversations {
		convs = append(convs, c)
	}
	b.mu.RUnlock()

	infos := make([]ConversationInfo, 0, len(convs))
	for _, c := range convs {
		lat := c.latencySnapshot()
		infos = append(infos, ConversationInfo{
			ConversationID: c.id,
			StreamID:       c.currentStream(),
			MediaFormat:    c.format.String(),
			UpstreamActive: c.client.Active(),
			Chunks:         lat.count,
			LastLatency:    lat.last,
		})
	}
	return infos
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	ids := make([]string, 0, len(b.conversations))
	for id := range b.conversations {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.CloseClient(id)
	}

	b.cancel()
	b.wg.Wait()
	return nil
}

func (b *Bridge) OnConnectionLost(conversationID string) {
	b.logger.Warn("upstream connection lost", "conversation_id", conversationID)
	b.metrics.UpstreamEvent("lost")
}

func (b *Bridge) OnConnectionRestored(conversationID string) {
	b.logger.Info("upstream connection restored", "conversation_id", conversationID)
	b.metrics.UpstreamEvent("restored")
	if b.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	if err := b.stats.IncrementReconnects(ctx); err != nil {
		b.logger.Debug("failed to record reconnect", "error", err)
	}
}

func (b *Bridge) OnAudioDropped(conversationID string, n int) {
	b.metrics.QueueDropped(n)
}

func (b *Bridge) get(conversationID string) *conversation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conversations[conversationID]
}

func (b *Bridge) detach(conversationID string) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[conversationID]
	if !ok {
		return nil
	}
	delete(b.conversations, conversationID)
	return conv
}

func (b *Bridge) teardown(conv *conversation) {
	conv.cancel()
	<-conv.done
	conv.client.Close()
	b.metrics.ConversationClosed()

	lat := conv.latencySnapshot()
	if lat.count == 0 {
		return
	}
	avg := lat.total / time.Duration(lat.count)
	b.logger.Info("forward latency",
		"conversation_id", conv.id,
		"chunks", lat.count,
		"avg", avg,
		"max", lat.max)

	if b.stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()
		if err := b.stats.RecordLatency(ctx, lat.total, lat.count); err != nil {
			b.logger.Debug("failed to record latency", "error", err)
		}
	}
}

func (b *Bridge) send(ctx context.Context, conv *conversation, msg any) error {
	if conv.downstream == nil {
		return audiocodes.ErrClosed
	}
	return conv.downstream.Send(ctx, msg)
}

func (b *Bridge) forward(ctx context.Context, conv *conversation) {
	defer b.wg.Done()

	failed := b.playStream(ctx, conv)
	close(conv.done)
	if failed {
		b.upstreamFailed(conv.id)
	}
}

// playStream reports whether the upstream client gave up on its own.
func (b *Bridge) playStream(ctx context.Context, conv *conversation) (failed bool) {
	streamID := conv.nextStream()
	logger := b.logger.With("conversation_id", conv.id, "stream_id", streamID)

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), b.cfg.StopTimeout)
		defer cancel()
		if err := b.send(stopCtx, conv, audiocodes.NewPlayStreamStop(conv.id, streamID)); err != nil {
			logger.Debug("failed to send playStream.stop", "error", err)
		}
	}()

	if err := b.send(ctx, conv, audiocodes.NewPlayStreamStart(conv.id, streamID, conv.format)); err != nil {
		logger.Error("failed to send playStream.start", "error", err)
		return false
	}
	logger.Debug("play stream started")

	for {
		if ctx.Err() != nil {
			return false
		}

		chunk := conv.client.ReceiveAudioChunk(ctx)
		if chunk == nil {
			if ctx.Err() != nil {
				return false
			}
			if conv.client.Terminated() {
				return !conv.client.Closing()
			}
			if !conv.client.Active() {
				select {
				case <-ctx.Done():
					return false
				case <-time.After(b.cfg.IdlePoll):
				}
			}
			continue
		}

		if err := b.send(ctx, conv, audiocodes.NewPlayStreamChunk(conv.id, streamID, chunk)); err != nil {
			if ctx.Err() == nil {
				logger.Error("failed to forward audio downstream", "error", err)
			}
			return false
		}
	}
}

// Runs after done is closed so the handler may call CloseClient.
func (b *Bridge) upstreamFailed(conversationID string) {
	b.logger.Error("upstream unrecoverable", "conversation_id", conversationID)
	b.metrics.UpstreamEvent("failed")

	if b.stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		if err := b.stats.IncrementUpstreamFailures(ctx); err != nil {
			b.logger.Debug("failed to record upstream failure", "error", err)
		}
		cancel()
	}

	b.mu.RLock()
	h := b.failure
	b.mu.RUnlock()
	if h != nil {
		h.OnUpstreamFailed(conversationID)
	}
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
