package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/voice-bridge/internal/audiocodes"
	"github.com/eleven-am/voice-bridge/internal/callrecord"
	"github.com/eleven-am/voice-bridge/internal/observability"
	"github.com/eleven-am/voice-bridge/internal/session"
	"github.com/eleven-am/voice-bridge/internal/shared"
)

const (
	storeTimeout  = 3 * time.Second
	hangupTimeout = 2 * time.Second

	reasonConnectionClosed = "connection-closed"
	reasonHangup           = "hangup"
)

var errSessionEnded = errors.New("session ended")

type Downstream interface {
	audiocodes.Sender
	ID() string
}

type CallCounter interface {
	IncrementCalls(ctx context.Context) error
	IncrementRejected(ctx context.Context) error
}

type RouterConfig struct {
	AcceptedFormats []audiocodes.MediaFormat
	HangupOnFailure bool
	Model           string
}

type handlerFunc func(ctx context.Context, conn Downstream, env audiocodes.Envelope, data []byte) error

type Router struct {
	cfg      RouterConfig
	registry *session.Registry
	bridge   *Bridge
	records  *callrecord.Store
	counter  CallCounter
	metrics  *observability.Metrics
	logger   *slog.Logger
	handlers map[audiocodes.MessageType]handlerFunc
}

func NewRouter(
	cfg RouterConfig,
	registry *session.Registry,
	bridge *Bridge,
	records *callrecord.Store,
	counter CallCounter,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Router {
	if len(cfg.AcceptedFormats) == 0 {
		cfg.AcceptedFormats = []audiocodes.MediaFormat{audiocodes.FormatRawLPCM16}
	}

	r := &Router{
		cfg:      cfg,
		registry: registry,
		bridge:   bridge,
		records:  records,
		counter:  counter,
		metrics:  metrics,
		logger:   logger.With("component", "router"),
	}
	r.handlers = map[audiocodes.MessageType]handlerFunc{
		audiocodes.TypeSessionInitiate:    r.handleInitiate,
		audiocodes.TypeSessionResume:      r.handleResume,
		audiocodes.TypeSessionEnd:         r.handleEnd,
		audiocodes.TypeConnectionValidate: r.handleValidate,
		audiocodes.TypeUserStreamStart:    r.handleUserStreamStart,
		audiocodes.TypeUserStreamChunk:    r.handleUserStreamChunk,
		audiocodes.TypeUserStreamStop:     r.handleUserStreamStop,
		audiocodes.TypeActivities:         r.handleActivities,
	}

	bridge.SetFailureHandler(r)
	return r
}

func (r *Router) ServeConn(ctx context.Context, conn *DownstreamConn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go conn.writePump(ctx)

	conn.readPump(ctx, func(data []byte) bool {
		err := r.Handle(ctx, conn, data)
		switch {
		case err == nil:
			return true
		case errors.Is(err, errSessionEnded):
			return false
		case errors.Is(err, audiocodes.ErrClosed):
			return false
		default:
			r.logger.Error("failed to handle message", "conn_id", conn.ID(), "error", err)
			return true
		}
	})

	r.releaseConnection(ctx, conn.ID())
	conn.Close()
}

func (r *Router) Handle(ctx context.Context, conn Downstream, data []byte) error {
	env, err := audiocodes.DecodeEnvelope(data)
	if err != nil {
		r.logger.Warn("ignoring malformed message", "conn_id", conn.ID(), "error", err)
		return nil
	}

	r.metrics.DownstreamMessage("in", string(env.Type))

	h, ok := r.handlers[env.Type]
	if !ok {
		r.logger.Warn("ignoring unknown message type", "conn_id", conn.ID(), "type", env.Type)
		return nil
	}
	return h(ctx, conn, env, data)
}

func (r *Router) send(ctx context.Context, conn Downstream, msg any, msgType audiocodes.MessageType) error {
	if err := conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	r.metrics.DownstreamMessage("out", string(msgType))
	return nil
}

func (r *Router) handleInitiate(ctx context.Context, conn Downstream, env audiocodes.Envelope, data []byte) error {
	msg, err := audiocodes.Decode[audiocodes.SessionInitiate](data)
	if err != nil {
		r.logger.Warn("ignoring malformed session.initiate", "error", err)
		return nil
	}
	if env.ConversationID == "" {
		r.logger.Warn("ignoring session.initiate without conversationId", "conn_id", conn.ID())
		return nil
	}

	logger := r.logger.With("conversation_id", env.ConversationID, "conn_id", conn.ID())

	format, ok := audiocodes.NegotiateFormat(msg.SupportedMediaFormats, r.cfg.AcceptedFormats)
	if !ok {
		logger.Warn("rejecting session", "offered", msg.SupportedMediaFormats)
		r.metrics.SessionEvent("rejected")
		r.countCall(ctx, false)
		return r.send(ctx, conn, audiocodes.NewSessionError(audiocodes.ReasonUnsupportedMediaFormat), audiocodes.TypeSessionError)
	}

	if err := r.send(ctx, conn, audiocodes.NewSessionAccepted(format), audiocodes.TypeSessionAccepted); err != nil {
		return err
	}

	conv := session.Conversation{
		ID:          env.ConversationID,
		ConnID:      conn.ID(),
		Downstream:  conn,
		MediaFormat: format,
		BotName:     msg.BotName,
		Caller:      msg.Caller.String(),
		StartedAt:   time.Now(),
	}
	if r.registry.Add(conv) {
		logger.Info("session.initiate replaced an existing conversation")
	}
	logger.Info("session accepted", "media_format", format, "bot", msg.BotName, "caller", conv.Caller)
	r.metrics.SessionEvent("accepted")
	r.countCall(ctx, true)
	r.startRecord(ctx, conv, false)

	if err := r.bridge.CreateClient(ctx, env.ConversationID, conn, format, r.cfg.Model); err != nil {
		logger.Error("failed to create upstream client", "error", err)
	}
	return nil
}

func (r *Router) handleResume(ctx context.Context, conn Downstream, env audiocodes.Envelope, data []byte) error {
	if env.ConversationID == "" {
		r.logger.Warn("ignoring session.resume without conversationId", "conn_id", conn.ID())
		return nil
	}
	logger := r.logger.With("conversation_id", env.ConversationID, "conn_id", conn.ID())

	prev, known := r.registry.Get(env.ConversationID)
	format := audiocodes.FormatRawLPCM16
	if known && prev.MediaFormat.Valid() {
		format = prev.MediaFormat
	}

	if err := r.send(ctx, conn, audiocodes.NewSessionAccepted(format), audiocodes.TypeSessionAccepted); err != nil {
		return err
	}

	conv := session.Conversation{
		ID:          env.ConversationID,
		ConnID:      conn.ID(),
		Downstream:  conn,
		MediaFormat: format,
		StartedAt:   time.Now(),
	}
	if known {
		conv.BotName = prev.BotName
		conv.Caller = prev.Caller
		conv.StartedAt = prev.StartedAt
	}
	r.registry.Add(conv)
	r.metrics.SessionEvent("resumed")
	logger.Info("session resumed", "media_format", format, "known", known)

	if !known {
		r.startRecord(ctx, conv, true)
	}

	if known && prev.ConnID == conn.ID() && r.bridge.ClientAlive(env.ConversationID) {
		return nil
	}
	if err := r.bridge.CreateClient(ctx, env.ConversationID, conn, format, r.cfg.Model); err != nil {
		logger.Error("failed to create upstream client", "error", err)
	}
	return nil
}

func (r *Router) handleEnd(ctx context.Context, conn Downstream, env audiocodes.Envelope, data []byte) error {
	msg, err := audiocodes.Decode[audiocodes.SessionEnd](data)
	if err != nil {
		msg = &audiocodes.SessionEnd{Envelope: env}
	}

	r.logger.Info("session ended",
		"conversation_id", env.ConversationID,
		"conn_id", conn.ID(),
		"reason_code", msg.ReasonCode,
		"reason", msg.Reason)

	r.registry.Remove(env.ConversationID)
	r.endConversation(ctx, env.ConversationID, msg.ReasonCode, msg.Reason)
	r.metrics.SessionEvent("ended")
	return errSessionEnded
}

func (r *Router) handleValidate(ctx context.Context, conn Downstream, env audiocodes.Envelope, _ []byte) error {
	return r.send(ctx, conn, &audiocodes.ConnectionValidated{
		Envelope: audiocodes.Envelope{Type: audiocodes.TypeConnectionValidated, ConversationID: env.ConversationID},
		Success:  true,
	}, audiocodes.TypeConnectionValidated)
}

func (r *Router) handleUserStreamStart(ctx context.Context, conn Downstream, env audiocodes.Envelope, _ []byte) error {
	return r.send(ctx, conn, &audiocodes.UserStreamStarted{
		Envelope: audiocodes.Envelope{Type: audiocodes.TypeUserStreamStarted, ConversationID: env.ConversationID},
	}, audiocodes.TypeUserStreamStarted)
}

func (r *Router) handleUserStreamStop(ctx context.Context, conn Downstream, env audiocodes.Envelope, _ []byte) error {
	return r.send(ctx, conn, &audiocodes.UserStreamStopped{
		Envelope: audiocodes.Envelope{Type: audiocodes.TypeUserStreamStopped, ConversationID: env.ConversationID},
	}, audiocodes.TypeUserStreamStopped)
}

func (r *Router) handleUserStreamChunk(ctx context.Context, _ Downstream, env audiocodes.Envelope, data []byte) error {
	msg, err := audiocodes.Decode[audiocodes.UserStreamChunk](data)
	if err != nil {
		r.logger.Warn("ignoring malformed userStream.chunk", "conversation_id", env.ConversationID, "error", err)
		return nil
	}
	r.bridge.SendAudioChunk(ctx, env.ConversationID, msg.AudioChunk)
	return nil
}

func (r *Router) handleActivities(ctx context.Context, conn Downstream, env audiocodes.Envelope, data []byte) error {
	msg, err := audiocodes.Decode[audiocodes.Activities](data)
	if err != nil {
		r.logger.Warn("ignoring malformed activities", "conversation_id", env.ConversationID, "error", err)
		return nil
	}

	logger := r.logger.With("conversation_id", env.ConversationID, "conn_id", conn.ID())
	for _, a := range msg.Activities {
		switch a.Name {
		case "start":
			logger.Info("call started")
		case "dtmf":
			logger.Info("dtmf received", "value", a.Value)
		case "hangup":
			logger.Info("caller hung up")
			r.registry.Remove(env.ConversationID)
			r.endConversation(ctx, env.ConversationID, reasonHangup, "caller hung up")
			r.metrics.SessionEvent("hangup")
		default:
			logger.Debug("unhandled activity", "type", a.Type, "name", a.Name)
		}
	}
	return nil
}

func (r *Router) OnUpstreamFailed(conversationID string) {
	r.metrics.SessionEvent("upstream_failed")

	conv, ok := r.registry.Get(conversationID)
	if !ok || conv.Downstream == nil {
		return
	}
	if !r.cfg.HangupOnFailure {
		r.logger.Warn("upstream failed, leaving call up", "conversation_id", conversationID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hangupTimeout)
	defer cancel()
	if err := conv.Downstream.Send(ctx, audiocodes.NewHangup(conversationID)); err != nil {
		r.logger.Warn("failed to send hangup", "conversation_id", conversationID, "error", err)
		return
	}
	r.metrics.DownstreamMessage("out", string(audiocodes.TypeActivities))
	r.logger.Info("sent hangup after upstream failure", "conversation_id", conversationID)
}

func (r *Router) releaseConnection(ctx context.Context, connID string) {
	for _, conv := range r.registry.ByConnection(connID) {
		if _, ok := r.registry.RemoveIfOwned(conv.ID, connID); !ok {
			continue
		}
		r.logger.Info("releasing conversation after disconnect", "conversation_id", conv.ID, "conn_id", connID)
		r.endConversation(ctx, conv.ID, reasonConnectionClosed, "downstream connection closed")
	}
}

func (r *Router) endConversation(ctx context.Context, conversationID, code, reason string) {
	r.bridge.CloseClient(conversationID)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := r.records.End(sctx, conversationID, code, reason); err != nil && !errors.Is(err, shared.ErrNotFound) {
		r.logger.Warn("failed to close call record", "conversation_id", conversationID, "error", err)
	}
}

func (r *Router) startRecord(ctx context.Context, conv session.Conversation, resumed bool) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	err := r.records.Start(sctx, &callrecord.Record{
		ConversationID: conv.ID,
		ConnID:         conv.ConnID,
		Caller:         conv.Caller,
		BotName:        conv.BotName,
		MediaFormat:    conv.MediaFormat.String(),
		Resumed:        resumed,
	})
	if err != nil {
		r.logger.Warn("failed to store call record", "conversation_id", conv.ID, "error", err)
	}
}

func (r *Router) countCall(ctx context.Context, accepted bool) {
	if r.counter == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	var err error
	if accepted {
		err = r.counter.IncrementCalls(sctx)
	} else {
		err = r.counter.IncrementRejected(sctx)
	}
	if err != nil {
		r.logger.Debug("failed to update call counters", "error", err)
	}
}
