package audiocodes

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrClosed      = errors.New("downstream connection closed")
	ErrUnknownType = errors.New("unknown message type")
	ErrMissingType = errors.New("message has no type")
)

// Sender is a non-owning handle to a downstream VoiceAI Connect connection.
// Implementations must deliver messages in the order Send is called.
type Sender interface {
	Send(ctx context.Context, msg any) error
}

type MessageType string

const (
	TypeSessionInitiate     MessageType = "session.initiate"
	TypeSessionResume       MessageType = "session.resume"
	TypeSessionAccepted     MessageType = "session.accepted"
	TypeSessionError        MessageType = "session.error"
	TypeSessionEnd          MessageType = "session.end"
	TypeUserStreamStart     MessageType = "userStream.start"
	TypeUserStreamStarted   MessageType = "userStream.started"
	TypeUserStreamChunk     MessageType = "userStream.chunk"
	TypeUserStreamStop      MessageType = "userStream.stop"
	TypeUserStreamStopped   MessageType = "userStream.stopped"
	TypePlayStreamStart     MessageType = "playStream.start"
	TypePlayStreamChunk     MessageType = "playStream.chunk"
	TypePlayStreamStop      MessageType = "playStream.stop"
	TypeActivities          MessageType = "activities"
	TypeConnectionValidate  MessageType = "connection.validate"
	TypeConnectionValidated MessageType = "connection.validated"
)

const ReasonUnsupportedMediaFormat = "Required media format not supported"

// Envelope carries the fields common to every message.
type Envelope struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

func Decode[T any](data []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

type Caller struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts the caller either as a plain string or as an object.
func (c *Caller) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.ID = s
		return nil
	}
	type plain Caller
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Caller(p)
	return nil
}

func (c Caller) String() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

type SessionInitiate struct {
	Envelope
	ExpectAudioMessages   bool     `json:"expectAudioMessages"`
	BotName               string   `json:"botName,omitempty"`
	Caller                Caller   `json:"caller"`
	SupportedMediaFormats []string `json:"supportedMediaFormats"`
}

type SessionResume struct {
	Envelope
}

type SessionEnd struct {
	Envelope
	ReasonCode string `json:"reasonCode,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type UserStreamChunk struct {
	Envelope
	AudioChunk string `json:"audioChunk"`
}

type Activity struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

type Activities struct {
	Envelope
	Activities []Activity `json:"activities"`
}

type SessionAccepted struct {
	Envelope
	MediaFormat MediaFormat `json:"mediaFormat"`
}

type SessionError struct {
	Envelope
	Reason string `json:"reason"`
}

type UserStreamStarted struct {
	Envelope
}

type UserStreamStopped struct {
	Envelope
}

type ConnectionValidated struct {
	Envelope
	Success bool `json:"success"`
}

type PlayStreamStart struct {
	Envelope
	StreamID    string      `json:"streamId"`
	MediaFormat MediaFormat `json:"mediaFormat"`
}

type PlayStreamChunk struct {
	Envelope
	StreamID   string `json:"streamId"`
	AudioChunk string `json:"audioChunk"`
}

type PlayStreamStop struct {
	Envelope
	StreamID string `json:"streamId"`
}

func NewSessionAccepted(format MediaFormat) *SessionAccepted {
	return &SessionAccepted{
		Envelope:    Envelope{Type: TypeSessionAccepted},
		MediaFormat: format,
	}
}

func NewSessionError(reason string) *SessionError {
	return &SessionError{
		Envelope: Envelope{Type: TypeSessionError},
		Reason:   reason,
	}
}

func NewPlayStreamStart(conversationID, streamID string, format MediaFormat) *PlayStreamStart {
	return &PlayStreamStart{
		Envelope:    Envelope{Type: TypePlayStreamStart, ConversationID: conversationID},
		StreamID:    streamID,
		MediaFormat: format,
	}
}

func NewPlayStreamChunk(conversationID, streamID string, audio []byte) *PlayStreamChunk {
	return &PlayStreamChunk{
		Envelope:   Envelope{Type: TypePlayStreamChunk, ConversationID: conversationID},
		StreamID:   streamID,
		AudioChunk: EncodeAudio(audio),
	}
}

func NewPlayStreamStop(conversationID, streamID string) *PlayStreamStop {
	return &PlayStreamStop{
		Envelope: Envelope{Type: TypePlayStreamStop, ConversationID: conversationID},
		StreamID: streamID,
	}
}

func NewHangup(conversationID string) *Activities {
	return &Activities{
		Envelope:   Envelope{Type: TypeActivities, ConversationID: conversationID},
		Activities: []Activity{{Type: "event", Name: "hangup"}},
	}
}

func EncodeAudio(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeAudio(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode audio chunk: %w", err)
	}
	return b, nil
}
