package realtime

import "time"

const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"
)

type Config struct {
	URL    string
	APIKey string
	Model  string

	ConnectTimeout    time.Duration
	SendTimeout       time.Duration
	ReceiveWait       time.Duration
	PingTimeout       time.Duration
	HeartbeatInterval time.Duration
	KeepaliveInterval time.Duration
	IdleThreshold     time.Duration
	// ReadTimeout bounds how long the receive loop waits without any frame
	// or pong before the connection is treated as lost.
	ReadTimeout time.Duration

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		URL:                  DefaultURL,
		Model:                DefaultModel,
		ConnectTimeout:       30 * time.Second,
		SendTimeout:          5 * time.Second,
		ReceiveWait:          2 * time.Second,
		PingTimeout:          5 * time.Second,
		HeartbeatInterval:    5 * time.Second,
		KeepaliveInterval:    5 * time.Second,
		IdleThreshold:        60 * time.Second,
		ReadTimeout:          65 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       2 * time.Second,
		QueueSize:            32,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.ReceiveWait <= 0 {
		c.ReceiveWait = d.ReceiveWait
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = d.KeepaliveInterval
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = d.IdleThreshold
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = c.IdleThreshold + c.PingTimeout
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}
